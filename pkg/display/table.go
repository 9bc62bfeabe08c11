package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/hatworks/imagepress/pkg/history"
	"github.com/hatworks/imagepress/pkg/store"
)

// filenameBudget caps the file column so long names cannot push a row
// past the terminal width.
const filenameBudget = 40

// tableFormatter formats output as tables.
type tableFormatter struct {
	config Config
}

// FormatJobs implements Formatter.FormatJobs.
func (f *tableFormatter) FormatJobs(w io.Writer, jobs []store.Job) error {
	if err := writeHeader(w, "Compression Jobs", f.config.Compact); err != nil {
		return err
	}

	header := []string{"ID", "File", "Status", "Size", "Result", "Saved", "Progress"}

	rows := make([][]string, len(jobs))
	for i, job := range jobs {
		result := "-"
		if job.CompressedSize > 0 {
			result = formatBytes(job.CompressedSize)
		}

		status := string(job.Status)
		if job.Status == store.StatusError && job.Error != "" {
			status = fmt.Sprintf("Error: %s", truncate(job.Error, 30))
		}

		rows[i] = []string{
			shortID(job.ID),
			truncate(job.Filename, filenameBudget),
			status,
			formatBytes(job.OriginalSize),
			result,
			formatSaved(job.OriginalSize, job.CompressedSize),
			fmt.Sprintf("%d%%", job.Progress),
		}
	}

	return f.writeTable(w, header, rows)
}

// FormatHistory implements Formatter.FormatHistory.
func (f *tableFormatter) FormatHistory(w io.Writer, records []history.Record) error {
	if err := writeHeader(w, "Compression History", f.config.Compact); err != nil {
		return err
	}

	header := []string{"When", "File", "Format", "Size", "Result", "Saved", "Q", "Orig"}

	rows := make([][]string, len(records))
	for i, record := range records {
		orig := "kept"
		if record.OriginalDeleted {
			orig = "deleted"
		}

		rows[i] = []string{
			record.Timestamp.Format("2006-01-02 15:04"),
			truncate(baseName(record.InitialPath), filenameBudget),
			record.InitialFormat,
			formatBytes(record.InitialSize),
			formatBytes(record.CompressedSize),
			formatSaved(record.InitialSize, record.CompressedSize),
			fmt.Sprintf("%d", record.Quality),
			orig,
		}
	}

	return f.writeTable(w, header, rows)
}

// FormatStats implements Formatter.FormatStats.
func (f *tableFormatter) FormatStats(w io.Writer, stats history.Stats) error {
	if err := writeHeader(w, "Compression Totals", f.config.Compact); err != nil {
		return err
	}

	rows := [][]string{
		{"Images", fmt.Sprintf("%d", stats.Count)},
		{"Original Bytes", formatBytes(stats.InitialBytes)},
		{"Compressed Bytes", formatBytes(stats.CompressedBytes)},
		{"Saved", formatBytes(stats.SavedBytes)},
		{"Saved %", fmt.Sprintf("%.1f%%", stats.SavedPercent)},
	}

	return f.writeTable(w, []string{"Metric", "Value"}, rows)
}

// writeTable writes a formatted table clamped to the configured width.
func (f *tableFormatter) writeTable(w io.Writer, header []string, rows [][]string) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "No data")
		return err
	}

	// Calculate column widths.
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = len(h)
	}

	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	// Write header.
	if err := f.writeRow(w, header, widths); err != nil {
		return err
	}

	// Write separator.
	if !f.config.Compact {
		separator := make([]string, len(header))
		for i, width := range widths {
			separator[i] = strings.Repeat("-", width)
		}
		if err := f.writeRow(w, separator, widths); err != nil {
			return err
		}
	}

	// Write rows.
	for _, row := range rows {
		if err := f.writeRow(w, row, widths); err != nil {
			return err
		}
	}

	// Add spacing.
	if !f.config.Compact {
		_, err := fmt.Fprintln(w)
		return err
	}

	return nil
}

// writeRow writes a single table row, cut off at the width limit.
func (f *tableFormatter) writeRow(w io.Writer, cells []string, widths []int) error {
	var line strings.Builder

	for i, cell := range cells {
		if i > 0 {
			if f.config.Compact {
				line.WriteString(" ")
			} else {
				line.WriteString("  ")
			}
		}

		format := fmt.Sprintf("%%-%ds", widths[i])
		line.WriteString(fmt.Sprintf(format, cell))
	}

	out := strings.TrimRight(line.String(), " ")
	if f.config.MaxWidth > 0 && len(out) > f.config.MaxWidth {
		out = out[:f.config.MaxWidth]
	}

	_, err := fmt.Fprintln(w, out)
	return err
}
