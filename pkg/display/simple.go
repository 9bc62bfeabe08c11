package display

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/hatworks/imagepress/pkg/history"
	"github.com/hatworks/imagepress/pkg/store"
)

// simpleFormatter formats output as simple text.
type simpleFormatter struct {
	config Config
}

// FormatJobs implements Formatter.FormatJobs.
func (f *simpleFormatter) FormatJobs(w io.Writer, jobs []store.Job) error {
	for _, job := range jobs {
		if _, err := fmt.Fprintf(w, "%s %s [%s] %s -> %s (%s) %d%%\n",
			shortID(job.ID),
			job.Filename,
			job.Status,
			formatBytes(job.OriginalSize),
			formatBytes(job.CompressedSize),
			formatSaved(job.OriginalSize, job.CompressedSize),
			job.Progress); err != nil {
			return err
		}
	}

	return nil
}

// FormatHistory implements Formatter.FormatHistory.
func (f *simpleFormatter) FormatHistory(w io.Writer, records []history.Record) error {
	for _, record := range records {
		if _, err := fmt.Fprintf(w, "%s %s: %s -> %s (%s) q=%d\n",
			record.Timestamp.Format("2006-01-02 15:04"),
			baseName(record.InitialPath),
			formatBytes(record.InitialSize),
			formatBytes(record.CompressedSize),
			formatSaved(record.InitialSize, record.CompressedSize),
			record.Quality); err != nil {
			return err
		}
	}

	return nil
}

// FormatStats implements Formatter.FormatStats.
func (f *simpleFormatter) FormatStats(w io.Writer, stats history.Stats) error {
	_, err := fmt.Fprintf(w, "Images: %d | Original: %s | Compressed: %s | Saved: %s (%.1f%%)\n",
		stats.Count,
		formatBytes(stats.InitialBytes),
		formatBytes(stats.CompressedBytes),
		formatBytes(stats.SavedBytes),
		stats.SavedPercent)
	return err
}

// baseName returns the final path element.
func baseName(path string) string {
	return filepath.Base(path)
}
