// Package display provides output formatting for job status and
// compression history.
//
// It supports multiple output formats (table, JSON, simple text) and
// clamps table output to the terminal width.
package display

import (
	"io"

	"github.com/hatworks/imagepress/pkg/history"
	"github.com/hatworks/imagepress/pkg/store"
)

// Format represents an output format.
type Format string

const (
	// FormatTable displays data in a formatted table.
	FormatTable Format = "table"

	// FormatJSON displays data as JSON.
	FormatJSON Format = "json"

	// FormatSimple displays data in simple text format.
	FormatSimple Format = "simple"
)

// Formatter formats job and history data for display.
type Formatter interface {
	// FormatJobs formats the job list.
	//
	// Parameters:
	//   - w: Output writer
	//   - jobs: Jobs to format, in admission order
	//
	// Returns error if formatting fails.
	FormatJobs(w io.Writer, jobs []store.Job) error

	// FormatHistory formats compression records.
	//
	// Parameters:
	//   - w: Output writer
	//   - records: Records to format, oldest first
	//
	// Returns error if formatting fails.
	FormatHistory(w io.Writer, records []history.Record) error

	// FormatStats formats history summary totals.
	//
	// Parameters:
	//   - w: Output writer
	//   - stats: Summary to format
	//
	// Returns error if formatting fails.
	FormatStats(w io.Writer, stats history.Stats) error
}

// Config contains formatter configuration.
type Config struct {
	// Format specifies the output format.
	// Default: FormatTable.
	Format Format

	// Compact enables compact output (less whitespace).
	// Default: false.
	Compact bool

	// MaxWidth caps table width in characters. When zero the terminal
	// width is detected, falling back to 100 columns.
	MaxWidth int
}
