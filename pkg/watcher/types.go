// Package watcher provides real-time monitoring of watched folders for
// newly arrived image files.
//
// It uses fsnotify to observe folder contents non-recursively and
// filters the raw event stream down to candidate images: transient
// browser download artifacts, the pipeline's own compressed outputs,
// and unsupported formats are dropped before an event is emitted.
//
// Example usage:
//
//	w, err := watcher.New(watcher.Config{}, logger.Default())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer w.Close()
//
//	if err := w.Start(ctx, []string{"~/Downloads"}); err != nil {
//	    log.Fatal(err)
//	}
//
//	for event := range w.Events() {
//	    fmt.Printf("new image: %s\n", event.Path)
//	}
package watcher

import (
	"context"
	"time"
)

// Op describes the file operation that surfaced a candidate.
type Op uint32

// File operation types. Only arrivals are reported: a file created in
// a watched folder, or renamed into one (browsers finish downloads by
// renaming the temporary file).
const (
	OpCreate Op = 1 << iota // File created
	OpRename                // File renamed into place
)

// String returns a human-readable operation name.
func (op Op) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpRename:
		return "RENAME"
	default:
		return "UNKNOWN"
	}
}

// Event represents one candidate image arrival.
type Event struct {
	// Path is the absolute path of the arrived file.
	Path string

	// Op is the operation that surfaced the file.
	Op Op

	// Timestamp is when the event was observed.
	Timestamp time.Time
}

// Watcher monitors watched folders for image arrivals.
type Watcher interface {
	// Start begins watching the given folders and launches the event
	// loop. Folders that cannot be watched are logged and skipped; the
	// watcher starts as long as the loop itself can run.
	//
	// Parameters:
	//   - ctx: Context for cancellation
	//   - folders: Directories to watch (non-recursive)
	Start(ctx context.Context, folders []string) error

	// AddFolder starts watching one more folder at runtime.
	AddFolder(path string) error

	// RemoveFolder stops watching a folder at runtime.
	RemoveFolder(path string) error

	// Events returns the channel of filtered image arrivals.
	// The channel is closed when the watcher is closed.
	Events() <-chan Event

	// Errors returns the channel of non-fatal watcher errors.
	Errors() <-chan error

	// Close stops the watcher and releases resources.
	Close() error
}

// Config contains watcher configuration.
type Config struct {
	// EventBuffer is the capacity of the events channel.
	// Default: 100.
	EventBuffer int

	// ErrorBuffer is the capacity of the errors channel.
	// Default: 10.
	ErrorBuffer int
}
