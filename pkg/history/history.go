// Package history keeps the durable record of finished compressions.
//
// Records live in a flat JSON file that is loaded once at startup and
// rewritten after every mutation. Persistence failures never fail the
// mutation itself: the in-memory log is authoritative for the running
// process, the file is best effort.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hatworks/imagepress/pkg/logger"
)

// Record is one finished compression.
type Record struct {
	InitialPath     string    `json:"initial_path"`
	FinalPath       string    `json:"final_path"`
	InitialSize     int64     `json:"initial_size"`
	CompressedSize  int64     `json:"compressed_size"`
	InitialFormat   string    `json:"initial_format"`
	FinalFormat     string    `json:"final_format"`
	Quality         int       `json:"quality"`
	Timestamp       time.Time `json:"timestamp"`
	OriginalDeleted bool      `json:"original_deleted"`
}

// Stats summarizes the log.
type Stats struct {
	Count           int     `json:"count"`
	InitialBytes    int64   `json:"initial_bytes"`
	CompressedBytes int64   `json:"compressed_bytes"`
	SavedBytes      int64   `json:"saved_bytes"`
	SavedPercent    float64 `json:"saved_percent"`
}

// Log is the append-mostly compression history.
type Log struct {
	mu      sync.Mutex
	path    string
	logger  logger.Logger
	records []Record
	dirty   bool

	// writeMu serializes file writes so concurrent mutations cannot
	// land on disk out of order.
	writeMu sync.Mutex
}

// Load reads the history file at path, creating an empty log when the
// file does not exist. A corrupt file is renamed aside and replaced
// with an empty log rather than blocking startup.
func Load(path string, log logger.Logger) (*Log, error) {
	l := &Log{
		path:   path,
		logger: log,
	}

	data, err := os.ReadFile(path) // #nosec G304 - path comes from validated config
	if os.IsNotExist(err) {
		return l, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read history file: %w", err)
	}

	if err := json.Unmarshal(data, &l.records); err != nil {
		backup := path + ".corrupt"
		log.Warn("history file is corrupt, starting fresh",
			"path", path,
			"backup", backup,
			"error", err)
		if renameErr := os.Rename(path, backup); renameErr != nil {
			log.Warn("failed to preserve corrupt history file", "error", renameErr)
		}
		l.records = nil
		return l, nil
	}

	return l, nil
}

// Append adds one record and persists the log. A persistence failure
// is logged; the record is kept in memory regardless.
func (l *Log) Append(record Record) {
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}

	l.mu.Lock()
	l.records = append(l.records, record)
	l.dirty = true
	l.mu.Unlock()

	l.persist()
}

// Records returns a copy of all records, oldest first.
func (l *Log) Records() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]Record(nil), l.records...)
}

// Stats computes summary totals over the log.
func (l *Log) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	stats := Stats{Count: len(l.records)}
	for _, record := range l.records {
		stats.InitialBytes += record.InitialSize
		stats.CompressedBytes += record.CompressedSize
	}
	stats.SavedBytes = stats.InitialBytes - stats.CompressedBytes
	if stats.InitialBytes > 0 {
		stats.SavedPercent = float64(stats.SavedBytes) / float64(stats.InitialBytes) * 100
	}
	return stats
}

// Clear removes all records and persists the empty log.
func (l *Log) Clear() {
	l.mu.Lock()
	l.records = nil
	l.dirty = true
	l.mu.Unlock()

	l.persist()
}

// DeleteOriginals removes from disk every original file whose record
// has not already been marked deleted, marks the records, and persists.
// Returns the number of files actually removed from disk.
//
// A file that is already gone is marked deleted without counting. Any
// other removal error leaves the record unmarked so a later call can
// retry.
func (l *Log) DeleteOriginals() (int, error) {
	l.mu.Lock()
	candidates := make([]int, 0, len(l.records))
	for i := range l.records {
		if !l.records[i].OriginalDeleted {
			candidates = append(candidates, i)
		}
	}
	paths := make([]string, len(candidates))
	for i, idx := range candidates {
		paths[i] = l.records[idx].InitialPath
	}
	l.mu.Unlock()

	deleted := 0
	marked := make([]int, 0, len(candidates))
	for i, path := range paths {
		err := os.Remove(path)
		switch {
		case err == nil:
			deleted++
			marked = append(marked, candidates[i])
		case os.IsNotExist(err):
			marked = append(marked, candidates[i])
		default:
			l.logger.Warn("failed to delete original image",
				"path", path,
				"error", err)
		}
	}

	l.mu.Lock()
	for _, idx := range marked {
		if idx < len(l.records) {
			l.records[idx].OriginalDeleted = true
		}
	}
	l.dirty = true
	l.mu.Unlock()

	l.persist()
	return deleted, nil
}

// Flush persists the log if it has unsaved changes.
func (l *Log) Flush() error {
	l.mu.Lock()
	dirty := l.dirty
	l.mu.Unlock()

	if !dirty {
		return nil
	}
	return l.write()
}

// persist writes the log and logs any failure.
func (l *Log) persist() {
	if err := l.write(); err != nil {
		l.logger.Warn("failed to persist compression history",
			"path", l.path,
			"error", err)
	}
}

// write serializes the current records to the history file.
//
// The snapshot is taken while holding the write lock and the dirty
// flag is cleared at the same moment, so a mutation that lands after
// the snapshot leaves the log dirty for the next write. A failed
// write marks the log dirty again.
func (l *Log) write() error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	l.mu.Lock()
	records := append([]Record{}, l.records...)
	l.dirty = false
	l.mu.Unlock()

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		l.markDirty()
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0700); err != nil {
		l.markDirty()
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	if err := os.WriteFile(l.path, data, 0600); err != nil {
		l.markDirty()
		return fmt.Errorf("failed to write history file: %w", err)
	}

	return nil
}

// markDirty flags the log as having unsaved changes.
func (l *Log) markDirty() {
	l.mu.Lock()
	l.dirty = true
	l.mu.Unlock()
}
