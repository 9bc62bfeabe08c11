package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/hatworks/imagepress/pkg/compressor"
	"github.com/hatworks/imagepress/pkg/logger"
)

// transientExtensions are in-progress download artifacts that browsers
// write before renaming the finished file into place.
var transientExtensions = map[string]bool{
	"tmp":        true,
	"crdownload": true,
	"part":       true,
	"partial":    true,
	"download":   true,
}

// watcher implements the Watcher interface using fsnotify.
type watcher struct {
	fsw    *fsnotify.Watcher
	logger logger.Logger
	config Config

	events chan Event
	errors chan error

	mu      sync.RWMutex
	running bool
	closed  bool
	watched map[string]bool
}

// New creates a new folder watcher.
//
// Parameters:
//   - cfg: Watcher configuration
//   - log: Logger instance
//
// Returns:
//   - Configured Watcher
//   - Error if the underlying fsnotify watcher cannot be created
func New(cfg Config, log logger.Logger) (Watcher, error) {
	// Set defaults.
	if cfg.EventBuffer == 0 {
		cfg.EventBuffer = 100
	}
	if cfg.ErrorBuffer == 0 {
		cfg.ErrorBuffer = 10
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	w := &watcher{
		fsw:     fsw,
		logger:  log,
		config:  cfg,
		events:  make(chan Event, cfg.EventBuffer),
		errors:  make(chan error, cfg.ErrorBuffer),
		watched: make(map[string]bool),
	}

	log.Debug("folder watcher created", "event_buffer", cfg.EventBuffer)

	return w, nil
}

// Start implements Watcher.Start.
func (w *watcher) Start(ctx context.Context, folders []string) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrWatcherClosed
	}
	if w.running {
		w.mu.Unlock()
		return ErrAlreadyStarted
	}
	w.running = true
	w.mu.Unlock()

	added := 0
	for _, folder := range folders {
		if err := w.AddFolder(folder); err != nil {
			// One bad folder must not take down monitoring of the rest.
			w.logger.Warn("cannot watch folder, skipping",
				"path", folder,
				"error", err)
			continue
		}
		added++
	}

	w.logger.Info("watcher started",
		"folders", added,
		"requested", len(folders))

	go w.processEvents(ctx)

	return nil
}

// AddFolder implements Watcher.AddFolder.
func (w *watcher) AddFolder(path string) error {
	expanded := expandHome(path)

	info, err := os.Stat(expanded)
	if err != nil {
		return fmt.Errorf("failed to stat folder %s: %w", expanded, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch path %s is not a directory", expanded)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}
	if w.watched[expanded] {
		return nil
	}

	if err := w.fsw.Add(expanded); err != nil {
		return fmt.Errorf("failed to add folder %s: %w", expanded, err)
	}
	w.watched[expanded] = true

	w.logger.Info("watching folder", "path", expanded)
	return nil
}

// RemoveFolder implements Watcher.RemoveFolder.
func (w *watcher) RemoveFolder(path string) error {
	expanded := expandHome(path)

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}
	if !w.watched[expanded] {
		return fmt.Errorf("%w: %s", ErrNotWatched, expanded)
	}

	if err := w.fsw.Remove(expanded); err != nil {
		// The kernel watch may already be gone (folder deleted);
		// dropping our record is what matters.
		w.logger.Warn("failed to remove kernel watch",
			"path", expanded,
			"error", err)
	}
	delete(w.watched, expanded)

	w.logger.Info("stopped watching folder", "path", expanded)
	return nil
}

// Events implements Watcher.Events.
func (w *watcher) Events() <-chan Event {
	return w.events
}

// Errors implements Watcher.Errors.
func (w *watcher) Errors() <-chan error {
	return w.errors
}

// Close implements Watcher.Close.
func (w *watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}

	w.closed = true
	running := w.running
	w.running = false
	w.watched = make(map[string]bool)
	w.mu.Unlock()

	// Closing the fsnotify watcher ends its event stream, which stops
	// processEvents; that goroutine owns the outbound channels and
	// closes them on the way out. Without a producer goroutine they
	// are closed here.
	err := w.fsw.Close()
	if !running {
		close(w.events)
		close(w.errors)
	}

	if err != nil {
		w.logger.Error("failed to close fsnotify watcher", "error", err)
		return fmt.Errorf("failed to close watcher: %w", err)
	}

	w.logger.Info("watcher closed")
	return nil
}

// processEvents handles events from fsnotify.
//
// The outbound channels are closed here, after the last send, so a
// concurrent Close can never race an in-flight delivery.
func (w *watcher) processEvents(ctx context.Context) {
	defer close(w.errors)
	defer close(w.events)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("event processing stopped", "reason", "context cancelled")
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				w.logger.Debug("fsnotify events channel closed")
				return
			}

			w.handleEvent(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				w.logger.Debug("fsnotify errors channel closed")
				return
			}

			w.handleError(err)
		}
	}
}

// handleEvent filters a single fsnotify event down to an image arrival.
func (w *watcher) handleEvent(event fsnotify.Event) {
	// Only arrivals matter. Writes to existing files and removals are
	// not admission triggers.
	var op Op
	switch {
	case event.Op&fsnotify.Create == fsnotify.Create:
		op = OpCreate
	case event.Op&fsnotify.Rename == fsnotify.Rename:
		op = OpRename
	default:
		return
	}

	if !IsCandidate(event.Name) {
		w.logger.Debug("ignoring non-candidate file", "path", event.Name)
		return
	}

	// A created subdirectory can match an image extension in theory;
	// rule it out.
	if info, err := os.Stat(event.Name); err != nil || info.IsDir() {
		return
	}

	w.mu.RLock()
	closed := w.closed
	w.mu.RUnlock()
	if closed {
		return
	}

	select {
	case w.events <- Event{Path: event.Name, Op: op, Timestamp: time.Now()}:
	default:
		w.logger.Warn("event channel full, dropping arrival", "path", event.Name)
	}
}

// handleError forwards fsnotify errors without blocking.
func (w *watcher) handleError(err error) {
	w.logger.Error("fsnotify error", "error", err)

	select {
	case w.errors <- err:
	default:
		w.logger.Warn("error channel full, dropping error")
	}
}

// IsCandidate reports whether a path looks like a finished image the
// pipeline should consider. Checks run cheapest-first: transient
// download extensions, then the compressed-output marker, then format
// support.
func IsCandidate(path string) bool {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if transientExtensions[strings.ToLower(ext)] {
		return false
	}

	if compressor.IsOutputPath(path) {
		return false
	}

	return compressor.FormatFromPath(path) != ""
}

// expandHome expands ~ in file paths to the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	if path == "~" {
		return homeDir
	}

	return filepath.Join(homeDir, path[2:])
}
