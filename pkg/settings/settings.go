// Package settings manages user-mutable state: the compression quality
// and the set of watched folders.
//
// Unlike the static configuration in pkg/config, settings change at
// runtime through commands and are written back to disk synchronously
// on every mutation, so a crash never loses more than the in-flight
// change.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/hatworks/imagepress/pkg/logger"
)

// DefaultQuality is the compression quality used when no settings
// file exists yet.
const DefaultQuality = 80

// Settings is the on-disk shape of the user settings file.
type Settings struct {
	// Quality is the requested compression quality, in [1,100].
	Quality int `json:"quality"`

	// WatchedFolders are the absolute paths being watched.
	WatchedFolders []string `json:"watched_folders"`
}

// Manager provides synchronized access to user settings.
type Manager interface {
	// Quality returns the current compression quality.
	Quality() int

	// SetQuality updates the quality, clamping the value to [1,100],
	// and persists the change. Returns the clamped value.
	SetQuality(value int) int

	// WatchedFolders returns a copy of the watched folder set.
	WatchedFolders() []string

	// AddFolder adds a folder to the watched set and persists.
	//
	// Returns error if:
	//   - the path does not exist or is not a directory
	//   - the folder is already watched
	AddFolder(path string) error

	// RemoveFolder removes a folder from the watched set and persists.
	//
	// Returns ErrFolderNotWatched if the folder is not in the set.
	RemoveFolder(path string) error
}

// manager implements the Manager interface with a JSON file backend.
type manager struct {
	mu      sync.RWMutex
	current Settings
	path    string
	logger  logger.Logger
}

// Load opens the settings file at path, creating defaults if it does
// not exist or cannot be parsed.
//
// Parameters:
//   - path: Settings file location
//   - defaultFolder: Folder seeded into the watched set on first run
//     (ignored if empty)
//   - log: Logger instance
func Load(path, defaultFolder string, log logger.Logger) Manager {
	m := &manager{
		path:   path,
		logger: log,
	}

	data, err := os.ReadFile(path) // nolint:gosec
	if err == nil {
		if unmarshalErr := json.Unmarshal(data, &m.current); unmarshalErr != nil {
			log.Warn("settings file unreadable, using defaults",
				"path", path,
				"error", unmarshalErr)
			m.current = Settings{}
		}
	}

	if m.current.Quality < 1 || m.current.Quality > 100 {
		m.current.Quality = DefaultQuality
	}
	if len(m.current.WatchedFolders) == 0 && defaultFolder != "" {
		m.current.WatchedFolders = []string{defaultFolder}
	}

	log.Info("settings loaded",
		"path", path,
		"quality", m.current.Quality,
		"folders", len(m.current.WatchedFolders))

	return m
}

// Quality implements Manager.Quality.
func (m *manager) Quality() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.current.Quality
}

// SetQuality implements Manager.SetQuality.
func (m *manager) SetQuality(value int) int {
	clamped := clampQuality(value)

	m.mu.Lock()
	previous := m.current.Quality
	m.current.Quality = clamped
	snapshot := m.current
	m.mu.Unlock()

	m.logger.Info("quality changed", "from", previous, "to", clamped)
	m.persist(snapshot)

	return clamped
}

// WatchedFolders implements Manager.WatchedFolders.
func (m *manager) WatchedFolders() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	folders := make([]string, len(m.current.WatchedFolders))
	copy(folders, m.current.WatchedFolders)
	return folders
}

// AddFolder implements Manager.AddFolder.
func (m *manager) AddFolder(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrFolderNotFound, path)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotDirectory, path)
	}

	m.mu.Lock()
	for _, existing := range m.current.WatchedFolders {
		if existing == path {
			m.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrDuplicateFolder, path)
		}
	}
	m.current.WatchedFolders = append(m.current.WatchedFolders, path)
	snapshot := m.current
	m.mu.Unlock()

	m.logger.Info("watched folder added", "path", path)
	m.persist(snapshot)

	return nil
}

// RemoveFolder implements Manager.RemoveFolder.
func (m *manager) RemoveFolder(path string) error {
	m.mu.Lock()
	found := false
	kept := m.current.WatchedFolders[:0]
	for _, existing := range m.current.WatchedFolders {
		if existing == path {
			found = true
			continue
		}
		kept = append(kept, existing)
	}
	m.current.WatchedFolders = kept
	snapshot := m.current
	m.mu.Unlock()

	if !found {
		return fmt.Errorf("%w: %s", ErrFolderNotWatched, path)
	}

	m.logger.Info("watched folder removed", "path", path)
	m.persist(snapshot)

	return nil
}

// persist writes a settings snapshot to disk.
//
// Persistence failures are logged and swallowed; the in-memory state
// remains authoritative and the next mutation retries the write.
func (m *manager) persist(snapshot Settings) {
	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		m.logger.Error("failed to create settings directory",
			"dir", dir,
			"error", err)
		return
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		m.logger.Error("failed to marshal settings", "error", err)
		return
	}

	if err := os.WriteFile(m.path, data, 0600); err != nil {
		m.logger.Error("failed to write settings file",
			"path", m.path,
			"error", err)
	}
}

// clampQuality clamps a quality value to [1,100].
func clampQuality(value int) int {
	if value < 1 {
		return 1
	}
	if value > 100 {
		return 100
	}
	return value
}
