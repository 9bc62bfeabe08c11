// Package config provides static configuration management for imagepress.
//
// Configuration is loaded from multiple sources with the following precedence:
// 1. Environment variables (highest priority)
// 2. Configuration file
// 3. Default values (lowest priority)
//
// Static configuration covers process tuning (worker pool, store capacity,
// maintenance intervals). User-mutable state (quality, watched folders)
// lives in the settings package and is persisted separately.
//
// Example usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("worker pool: %d\n", cfg.Worker.PoolSize)
package config

import (
	"time"
)

// Config represents the complete static application configuration.
//
// Invariants:
// - Watcher.EventBuffer must be > 0
// - Watcher.DebounceWindow must be > 0
// - Worker.PoolSize must be > 0
// - Worker.QualityStep must be in [1,100]
// - Worker.MaxRetries must be >= 0
// - Worker.StableSamples must be > 0
// - Store.Capacity must be > 0
// - All maintenance intervals must be > 0.
type Config struct {
	// Watcher settings
	Watcher WatcherConfig `yaml:"watcher"`

	// Worker pool settings
	Worker WorkerConfig `yaml:"worker"`

	// Job store settings
	Store StoreConfig `yaml:"store"`

	// Maintenance loop settings
	Maintenance MaintenanceConfig `yaml:"maintenance"`

	// Storage settings
	Storage StorageConfig `yaml:"storage"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging"`
}

// WatcherConfig contains directory watcher settings.
type WatcherConfig struct {
	// Size of the admitted-event channel buffer
	EventBuffer int `yaml:"event_buffer"`

	// Window within which repeated events for one path are coalesced
	DebounceWindow time.Duration `yaml:"debounce_window"`
}

// WorkerConfig contains compression worker settings.
type WorkerConfig struct {
	// Number of concurrent compression workers
	PoolSize int `yaml:"pool_size"`

	// Backend selects the compressor implementation (vips, copy)
	Backend string `yaml:"backend"`

	// Command is the helper binary invoked by the vips backend
	Command string `yaml:"command"`

	// Quality increase applied on an oversized result
	QualityStep int `yaml:"quality_step"`

	// Retries allowed beyond the first attempt
	MaxRetries int `yaml:"max_retries"`

	// File stabilization polling
	StablePollInterval time.Duration `yaml:"stable_poll_interval"`
	StableSamples      int           `yaml:"stable_samples"`
	StableMaxWait      time.Duration `yaml:"stable_max_wait"`
}

// StoreConfig contains job store settings.
type StoreConfig struct {
	// Hard cap on live + completed jobs held in memory
	Capacity int `yaml:"capacity"`
}

// MaintenanceConfig contains periodic maintenance settings.
type MaintenanceConfig struct {
	// How often the job snapshot is flushed to disk
	SnapshotInterval time.Duration `yaml:"snapshot_interval"`

	// How often completed jobs are checked against the retention policy
	RetentionSweepInterval time.Duration `yaml:"retention_sweep_interval"`

	// How long completed jobs are kept before the sweep removes them
	CompletedRetention time.Duration `yaml:"completed_retention"`

	// How often stale debounce entries are purged
	DebouncePruneInterval time.Duration `yaml:"debounce_prune_interval"`
}

// StorageConfig contains on-disk state locations.
type StorageConfig struct {
	// Path to the mutable user settings file (JSON)
	SettingsPath string `yaml:"settings_path"`

	// Path to the compression log file (JSON)
	HistoryPath string `yaml:"history_path"`

	// Path to the BoltDB job snapshot database
	SnapshotDBPath string `yaml:"snapshot_db_path"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Log level (debug, info, warn, error)
	Level string `yaml:"level"`

	// Log output destination (stdout, stderr, file path)
	Output string `yaml:"output"`

	// Log format (text, json)
	Format string `yaml:"format"`
}

// Validate checks if the configuration satisfies all invariants.
//
// Returns an error if any invariant is violated.
//
// Thread-safety: This method is read-only and thread-safe.
func (c *Config) Validate() error {
	if c.Watcher.EventBuffer <= 0 {
		return ErrInvalidEventBuffer
	}
	if c.Watcher.DebounceWindow <= 0 {
		return ErrInvalidDebounceWindow
	}

	if c.Worker.PoolSize <= 0 {
		return ErrInvalidPoolSize
	}
	validBackends := map[string]bool{
		"vips": true,
		"copy": true,
	}
	if !validBackends[c.Worker.Backend] {
		return ErrInvalidBackend
	}
	if c.Worker.QualityStep < 1 || c.Worker.QualityStep > 100 {
		return ErrInvalidQualityStep
	}
	if c.Worker.MaxRetries < 0 {
		return ErrInvalidMaxRetries
	}
	if c.Worker.StablePollInterval <= 0 || c.Worker.StableMaxWait <= 0 {
		return ErrInvalidStableWait
	}
	if c.Worker.StableSamples <= 0 {
		return ErrInvalidStableSamples
	}

	if c.Store.Capacity <= 0 {
		return ErrInvalidCapacity
	}

	if c.Maintenance.SnapshotInterval <= 0 {
		return ErrInvalidSnapshotInterval
	}
	if c.Maintenance.RetentionSweepInterval <= 0 {
		return ErrInvalidRetentionSweep
	}
	if c.Maintenance.CompletedRetention <= 0 {
		return ErrInvalidRetention
	}
	if c.Maintenance.DebouncePruneInterval <= 0 {
		return ErrInvalidDebouncePrune
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.Logging.Level] {
		return ErrInvalidLogLevel
	}

	validFormats := map[string]bool{
		"text": true,
		"json": true,
	}
	if !validFormats[c.Logging.Format] {
		return ErrInvalidLogFormat
	}

	return nil
}

// Default returns a configuration with sensible default values.
func Default() *Config {
	return &Config{
		Watcher: WatcherConfig{
			EventBuffer:    100,
			DebounceWindow: 5 * time.Second,
		},
		Worker: WorkerConfig{
			PoolSize:           4,
			Backend:            "vips",
			Command:            "vips",
			QualityStep:        10,
			MaxRetries:         5,
			StablePollInterval: 200 * time.Millisecond,
			StableSamples:      3,
			StableMaxWait:      10 * time.Second,
		},
		Store: StoreConfig{
			Capacity: 1000,
		},
		Maintenance: MaintenanceConfig{
			SnapshotInterval:       30 * time.Second,
			RetentionSweepInterval: time.Minute,
			CompletedRetention:     24 * time.Hour,
			DebouncePruneInterval:  30 * time.Second,
		},
		Storage: StorageConfig{
			SettingsPath:   defaultSettingsPath(),
			HistoryPath:    defaultHistoryPath(),
			SnapshotDBPath: defaultSnapshotDBPath(),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: "stderr",
			Format: "text",
		},
	}
}
