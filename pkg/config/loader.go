package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Loader provides methods for loading configuration from various sources.
type Loader interface {
	// Load loads configuration with the following precedence:
	// 1. Environment variables
	// 2. Configuration file
	// 3. Default values
	//
	// Returns the merged configuration or an error if validation fails.
	Load() (*Config, error)

	// LoadFromFile loads configuration from a specific file.
	LoadFromFile(path string) (*Config, error)
}

// loader implements the Loader interface.
type loader struct {
	configPath string
}

// NewLoader creates a new configuration loader.
//
// If configPath is empty, searches for a config file in:
// 1. ./config.yaml (current directory)
// 2. ~/.config/imagepress/config.yaml.
func NewLoader(configPath string) Loader {
	return &loader{
		configPath: configPath,
	}
}

// Load implements Loader.Load.
func (l *loader) Load() (*Config, error) {
	cfg := Default()

	configPath := l.configPath
	if configPath == "" {
		configPath = l.findConfigFile()
	}

	if configPath != "" {
		fileCfg, err := l.LoadFromFile(configPath)
		if err != nil {
			// An explicitly requested file must load; an implicit one
			// may be absent, in which case defaults stand.
			if l.configPath != "" {
				return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
			}
		} else {
			cfg = l.mergeConfigs(cfg, fileCfg)
		}
	}

	cfg = l.applyEnvVars(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadFromFile implements Loader.LoadFromFile.
func (l *loader) LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path) // nolint:gosec
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	return &cfg, nil
}

// findConfigFile searches for a config file in standard locations.
//
// Returns empty string if no config file is found.
func (l *loader) findConfigFile() string {
	candidates := []string{
		"./config.yaml",
		defaultConfigPath(),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// mergeConfigs merges file configuration into default configuration.
//
// File values override defaults, but only if they are non-zero.
func (l *loader) mergeConfigs(base, override *Config) *Config {
	result := *base

	if override.Watcher.EventBuffer > 0 {
		result.Watcher.EventBuffer = override.Watcher.EventBuffer
	}
	if override.Watcher.DebounceWindow > 0 {
		result.Watcher.DebounceWindow = override.Watcher.DebounceWindow
	}

	if override.Worker.PoolSize > 0 {
		result.Worker.PoolSize = override.Worker.PoolSize
	}
	if override.Worker.Backend != "" {
		result.Worker.Backend = override.Worker.Backend
	}
	if override.Worker.Command != "" {
		result.Worker.Command = override.Worker.Command
	}
	if override.Worker.QualityStep > 0 {
		result.Worker.QualityStep = override.Worker.QualityStep
	}
	if override.Worker.MaxRetries > 0 {
		result.Worker.MaxRetries = override.Worker.MaxRetries
	}
	if override.Worker.StablePollInterval > 0 {
		result.Worker.StablePollInterval = override.Worker.StablePollInterval
	}
	if override.Worker.StableSamples > 0 {
		result.Worker.StableSamples = override.Worker.StableSamples
	}
	if override.Worker.StableMaxWait > 0 {
		result.Worker.StableMaxWait = override.Worker.StableMaxWait
	}

	if override.Store.Capacity > 0 {
		result.Store.Capacity = override.Store.Capacity
	}

	if override.Maintenance.SnapshotInterval > 0 {
		result.Maintenance.SnapshotInterval = override.Maintenance.SnapshotInterval
	}
	if override.Maintenance.RetentionSweepInterval > 0 {
		result.Maintenance.RetentionSweepInterval = override.Maintenance.RetentionSweepInterval
	}
	if override.Maintenance.CompletedRetention > 0 {
		result.Maintenance.CompletedRetention = override.Maintenance.CompletedRetention
	}
	if override.Maintenance.DebouncePruneInterval > 0 {
		result.Maintenance.DebouncePruneInterval = override.Maintenance.DebouncePruneInterval
	}

	if override.Storage.SettingsPath != "" {
		result.Storage.SettingsPath = override.Storage.SettingsPath
	}
	if override.Storage.HistoryPath != "" {
		result.Storage.HistoryPath = override.Storage.HistoryPath
	}
	if override.Storage.SnapshotDBPath != "" {
		result.Storage.SnapshotDBPath = override.Storage.SnapshotDBPath
	}

	if override.Logging.Level != "" {
		result.Logging.Level = override.Logging.Level
	}
	if override.Logging.Output != "" {
		result.Logging.Output = override.Logging.Output
	}
	if override.Logging.Format != "" {
		result.Logging.Format = override.Logging.Format
	}

	return &result
}

// applyEnvVars applies environment variable overrides to the configuration.
//
// Supported environment variables:
//   - IMAGEPRESS_SETTINGS: Path to the user settings file
//   - IMAGEPRESS_DB: Path to the job snapshot database
//   - IMAGEPRESS_LOG_LEVEL: Log level
func (l *loader) applyEnvVars(cfg *Config) *Config {
	result := *cfg

	if settingsPath := os.Getenv("IMAGEPRESS_SETTINGS"); settingsPath != "" {
		result.Storage.SettingsPath = settingsPath
	}

	if dbPath := os.Getenv("IMAGEPRESS_DB"); dbPath != "" {
		result.Storage.SnapshotDBPath = dbPath
	}

	if logLevel := os.Getenv("IMAGEPRESS_LOG_LEVEL"); logLevel != "" {
		result.Logging.Level = strings.ToLower(logLevel)
	}

	return &result
}

// Load is a convenience function that creates a loader and loads configuration.
//
// Equivalent to:
//
//	loader := NewLoader("")
//	return loader.Load()
func Load() (*Config, error) {
	return NewLoader("").Load()
}

// LoadFromFile is a convenience function that loads configuration from a file.
func LoadFromFile(path string) (*Config, error) {
	return NewLoader(path).Load()
}

// Save writes the configuration to a YAML file.
//
// Creates parent directories if they don't exist.
// File is created with 0600 permissions (read/write for owner only).
func Save(cfg *Config, path string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
