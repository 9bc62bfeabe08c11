package config

import (
	"os"
	"path/filepath"
)

// configDir returns the imagepress configuration directory.
//
// Returns: ~/.config/imagepress, or "." if the home directory
// cannot be determined.
func configDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(homeDir, ".config", "imagepress")
}

// defaultSettingsPath returns the default user settings file path.
//
// Returns: ~/.config/imagepress/settings.json.
func defaultSettingsPath() string {
	return filepath.Join(configDir(), "settings.json")
}

// defaultHistoryPath returns the default compression log file path.
//
// Returns: ~/.config/imagepress/compression_log.json.
func defaultHistoryPath() string {
	return filepath.Join(configDir(), "compression_log.json")
}

// defaultSnapshotDBPath returns the default job snapshot database path.
//
// Returns: ~/.config/imagepress/jobs.db.
func defaultSnapshotDBPath() string {
	return filepath.Join(configDir(), "jobs.db")
}

// defaultConfigPath returns the default configuration file path.
//
// Returns: ~/.config/imagepress/config.yaml.
func defaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// DefaultWatchedFolder returns the folder watched when the user has not
// configured any: the platform Downloads directory if it exists.
//
// Returns an empty string when no sensible default is available.
func DefaultWatchedFolder() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	downloads := filepath.Join(homeDir, "Downloads")
	if info, err := os.Stat(downloads); err == nil && info.IsDir() {
		return downloads
	}

	return ""
}
