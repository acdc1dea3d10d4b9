package config

import (
	"os"
	"path/filepath"
)

// DefaultConfigPath returns the per-user config file location, honoring
// XDG_CONFIG_HOME.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.toml")
}

// DefaultLocalDBPath returns the default embedded-database path when
// local_db_path is not configured.
func DefaultLocalDBPath() string {
	return filepath.Join(configDir(), "docsync.db")
}

func configDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "docsync")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ".docsync"
	}

	return filepath.Join(home, ".config", "docsync")
}
