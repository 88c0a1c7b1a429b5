package config

import (
	"os"
	"path/filepath"
)

// appDirName is the subdirectory under the user config dir.
const appDirName = "notes-go"

// DefaultConfigPath returns the default config file location,
// e.g. ~/.config/notes-go/config.toml on Linux.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.toml")
}

// DefaultSessionPath returns the default session file location. The session
// file holds the restored-at-startup credential and is created 0600.
func DefaultSessionPath() string {
	return filepath.Join(configDir(), "session.json")
}

// configDir resolves the per-user config directory, falling back to the
// current directory if the platform lookup fails (e.g. no HOME set).
func configDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return appDirName
	}

	return filepath.Join(base, appDirName)
}
