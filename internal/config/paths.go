package config

import (
	"os"
	"path/filepath"
)

const (
	// EnvConfigPath is the environment variable for explicit config path
	EnvConfigPath = "FACTER_CONFIG"
	// EnvPrefix prefixes environment overrides, e.g. FACTER_LOG_LEVEL
	EnvPrefix = "FACTER"
	// ConfigFileName is the default config file name
	ConfigFileName = "facter.yaml"
	// ConfigDirName is the config directory name under XDG
	ConfigDirName = "facter"
)

// FindConfigPath searches for config file in priority order:
// 1. $FACTER_CONFIG (explicit path)
// 2. ./facter.yaml (working directory)
// 3. $XDG_CONFIG_HOME/facter/config.yaml
// 4. ~/.config/facter/config.yaml
// 5. /etc/facter/config.yaml
//
// Returns empty string if no config file found
func FindConfigPath() string {
	// 1. Explicit environment variable
	if path := os.Getenv(EnvConfigPath); path != "" {
		if fileExists(path) {
			return path
		}
	}

	// 2. Working directory
	if fileExists(ConfigFileName) {
		if abs, err := filepath.Abs(ConfigFileName); err == nil {
			return abs
		}
		return ConfigFileName
	}

	// 3. XDG config home
	if xdgHome := os.Getenv("XDG_CONFIG_HOME"); xdgHome != "" {
		path := filepath.Join(xdgHome, ConfigDirName, "config.yaml")
		if fileExists(path) {
			return path
		}
	}

	// 4. Default XDG location (~/.config)
	if home := os.Getenv("HOME"); home != "" {
		path := filepath.Join(home, ".config", ConfigDirName, "config.yaml")
		if fileExists(path) {
			return path
		}
	}

	// 5. System-wide
	systemPath := filepath.Join("/etc", ConfigDirName, "config.yaml")
	if fileExists(systemPath) {
		return systemPath
	}

	return ""
}

// DefaultConfigPath returns the preferred location for a new config file
func DefaultConfigPath() string {
	if xdgHome := os.Getenv("XDG_CONFIG_HOME"); xdgHome != "" {
		return filepath.Join(xdgHome, ConfigDirName, "config.yaml")
	}
	if home := os.Getenv("HOME"); home != "" {
		return filepath.Join(home, ".config", ConfigDirName, "config.yaml")
	}
	return ConfigFileName
}

// DefaultExternalDirs returns the external fact directories used when none
// are configured. The superuser reads the system directories; other users
// read ~/.facter/facts.d.
func DefaultExternalDirs(euid int, home string) []string {
	if euid == 0 {
		return []string{
			"/etc/facter/facts.d",
			"/etc/puppetlabs/facter/facts.d",
		}
	}
	if home == "" {
		return nil
	}
	return []string{filepath.Join(home, ".facter", "facts.d")}
}

// DefaultDatabasePath returns the snapshot database location:
// $XDG_DATA_HOME/facter/facter.db, ~/.local/share/facter/facter.db or
// ./facter.db
func DefaultDatabasePath() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, ConfigDirName, "facter.db")
	}
	if home := os.Getenv("HOME"); home != "" {
		return filepath.Join(home, ".local", "share", ConfigDirName, "facter.db")
	}
	return "./facter.db"
}

// EnsureConfigDir creates the directory of a file path if it doesn't exist
func EnsureConfigDir(configPath string) error {
	dir := filepath.Dir(configPath)
	return os.MkdirAll(dir, 0755)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
