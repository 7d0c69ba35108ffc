package config

import (
	"time"
)

// Config is the root configuration structure
type Config struct {
	Version      int            `yaml:"version"`
	ExternalDirs []string       `yaml:"external_dirs,omitempty"` // empty = platform defaults
	CustomDirs   []string       `yaml:"custom_dirs,omitempty"`
	NoExternal   bool           `yaml:"no_external,omitempty"`
	ExecTimeout  Duration       `yaml:"exec_timeout"`
	Concurrency  int            `yaml:"concurrency"`
	LogLevel     string         `yaml:"log_level"`
	Database     DatabaseConfig `yaml:"database"`
	Watch        WatchConfig    `yaml:"watch"`
	Serve        ServeConfig    `yaml:"serve"`
}

// DatabaseConfig holds snapshot database settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// WatchConfig holds settings for the watch command
type WatchConfig struct {
	Debounce Duration `yaml:"debounce"`
}

// ServeConfig holds settings for the HTTP API
type ServeConfig struct {
	Addr string `yaml:"addr"`
}

// Duration wraps time.Duration for YAML unmarshaling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
