// Package config provides configuration management for facter.
//
// Settings come from a YAML config file, FACTER_* environment variables and
// command line flags, in increasing order of precedence.
//
// Config file locations (priority order):
//  1. $FACTER_CONFIG
//  2. ./facter.yaml
//  3. $XDG_CONFIG_HOME/facter/config.yaml
//  4. ~/.config/facter/config.yaml
//  5. /etc/facter/config.yaml
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	DefaultExecTimeout = 30 * time.Second
	DefaultConcurrency = 4
	DefaultLogLevel    = "warn"
	DefaultDebounce    = 500 * time.Millisecond
	DefaultServeAddr   = "127.0.0.1:8340"
)

// Configuration keys, shared with flag bindings
const (
	KeyExternalDirs  = "external_dirs"
	KeyCustomDirs    = "custom_dirs"
	KeyNoExternal    = "no_external"
	KeyExecTimeout   = "exec_timeout"
	KeyConcurrency   = "concurrency"
	KeyLogLevel      = "log_level"
	KeyDatabasePath  = "database.path"
	KeyWatchDebounce = "watch.debounce"
	KeyServeAddr     = "serve.addr"
)

// LoadOptions controls where configuration is read from
type LoadOptions struct {
	// ConfigFile is used exclusively when set; it must exist
	ConfigFile string

	// Viper carries flag bindings; a fresh instance is used when nil
	Viper *viper.Viper
}

// Load finds and loads the config file, or returns defaults if none found
func Load() (*Config, string, error) {
	return LoadWithOptions(LoadOptions{})
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	return LoadWithOptions(LoadOptions{ConfigFile: path})
}

// LoadWithOptions merges defaults, the config file, environment variables
// and any flags bound to opts.Viper
func LoadWithOptions(opts LoadOptions) (*Config, string, error) {
	v := opts.Viper
	if v == nil {
		v = viper.New()
	}

	defaults := DefaultConfig()
	v.SetDefault(KeyExecTimeout, defaults.ExecTimeout.Duration().String())
	v.SetDefault(KeyConcurrency, defaults.Concurrency)
	v.SetDefault(KeyLogLevel, defaults.LogLevel)
	v.SetDefault(KeyDatabasePath, defaults.Database.Path)
	v.SetDefault(KeyWatchDebounce, defaults.Watch.Debounce.Duration().String())
	v.SetDefault(KeyServeAddr, defaults.Serve.Addr)
	v.SetDefault(KeyNoExternal, false)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path := opts.ConfigFile
	if path != "" {
		if !fileExists(path) {
			return nil, path, fmt.Errorf("config file not found: %s", path)
		}
	} else {
		path = FindConfigPath()
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, path, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg, err := fromViper(v)
	if err != nil {
		return nil, path, err
	}
	cfg.applyDefaults()

	return cfg, path, nil
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Version:      v.GetInt("version"),
		ExternalDirs: stringList(v, KeyExternalDirs),
		CustomDirs:   stringList(v, KeyCustomDirs),
		NoExternal:   v.GetBool(KeyNoExternal),
		Concurrency:  v.GetInt(KeyConcurrency),
		LogLevel:     v.GetString(KeyLogLevel),
		Database:     DatabaseConfig{Path: v.GetString(KeyDatabasePath)},
		Serve:        ServeConfig{Addr: v.GetString(KeyServeAddr)},
	}

	timeout, err := duration(v, KeyExecTimeout)
	if err != nil {
		return nil, err
	}
	cfg.ExecTimeout = timeout

	debounce, err := duration(v, KeyWatchDebounce)
	if err != nil {
		return nil, err
	}
	cfg.Watch.Debounce = debounce

	return cfg, nil
}

// stringList reads a list setting. A plain string, as set by an environment
// variable, is split like PATH.
func stringList(v *viper.Viper, key string) []string {
	if s, ok := v.Get(key).(string); ok {
		var out []string
		for _, p := range filepath.SplitList(s) {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return v.GetStringSlice(key)
}

func duration(v *viper.Viper, key string) (Duration, error) {
	raw := v.Get(key)
	if s, ok := raw.(string); ok {
		d, err := time.ParseDuration(s)
		if err != nil {
			return 0, fmt.Errorf("parse %s: %w", key, err)
		}
		return Duration(d), nil
	}
	return Duration(v.GetDuration(key)), nil
}

// Save writes config to the specified path
func (c *Config) Save(path string) error {
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns sensible defaults for a new installation
func DefaultConfig() *Config {
	return &Config{
		Version:     1,
		ExecTimeout: Duration(DefaultExecTimeout),
		Concurrency: DefaultConcurrency,
		LogLevel:    DefaultLogLevel,
		Database:    DatabaseConfig{Path: DefaultDatabasePath()},
		Watch:       WatchConfig{Debounce: Duration(DefaultDebounce)},
		Serve:       ServeConfig{Addr: DefaultServeAddr},
	}
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}
	if c.ExecTimeout <= 0 {
		c.ExecTimeout = Duration(DefaultExecTimeout)
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.Database.Path == "" {
		c.Database.Path = DefaultDatabasePath()
	}
	if c.Watch.Debounce <= 0 {
		c.Watch.Debounce = Duration(DefaultDebounce)
	}
	if c.Serve.Addr == "" {
		c.Serve.Addr = DefaultServeAddr
	}
}

// ExternalSearchPath returns the external fact directories in precedence
// order: nothing when external facts are disabled, the configured
// directories, or the platform defaults
func (c *Config) ExternalSearchPath() []string {
	if c.NoExternal {
		return nil
	}
	if len(c.ExternalDirs) > 0 {
		return append([]string(nil), c.ExternalDirs...)
	}
	home, _ := os.UserHomeDir()
	return DefaultExternalDirs(os.Geteuid(), home)
}

// Level returns the configured log level, falling back to warn
func (c *Config) Level() log.Level {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.WarnLevel
	}
	return level
}
