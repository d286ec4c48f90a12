// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/sqlitecache/lib/sqliteconn"
	"github.com/bureau-foundation/sqlitecache/lib/sqlitepool"
)

// EnvVar names the environment variable Load reads the config path
// from.
const EnvVar = "SQLITECACHE_CONFIG"

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Config is the master configuration.
type Config struct {
	// Environment identifies the deployment type (development, staging, production).
	Environment Environment `yaml:"environment"`

	// Database configures the connection pool and its connections.
	Database DatabaseConfig `yaml:"database"`

	// Log configures the structured logger.
	Log LogConfig `yaml:"log"`

	// Per-environment overrides, applied after the base config is
	// loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Database *DatabaseConfig `yaml:"database,omitempty"`
	Log      *LogConfig      `yaml:"log,omitempty"`
}

// DatabaseConfig configures the SQLite database and connection pool.
type DatabaseConfig struct {
	// Path is the database file. ${HOME} and ${VAR:-default} patterns
	// are expanded after loading.
	Path string `yaml:"path"`

	// Mode is the access mode: read-only, read-write, or
	// read-write-create.
	// Default: read-write-create
	Mode string `yaml:"mode"`

	// BusyTimeout is how long a connection waits on a contended lock
	// before failing, as a Go duration ("5s", "250ms"). "0" fails
	// immediately.
	// Default: 5s
	BusyTimeout string `yaml:"busy_timeout"`

	// PoolSize is the maximum number of connections. Zero lets the
	// pool pick max(NumCPU, 4).
	PoolSize int `yaml:"pool_size"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	// Default: info
	Level string `yaml:"level"`

	// Format is text or json.
	// Default: text (development), json (production)
	Format string `yaml:"format"`
}

// Default returns the default configuration. These defaults are the
// base the config file is merged into; every field ends up with a
// usable value even when the file only sets a few.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Environment: Development,
		Database: DatabaseConfig{
			Path:        filepath.Join(homeDir, ".cache", "sqlitecache", "sqlitecache.db"),
			Mode:        sqliteconn.ModeReadWriteCreate.String(),
			BusyTimeout: "5s",
			PoolSize:    0,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from the file named by SQLITECACHE_CONFIG.
//
// There are no fallbacks: if the variable is not set, this fails.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvVar)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your config file, or use --config flag", EnvVar)
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. Environment variables
// do not override config values; the only expansion performed is
// ${HOME} and similar variables inside database.path.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	return cfg, nil
}

// loadFile merges a single configuration file into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return nil
}

// applyEnvironmentOverrides applies the section matching Environment.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		// Production defaults: machine-readable logs.
		if overrides == nil {
			overrides = &ConfigOverrides{
				Log: &LogConfig{Format: "json"},
			}
		}
	}

	if overrides == nil {
		return
	}

	if overrides.Database != nil {
		if overrides.Database.Path != "" {
			c.Database.Path = overrides.Database.Path
		}
		if overrides.Database.Mode != "" {
			c.Database.Mode = overrides.Database.Mode
		}
		if overrides.Database.BusyTimeout != "" {
			c.Database.BusyTimeout = overrides.Database.BusyTimeout
		}
		if overrides.Database.PoolSize != 0 {
			c.Database.PoolSize = overrides.Database.PoolSize
		}
	}

	if overrides.Log != nil {
		if overrides.Log.Level != "" {
			c.Log.Level = overrides.Log.Level
		}
		if overrides.Log.Format != "" {
			c.Log.Format = overrides.Log.Format
		}
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Database.Path = expandVars(c.Database.Path, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors, reporting all of them.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Database.Path == "" {
		errs = append(errs, fmt.Errorf("database.path is required"))
	}
	if _, err := c.Database.AccessMode(); err != nil {
		errs = append(errs, fmt.Errorf("database.mode: %w", err))
	}
	if _, err := c.Database.BusyTimeoutDuration(); err != nil {
		errs = append(errs, fmt.Errorf("database.busy_timeout: %w", err))
	}
	if c.Database.PoolSize < 0 {
		errs = append(errs, fmt.Errorf("database.pool_size must not be negative, got %d", c.Database.PoolSize))
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format must be one of: [text json]"))
	}

	return errors.Join(errs...)
}

// PoolConfig converts the database section into a sqlitepool.Config.
// Call Validate first; PoolConfig reports only the first parse error.
func (c *Config) PoolConfig(logger *slog.Logger) (sqlitepool.Config, error) {
	mode, err := c.Database.AccessMode()
	if err != nil {
		return sqlitepool.Config{}, fmt.Errorf("config: database.mode: %w", err)
	}
	busyTimeout, err := c.Database.BusyTimeoutDuration()
	if err != nil {
		return sqlitepool.Config{}, fmt.Errorf("config: database.busy_timeout: %w", err)
	}
	return sqlitepool.Config{
		Path:        c.Database.Path,
		Mode:        mode,
		BusyTimeout: busyTimeout,
		PoolSize:    c.Database.PoolSize,
		Logger:      logger,
	}, nil
}

// AccessMode parses Mode.
func (d DatabaseConfig) AccessMode() (sqliteconn.Mode, error) {
	return sqliteconn.ParseMode(d.Mode)
}

// BusyTimeoutDuration parses BusyTimeout. A bare "0" is accepted.
func (d DatabaseConfig) BusyTimeoutDuration() (time.Duration, error) {
	if strings.TrimSpace(d.BusyTimeout) == "0" {
		return 0, nil
	}
	timeout, err := time.ParseDuration(d.BusyTimeout)
	if err != nil {
		return 0, err
	}
	if timeout < 0 {
		return 0, fmt.Errorf("must not be negative, got %v", timeout)
	}
	return timeout, nil
}

// SlogLevel parses Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo, err
	}
	return level, nil
}

// NewLogger builds the configured slog handler writing to w.
func (l LogConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := l.SlogLevel()
	if err != nil {
		return nil, fmt.Errorf("config: log.level: %w", err)
	}
	options := &slog.HandlerOptions{Level: level}
	switch l.Format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, options)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, options)), nil
	default:
		return nil, fmt.Errorf("config: unknown log.format %q", l.Format)
	}
}
