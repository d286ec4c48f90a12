// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/sqlitecache/lib/sqliteconn"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sqlitecache.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Environment != Development {
		t.Errorf("expected environment=development, got %s", cfg.Environment)
	}
	if cfg.Database.Mode != "read-write-create" {
		t.Errorf("expected mode=read-write-create, got %s", cfg.Database.Mode)
	}
	if cfg.Database.BusyTimeout != "5s" {
		t.Errorf("expected busy_timeout=5s, got %s", cfg.Database.BusyTimeout)
	}
	if !strings.HasSuffix(cfg.Database.Path, filepath.Join(".cache", "sqlitecache", "sqlitecache.db")) {
		t.Errorf("unexpected default path %s", cfg.Database.Path)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoad_RequiresEnvVar(t *testing.T) {
	t.Setenv(EnvVar, "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when SQLITECACHE_CONFIG not set, got nil")
	}
	if !strings.HasPrefix(err.Error(), "SQLITECACHE_CONFIG environment variable not set") {
		t.Errorf("unexpected error message %q", err.Error())
	}
}

func TestLoad_WithEnvVar(t *testing.T) {
	path := writeConfig(t, `
environment: staging
database:
  path: /srv/data/items.db
  pool_size: 2
`)
	t.Setenv(EnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Environment != Staging {
		t.Errorf("expected environment=staging, got %s", cfg.Environment)
	}
	if cfg.Database.Path != "/srv/data/items.db" {
		t.Errorf("expected path=/srv/data/items.db, got %s", cfg.Database.Path)
	}
	if cfg.Database.PoolSize != 2 {
		t.Errorf("expected pool_size=2, got %d", cfg.Database.PoolSize)
	}
	// Unset fields keep their defaults.
	if cfg.Database.BusyTimeout != "5s" {
		t.Errorf("expected busy_timeout=5s, got %s", cfg.Database.BusyTimeout)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadFile_Malformed(t *testing.T) {
	path := writeConfig(t, "database: [not, a, map\n")
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, `
environment: production
database:
  path: /dev/items.db
  busy_timeout: 1s
production:
  database:
    path: /srv/items.db
    mode: read-only
  log:
    level: warn
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}

	if cfg.Database.Path != "/srv/items.db" {
		t.Errorf("expected production path override, got %s", cfg.Database.Path)
	}
	if cfg.Database.Mode != "read-only" {
		t.Errorf("expected production mode override, got %s", cfg.Database.Mode)
	}
	if cfg.Database.BusyTimeout != "1s" {
		t.Errorf("expected base busy_timeout kept, got %s", cfg.Database.BusyTimeout)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("expected level=warn, got %s", cfg.Log.Level)
	}
	// An explicit production section replaces the implicit json default.
	if cfg.Log.Format != "text" {
		t.Errorf("expected format=text, got %s", cfg.Log.Format)
	}
}

func TestProductionDefaultsToJSON(t *testing.T) {
	path := writeConfig(t, "environment: production\n")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("expected format=json in production, got %s", cfg.Log.Format)
	}
}

func TestOverridesForOtherEnvironmentIgnored(t *testing.T) {
	path := writeConfig(t, `
environment: development
database:
  path: /dev/items.db
staging:
  database:
    path: /staging/items.db
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}
	if cfg.Database.Path != "/dev/items.db" {
		t.Errorf("staging override leaked into development: %s", cfg.Database.Path)
	}
}

func TestEnvVarsDoNotOverride(t *testing.T) {
	t.Setenv("SQLITECACHE_DATABASE_PATH", "/from/env.db")
	path := writeConfig(t, "database:\n  path: /from/file.db\n")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}
	if cfg.Database.Path != "/from/file.db" {
		t.Errorf("environment variable overrode config: %s", cfg.Database.Path)
	}
}

func TestPathExpansion(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	t.Setenv("ITEMS_DIR", "")
	path := writeConfig(t, "database:\n  path: ${HOME}/${ITEMS_DIR:-items}/items.db\n")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}
	if cfg.Database.Path != "/home/tester/items/items.db" {
		t.Errorf("expected /home/tester/items/items.db, got %s", cfg.Database.Path)
	}
}

func TestExpandVars(t *testing.T) {
	t.Setenv("SQLITECACHE_TEST_SET", "from-env")
	t.Setenv("SQLITECACHE_TEST_UNSET", "")

	tests := []struct {
		input string
		vars  map[string]string
		want  string
	}{
		{"${HOME}/db", map[string]string{"HOME": "/home/a"}, "/home/a/db"},
		{"${SQLITECACHE_TEST_SET}/db", nil, "from-env/db"},
		{"${SQLITECACHE_TEST_UNSET:-/fallback}/db", nil, "/fallback/db"},
		{"${SQLITECACHE_TEST_UNSET}/db", nil, "/db"},
		{"/plain/path.db", nil, "/plain/path.db"},
	}

	for _, test := range tests {
		got := expandVars(test.input, test.vars)
		if got != test.want {
			t.Errorf("expandVars(%q) = %q, want %q", test.input, got, test.want)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"bad environment", func(c *Config) { c.Environment = "qa" }, "invalid environment"},
		{"empty path", func(c *Config) { c.Database.Path = "" }, "database.path is required"},
		{"bad mode", func(c *Config) { c.Database.Mode = "write-only" }, "database.mode"},
		{"bad timeout", func(c *Config) { c.Database.BusyTimeout = "soon" }, "database.busy_timeout"},
		{"negative timeout", func(c *Config) { c.Database.BusyTimeout = "-1s" }, "database.busy_timeout"},
		{"negative pool", func(c *Config) { c.Database.PoolSize = -1 }, "database.pool_size"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := Default()
			test.mutate(cfg)
			err := cfg.Validate()
			if test.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), test.wantErr) {
				t.Fatalf("expected error containing %q, got %v", test.wantErr, err)
			}
		})
	}
}

func TestValidateReportsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Database.Path = ""
	cfg.Log.Format = "xml"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"database.path", "log.format"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err.Error(), want)
		}
	}
}

func TestDatabaseAccessors(t *testing.T) {
	database := DatabaseConfig{Mode: "READ_WRITE", BusyTimeout: "0"}

	mode, err := database.AccessMode()
	if err != nil {
		t.Fatalf("AccessMode: %v", err)
	}
	if mode != sqliteconn.ModeReadWrite {
		t.Errorf("mode = %v, want read-write", mode)
	}

	timeout, err := database.BusyTimeoutDuration()
	if err != nil {
		t.Fatalf("BusyTimeoutDuration: %v", err)
	}
	if timeout != 0 {
		t.Errorf("timeout = %v, want 0", timeout)
	}

	database.BusyTimeout = "250ms"
	timeout, err = database.BusyTimeoutDuration()
	if err != nil {
		t.Fatalf("BusyTimeoutDuration: %v", err)
	}
	if timeout != 250*time.Millisecond {
		t.Errorf("timeout = %v, want 250ms", timeout)
	}
}

func TestPoolConfig(t *testing.T) {
	cfg := Default()
	cfg.Database.Path = "/srv/items.db"
	cfg.Database.Mode = "read-only"
	cfg.Database.BusyTimeout = "2s"
	cfg.Database.PoolSize = 3

	pool, err := cfg.PoolConfig(nil)
	if err != nil {
		t.Fatalf("PoolConfig: %v", err)
	}
	if pool.Path != "/srv/items.db" || pool.Mode != sqliteconn.ModeReadOnly ||
		pool.BusyTimeout != 2*time.Second || pool.PoolSize != 3 {
		t.Errorf("unexpected pool config %+v", pool)
	}

	cfg.Database.BusyTimeout = "later"
	if _, err := cfg.PoolConfig(nil); err == nil {
		t.Error("expected error for unparseable busy_timeout")
	}
}

func TestNewLogger(t *testing.T) {
	var buffer bytes.Buffer
	logger, err := LogConfig{Level: "warn", Format: "json"}.NewLogger(&buffer)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}

	logger.Info("dropped")
	logger.Warn("kept", "index", 3)

	output := buffer.String()
	if strings.Contains(output, "dropped") {
		t.Errorf("info message logged at warn level: %s", output)
	}
	if !strings.Contains(output, `"msg":"kept"`) || !strings.Contains(output, `"index":3`) {
		t.Errorf("unexpected json output: %s", output)
	}

	level, err := LogConfig{Level: "DEBUG"}.SlogLevel()
	if err != nil || level != slog.LevelDebug {
		t.Errorf("SlogLevel(DEBUG) = %v, %v", level, err)
	}

	if _, err := (LogConfig{Level: "info", Format: "xml"}).NewLogger(&buffer); err == nil {
		t.Error("expected error for unknown format")
	}
}
