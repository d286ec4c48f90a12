// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for the SQLite
// connection pool and its command-line front end.
//
// Configuration is loaded from a single file specified by either the
// SQLITECACHE_CONFIG environment variable (via [Load]) or a --config
// flag (via [LoadFile]). There are no fallbacks, no ~/.config
// discovery, and no automatic file search.
//
// The file supports environment-specific sections (development,
// staging, production) that override base values when
// [Config].Environment matches. Production defaults to JSON logs when
// it has no section of its own.
//
// ${HOME} and ${VAR:-default} patterns are expanded in database.path
// after loading. No other environment variables override config
// values.
//
// Key exports:
//
//   - [Config] -- master struct with Database and Log sections
//   - [Default] -- returns a Config with development defaults
//   - [Load] and [LoadFile] -- the two entry points for loading
//   - [Config.PoolConfig] -- the database section as a sqlitepool.Config
package config
