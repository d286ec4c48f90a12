// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sqliteconn

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Options configures Open. The zero value opens read-only with no busy
// timeout and index 0.
type Options struct {
	// Mode is the access mode. Fixed for the Connection's lifetime.
	Mode Mode

	// BusyTimeout bounds how long the engine retries a contended lock
	// before failing with BusyError. Zero fails immediately. Negative
	// values are rejected.
	BusyTimeout time.Duration

	// Index is an opaque identity assigned by the owning pool. The
	// Connection stores it and never interprets it.
	Index int

	// Logger receives open/close messages and per-compile debug
	// records. If nil, a no-op logger is used.
	Logger *slog.Logger

	// Opener opens the engine handle. If nil, OpenSQLite is used.
	// Tests substitute an instrumented engine here.
	Opener Opener
}

// Connection owns one engine handle and the statements compiled on it.
// See the package documentation for the concurrency contract.
type Connection struct {
	path        string
	mode        Mode
	busyTimeout time.Duration
	index       int
	useCount    int

	database Database
	cache    *statementCache
	logger   *slog.Logger
	closed   bool
}

// Stats is a snapshot of a Connection's statement cache.
type Stats struct {
	StatementCount int
	Hits           int
	Misses         int
	Queries        []string
}

// Open opens path in the given mode and returns a Connection with an
// empty statement cache. Any failure to open the handle is an
// *OpenError.
func Open(path string, options Options) (*Connection, error) {
	if path == "" {
		return nil, &OpenError{Path: path, Mode: options.Mode, Err: errors.New("path is required")}
	}
	if options.BusyTimeout < 0 {
		return nil, &OpenError{Path: path, Mode: options.Mode,
			Err: fmt.Errorf("busy timeout must not be negative, got %v", options.BusyTimeout)}
	}

	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	opener := options.Opener
	if opener == nil {
		opener = OpenSQLite
	}

	database, err := opener(path, AccessFlags(options.Mode), options.BusyTimeout)
	if err != nil {
		return nil, &OpenError{Path: path, Mode: options.Mode, Err: err}
	}

	logger.Info("sqlite connection opened",
		"path", path,
		"mode", options.Mode.String(),
		"busy_timeout", options.BusyTimeout,
		"index", options.Index,
	)

	return &Connection{
		path:        path,
		mode:        options.Mode,
		busyTimeout: options.BusyTimeout,
		index:       options.Index,
		database:    database,
		cache:       newStatementCache(),
		logger:      logger,
	}, nil
}

// Database returns the owned engine handle. There is no read-only
// variant: any use of the handle, and any statement cache access, is a
// mutation that requires exclusive use of the Connection.
func (c *Connection) Database() Database {
	return c.database
}

// HasStatement reports whether query is already compiled and cached.
// It never compiles.
func (c *Connection) HasStatement(query string) bool {
	return c.cache.has(query)
}

// Statement returns the cached statement for query, compiling it on
// first use. A previously used statement comes back with its cursor
// rewound and all bindings cleared.
//
// The returned Statement is owned by the Connection. Callers must not
// Finalize it, and must not use it after Close or concurrently with
// any other call on this Connection.
func (c *Connection) Statement(query string) (Statement, error) {
	if c.closed {
		return nil, ErrClosed
	}
	if !containsSQL(query) {
		return nil, &CompileError{Query: query, Err: errEmptyStatement}
	}

	cached := c.cache.has(query)
	stmt, err := c.cache.get(c.database, query)
	if err != nil {
		return nil, err
	}
	if !cached {
		c.logger.Debug("statement compiled",
			"index", c.index,
			"query_digest", QueryDigest(query),
			"cached_statements", len(c.cache.statements),
		)
	}
	return stmt, nil
}

// Increment records one more use of the Connection. Pools call it on
// every checkout.
func (c *Connection) Increment() {
	c.useCount++
}

// UseCount returns the number of Increment calls.
func (c *Connection) UseCount() int {
	return c.useCount
}

// Index returns the identity supplied at Open.
func (c *Connection) Index() int {
	return c.index
}

// Path returns the database path supplied at Open.
func (c *Connection) Path() string {
	return c.path
}

// Mode returns the access mode supplied at Open.
func (c *Connection) Mode() Mode {
	return c.mode
}

// BusyTimeout returns the busy timeout supplied at Open.
func (c *Connection) BusyTimeout() time.Duration {
	return c.busyTimeout
}

// Stats returns a snapshot of the statement cache.
func (c *Connection) Stats() Stats {
	stats := c.CacheCounts()
	stats.Queries = c.cache.queries()
	return stats
}

// CacheCounts is Stats without Queries. It does not allocate.
func (c *Connection) CacheCounts() Stats {
	return Stats{
		StatementCount: len(c.cache.statements),
		Hits:           c.cache.hits,
		Misses:         c.cache.misses,
	}
}

// Close finalizes every cached statement and then closes the engine
// handle. Both steps always run, whatever failed before; the returned
// error joins every failure. Closing an already closed Connection is a
// no-op.
func (c *Connection) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true

	statementCount := len(c.cache.statements)
	finalizeErr := c.cache.finalizeAll()
	var closeErr error
	if err := c.database.Close(); err != nil {
		closeErr = fmt.Errorf("sqliteconn: close %s: %w", c.path, err)
	}

	if err := errors.Join(finalizeErr, closeErr); err != nil {
		c.logger.Error("sqlite connection close error",
			"path", c.path,
			"index", c.index,
			"error", err,
		)
		return err
	}
	c.logger.Info("sqlite connection closed",
		"path", c.path,
		"index", c.index,
		"statements", statementCount,
		"uses", c.useCount,
	)
	return nil
}
