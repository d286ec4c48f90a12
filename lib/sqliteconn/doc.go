// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqliteconn provides a single SQLite connection that caches
// its compiled statements.
//
// A [Connection] owns one engine handle and a statement cache keyed by
// exact query text. The first [Connection.Statement] call for a query
// compiles it; every later call returns the same compiled statement
// after rewinding its cursor and clearing its bindings. Statements are
// never evicted: they live exactly as long as the Connection and are
// finalized by [Connection.Close] before the handle itself is closed.
//
//	conn, err := sqliteconn.Open("/var/bureau/state.db", sqliteconn.Options{
//	    Mode:        sqliteconn.ModeReadWriteCreate,
//	    BusyTimeout: time.Second,
//	})
//	if err != nil {
//	    return err
//	}
//	defer conn.Close()
//
//	stmt, err := conn.Statement("SELECT value FROM items WHERE id = ?")
//	if err != nil {
//	    return err
//	}
//	stmt.BindInt64(1, id)
//	hasRow, err := stmt.Step()
//
// # Concurrency
//
// A Connection is NOT safe for concurrent use, and it performs no
// locking of its own. Every method, including the read-looking
// [Connection.Database] accessor, must be called by at most one
// goroutine at a time: compiling a statement mutates the cache even
// though it does not write to the database. Sharing connections across
// goroutines is the job of a pool (see lib/sqlitepool) that hands each
// Connection to exactly one borrower at a time. Overlapping
// [Connection.Statement] calls are detected and panic.
//
// # Errors
//
// Failures are reported as [*OpenError] (construction), [*CompileError]
// (malformed SQL), or [*BusyError] (lock contention that outlasted the
// configured busy timeout). Nothing is retried internally.
//
// # Engine
//
// The engine is reached through the [Database] and [Statement]
// interfaces. [OpenSQLite] is the production implementation, built on
// zombiezen.com/go/sqlite; *sqlite.Stmt satisfies [Statement] directly.
package sqliteconn
