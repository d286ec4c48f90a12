// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool provides a fixed-size pool of statement-caching
// SQLite connections.
//
// Each pooled connection is a [sqliteconn.Connection]: one engine
// handle plus a cache of compiled statements that lives as long as the
// handle. The pool's job is the part a Connection deliberately does
// not do: cross-goroutine safety. Callers [Pool.Take] a connection,
// use it (and its cached statements) exclusively, and [Pool.Put] it
// back. A connection is never held by two borrowers at once, so the
// Connection itself needs no locks.
//
// # Selection
//
// Connections open lazily, on a Take that finds no idle connection
// while the pool is below PoolSize. Connection N is opened with index
// N. When several connections are idle, Take hands out the one with
// the lowest use count, breaking ties by lowest index, and increments
// its use count. Spreading checkouts this way keeps every
// connection's statement cache warm for the queries callers actually
// run.
//
// # Usage
//
//	pool, err := sqlitepool.Open(sqlitepool.Config{
//	    Path:        "/var/bureau/state/state.db",
//	    Mode:        sqliteconn.ModeReadWriteCreate,
//	    BusyTimeout: 5 * time.Second,
//	    PoolSize:    4,
//	    Logger:      logger,
//	})
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
//	err = sqlitepool.With(ctx, pool, func(conn *sqliteconn.Connection) error {
//	    stmt, err := conn.Statement("SELECT value FROM items WHERE id = ?")
//	    if err != nil {
//	        return err
//	    }
//	    stmt.BindInt64(1, id)
//	    _, err = stmt.Step()
//	    return err
//	})
//
// # Design
//
// [Borrower] is the capability a component needs to use the pool:
// Take and Put, nothing else. Components accept a Borrower rather than
// a *Pool so tests and wrappers can substitute their own checkout
// policy. Busy timeouts are applied per connection; neither the pool
// nor the connections retry on contention.
package sqlitepool
