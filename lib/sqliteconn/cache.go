// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sqliteconn

import (
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
)

// statementCache maps exact query text to the compiled statement it
// owns. Entries are added on first use and removed only by
// finalizeAll when the owning Connection closes.
//
// The cache is single-writer and never locks. inUse makes an
// overlapping get panic; it does not serialize callers.
type statementCache struct {
	statements map[string]Statement
	hits       int
	misses     int
	inUse      atomic.Bool
}

func newStatementCache() *statementCache {
	return &statementCache{statements: make(map[string]Statement)}
}

func (c *statementCache) has(query string) bool {
	_, ok := c.statements[query]
	return ok
}

// get returns the statement for query, compiling it on db if this is
// the first request for that exact text. A cached statement is reset
// and its bindings cleared before it is returned. A failed compile
// leaves the cache untouched.
func (c *statementCache) get(db Database, query string) (Statement, error) {
	if !c.inUse.CompareAndSwap(false, true) {
		panic("sqliteconn: concurrent use of a Connection's statement cache")
	}
	defer c.inUse.Store(false)

	if stmt, ok := c.statements[query]; ok {
		if err := stmt.Reset(); err != nil {
			if isBusy(err) {
				return nil, &BusyError{Op: "reset", Err: err}
			}
			return nil, fmt.Errorf("sqliteconn: reset %q: %w", query, err)
		}
		if err := stmt.ClearBindings(); err != nil {
			return nil, fmt.Errorf("sqliteconn: clear bindings %q: %w", query, err)
		}
		c.hits++
		return stmt, nil
	}

	stmt, err := db.Compile(query)
	if err != nil {
		if isBusy(err) {
			return nil, &BusyError{Op: "compile", Err: err}
		}
		return nil, &CompileError{Query: query, Err: err}
	}
	c.statements[query] = stmt
	c.misses++
	return stmt, nil
}

// queries returns the cached query texts in sorted order.
func (c *statementCache) queries() []string {
	queries := make([]string, 0, len(c.statements))
	for query := range c.statements {
		queries = append(queries, query)
	}
	sort.Strings(queries)
	return queries
}

// finalizeAll finalizes every cached statement, continuing past
// failures, and empties the cache.
func (c *statementCache) finalizeAll() error {
	var errs []error
	for query, stmt := range c.statements {
		if err := stmt.Finalize(); err != nil {
			errs = append(errs, fmt.Errorf("sqliteconn: finalize %q: %w", query, err))
		}
	}
	clear(c.statements)
	return errors.Join(errs...)
}
