// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sqliteconn

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"zombiezen.com/go/sqlite"
)

// Statement is a compiled statement. It is the subset of *sqlite.Stmt
// that the cache and its callers use; *sqlite.Stmt satisfies it
// directly.
type Statement interface {
	Reset() error
	ClearBindings() error
	Finalize() error
	Step() (rowReturned bool, err error)

	BindParamCount() int
	BindInt64(param int, value int64)
	BindFloat(param int, value float64)
	BindText(param int, value string)
	BindBytes(param int, value []byte)
	BindNull(param int)

	ColumnCount() int
	ColumnName(col int) string
	ColumnText(col int) string
	ColumnInt64(col int) int64
}

// Database is an open engine handle. Compile returns a statement the
// caller owns and must eventually Finalize. The Connection is the only
// caller in this package, and it finalizes everything it compiles
// before calling Close.
type Database interface {
	Compile(query string) (Statement, error)
	Close() error
}

// Opener opens an engine handle at path with the given flags and busy
// timeout. A zero busy timeout means lock contention fails
// immediately.
type Opener func(path string, flags sqlite.OpenFlags, busyTimeout time.Duration) (Database, error)

// SQLiteDatabase is the production [Database], wrapping a single
// zombiezen.com/go/sqlite connection.
type SQLiteDatabase struct {
	conn *sqlite.Conn
}

var _ Database = (*SQLiteDatabase)(nil)

// OpenSQLite is the default [Opener]. It opens path with exactly the
// given flags (no WAL or URI flags are added) and replaces the
// library's default block-on-busy handler with a fixed busy timeout.
func OpenSQLite(path string, flags sqlite.OpenFlags, busyTimeout time.Duration) (Database, error) {
	conn, err := sqlite.OpenConn(path, flags)
	if err != nil {
		return nil, err
	}
	conn.SetBusyTimeout(busyTimeout)
	return &SQLiteDatabase{conn: conn}, nil
}

// Conn returns the underlying engine connection. Statements prepared
// directly on it are not tracked by the Connection's cache.
func (d *SQLiteDatabase) Conn() *sqlite.Conn {
	return d.conn
}

// Compile compiles exactly one SQL statement. The engine's own
// persistent statement cache is bypassed so that ownership stays with
// the caller. Text made only of comments, semicolons and whitespace
// compiles to no statement and is rejected, as is any SQL after the
// first statement.
func (d *SQLiteDatabase) Compile(query string) (Statement, error) {
	stmt, trailingBytes, err := d.conn.PrepareTransient(query)
	if err != nil {
		return nil, err
	}
	compiled, trailing := query[:len(query)-trailingBytes], query[len(query)-trailingBytes:]
	if !containsSQL(compiled) {
		// The engine hands back a statement with a NULL handle here;
		// finalizing it is a no-op.
		stmt.Finalize()
		return nil, errEmptyStatement
	}
	if containsSQL(trailing) {
		stmt.Finalize()
		return nil, fmt.Errorf("statement has trailing text %q", trailing)
	}
	return stmt, nil
}

// Close closes the engine connection.
func (d *SQLiteDatabase) Close() error {
	return d.conn.Close()
}

var errEmptyStatement = errors.New("empty statement")

// containsSQL reports whether text holds anything the SQLite tokenizer
// would not skip: whitespace, semicolons, "--" line comments and
// "/* */" block comments (an unterminated one runs to the end).
func containsSQL(text string) bool {
	for i := 0; i < len(text); {
		switch c := text[i]; {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == ';':
			i++
		case strings.HasPrefix(text[i:], "--"):
			end := strings.IndexByte(text[i:], '\n')
			if end < 0 {
				return false
			}
			i += end + 1
		case strings.HasPrefix(text[i:], "/*"):
			end := strings.Index(text[i+2:], "*/")
			if end < 0 {
				return false
			}
			i += 2 + end + 2
		default:
			return true
		}
	}
	return false
}
