// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sqliteconn

import (
	"errors"
	"fmt"

	"zombiezen.com/go/sqlite"
)

// ErrClosed is returned by operations on a Connection after Close.
var ErrClosed = errors.New("sqliteconn: connection closed")

// OpenError reports a failure to open the engine handle: a missing or
// inaccessible file, a permission problem, or a mode that does not fit
// the file (such as read-only on a path that does not exist).
type OpenError struct {
	Path string
	Mode Mode
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("sqliteconn: open %s (%s): %v", e.Path, e.Mode, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

// CompileError reports SQL text the engine could not compile. The
// statement cache is unchanged when this is returned.
type CompileError struct {
	Query string
	Err   error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("sqliteconn: compile %q: %v", e.Query, e.Err)
}

func (e *CompileError) Unwrap() error { return e.Err }

// BusyError reports lock contention that persisted past the
// connection's busy timeout. Op names the operation that waited
// ("compile" or "reset").
type BusyError struct {
	Op  string
	Err error
}

func (e *BusyError) Error() string {
	return fmt.Sprintf("sqliteconn: %s: database busy: %v", e.Op, e.Err)
}

func (e *BusyError) Unwrap() error { return e.Err }

// isBusy reports whether err carries a SQLITE_BUSY or SQLITE_LOCKED
// primary result code.
func isBusy(err error) bool {
	switch sqlite.ErrCode(err).ToPrimary() {
	case sqlite.ResultBusy, sqlite.ResultLocked:
		return true
	default:
		return false
	}
}
