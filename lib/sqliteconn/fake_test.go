// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sqliteconn

import (
	"errors"
	"strconv"
	"time"

	"zombiezen.com/go/sqlite"
)

// fakeEngine is an instrumented engine. Every compile is counted and
// every lifecycle event is appended to events so tests can check
// ordering (all finalizes before close).
type fakeEngine struct {
	compiles int
	events   []string

	// failCompile, when non-nil, decides whether a compile fails.
	failCompile func(query string) error
	// failFinalize makes Finalize fail for these queries.
	failFinalize map[string]bool
	// failReset, when non-nil, is returned by every Reset.
	failReset error

	openedPath  string
	openedFlags sqlite.OpenFlags
	openedBusy  time.Duration
	statements  []*fakeStatement
	closed      bool
}

func (e *fakeEngine) opener() Opener {
	return func(path string, flags sqlite.OpenFlags, busyTimeout time.Duration) (Database, error) {
		e.openedPath = path
		e.openedFlags = flags
		e.openedBusy = busyTimeout
		return e, nil
	}
}

func (e *fakeEngine) Compile(query string) (Statement, error) {
	if e.failCompile != nil {
		if err := e.failCompile(query); err != nil {
			return nil, err
		}
	}
	e.compiles++
	e.events = append(e.events, "compile "+query)
	stmt := &fakeStatement{engine: e, query: query, bindings: make(map[int]string)}
	e.statements = append(e.statements, stmt)
	return stmt, nil
}

func (e *fakeEngine) Close() error {
	e.closed = true
	e.events = append(e.events, "close")
	return nil
}

// fakeStatement returns three rows (1, 2, 3) per execution and tracks
// bindings so tests can see that a cache hit clears them.
type fakeStatement struct {
	engine    *fakeEngine
	query     string
	bindings  map[int]string
	cursor    int
	resets    int
	clears    int
	finalized bool
}

func (s *fakeStatement) Reset() error {
	s.resets++
	if s.engine.failReset != nil {
		return s.engine.failReset
	}
	s.cursor = 0
	return nil
}

func (s *fakeStatement) ClearBindings() error {
	s.clears++
	clear(s.bindings)
	return nil
}

func (s *fakeStatement) Finalize() error {
	s.finalized = true
	s.engine.events = append(s.engine.events, "finalize "+s.query)
	if s.engine.failFinalize[s.query] {
		return errors.New("finalize failed")
	}
	return nil
}

func (s *fakeStatement) Step() (bool, error) {
	if s.cursor >= 3 {
		return false, nil
	}
	s.cursor++
	return true, nil
}

func (s *fakeStatement) BindParamCount() int { return len(s.bindings) }

func (s *fakeStatement) BindInt64(param int, value int64) {
	s.bindings[param] = strconv.FormatInt(value, 10)
}

func (s *fakeStatement) BindFloat(param int, value float64) {
	s.bindings[param] = strconv.FormatFloat(value, 'g', -1, 64)
}

func (s *fakeStatement) BindText(param int, value string) { s.bindings[param] = value }

func (s *fakeStatement) BindBytes(param int, value []byte) { s.bindings[param] = string(value) }

func (s *fakeStatement) BindNull(param int) { delete(s.bindings, param) }

func (s *fakeStatement) ColumnCount() int { return 1 }

func (s *fakeStatement) ColumnName(int) string { return "n" }

func (s *fakeStatement) ColumnText(int) string { return strconv.Itoa(s.cursor) }

func (s *fakeStatement) ColumnInt64(int) int64 { return int64(s.cursor) }
