// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sqliteconn

import (
	"fmt"
	"strings"

	"zombiezen.com/go/sqlite"
)

// Mode is the access mode a Connection is opened with. It is fixed for
// the lifetime of the Connection.
type Mode int

const (
	// ModeReadOnly opens an existing database for reading. This is the
	// zero value.
	ModeReadOnly Mode = iota

	// ModeReadWrite opens an existing database for reading and writing.
	// The file is never created.
	ModeReadWrite

	// ModeReadWriteCreate opens a database for reading and writing,
	// creating the file if it does not exist.
	ModeReadWriteCreate
)

// AccessFlags converts a Mode to the engine's native open flags. Values
// outside the defined set map to read-only.
func AccessFlags(mode Mode) sqlite.OpenFlags {
	switch mode {
	case ModeReadWrite:
		return sqlite.OpenReadWrite
	case ModeReadWriteCreate:
		return sqlite.OpenReadWrite | sqlite.OpenCreate
	default:
		return sqlite.OpenReadOnly
	}
}

// String returns the configuration name of the mode.
func (m Mode) String() string {
	switch m {
	case ModeReadOnly:
		return "read-only"
	case ModeReadWrite:
		return "read-write"
	case ModeReadWriteCreate:
		return "read-write-create"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode parses a mode name as produced by [Mode.String]. Matching
// is case-insensitive and accepts underscores in place of hyphens.
func ParseMode(name string) (Mode, error) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", "-") {
	case "read-only":
		return ModeReadOnly, nil
	case "read-write":
		return ModeReadWrite, nil
	case "read-write-create":
		return ModeReadWriteCreate, nil
	default:
		return ModeReadOnly, fmt.Errorf("sqliteconn: unknown mode %q (want read-only, read-write, or read-write-create)", name)
	}
}
