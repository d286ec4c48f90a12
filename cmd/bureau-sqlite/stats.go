// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"time"

	"github.com/bureau-foundation/sqlitecache/lib/config"
	"github.com/bureau-foundation/sqlitecache/lib/sqlitepool"
)

// statsSnapshot is the --stats-file format. Times are Unix
// milliseconds; zero means never.
type statsSnapshot struct {
	Path        string               `cbor:"path"`
	Mode        string               `cbor:"mode"`
	BusyTimeout string               `cbor:"busy_timeout"`
	WrittenAt   int64                `cbor:"written_at"`
	Connections []connectionSnapshot `cbor:"connections"`
}

type connectionSnapshot struct {
	Index        int   `cbor:"index"`
	UseCount     int   `cbor:"use_count"`
	Statements   int   `cbor:"statements"`
	Hits         int   `cbor:"hits"`
	Misses       int   `cbor:"misses"`
	LastReleased int64 `cbor:"last_released,omitempty"`
}

func newStatsSnapshot(cfg *config.Config, stats []sqlitepool.ConnectionStats, now time.Time) statsSnapshot {
	snapshot := statsSnapshot{
		Path:        cfg.Database.Path,
		Mode:        cfg.Database.Mode,
		BusyTimeout: cfg.Database.BusyTimeout,
		WrittenAt:   now.UnixMilli(),
		Connections: make([]connectionSnapshot, 0, len(stats)),
	}
	for _, entry := range stats {
		connection := connectionSnapshot{
			Index:      entry.Index,
			UseCount:   entry.UseCount,
			Statements: entry.Statements,
			Hits:       entry.Hits,
			Misses:     entry.Misses,
		}
		if !entry.LastReleased.IsZero() {
			connection.LastReleased = entry.LastReleased.UnixMilli()
		}
		snapshot.Connections = append(snapshot.Connections, connection)
	}
	return snapshot
}
