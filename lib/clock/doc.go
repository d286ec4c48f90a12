// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source for testability.
//
// Code that stamps records with the current time accepts a [Clock]
// instead of calling time.Now directly. In production, [Real] provides
// the standard library behavior. In tests, [Fake] provides a clock
// that stands still until Advance is called, so timestamps in stats
// and logs are deterministic:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	pool, err := sqlitepool.Open(sqlitepool.Config{Path: path, Clock: c})
//	// ...
//	c.Advance(5 * time.Second)
package clock
