// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// [RequireReceive] encapsulates the timeout safety valve pattern
// (select with a time.After fallback) so that tests waiting on a
// goroutine's result, such as a pool Close blocked on borrowers, fail
// with a message instead of hanging the test binary. This is the only
// place in the test suite where real wall-clock timeouts are used.
//
// Helpers call t.Fatalf on failure rather than returning errors, since
// test setup failures are not recoverable.
//
// This package has no internal dependencies.
package testutil
