// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sqliteconn

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// QueryDigest returns a short, stable fingerprint of query text for
// logs and stats. It is the first 8 bytes of the BLAKE3 hash, hex
// encoded. The cache itself is keyed by the full text, never by this
// digest.
func QueryDigest(query string) string {
	sum := blake3.Sum256([]byte(query))
	return hex.EncodeToString(sum[:8])
}
