// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the shared CBOR encoding configuration and
// the atomic snapshot file helpers built on it.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2), so the
// same logical value always produces identical bytes. Types that are
// only ever stored as CBOR carry `cbor` struct tags.
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
//	err = codec.WriteFile(path, snapshot)
//	err = codec.ReadFile(path, &snapshot)
package codec
