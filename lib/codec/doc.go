// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec is the single CBOR configuration used for values
// persisted by wifisync. Credential records are CBOR-encoded before
// age encryption, so the plaintext inside every ciphertext has a
// stable, versionable shape instead of a bare password string.
//
// Struct fields use `cbor:"name"` tags. Time values encode as
// RFC 3339 strings with nanoseconds.
package codec
