// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil provides bounded HTTP response reading for the JSON
// APIs wifisync talks to (the Matrix client-server API and the
// ChurchTools REST API). Every body read stops at MaxResponseSize so a
// misbehaving server cannot exhaust memory.
package netutil

import "io"

// MaxResponseSize bounds JSON API response body reads at 64 MB. A
// ChurchTools group member page or a Matrix /messages page is orders
// of magnitude smaller.
const MaxResponseSize int64 = 64 << 20

// ReadResponse reads a response body up to MaxResponseSize bytes.
func ReadResponse(body io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(body, MaxResponseSize))
}
