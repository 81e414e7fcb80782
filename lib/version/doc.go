// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports build information for the wifisync binary.
//
// The variables are injected with -ldflags -X at build time and keep
// their "unknown" / "0.1.0-dev" defaults in development builds and
// tests:
//
//	go build -ldflags "-X github.com/bureau-foundation/wifisync/lib/version.GitCommit=$(git rev-parse --short HEAD)" ./cmd/wifisync
package version
