// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds helpers shared by wifisync tests.
//
// Tests drive time with clock.Fake. [RequireReceive] is the one place
// a real timeout appears: it keeps a goroutine-based test from hanging
// forever when the code under test never reports back.
package testutil
