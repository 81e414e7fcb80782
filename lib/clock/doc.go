// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source.
//
// Code that reads the time or waits accepts a Clock instead of calling
// the time package directly. Production wires Real(); tests wire
// Fake() and move time with Advance:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	engine := reconcile.NewEngine(reconcile.Config{Clock: c, ...})
//	c.Advance(30 * time.Minute) // the next pass sees an expired credential
//
// Goroutines that block in Sleep or After register a waiter. Tests use
// WaitForTimers to know the waiter exists before calling Advance, so
// no test depends on wall-clock sleeps.
package clock
