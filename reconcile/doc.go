// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package reconcile keeps WiFi credentials in line with ChurchTools
// group membership and delivers them over Matrix.
//
// A pass runs in four steps. [ResolveRooms] maps each person's chat
// identity to the private room the sync account shares with them,
// recognising rooms by their rendered title. The planner then walks
// the eligible members followed by the ids that only exist in the
// credential store and emits a [Command] batch: every person gets a
// Hide, and at most one of Issue, Remove, or RejectUnknown. The batch
// is executed in order, one command at a time. Finally, rooms nobody
// but the sync account is left in are deleted, spaced out by the
// configured delay.
//
// Planning only reads. If any read fails the pass stops before a
// single command runs. Execution failures are isolated per command and
// reported together once the batch is done.
//
// [Engine.Run] repeats passes on an interval until its context is
// cancelled.
package reconcile
