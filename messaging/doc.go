// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package messaging wraps the parts of the Matrix client-server API
// that wifisync needs to run private credential rooms.
//
// [Client] is unauthenticated and holds the homeserver URL, HTTP
// transport, and clock. [Client.Login] returns a [Session] that carries
// the access token in mmap-backed secret memory; callers must Close it.
//
// Session groups its methods by concern:
//
//   - rooms: CreateSecureRoom (private room plus locked-down power
//     levels), InviteUser, JoinedRooms, RoomName, GetRoomMembers,
//     DeleteRoom (leave then forget);
//   - messages: SendMessage, EditMessage (m.replace), RoomMessages,
//     FindMessages and LastMessage.
//
// FindMessages returns the effective view of a room's history: an
// edit is folded into the event it replaces (latest body, original
// timestamp and event id) and never appears on its own. LastMessage
// works on the same view, so masking an old message never counts as
// a newer message in the room.
//
// Every request that receives HTTP 429 is retried after the server's
// retry_after_ms (1000 when absent) plus 250ms, up to five attempts
// in total. Sleeping goes through lib/clock so tests can drive it.
//
// All API errors are returned as [*MatrixError] with the Matrix error
// code and HTTP status. [IsMatrixError] and [IsRateLimited] classify
// them. Request URLs are built by string concatenation with
// url.PathEscape on each segment.
package messaging
