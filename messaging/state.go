// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/bureau-foundation/wifisync/lib/ref"
)

// GetStateEvent fetches a state event's content from a room and
// returns the raw JSON.
func (s *Session) GetStateEvent(ctx context.Context, roomID ref.RoomID, eventType, stateKey string) (json.RawMessage, error) {
	body, err := s.request(ctx, http.MethodGet, statePath(roomID, eventType, stateKey), nil)
	if err != nil {
		return nil, fmt.Errorf("messaging: get state event %s/%s in %q failed: %w", eventType, stateKey, roomID, err)
	}
	return json.RawMessage(body), nil
}

// SendStateEvent sets a state event in a room and returns its event ID.
func (s *Session) SendStateEvent(ctx context.Context, roomID ref.RoomID, eventType, stateKey string, content any) (ref.EventID, error) {
	body, err := s.request(ctx, http.MethodPut, statePath(roomID, eventType, stateKey), content)
	if err != nil {
		return ref.EventID{}, fmt.Errorf("messaging: send state event to %q failed: %w", roomID, err)
	}

	var response SendEventResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return ref.EventID{}, fmt.Errorf("messaging: failed to parse send state response: %w", err)
	}
	return response.EventID, nil
}

// GetState reads a state event and unmarshals its content into T:
//
//	name, err := messaging.GetState[messaging.RoomNameContent](ctx, session, roomID, messaging.EventTypeRoomName, "")
//
// A missing state event surfaces as an M_NOT_FOUND *MatrixError.
func GetState[T any](ctx context.Context, session *Session, roomID ref.RoomID, eventType, stateKey string) (T, error) {
	var zero T
	content, err := session.GetStateEvent(ctx, roomID, eventType, stateKey)
	if err != nil {
		return zero, err
	}
	var result T
	if err := json.Unmarshal(content, &result); err != nil {
		return zero, fmt.Errorf("messaging: unmarshaling %s from room %s: %w", eventType, roomID, err)
	}
	return result, nil
}

func statePath(roomID ref.RoomID, eventType, stateKey string) string {
	return fmt.Sprintf("/_matrix/client/v3/rooms/%s/state/%s/%s",
		url.PathEscape(roomID.String()),
		url.PathEscape(eventType),
		url.PathEscape(stateKey),
	)
}
