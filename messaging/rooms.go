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

// Power levels applied by SecureRoom. The session user keeps full
// control; invited members can talk but not moderate.
const (
	PowerLevelAdmin     = 100
	PowerLevelModerator = 50
	PowerLevelDefault   = 0
)

// CreateRoom creates a new Matrix room.
func (s *Session) CreateRoom(ctx context.Context, request CreateRoomRequest) (*CreateRoomResponse, error) {
	body, err := s.request(ctx, http.MethodPost, "/_matrix/client/v3/createRoom", request)
	if err != nil {
		return nil, fmt.Errorf("messaging: create room failed: %w", err)
	}

	var response CreateRoomResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("messaging: failed to parse create room response: %w", err)
	}
	if response.RoomID.IsZero() {
		return nil, fmt.Errorf("messaging: create room response carried no room id")
	}
	return &response, nil
}

// SecureRoom replaces the room's power levels so that only the session
// user can invite, kick, ban, redact, or change state.
func (s *Session) SecureRoom(ctx context.Context, roomID ref.RoomID) error {
	levels := PowerLevels{
		Users:         map[string]int{s.userID.String(): PowerLevelAdmin},
		UsersDefault:  PowerLevelDefault,
		EventsDefault: PowerLevelDefault,
		StateDefault:  PowerLevelModerator,
		Ban:           PowerLevelModerator,
		Kick:          PowerLevelModerator,
		Redact:        PowerLevelModerator,
		Invite:        PowerLevelModerator,
	}
	if _, err := s.SendStateEvent(ctx, roomID, EventTypePowerLevels, "", levels); err != nil {
		return fmt.Errorf("messaging: securing room %s: %w", roomID, err)
	}
	return nil
}

// CreateSecureRoom creates a private room with the given name and
// applies SecureRoom to it. If securing fails the room is left and
// forgotten so no half-configured room survives.
func (s *Session) CreateSecureRoom(ctx context.Context, name string) (ref.RoomID, error) {
	response, err := s.CreateRoom(ctx, CreateRoomRequest{
		Name:       name,
		Preset:     "private_chat",
		Visibility: "private",
	})
	if err != nil {
		return ref.RoomID{}, err
	}
	if err := s.SecureRoom(ctx, response.RoomID); err != nil {
		if deleteErr := s.DeleteRoom(ctx, response.RoomID); deleteErr != nil {
			s.client.logger.Warn("failed to discard unsecured room",
				"room_id", response.RoomID,
				"error", deleteErr,
			)
		}
		return ref.RoomID{}, err
	}
	return response.RoomID, nil
}

// InviteUser invites a user to a room.
func (s *Session) InviteUser(ctx context.Context, roomID ref.RoomID, userID ref.UserID) error {
	path := fmt.Sprintf("/_matrix/client/v3/rooms/%s/invite", url.PathEscape(roomID.String()))
	_, err := s.request(ctx, http.MethodPost, path, InviteRequest{UserID: userID})
	if err != nil {
		return fmt.Errorf("messaging: invite %q to %q failed: %w", userID, roomID, err)
	}
	return nil
}

// JoinedRooms returns the list of room IDs the session user has joined.
func (s *Session) JoinedRooms(ctx context.Context) ([]ref.RoomID, error) {
	body, err := s.request(ctx, http.MethodGet, "/_matrix/client/v3/joined_rooms", nil)
	if err != nil {
		return nil, fmt.Errorf("messaging: joined rooms failed: %w", err)
	}

	var response JoinedRoomsResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("messaging: failed to parse joined rooms response: %w", err)
	}
	return response.JoinedRooms, nil
}

// RoomName returns the name from the room's m.room.name state event.
// A room without a name event yields an M_NOT_FOUND *MatrixError.
func (s *Session) RoomName(ctx context.Context, roomID ref.RoomID) (string, error) {
	content, err := GetState[RoomNameContent](ctx, s, roomID, EventTypeRoomName, "")
	if err != nil {
		return "", err
	}
	return content.Name, nil
}

// GetRoomMembers returns the members of a room.
func (s *Session) GetRoomMembers(ctx context.Context, roomID ref.RoomID) ([]RoomMember, error) {
	path := fmt.Sprintf("/_matrix/client/v3/rooms/%s/members", url.PathEscape(roomID.String()))
	body, err := s.request(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("messaging: get room members for %q failed: %w", roomID, err)
	}

	var response RoomMembersResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("messaging: failed to parse room members response: %w", err)
	}

	members := make([]RoomMember, len(response.Chunk))
	for index, event := range response.Chunk {
		members[index] = RoomMember{
			UserID:      event.StateKey,
			DisplayName: event.Content.DisplayName,
			Membership:  event.Content.Membership,
		}
	}
	return members, nil
}

// LeaveRoom leaves a room.
func (s *Session) LeaveRoom(ctx context.Context, roomID ref.RoomID) error {
	path := fmt.Sprintf("/_matrix/client/v3/rooms/%s/leave", url.PathEscape(roomID.String()))
	_, err := s.request(ctx, http.MethodPost, path, struct{}{})
	if err != nil {
		return fmt.Errorf("messaging: leave room %q failed: %w", roomID, err)
	}
	return nil
}

// ForgetRoom removes a left room from the session user's room list.
func (s *Session) ForgetRoom(ctx context.Context, roomID ref.RoomID) error {
	path := fmt.Sprintf("/_matrix/client/v3/rooms/%s/forget", url.PathEscape(roomID.String()))
	_, err := s.request(ctx, http.MethodPost, path, struct{}{})
	if err != nil {
		return fmt.Errorf("messaging: forget room %q failed: %w", roomID, err)
	}
	return nil
}

// DeleteRoom leaves and then forgets a room. Once the last member has
// forgotten it the homeserver may purge it.
func (s *Session) DeleteRoom(ctx context.Context, roomID ref.RoomID) error {
	if err := s.LeaveRoom(ctx, roomID); err != nil {
		return err
	}
	return s.ForgetRoom(ctx, roomID)
}
