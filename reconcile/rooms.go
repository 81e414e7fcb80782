// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/bureau-foundation/wifisync/lib/ref"
)

// RoomMap is the result of room discovery.
type RoomMap struct {
	// private maps a lowercased chat identity to its room.
	private map[string]ref.RoomID

	// Empty lists rooms whose title matches but in which nobody but
	// the sync account is left. Cleanup deletes them.
	Empty []ref.RoomID

	// Ambiguous lists matching rooms with more than one other member.
	// They are ignored.
	Ambiguous []ref.RoomID
}

// Lookup returns the private room for identity. The comparison is
// case-insensitive.
func (m RoomMap) Lookup(identity ref.UserID) (ref.RoomID, bool) {
	if identity.IsZero() {
		return ref.RoomID{}, false
	}
	roomID, ok := m.private[identityKey(identity)]
	return roomID, ok
}

// Len returns the number of private rooms.
func (m RoomMap) Len() int { return len(m.private) }

func identityKey(identity ref.UserID) string {
	return strings.ToLower(identity.String())
}

// ResolveRooms inspects every joined room whose name matches
// titlePattern and classifies it by the members other than the sync
// account, counting joined and invited members. A room whose name
// cannot be read is skipped. Failing to list rooms or to read a
// matching room's members is fatal.
func ResolveRooms(ctx context.Context, chat Chat, titlePattern *regexp.Regexp, logger *slog.Logger) (RoomMap, error) {
	rooms, err := chat.JoinedRooms(ctx)
	if err != nil {
		return RoomMap{}, fmt.Errorf("reconcile: listing joined rooms: %w", err)
	}

	self := identityKey(chat.UserID())
	result := RoomMap{private: make(map[string]ref.RoomID)}
	for _, roomID := range rooms {
		name, err := chat.RoomName(ctx, roomID)
		if err != nil {
			logger.Debug("skipping room without readable name", "room_id", roomID, "error", err)
			continue
		}
		if !titlePattern.MatchString(name) {
			continue
		}

		members, err := chat.GetRoomMembers(ctx, roomID)
		if err != nil {
			return RoomMap{}, fmt.Errorf("reconcile: reading members of room %s: %w", roomID, err)
		}

		var others []ref.UserID
		for _, member := range members {
			if member.Membership != "join" && member.Membership != "invite" {
				continue
			}
			if identityKey(member.UserID) == self {
				continue
			}
			others = append(others, member.UserID)
		}

		switch len(others) {
		case 0:
			result.Empty = append(result.Empty, roomID)
		case 1:
			key := identityKey(others[0])
			if existing, ok := result.private[key]; ok {
				logger.Warn("ignoring duplicate private room",
					"user_id", others[0],
					"room_id", roomID,
					"kept_room_id", existing,
				)
				continue
			}
			result.private[key] = roomID
		default:
			logger.Warn("ignoring room with several members",
				"room_id", roomID,
				"room_name", name,
				"members", len(others),
			)
			result.Ambiguous = append(result.Ambiguous, roomID)
		}
	}
	return result, nil
}
