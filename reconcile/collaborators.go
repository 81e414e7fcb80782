// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"context"
	"regexp"

	"github.com/bureau-foundation/wifisync/directory"
	"github.com/bureau-foundation/wifisync/lib/ref"
	"github.com/bureau-foundation/wifisync/lib/secret"
	"github.com/bureau-foundation/wifisync/messaging"
)

// Directory is the ChurchTools surface a sync pass reads.
// *directory.Client implements it.
type Directory interface {
	Login(ctx context.Context) error
	WhoAmI(ctx context.Context) (directory.Identity, error)
	GetMembers(ctx context.Context, groupID int64) ([]directory.Member, error)
	GetPerson(ctx context.Context, personID int64) (*directory.Person, error)
}

// Chat is the Matrix surface a sync pass uses, bound to the sync
// account. *messaging.Session implements it.
type Chat interface {
	UserID() ref.UserID
	Close() error

	JoinedRooms(ctx context.Context) ([]ref.RoomID, error)
	RoomName(ctx context.Context, roomID ref.RoomID) (string, error)
	GetRoomMembers(ctx context.Context, roomID ref.RoomID) ([]messaging.RoomMember, error)
	CreateSecureRoom(ctx context.Context, name string) (ref.RoomID, error)
	InviteUser(ctx context.Context, roomID ref.RoomID, userID ref.UserID) error
	DeleteRoom(ctx context.Context, roomID ref.RoomID) error

	SendMessage(ctx context.Context, roomID ref.RoomID, content messaging.MessageContent) (ref.EventID, error)
	EditMessage(ctx context.Context, roomID ref.RoomID, eventID ref.EventID, content messaging.MessageContent) (ref.EventID, error)
	FindMessages(ctx context.Context, roomID ref.RoomID, sender ref.UserID, pattern *regexp.Regexp) ([]messaging.Message, error)
	LastMessage(ctx context.Context, roomID ref.RoomID, sender ref.UserID, mustBeLast bool) (*messaging.Message, error)
}

// ChatLogin opens a chat session as userID. The password is the
// directory API password; ChurchTools provisions the chat account
// with the same credentials.
type ChatLogin func(ctx context.Context, userID ref.UserID, password *secret.Buffer) (Chat, error)

// MatrixLogin adapts a messaging.Client to ChatLogin.
func MatrixLogin(client *messaging.Client) ChatLogin {
	return func(ctx context.Context, userID ref.UserID, password *secret.Buffer) (Chat, error) {
		session, err := client.Login(ctx, userID, password)
		if err != nil {
			return nil, err
		}
		return session, nil
	}
}

// Store is the credential store surface a sync pass writes.
// *credstore.Store implements it.
type Store interface {
	Set(ctx context.Context, personID int64, secret string) error
	Delete(ctx context.Context, personID int64) (bool, error)
	ListIDs(ctx context.Context) ([]int64, error)
}
