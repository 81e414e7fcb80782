// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/bureau-foundation/wifisync/lib/ref"
)

// Window used by FindMessages and LastMessage: one backward page of
// message events.
const (
	messageWindow = 200
	messageFilter = `{"types":["m.room.message"]}`
)

// Message is an m.room.message event with any edits applied.
type Message struct {
	// EventID and Timestamp are those of the original event, even
	// when Body comes from an edit.
	EventID   ref.EventID
	Sender    ref.UserID
	Body      string
	Timestamp time.Time
	// Edited is true when Body was taken from an m.replace edit.
	Edited bool
}

// SendEvent sends a room event of any type and returns its event ID.
// Each call uses a fresh transaction ID, so retries after a 429 reuse
// the same ID and the homeserver deduplicates them.
func (s *Session) SendEvent(ctx context.Context, roomID ref.RoomID, eventType string, content any) (ref.EventID, error) {
	path := fmt.Sprintf("/_matrix/client/v3/rooms/%s/send/%s/%s",
		url.PathEscape(roomID.String()),
		url.PathEscape(eventType),
		url.PathEscape(uuid.NewString()),
	)

	body, err := s.request(ctx, http.MethodPut, path, content)
	if err != nil {
		return ref.EventID{}, fmt.Errorf("messaging: send event to %q failed: %w", roomID, err)
	}

	var response SendEventResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return ref.EventID{}, fmt.Errorf("messaging: failed to parse send response: %w", err)
	}
	return response.EventID, nil
}

// SendMessage sends an m.room.message to a room.
func (s *Session) SendMessage(ctx context.Context, roomID ref.RoomID, content MessageContent) (ref.EventID, error) {
	return s.SendEvent(ctx, roomID, EventTypeMessage, content)
}

// EditMessage replaces the content of an earlier message. Clients that
// do not understand edits show the fallback body, which is the new body
// prefixed with "* ".
func (s *Session) EditMessage(ctx context.Context, roomID ref.RoomID, eventID ref.EventID, content MessageContent) (ref.EventID, error) {
	replacement := content
	replacement.NewContent = nil
	replacement.RelatesTo = nil

	edit := MessageContent{
		MsgType:    replacement.MsgType,
		Body:       "* " + replacement.Body,
		NewContent: &replacement,
		RelatesTo: &RelatesTo{
			RelType: RelationReplace,
			EventID: eventID,
		},
	}
	if replacement.FormattedBody != "" {
		edit.Format = replacement.Format
		edit.FormattedBody = "* " + replacement.FormattedBody
	}
	return s.SendMessage(ctx, roomID, edit)
}

// RoomMessages fetches one page of room events.
func (s *Session) RoomMessages(ctx context.Context, roomID ref.RoomID, options RoomMessagesOptions) (*RoomMessagesResponse, error) {
	path := fmt.Sprintf("/_matrix/client/v3/rooms/%s/messages", url.PathEscape(roomID.String()))

	query := url.Values{}
	if options.From != "" {
		query.Set("from", options.From)
	}
	direction := options.Direction
	if direction == "" {
		direction = "b" // backward (newest first) by default
	}
	query.Set("dir", direction)
	if options.Limit > 0 {
		query.Set("limit", strconv.Itoa(options.Limit))
	}
	if options.Filter != "" {
		query.Set("filter", options.Filter)
	}

	body, err := s.request(ctx, http.MethodGet, path, nil, query)
	if err != nil {
		return nil, fmt.Errorf("messaging: room messages for %q failed: %w", roomID, err)
	}

	var response RoomMessagesResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("messaging: failed to parse messages response: %w", err)
	}
	return &response, nil
}

// FindMessages returns the messages from sender whose body matches
// pattern, newest first. Bodies are matched after edits are applied,
// so a message that was edited to something else no longer matches.
func (s *Session) FindMessages(ctx context.Context, roomID ref.RoomID, sender ref.UserID, pattern *regexp.Regexp) ([]Message, error) {
	messages, err := s.recentMessages(ctx, roomID)
	if err != nil {
		return nil, err
	}
	var found []Message
	for _, message := range messages {
		if message.Sender != sender {
			continue
		}
		if pattern != nil && !pattern.MatchString(message.Body) {
			continue
		}
		found = append(found, message)
	}
	return found, nil
}

// LastMessage returns the newest message from sender, or nil if there
// is none. With mustBeLast, the message must also be the newest message
// in the room: if anyone else spoke after it, nil is returned. Edits do
// not count as newer messages.
func (s *Session) LastMessage(ctx context.Context, roomID ref.RoomID, sender ref.UserID, mustBeLast bool) (*Message, error) {
	messages, err := s.recentMessages(ctx, roomID)
	if err != nil {
		return nil, err
	}
	for index := range messages {
		if messages[index].Sender == sender {
			return &messages[index], nil
		}
		if mustBeLast {
			return nil, nil
		}
	}
	return nil, nil
}

// recentMessages fetches the newest page of messages and folds edits
// into the events they replace.
func (s *Session) recentMessages(ctx context.Context, roomID ref.RoomID) ([]Message, error) {
	response, err := s.RoomMessages(ctx, roomID, RoomMessagesOptions{
		Direction: "b",
		Limit:     messageWindow,
		Filter:    messageFilter,
	})
	if err != nil {
		return nil, err
	}
	return foldEdits(response.Chunk), nil
}

// foldEdits turns a newest-first event chunk into messages. Edit events
// are applied to their target and dropped. Only edits by the target's
// own sender count, and the newest such edit wins.
func foldEdits(chunk []Event) []Message {
	senders := make(map[ref.EventID]ref.UserID)
	for _, event := range chunk {
		if event.Type == EventTypeMessage && !isEdit(event) {
			senders[event.EventID] = event.Sender
		}
	}

	latest := make(map[ref.EventID]string)
	for _, event := range chunk {
		if event.Type != EventTypeMessage || !isEdit(event) || event.Content.NewContent == nil {
			continue
		}
		target := event.Content.RelatesTo.EventID
		if sender, ok := senders[target]; !ok || sender != event.Sender {
			continue
		}
		// Newest first: keep the first edit seen for each target.
		if _, seen := latest[target]; !seen {
			latest[target] = event.Content.NewContent.Body
		}
	}

	messages := make([]Message, 0, len(senders))
	for _, event := range chunk {
		if event.Type != EventTypeMessage || isEdit(event) {
			continue
		}
		message := Message{
			EventID:   event.EventID,
			Sender:    event.Sender,
			Body:      event.Content.Body,
			Timestamp: time.UnixMilli(event.OriginServerTS).UTC(),
		}
		if body, ok := latest[event.EventID]; ok {
			message.Body = body
			message.Edited = true
		}
		messages = append(messages, message)
	}
	return messages
}

func isEdit(event Event) bool {
	return event.Content.RelatesTo != nil && event.Content.RelatesTo.RelType == RelationReplace
}
