// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/bureau-foundation/wifisync/lib/communication"
	"github.com/bureau-foundation/wifisync/lib/config"
	"github.com/bureau-foundation/wifisync/lib/credstore"
	"github.com/bureau-foundation/wifisync/messaging"
)

// executor carries out commands against the chat and the store. One
// executor serves one pass.
type executor struct {
	settings  *config.Config
	templates *communication.Templates
	chat      Chat
	store     Store
	now       time.Time
	logger    *slog.Logger
}

// execute dispatches a single command.
func (e *executor) execute(ctx context.Context, command Command) error {
	switch command.Kind {
	case KindIssue:
		return e.issue(ctx, command.Person)
	case KindHide:
		return e.hide(ctx, command.Person, command.HideAll)
	case KindRemove:
		return e.remove(ctx, command.Person)
	case KindRejectUnknown:
		return e.rejectUnknown(ctx, command.Person)
	default:
		return fmt.Errorf("reconcile: unknown command kind %d", int(command.Kind))
	}
}

// issue stores a fresh credential and sends it, creating the person's
// room first if there is none.
func (e *executor) issue(ctx context.Context, person *PersonRecord) error {
	if person.ChatRoomID.IsZero() && person.ChatIdentity.IsZero() {
		return fmt.Errorf("reconcile: person %d has no room and no chat identity to invite", person.ID)
	}
	secret, err := credstore.GenerateSecret(e.settings.Basic.PasswordAlphabet, e.settings.Basic.PasswordLength)
	if err != nil {
		return fmt.Errorf("reconcile: generating credential for person %d: %w", person.ID, err)
	}
	if err := e.store.Set(ctx, person.ID, secret); err != nil {
		return fmt.Errorf("reconcile: storing credential for person %d: %w", person.ID, err)
	}

	settings := e.settings.Communication.For(person.ID)
	if person.ChatRoomID.IsZero() {
		if err := e.createRoom(ctx, person, settings); err != nil {
			return err
		}
	}

	message, err := e.templates.Message(communication.PasswordMessage,
		communication.NewContext(person.recipient(), settings, secret))
	if err != nil {
		return err
	}
	if _, err := e.chat.SendMessage(ctx, person.ChatRoomID, messaging.NewHTMLMessage(message.Body, message.HTML)); err != nil {
		return fmt.Errorf("reconcile: sending credential to person %d: %w", person.ID, err)
	}

	e.logger.Info("credential issued",
		"person_id", person.ID,
		"room_id", person.ChatRoomID,
		"fingerprint", credstore.Fingerprint(secret),
	)
	return nil
}

func (e *executor) createRoom(ctx context.Context, person *PersonRecord, settings config.Settings) error {
	rendering := communication.NewContext(person.recipient(), settings, "")

	title, err := e.roomTitle(person, rendering)
	if err != nil {
		return err
	}
	roomID, err := e.chat.CreateSecureRoom(ctx, title)
	if err != nil {
		return fmt.Errorf("reconcile: creating room for person %d: %w", person.ID, err)
	}
	person.ChatRoomID = roomID

	if err := e.chat.InviteUser(ctx, roomID, person.ChatIdentity); err != nil {
		return fmt.Errorf("reconcile: inviting person %d: %w", person.ID, err)
	}

	initial, err := e.templates.Message(communication.InitialMessage, rendering)
	if err != nil {
		return err
	}
	if _, err := e.chat.SendMessage(ctx, roomID, messaging.NewHTMLMessage(initial.Body, initial.HTML)); err != nil {
		return fmt.Errorf("reconcile: greeting person %d: %w", person.ID, err)
	}

	e.logger.Info("room created",
		"person_id", person.ID,
		"room_id", roomID,
		"user_id", person.ChatIdentity,
	)
	return nil
}

// roomTitle renders the title for a new room. The title must match the
// room title pattern or the room is never found again, so empty name
// fields are replaced by the person id when the plain rendering does
// not match.
func (e *executor) roomTitle(person *PersonRecord, rendering communication.Context) (string, error) {
	pattern := e.templates.Pattern(communication.RoomTitle)
	title, err := e.templates.Text(communication.RoomTitle, rendering)
	if err != nil {
		return "", err
	}
	if pattern.MatchString(title) {
		return title, nil
	}

	fallback := strconv.FormatInt(person.ID, 10)
	if strings.TrimSpace(rendering.FirstName) == "" {
		rendering.FirstName = fallback
	}
	if strings.TrimSpace(rendering.LastName) == "" {
		rendering.LastName = fallback
	}
	title, err = e.templates.Text(communication.RoomTitle, rendering)
	if err != nil {
		return "", err
	}
	if !pattern.MatchString(title) {
		return "", fmt.Errorf("reconcile: room title %q for person %d does not match the room title template", title, person.ID)
	}
	return title, nil
}

// hide masks credential messages. Without hideAll only messages older
// than the display time are masked, and a negative display time
// disables masking entirely. Messages already showing the mask are
// left alone.
func (e *executor) hide(ctx context.Context, person *PersonRecord, hideAll bool) error {
	if person.ChatRoomID.IsZero() {
		return nil
	}
	settings := e.settings.Communication.For(person.ID)
	if settings.PasswordDisplayTime < 0 && !hideAll {
		return nil
	}

	messages, err := e.chat.FindMessages(ctx, person.ChatRoomID, e.chat.UserID(),
		e.templates.Pattern(communication.PasswordMessage))
	if err != nil {
		return fmt.Errorf("reconcile: reading credential messages of person %d: %w", person.ID, err)
	}
	if len(messages) == 0 {
		return nil
	}

	hidden, err := e.templates.Message(communication.PasswordMessage,
		communication.NewContext(person.recipient(), settings, "").Hidden(e.settings.Basic.PasswordLength))
	if err != nil {
		return err
	}

	display := settings.DisplayFor()
	masked := 0
	for _, message := range messages {
		if message.Body == hidden.Body {
			continue
		}
		if !hideAll && e.now.Sub(message.Timestamp) < display {
			continue
		}
		if _, err := e.chat.EditMessage(ctx, person.ChatRoomID, message.EventID,
			messaging.NewHTMLMessage(hidden.Body, hidden.HTML)); err != nil {
			return fmt.Errorf("reconcile: masking message %s of person %d: %w", message.EventID, person.ID, err)
		}
		masked++
	}
	if masked > 0 {
		e.logger.Info("credential messages masked",
			"person_id", person.ID,
			"room_id", person.ChatRoomID,
			"count", masked,
		)
	}
	return nil
}

// remove masks every credential message, deletes the record, and
// tells the person. The record is deleted even when there is no room.
func (e *executor) remove(ctx context.Context, person *PersonRecord) error {
	if err := e.hide(ctx, person, true); err != nil {
		return err
	}
	if _, err := e.store.Delete(ctx, person.ID); err != nil {
		return fmt.Errorf("reconcile: deleting credential of person %d: %w", person.ID, err)
	}
	e.logger.Info("credential removed", "person_id", person.ID)

	if person.ChatRoomID.IsZero() {
		return nil
	}
	return e.sendTemplate(ctx, person, communication.RemovalMessage)
}

func (e *executor) rejectUnknown(ctx context.Context, person *PersonRecord) error {
	if person.ChatRoomID.IsZero() {
		return nil
	}
	return e.sendTemplate(ctx, person, communication.UnknownCommandMessage)
}

func (e *executor) sendTemplate(ctx context.Context, person *PersonRecord, name communication.Name) error {
	settings := e.settings.Communication.For(person.ID)
	message, err := e.templates.Message(name, communication.NewContext(person.recipient(), settings, ""))
	if err != nil {
		return err
	}
	if _, err := e.chat.SendMessage(ctx, person.ChatRoomID, messaging.NewHTMLMessage(message.Body, message.HTML)); err != nil {
		return fmt.Errorf("reconcile: sending %s to person %d: %w", name, person.ID, err)
	}
	return nil
}
