// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/wifisync/lib/communication"
	"github.com/bureau-foundation/wifisync/lib/config"
)

func (h *harness) adaRecord(t *testing.T, withRoom bool) *PersonRecord {
	t.Helper()
	person := &PersonRecord{
		ID:                adaID,
		FirstName:         "Ada",
		LastName:          "Lovelace",
		ChatIdentity:      h.ada,
		DirectoryUsername: "ada",
	}
	if withRoom {
		person.ChatRoomID = h.roomFor(t, h.ada, "Ada", "Lovelace")
	}
	return person
}

func TestIssueCreatesRoom(t *testing.T) {
	h := newHarness(t)
	person := h.adaRecord(t, false)

	if err := h.executor().execute(context.Background(), Issue(person)); err != nil {
		t.Fatalf("issue: %v", err)
	}

	secret, ok := h.store.secrets[adaID]
	if !ok {
		t.Fatal("no credential stored")
	}
	if len(secret) != passwordLen {
		t.Errorf("secret length = %d, want %d", len(secret), passwordLen)
	}
	for _, r := range secret {
		if !strings.ContainsRune(config.DefaultPasswordAlphabet, r) {
			t.Errorf("secret contains %q, outside the alphabet", r)
		}
	}

	if len(h.chat.created) != 1 {
		t.Fatalf("created %d rooms, want 1", len(h.chat.created))
	}
	roomID := h.chat.created[0]
	if person.ChatRoomID != roomID {
		t.Errorf("PersonRecord.ChatRoomID = %v, want %v", person.ChatRoomID, roomID)
	}
	if name := h.chat.rooms[roomID].name; name != "WiFi Ada Lovelace" {
		t.Errorf("room name = %q", name)
	}
	if invited := h.chat.invited[roomID]; len(invited) != 1 || invited[0] != h.ada {
		t.Errorf("invited = %v, want [%v]", invited, h.ada)
	}

	bodies := h.chat.bodies(roomID)
	if len(bodies) != 2 {
		t.Fatalf("room has %d messages, want initial and password: %q", len(bodies), bodies)
	}
	if !strings.HasPrefix(bodies[0], "Hello Ada,") {
		t.Errorf("first message = %q, want the initial message", bodies[0])
	}
	if bodies[1] != h.passwordMessage(t, secret) {
		t.Errorf("password message = %q", bodies[1])
	}
}

func TestIssueReusesRoom(t *testing.T) {
	h := newHarness(t)
	person := h.adaRecord(t, true)
	roomID := person.ChatRoomID

	if err := h.executor().execute(context.Background(), Issue(person)); err != nil {
		t.Fatalf("issue: %v", err)
	}
	if len(h.chat.created) != 0 {
		t.Errorf("created %d rooms for a person who has one", len(h.chat.created))
	}
	bodies := h.chat.bodies(roomID)
	if len(bodies) != 1 || bodies[0] != h.passwordMessage(t, h.store.secrets[adaID]) {
		t.Errorf("room messages = %q, want only the password message", bodies)
	}
}

func TestIssueEmptyNameTitleStillMatches(t *testing.T) {
	h := newHarness(t)
	person := h.adaRecord(t, false)
	person.LastName = ""

	if err := h.executor().execute(context.Background(), Issue(person)); err != nil {
		t.Fatalf("issue: %v", err)
	}
	if len(h.chat.created) != 1 {
		t.Fatalf("created %d rooms, want 1", len(h.chat.created))
	}
	roomID := h.chat.created[0]
	name := h.chat.rooms[roomID].name
	if name != "WiFi Ada 1" {
		t.Errorf("room name = %q, want the person id in place of the empty last name", name)
	}
	if !h.templates.Pattern(communication.RoomTitle).MatchString(name) {
		t.Errorf("room name %q does not match the room title pattern", name)
	}
	if bodies := h.chat.bodies(roomID); len(bodies) == 0 || !strings.HasPrefix(bodies[0], "Hello Ada,") {
		t.Errorf("initial message = %q, want the real first name", bodies)
	}
}

func TestIssueWithoutChatIdentity(t *testing.T) {
	h := newHarness(t)
	person := &PersonRecord{ID: adaID}

	if err := h.executor().execute(context.Background(), Issue(person)); err == nil {
		t.Fatal("expected error for a person who can be neither found nor invited")
	}
	if _, ok := h.store.secrets[adaID]; ok {
		t.Error("no credential may be stored when it cannot be delivered")
	}
}

func TestHide(t *testing.T) {
	h := newHarness(t)
	h.settings.Communication.Defaults.PasswordDisplayTime = 10
	person := h.adaRecord(t, true)
	roomID := person.ChatRoomID

	h.chat.post(roomID, h.self, h.passwordMessage(t, "oldsecret"), testEpoch.Add(-11*time.Minute))
	h.chat.post(roomID, h.self, h.passwordMessage(t, "edgesecret"), testEpoch.Add(-10*time.Minute))
	h.chat.post(roomID, h.ada, h.passwordMessage(t, "quoted"), testEpoch.Add(-9*time.Minute))
	h.chat.post(roomID, h.self, h.passwordMessage(t, "newsecret"), testEpoch.Add(-5*time.Minute))

	run := h.executor()
	hidden := h.hiddenMessage(t)

	if err := run.execute(context.Background(), Hide(person, false)); err != nil {
		t.Fatalf("hide: %v", err)
	}
	bodies := h.chat.bodies(roomID)
	want := []string{hidden, hidden, h.passwordMessage(t, "quoted"), h.passwordMessage(t, "newsecret")}
	for index := range want {
		if bodies[index] != want[index] {
			t.Errorf("message %d = %q, want %q", index, bodies[index], want[index])
		}
	}
	if h.chat.edits != 2 {
		t.Errorf("edits = %d, want 2", h.chat.edits)
	}

	if err := run.execute(context.Background(), Hide(person, false)); err != nil {
		t.Fatalf("second hide: %v", err)
	}
	if h.chat.edits != 2 {
		t.Errorf("hiding again edited %d more messages", h.chat.edits-2)
	}

	if err := run.execute(context.Background(), Hide(person, true)); err != nil {
		t.Fatalf("hide all: %v", err)
	}
	if h.chat.edits != 3 {
		t.Errorf("edits after hide all = %d, want 3", h.chat.edits)
	}
	if err := run.execute(context.Background(), Hide(person, true)); err != nil {
		t.Fatalf("second hide all: %v", err)
	}
	if h.chat.edits != 3 {
		t.Errorf("hide all is not idempotent: %d edits", h.chat.edits)
	}
	if got := h.chat.bodies(roomID)[2]; got != h.passwordMessage(t, "quoted") {
		t.Errorf("a message from the person was edited: %q", got)
	}
}

func TestHideDisabled(t *testing.T) {
	h := newHarness(t)
	person := h.adaRecord(t, true)
	h.chat.post(person.ChatRoomID, h.self, h.passwordMessage(t, "oldsecret"), testEpoch.Add(-1000*time.Hour))

	if err := h.executor().execute(context.Background(), Hide(person, false)); err != nil {
		t.Fatalf("hide: %v", err)
	}
	if h.chat.edits != 0 {
		t.Errorf("negative display time must disable masking, got %d edits", h.chat.edits)
	}

	if err := h.executor().execute(context.Background(), Hide(person, true)); err != nil {
		t.Fatalf("hide all: %v", err)
	}
	if h.chat.edits != 1 {
		t.Errorf("hide all must mask regardless of display time, got %d edits", h.chat.edits)
	}
}

func TestHideWithoutRoom(t *testing.T) {
	h := newHarness(t)
	if err := h.executor().execute(context.Background(), Hide(h.adaRecord(t, false), true)); err != nil {
		t.Fatalf("hide: %v", err)
	}
}

func TestRemove(t *testing.T) {
	h := newHarness(t)
	person := h.adaRecord(t, true)
	roomID := person.ChatRoomID
	h.store.secrets[adaID] = "adasecret"
	h.chat.post(roomID, h.self, h.passwordMessage(t, "adasecret"), testEpoch.Add(-time.Minute))

	if err := h.executor().execute(context.Background(), Remove(person)); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok := h.store.secrets[adaID]; ok {
		t.Error("credential still stored")
	}
	bodies := h.chat.bodies(roomID)
	if len(bodies) != 2 {
		t.Fatalf("messages = %q, want masked password and removal notice", bodies)
	}
	if bodies[0] != h.hiddenMessage(t) {
		t.Errorf("password not masked: %q", bodies[0])
	}
	if !strings.HasPrefix(bodies[1], "Your WiFi access has ended.") {
		t.Errorf("removal notice = %q", bodies[1])
	}
}

func TestRemoveIDOnly(t *testing.T) {
	h := newHarness(t)
	h.store.secrets[adaID] = "adasecret"

	if err := h.executor().execute(context.Background(), Remove(&PersonRecord{ID: adaID})); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok := h.store.secrets[adaID]; ok {
		t.Error("an id-only record must still lose its credential")
	}
}

func TestRejectUnknown(t *testing.T) {
	h := newHarness(t)
	person := h.adaRecord(t, true)

	if err := h.executor().execute(context.Background(), RejectUnknown(person)); err != nil {
		t.Fatalf("reject: %v", err)
	}
	bodies := h.chat.bodies(person.ChatRoomID)
	if len(bodies) != 1 || !strings.Contains(bodies[0], "Send **reset**") {
		t.Errorf("messages = %q, want the unknown-command reply", bodies)
	}

	if err := h.executor().execute(context.Background(), RejectUnknown(h.adaRecord(t, false))); err != nil {
		t.Fatalf("reject without room: %v", err)
	}
}

func TestExecuteUnknownKind(t *testing.T) {
	h := newHarness(t)
	if err := h.executor().execute(context.Background(), Command{Kind: Kind(0), Person: &PersonRecord{ID: 1}}); err == nil {
		t.Fatal("expected error for an unknown command kind")
	}
}
