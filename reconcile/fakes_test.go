// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/wifisync/directory"
	"github.com/bureau-foundation/wifisync/lib/clock"
	"github.com/bureau-foundation/wifisync/lib/communication"
	"github.com/bureau-foundation/wifisync/lib/config"
	"github.com/bureau-foundation/wifisync/lib/ref"
	"github.com/bureau-foundation/wifisync/lib/secret"
	"github.com/bureau-foundation/wifisync/messaging"
)

const (
	testServer  = "chat.church.tools"
	testGroup   = int64(10)
	selfID      = int64(99)
	selfGUID    = "SYNC-0000"
	adaID       = int64(1)
	adaGUID     = "ADA-1111"
	alanID      = int64(2)
	alanGUID    = "ALAN-2222"
	passwordLen = 16
)

var testEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func identityOf(t *testing.T, guid string) ref.UserID {
	t.Helper()
	userID, err := ref.ChatIdentity(guid, testServer)
	if err != nil {
		t.Fatalf("ChatIdentity(%q): %v", guid, err)
	}
	return userID
}

// --- chat ---

type fakeMessage struct {
	id        ref.EventID
	sender    ref.UserID
	body      string
	timestamp time.Time
	edited    bool
}

type fakeRoom struct {
	id         ref.RoomID
	name       string
	nameErr    error
	members    []messaging.RoomMember
	membersErr error
	messages   []*fakeMessage // oldest first
}

// fakeChat is an in-memory homeserver seen through one account. Edits
// rewrite the original message in place, which is what the messaging
// package's folding presents to callers.
type fakeChat struct {
	mu    sync.Mutex
	self  ref.UserID
	clock clock.Clock

	rooms  map[ref.RoomID]*fakeRoom
	order  []ref.RoomID
	nextID int

	sendErr        map[ref.RoomID]error
	lastMessageErr error

	created []ref.RoomID
	invited map[ref.RoomID][]ref.UserID
	deleted []ref.RoomID
	edits   int
	closed  bool
}

func newFakeChat(self ref.UserID, clk clock.Clock) *fakeChat {
	return &fakeChat{
		self:    self,
		clock:   clk,
		rooms:   make(map[ref.RoomID]*fakeRoom),
		sendErr: make(map[ref.RoomID]error),
		invited: make(map[ref.RoomID][]ref.UserID),
	}
}

func (f *fakeChat) addRoom(name string, others ...ref.UserID) ref.RoomID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addRoomLocked(name, others...)
}

func (f *fakeChat) addRoomLocked(name string, others ...ref.UserID) ref.RoomID {
	f.nextID++
	roomID := ref.MustParseRoomID(fmt.Sprintf("!room%d:%s", f.nextID, testServer))
	room := &fakeRoom{id: roomID, name: name}
	room.members = append(room.members, messaging.RoomMember{UserID: f.self, Membership: "join"})
	for _, other := range others {
		room.members = append(room.members, messaging.RoomMember{UserID: other, Membership: "join"})
	}
	f.rooms[roomID] = room
	f.order = append(f.order, roomID)
	return roomID
}

// post appends a message from sender at the given time.
func (f *fakeChat) post(roomID ref.RoomID, sender ref.UserID, body string, at time.Time) ref.EventID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.postLocked(roomID, sender, body, at)
}

func (f *fakeChat) postLocked(roomID ref.RoomID, sender ref.UserID, body string, at time.Time) ref.EventID {
	f.nextID++
	eventID := ref.MustParseEventID(fmt.Sprintf("$event%d", f.nextID))
	room := f.rooms[roomID]
	room.messages = append(room.messages, &fakeMessage{id: eventID, sender: sender, body: body, timestamp: at})
	return eventID
}

func (f *fakeChat) bodies(roomID ref.RoomID) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[roomID]
	if !ok {
		return nil
	}
	var bodies []string
	for _, message := range room.messages {
		bodies = append(bodies, message.body)
	}
	return bodies
}

func (f *fakeChat) deletedRooms() []ref.RoomID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.deleted)
}

func (f *fakeChat) UserID() ref.UserID { return f.self }

func (f *fakeChat) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeChat) JoinedRooms(context.Context) ([]ref.RoomID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.order), nil
}

func (f *fakeChat) RoomName(_ context.Context, roomID ref.RoomID) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[roomID]
	if !ok {
		return "", fmt.Errorf("no room %s", roomID)
	}
	if room.nameErr != nil {
		return "", room.nameErr
	}
	return room.name, nil
}

func (f *fakeChat) GetRoomMembers(_ context.Context, roomID ref.RoomID) ([]messaging.RoomMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[roomID]
	if !ok {
		return nil, fmt.Errorf("no room %s", roomID)
	}
	if room.membersErr != nil {
		return nil, room.membersErr
	}
	return slices.Clone(room.members), nil
}

func (f *fakeChat) CreateSecureRoom(_ context.Context, name string) (ref.RoomID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	roomID := f.addRoomLocked(name)
	f.created = append(f.created, roomID)
	return roomID, nil
}

func (f *fakeChat) InviteUser(_ context.Context, roomID ref.RoomID, userID ref.UserID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[roomID]
	if !ok {
		return fmt.Errorf("no room %s", roomID)
	}
	room.members = append(room.members, messaging.RoomMember{UserID: userID, Membership: "invite"})
	f.invited[roomID] = append(f.invited[roomID], userID)
	return nil
}

func (f *fakeChat) DeleteRoom(_ context.Context, roomID ref.RoomID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rooms, roomID)
	f.order = slices.DeleteFunc(f.order, func(id ref.RoomID) bool { return id == roomID })
	f.deleted = append(f.deleted, roomID)
	return nil
}

func (f *fakeChat) SendMessage(_ context.Context, roomID ref.RoomID, content messaging.MessageContent) (ref.EventID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.sendErr[roomID]; err != nil {
		return ref.EventID{}, err
	}
	if _, ok := f.rooms[roomID]; !ok {
		return ref.EventID{}, fmt.Errorf("no room %s", roomID)
	}
	return f.postLocked(roomID, f.self, content.Body, f.clock.Now()), nil
}

func (f *fakeChat) EditMessage(_ context.Context, roomID ref.RoomID, eventID ref.EventID, content messaging.MessageContent) (ref.EventID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[roomID]
	if !ok {
		return ref.EventID{}, fmt.Errorf("no room %s", roomID)
	}
	for _, message := range room.messages {
		if message.id == eventID {
			message.body = content.Body
			message.edited = true
			f.edits++
			f.nextID++
			return ref.MustParseEventID(fmt.Sprintf("$edit%d", f.nextID)), nil
		}
	}
	return ref.EventID{}, fmt.Errorf("no event %s", eventID)
}

func (f *fakeChat) newestFirst(roomID ref.RoomID) ([]messaging.Message, error) {
	room, ok := f.rooms[roomID]
	if !ok {
		return nil, fmt.Errorf("no room %s", roomID)
	}
	messages := make([]messaging.Message, 0, len(room.messages))
	for index := len(room.messages) - 1; index >= 0; index-- {
		message := room.messages[index]
		messages = append(messages, messaging.Message{
			EventID:   message.id,
			Sender:    message.sender,
			Body:      message.body,
			Timestamp: message.timestamp,
			Edited:    message.edited,
		})
	}
	return messages, nil
}

func (f *fakeChat) FindMessages(_ context.Context, roomID ref.RoomID, sender ref.UserID, pattern *regexp.Regexp) ([]messaging.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	messages, err := f.newestFirst(roomID)
	if err != nil {
		return nil, err
	}
	var found []messaging.Message
	for _, message := range messages {
		if message.Sender == sender && pattern.MatchString(message.Body) {
			found = append(found, message)
		}
	}
	return found, nil
}

func (f *fakeChat) LastMessage(_ context.Context, roomID ref.RoomID, sender ref.UserID, mustBeLast bool) (*messaging.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lastMessageErr != nil {
		return nil, f.lastMessageErr
	}
	messages, err := f.newestFirst(roomID)
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

// --- directory ---

type fakeDirectory struct {
	self      directory.Identity
	members   map[int64][]directory.Member
	persons   map[int64]*directory.Person
	loginErr  error
	personErr error
	logins    int
}

func (f *fakeDirectory) Login(context.Context) error {
	f.logins++
	return f.loginErr
}

func (f *fakeDirectory) WhoAmI(context.Context) (directory.Identity, error) {
	return f.self, nil
}

func (f *fakeDirectory) GetMembers(_ context.Context, groupID int64) ([]directory.Member, error) {
	return f.members[groupID], nil
}

func (f *fakeDirectory) GetPerson(_ context.Context, personID int64) (*directory.Person, error) {
	if f.personErr != nil {
		return nil, f.personErr
	}
	person, ok := f.persons[personID]
	if !ok {
		return nil, &directory.APIError{StatusCode: 404, Method: "GET", Path: fmt.Sprintf("/api/persons/%d", personID)}
	}
	return person, nil
}

func member(id int64, first, last, guid string) directory.Member {
	return directory.Member{
		PersonID:  id,
		FirstName: first,
		LastName:  last,
		GUID:      guid,
		Fields:    map[string]string{"cmsUserId": first},
	}
}

// --- store ---

type fakeStore struct {
	secrets map[int64]string
	setErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{secrets: make(map[int64]string)}
}

func (f *fakeStore) Set(_ context.Context, personID int64, secret string) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.secrets[personID] = secret
	return nil
}

func (f *fakeStore) Delete(_ context.Context, personID int64) (bool, error) {
	_, ok := f.secrets[personID]
	delete(f.secrets, personID)
	return ok, nil
}

func (f *fakeStore) ListIDs(context.Context) ([]int64, error) {
	ids := make([]int64, 0, len(f.secrets))
	for id := range f.secrets {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// --- harness ---

type harness struct {
	settings  *config.Config
	templates *communication.Templates
	clock     *clock.FakeClock
	chat      *fakeChat
	directory *fakeDirectory
	store     *fakeStore

	self ref.UserID
	ada  ref.UserID
	alan ref.UserID
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	settings := config.Default()
	settings.Basic.WiFiAccessGroups = []int64{testGroup}
	settings.Basic.PasswordLength = passwordLen
	settings.Communication.ServerURL = "https://" + testServer

	templates, err := communication.Load(config.English, "")
	if err != nil {
		t.Fatalf("loading templates: %v", err)
	}

	fakeClock := clock.Fake(testEpoch)
	self := identityOf(t, selfGUID)
	return &harness{
		settings:  settings,
		templates: templates,
		clock:     fakeClock,
		chat:      newFakeChat(self, fakeClock),
		directory: &fakeDirectory{
			self:    directory.Identity{ID: selfID, GUID: selfGUID},
			members: make(map[int64][]directory.Member),
			persons: make(map[int64]*directory.Person),
		},
		store: newFakeStore(),
		self:  self,
		ada:   identityOf(t, adaGUID),
		alan:  identityOf(t, alanGUID),
	}
}

func (h *harness) engine(t *testing.T) *Engine {
	t.Helper()
	password, err := secret.NewFromString("sync-account-password")
	if err != nil {
		t.Fatalf("secret.NewFromString: %v", err)
	}
	t.Cleanup(func() { password.Close() })

	engine, err := New(Config{
		Settings:  h.settings,
		Templates: h.templates,
		Directory: h.directory,
		LoginChat: func(_ context.Context, userID ref.UserID, _ *secret.Buffer) (Chat, error) {
			if userID != h.self {
				return nil, errors.New("login as unexpected user " + userID.String())
			}
			return h.chat, nil
		},
		Store:     h.store,
		Password:  password,
		Clock:     h.clock,
		Logger:    slog.New(slog.DiscardHandler),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return engine
}

func (h *harness) planner() *planner {
	return &planner{
		settings:  h.settings,
		templates: h.templates,
		directory: h.directory,
		chat:      h.chat,
		now:       h.clock.Now(),
		logger:    slog.New(slog.DiscardHandler),
	}
}

func (h *harness) executor() *executor {
	return &executor{
		settings:  h.settings,
		templates: h.templates,
		chat:      h.chat,
		store:     h.store,
		now:       h.clock.Now(),
		logger:    slog.New(slog.DiscardHandler),
	}
}

// roomFor creates a private room shared with userID under the title
// the templates would give it.
func (h *harness) roomFor(t *testing.T, userID ref.UserID, first, last string) ref.RoomID {
	t.Helper()
	title, err := h.templates.Text(communication.RoomTitle, communication.NewContext(
		communication.Recipient{FirstName: first, LastName: last}, h.settings.Communication.Defaults, ""))
	if err != nil {
		t.Fatalf("rendering title: %v", err)
	}
	return h.chat.addRoom(title, userID)
}

// passwordMessage renders the credential message for password.
func (h *harness) passwordMessage(t *testing.T, password string) string {
	t.Helper()
	body, err := h.templates.Text(communication.PasswordMessage, communication.NewContext(
		communication.Recipient{}, h.settings.Communication.Defaults, password))
	if err != nil {
		t.Fatalf("rendering password message: %v", err)
	}
	return body
}

func (h *harness) hiddenMessage(t *testing.T) string {
	t.Helper()
	body, err := h.templates.Text(communication.PasswordMessage, communication.NewContext(
		communication.Recipient{}, h.settings.Communication.Defaults, "").Hidden(passwordLen))
	if err != nil {
		t.Fatalf("rendering hidden message: %v", err)
	}
	return body
}
