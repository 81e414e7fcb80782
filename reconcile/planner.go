// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bureau-foundation/wifisync/directory"
	"github.com/bureau-foundation/wifisync/lib/communication"
	"github.com/bureau-foundation/wifisync/lib/config"
	"github.com/bureau-foundation/wifisync/lib/ref"
)

// planner turns the directory, the room map, and the store's id set
// into a command batch. It reads but never writes.
type planner struct {
	settings  *config.Config
	templates *communication.Templates
	directory Directory
	chat      Chat
	now       time.Time
	logger    *slog.Logger
}

// planInput is the state a batch is computed from.
type planInput struct {
	// Self is the sync account's directory id. It is never planned,
	// even when the store holds a credential for it.
	Self int64

	// Rooms is the resolved room map.
	Rooms RoomMap

	// Stored lists the person ids with a credential record.
	Stored []int64
}

// Plan computes the batch. Any directory or chat error aborts the
// whole plan; nothing is partially planned.
func (p *planner) Plan(ctx context.Context, input planInput) ([]Command, error) {
	eligible, err := p.eligibleMembers(ctx, input.Self)
	if err != nil {
		return nil, err
	}

	stored := make(map[int64]bool, len(input.Stored))
	for _, id := range input.Stored {
		stored[id] = true
	}

	var commands []Command
	seen := make(map[int64]bool, len(eligible))
	for _, member := range eligible {
		seen[member.PersonID] = true
		person := p.personFromMember(member, input.Rooms)
		planned, err := p.planPerson(ctx, person, true, stored[person.ID])
		if err != nil {
			return nil, err
		}
		commands = append(commands, planned...)
	}

	for _, id := range input.Stored {
		if seen[id] || id == input.Self {
			continue
		}
		seen[id] = true
		person := p.lookupDeparted(ctx, id, input.Rooms)
		planned, err := p.planPerson(ctx, person, false, true)
		if err != nil {
			return nil, err
		}
		commands = append(commands, planned...)
	}
	return commands, nil
}

// eligibleMembers returns the union of the access groups' members in
// directory order, without duplicates and without self.
func (p *planner) eligibleMembers(ctx context.Context, self int64) ([]directory.Member, error) {
	var members []directory.Member
	seen := make(map[int64]bool)
	for _, group := range p.settings.AllWiFiAccessGroups() {
		groupMembers, err := p.directory.GetMembers(ctx, group)
		if err != nil {
			return nil, fmt.Errorf("reconcile: fetching members of group %d: %w", group, err)
		}
		for _, member := range groupMembers {
			if member.PersonID == self || seen[member.PersonID] {
				continue
			}
			seen[member.PersonID] = true
			members = append(members, member)
		}
	}
	return members, nil
}

func (p *planner) personFromMember(member directory.Member, rooms RoomMap) *PersonRecord {
	person := &PersonRecord{
		ID:                member.PersonID,
		FirstName:         member.FirstName,
		LastName:          member.LastName,
		DirectoryUsername: member.Field(p.settings.Basic.UsernameFieldName),
	}
	person.ChatIdentity = p.chatIdentity(member.PersonID, member.GUID)
	person.ChatRoomID = p.roomFor(person, rooms)
	return person
}

// lookupDeparted builds the record for an id that is stored but no
// longer eligible. A failed lookup yields an id-only record, which
// still gets its credential removed.
func (p *planner) lookupDeparted(ctx context.Context, id int64, rooms RoomMap) *PersonRecord {
	person := &PersonRecord{ID: id}
	found, err := p.directory.GetPerson(ctx, id)
	if err != nil {
		p.logger.Warn("person lookup failed, continuing with id only",
			"person_id", id,
			"error", err,
		)
	} else {
		person.FirstName = found.FirstName
		person.LastName = found.LastName
		person.DirectoryUsername = found.Field(p.settings.Basic.UsernameFieldName)
		person.ChatIdentity = p.chatIdentity(id, found.GUID)
	}
	person.ChatRoomID = p.roomFor(person, rooms)
	return person
}

func (p *planner) chatIdentity(personID int64, guid string) ref.UserID {
	if guid == "" {
		return ref.UserID{}
	}
	identity, err := ref.ChatIdentity(guid, p.settings.Communication.ChatServerName)
	if err != nil {
		p.logger.Warn("cannot derive chat identity",
			"person_id", personID,
			"guid", guid,
			"error", err,
		)
		return ref.UserID{}
	}
	return identity
}

// roomFor applies the room priority: configured override, then the
// resolved map, then none.
func (p *planner) roomFor(person *PersonRecord, rooms RoomMap) ref.RoomID {
	if pinned := p.settings.Communication.For(person.ID).ChatRoomID; !pinned.IsZero() {
		return pinned
	}
	if roomID, ok := rooms.Lookup(person.ChatIdentity); ok {
		return roomID
	}
	return ref.RoomID{}
}

// planPerson applies the decision rules for one person. Hide always
// comes first; at most one primary command follows.
func (p *planner) planPerson(ctx context.Context, person *PersonRecord, eligible, stored bool) ([]Command, error) {
	commands := []Command{Hide(person, false)}

	if !stored {
		return append(commands, Issue(person)), nil
	}
	if !eligible {
		return append(commands, Remove(person)), nil
	}

	settings := p.settings.Communication.For(person.ID)

	if !person.ChatRoomID.IsZero() && !person.ChatIdentity.IsZero() {
		last, err := p.chat.LastMessage(ctx, person.ChatRoomID, person.ChatIdentity, true)
		if err != nil {
			return nil, fmt.Errorf("reconcile: reading last message of person %d: %w", person.ID, err)
		}
		if last != nil {
			if last.Body == settings.ResetCommand {
				return append(commands, Issue(person)), nil
			}
			return append(commands, RejectUnknown(person)), nil
		}
	}

	if settings.AutoReset < 0 {
		return commands, nil
	}
	due, err := p.expired(ctx, person, settings.AutoResetAfter())
	if err != nil {
		return nil, err
	}
	if due {
		return append(commands, Issue(person)), nil
	}
	return commands, nil
}

// expired reports whether the person's newest credential message is at
// least expiry old. A missing room or a missing message counts as
// expired.
func (p *planner) expired(ctx context.Context, person *PersonRecord, expiry time.Duration) (bool, error) {
	if person.ChatRoomID.IsZero() {
		return true, nil
	}
	messages, err := p.chat.FindMessages(ctx, person.ChatRoomID, p.chat.UserID(), p.templates.Pattern(communication.PasswordMessage))
	if err != nil {
		return false, fmt.Errorf("reconcile: reading credential messages of person %d: %w", person.ID, err)
	}
	if len(messages) == 0 {
		return true, nil
	}
	return p.now.Sub(messages[0].Timestamp) >= expiry, nil
}
