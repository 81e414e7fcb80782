// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"fmt"
	"strings"

	"github.com/bureau-foundation/wifisync/lib/communication"
	"github.com/bureau-foundation/wifisync/lib/ref"
)

// PersonRecord is one person as seen by a single pass: their directory
// data merged with their chat room. It is never persisted.
type PersonRecord struct {
	// ID is the ChurchTools person id.
	ID int64

	FirstName string
	LastName  string

	// ChatIdentity is "@ct_<guid>:<server>". Zero when the directory
	// could not provide a GUID.
	ChatIdentity ref.UserID

	// DirectoryUsername is the configured username field. May be empty.
	DirectoryUsername string

	// ChatRoomID is the person's private room. Zero when none is known;
	// Issue fills it in after creating one.
	ChatRoomID ref.RoomID
}

func (p *PersonRecord) recipient() communication.Recipient {
	return communication.Recipient{
		PersonID:  p.ID,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Username:  p.DirectoryUsername,
	}
}

// Kind discriminates the Command variants.
type Kind int

const (
	// KindIssue generates, stores, and sends a new credential.
	KindIssue Kind = iota + 1
	// KindHide masks visible credential messages whose display time
	// has passed.
	KindHide
	// KindRemove masks everything, deletes the credential, and
	// notifies the person.
	KindRemove
	// KindRejectUnknown answers a chat message that is not the reset
	// command.
	KindRejectUnknown
)

func (k Kind) String() string {
	switch k {
	case KindIssue:
		return "issue"
	case KindHide:
		return "hide"
	case KindRemove:
		return "remove"
	case KindRejectUnknown:
		return "reject-unknown"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Command is one pending action for one person. Commands in a batch
// for the same person share the PersonRecord, so a room created by
// Issue is visible to the commands after it.
type Command struct {
	Kind   Kind
	Person *PersonRecord

	// HideAll applies to KindHide: mask every credential message
	// regardless of age.
	HideAll bool
}

// Issue returns an Issue command for person.
func Issue(person *PersonRecord) Command { return Command{Kind: KindIssue, Person: person} }

// Hide returns a Hide command for person.
func Hide(person *PersonRecord, hideAll bool) Command {
	return Command{Kind: KindHide, Person: person, HideAll: hideAll}
}

// Remove returns a Remove command for person.
func Remove(person *PersonRecord) Command { return Command{Kind: KindRemove, Person: person} }

// RejectUnknown returns a RejectUnknown command for person.
func RejectUnknown(person *PersonRecord) Command {
	return Command{Kind: KindRejectUnknown, Person: person}
}

// IsPrimary reports whether the command is one of the mutually
// exclusive per-person actions. Hide is housekeeping and is not.
func (c Command) IsPrimary() bool {
	return c.Kind != KindHide
}

func (c Command) String() string {
	if c.Kind == KindHide && c.HideAll {
		return fmt.Sprintf("hide-all(%d)", c.Person.ID)
	}
	return fmt.Sprintf("%s(%d)", c.Kind, c.Person.ID)
}

// Summarize renders a batch as "hide(1) issue(1) ..." for logs.
func Summarize(commands []Command) string {
	parts := make([]string, len(commands))
	for index, command := range commands {
		parts[index] = command.String()
	}
	return strings.Join(parts, " ")
}
