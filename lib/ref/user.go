// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"fmt"
	"strings"
)

// chatIdentityPrefix is the localpart prefix ChurchTools uses for the
// Matrix accounts it provisions for directory persons.
const chatIdentityPrefix = "ct_"

// UserID is a validated Matrix user ID (e.g., "@ct_3f2a...:chat.church.tools").
//
// Matrix user IDs compare case-sensitively on the wire, but the
// ChurchTools-derived identities are always lowercase, so ChatIdentity
// normalizes before constructing.
type UserID struct {
	id string
}

// ParseUserID validates and wraps a raw Matrix user ID string.
func ParseUserID(raw string) (UserID, error) {
	if _, _, err := splitID(raw, '@', "user ID"); err != nil {
		return UserID{}, err
	}
	return UserID{id: raw}, nil
}

// MustParseUserID is like ParseUserID but panics on error. Use in
// tests where the input is known to be valid.
func MustParseUserID(raw string) UserID {
	userID, err := ParseUserID(raw)
	if err != nil {
		panic(fmt.Sprintf("ref.MustParseUserID(%q): %v", raw, err))
	}
	return userID
}

// ChatIdentity derives the Matrix user ID of the account ChurchTools
// provisions for the person with the given directory GUID:
// "@ct_<lowercase guid>:<server>". The GUID comparison is
// case-insensitive, so two spellings of one GUID yield the same
// identity.
func ChatIdentity(guid, server string) (UserID, error) {
	guid = strings.TrimSpace(guid)
	if guid == "" {
		return UserID{}, fmt.Errorf("empty directory GUID")
	}
	if server == "" {
		return UserID{}, fmt.Errorf("empty chat server name")
	}
	return ParseUserID("@" + chatIdentityPrefix + strings.ToLower(guid) + ":" + server)
}

// String returns the full user ID.
func (u UserID) String() string { return u.id }

// IsZero reports whether the UserID is unset.
func (u UserID) IsZero() bool { return u.id == "" }

// Localpart returns the part between '@' and ':'. Returns "" for the
// zero value.
func (u UserID) Localpart() string {
	localpart, _, _ := splitID(u.id, '@', "user ID")
	return localpart
}

// Server returns the part after the first ':'. Returns "" for the
// zero value.
func (u UserID) Server() string {
	_, server, _ := splitID(u.id, '@', "user ID")
	return server
}

// MarshalText implements encoding.TextMarshaler.
func (u UserID) MarshalText() ([]byte, error) {
	return []byte(u.id), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Empty input
// produces the zero value.
func (u *UserID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*u = UserID{}
		return nil
	}
	parsed, err := ParseUserID(string(data))
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}
