// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import "fmt"

// EventID is a Matrix event ID such as "$Rqnc-F-dvnEYJTyHq_iKxU2bZ1CI92-kuZq3a5lr5Zg".
// Since room version 4 event IDs carry no server part, so only the '$'
// sigil is checked. wifisync keeps them to edit password messages in
// place.
type EventID struct {
	id string
}

// ParseEventID validates and wraps a raw event ID.
func ParseEventID(raw string) (EventID, error) {
	if len(raw) < 2 || raw[0] != '$' {
		return EventID{}, fmt.Errorf("event ID must be '$' followed by at least one character: %q", raw)
	}
	return EventID{id: raw}, nil
}

// MustParseEventID panics where ParseEventID would fail. For tests.
func MustParseEventID(raw string) EventID {
	eventID, err := ParseEventID(raw)
	if err != nil {
		panic(err)
	}
	return eventID
}

func (e EventID) String() string { return e.id }

// IsZero reports whether e is unset.
func (e EventID) IsZero() bool { return e.id == "" }

// MarshalText implements encoding.TextMarshaler.
func (e EventID) MarshalText() ([]byte, error) { return []byte(e.id), nil }

// UnmarshalText implements encoding.TextUnmarshaler. Empty input
// yields the zero value, which the homeserver never sends for a real
// event.
func (e *EventID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*e = EventID{}
		return nil
	}
	parsed, err := ParseEventID(string(data))
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}
