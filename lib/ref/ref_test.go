// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"encoding/json"
	"testing"
)

func TestParseUserID(t *testing.T) {
	tests := []struct {
		raw     string
		wantErr bool
	}{
		{raw: "@ct_abc:chat.church.tools"},
		{raw: "@admin:localhost"},
		{raw: "", wantErr: true},
		{raw: "ct_abc:chat.church.tools", wantErr: true},
		{raw: "@:chat.church.tools", wantErr: true},
		{raw: "@ct_abc", wantErr: true},
		{raw: "@ct_abc:", wantErr: true},
	}
	for _, test := range tests {
		_, err := ParseUserID(test.raw)
		if (err != nil) != test.wantErr {
			t.Errorf("ParseUserID(%q) error = %v, wantErr %v", test.raw, err, test.wantErr)
		}
	}
}

func TestChatIdentity(t *testing.T) {
	upper, err := ChatIdentity("3F2A9C10-77AB-4E1D-9C2B-0D1E2F3A4B5C", "chat.church.tools")
	if err != nil {
		t.Fatalf("ChatIdentity: %v", err)
	}
	lower, err := ChatIdentity("3f2a9c10-77ab-4e1d-9c2b-0d1e2f3a4b5c", "chat.church.tools")
	if err != nil {
		t.Fatalf("ChatIdentity: %v", err)
	}
	if upper != lower {
		t.Errorf("identities differ by GUID case: %q vs %q", upper, lower)
	}
	want := "@ct_3f2a9c10-77ab-4e1d-9c2b-0d1e2f3a4b5c:chat.church.tools"
	if upper.String() != want {
		t.Errorf("ChatIdentity = %q, want %q", upper, want)
	}
	if upper.Localpart() != "ct_3f2a9c10-77ab-4e1d-9c2b-0d1e2f3a4b5c" {
		t.Errorf("Localpart = %q", upper.Localpart())
	}
	if upper.Server() != "chat.church.tools" {
		t.Errorf("Server = %q", upper.Server())
	}

	if _, err := ChatIdentity("  ", "chat.church.tools"); err == nil {
		t.Error("ChatIdentity with blank GUID should fail")
	}
	if _, err := ChatIdentity("abc", ""); err == nil {
		t.Error("ChatIdentity with empty server should fail")
	}
}

func TestParseRoomID(t *testing.T) {
	valid := []string{"!abc:chat.church.tools", "!x:y"}
	invalid := []string{"", "abc:server", "!:server", "!abc", "!abc:"}
	for _, raw := range valid {
		if _, err := ParseRoomID(raw); err != nil {
			t.Errorf("ParseRoomID(%q) error: %v", raw, err)
		}
	}
	for _, raw := range invalid {
		if _, err := ParseRoomID(raw); err == nil {
			t.Errorf("ParseRoomID(%q) should fail", raw)
		}
	}
}

func TestParseEventID(t *testing.T) {
	if _, err := ParseEventID("$abc"); err != nil {
		t.Errorf("ParseEventID($abc) error: %v", err)
	}
	for _, raw := range []string{"", "$", "abc"} {
		if _, err := ParseEventID(raw); err == nil {
			t.Errorf("ParseEventID(%q) should fail", raw)
		}
	}
}

func TestTextRoundTrip(t *testing.T) {
	type wrapper struct {
		User  UserID  `json:"user"`
		Room  RoomID  `json:"room"`
		Event EventID `json:"event"`
		Unset RoomID  `json:"unset"`
	}
	original := wrapper{
		User:  MustParseUserID("@ct_abc:chat.church.tools"),
		Room:  MustParseRoomID("!room:chat.church.tools"),
		Event: MustParseEventID("$event"),
	}
	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded wrapper
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded != original {
		t.Errorf("round trip = %+v, want %+v", decoded, original)
	}
	if !decoded.Unset.IsZero() {
		t.Errorf("Unset = %q, want zero", decoded.Unset)
	}

	var bad wrapper
	if err := json.Unmarshal([]byte(`{"room":"not-a-room"}`), &bad); err == nil {
		t.Error("Unmarshal of an invalid room ID should fail")
	}
}
