// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"testing"
	"time"
)

type testRecord struct {
	Secret   string    `cbor:"secret"`
	IssuedAt time.Time `cbor:"issued_at"`
	Version  int       `cbor:"version,omitempty"`
}

func TestMarshalDeterministic(t *testing.T) {
	record := testRecord{
		Secret:   "Wx7kPq2m",
		IssuedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	first, err := Marshal(record)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	second, err := Marshal(record)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("Marshal produced different bytes for the same value")
	}

	var decoded testRecord
	if err := Unmarshal(first, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Secret != record.Secret || !decoded.IssuedAt.Equal(record.IssuedAt) {
		t.Errorf("decoded = %+v, want %+v", decoded, record)
	}
}

func TestUnmarshalIgnoresUnknownFields(t *testing.T) {
	data, err := Marshal(map[string]any{
		"secret":    "abc",
		"issued_at": "2026-03-01T12:00:00Z",
		"rotated":   true,
	})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded testRecord
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal with an unknown field: %v", err)
	}
	if decoded.Secret != "abc" {
		t.Errorf("Secret = %q, want %q", decoded.Secret, "abc")
	}
}

func TestUnmarshalRejectsDuplicateKeys(t *testing.T) {
	// {"secret": "a", "secret": "b"} written by hand: a map of two
	// pairs with the same text key.
	data := []byte{0xa2, 0x66, 's', 'e', 'c', 'r', 'e', 't', 0x61, 'a', 0x66, 's', 'e', 'c', 'r', 'e', 't', 0x61, 'b'}

	var decoded testRecord
	if err := Unmarshal(data, &decoded); err == nil {
		t.Fatalf("Unmarshal accepted a duplicate key, decoded %+v", decoded)
	}
}
