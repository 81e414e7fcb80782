// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package communication

import (
	"testing"

	"github.com/bureau-foundation/wifisync/lib/config"
)

func TestNewContext(t *testing.T) {
	recipient := Recipient{PersonID: 7, FirstName: "Anna", LastName: "Schmidt", Username: "anna"}
	settings := config.Settings{ResetCommand: "reset", AutoReset: 1440, PasswordDisplayTime: 90}

	context := NewContext(recipient, settings, "s3cret")

	if context.PersonID != 7 || context.FirstName != "Anna" || context.Username != "anna" {
		t.Errorf("recipient fields not copied: %+v", context)
	}
	if context.ResetCommand != "reset" || context.AutoReset != 1440 {
		t.Errorf("settings not copied: %+v", context)
	}
	if !context.ShowPasswordDisplayTime {
		t.Error("ShowPasswordDisplayTime should be true for a positive display time")
	}
	if context.PasswordDisplayTimeFormatted != "1:30" {
		t.Errorf("PasswordDisplayTimeFormatted = %q, want 1:30", context.PasswordDisplayTimeFormatted)
	}
	if context.Password != "s3cret" {
		t.Errorf("Password = %q", context.Password)
	}
}

func TestNewContext_DisplayTimeNotShown(t *testing.T) {
	for _, minutes := range []int{0, -1} {
		context := NewContext(Recipient{}, config.Settings{PasswordDisplayTime: minutes}, "")
		if context.ShowPasswordDisplayTime {
			t.Errorf("display time %d: ShowPasswordDisplayTime should be false", minutes)
		}
		if context.PasswordDisplayTimeFormatted != "" {
			t.Errorf("display time %d: formatted = %q, want empty", minutes, context.PasswordDisplayTimeFormatted)
		}
	}
}

func TestHidden(t *testing.T) {
	original := NewContext(Recipient{FirstName: "Anna"}, config.Settings{}, "abc")
	hidden := original.Hidden(6)

	if hidden.Password != "******" {
		t.Errorf("Hidden(6).Password = %q", hidden.Password)
	}
	if original.Password != "abc" {
		t.Errorf("Hidden must not modify the receiver, got %q", original.Password)
	}
	if hidden.FirstName != "Anna" {
		t.Errorf("Hidden dropped other fields: %+v", hidden)
	}
}

func TestFormatMinutes(t *testing.T) {
	tests := map[int]string{0: "0:00", 5: "0:05", 60: "1:00", 135: "2:15", 1440: "24:00"}
	for minutes, want := range tests {
		if got := FormatMinutes(minutes); got != want {
			t.Errorf("FormatMinutes(%d) = %q, want %q", minutes, got, want)
		}
	}
}
