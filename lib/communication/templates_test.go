// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package communication

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bureau-foundation/wifisync/lib/config"
)

func loadTemplates(t *testing.T, language config.Language, overrideDir string) *Templates {
	t.Helper()
	templates, err := Load(language, overrideDir)
	if err != nil {
		t.Fatalf("Load(%s) failed: %v", language, err)
	}
	return templates
}

func TestLoad_EmbeddedLanguages(t *testing.T) {
	for _, language := range []config.Language{config.English, config.German} {
		templates := loadTemplates(t, language, "")
		for _, name := range Names {
			source, origin := templates.Source(name)
			if source == "" {
				t.Errorf("%s/%s: empty source", language, name)
			}
			if !strings.HasPrefix(origin, "embedded:") {
				t.Errorf("%s/%s: origin = %q, want embedded", language, name, origin)
			}
			if strings.HasSuffix(source, "\n") {
				t.Errorf("%s/%s: trailing newline not trimmed", language, name)
			}
		}
	}
}

func TestLoad_UnknownLanguage(t *testing.T) {
	if _, err := Load("fr", ""); err == nil {
		t.Fatal("expected error for a language without templates")
	}
}

// Every shipped template must match its own rendering, otherwise
// discovery and expiry silently stop working.
func TestRenderedTextMatchesOwnPattern(t *testing.T) {
	recipient := Recipient{PersonID: 3, FirstName: "Anna", LastName: "Schmidt", Username: "anna"}
	settings := config.Settings{ResetCommand: "reset", PasswordDisplayTime: 45}
	context := NewContext(recipient, settings, "Xy7pQ2")

	for _, language := range []config.Language{config.English, config.German} {
		templates := loadTemplates(t, language, "")
		for _, name := range []Name{RoomTitle, PasswordMessage, RemovalMessage, UnknownCommandMessage} {
			text, err := templates.Text(name, context)
			if err != nil {
				t.Fatalf("%s/%s: Text failed: %v", language, name, err)
			}
			if !templates.Pattern(name).MatchString(text) {
				t.Errorf("%s/%s: pattern %q does not match %q", language, name, templates.Pattern(name), text)
			}
		}

		hidden, err := templates.Text(PasswordMessage, context.Hidden(6))
		if err != nil {
			t.Fatalf("%s: hidden Text failed: %v", language, err)
		}
		if !templates.Pattern(PasswordMessage).MatchString(hidden) {
			t.Errorf("%s: hidden password message %q does not match its pattern", language, hidden)
		}
		if strings.Contains(hidden, "Xy7pQ2") {
			t.Errorf("%s: hidden rendering leaks the password: %q", language, hidden)
		}
	}
}

func TestMessage_HTML(t *testing.T) {
	templates := loadTemplates(t, config.English, "")
	context := NewContext(Recipient{FirstName: "Anna"}, config.Settings{ResetCommand: "reset"}, "abc123")

	message, err := templates.Message(PasswordMessage, context)
	if err != nil {
		t.Fatalf("Message failed: %v", err)
	}
	if message.Body != "Your new WiFi password: `abc123`" {
		t.Errorf("Body = %q", message.Body)
	}
	if message.HTML != "<p>Your new WiFi password: <code>abc123</code></p>" {
		t.Errorf("HTML = %q", message.HTML)
	}
}

func TestInitialMessage_DisplayTimeSection(t *testing.T) {
	templates := loadTemplates(t, config.English, "")

	shown, err := templates.Text(InitialMessage, NewContext(Recipient{FirstName: "Anna"}, config.Settings{ResetCommand: "reset", PasswordDisplayTime: 75}, ""))
	if err != nil {
		t.Fatalf("Text failed: %v", err)
	}
	if !strings.Contains(shown, "1:15") {
		t.Errorf("initial message should mention the display time, got %q", shown)
	}

	hidden, err := templates.Text(InitialMessage, NewContext(Recipient{FirstName: "Anna"}, config.Settings{ResetCommand: "reset", PasswordDisplayTime: -1}, ""))
	if err != nil {
		t.Fatalf("Text failed: %v", err)
	}
	if strings.Contains(hidden, "masked") {
		t.Errorf("initial message should omit the display time section, got %q", hidden)
	}
}

func TestLoad_Override(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "en"), 0755); err != nil {
		t.Fatal(err)
	}
	overridePath := filepath.Join(dir, "en", "room_title.tmpl")
	if err := os.WriteFile(overridePath, []byte("Gemeinde-WLAN | {{.FirstName}}\n"), 0644); err != nil {
		t.Fatal(err)
	}

	templates := loadTemplates(t, config.English, dir)

	source, origin := templates.Source(RoomTitle)
	if source != "Gemeinde-WLAN | {{.FirstName}}" || origin != overridePath {
		t.Errorf("override not used: source=%q origin=%q", source, origin)
	}
	if !templates.Pattern(RoomTitle).MatchString("Gemeinde-WLAN | Anna") {
		t.Errorf("override pattern %q does not match", templates.Pattern(RoomTitle))
	}

	if _, origin := templates.Source(PasswordMessage); !strings.HasPrefix(origin, "embedded:") {
		t.Errorf("templates without override should stay embedded, got %q", origin)
	}
}

func TestLoad_OverrideParseError(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "de"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "de", "removal_message.tmpl"), []byte("{{if}}"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(config.German, dir); err == nil {
		t.Fatal("expected parse error for a broken override")
	}
}
