// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package communication

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"text/template"

	"github.com/bureau-foundation/wifisync/lib/config"
)

//go:embed templates/en/*.tmpl templates/de/*.tmpl
var embeddedTemplates embed.FS

// Name identifies one of the chat texts.
type Name string

const (
	// RoomTitle names the private room created per person.
	RoomTitle Name = "room_title"
	// InitialMessage is sent once, right after a room is created.
	InitialMessage Name = "initial_message"
	// PasswordMessage carries a newly issued password.
	PasswordMessage Name = "password_message"
	// RemovalMessage tells a person their access has ended.
	RemovalMessage Name = "removal_message"
	// UnknownCommandMessage answers a chat message that is not the
	// reset command.
	UnknownCommandMessage Name = "unknown_command_message"
)

// Names lists every template in a stable order.
var Names = []Name{RoomTitle, InitialMessage, PasswordMessage, RemovalMessage, UnknownCommandMessage}

// Message is a rendered chat message.
type Message struct {
	// Body is the plain (Markdown) text. Matching always runs against
	// the body.
	Body string

	// HTML is Body converted to HTML, for formatted_body.
	HTML string
}

type entry struct {
	source   string
	origin   string
	template *template.Template
	pattern  *regexp.Regexp
}

// Templates is a loaded template set for one language. It is
// immutable after [Load] and safe for concurrent use.
type Templates struct {
	language config.Language
	entries  map[Name]*entry
}

// Load parses every template for language. A file
// <overrideDir>/<language>/<name>.tmpl replaces the embedded default
// for that name; overrideDir may be empty.
func Load(language config.Language, overrideDir string) (*Templates, error) {
	templates := &Templates{
		language: language,
		entries:  make(map[Name]*entry, len(Names)),
	}
	for _, name := range Names {
		source, origin, err := readSource(language, overrideDir, name)
		if err != nil {
			return nil, err
		}
		parsed, err := template.New(string(name)).Option("missingkey=error").Parse(source)
		if err != nil {
			return nil, fmt.Errorf("communication: parsing %s: %w", origin, err)
		}
		pattern, err := PatternFor(source)
		if err != nil {
			return nil, err
		}
		templates.entries[name] = &entry{
			source:   source,
			origin:   origin,
			template: parsed,
			pattern:  pattern,
		}
	}
	return templates, nil
}

func readSource(language config.Language, overrideDir string, name Name) (string, string, error) {
	fileName := string(name) + ".tmpl"
	if overrideDir != "" {
		path := filepath.Join(overrideDir, string(language), fileName)
		data, err := os.ReadFile(path)
		if err == nil {
			return trimSource(data), path, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", "", fmt.Errorf("communication: reading override %s: %w", path, err)
		}
	}

	path := "templates/" + string(language) + "/" + fileName
	data, err := embeddedTemplates.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("communication: no %s template for language %q: %w", name, language, err)
	}
	return trimSource(data), "embedded:" + path, nil
}

// trimSource drops the final newline editors add, which would
// otherwise become part of every room name and message.
func trimSource(data []byte) string {
	return strings.TrimRight(string(data), "\r\n")
}

// Language returns the language the set was loaded for.
func (t *Templates) Language() config.Language { return t.language }

// Source returns the raw template text and where it came from
// ("embedded:templates/en/room_title.tmpl" or a filesystem path).
func (t *Templates) Source(name Name) (source, origin string) {
	e := t.lookup(name)
	return e.source, e.origin
}

// Pattern returns the matcher for name.
func (t *Templates) Pattern(name Name) *regexp.Regexp {
	return t.lookup(name).pattern
}

// Text renders name as plain text.
func (t *Templates) Text(name Name, context Context) (string, error) {
	var builder strings.Builder
	if err := t.lookup(name).template.Execute(&builder, context); err != nil {
		return "", fmt.Errorf("communication: rendering %s: %w", name, err)
	}
	return builder.String(), nil
}

// Message renders name and converts the result to HTML.
func (t *Templates) Message(name Name, context Context) (Message, error) {
	body, err := t.Text(name, context)
	if err != nil {
		return Message{}, err
	}
	html, err := markdownToHTML(body)
	if err != nil {
		return Message{}, fmt.Errorf("communication: converting %s to HTML: %w", name, err)
	}
	return Message{Body: body, HTML: html}, nil
}

func (t *Templates) lookup(name Name) *entry {
	e, ok := t.entries[name]
	if !ok {
		panic(fmt.Sprintf("communication: unknown template %q", name))
	}
	return e
}
