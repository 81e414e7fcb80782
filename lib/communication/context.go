// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package communication

import (
	"fmt"
	"strings"

	"github.com/bureau-foundation/wifisync/lib/config"
)

// Recipient is the person-facing part of a template context.
type Recipient struct {
	PersonID  int64
	FirstName string
	LastName  string
	Username  string
}

// Context is the read-only view every template renders against.
type Context struct {
	PersonID  int64
	FirstName string
	LastName  string
	Username  string

	ResetCommand string

	// AutoReset and PasswordDisplayTime are in minutes.
	AutoReset           int
	PasswordDisplayTime int

	// ShowPasswordDisplayTime is true when PasswordDisplayTime > 0.
	ShowPasswordDisplayTime bool

	// PasswordDisplayTimeFormatted is PasswordDisplayTime as "H:MM".
	// Empty when ShowPasswordDisplayTime is false.
	PasswordDisplayTimeFormatted string

	// Password is the secret, or its mask in a hidden rendering.
	// Empty outside the password message.
	Password string
}

// NewContext merges a recipient and their settings into a template
// context. It has no side effects.
func NewContext(recipient Recipient, settings config.Settings, password string) Context {
	context := Context{
		PersonID:            recipient.PersonID,
		FirstName:           recipient.FirstName,
		LastName:            recipient.LastName,
		Username:            recipient.Username,
		ResetCommand:        settings.ResetCommand,
		AutoReset:           settings.AutoReset,
		PasswordDisplayTime: settings.PasswordDisplayTime,
		Password:            password,
	}
	if settings.PasswordDisplayTime > 0 {
		context.ShowPasswordDisplayTime = true
		context.PasswordDisplayTimeFormatted = FormatMinutes(settings.PasswordDisplayTime)
	}
	return context
}

// Hidden returns a copy of c whose password is replaced by length
// asterisks. The mask length follows the configured password length,
// not the length of whatever was in c.Password.
func (c Context) Hidden(length int) Context {
	if length < 0 {
		length = 0
	}
	c.Password = strings.Repeat("*", length)
	return c
}

// FormatMinutes renders a minute count as "H:MM".
func FormatMinutes(minutes int) string {
	return fmt.Sprintf("%d:%02d", minutes/60, minutes%60)
}
