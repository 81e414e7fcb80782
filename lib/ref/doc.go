// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package ref provides validated, immutable Matrix identifiers: user
// IDs, room IDs, and event IDs. Values are parsed once at the API
// boundary (Matrix responses, configuration overrides) and passed
// around as types instead of bare strings.
//
// ChurchTools provisions one Matrix account per person, named after
// the person's directory GUID. ChatIdentity derives that account's
// user ID so the directory and chat sides can be joined without a
// lookup.
//
// All types implement encoding.TextMarshaler and TextUnmarshaler, so
// they round-trip through JSON and YAML as their canonical strings.
// The zero value of each type is "unset"; use IsZero.
package ref
