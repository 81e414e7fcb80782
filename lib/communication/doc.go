// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package communication renders the chat texts wifisync sends and
// recognizes them again when reading a room's history.
//
// Five templates exist per language (see [Name]). Each is Go
// text/template source embedded from templates/<language>/. An
// operator can replace individual files by pointing templates_dir at a
// directory with the same layout.
//
// Every template doubles as a matcher. [PatternFor] turns template
// source into an anchored regular expression with a deliberately
// small grammar:
//
//   - literal text matches itself exactly (regex metacharacters are
//     quoted);
//   - every {{...}} action, whatever it contains, matches ".+?";
//   - the expression is anchored with ^ and $.
//
// Room discovery and credential-message lookup rely on this, so a
// template that renders an action to the empty string can never be
// matched. The shipped password and room-title templates keep every
// action non-empty.
//
// Message bodies are Markdown. [Templates.Message] also converts the
// body to HTML with goldmark for Matrix's formatted_body.
package communication
