// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the small command framework behind the wifisync
// binary.
//
// A [Command] has a name, an optional [pflag.FlagSet] factory, and
// either a Run function or nested subcommands. [Command.Execute] parses
// flags, routes to subcommands, and prints help. Unknown commands and
// flags get a "did you mean" suggestion when one is within an edit
// distance of three.
//
// Handlers report bad input with [Validation] and unexpected failures
// with [Internal]. A handler that has already printed its outcome and
// only needs a non-zero status returns an [ExitError].
package cli
