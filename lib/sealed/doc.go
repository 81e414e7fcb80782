// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sealed wraps filippo.io/age for the credential store.
//
// Every stored WiFi credential is encrypted to the recipient of a
// single x25519 identity kept in an identity file on the sync host.
// The identity file may itself be wrapped with a scrypt passphrase
// (armored age), in which case LoadIdentity needs the passphrase.
// Private keys are held in secret.Buffer memory.
package sealed
