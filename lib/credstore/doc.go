// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package credstore is the WiFi credential store: one encrypted record
// per ChurchTools person id in a SQLite file.
//
// Each record is the CBOR encoding of {person_id, secret, issued_at}
// encrypted to the store's age recipient. The person id inside the
// ciphertext must equal the row key; a ciphertext copied to another
// row fails to read instead of handing one person's password to
// someone else.
//
// The existence of a row is the authoritative "has an active
// credential" signal used by the sync planner.
//
// The database is opened for each operation and closed afterwards, so
// the sync daemon and the authorize command never hold the file open
// at the same time for longer than a single statement.
package credstore
