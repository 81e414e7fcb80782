// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool opens SQLite databases with the pragmas wifisync
// relies on. It wraps zombiezen.com/go/sqlite (pure Go, no cgo).
//
// The credential store opens a pool per access and closes it again,
// so the sync loop, the authorize command, and operator "users"
// commands can share one database file without holding it open
// between operations. WAL mode lets the authorize path read while a
// sync pass writes, and busy_timeout absorbs short write contention.
//
// # Pragmas
//
//   - journal_mode=WAL: readers never block the writer.
//   - synchronous=FULL: a credential written before a chat message is
//     sent survives power loss, so a user is never told a password the
//     store forgot.
//   - busy_timeout=5000: wait up to 5 seconds for the write lock.
//   - secure_delete=ON: deleted and replaced rows are overwritten with
//     zeros, so a revoked credential's ciphertext does not linger in
//     free pages.
//   - temp_store=MEMORY
//
// A new database file is created with mode 0600 before SQLite opens it.
//
// # Usage
//
//	pool, err := sqlitepool.Open(sqlitepool.Config{
//	    Path:     "/var/lib/wifisync/credentials.db",
//	    PoolSize: 1,
//	    OnConnect: func(conn *sqlite.Conn) error {
//	        return sqlitex.ExecuteScript(conn, schema, nil)
//	    },
//	})
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
package sqlitepool
