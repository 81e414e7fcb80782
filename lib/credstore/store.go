// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package credstore

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/zeebo/blake3"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/wifisync/lib/clock"
	"github.com/bureau-foundation/wifisync/lib/codec"
	"github.com/bureau-foundation/wifisync/lib/sealed"
	"github.com/bureau-foundation/wifisync/lib/sqlitepool"
)

// ErrNotFound is returned when no record exists for a person id.
var ErrNotFound = errors.New("credstore: no credential for person")

const schema = `
CREATE TABLE IF NOT EXISTS credentials (
	person_id  INTEGER PRIMARY KEY,
	sealed     BLOB    NOT NULL,
	updated_at INTEGER NOT NULL
) STRICT;
`

// Record is a decrypted credential.
type Record struct {
	PersonID int64
	Secret   string
	IssuedAt time.Time
}

// Fingerprint returns the fingerprint of the record's secret.
func (r Record) Fingerprint() string { return Fingerprint(r.Secret) }

// sealedRecord is the plaintext inside each row's ciphertext.
type sealedRecord struct {
	PersonID int64     `cbor:"person_id"`
	Secret   string    `cbor:"secret"`
	IssuedAt time.Time `cbor:"issued_at"`
}

// Config holds the parameters for a [Store].
type Config struct {
	// Path is the SQLite file. Its directory must exist.
	Path string

	// Identity decrypts records; its recipient encrypts them.
	// Required. The store does not take ownership.
	Identity *sealed.Identity

	// Clock stamps IssuedAt. Defaults to clock.Real().
	Clock clock.Clock

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Store reads and writes credentials. It holds no open handles
// between calls.
type Store struct {
	path     string
	identity *sealed.Identity
	clock    clock.Clock
	logger   *slog.Logger
}

// New validates cfg and returns a Store. The database file is created
// on first access.
func New(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("credstore: Path is required")
	}
	if cfg.Identity == nil {
		return nil, fmt.Errorf("credstore: Identity is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Store{
		path:     cfg.Path,
		identity: cfg.Identity,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
	}, nil
}

// withConn opens the database, runs fn on a single connection, and
// closes the database again.
func (s *Store) withConn(ctx context.Context, fn func(conn *sqlite.Conn) error) (err error) {
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     s.path,
		PoolSize: 1,
		Logger:   s.logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		return fmt.Errorf("credstore: %w", err)
	}
	defer func() {
		if closeErr := pool.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("credstore: %w", closeErr)
		}
	}()

	conn, err := pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("credstore: %w", err)
	}
	defer pool.Put(conn)

	return fn(conn)
}

// Get returns the credential for personID, or ErrNotFound.
func (s *Store) Get(ctx context.Context, personID int64) (Record, error) {
	var ciphertext []byte
	err := s.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "SELECT sealed FROM credentials WHERE person_id = ?", &sqlitex.ExecOptions{
			Args: []any{personID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				ciphertext = make([]byte, stmt.ColumnLen(0))
				stmt.ColumnBytes(0, ciphertext)
				return nil
			},
		})
	})
	if err != nil {
		return Record{}, fmt.Errorf("credstore: reading person %d: %w", personID, err)
	}
	if ciphertext == nil {
		return Record{}, fmt.Errorf("%w %d", ErrNotFound, personID)
	}
	return s.open(personID, ciphertext)
}

// Set stores secret for personID, replacing any existing record.
func (s *Store) Set(ctx context.Context, personID int64, secret string) error {
	ciphertext, err := s.seal(personID, secret)
	if err != nil {
		return err
	}
	err = s.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `
			INSERT INTO credentials (person_id, sealed, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(person_id) DO UPDATE SET sealed = excluded.sealed, updated_at = excluded.updated_at`,
			&sqlitex.ExecOptions{Args: []any{personID, ciphertext, s.clock.Now().UnixNano()}})
	})
	if err != nil {
		return fmt.Errorf("credstore: writing person %d: %w", personID, err)
	}
	s.logger.Debug("credential stored", "person_id", personID, "fingerprint", Fingerprint(secret))
	return nil
}

// Update replaces the secret of an existing record. It returns
// ErrNotFound when personID has no record.
func (s *Store) Update(ctx context.Context, personID int64, secret string) error {
	ciphertext, err := s.seal(personID, secret)
	if err != nil {
		return err
	}
	var changed int
	err = s.withConn(ctx, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn, "UPDATE credentials SET sealed = ?, updated_at = ? WHERE person_id = ?",
			&sqlitex.ExecOptions{Args: []any{ciphertext, s.clock.Now().UnixNano(), personID}})
		changed = conn.Changes()
		return err
	})
	if err != nil {
		return fmt.Errorf("credstore: updating person %d: %w", personID, err)
	}
	if changed == 0 {
		return fmt.Errorf("%w %d", ErrNotFound, personID)
	}
	s.logger.Debug("credential updated", "person_id", personID, "fingerprint", Fingerprint(secret))
	return nil
}

// Delete removes the record for personID. Deleting an absent record
// is not an error; the return value reports whether a row existed.
func (s *Store) Delete(ctx context.Context, personID int64) (bool, error) {
	var changed int
	err := s.withConn(ctx, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn, "DELETE FROM credentials WHERE person_id = ?",
			&sqlitex.ExecOptions{Args: []any{personID}})
		changed = conn.Changes()
		return err
	})
	if err != nil {
		return false, fmt.Errorf("credstore: deleting person %d: %w", personID, err)
	}
	if changed > 0 {
		s.logger.Debug("credential deleted", "person_id", personID)
	}
	return changed > 0, nil
}

// ListIDs returns every person id with a record, ascending.
func (s *Store) ListIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := s.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "SELECT person_id FROM credentials ORDER BY person_id", &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				ids = append(ids, stmt.ColumnInt64(0))
				return nil
			},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("credstore: listing ids: %w", err)
	}
	return ids, nil
}

// Contains reports whether personID has a record.
func (s *Store) Contains(ctx context.Context, personID int64) (bool, error) {
	var found bool
	err := s.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "SELECT 1 FROM credentials WHERE person_id = ?", &sqlitex.ExecOptions{
			Args: []any{personID},
			ResultFunc: func(*sqlite.Stmt) error {
				found = true
				return nil
			},
		})
	})
	if err != nil {
		return false, fmt.Errorf("credstore: checking person %d: %w", personID, err)
	}
	return found, nil
}

// List decrypts and returns every record, ascending by person id.
// Used by administrative listing; the sync path only needs ListIDs.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	type row struct {
		personID   int64
		ciphertext []byte
	}
	var rows []row
	err := s.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "SELECT person_id, sealed FROM credentials ORDER BY person_id", &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				ciphertext := make([]byte, stmt.ColumnLen(1))
				stmt.ColumnBytes(1, ciphertext)
				rows = append(rows, row{personID: stmt.ColumnInt64(0), ciphertext: ciphertext})
				return nil
			},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("credstore: listing records: %w", err)
	}

	records := make([]Record, 0, len(rows))
	for _, r := range rows {
		record, err := s.open(r.personID, r.ciphertext)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

func (s *Store) seal(personID int64, secret string) ([]byte, error) {
	if personID <= 0 {
		return nil, fmt.Errorf("credstore: person id %d must be positive", personID)
	}
	if secret == "" {
		return nil, fmt.Errorf("credstore: empty secret for person %d", personID)
	}
	plaintext, err := codec.Marshal(sealedRecord{
		PersonID: personID,
		Secret:   secret,
		IssuedAt: s.clock.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("credstore: encoding person %d: %w", personID, err)
	}
	ciphertext, err := sealed.Encrypt(plaintext, s.identity.Recipient)
	if err != nil {
		return nil, fmt.Errorf("credstore: encrypting person %d: %w", personID, err)
	}
	return ciphertext, nil
}

func (s *Store) open(personID int64, ciphertext []byte) (Record, error) {
	plaintext, err := sealed.Decrypt(ciphertext, s.identity)
	if err != nil {
		return Record{}, fmt.Errorf("credstore: decrypting person %d: %w", personID, err)
	}
	var decoded sealedRecord
	if err := codec.Unmarshal(plaintext, &decoded); err != nil {
		return Record{}, fmt.Errorf("credstore: decoding person %d: %w", personID, err)
	}
	if decoded.PersonID != personID {
		return Record{}, fmt.Errorf("credstore: row %d holds the record of person %d", personID, decoded.PersonID)
	}
	return Record{PersonID: personID, Secret: decoded.Secret, IssuedAt: decoded.IssuedAt}, nil
}

// Fingerprint returns a short BLAKE3 digest of secret for logs and
// listings. It identifies a credential without revealing it.
func Fingerprint(secret string) string {
	sum := blake3.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:8])
}
