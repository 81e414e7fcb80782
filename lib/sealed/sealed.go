// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sealed

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"filippo.io/age"
	"filippo.io/age/armor"

	"github.com/bureau-foundation/wifisync/lib/secret"
)

// Identity is an age x25519 identity loaded into protected memory,
// together with its public recipient string.
//
// The caller must call Close when the identity is no longer needed.
type Identity struct {
	// PrivateKey holds the AGE-SECRET-KEY-1... string in mmap memory.
	// It must never be logged or written to disk unwrapped outside the
	// identity file.
	PrivateKey *secret.Buffer

	// Recipient is the age1... public key derived from PrivateKey.
	// Values are encrypted to it.
	Recipient string
}

// Close releases the private key memory. Idempotent.
func (i *Identity) Close() error {
	if i.PrivateKey != nil {
		return i.PrivateKey.Close()
	}
	return nil
}

// GenerateIdentity creates a new age x25519 identity.
func GenerateIdentity() (*Identity, error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("generating age identity: %w", err)
	}

	privateKey, err := secret.NewFromString(identity.String())
	if err != nil {
		return nil, fmt.Errorf("protecting private key: %w", err)
	}
	return &Identity{
		PrivateKey: privateKey,
		Recipient:  identity.Recipient().String(),
	}, nil
}

// ParseIdentity validates an AGE-SECRET-KEY-1... string held in a
// buffer and derives its recipient. The buffer is borrowed; the
// returned Identity shares it, so closing either closes both.
func ParseIdentity(privateKey *secret.Buffer) (*Identity, error) {
	identity, err := age.ParseX25519Identity(privateKey.String())
	if err != nil {
		return nil, fmt.Errorf("invalid age private key: %w", err)
	}
	return &Identity{
		PrivateKey: privateKey,
		Recipient:  identity.Recipient().String(),
	}, nil
}

// LoadIdentity reads an identity file written by WriteIdentityFile.
//
// A plain file holds one AGE-SECRET-KEY-1... line, optionally preceded
// by "#" comment lines. A wrapped file is an armored age file encrypted
// to a scrypt passphrase; passphrase must then be non-nil. The
// passphrase buffer is borrowed and not closed.
func LoadIdentity(path string, passphrase *secret.Buffer) (*Identity, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading identity file: %w", err)
	}
	defer secret.Zero(contents)

	if bytes.HasPrefix(bytes.TrimSpace(contents), []byte(armor.Header)) {
		if passphrase == nil {
			return nil, fmt.Errorf("identity file %s is passphrase-protected but no passphrase was provided", path)
		}
		unwrapped, err := unwrapIdentity(contents, passphrase)
		if err != nil {
			return nil, fmt.Errorf("unwrapping identity file %s: %w", path, err)
		}
		defer secret.Zero(unwrapped)
		contents = unwrapped
	}

	keyLine, err := identityLine(contents)
	if err != nil {
		return nil, fmt.Errorf("identity file %s: %w", path, err)
	}
	privateKey, err := secret.NewFromBytes(keyLine)
	if err != nil {
		return nil, fmt.Errorf("protecting private key: %w", err)
	}
	identity, err := ParseIdentity(privateKey)
	if err != nil {
		privateKey.Close()
		return nil, err
	}
	return identity, nil
}

// WriteIdentityFile writes identity to path with mode 0600. When
// passphrase is non-nil the file is armored and encrypted to a scrypt
// recipient derived from it. An existing file is never overwritten.
func WriteIdentityFile(path string, identity *Identity, passphrase *secret.Buffer) error {
	var contents bytes.Buffer
	fmt.Fprintf(&contents, "# public key: %s\n", identity.Recipient)
	contents.Write(identity.PrivateKey.Bytes())
	contents.WriteByte('\n')
	plaintext := contents.Bytes()
	defer secret.Zero(plaintext)

	output := plaintext
	if passphrase != nil {
		recipient, err := age.NewScryptRecipient(passphrase.String())
		if err != nil {
			return fmt.Errorf("creating scrypt recipient: %w", err)
		}
		var wrapped bytes.Buffer
		armored := armor.NewWriter(&wrapped)
		writer, err := age.Encrypt(armored, recipient)
		if err != nil {
			return fmt.Errorf("creating age encryptor: %w", err)
		}
		if _, err := writer.Write(plaintext); err != nil {
			return fmt.Errorf("writing identity to age encryptor: %w", err)
		}
		if err := writer.Close(); err != nil {
			return fmt.Errorf("finalizing age encryption: %w", err)
		}
		if err := armored.Close(); err != nil {
			return fmt.Errorf("finalizing armor: %w", err)
		}
		output = wrapped.Bytes()
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("creating identity file: %w", err)
	}
	if _, err := file.Write(output); err != nil {
		file.Close()
		return fmt.Errorf("writing identity file: %w", err)
	}
	return file.Close()
}

// Encrypt encrypts plaintext to one or more age recipients (age1...
// strings) and returns the binary age ciphertext.
func Encrypt(plaintext []byte, recipientKeys ...string) ([]byte, error) {
	if len(recipientKeys) == 0 {
		return nil, fmt.Errorf("at least one recipient is required")
	}

	recipients := make([]age.Recipient, 0, len(recipientKeys))
	for _, key := range recipientKeys {
		recipient, err := age.ParseX25519Recipient(key)
		if err != nil {
			return nil, fmt.Errorf("parsing recipient key %q: %w", key, err)
		}
		recipients = append(recipients, recipient)
	}

	var ciphertext bytes.Buffer
	writer, err := age.Encrypt(&ciphertext, recipients...)
	if err != nil {
		return nil, fmt.Errorf("creating age encryptor: %w", err)
	}
	if _, err := writer.Write(plaintext); err != nil {
		return nil, fmt.Errorf("writing plaintext to age encryptor: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finalizing age encryption: %w", err)
	}
	return ciphertext.Bytes(), nil
}

// Decrypt decrypts an age ciphertext with the identity's private key.
// The returned plaintext is on the heap; callers zero it with
// secret.Zero once decoded.
func Decrypt(ciphertext []byte, identity *Identity) ([]byte, error) {
	parsed, err := age.ParseX25519Identity(identity.PrivateKey.String())
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}

	reader, err := age.Decrypt(bytes.NewReader(ciphertext), parsed)
	if err != nil {
		return nil, fmt.Errorf("decrypting: %w", err)
	}
	plaintext, err := io.ReadAll(reader)
	if err != nil {
		secret.Zero(plaintext)
		return nil, fmt.Errorf("reading decrypted plaintext: %w", err)
	}
	return plaintext, nil
}

// ParseRecipient validates an age public key string.
func ParseRecipient(publicKey string) error {
	if _, err := age.ParseX25519Recipient(publicKey); err != nil {
		return fmt.Errorf("invalid age public key: %w", err)
	}
	return nil
}

func unwrapIdentity(contents []byte, passphrase *secret.Buffer) ([]byte, error) {
	scryptIdentity, err := age.NewScryptIdentity(passphrase.String())
	if err != nil {
		return nil, err
	}
	reader, err := age.Decrypt(armor.NewReader(bytes.NewReader(contents)), scryptIdentity)
	if err != nil {
		return nil, err
	}
	return io.ReadAll(reader)
}

// identityLine returns the first non-comment, non-blank line.
func identityLine(contents []byte) ([]byte, error) {
	scanner := bufio.NewScanner(bytes.NewReader(contents))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		return []byte(line), nil
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("no identity found")
}
