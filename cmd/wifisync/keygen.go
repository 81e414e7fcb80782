// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"

	"github.com/bureau-foundation/wifisync/cmd/wifisync/cli"
	"github.com/bureau-foundation/wifisync/lib/config"
	"github.com/bureau-foundation/wifisync/lib/sealed"
)

func keygenCommand(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:    "keygen",
		Summary: "Generate the credential store key",
		Description: `Generate an age identity for the credential store and write it to
path with mode 0600. An existing file is never overwritten.

When WIFISYNC_KEY_PASSPHRASE is set the identity is wrapped with it,
and every later command needs the same variable to open the store.`,
		Usage: "wifisync keygen <path>",
		Examples: []cli.Example{
			{
				Description: "Key wrapped with a passphrase",
				Command:     "WIFISYNC_KEY_PASSPHRASE=... wifisync keygen /var/lib/wifisync/wifisync.key",
			},
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return cli.Validation("expected exactly one path, got %d arguments", len(args))
			}
			path := args[0]

			passphrase, err := config.LoadKeyPassphrase()
			if err != nil {
				return cli.Validation("%w", err)
			}
			if passphrase != nil {
				defer passphrase.Close()
			}

			identity, err := sealed.GenerateIdentity()
			if err != nil {
				return cli.Internal("%w", err)
			}
			defer identity.Close()

			if err := sealed.WriteIdentityFile(path, identity, passphrase); err != nil {
				return cli.Internal("%s: %w", path, err)
			}

			wrapped := "unwrapped"
			if passphrase != nil {
				wrapped = "passphrase-protected"
			}
			fmt.Fprintf(stdout, "wrote %s key to %s\npublic key: %s\n", wrapped, path, identity.Recipient)
			return nil
		},
	}
}
