// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/wifisync/cmd/wifisync/cli"
	"github.com/bureau-foundation/wifisync/lib/config"
	"github.com/bureau-foundation/wifisync/lib/credstore"
)

func usersCommand(stdout io.Writer, stdin io.Reader) *cli.Command {
	return &cli.Command{
		Name:    "users",
		Summary: "Inspect and edit stored WiFi credentials",
		Description: `Inspect and edit the credential store directly.

These commands need only the config file and the store key. They do
not contact ChurchTools or Matrix, so a credential changed here is not
announced to the person. Sync passes keep it until the person leaves
every access group or the credential expires.`,
		Subcommands: []*cli.Command{
			usersListCommand(stdout),
			usersAddCommand(stdout, stdin),
			usersSetCommand(stdout, stdin),
			usersDeleteCommand(stdout),
			usersShowCommand(stdout),
		},
	}
}

// withStore opens the store named by o's config for the duration of
// fn. Only WIFISYNC_KEY_PASSPHRASE is read from the environment.
func withStore(o *options, fn func(ctx context.Context, cfg *config.Config, store *credstore.Store) error) error {
	cfg, logger, err := o.load()
	if err != nil {
		return err
	}
	passphrase, err := config.LoadKeyPassphrase()
	if err != nil {
		return cli.Validation("%w", err)
	}
	store, identity, err := openStore(cfg, passphrase, logger)
	if passphrase != nil {
		passphrase.Close()
	}
	if err != nil {
		return err
	}
	defer identity.Close()
	return fn(context.Background(), cfg, store)
}

// newSecret prompts when prompt is set and generates otherwise.
func newSecret(cfg *config.Config, stdin io.Reader, prompt bool) (string, error) {
	if prompt {
		return readSecret(stdin, "New WiFi password: ")
	}
	generated, err := credstore.GenerateSecret(cfg.Basic.PasswordAlphabet, cfg.Basic.PasswordLength)
	if err != nil {
		return "", cli.Internal("%w", err)
	}
	return generated, nil
}

func usersListCommand(stdout io.Writer) *cli.Command {
	var o options
	return &cli.Command{
		Name:    "list",
		Summary: "List person ids with a credential",
		Description: `List every stored credential by person id, with the secret's
fingerprint and the time it was issued. Secrets are not printed.`,
		Flags: o.flags("list", nil),
		Run: func(args []string) error {
			if len(args) > 0 {
				return cli.Validation("list takes no arguments")
			}
			return withStore(&o, func(ctx context.Context, _ *config.Config, store *credstore.Store) error {
				records, err := store.List(ctx)
				if err != nil {
					return cli.Internal("%w", err)
				}
				table := tabwriter.NewWriter(stdout, 2, 0, 3, ' ', 0)
				fmt.Fprintln(table, "PERSON\tFINGERPRINT\tISSUED")
				for _, record := range records {
					fmt.Fprintf(table, "%d\t%s\t%s\n",
						record.PersonID, record.Fingerprint(), record.IssuedAt.UTC().Format(time.RFC3339))
				}
				return table.Flush()
			})
		},
	}
}

func usersAddCommand(stdout io.Writer, stdin io.Reader) *cli.Command {
	var (
		o      options
		prompt bool
	)
	return &cli.Command{
		Name:    "add",
		Summary: "Store a credential for a person without one",
		Description: `Store a credential for a person who has none. The secret is
generated from basic.pwd_alphabet and basic.pwd_length unless --prompt
is given.`,
		Usage: "wifisync users add [flags] <person-id>",
		Flags: o.flags("add", func(flags *pflag.FlagSet) {
			flags.BoolVar(&prompt, "prompt", false, "read the secret instead of generating it")
		}),
		Run: func(args []string) error {
			personID, err := parsePersonID(args)
			if err != nil {
				return err
			}
			return withStore(&o, func(ctx context.Context, cfg *config.Config, store *credstore.Store) error {
				exists, err := store.Contains(ctx, personID)
				if err != nil {
					return cli.Internal("%w", err)
				}
				if exists {
					return cli.Validation("person %d already has a credential; use 'wifisync users set'", personID)
				}
				value, err := newSecret(cfg, stdin, prompt)
				if err != nil {
					return err
				}
				if err := store.Set(ctx, personID, value); err != nil {
					return cli.Internal("%w", err)
				}
				fmt.Fprintf(stdout, "stored credential for person %d (fingerprint %s)\n",
					personID, credstore.Fingerprint(value))
				return nil
			})
		},
	}
}

func usersSetCommand(stdout io.Writer, stdin io.Reader) *cli.Command {
	var (
		o      options
		prompt bool
	)
	return &cli.Command{
		Name:    "set",
		Summary: "Replace an existing credential",
		Usage:   "wifisync users set [flags] <person-id>",
		Flags: o.flags("set", func(flags *pflag.FlagSet) {
			flags.BoolVar(&prompt, "prompt", false, "read the secret instead of generating it")
		}),
		Run: func(args []string) error {
			personID, err := parsePersonID(args)
			if err != nil {
				return err
			}
			return withStore(&o, func(ctx context.Context, cfg *config.Config, store *credstore.Store) error {
				value, err := newSecret(cfg, stdin, prompt)
				if err != nil {
					return err
				}
				if err := store.Update(ctx, personID, value); err != nil {
					if errors.Is(err, credstore.ErrNotFound) {
						return cli.Validation("person %d has no credential; use 'wifisync users add'", personID)
					}
					return cli.Internal("%w", err)
				}
				fmt.Fprintf(stdout, "replaced credential for person %d (fingerprint %s)\n",
					personID, credstore.Fingerprint(value))
				return nil
			})
		},
	}
}

func usersDeleteCommand(stdout io.Writer) *cli.Command {
	var o options
	return &cli.Command{
		Name:    "delete",
		Summary: "Delete a person's credential",
		Usage:   "wifisync users delete [flags] <person-id>",
		Flags:   o.flags("delete", nil),
		Run: func(args []string) error {
			personID, err := parsePersonID(args)
			if err != nil {
				return err
			}
			return withStore(&o, func(ctx context.Context, _ *config.Config, store *credstore.Store) error {
				existed, err := store.Delete(ctx, personID)
				if err != nil {
					return cli.Internal("%w", err)
				}
				if !existed {
					return cli.Validation("person %d has no credential", personID)
				}
				fmt.Fprintf(stdout, "deleted credential for person %d\n", personID)
				return nil
			})
		},
	}
}

func usersShowCommand(stdout io.Writer) *cli.Command {
	var (
		o      options
		reveal bool
	)
	return &cli.Command{
		Name:    "show",
		Summary: "Print a person's secret",
		Usage:   "wifisync users show --reveal [flags] <person-id>",
		Flags: o.flags("show", func(flags *pflag.FlagSet) {
			flags.BoolVar(&reveal, "reveal", false, "confirm that the secret may be printed")
		}),
		Run: func(args []string) error {
			personID, err := parsePersonID(args)
			if err != nil {
				return err
			}
			if !reveal {
				return cli.Validation("show prints the secret in clear text; pass --reveal to confirm")
			}
			return withStore(&o, func(ctx context.Context, _ *config.Config, store *credstore.Store) error {
				record, err := store.Get(ctx, personID)
				if err != nil {
					if errors.Is(err, credstore.ErrNotFound) {
						return cli.Validation("person %d has no credential", personID)
					}
					return cli.Internal("%w", err)
				}
				fmt.Fprintln(stdout, record.Secret)
				return nil
			})
		},
	}
}
