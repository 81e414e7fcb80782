// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"

	"github.com/bureau-foundation/wifisync/authorize"
	"github.com/bureau-foundation/wifisync/cmd/wifisync/cli"
	"github.com/bureau-foundation/wifisync/directory"
	"github.com/bureau-foundation/wifisync/lib/config"
)

func authorizeCommand(stdout io.Writer, stdin io.Reader) *cli.Command {
	var o options
	return &cli.Command{
		Name:    "authorize",
		Summary: "Decide a WiFi login and print the VLAN",
		Description: `Decide whether a username and password may join the WiFi network.

The username may carry a VLAN request after basic.vlan_separator, as
in "ada+20". The password is prompted for on a terminal and otherwise
read from the first line of stdin.

Prints "accept vlan=<n>" and exits 0, or "reject: <reason>" and exits 1.`,
		Usage: "wifisync authorize [flags] <username>",
		Examples: []cli.Example{
			{
				Description: "Check a password piped in from a RADIUS hook",
				Command:     `printf '%s\n' "$PASSWORD" | wifisync authorize "ada+20"`,
			},
		},
		Flags: o.flags("authorize", nil),
		Run: func(args []string) error {
			if len(args) != 1 {
				return cli.Validation("expected exactly one username, got %d arguments", len(args))
			}
			cfg, logger, err := o.load()
			if err != nil {
				return err
			}
			environment, err := config.LoadEnvironment()
			if err != nil {
				return cli.Validation("%w", err)
			}
			defer environment.Close()

			password, err := readSecret(stdin, "WiFi password: ")
			if err != nil {
				return err
			}

			store, identity, err := openStore(cfg, environment.KeyPassphrase, logger)
			if err != nil {
				return err
			}
			defer identity.Close()

			ctx := context.Background()
			directoryClient, err := directory.NewClient(directory.Config{
				BaseURL:  environment.ServerURL,
				Username: environment.APIUser,
				Password: environment.APIPassword,
				Timeout:  cfg.Basic.HTTPTimeout(),
				Logger:   logger,
			})
			if err != nil {
				return cli.Validation("%w", err)
			}
			if err := directoryClient.Login(ctx); err != nil {
				return cli.Internal("%w", err)
			}

			authorizer, err := authorize.New(authorize.Config{
				Settings:  cfg,
				Directory: directoryClient,
				Store:     store,
				Logger:    logger,
			})
			if err != nil {
				return cli.Internal("%w", err)
			}

			result, err := authorizer.Authorize(ctx, args[0], password)
			if err != nil {
				return cli.Internal("%w", err)
			}
			if !result.Accept {
				fmt.Fprintf(stdout, "reject: %s\n", result.Reason)
				return &cli.ExitError{Code: 1}
			}
			fmt.Fprintf(stdout, "accept vlan=%d\n", result.VLAN)
			return nil
		},
	}
}
