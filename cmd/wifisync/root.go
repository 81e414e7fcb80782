// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bureau-foundation/wifisync/cmd/wifisync/cli"
	"github.com/bureau-foundation/wifisync/lib/config"
	"github.com/bureau-foundation/wifisync/lib/credstore"
	"github.com/bureau-foundation/wifisync/lib/sealed"
	"github.com/bureau-foundation/wifisync/lib/secret"
)

func root(stdout io.Writer, stdin io.Reader) *cli.Command {
	return &cli.Command{
		Name: "wifisync",
		Description: `wifisync issues WiFi passwords to the members of ChurchTools groups.

Each pass compares group membership with the credential store, issues
passwords to new members, removes those of departed members, and
delivers every change in a private Matrix room per person. The
authorize command answers WiFi login requests against the same store.

Secrets come from the environment: CT_SERVER_URL, CT_API_USER and
CT_API_USER_PWD are required for commands that talk to ChurchTools.
WIFISYNC_KEY_PASSPHRASE unlocks a passphrase-protected store key.`,
		Subcommands: []*cli.Command{
			runCommand(),
			syncCommand(stdout),
			authorizeCommand(stdout, stdin),
			usersCommand(stdout, stdin),
			keygenCommand(stdout),
			templatesCommand(stdout),
			versionCommand(stdout),
		},
	}
}

// options are the flags every configured command accepts.
type options struct {
	configPath string
	envFile    string
	verbose    bool
}

func (o *options) register(flags *pflag.FlagSet) {
	flags.StringVarP(&o.configPath, "config", "c", "wifisync.yaml", "configuration file (YAML, or JSON with comments)")
	flags.StringVar(&o.envFile, "env-file", "", "load KEY=VALUE environment variables from this file first")
	flags.BoolVarP(&o.verbose, "verbose", "v", false, "log at debug level")
}

// flags returns a Flags function for a command named name. extra adds
// the command's own flags.
func (o *options) flags(name string, extra func(*pflag.FlagSet)) func() *pflag.FlagSet {
	return func() *pflag.FlagSet {
		flags := pflag.NewFlagSet(name, pflag.ContinueOnError)
		o.register(flags)
		if extra != nil {
			extra(flags)
		}
		return flags
	}
}

// load reads the env file, if any, and the configuration.
func (o *options) load() (*config.Config, *slog.Logger, error) {
	logger := cli.NewCommandLogger(o.verbose)
	if o.envFile != "" {
		if err := config.LoadEnvFile(o.envFile); err != nil {
			return nil, nil, cli.Validation("%w", err)
		}
	}
	cfg, err := config.LoadFile(o.configPath)
	if err != nil {
		return nil, nil, cli.Validation("%w", err)
	}
	return cfg, logger, nil
}

// openStore loads the identity and returns the credential store it
// unlocks. The caller closes the identity.
func openStore(cfg *config.Config, passphrase *secret.Buffer, logger *slog.Logger) (*credstore.Store, *sealed.Identity, error) {
	identity, err := sealed.LoadIdentity(cfg.Basic.IdentityPath, passphrase)
	if err != nil {
		return nil, nil, cli.Internal("loading store key: %w", err)
	}
	store, err := credstore.New(credstore.Config{
		Path:     cfg.Basic.StorePath,
		Identity: identity,
		Logger:   logger,
	})
	if err != nil {
		identity.Close()
		return nil, nil, cli.Internal("%w", err)
	}
	return store, identity, nil
}

// parsePersonID expects exactly one positional argument holding a
// positive ChurchTools person id.
func parsePersonID(args []string) (int64, error) {
	if len(args) != 1 {
		return 0, cli.Validation("expected exactly one person id, got %d arguments", len(args))
	}
	personID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || personID <= 0 {
		return 0, cli.Validation("invalid person id %q", args[0])
	}
	return personID, nil
}

// readSecret reads one secret. A terminal gets a prompt with echo
// off; anything else is read up to the first newline.
func readSecret(stdin io.Reader, prompt string) (string, error) {
	if file, ok := stdin.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		fmt.Fprint(os.Stderr, prompt)
		data, err := term.ReadPassword(int(file.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", cli.Internal("reading password: %w", err)
		}
		defer secret.Zero(data)
		if len(data) == 0 {
			return "", cli.Validation("empty password")
		}
		return string(data), nil
	}

	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", cli.Internal("reading password from stdin: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", cli.Validation("empty password on stdin")
	}
	return line, nil
}
