// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/bureau-foundation/wifisync/cmd/wifisync/cli"
	"github.com/bureau-foundation/wifisync/lib/communication"
	"github.com/bureau-foundation/wifisync/lib/credstore"
)

// sampleRecipient fills template previews.
var sampleRecipient = communication.Recipient{
	PersonID:  1234,
	FirstName: "Ada",
	LastName:  "Lovelace",
	Username:  "ada",
}

func templatesCommand(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:    "templates",
		Summary: "Preview chat templates",
		Subcommands: []*cli.Command{
			templatesRenderCommand(stdout),
		},
	}
}

func templatesRenderCommand(stdout io.Writer) *cli.Command {
	var o options
	return &cli.Command{
		Name:    "render",
		Summary: "Render a template with sample data",
		Description: `Render one chat template for a sample person using the configured
language, templates_dir overrides, and communication defaults. Prints
where the template came from, the plain body, the HTML body, and the
pattern used to recognize the message in a room.`,
		Usage: "wifisync templates render [flags] <name>",
		Flags: o.flags("render", nil),
		Run: func(args []string) error {
			if len(args) != 1 {
				return cli.Validation("expected exactly one template name (%s)", templateNames())
			}
			name := communication.Name(args[0])
			if !slices.Contains(communication.Names, name) {
				return cli.Validation("unknown template %q (one of %s)", args[0], templateNames())
			}

			cfg, _, err := o.load()
			if err != nil {
				return err
			}
			templates, err := communication.Load(cfg.Communication.Language, cfg.Communication.TemplatesDir)
			if err != nil {
				return cli.Validation("%w", err)
			}

			password, err := credstore.GenerateSecret(cfg.Basic.PasswordAlphabet, cfg.Basic.PasswordLength)
			if err != nil {
				return cli.Internal("%w", err)
			}
			context := communication.NewContext(sampleRecipient, cfg.Communication.Defaults, password)
			message, err := templates.Message(name, context)
			if err != nil {
				return cli.Validation("%w", err)
			}

			_, origin := templates.Source(name)
			fmt.Fprintf(stdout, "# %s (%s)\n%s\n\n# html\n%s\n\n# pattern\n%s\n",
				name, origin, message.Body, strings.TrimSpace(message.HTML), templates.Pattern(name))
			return nil
		},
	}
}

func templateNames() string {
	names := make([]string, len(communication.Names))
	for index, name := range communication.Names {
		names[index] = string(name)
	}
	return strings.Join(names, ", ")
}
