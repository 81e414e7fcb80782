// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/wifisync/cmd/wifisync/cli"
	"github.com/bureau-foundation/wifisync/directory"
	"github.com/bureau-foundation/wifisync/lib/communication"
	"github.com/bureau-foundation/wifisync/lib/config"
	"github.com/bureau-foundation/wifisync/lib/telemetry"
	"github.com/bureau-foundation/wifisync/lib/version"
	"github.com/bureau-foundation/wifisync/messaging"
	"github.com/bureau-foundation/wifisync/reconcile"
)

// telemetryFlushTimeout bounds the span flush on exit.
const telemetryFlushTimeout = 5 * time.Second

func runCommand() *cli.Command {
	var (
		o        options
		interval time.Duration
	)
	return &cli.Command{
		Name:    "run",
		Summary: "Run sync passes until interrupted",
		Description: `Run a sync pass, sleep, and repeat until SIGINT or SIGTERM.

A failed pass is logged and the next one runs on schedule. The pause
between passes is basic.sync_interval unless --interval is given.`,
		Flags: o.flags("run", func(flags *pflag.FlagSet) {
			flags.DurationVar(&interval, "interval", 0, "pause between passes (overrides basic.sync_interval)")
		}),
		Run: func(args []string) error {
			if len(args) > 0 {
				return cli.Validation("run takes no arguments")
			}
			cfg, logger, err := o.load()
			if err != nil {
				return err
			}
			if interval < 0 {
				return cli.Validation("--interval must not be negative")
			}
			if interval == 0 {
				interval = cfg.Basic.SyncInterval
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			engine, release, err := newEngine(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer release()

			logger.Info("sync loop starting", "interval", interval, "version", version.Info())
			err = engine.Run(ctx, interval)
			if errors.Is(err, context.Canceled) {
				logger.Info("sync loop stopped")
				return nil
			}
			return err
		},
	}
}

func syncCommand(stdout io.Writer) *cli.Command {
	var o options
	return &cli.Command{
		Name:    "sync",
		Summary: "Run one sync pass",
		Description: `Run exactly one sync pass and print its summary.

The exit status is non-zero when the pass could not run or when any
single command in it failed.`,
		Flags: o.flags("sync", nil),
		Run: func(args []string) error {
			if len(args) > 0 {
				return cli.Validation("sync takes no arguments")
			}
			cfg, logger, err := o.load()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			engine, release, err := newEngine(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer release()

			report, err := engine.Sync(ctx)
			fmt.Fprintf(stdout, "commands: %d  issued: %d  removed: %d  failed: %d  rooms freed: %d\n",
				report.Commands, report.Issued, report.Removed, report.Failed, report.RoomsFreed)
			if err != nil {
				logger.Error("sync pass failed", "error", err)
				return &cli.ExitError{Code: 1}
			}
			return nil
		},
	}
}

// newEngine wires the engine's collaborators from cfg and the
// environment. release closes everything newEngine opened.
func newEngine(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*reconcile.Engine, func(), error) {
	environment, err := config.LoadEnvironment()
	if err != nil {
		return nil, nil, cli.Validation("%w", err)
	}

	var closers []func()
	release := func() {
		for index := len(closers) - 1; index >= 0; index-- {
			closers[index]()
		}
	}
	closers = append(closers, func() { environment.Close() })

	shutdown, err := telemetry.Setup(ctx, telemetry.Config{
		Endpoint:       environment.OTelEndpoint,
		ServiceName:    "wifisync",
		ServiceVersion: version.Version,
		Logger:         logger,
	})
	if err != nil {
		release()
		return nil, nil, cli.Internal("%w", err)
	}
	closers = append(closers, func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), telemetryFlushTimeout)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			logger.Warn("flushing traces failed", "error", err)
		}
	})

	templates, err := communication.Load(cfg.Communication.Language, cfg.Communication.TemplatesDir)
	if err != nil {
		release()
		return nil, nil, cli.Validation("%w", err)
	}

	store, identity, err := openStore(cfg, environment.KeyPassphrase, logger)
	if err != nil {
		release()
		return nil, nil, err
	}
	closers = append(closers, func() { identity.Close() })

	directoryClient, err := directory.NewClient(directory.Config{
		BaseURL:  environment.ServerURL,
		Username: environment.APIUser,
		Password: environment.APIPassword,
		Timeout:  cfg.Basic.HTTPTimeout(),
		Logger:   logger,
	})
	if err != nil {
		release()
		return nil, nil, cli.Validation("%w", err)
	}

	matrixClient, err := messaging.NewClient(messaging.ClientConfig{
		HomeserverURL: cfg.Communication.ServerURL,
		HTTPClient:    &http.Client{Timeout: cfg.Basic.HTTPTimeout()},
		Logger:        logger,
	})
	if err != nil {
		release()
		return nil, nil, cli.Validation("%w", err)
	}

	engine, err := reconcile.New(reconcile.Config{
		Settings:  cfg,
		Templates: templates,
		Directory: directoryClient,
		LoginChat: reconcile.MatrixLogin(matrixClient),
		Store:     store,
		Password:  environment.APIPassword,
		Logger:    logger,
	})
	if err != nil {
		release()
		return nil, nil, cli.Internal("%w", err)
	}
	return engine, release, nil
}
