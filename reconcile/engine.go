// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/bureau-foundation/wifisync/lib/clock"
	"github.com/bureau-foundation/wifisync/lib/communication"
	"github.com/bureau-foundation/wifisync/lib/config"
	"github.com/bureau-foundation/wifisync/lib/ref"
	"github.com/bureau-foundation/wifisync/lib/secret"
	"github.com/bureau-foundation/wifisync/lib/telemetry"
)

// Config holds the collaborators of an [Engine].
type Config struct {
	// Settings is the loaded configuration. Required.
	Settings *config.Config

	// Templates renders and matches chat texts. Required.
	Templates *communication.Templates

	// Directory is the ChurchTools client. Required.
	Directory Directory

	// LoginChat opens the chat session for each pass. Required.
	LoginChat ChatLogin

	// Store holds the issued credentials. Required.
	Store Store

	// Password is the sync account's password, used for the chat
	// login. The engine does not take ownership. Required.
	Password *secret.Buffer

	// Clock drives expiry, display time, and deletion delays.
	// Defaults to clock.Real().
	Clock clock.Clock

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Engine runs sync passes.
type Engine struct {
	settings  *config.Config
	templates *communication.Templates
	directory Directory
	loginChat ChatLogin
	store     Store
	password  *secret.Buffer
	clock     clock.Clock
	logger    *slog.Logger
	tracer    trace.Tracer
}

// Report summarizes one pass.
type Report struct {
	Self       ref.UserID
	Commands   int
	Failed     int
	Issued     int
	Removed    int
	RoomsFreed int
}

// New validates cfg and returns an Engine.
func New(cfg Config) (*Engine, error) {
	switch {
	case cfg.Settings == nil:
		return nil, errors.New("reconcile: Settings is required")
	case cfg.Templates == nil:
		return nil, errors.New("reconcile: Templates is required")
	case cfg.Directory == nil:
		return nil, errors.New("reconcile: Directory is required")
	case cfg.LoginChat == nil:
		return nil, errors.New("reconcile: LoginChat is required")
	case cfg.Store == nil:
		return nil, errors.New("reconcile: Store is required")
	case cfg.Password == nil:
		return nil, errors.New("reconcile: Password is required")
	}
	engine := &Engine{
		settings:  cfg.Settings,
		templates: cfg.Templates,
		directory: cfg.Directory,
		loginChat: cfg.LoginChat,
		store:     cfg.Store,
		password:  cfg.Password,
		clock:     cfg.Clock,
		logger:    cfg.Logger,
		tracer:    telemetry.Tracer(),
	}
	if engine.clock == nil {
		engine.clock = clock.Real()
	}
	if engine.logger == nil {
		engine.logger = slog.Default()
	}
	return engine, nil
}

// Sync runs one pass: log in, resolve rooms, plan, execute, and clean
// up empty rooms. Login, resolution, and planning failures abort the
// pass before anything is executed. Command failures are logged and
// joined into the returned error after every command has run; the
// report is valid in both cases.
func (e *Engine) Sync(ctx context.Context) (report Report, err error) {
	ctx, span := e.tracer.Start(ctx, "reconcile.Sync")
	defer func() {
		span.SetAttributes(
			attribute.Int("wifisync.commands", report.Commands),
			attribute.Int("wifisync.failed", report.Failed),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	self, chat, err := e.login(ctx)
	if err != nil {
		return report, err
	}
	defer chat.Close()
	report.Self = chat.UserID()

	titlePattern := e.templates.Pattern(communication.RoomTitle)
	rooms, err := ResolveRooms(ctx, chat, titlePattern, e.logger)
	if err != nil {
		return report, err
	}
	stored, err := e.store.ListIDs(ctx)
	if err != nil {
		return report, fmt.Errorf("reconcile: listing stored credentials: %w", err)
	}

	now := e.clock.Now()
	plan := &planner{
		settings:  e.settings,
		templates: e.templates,
		directory: e.directory,
		chat:      chat,
		now:       now,
		logger:    e.logger,
	}
	commands, err := plan.Plan(ctx, planInput{Self: self, Rooms: rooms, Stored: stored})
	if err != nil {
		return report, err
	}
	report.Commands = len(commands)
	e.logger.Debug("sync planned",
		"private_rooms", rooms.Len(),
		"empty_rooms", len(rooms.Empty),
		"stored", len(stored),
		"commands", Summarize(commands),
	)

	runner := &executor{
		settings:  e.settings,
		templates: e.templates,
		chat:      chat,
		store:     e.store,
		now:       now,
		logger:    e.logger,
	}
	var failures []error
	for _, command := range commands {
		if err := e.executeTraced(ctx, runner, command); err != nil {
			report.Failed++
			failures = append(failures, fmt.Errorf("%s: %w", command, err))
			e.logger.Error("command failed",
				"command", command.Kind.String(),
				"person_id", command.Person.ID,
				"error", err,
			)
			continue
		}
		switch command.Kind {
		case KindIssue:
			report.Issued++
		case KindRemove:
			report.Removed++
		}
	}

	freed, err := e.cleanup(ctx, chat, titlePattern)
	report.RoomsFreed = freed
	if err != nil {
		failures = append(failures, err)
	}

	e.logger.Info("sync pass complete",
		"commands", report.Commands,
		"failed", report.Failed,
		"issued", report.Issued,
		"removed", report.Removed,
		"rooms_freed", report.RoomsFreed,
	)
	return report, errors.Join(failures...)
}

// login authenticates both sides: directory login, directory whoami,
// then chat login as the derived identity.
func (e *Engine) login(ctx context.Context) (int64, Chat, error) {
	if err := e.directory.Login(ctx); err != nil {
		return 0, nil, fmt.Errorf("reconcile: directory login: %w", err)
	}
	identity, err := e.directory.WhoAmI(ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("reconcile: directory whoami: %w", err)
	}
	userID, err := ref.ChatIdentity(identity.GUID, e.settings.Communication.ChatServerName)
	if err != nil {
		return 0, nil, fmt.Errorf("reconcile: deriving chat identity of the sync account: %w", err)
	}
	chat, err := e.loginChat(ctx, userID, e.password)
	if err != nil {
		return 0, nil, fmt.Errorf("reconcile: chat login as %s: %w", userID, err)
	}
	return identity.ID, chat, nil
}

func (e *Engine) executeTraced(ctx context.Context, runner *executor, command Command) error {
	ctx, span := e.tracer.Start(ctx, "reconcile."+command.Kind.String(),
		trace.WithAttributes(attribute.Int64("wifisync.person_id", command.Person.ID)))
	defer span.End()

	err := runner.execute(ctx, command)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// cleanup re-resolves the rooms and deletes the empty ones, waiting
// RoomDeletionDelay between deletions. A failed deletion is logged and
// reported; the rest still run.
func (e *Engine) cleanup(ctx context.Context, chat Chat, titlePattern *regexp.Regexp) (int, error) {
	rooms, err := ResolveRooms(ctx, chat, titlePattern, e.logger)
	if err != nil {
		return 0, err
	}

	var failures []error
	freed := 0
	for index, roomID := range rooms.Empty {
		if index > 0 {
			if err := clock.SleepContext(ctx, e.clock, e.settings.Basic.RoomDeletionDelay); err != nil {
				return freed, err
			}
		}
		if err := chat.DeleteRoom(ctx, roomID); err != nil {
			failures = append(failures, fmt.Errorf("reconcile: deleting empty room %s: %w", roomID, err))
			e.logger.Warn("deleting empty room failed", "room_id", roomID, "error", err)
			continue
		}
		freed++
		e.logger.Info("empty room deleted", "room_id", roomID)
	}
	return freed, errors.Join(failures...)
}

// Run repeats Sync every interval until ctx is cancelled. A failed
// pass is logged and the loop carries on. Returns ctx.Err().
func (e *Engine) Run(ctx context.Context, interval time.Duration) error {
	for {
		if _, err := e.Sync(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			e.logger.Error("sync pass failed", "error", err)
		}
		if err := clock.SleepContext(ctx, e.clock, interval); err != nil {
			return err
		}
	}
}
