// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package authorize

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/bureau-foundation/wifisync/lib/config"
	"github.com/bureau-foundation/wifisync/lib/credstore"
)

// Directory is the part of the ChurchTools client the decision needs.
type Directory interface {
	GetMembersByAttribute(ctx context.Context, groupID int64, attribute string) (map[int64]string, error)
	GetUserGroups(ctx context.Context, personID int64) ([]int64, error)
}

// CredentialStore reads issued credentials.
type CredentialStore interface {
	Get(ctx context.Context, personID int64) (credstore.Record, error)
}

// Config holds the collaborators of an Authorizer.
type Config struct {
	// Settings is the loaded wifisync configuration. Only the basic and
	// vlans sections are read.
	Settings *config.Config

	Directory Directory
	Store     CredentialStore

	// Logger is used for structured logging. Defaults to slog.Default().
	Logger *slog.Logger
}

// Result is the outcome of one authorization request.
type Result struct {
	Accept bool

	// VLAN is the assigned VLAN. Meaningful only when Accept is true.
	VLAN int

	// PersonID is the matched directory person, or 0 if none matched.
	PersonID int64

	// Reason explains a rejection. It never contains the password.
	Reason string
}

// Authorizer decides whether a username/password pair may join the
// WiFi network and on which VLAN.
type Authorizer struct {
	settings  *config.Config
	directory Directory
	store     CredentialStore
	logger    *slog.Logger
}

// New creates an Authorizer.
func New(cfg Config) (*Authorizer, error) {
	if cfg.Settings == nil {
		return nil, fmt.Errorf("authorize: Settings is required")
	}
	if cfg.Directory == nil {
		return nil, fmt.Errorf("authorize: Directory is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("authorize: Store is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Authorizer{
		settings:  cfg.Settings,
		directory: cfg.Directory,
		store:     cfg.Store,
		logger:    logger,
	}, nil
}

// Authorize evaluates one request. A rejection is reported through
// Result; the error is non-nil only when a collaborator failed, and in
// that case Result is a rejection as well.
func (a *Authorizer) Authorize(ctx context.Context, rawUsername, password string) (Result, error) {
	username, err := CleanUsername(rawUsername)
	if err != nil {
		return a.reject(0, err.Error()), nil
	}
	username, requested, err := SplitVLAN(username, a.settings.Basic.VLANSeparator)
	if err != nil {
		return a.reject(0, err.Error()), nil
	}

	personID, err := a.findPerson(ctx, username)
	if err != nil {
		return a.reject(0, "directory lookup failed"), err
	}
	if personID == 0 {
		return a.reject(0, fmt.Sprintf("user %q is unknown or not allowed on the WiFi", username)), nil
	}

	record, err := a.store.Get(ctx, personID)
	if errors.Is(err, credstore.ErrNotFound) {
		return a.reject(personID, "no credential has been issued"), nil
	}
	if err != nil {
		return a.reject(personID, "credential store lookup failed"), err
	}
	if subtle.ConstantTimeCompare([]byte(record.Secret), []byte(password)) != 1 {
		return a.reject(personID, "wrong password"), nil
	}

	groups, err := a.directory.GetUserGroups(ctx, personID)
	if err != nil {
		return a.reject(personID, "group lookup failed"), err
	}
	vlan, ok := SelectVLAN(a.settings.VLANs, groups, requested)
	if !ok {
		return a.reject(personID, "requested VLAN is not available"), nil
	}

	a.logger.Info("authorized wifi access", "person_id", personID, "vlan", vlan)
	return Result{Accept: true, VLAN: vlan, PersonID: personID}, nil
}

// findPerson searches every access group for a member whose username
// field matches. Returns 0 if nobody matches. A name shared by two
// different people matches nobody.
func (a *Authorizer) findPerson(ctx context.Context, username string) (int64, error) {
	var found int64
	for _, group := range a.settings.AllWiFiAccessGroups() {
		values, err := a.directory.GetMembersByAttribute(ctx, group, a.settings.Basic.UsernameFieldName)
		if err != nil {
			return 0, fmt.Errorf("authorize: reading usernames of group %d: %w", group, err)
		}
		for personID, value := range values {
			if normalizeStored(value) != username {
				continue
			}
			if found != 0 && found != personID {
				a.logger.Warn("username is shared by several people",
					"username", username,
					"person_id", found,
					"other_person_id", personID,
				)
				return 0, nil
			}
			found = personID
		}
	}
	return found, nil
}

func (a *Authorizer) reject(personID int64, reason string) Result {
	a.logger.Info("rejected wifi access", "person_id", personID, "reason", reason)
	return Result{PersonID: personID, Reason: reason}
}

// SelectVLAN picks the VLAN for a person in groups. requested is nil
// when the user asked for none. Assignments are considered in
// ascending group order:
//
//  1. an assignment whose VLAN equals the request, or any assignment
//     when nothing was requested;
//  2. an assignments_if_requested entry equal to the request;
//  3. the default VLAN, if nothing or the default was requested.
//
// ok is false when none applies.
func SelectVLAN(vlans config.VLANConfig, groups []int64, requested *int) (vlan int, ok bool) {
	member := make(map[int64]bool, len(groups))
	for _, group := range groups {
		member[group] = true
	}

	for _, group := range sortedGroups(vlans.Assignments) {
		assigned := vlans.Assignments[group]
		if member[group] && (requested == nil || assigned == *requested) {
			return assigned, true
		}
	}
	if requested != nil {
		for _, group := range sortedGroups(vlans.AssignmentsIfRequested) {
			if member[group] && vlans.AssignmentsIfRequested[group] == *requested {
				return *requested, true
			}
		}
	}
	if requested == nil || *requested == vlans.DefaultVLAN {
		return vlans.DefaultVLAN, true
	}
	return 0, false
}

func sortedGroups(assignments config.GroupVLANs) []int64 {
	groups := make([]int64, 0, len(assignments))
	for group := range assignments {
		groups = append(groups, group)
	}
	slices.Sort(groups)
	return groups
}
