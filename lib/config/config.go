// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/wifisync/lib/ref"
)

// Language selects the embedded template set.
type Language string

const (
	// English selects the "en" template set.
	English Language = "en"
	// German selects the "de" template set.
	German Language = "de"
)

// Config is the file-backed configuration for wifisync.
type Config struct {
	// Basic holds the group selection, password policy, and paths.
	Basic BasicConfig `yaml:"basic"`

	// VLANs maps directory groups to VLAN ids for the authorize path.
	VLANs VLANConfig `yaml:"vlans"`

	// Communication configures the chat side of the sync.
	Communication CommunicationConfig `yaml:"communication"`
}

// BasicConfig holds the settings shared by sync and authorize.
type BasicConfig struct {
	// WiFiAccessGroups are the ChurchTools group ids whose members are
	// eligible for a WiFi credential.
	WiFiAccessGroups []int64 `yaml:"wifi_access_groups"`

	// IncludeAssignmentGroups adds every group named in the VLAN
	// assignments to the eligible set. See [Config.AllWiFiAccessGroups].
	IncludeAssignmentGroups bool `yaml:"include_assignment_groups_in_access_groups"`

	// VLANSeparator splits "username<sep>vlan" at authorize time.
	VLANSeparator string `yaml:"vlan_separator"`

	// Timeout is the HTTP timeout in seconds for both APIs.
	Timeout int `yaml:"timeout"`

	// UsernameFieldName is the ChurchTools person field that holds the
	// WiFi username.
	UsernameFieldName string `yaml:"username_field_name"`

	// PasswordLength and PasswordAlphabet define generated secrets.
	PasswordLength   int    `yaml:"pwd_length"`
	PasswordAlphabet string `yaml:"pwd_alphabet"`

	// StorePath is the SQLite credential store.
	StorePath string `yaml:"store_path"`

	// IdentityPath is the age identity file that decrypts the store.
	IdentityPath string `yaml:"identity_path"`

	// SyncInterval is the pause between passes of "wifisync run".
	SyncInterval time.Duration `yaml:"sync_interval"`

	// RoomDeletionDelay is the minimum gap between two empty-room
	// deletions during cleanup.
	RoomDeletionDelay time.Duration `yaml:"room_deletion_delay"`
}

// HTTPTimeout returns Timeout as a duration.
func (b BasicConfig) HTTPTimeout() time.Duration {
	return time.Duration(b.Timeout) * time.Second
}

// VLANConfig maps directory groups to VLANs.
type VLANConfig struct {
	// DefaultVLAN is assigned when no group assignment applies.
	DefaultVLAN int `yaml:"default_vlan"`

	// Assignments apply whether or not the user requested a VLAN.
	Assignments GroupVLANs `yaml:"assignments"`

	// AssignmentsIfRequested apply only when the user asked for
	// exactly that VLAN.
	AssignmentsIfRequested GroupVLANs `yaml:"assignments_if_requested"`
}

// CommunicationConfig configures the Matrix side.
type CommunicationConfig struct {
	// ServerURL is the Matrix homeserver base URL.
	ServerURL string `yaml:"server_url"`

	// ChatServerName is the server part of ChurchTools-provisioned
	// Matrix user ids.
	ChatServerName string `yaml:"chat_server_name"`

	// Language picks the template set.
	Language Language `yaml:"language"`

	// TemplatesDir, when set, overrides embedded templates per file.
	// Layout: <dir>/<language>/<name>.tmpl.
	TemplatesDir string `yaml:"templates_dir"`

	// Defaults apply to every person without an override.
	Defaults Settings `yaml:"defaults"`

	// Persons holds per-person overrides keyed by ChurchTools person id.
	Persons PersonOverrides `yaml:"persons"`
}

// Settings is the effective communication policy for one person.
type Settings struct {
	// ResetCommand is the exact chat message that requests a new
	// password.
	ResetCommand string `yaml:"reset_command"`

	// AutoReset is the credential lifetime in minutes. Negative
	// disables expiry-triggered reissue.
	AutoReset int `yaml:"auto_reset"`

	// PasswordDisplayTime is how long, in minutes, a password stays
	// visible in the chat before it is masked. Negative disables
	// masking.
	PasswordDisplayTime int `yaml:"pwd_display_time"`

	// ChatRoomID pins the person's room and bypasses room discovery.
	ChatRoomID ref.RoomID `yaml:"chat_room_id"`
}

// AutoResetAfter returns AutoReset as a duration. Only meaningful when
// AutoReset >= 0.
func (s Settings) AutoResetAfter() time.Duration {
	return time.Duration(s.AutoReset) * time.Minute
}

// DisplayFor returns PasswordDisplayTime as a duration. Only meaningful
// when PasswordDisplayTime >= 0.
func (s Settings) DisplayFor() time.Duration {
	return time.Duration(s.PasswordDisplayTime) * time.Minute
}

// PersonOverride overrides individual fields of [Settings]. Nil fields
// inherit the defaults.
type PersonOverride struct {
	ResetCommand        *string     `yaml:"reset_command"`
	AutoReset           *int        `yaml:"auto_reset"`
	PasswordDisplayTime *int        `yaml:"pwd_display_time"`
	ChatRoomID          *ref.RoomID `yaml:"chat_room_id"`
}

// For returns the effective settings for personID: the defaults with
// that person's override applied on top.
func (c CommunicationConfig) For(personID int64) Settings {
	settings := c.Defaults
	override, ok := c.Persons[personID]
	if !ok {
		return settings
	}
	if override.ResetCommand != nil {
		settings.ResetCommand = *override.ResetCommand
	}
	if override.AutoReset != nil {
		settings.AutoReset = *override.AutoReset
	}
	if override.PasswordDisplayTime != nil {
		settings.PasswordDisplayTime = *override.PasswordDisplayTime
	}
	if override.ChatRoomID != nil {
		settings.ChatRoomID = *override.ChatRoomID
	}
	return settings
}

// DefaultPasswordAlphabet omits characters that are easy to confuse
// when typed from a phone screen (0/O, 1/l/I).
const DefaultPasswordAlphabet = "abcdefghijkmnopqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Default returns the configuration every file is decoded on top of.
// Required fields (access groups, server URL) have no default.
func Default() *Config {
	return &Config{
		Basic: BasicConfig{
			VLANSeparator:     "+",
			Timeout:           10,
			UsernameFieldName: "cmsUserId",
			PasswordLength:    16,
			PasswordAlphabet:  DefaultPasswordAlphabet,
			StorePath:         "wifisync.db",
			IdentityPath:      "wifisync.key",
			SyncInterval:      15 * time.Second,
			RoomDeletionDelay: 2 * time.Second,
		},
		Communication: CommunicationConfig{
			ChatServerName: "chat.church.tools",
			Language:       English,
			Defaults: Settings{
				ResetCommand:        "reset",
				AutoReset:           -1,
				PasswordDisplayTime: -1,
			},
		},
	}
}

// LoadFile loads and validates the configuration at path.
//
// Files ending in .json or .jsonc have comments and trailing commas
// stripped before decoding; everything else is parsed as YAML. Path
// fields have ${VAR} and ${VAR:-default} expanded against the process
// environment.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	cfg, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes data on top of [Default], expands path variables, and
// validates. ext selects the dialect (".json" and ".jsonc" are JSON
// with comments, anything else is YAML).
func Parse(data []byte, ext string) (*Config, error) {
	switch strings.ToLower(ext) {
	case ".json", ".jsonc":
		// JSON is valid YAML once comments are gone.
		data = jsonc.ToJSON(data)
	}

	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decoding: %w", err)
	}

	cfg.expandVariables()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) expandVariables() {
	c.Basic.StorePath = expandVars(c.Basic.StorePath)
	c.Basic.IdentityPath = expandVars(c.Basic.IdentityPath)
	c.Communication.TemplatesDir = expandVars(c.Communication.TemplatesDir)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns.
func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []error

	if len(c.Basic.WiFiAccessGroups) == 0 {
		errs = append(errs, fmt.Errorf("basic.wifi_access_groups must be present and non-empty"))
	}
	for _, group := range c.Basic.WiFiAccessGroups {
		if group <= 0 {
			errs = append(errs, fmt.Errorf("basic.wifi_access_groups: group id %d must be positive", group))
		}
	}
	if c.Basic.VLANSeparator == "" {
		errs = append(errs, fmt.Errorf("basic.vlan_separator must not be empty"))
	}
	if c.Basic.Timeout < 1 {
		errs = append(errs, fmt.Errorf("basic.timeout must be greater than 0"))
	}
	if c.Basic.UsernameFieldName == "" {
		errs = append(errs, fmt.Errorf("basic.username_field_name must not be empty"))
	}
	if c.Basic.PasswordLength < 1 {
		errs = append(errs, fmt.Errorf("basic.pwd_length must be greater than 0"))
	}
	if len([]rune(c.Basic.PasswordAlphabet)) < 2 {
		errs = append(errs, fmt.Errorf("basic.pwd_alphabet needs at least two characters"))
	}
	if c.Basic.StorePath == "" {
		errs = append(errs, fmt.Errorf("basic.store_path must not be empty"))
	}
	if c.Basic.IdentityPath == "" {
		errs = append(errs, fmt.Errorf("basic.identity_path must not be empty"))
	}
	if c.Basic.SyncInterval <= 0 {
		errs = append(errs, fmt.Errorf("basic.sync_interval must be positive"))
	}
	if c.Basic.RoomDeletionDelay < 0 {
		errs = append(errs, fmt.Errorf("basic.room_deletion_delay must not be negative"))
	}

	if c.VLANs.DefaultVLAN < 0 {
		errs = append(errs, fmt.Errorf("vlans.default_vlan must be greater than or equal to 0"))
	}
	errs = append(errs, c.VLANs.Assignments.validate("vlans.assignments")...)
	errs = append(errs, c.VLANs.AssignmentsIfRequested.validate("vlans.assignments_if_requested")...)

	if c.Communication.ServerURL == "" {
		errs = append(errs, fmt.Errorf("communication.server_url is required"))
	}
	if c.Communication.ChatServerName == "" {
		errs = append(errs, fmt.Errorf("communication.chat_server_name must not be empty"))
	}
	if c.Communication.Language != English && c.Communication.Language != German {
		errs = append(errs, fmt.Errorf("communication.language must be one of: en, de (got %q)", c.Communication.Language))
	}
	if c.Communication.Defaults.ResetCommand == "" {
		errs = append(errs, fmt.Errorf("communication.defaults.reset_command must not be empty"))
	}
	for personID, override := range c.Communication.Persons {
		if personID <= 0 {
			errs = append(errs, fmt.Errorf("communication.persons: person id %d must be positive", personID))
		}
		if override.ResetCommand != nil && *override.ResetCommand == "" {
			errs = append(errs, fmt.Errorf("communication.persons.%d.reset_command must not be empty", personID))
		}
	}

	return errors.Join(errs...)
}

// AllWiFiAccessGroups returns the groups whose members are eligible.
// With include_assignment_groups_in_access_groups set, this is the
// sorted, de-duplicated union of wifi_access_groups and every group in
// both VLAN assignment maps. Otherwise it is wifi_access_groups as
// configured.
func (c *Config) AllWiFiAccessGroups() []int64 {
	if !c.Basic.IncludeAssignmentGroups {
		return append([]int64(nil), c.Basic.WiFiAccessGroups...)
	}

	seen := make(map[int64]struct{})
	for _, group := range c.Basic.WiFiAccessGroups {
		seen[group] = struct{}{}
	}
	for group := range c.VLANs.Assignments {
		seen[group] = struct{}{}
	}
	for group := range c.VLANs.AssignmentsIfRequested {
		seen[group] = struct{}{}
	}

	groups := make([]int64, 0, len(seen))
	for group := range seen {
		groups = append(groups, group)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i] < groups[j] })
	return groups
}
