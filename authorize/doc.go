// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package authorize decides whether a WiFi login is accepted and which
// VLAN it lands on. The username is matched against a ChurchTools
// person field across the access groups, the password against the
// person's issued credential, and the VLAN is chosen from the person's
// group memberships.
//
// The RADIUS attribute encoding is not part of this package; callers
// translate [Result] into whatever their NAS expects.
package authorize
