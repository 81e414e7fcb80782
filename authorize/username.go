// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package authorize

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MaxUsernameLength is the longest accepted username, in characters.
const MaxUsernameLength = 32

// disallowedCharacters may not appear in a username. Some NAS devices
// mangle them and they break log lines.
const disallowedCharacters = "/#:\n\r\t\x00"

// CleanUsername normalizes a raw username to NFC, trims surrounding
// whitespace, rejects empty, overlong, or unsafe names, and lowercases
// the result.
func CleanUsername(raw string) (string, error) {
	username := strings.TrimSpace(norm.NFC.String(raw))
	if username == "" {
		return "", fmt.Errorf("authorize: username is empty")
	}
	if utf8.RuneCountInString(username) > MaxUsernameLength {
		return "", fmt.Errorf("authorize: username exceeds %d characters", MaxUsernameLength)
	}
	if strings.ContainsAny(username, disallowedCharacters) {
		return "", fmt.Errorf("authorize: username contains a disallowed character")
	}
	return strings.ToLower(username), nil
}

// SplitVLAN separates a VLAN request from a cleaned username at the
// last occurrence of separator. requested is nil when the name carries
// no request. An empty separator disables VLAN requests.
func SplitVLAN(username, separator string) (base string, requested *int, err error) {
	if separator == "" {
		return username, nil, nil
	}
	index := strings.LastIndex(username, separator)
	if index < 0 {
		return username, nil, nil
	}

	base = strings.TrimSpace(username[:index])
	suffix := strings.TrimSpace(username[index+len(separator):])
	vlan, err := strconv.Atoi(suffix)
	if err != nil || vlan < 0 {
		return "", nil, fmt.Errorf("authorize: requested VLAN %q is not a non-negative integer", suffix)
	}
	if base == "" {
		return "", nil, fmt.Errorf("authorize: username is empty before the VLAN separator")
	}
	return base, &vlan, nil
}

// normalizeStored applies the same normalization to a directory value
// that CleanUsername applies to the request, without the validation.
func normalizeStored(value string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFC.String(value)))
}
