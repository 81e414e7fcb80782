// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"fmt"
	"strings"
)

// splitID checks the "<sigil>localpart:server" shape shared by user
// and room IDs and returns both halves. The server is everything after
// the first colon, so ports survive.
func splitID(raw string, sigil byte, kind string) (localpart, server string, err error) {
	if raw == "" {
		return "", "", fmt.Errorf("empty %s", kind)
	}
	if raw[0] != sigil {
		return "", "", fmt.Errorf("%s must start with '%c': %q", kind, sigil, raw)
	}
	localpart, server, found := strings.Cut(raw[1:], ":")
	switch {
	case !found:
		return "", "", fmt.Errorf("%s missing ':server' suffix: %q", kind, raw)
	case localpart == "":
		return "", "", fmt.Errorf("%s has empty local part: %q", kind, raw)
	case server == "":
		return "", "", fmt.Errorf("%s has empty server name: %q", kind, raw)
	}
	return localpart, server, nil
}
