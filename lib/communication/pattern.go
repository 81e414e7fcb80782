// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package communication

import (
	"fmt"
	"regexp"
	"strings"
)

var actionPattern = regexp.MustCompile(`\{\{.*?\}\}`)

// PatternFor compiles template source into its matcher. See the
// package documentation for the grammar.
func PatternFor(source string) (*regexp.Regexp, error) {
	var builder strings.Builder
	builder.WriteByte('^')
	last := 0
	for _, span := range actionPattern.FindAllStringIndex(source, -1) {
		builder.WriteString(regexp.QuoteMeta(source[last:span[0]]))
		builder.WriteString(".+?")
		last = span[1]
	}
	builder.WriteString(regexp.QuoteMeta(source[last:]))
	builder.WriteByte('$')

	pattern, err := regexp.Compile(builder.String())
	if err != nil {
		return nil, fmt.Errorf("communication: compiling pattern for %q: %w", source, err)
	}
	return pattern, nil
}
