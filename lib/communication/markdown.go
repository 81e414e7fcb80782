// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package communication

import (
	"bytes"
	"strings"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var (
	markdownInstance goldmark.Markdown
	markdownOnce     sync.Once
)

func getMarkdown() goldmark.Markdown {
	markdownOnce.Do(func() {
		markdownInstance = goldmark.New(
			goldmark.WithExtensions(extension.Strikethrough, extension.Linkify),
		)
	})
	return markdownInstance
}

// markdownToHTML converts a message body to the HTML Matrix clients
// display. Raw HTML in the body is omitted, since the renderer is not
// built with html.WithUnsafe.
func markdownToHTML(body string) (string, error) {
	var buffer bytes.Buffer
	if err := getMarkdown().Convert([]byte(body), &buffer); err != nil {
		return "", err
	}
	return strings.TrimSpace(buffer.String()), nil
}
