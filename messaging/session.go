// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/bureau-foundation/wifisync/lib/ref"
	"github.com/bureau-foundation/wifisync/lib/secret"
)

// Session is an authenticated Matrix session. It holds the access token
// in mmap-backed memory and carries the identity it was created for.
// A Session is safe to use from one goroutine at a time; sync passes
// are sequential.
type Session struct {
	client      *Client
	accessToken *secret.Buffer
	userID      ref.UserID
	deviceID    string
}

// UserID returns the fully-qualified Matrix user ID of the session.
func (s *Session) UserID() ref.UserID {
	return s.userID
}

// DeviceID returns the device ID assigned at login. Empty for sessions
// created from a token.
func (s *Session) DeviceID() string {
	return s.deviceID
}

// Close releases the access token. Idempotent.
func (s *Session) Close() error {
	if s.accessToken == nil {
		return nil
	}
	err := s.accessToken.Close()
	s.accessToken = nil
	return err
}

// WhoAmI validates the session and returns the user ID the homeserver
// associates with the access token.
func (s *Session) WhoAmI(ctx context.Context) (ref.UserID, error) {
	body, err := s.request(ctx, http.MethodGet, "/_matrix/client/v3/account/whoami", nil)
	if err != nil {
		return ref.UserID{}, fmt.Errorf("messaging: whoami failed: %w", err)
	}
	var response WhoAmIResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return ref.UserID{}, fmt.Errorf("messaging: failed to parse whoami response: %w", err)
	}
	return response.UserID, nil
}

// request issues an authenticated request through the client.
func (s *Session) request(ctx context.Context, method, path string, body any, query ...url.Values) ([]byte, error) {
	if s.accessToken == nil {
		return nil, fmt.Errorf("messaging: session for %s is closed", s.userID)
	}
	return s.client.doRequest(ctx, method, path, s.accessToken, body, query...)
}
