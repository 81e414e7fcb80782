// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bureau-foundation/wifisync/lib/clock"
	"github.com/bureau-foundation/wifisync/lib/netutil"
	"github.com/bureau-foundation/wifisync/lib/ref"
	"github.com/bureau-foundation/wifisync/lib/secret"
	"github.com/bureau-foundation/wifisync/lib/version"
)

const (
	// DefaultMaxAttempts bounds how often one request is sent while the
	// homeserver keeps answering 429.
	DefaultMaxAttempts = 5

	defaultRetryAfter = 1000 * time.Millisecond
	retryMargin       = 250 * time.Millisecond
)

// ClientConfig holds configuration for creating a Client.
type ClientConfig struct {
	// HomeserverURL is the base URL of the Matrix homeserver (e.g., "https://chat.example.church.tools").
	HomeserverURL string
	// HTTPClient is used for all requests. If nil, http.DefaultClient is used.
	HTTPClient *http.Client
	// Clock drives rate-limit backoff. If nil, clock.Real() is used.
	Clock clock.Clock
	// MaxAttempts overrides DefaultMaxAttempts when positive.
	MaxAttempts int
	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Client is an unauthenticated Matrix client.
// It holds the homeserver URL and HTTP transport, shared across Sessions.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	clock       clock.Clock
	maxAttempts int
	logger      *slog.Logger
}

// NewClient creates a new unauthenticated Matrix client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.HomeserverURL == "" {
		return nil, fmt.Errorf("messaging: HomeserverURL is required")
	}

	// The URL is only validated here. Request URLs are built by
	// concatenating the trimmed string form with escaped segments.
	parsed, err := url.Parse(config.HomeserverURL)
	if err != nil {
		return nil, fmt.Errorf("messaging: invalid HomeserverURL %q: %w", config.HomeserverURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("messaging: HomeserverURL %q must be http or https", config.HomeserverURL)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	maxAttempts := config.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:     strings.TrimRight(config.HomeserverURL, "/"),
		httpClient:  httpClient,
		clock:       clk,
		maxAttempts: maxAttempts,
		logger:      logger,
	}, nil
}

// Login authenticates userID with a password and returns a Session.
// The localpart is sent as an m.id.user identifier. The password
// Buffer is read but not closed; the caller retains ownership.
func (c *Client) Login(ctx context.Context, userID ref.UserID, password *secret.Buffer) (*Session, error) {
	if userID.IsZero() {
		return nil, fmt.Errorf("messaging: user ID is required for login")
	}
	if password == nil {
		return nil, fmt.Errorf("messaging: password is required for login")
	}

	// Password is converted to string at the JSON serialization boundary.
	loginRequest := LoginRequest{
		Type: "m.login.password",
		Identifier: UserIdentifier{
			Type: "m.id.user",
			User: userID.Localpart(),
		},
		Password:                 password.String(),
		InitialDeviceDisplayName: "wifisync",
	}

	body, err := c.doRequest(ctx, http.MethodPost, "/_matrix/client/v3/login", nil, loginRequest)
	if err != nil {
		return nil, fmt.Errorf("messaging: login failed: %w", err)
	}

	var authResponse AuthResponse
	if err := json.Unmarshal(body, &authResponse); err != nil {
		return nil, fmt.Errorf("messaging: failed to parse login response: %w", err)
	}
	if authResponse.AccessToken == "" {
		return nil, fmt.Errorf("messaging: login response carried no access token")
	}

	c.logger.Info("logged in to matrix",
		"user_id", authResponse.UserID,
		"device_id", authResponse.DeviceID,
	)

	return c.sessionFromAuth(&authResponse)
}

// SessionFromToken creates a Session from an existing access token string.
// The token is moved into mmap-backed memory (locked against swap, excluded
// from core dumps). This does NOT validate the token; the first API call
// fails if it is invalid.
//
// The caller must call Close on the returned Session when done.
func (c *Client) SessionFromToken(userID ref.UserID, accessToken string) (*Session, error) {
	tokenBuffer, err := secret.NewFromString(accessToken)
	if err != nil {
		return nil, fmt.Errorf("messaging: protecting access token: %w", err)
	}
	return &Session{
		client:      c,
		accessToken: tokenBuffer,
		userID:      userID,
	}, nil
}

func (c *Client) sessionFromAuth(auth *AuthResponse) (*Session, error) {
	tokenBuffer, err := secret.NewFromString(auth.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("messaging: protecting access token: %w", err)
	}
	return &Session{
		client:      c,
		accessToken: tokenBuffer,
		userID:      auth.UserID,
		deviceID:    auth.DeviceID,
	}, nil
}

// doRequest performs an HTTP request to the homeserver and returns the
// response body. On 2xx, returns the body. On 4xx/5xx, returns a
// *MatrixError. A 429 is retried per the package documentation.
// accessToken may be nil for unauthenticated endpoints.
// query may be nil for endpoints without query parameters.
func (c *Client) doRequest(ctx context.Context, method, path string, accessToken *secret.Buffer, requestBody any, query ...url.Values) ([]byte, error) {
	requestURL := c.baseURL + path
	if len(query) > 0 && query[0] != nil {
		requestURL += "?" + query[0].Encode()
	}

	var encoded []byte
	if requestBody != nil {
		var err error
		encoded, err = json.Marshal(requestBody)
		if err != nil {
			return nil, fmt.Errorf("messaging: failed to encode request body: %w", err)
		}
	}

	for attempt := 1; ; attempt++ {
		body, err := c.doRequestOnce(ctx, method, path, requestURL, accessToken, encoded)

		var matrixErr *MatrixError
		if !errors.As(err, &matrixErr) || matrixErr.StatusCode != http.StatusTooManyRequests {
			return body, err
		}
		if attempt >= c.maxAttempts {
			return nil, fmt.Errorf("messaging: %s %s still rate limited after %d attempts: %w", method, path, attempt, err)
		}

		wait := defaultRetryAfter
		if matrixErr.RetryAfterMS > 0 {
			wait = time.Duration(matrixErr.RetryAfterMS) * time.Millisecond
		}
		wait += retryMargin

		c.logger.Warn("rate limited by homeserver",
			"method", method,
			"path", path,
			"retry_in", wait,
			"attempt", attempt,
			"max_attempts", c.maxAttempts,
		)
		if err := clock.SleepContext(ctx, c.clock, wait); err != nil {
			return nil, fmt.Errorf("messaging: waiting to retry %s %s: %w", method, path, err)
		}
	}
}

func (c *Client) doRequestOnce(ctx context.Context, method, path, requestURL string, accessToken *secret.Buffer, encoded []byte) ([]byte, error) {
	var bodyReader io.Reader
	if encoded != nil {
		bodyReader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, requestURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("messaging: failed to create request: %w", err)
	}

	if encoded != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if accessToken != nil {
		request.Header.Set("Authorization", "Bearer "+accessToken.String())
	}
	request.Header.Set("User-Agent", version.UserAgent())

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("messaging: request to %s %s failed: %w", method, path, err)
	}
	defer response.Body.Close()

	responseBody, err := netutil.ReadResponse(response.Body)
	if err != nil {
		return nil, fmt.Errorf("messaging: failed to read response body: %w", err)
	}

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return responseBody, nil
	}

	// All Matrix error responses use the same JSON shape.
	var matrixErr MatrixError
	if jsonErr := json.Unmarshal(responseBody, &matrixErr); jsonErr != nil {
		if response.StatusCode == http.StatusTooManyRequests {
			// A proxy in front of the homeserver may rate limit with a
			// non-JSON body. Retry with the default delay.
			return nil, &MatrixError{
				Code:       ErrCodeLimitExceeded,
				Message:    strings.TrimSpace(string(responseBody)),
				StatusCode: response.StatusCode,
			}
		}
		return nil, fmt.Errorf("messaging: unexpected %d response from %s %s: %s",
			response.StatusCode, method, path, string(responseBody))
	}
	matrixErr.StatusCode = response.StatusCode

	return nil, &matrixErr
}
