// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bureau-foundation/wifisync/lib/clock"
	"github.com/bureau-foundation/wifisync/lib/netutil"
	"github.com/bureau-foundation/wifisync/lib/secret"
	"github.com/bureau-foundation/wifisync/lib/version"
)

const (
	defaultTimeout  = 5 * time.Second
	defaultPageSize = 100

	// maxRetryAfter caps how long a single Retry-After may hold a pass.
	maxRetryAfter = time.Minute
)

// Config holds configuration for creating a ChurchTools API Client.
type Config struct {
	// BaseURL is the ChurchTools instance, e.g. "https://example.church.tools".
	BaseURL string

	// Username and Password are the API account's credentials. The
	// client reads Password on every Login but does not own it.
	Username string
	Password *secret.Buffer

	// Timeout bounds each HTTP request. Defaults to 5s. Ignored when
	// HTTPClient is set.
	Timeout time.Duration

	// HTTPClient is used for all requests. A cookie jar is attached to
	// a copy of it when it has none.
	HTTPClient *http.Client

	// Clock provides time operations. Defaults to clock.Real().
	Clock clock.Clock

	// Logger is used for structured logging. Defaults to slog.Default().
	Logger *slog.Logger
}

// Client is a ChurchTools REST API client holding one login session.
type Client struct {
	baseURL    string
	username   string
	password   *secret.Buffer
	httpClient *http.Client
	clock      clock.Clock
	logger     *slog.Logger
}

// NewClient creates a ChurchTools client. It does not contact the
// server; call Login before any other method.
func NewClient(config Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("directory: BaseURL is required")
	}
	parsed, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("directory: invalid BaseURL %q: %w", config.BaseURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("directory: BaseURL %q must be http or https", config.BaseURL)
	}
	if config.Username == "" {
		return nil, fmt.Errorf("directory: Username is required")
	}
	if config.Password == nil {
		return nil, fmt.Errorf("directory: Password is required")
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("directory: creating cookie jar: %w", err)
	}

	var httpClient *http.Client
	if config.HTTPClient != nil {
		clientCopy := *config.HTTPClient
		if clientCopy.Jar == nil {
			clientCopy.Jar = jar
		}
		httpClient = &clientCopy
	} else {
		timeout := config.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout, Jar: jar}
	}

	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		username:   config.Username,
		password:   config.Password,
		httpClient: httpClient,
		clock:      clk,
		logger:     logger,
	}, nil
}

// Login opens a session for the API account. The session cookie is
// stored in the client's jar.
func (client *Client) Login(ctx context.Context) error {
	request := struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}{
		Username: client.username,
		Password: client.password.String(),
	}
	if _, err := client.do(ctx, http.MethodPost, "/api/login", nil, request); err != nil {
		return fmt.Errorf("directory: login as %q: %w", client.username, err)
	}
	client.logger.Debug("logged in to churchtools", "username", client.username)
	return nil
}

// WhoAmI returns the person id and GUID of the logged-in API account.
func (client *Client) WhoAmI(ctx context.Context) (Identity, error) {
	var response whoAmIResponse
	if err := client.get(ctx, "/api/whoami", nil, &response); err != nil {
		return Identity{}, err
	}
	if response.Data.GUID == "" {
		return Identity{}, fmt.Errorf("directory: whoami response carried no guid")
	}
	if response.Data.ID <= 0 {
		return Identity{}, fmt.Errorf("directory: whoami response carried no person id")
	}
	return Identity{ID: int64(response.Data.ID), GUID: response.Data.GUID}, nil
}

// get performs a GET and decodes the JSON response into result.
func (client *Client) get(ctx context.Context, path string, query url.Values, result any) error {
	body, err := client.do(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("directory: decoding %s response: %w", path, err)
	}
	return nil
}

// do executes a request and returns the response body. A 429 or 503
// with a Retry-After header is retried once after the advertised delay.
func (client *Client) do(ctx context.Context, method, path string, query url.Values, requestBody any) ([]byte, error) {
	requestURL := client.baseURL + path
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}

	var encoded []byte
	if requestBody != nil {
		var err error
		encoded, err = json.Marshal(requestBody)
		if err != nil {
			return nil, fmt.Errorf("directory: encoding request body: %w", err)
		}
	}

	for attempt := 0; ; attempt++ {
		statusCode, header, body, err := client.doOnce(ctx, method, requestURL, encoded)
		if err != nil {
			return nil, err
		}
		if statusCode >= 200 && statusCode < 300 {
			return body, nil
		}

		retryable := statusCode == http.StatusTooManyRequests || statusCode == http.StatusServiceUnavailable
		if retryable && attempt == 0 {
			if wait := retryAfter(header); wait > 0 {
				client.logger.Info("churchtools asked to back off",
					"duration", wait,
					"method", method,
					"path", path,
					"status", statusCode,
				)
				if err := clock.SleepContext(ctx, client.clock, wait); err != nil {
					return nil, err
				}
				continue
			}
		}
		return nil, parseAPIError(method, path, statusCode, body)
	}
}

func (client *Client) doOnce(ctx context.Context, method, requestURL string, encoded []byte) (int, http.Header, []byte, error) {
	var bodyReader io.Reader
	if encoded != nil {
		bodyReader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, requestURL, bodyReader)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("directory: creating request: %w", err)
	}
	request.Header.Set("Accept", "application/json")
	request.Header.Set("User-Agent", version.UserAgent())
	if encoded != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	response, err := client.httpClient.Do(request)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("directory: %s %s: %w", method, requestURL, err)
	}
	defer response.Body.Close()

	body, err := netutil.ReadResponse(response.Body)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("directory: reading response body: %w", err)
	}
	return response.StatusCode, response.Header, body, nil
}

// retryAfter reads a Retry-After header given in seconds. Zero means
// no usable hint.
func retryAfter(header http.Header) time.Duration {
	value := header.Get("Retry-After")
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds <= 0 {
		return 0
	}
	return min(time.Duration(seconds)*time.Second, maxRetryAfter)
}
