// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bureau-foundation/wifisync/lib/clock"
	"github.com/bureau-foundation/wifisync/lib/ref"
	"github.com/bureau-foundation/wifisync/lib/secret"
)

// testBuffer creates a secret.Buffer from a string for testing. The buffer
// is automatically closed when the test completes.
func testBuffer(t *testing.T, value string) *secret.Buffer {
	t.Helper()
	buffer, err := secret.NewFromString(value)
	if err != nil {
		t.Fatalf("creating test buffer: %v", err)
	}
	t.Cleanup(func() { buffer.Close() })
	return buffer
}

func TestNewClient(t *testing.T) {
	t.Run("valid URL", func(t *testing.T) {
		client, err := NewClient(ClientConfig{HomeserverURL: "http://localhost:6167"})
		if err != nil {
			t.Fatalf("NewClient failed: %v", err)
		}
		if client == nil {
			t.Fatal("NewClient returned nil")
		}
	})

	t.Run("empty URL", func(t *testing.T) {
		_, err := NewClient(ClientConfig{})
		if err == nil {
			t.Fatal("expected error for empty URL")
		}
	})

	t.Run("invalid URL", func(t *testing.T) {
		_, err := NewClient(ClientConfig{HomeserverURL: "://invalid"})
		if err == nil {
			t.Fatal("expected error for invalid URL")
		}
	})

	t.Run("unsupported scheme", func(t *testing.T) {
		_, err := NewClient(ClientConfig{HomeserverURL: "ftp://chat.example"})
		if err == nil {
			t.Fatal("expected error for ftp scheme")
		}
	})
}

func TestLogin(t *testing.T) {
	t.Run("successful login", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			if request.URL.Path != "/_matrix/client/v3/login" {
				t.Errorf("unexpected path: %s", request.URL.Path)
			}
			if request.Header.Get("Authorization") != "" {
				t.Errorf("login must not send an Authorization header")
			}
			if !strings.HasPrefix(request.Header.Get("User-Agent"), "wifisync/") {
				t.Errorf("unexpected user agent: %q", request.Header.Get("User-Agent"))
			}

			var body LoginRequest
			if err := json.NewDecoder(request.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode request body: %v", err)
			}
			if body.Type != "m.login.password" {
				t.Errorf("unexpected login type: %s", body.Type)
			}
			if body.Identifier.Type != "m.id.user" || body.Identifier.User != "ct_abc" {
				t.Errorf("unexpected identifier: %+v", body.Identifier)
			}
			if body.Password != "secret123" {
				t.Errorf("unexpected password: %s", body.Password)
			}
			if body.InitialDeviceDisplayName != "wifisync" {
				t.Errorf("unexpected device display name: %s", body.InitialDeviceDisplayName)
			}

			writeJSON(writer, AuthResponse{
				UserID:      ref.MustParseUserID("@ct_abc:chat.example"),
				AccessToken: "syt_token",
				DeviceID:    "DEVICE2",
			})
		}))
		defer server.Close()

		client, err := NewClient(ClientConfig{HomeserverURL: server.URL})
		if err != nil {
			t.Fatalf("NewClient failed: %v", err)
		}

		session, err := client.Login(context.Background(), ref.MustParseUserID("@ct_abc:chat.example"), testBuffer(t, "secret123"))
		if err != nil {
			t.Fatalf("Login failed: %v", err)
		}
		defer session.Close()

		if session.UserID().String() != "@ct_abc:chat.example" {
			t.Errorf("unexpected user ID: %s", session.UserID())
		}
		if session.DeviceID() != "DEVICE2" {
			t.Errorf("unexpected device ID: %s", session.DeviceID())
		}
	})

	t.Run("invalid credentials", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
			writer.Header().Set("Content-Type", "application/json")
			writer.WriteHeader(http.StatusForbidden)
			json.NewEncoder(writer).Encode(MatrixError{
				Code:    ErrCodeForbidden,
				Message: "Invalid username or password",
			})
		}))
		defer server.Close()

		client, err := NewClient(ClientConfig{HomeserverURL: server.URL})
		if err != nil {
			t.Fatalf("NewClient failed: %v", err)
		}

		_, err = client.Login(context.Background(), ref.MustParseUserID("@ct_abc:chat.example"), testBuffer(t, "wrong"))
		if err == nil {
			t.Fatal("expected error for invalid credentials")
		}
		if !IsMatrixError(err, ErrCodeForbidden) {
			t.Errorf("expected M_FORBIDDEN, got: %v", err)
		}
	})

	t.Run("missing password", func(t *testing.T) {
		client, err := NewClient(ClientConfig{HomeserverURL: "http://localhost:1"})
		if err != nil {
			t.Fatalf("NewClient failed: %v", err)
		}
		if _, err := client.Login(context.Background(), ref.MustParseUserID("@a:b"), nil); err == nil {
			t.Fatal("expected error for nil password")
		}
	})
}

func TestSessionFromToken(t *testing.T) {
	client, err := NewClient(ClientConfig{HomeserverURL: "http://localhost:6167"})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	session, err := client.SessionFromToken(ref.MustParseUserID("@test:local"), "my-token")
	if err != nil {
		t.Fatalf("SessionFromToken failed: %v", err)
	}
	if session.UserID().String() != "@test:local" {
		t.Errorf("unexpected user ID: %s", session.UserID())
	}
	if err := session.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := session.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
	if _, err := session.WhoAmI(context.Background()); err == nil {
		t.Fatal("expected error from a closed session")
	}
}

func TestMatrixError(t *testing.T) {
	matrixErr := &MatrixError{
		Code:       ErrCodeNotFound,
		Message:    "Room not found",
		StatusCode: http.StatusNotFound,
	}
	expected := "matrix: M_NOT_FOUND (404): Room not found"
	if matrixErr.Error() != expected {
		t.Errorf("unexpected error string: got %q, want %q", matrixErr.Error(), expected)
	}

	if !IsMatrixError(matrixErr, ErrCodeNotFound) {
		t.Error("IsMatrixError should return true for matching code")
	}
	if IsMatrixError(matrixErr, ErrCodeForbidden) {
		t.Error("IsMatrixError should return false for non-matching code")
	}
	if IsRateLimited(matrixErr) {
		t.Error("a 404 is not rate limiting")
	}
	if IsMatrixError(errors.New("plain"), ErrCodeNotFound) {
		t.Error("IsMatrixError should return false for non-Matrix errors")
	}
}

func TestRateLimitRetry(t *testing.T) {
	var calls atomic.Int32
	handler := http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		switch calls.Add(1) {
		case 1:
			writer.Header().Set("Content-Type", "application/json")
			writer.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(writer).Encode(MatrixError{
				Code:         ErrCodeLimitExceeded,
				Message:      "Too many requests",
				RetryAfterMS: 2000,
			})
		case 2:
			// Rate limit from a proxy without a JSON body.
			writer.WriteHeader(http.StatusTooManyRequests)
			writer.Write([]byte("slow down"))
		default:
			writeJSON(writer, WhoAmIResponse{UserID: ref.MustParseUserID("@test:local")})
		}
	})
	fakeClock := clock.Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	session := newTestSessionWithClock(t, handler, fakeClock)

	type result struct {
		userID ref.UserID
		err    error
	}
	done := make(chan result, 1)
	go func() {
		userID, err := session.WhoAmI(context.Background())
		done <- result{userID, err}
	}()

	// retry_after_ms plus the margin.
	fakeClock.WaitForTimers(1)
	fakeClock.Advance(2249 * time.Millisecond)
	if fakeClock.PendingCount() != 1 {
		t.Fatal("retry fired before retry_after_ms + 250ms elapsed")
	}
	fakeClock.Advance(time.Millisecond)

	// Default delay when the server gives none.
	fakeClock.WaitForTimers(1)
	fakeClock.Advance(1250 * time.Millisecond)

	got := <-done
	if got.err != nil {
		t.Fatalf("WhoAmI failed: %v", got.err)
	}
	if got.userID.String() != "@test:local" {
		t.Errorf("unexpected user ID: %s", got.userID)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 requests, got %d", calls.Load())
	}
}

func TestRateLimitExhausted(t *testing.T) {
	var calls atomic.Int32
	handler := http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		writer.Header().Set("Content-Type", "application/json")
		writer.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(writer).Encode(MatrixError{Code: ErrCodeLimitExceeded, RetryAfterMS: 10})
	})
	fakeClock := clock.Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	session := newTestSessionWithClock(t, handler, fakeClock)

	done := make(chan error, 1)
	go func() {
		_, err := session.JoinedRooms(context.Background())
		done <- err
	}()

	for range DefaultMaxAttempts - 1 {
		fakeClock.WaitForTimers(1)
		fakeClock.Advance(260 * time.Millisecond)
	}

	err := <-done
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if !IsRateLimited(err) {
		t.Errorf("expected the final 429 to be wrapped, got: %v", err)
	}
	if calls.Load() != DefaultMaxAttempts {
		t.Errorf("expected %d requests, got %d", DefaultMaxAttempts, calls.Load())
	}
}

func TestRateLimitContextCancelled(t *testing.T) {
	handler := http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		writer.Header().Set("Content-Type", "application/json")
		writer.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(writer).Encode(MatrixError{Code: ErrCodeLimitExceeded})
	})
	fakeClock := clock.Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	session := newTestSessionWithClock(t, handler, fakeClock)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := session.JoinedRooms(ctx)
		done <- err
	}()

	fakeClock.WaitForTimers(1)
	cancel()

	err := <-done
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got: %v", err)
	}
}
