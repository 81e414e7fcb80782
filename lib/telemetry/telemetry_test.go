// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"log/slog"
	"testing"
)

func TestSetup_NoopWithoutEndpoint(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{ServiceName: "wifisync"})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := shutdown(ctx); err != nil {
		t.Fatalf("no-op shutdown should not error: %v", err)
	}
}

func TestSetup_WithEndpoint(t *testing.T) {
	// Non-routable address: nothing is exported because no span is
	// ended before shutdown.
	shutdown, err := Setup(context.Background(), Config{
		Endpoint:       "http://192.0.2.1:4318",
		ServiceName:    "wifisync",
		ServiceVersion: "test",
		Logger:         slog.New(slog.DiscardHandler),
	})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestTracer_StartsSpans(t *testing.T) {
	_, span := Tracer().Start(context.Background(), "test")
	defer span.End()
	if span == nil {
		t.Fatal("Tracer().Start returned a nil span")
	}
}
