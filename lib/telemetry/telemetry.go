// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package telemetry sets up OpenTelemetry tracing for wifisync.
//
// Tracing is opt-in. Without an endpoint, [Setup] installs nothing
// and the global tracer provider stays the no-op default, so spans
// created through [Tracer] cost nothing.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName is the tracer name used by every wifisync
// package.
const InstrumentationName = "github.com/bureau-foundation/wifisync"

// Config holds the parameters for [Setup].
type Config struct {
	// Endpoint is the OTLP/HTTP collector URL, e.g.
	// http://localhost:4318. Empty disables tracing.
	Endpoint string

	// ServiceName and ServiceVersion label the resource.
	ServiceName    string
	ServiceVersion string

	// Logger receives a line when export is enabled. Defaults to
	// slog.Default().
	Logger *slog.Logger
}

// Setup installs a batching OTLP/HTTP tracer provider as the global
// provider. The returned function flushes pending spans and must be
// called before exit; it is a no-op when tracing is disabled.
func Setup(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }
	if cfg.Endpoint == "" {
		return noop, nil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(cfg.Endpoint))
	if err != nil {
		return noop, fmt.Errorf("telemetry: creating OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return noop, fmt.Errorf("telemetry: building resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	logger.Info("tracing enabled", "endpoint", cfg.Endpoint, "service", cfg.ServiceName)
	return provider.Shutdown, nil
}

// Tracer returns the wifisync tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(InstrumentationName)
}
