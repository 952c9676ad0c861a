// Package telemetry wires up the OTLP/HTTP trace exporter and exposes a
// tracer whose output an external filter can gate on the process-wide
// tracing flag, grounded on the GetTracer(settings) pattern of choosing
// between a real tracer and trace/noop.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/anthropics/cc-proxy/internal/mode"
)

const tracerName = "cc-proxy"

// Provider owns the SDK tracer provider and the runtime tracing flag
// that decides, per call to Tracer(), whether spans are real or noop.
type Provider struct {
	sdk  *sdktrace.TracerProvider
	flag *mode.Flag
}

// Setup builds an OTLP/HTTP exporter against endpoint and installs it as
// the global tracer provider. An empty endpoint yields a provider with
// no exporter (spans are created and recorded in-process but never
// shipped) — useful for tests and for running without a collector.
func Setup(ctx context.Context, endpoint string, flag *mode.Flag) (*Provider, error) {
	opts := []sdktrace.TracerProviderOption{}

	if endpoint != "" {
		exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(endpoint), otlptracehttp.WithInsecure())
		if err != nil {
			return nil, fmt.Errorf("building otlp exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)

	return &Provider{sdk: tp, flag: flag}, nil
}

// Tracer returns the real OTLP-backed tracer when the tracing flag is
// enabled, and a no-op tracer otherwise. Called fresh on every request
// rather than cached, so a mid-run toggle of the flag takes effect
// immediately — the same "read lock-free on every request" contract the
// mode register follows.
func (p *Provider) Tracer() trace.Tracer {
	if p.flag != nil && !p.flag.Load() {
		return noop.NewTracerProvider().Tracer(tracerName)
	}
	return otel.Tracer(tracerName)
}

// Shutdown flushes and closes the exporter. Called once from main on
// graceful shutdown.
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.sdk.Shutdown(ctx)
}
