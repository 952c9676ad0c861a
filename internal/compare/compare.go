// Package compare implements the fire-and-forget compare dispatcher
// (C9): a bounded, non-blocking mirror of primary traffic to a second
// target, purely for observability. It never affects the client path.
package compare

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/anthropics/cc-proxy/internal/correlation"
)

// TracerProvider is the subset of telemetry.Provider the dispatcher
// needs: a fresh tracer per dispatch, so a mid-run toggle of the tracing
// flag takes effect immediately, matching how the request handler
// resolves its tracer (see internal/server.Tracer).
type TracerProvider interface {
	Tracer() trace.Tracer
}

// Dispatcher holds the shared state a compare dispatch needs: an HTTP
// client, a non-blocking semaphore bounding in-flight compare requests,
// the compare target's base URL, and a per-request timeout.
type Dispatcher struct {
	client  *http.Client
	sem     *semaphore.Weighted
	baseURL string
	timeout time.Duration
	logger  *slog.Logger
	tracer  TracerProvider
}

// New builds a Dispatcher against baseURL, admitting at most
// maxConcurrent in-flight compare requests at a time.
func New(baseURL string, maxConcurrent int64, timeout time.Duration, logger *slog.Logger, tracer TracerProvider) *Dispatcher {
	return &Dispatcher{
		client:  &http.Client{Timeout: timeout},
		sem:     semaphore.NewWeighted(maxConcurrent),
		baseURL: strings.TrimSuffix(baseURL, "/"),
		timeout: timeout,
		logger:  logger,
		tracer:  tracer,
	}
}

// Dispatch fires off one compare request in its own goroutine and
// returns immediately; the goroutine's outcome never reaches the
// caller. The caller (C10) must not wait on it in any way.
func (d *Dispatcher) Dispatch(ctx context.Context, requestBytes []byte, correlationID string) {
	go d.run(ctx, requestBytes, correlationID)
}

func (d *Dispatcher) run(ctx context.Context, requestBytes []byte, correlationID string) {
	if !d.sem.TryAcquire(1) {
		d.logger.Warn("Compare semaphore full, dropping request", "correlation_id", correlationID)
		return
	}
	defer d.sem.Release(1)

	_, span := d.tracer.Tracer().Start(ctx, "compare_request")
	defer span.End()
	span.SetAttributes(attribute.String("correlation_id", correlationID))

	start := time.Now()

	reqCtx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	upstreamReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost, d.baseURL+"/v1/messages", bytes.NewReader(requestBytes))
	if err != nil {
		d.logger.Warn("compare request build failed", "correlation_id", correlationID, "error", err)
		return
	}
	upstreamReq.Header.Set("Content-Type", "application/json")
	upstreamReq.Header.Set(correlation.Header, correlationID)

	if model := gjson.GetBytes(requestBytes, "model"); model.Exists() {
		span.SetAttributes(attribute.String("model", model.String()))
	}

	resp, err := d.client.Do(upstreamReq)
	latency := time.Since(start)
	if err != nil {
		span.SetAttributes(attribute.Int64("latency_ms", latency.Milliseconds()))
		d.logger.Warn("compare dispatch failed", "correlation_id", correlationID, "error", err)
		return
	}
	defer resp.Body.Close()

	body, err := readAllBounded(resp)
	span.SetAttributes(attribute.Int("status", resp.StatusCode), attribute.Int64("latency_ms", latency.Milliseconds()))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		d.logger.Warn("compare dispatch non-2xx", "correlation_id", correlationID, "status", resp.StatusCode)
		return
	}
	if err != nil || !gjson.ValidBytes(body) {
		return
	}

	parsed := gjson.ParseBytes(body)
	input := parsed.Get("usage.input_tokens")
	output := parsed.Get("usage.output_tokens")

	if input.Exists() || output.Exists() {
		d.logger.Info("compare response usage",
			"correlation_id", correlationID,
			"input_tokens", input.Int(),
			"output_tokens", output.Int(),
			"latency_ms", latency.Milliseconds(),
			"status", resp.StatusCode,
		)
	}
}

const maxCompareBodyBytes = 10 << 20 // 10 MiB, mirrors the catch-all forwarder's cap.

func readAllBounded(resp *http.Response) ([]byte, error) {
	return io.ReadAll(io.LimitReader(resp.Body, maxCompareBodyBytes))
}
