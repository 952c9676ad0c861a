package forward

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/anthropics/cc-proxy/internal/correlation"
)

// MaxCatchallBodyBytes bounds the buffered read of a catch-all request
// body, per spec §4.11.
const MaxCatchallBodyBytes = 10 << 20 // 10 MiB

// Catchall forwards any request outside /v1/messages, /health, and the
// admin endpoints verbatim to the passthrough base, reading the whole
// body first (unlike the tapped primary forwarder, whose body may
// already have been rewritten and is always streamed). Content-Length
// is forwarded here — deliberately, see DESIGN.md — since the body is
// read in full before the upstream request is built.
type Catchall struct {
	BaseURL string
	Client  *http.Client
	Timeout time.Duration
	Logger  *slog.Logger
}

// NewCatchall builds a Catchall against baseURL.
func NewCatchall(baseURL string, timeout time.Duration, logger *slog.Logger) *Catchall {
	return &Catchall{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		Client:  &http.Client{Timeout: timeout},
		Timeout: timeout,
		Logger:  logger,
	}
}

// Forward relays r verbatim (method, path, query, headers minus
// hop-by-hop and the correlation header, and body) to the passthrough
// base and copies the upstream response back onto w.
func (c *Catchall) Forward(w http.ResponseWriter, r *http.Request, span trace.Span) {
	start := time.Now()

	limited := io.LimitReader(r.Body, MaxCatchallBodyBytes+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}
	if len(body) > MaxCatchallBodyBytes {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	upstreamURL := c.BaseURL + r.URL.Path
	if r.URL.RawQuery != "" {
		upstreamURL += "?" + r.URL.RawQuery
	}

	ctx, cancel := context.WithTimeout(r.Context(), c.Timeout)
	defer cancel()

	upstreamReq, err := http.NewRequestWithContext(ctx, r.Method, upstreamURL, bytes.NewReader(body))
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	for k, vv := range r.Header {
		lower := strings.ToLower(k)
		if hopByHop[lower] || lower == strings.ToLower(correlation.Header) {
			continue
		}
		for _, v := range vv {
			upstreamReq.Header.Add(k, v)
		}
	}
	if len(body) > 0 {
		upstreamReq.ContentLength = int64(len(body))
	}

	resp, err := c.Client.Do(upstreamReq)
	latency := time.Since(start)
	if err != nil {
		status := http.StatusBadGateway
		if ctx.Err() != nil {
			status = http.StatusGatewayTimeout
		}
		span.SetAttributes(attribute.String("method", r.Method), attribute.String("url", upstreamURL),
			attribute.Int("status", status), attribute.Int64("latency_ms", latency.Milliseconds()))
		c.Logger.Warn("catch-all forward failed", "error", err, "url", upstreamURL)
		http.Error(w, "Bad Gateway", status)
		return
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.String("method", r.Method), attribute.String("url", upstreamURL),
		attribute.Int("status", resp.StatusCode), attribute.Int64("latency_ms", latency.Milliseconds()))

	copyResponseHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)
}
