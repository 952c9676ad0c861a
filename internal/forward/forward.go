// Package forward builds and sends the outbound HTTP request for both the
// primary forwarder (C8, against either the passthrough or target base)
// and the catch-all forwarder (C11), and relays the upstream response
// back onto an http.ResponseWriter.
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
	"github.com/anthropics/cc-proxy/internal/stats"
	"github.com/anthropics/cc-proxy/internal/tap"
)

// hopByHop is the set of headers that must never be copied across a
// proxy hop, per spec §4.8.
var hopByHop = map[string]bool{
	"host":                true,
	"connection":          true,
	"transfer-encoding":   true,
	"keep-alive":          true,
	"upgrade":             true,
	"proxy-authenticate":  true,
	"proxy-authorization": true,
	"te":                  true,
	"trailers":            true,
}

// Forwarder sends requests to one upstream base URL under a shared
// timeout, producing the C8 primary-forwarder behavior. Two Forwarder
// values exist per process: one for the passthrough base, one for the
// target base — the only behavioral difference between them is whether
// x-api-key is stripped (StripAPIKey).
type Forwarder struct {
	BaseURL     string
	Client      *http.Client
	Timeout     time.Duration
	StripAPIKey bool
	Logger      *slog.Logger
}

// New builds a Forwarder against baseURL with the given per-request
// timeout. stripAPIKey is true for the forward-to-target variant, which
// must not leak the client's Anthropic API key to a target that
// authenticates separately.
func New(baseURL string, timeout time.Duration, stripAPIKey bool, logger *slog.Logger) *Forwarder {
	return &Forwarder{
		BaseURL:     strings.TrimSuffix(baseURL, "/"),
		Client:      &http.Client{Timeout: timeout},
		Timeout:     timeout,
		StripAPIKey: stripAPIKey,
		Logger:      logger,
	}
}

// Forward builds a POST to <base>/v1/messages carrying body, copies
// headers from the inbound request (minus hop-by-hop, Content-Length,
// and — for the target variant — x-api-key), sends it, and on success
// writes the upstream status/headers/tap-wrapped body onto w. On
// failure it writes the appropriate error status directly and returns.
//
// span is the primary_forward child span; rootSpan is the proxy_request
// root span that receives anthropic_request_id (C8's spec requirement
// that this be recorded on the *root*, not the child, span).
func (f *Forwarder) Forward(w http.ResponseWriter, r *http.Request, body []byte, correlationID string, streaming bool, st *stats.Stats, span, rootSpan trace.Span) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(r.Context(), f.Timeout)
	defer cancel()

	upstreamReq, err := http.NewRequestWithContext(ctx, http.MethodPost, f.BaseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		span.SetAttributes(attribute.Int("status", http.StatusInternalServerError))
		span.End()
		rootSpan.End()
		w.Header().Set(correlation.Header, correlationID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	copyRequestHeaders(upstreamReq.Header, r.Header, f.StripAPIKey)
	upstreamReq.Header.Set("Content-Type", "application/json")
	upstreamReq.Header.Set(correlation.Header, correlationID)

	resp, err := f.Client.Do(upstreamReq)
	latency := time.Since(start)

	if err != nil {
		status := http.StatusBadGateway
		msg := "Bad Gateway"
		if ctx.Err() != nil {
			status = http.StatusGatewayTimeout
			msg = "Gateway Timeout"
		}
		span.SetAttributes(attribute.Int("status", status), attribute.Int64("latency_ms", latency.Milliseconds()))
		span.End()
		rootSpan.End()
		f.Logger.Warn("upstream request failed", "correlation_id", correlationID, "error", err, "status", status)
		w.Header().Set(correlation.Header, correlationID)
		http.Error(w, msg, status)
		return
	}

	status := resp.StatusCode
	if status < 100 || status > 599 {
		status = http.StatusBadGateway
	}

	if reqID := resp.Header.Get("x-request-id"); reqID != "" {
		rootSpan.SetAttributes(attribute.String("anthropic_request_id", reqID))
	}
	span.SetAttributes(attribute.Int("status", status), attribute.Int64("latency_ms", latency.Milliseconds()))
	span.End()

	copyResponseHeaders(w.Header(), resp.Header)
	w.Header().Set(correlation.Header, correlationID)
	w.WriteHeader(status)

	// The tap owns rootSpan from here: it records ttft_ms/total_duration_ms
	// and the response attributes, then ends the span once the body
	// completes (or the client disconnects, best-effort per spec §5).
	tapped := tap.New(resp.Body, rootSpan, st, streaming, start, f.Logger)
	defer tapped.Close()
	if _, err := io.Copy(w, tapped); err != nil {
		f.Logger.Warn("error streaming response to client", "correlation_id", correlationID, "error", err)
	}
}

// copyRequestHeaders copies every inbound header except the hop-by-hop
// set, Content-Length (the body may have been rewritten), and — when
// stripAPIKey is set — x-api-key.
func copyRequestHeaders(dst, src http.Header, stripAPIKey bool) {
	for k, vv := range src {
		lower := strings.ToLower(k)
		if hopByHop[lower] || lower == "content-length" {
			continue
		}
		if stripAPIKey && lower == "x-api-key" {
			continue
		}
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
}

// copyResponseHeaders copies every upstream response header except the
// hop-by-hop set.
func copyResponseHeaders(dst, src http.Header) {
	for k, vv := range src {
		if hopByHop[strings.ToLower(k)] {
			continue
		}
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
}
