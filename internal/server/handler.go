package server

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/anthropics/cc-proxy/internal/attrs"
	"github.com/anthropics/cc-proxy/internal/correlation"
	"github.com/anthropics/cc-proxy/internal/forward"
	"github.com/anthropics/cc-proxy/internal/mode"
	"github.com/anthropics/cc-proxy/internal/rewrite"
	"github.com/anthropics/cc-proxy/internal/validate"
)

// handleMessages implements C10: the /v1/messages request handler that
// ties C1-C9 together. Flow follows spec §4.10 exactly.
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	correlationID := correlation.New()

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		w.Header().Set(correlation.Header, correlationID)
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	rewritten, rewriteErr := rewrite.Body(raw, s.modelOverride, s.defaultMaxTokens)
	if rewriteErr != nil {
		s.logger.Warn("body rewrite failed, forwarding original bytes", "correlation_id", correlationID, "error", rewriteErr)
	}

	validJSON := gjson.ValidBytes(rewritten)
	originalModel := "unknown"
	streaming := false
	if validJSON {
		root := gjson.ParseBytes(rewritten)
		if m := root.Get("model"); m.Exists() {
			originalModel = m.String()
		}
		streaming = root.Get("stream").Bool()
	}

	tracer := s.tracer.Tracer()
	ctx, rootSpan := tracer.Start(r.Context(), "proxy_request")
	r = r.WithContext(ctx)

	rootSpan.SetAttributes(
		attribute.String("correlation_id", correlationID),
		attribute.String("original_model", originalModel),
	)

	if validJSON {
		rootSpan.SetAttributes(attrs.RequestAttributes(rewritten)...)

		report := validate.Validate(rewritten)
		rootSpan.SetAttributes(report.Attributes()...)
		report.Log(s.logger, correlationID)
	}

	s.stats.IncRequests()

	switch s.modeReg.Load() {
	case mode.Target:
		s.forwardPrimary(w, r, s.target, rewritten, correlationID, streaming, rootSpan)

	case mode.AnthropicOnly:
		if !s.allowAnthropicOnly {
			rootSpan.End()
			writeJSONError(w, correlationID, http.StatusForbidden,
				"anthropic-only mode requires the proxy to restart with --allow-anthropic-only")
			return
		}
		s.forwardPrimary(w, r, s.passthrough, rewritten, correlationID, streaming, rootSpan)

	case mode.Compare:
		s.compareD.Dispatch(r.Context(), rewritten, correlationID)
		s.forwardPrimary(w, r, s.passthrough, rewritten, correlationID, streaming, rootSpan)

	default:
		s.forwardPrimary(w, r, s.passthrough, rewritten, correlationID, streaming, rootSpan)
	}
}

// forwardPrimary opens the primary_forward child span and delegates to
// fwd (either s.target or s.passthrough, chosen by the mode branch in
// handleMessages).
func (s *Server) forwardPrimary(w http.ResponseWriter, r *http.Request, fwd *forward.Forwarder, body []byte, correlationID string, streaming bool, rootSpan trace.Span) {
	_, childSpan := s.tracer.Tracer().Start(r.Context(), "primary_forward")
	fwd.Forward(w, r, body, correlationID, streaming, s.stats, childSpan, rootSpan)
}

// handleHealth responds 200 "ok", per spec §4.12/§6.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// writeJSONError writes a {"error": msg} body, always carrying the
// correlation header even on an error response, per spec §3's
// invariant that it appears on every proxied response.
func writeJSONError(w http.ResponseWriter, correlationID string, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(correlation.Header, correlationID)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
