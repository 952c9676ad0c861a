package server

import (
	"encoding/json"
	"net/http"

	"github.com/anthropics/cc-proxy/internal/mode"
)

// handleGetStats serves GET /api/stats: the C2 snapshot, JSON-encoded.
func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.stats.Snapshot())
}

// modeResponse is the wire shape both GET and PUT /api/mode use.
type modeResponse struct {
	Mode string `json:"mode"`
}

// handleGetMode serves GET /api/mode.
func (s *Server) handleGetMode(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(modeResponse{Mode: s.modeReg.Load().String()})
}

// handlePutMode serves PUT /api/mode: {"mode": "target"|"anthropic-only"|
// "compare"}. Rejects an unrecognised name with 400, and rejects
// "anthropic-only" with 403 when the proxy wasn't started with
// --allow-anthropic-only, per spec §4.12.
func (s *Server) handlePutMode(w http.ResponseWriter, r *http.Request) {
	var body modeResponse
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeAdminError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	m, ok := mode.Parse(body.Mode)
	if !ok {
		writeAdminError(w, http.StatusBadRequest, "unknown mode: "+body.Mode)
		return
	}
	if m == mode.AnthropicOnly && !s.allowAnthropicOnly {
		writeAdminError(w, http.StatusForbidden, "anthropic-only mode requires the proxy to restart with --allow-anthropic-only")
		return
	}

	s.modeReg.Store(m)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(modeResponse{Mode: m.String()})
}

// tracingResponse is the wire shape both GET and PUT /api/tracing use.
type tracingResponse struct {
	Enabled bool `json:"enabled"`
}

// handleGetTracing serves GET /api/tracing.
func (s *Server) handleGetTracing(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(tracingResponse{Enabled: s.tracingFlag.Load()})
}

// handlePutTracing serves PUT /api/tracing: {"enabled": bool}, toggling
// the process-wide atomic flag an external log/trace filter may consult.
func (s *Server) handlePutTracing(w http.ResponseWriter, r *http.Request) {
	var body tracingResponse
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeAdminError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.tracingFlag.Store(body.Enabled)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(tracingResponse{Enabled: body.Enabled})
}

func writeAdminError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
