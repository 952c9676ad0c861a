package server

import (
	"net/http"

	"github.com/anthropics/cc-proxy/internal/mode"
)

// handleCatchall implements C11: verbatim passthrough for any request
// outside /v1/messages and the admin endpoints. In target mode there is
// no passthrough upstream to forward to, so it replies 404 instead, per
// spec §4.11/§6.
func (s *Server) handleCatchall(w http.ResponseWriter, r *http.Request) {
	if s.modeReg.Load() == mode.Target {
		http.NotFound(w, r)
		return
	}

	tracer := s.tracer.Tracer()
	ctx, span := tracer.Start(r.Context(), "passthrough_forward")
	defer span.End()
	r = r.WithContext(ctx)

	s.catchall.Forward(w, r, span)
}
