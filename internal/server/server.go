// Package server wires C1-C11 together behind a chi router: the
// /v1/messages request handler (C10), the catch-all forwarder (C11), and
// the admin JSON endpoints (§4.12).
package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/trace"

	"github.com/anthropics/cc-proxy/internal/compare"
	"github.com/anthropics/cc-proxy/internal/forward"
	"github.com/anthropics/cc-proxy/internal/mode"
	"github.com/anthropics/cc-proxy/internal/stats"
)

// Tracer is the subset of telemetry.Provider the server needs: a fresh
// tracer per request, so a mid-run toggle of the tracing flag takes
// effect immediately (see internal/telemetry).
type Tracer interface {
	Tracer() trace.Tracer
}

// Server holds every dependency the request handlers need. It is built
// once in cmd/ccproxy and is safe for concurrent use — every field here
// is either immutable after construction or already safe for concurrent
// access in its own right (the lock-free mode.Register/mode.Flag, the
// atomic stats.Stats, the pooled http.Client inside each Forwarder).
type Server struct {
	router chi.Router

	logger *slog.Logger
	tracer Tracer

	modeReg     *mode.Register
	tracingFlag *mode.Flag
	stats       *stats.Stats

	passthrough *forward.Forwarder
	target      *forward.Forwarder
	catchall    *forward.Catchall
	compareD    *compare.Dispatcher

	modelOverride      string
	defaultMaxTokens   uint64
	allowAnthropicOnly bool
}

// Deps collects the constructor arguments for New. Grouping them in one
// struct (rather than a long positional argument list) mirrors the
// teacher's own New(cfg, models) shape, scaled up to this system's
// larger dependency set.
type Deps struct {
	Logger *slog.Logger
	Tracer Tracer

	ModeReg     *mode.Register
	TracingFlag *mode.Flag
	Stats       *stats.Stats

	Passthrough *forward.Forwarder
	Target      *forward.Forwarder
	Catchall    *forward.Catchall
	Compare     *compare.Dispatcher

	ModelOverride      string
	DefaultMaxTokens   uint64
	AllowAnthropicOnly bool
}

// New builds a Server, wires up routes and middleware, and returns it
// ready to use as an http.Handler.
func New(d Deps) *Server {
	s := &Server{
		logger:             d.Logger,
		tracer:             d.Tracer,
		modeReg:            d.ModeReg,
		tracingFlag:        d.TracingFlag,
		stats:              d.Stats,
		passthrough:        d.Passthrough,
		target:             d.Target,
		catchall:           d.Catchall,
		compareD:           d.Compare,
		modelOverride:      d.ModelOverride,
		defaultMaxTokens:   d.DefaultMaxTokens,
		allowAnthropicOnly: d.AllowAnthropicOnly,
	}
	s.routes()
	return s
}

// routes builds the chi router with all middleware and route
// definitions, gathered in one method so the routing table is easy to
// scan — the same layout the teacher's routes() method uses.
func (s *Server) routes() {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Post("/v1/messages", s.handleMessages)
	r.Get("/health", s.handleHealth)
	r.Get("/api/stats", s.handleGetStats)
	r.Get("/api/mode", s.handleGetMode)
	r.Put("/api/mode", s.handlePutMode)
	r.Get("/api/tracing", s.handleGetTracing)
	r.Put("/api/tracing", s.handlePutTracing)

	// Anything else — any method, any path — is C11's catch-all.
	r.NotFound(s.handleCatchall)
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) { s.handleCatchall(w, req) })

	s.router = r
}

// ServeHTTP makes Server satisfy http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// requestLogger logs one line per request at debug level — deliberately
// quieter than chi's default middleware.Logger, since /v1/messages
// traffic already gets a root span with far richer attributes; this is
// just a liveness trail for the admin endpoints and errors.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path)
		next.ServeHTTP(w, r)
	})
}
