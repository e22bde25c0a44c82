package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/reasoning-cache-service/internal/reasoning"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ReasoningHandler answers a raw reasoning request.
type ReasoningHandler interface {
	Handle(ctx context.Context, raw map[string]any) (reasoning.Response, error)
}

// Server exposes the reasoning API plus health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	handler    ReasoningHandler
	logger     *slog.Logger
	devErrors  bool
}

// Option configures a Server.
type Option func(*Server)

// WithDevelopmentErrors exposes upstream error text in 500 responses.
func WithDevelopmentErrors(enabled bool) Option {
	return func(s *Server) { s.devErrors = enabled }
}

// WithWriteTimeout sets the response write deadline. It must exceed the
// service's request timeout.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Server) { s.httpServer.WriteTimeout = d }
}

// NewServer creates an HTTP server with the reasoning, /healthz, /readyz, and /metrics routes.
func NewServer(addr string, handler ReasoningHandler, ready sharedobs.ReadinessChecker, logger *slog.Logger, opts ...Option) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 45 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		handler: handler,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /api/reasoning", s.handleReasoning)
	mux.HandleFunc("/api/reasoning", handleMethodNotAllowed(http.MethodPost))
	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("/", handleNotFound)

	s.httpServer.Handler = s.withRequestID(withCORS(mux))
	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type endpoint struct {
	Method      string `json:"method"`
	Path        string `json:"path"`
	Description string `json:"description"`
}

var endpoints = []endpoint{
	{Method: http.MethodGet, Path: "/", Description: "Service status"},
	{Method: http.MethodPost, Path: "/api/reasoning", Description: "Generate CO2 anomaly reasoning"},
	{Method: http.MethodGet, Path: "/healthz", Description: "Liveness probe"},
	{Method: http.MethodGet, Path: "/readyz", Description: "Readiness probe"},
	{Method: http.MethodGet, Path: "/metrics", Description: "Prometheus metrics"},
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"message":   "Reasoning cache service is running",
		"endpoints": endpoints,
	})
}

func handleNotFound(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusNotFound, errorBody{
		Error:   "Not found",
		Message: "The requested endpoint does not exist",
	})
}

func handleMethodNotAllowed(allowed ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		for _, m := range allowed {
			w.Header().Add("Allow", m)
		}
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{
			Error:   "Method not allowed",
			Message: "The HTTP method is not supported for this endpoint",
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client may be gone
}
