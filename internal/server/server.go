// Package server is the reference questionnaire backend.
//
// It serves the /v1 API used by the CLI, Kubernetes-style health probes
// (liveness, readiness, startup) and Prometheus metrics, and shuts down
// gracefully by failing readiness before draining connections.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/felixgeelhaar/canvass/internal/auth"
	"github.com/felixgeelhaar/canvass/internal/health"
	"github.com/felixgeelhaar/canvass/internal/log"
	"github.com/felixgeelhaar/canvass/internal/metrics"
	"github.com/felixgeelhaar/canvass/internal/store"
)

// Server is the backend HTTP server.
type Server struct {
	httpServer      *http.Server
	router          *mux.Router
	probeManager    *health.ProbeManager
	store           store.Store
	issuer          *auth.Issuer
	metrics         *metrics.Metrics
	logger          *log.Logger
	inShutdown      atomic.Bool
	shutdownTimeout time.Duration
}

// Config holds server configuration.
type Config struct {
	// Address is the listen address (e.g., ":8080", "0.0.0.0:8080")
	Address string

	// ShutdownTimeout is the maximum time to wait for connections to drain during shutdown.
	// Defaults to 30 seconds if not specified.
	ShutdownTimeout time.Duration

	// ReadTimeout is the maximum duration for reading the entire request.
	// Defaults to 10 seconds if not specified.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum duration before timing out writes of the response.
	// Defaults to 10 seconds if not specified.
	WriteTimeout time.Duration

	// IdleTimeout is the maximum amount of time to wait for the next request.
	// Defaults to 60 seconds if not specified.
	IdleTimeout time.Duration
}

// Deps are the collaborators the server routes requests to.
type Deps struct {
	Store  store.Store
	Issuer *auth.Issuer
	Probes *health.ProbeManager

	// Metrics and Gatherer are optional. Without a gatherer /metrics is
	// not mounted.
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer

	Logger *log.Logger
}

// NewServer creates the backend server. Store, Issuer and Probes are required.
func NewServer(cfg Config, deps Deps) (*Server, error) {
	if deps.Store == nil || deps.Issuer == nil || deps.Probes == nil {
		return nil, fmt.Errorf("server: store, issuer and probes are required")
	}

	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}

	logger := deps.Logger
	if logger == nil {
		logger = log.DefaultLogger()
	}

	s := &Server{
		probeManager:    deps.Probes,
		store:           deps.Store,
		issuer:          deps.Issuer,
		metrics:         deps.Metrics,
		logger:          logger.With("component", "server"),
		shutdownTimeout: cfg.ShutdownTimeout,
	}
	s.router = s.routes(deps.Gatherer)

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s, nil
}

func (s *Server) routes(gatherer prometheus.Gatherer) *mux.Router {
	r := mux.NewRouter()
	r.Use(s.instrument)

	r.HandleFunc("/health/live", s.handleLiveness).Methods(http.MethodGet)
	r.HandleFunc("/health/ready", s.handleReadiness).Methods(http.MethodGet)
	r.HandleFunc("/health/startup", s.handleStartup).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleReadiness).Methods(http.MethodGet)
	if gatherer != nil {
		r.Handle("/metrics", metrics.HandlerFor(gatherer)).Methods(http.MethodGet)
	}

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/sessions", s.handleLogin).Methods(http.MethodPost)

	authed := v1.NewRoute().Subrouter()
	authed.Use(s.issuer.RequireUser)
	authed.HandleFunc("/questionnaires", s.handleListQuestionnaires).Methods(http.MethodGet)
	authed.HandleFunc("/questionnaires/{id:[0-9]+}", s.handleGetQuestionnaire).Methods(http.MethodGet)
	authed.HandleFunc("/questionnaires/{id:[0-9]+}/responses", s.handlePriorResponses).Methods(http.MethodGet)
	authed.HandleFunc("/responses", s.handleSubmit).Methods(http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "no route for "+r.URL.Path)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", r.Method+" not allowed on "+r.URL.Path)
	})

	return r
}

// Handler returns the server's router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start starts the HTTP server.
// This is a blocking call that returns when the server is stopped or encounters an error.
// Returns http.ErrServerClosed when the server is shut down gracefully.
func (s *Server) Start() error {
	s.probeManager.MarkInitialized()
	s.logger.Info("listening", "addr", s.httpServer.Addr)

	return s.httpServer.ListenAndServe()
}

// Shutdown performs graceful shutdown of the HTTP server.
//
// It:
//  1. Marks the server as shutting down (readiness probes will fail)
//  2. Disables HTTP keep-alives to stop accepting new requests
//  3. Waits for existing connections to drain (up to ShutdownTimeout)
//  4. Forces closure of any remaining connections after timeout
func (s *Server) Shutdown(ctx context.Context) error {
	s.inShutdown.Store(true)
	s.probeManager.MarkShutdown()

	s.httpServer.SetKeepAlivesEnabled(false)

	shutdownCtx, cancel := context.WithTimeout(ctx, s.shutdownTimeout)
	defer cancel()

	s.logger.Info("shutting down", "timeout", s.shutdownTimeout.String())
	return s.httpServer.Shutdown(shutdownCtx)
}

// IsShuttingDown returns whether the server is shutting down.
func (s *Server) IsShuttingDown() bool {
	return s.inShutdown.Load()
}

// writeProbeResponse is a helper function to write probe responses with consistent error handling.
func (s *Server) writeProbeResponse(w http.ResponseWriter, result *health.ProbeResult, unhealthyStatus int) {
	w.Header().Set("Content-Type", "application/json")

	if result.Status == health.StatusUnhealthy {
		w.WriteHeader(unhealthyStatus)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	if err := json.NewEncoder(w).Encode(result); err != nil {
		s.logger.WithError(err).Warn("encode probe response")
	}
}

// handleLiveness handles GET /health/live. It answers 200 even during
// shutdown, reporting degraded.
func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	s.writeProbeResponse(w, s.probeManager.CheckLiveness(r.Context()), http.StatusOK)
}

// handleReadiness handles GET /health/ready and /healthz.
//
// Returns:
//   - 200 OK with JSON: ready to serve requests
//   - 503 Service Unavailable with JSON: shutting down or the store is unreachable
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	s.writeProbeResponse(w, s.probeManager.CheckReadiness(r.Context()), http.StatusServiceUnavailable)
}

// handleStartup handles GET /health/startup; 503 until Start was called.
func (s *Server) handleStartup(w http.ResponseWriter, r *http.Request) {
	s.writeProbeResponse(w, s.probeManager.CheckStartup(r.Context()), http.StatusServiceUnavailable)
}
