// Package server provides the optional HTTP surface of streamwatch:
// health probes, Prometheus metrics, and a read-only API over detector
// state and the decision log.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/HerbHall/streamwatch/internal/version"
	"github.com/HerbHall/streamwatch/pkg/plugin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// ReadinessChecker verifies that the server is ready to serve traffic.
// Returns nil if ready, an error describing why not otherwise.
type ReadinessChecker func(ctx context.Context) error

// RouteRegistrar lets other packages mount routes without an import cycle.
type RouteRegistrar interface {
	RegisterRoutes(mux *http.ServeMux)
}

// Server is the streamwatch HTTP server.
type Server struct {
	httpServer *http.Server
	api        *API
	logger     *zap.Logger
	mux        *http.ServeMux
	ready      ReadinessChecker
	checkers   map[string]plugin.HealthChecker
}

var probePaths = []string{"/healthz", "/readyz", "/metrics"}

// New creates a Server with middleware and routes. api and ready may be nil.
func New(addr string, logger *zap.Logger, ready ReadinessChecker, api *API, extraRoutes ...RouteRegistrar) *Server {
	mux := http.NewServeMux()

	s := &Server{
		api:    api,
		logger: logger,
		mux:    mux,
		ready:  ready,
	}

	s.registerRoutes()
	if api != nil {
		api.RegisterRoutes(mux)
	}
	for _, r := range extraRoutes {
		r.RegisterRoutes(mux)
	}

	// Outermost first.
	handler := Chain(mux,
		RecoveryMiddleware(logger),
		RequestIDMiddleware,
		LoggingMiddleware(logger, probePaths),
		SecurityHeadersMiddleware,
		VersionHeaderMiddleware,
		RateLimitMiddleware(100, 200, probePaths),
	)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// No WriteTimeout: it would cut long-lived WebSocket streams.
		IdleTimeout: 60 * time.Second,
	}

	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.HandleFunc("GET /readyz", s.handleReadyz)
	s.mux.Handle("GET /metrics", promhttp.Handler())
	s.mux.HandleFunc("GET /api/v1/health", s.handleHealth)
}

// AddHealthChecker reports the named component in GET /api/v1/health.
// Call before Start.
func (s *Server) AddHealthChecker(name string, hc plugin.HealthChecker) {
	if s.checkers == nil {
		s.checkers = make(map[string]plugin.HealthChecker)
	}
	s.checkers[name] = hc
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start begins serving HTTP requests and blocks until Shutdown.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status     string                         `json:"status"` // "ok", "degraded"
	Service    string                         `json:"service"`
	Version    map[string]string              `json:"version"`
	Sensors    int                            `json:"sensors"`
	Components map[string]plugin.HealthStatus `json:"components,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "ok",
		Service: "streamwatch",
		Version: version.Map(),
	}
	if s.api != nil && s.api.sensors != nil {
		resp.Sensors = len(s.api.sensors.Sensors())
	}
	if len(s.checkers) > 0 {
		resp.Components = make(map[string]plugin.HealthStatus, len(s.checkers))
		for name, hc := range s.checkers {
			st := hc.Health(r.Context())
			if st.Status != "healthy" {
				resp.Status = "degraded"
			}
			resp.Components[name] = st
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
