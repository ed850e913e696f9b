// Package api provides the HTTP surface of the fraud-scoring service.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/riskshield/riskshield/internal/auth"
	"github.com/riskshield/riskshield/internal/domain"
	"github.com/riskshield/riskshield/internal/rules"
	"github.com/riskshield/riskshield/internal/scoring"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, scorer *scoring.Service, authSvc *auth.Service, repo domain.Repository, cache domain.Cache, engine *rules.Engine, version string) *Server {
	handler := NewHandler(scorer, authSvc, repo, cache, engine, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware(cfg.CORSOrigins)) // CORS for browser clients
	router.Use(RecoverMiddleware)               // Recover from panics
	router.Use(TracingMiddleware)               // OpenTelemetry tracing
	router.Use(LoggingMiddleware)               // Request logging
	router.Use(MetricsMiddleware)               // Prometheus request metrics
	router.Use(middleware.RealIP)               // Extract real IP
	router.Use(middleware.Compress(5))          // Gzip compression

	if cfg.RateLimitEnabled && cache != nil {
		router.Use(RateLimitMiddleware(cache, cfg.RateLimitRequests, time.Duration(cfg.RateLimitWindow)*time.Second))
	}

	// Operational metrics
	router.Handle("/metrics", promhttp.Handler())

	router.Route("/api", func(r chi.Router) {
		r.Get("/health", handler.Health)

		// Users
		r.Post("/register", handler.Register)
		r.Post("/login", handler.Login)

		// Scoring
		r.Post("/predict", handler.Predict)
		r.Post("/bulk-predict", handler.BulkPredict)

		// History and dashboards
		r.Get("/transactions/{email}", handler.Transactions)
		r.Get("/analytics", handler.Analytics)
		r.Get("/metrics", handler.ModelMetrics)

		// Custom rule management
		r.Get("/rules", handler.ListRules)
		r.Post("/rules", handler.CreateRule)
		r.Post("/rules/reload", handler.ReloadRules)
	})

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
