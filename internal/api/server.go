// Package api exposes the decision engine over a small REST surface used by
// ingestion adapters, dashboards, and operators.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/autopilotstack/autopilot-core/internal/config"
	"github.com/autopilotstack/autopilot-core/internal/safety"
	"github.com/autopilotstack/autopilot-core/internal/services"
)

// Server wraps the HTTP server and its routes.
type Server struct {
	cfg      config.ServerConfig
	decision *services.DecisionService
	safety   *safety.Evaluator
	executor services.Executor
	logger   *slog.Logger
	http     *http.Server
}

// NewServer constructs the REST server.
func NewServer(cfg config.ServerConfig, decision *services.DecisionService, evaluator *safety.Evaluator, executor services.Executor, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:      cfg,
		decision: decision,
		safety:   evaluator,
		executor: executor,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/signals", s.handleIngestSignal)
		r.Post("/signals/prometheus", s.handleIngestPrometheus)
		r.Post("/signals/kubernetes", s.handleIngestKubernetes)
		r.Post("/signals/deployment", s.handleIngestDeployment)

		r.Post("/decisions/process", s.handleProcessAndDecide)
		r.Get("/decisions/pending", s.handlePendingDecisions)
		r.Get("/decisions/{decisionID}", s.handleGetDecision)
		r.Post("/decisions/{decisionID}/execute", s.handleExecuteDecision)

		r.Get("/stats", s.handleStats)

		r.Post("/safety/evaluate", s.handleSafetyEvaluate)
		r.Get("/safety/rules", s.handleListSafetyRules)
		r.Post("/safety/rules", s.handleAddSafetyRule)
		r.Get("/safety/wisdom/{actionType}", s.handleSafetyWisdom)
	})

	s.http = &http.Server{
		Addr:         cfg.Address,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Handler exposes the router, useful for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start serves requests until Shutdown is invoked.
func (s *Server) Start() error {
	return s.http.ListenAndServe()
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
