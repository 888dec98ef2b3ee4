// Package core provides the HTTP chassis for the wardalert functions. It
// builds a chi router that serves the database-webhook trigger, the account
// deletion endpoint and the cleanup job, and applies the cross-cutting
// concerns (recovery, request IDs, logging, CORS, metrics) before requests
// reach the handlers in internal/api/handlers.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"wardalert/internal/config"
)

// Server holds the router and the dependencies shared by all handlers.
type Server struct {
	Config        *config.Config
	Logger        *slog.Logger
	Validator     *Validator
	Metrics       MetricsCollector
	Authenticator Authenticator
	HealthProbes  []HealthProbe

	// V1RouteRegistrars are invoked by MountRoutes inside the /v1 group. They
	// are populated by main so that core never imports the handler packages.
	V1RouteRegistrars []func(r chi.Router)

	// closers run on Shutdown in registration order.
	closers []func()

	router *chi.Mux
}

// NewServer creates a Server. Routes are not mounted until MountRoutes is
// called, so tests can register their own.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	return &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(logger),
		router:    chi.NewRouter(),
	}, nil
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// OnShutdown registers fn to run when the server shuts down, e.g. closing
// the database pool.
func (s *Server) OnShutdown(fn func()) {
	s.closers = append(s.closers, fn)
}

// Shutdown releases the resources registered with OnShutdown.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.InfoContext(ctx, "server shutdown initiated")
	for _, fn := range s.closers {
		fn()
	}
	s.Logger.InfoContext(ctx, "server shutdown complete")
	return nil
}
