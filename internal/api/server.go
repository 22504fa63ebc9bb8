// Package api exposes the export pipeline over HTTP: submit runs, poll
// task state, inspect exceptions, reload the registry.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/odoo-bridge/internal/config"
	"github.com/ignite/odoo-bridge/internal/exceptions"
	"github.com/ignite/odoo-bridge/internal/mapping"
	"github.com/ignite/odoo-bridge/internal/pkg/logger"
	"github.com/ignite/odoo-bridge/internal/registry"
	"github.com/ignite/odoo-bridge/internal/task"
)

// Server represents the API server
type Server struct {
	config   config.ServerConfig
	handlers *Handlers
	router   *chi.Mux
	server   *http.Server
}

// NewServer creates a new API server
func NewServer(cfg config.ServerConfig, runner *task.Runner, store exceptions.Store, mappings mapping.Store, loader *registry.Loader, registryPath string) *Server {
	handlers := NewHandlers(runner, store, mappings, loader, registryPath)
	router := SetupRoutes(handlers)

	return &Server{
		config:   cfg,
		handlers: handlers,
		router:   router,
	}
}

// Start begins listening. Blocks until the listener fails or Stop runs.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.config.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.Info("api server listening", "addr", s.config.Addr())
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.router }
