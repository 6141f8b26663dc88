// Package server hosts the MCP streamable-HTTP endpoint together with the
// liveness and version routes.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/bobmcallan/metabase-mcp/internal/common"
	"github.com/bobmcallan/metabase-mcp/internal/config"
)

// Server manages the HTTP server and routes.
type Server struct {
	config *config.Config
	logger *common.Logger
	server *http.Server
}

// New creates a new HTTP server hosting the given MCP handler at /mcp.
func New(cfg *config.Config, logger *common.Logger, mcpHandler http.Handler) *Server {
	s := &Server{
		config: cfg,
		logger: logger,
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.setupRoutes(mcpHandler),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 300 * time.Second, // 5 min: card executions and ad-hoc queries can take minutes
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().
		Str("address", s.server.Addr).
		Str("url", fmt.Sprintf("http://%s", s.server.Addr)).
		Msg("HTTP server starting")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info().Msg("HTTP server stopped")
	return nil
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}
