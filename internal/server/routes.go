package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/bobmcallan/metabase-mcp/internal/config"
)

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes(mcpHandler http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(s.correlationIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.maxBodySizeMiddleware(1 << 20)) // 1MB limit
	r.Use(s.recoveryMiddleware)

	// MCP endpoint (JSON-RPC over HTTP). The streamable transport also
	// serves GET for event streams and DELETE for session teardown.
	r.Handle("/mcp", mcpHandler)

	r.Get("/ping", s.handlePing)
	r.Get("/api/version", s.handleVersion)

	r.NotFound(s.handleNotFound)

	return r
}

// handlePing answers liveness probes.
func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleVersion reports the build information baked in at link time.
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, config.GetVersionInfo())
}

// handleNotFound returns a JSON 404 for unmatched routes.
func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	w.Write([]byte(`{"error":"Not Found","message":"The requested endpoint does not exist"}`))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
