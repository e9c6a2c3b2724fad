package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
//
// Device URLs contain '/' and '#', so single-device reads take the URL as a
// query parameter rather than a path segment. Execution IDs are opaque
// hub-issued tokens and are safe as path segments.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/stats", s.handleStats)

		// Device snapshot store
		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)
			r.Get("/find", s.handleGetDevice)
			r.Post("/refresh", s.handleRefresh)
		})

		// Command execution
		r.Route("/exec", func(r chi.Router) {
			r.Post("/", s.handleExecute)
			r.Delete("/{execID}", s.handleCancel)
		})

		// Entity registrations
		r.Route("/entities", func(r chi.Router) {
			r.Get("/", s.handleListEntities)
			r.Put("/", s.handleRegisterEntity)
			r.Delete("/", s.handleDeregisterEntity)
		})

		// WebSocket event stream
		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}

// handleStats returns coordinator statistics.
func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.coord.GetStats())
}
