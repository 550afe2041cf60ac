package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Unknown routes get the structured envelope, not chi's plain text
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "resource not found")
	})

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Login never carries a token
		r.Post("/login", s.handleLogin)

		// Anonymous callers allowed; a presented token must still be valid
		r.Group(func(r chi.Router) {
			r.Use(s.optionalAuth)

			r.Post("/register", s.handleRegister)
			r.Post("/join_parking", s.handleJoinParking)
		})

		// Identified callers only
		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)

			r.Route("/parkings", func(r chi.Router) {
				r.Get("/", s.handleListParkings)
				r.Post("/", s.handleCreateParking)
				r.Get("/{id}/password", s.handleReadParkingSecret)
			})
		})
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
