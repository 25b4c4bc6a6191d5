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

	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/metrics", s.handleMetrics)
			r.Get("/discovery", s.handleDiscovery)

			r.Route("/appliances", func(r chi.Router) {
				r.Get("/", s.handleListAppliances)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetAppliance)
					r.Get("/entities", s.handleListEntities)
					r.Get("/entities/{key}", s.handleGetEntity)
					r.Get("/entities/{key}/history", s.handleGetEntityHistory)
					r.Post("/services/{service}", s.handleCallService)
				})
			})

			r.Get("/ws", s.handleWebSocket)
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	bridges := s.appliances.Bridges()
	connected := 0
	for _, b := range bridges {
		if b.Connected() {
			connected++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"version":    s.version,
		"appliances": len(bridges),
		"connected":  connected,
	})
}
