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

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			// Network discovery endpoints
			r.Route("/network", func(r chi.Router) {
				r.Get("/prefixes", s.handleListPrefixes)
				r.Put("/prefix", s.handleSetPrefix)
				r.Post("/scan", s.handleScanNow)
			})

			// Device endpoints
			r.Route("/devices", func(r chi.Router) {
				r.Get("/", s.handleListDevices)

				r.Route("/{identity}", func(r chi.Router) {
					r.Put("/", s.handleSaveDevice)
					r.Delete("/", s.handleDeleteDevice)
					r.Post("/connect", s.handleConnect)
					r.Post("/disconnect", s.handleDisconnect)
					r.Get("/history", s.handleDeviceHistory)
				})
			})

			// Dispense endpoints
			r.Route("/dispense", func(r chi.Router) {
				r.Post("/", s.handleDispense)
				r.Get("/requests", s.handleListDispenseRequests)
				r.Get("/requests/{id}/lines", s.handleDispenseRequestLines)
			})

			// WebSocket event stream
			r.Get("/ws", s.handleWebSocket)
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
