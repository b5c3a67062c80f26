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
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check
		r.Get("/health", s.handleHealth)

		// Everything touching the commissioning service is serialised.
		r.Group(func(r chi.Router) {
			r.Use(s.serviceLockMiddleware)

			// Panel endpoints
			r.Route("/panels", func(r chi.Router) {
				r.Get("/", s.handleListPanels)
				r.Post("/initialize", s.handleInitializePanels)
				r.Get("/{id}/validation", s.handleValidatePanel)
			})

			// Assignment endpoints
			r.Route("/assignments", func(r chi.Router) {
				r.Post("/auto", s.handleAutoAssign)
				r.Post("/balance", s.handleBalance)
			})

			// Circuit reporting
			r.Get("/circuits/utilization", s.handleCircuitUtilization)
			r.Get("/statistics", s.handleStatistics)

			// Snapshot exchange
			r.Route("/snapshot", func(r chi.Router) {
				r.Get("/", s.handleExportSnapshot)
				r.Post("/", s.handleImportSnapshot)
			})

			// Single-device operations
			r.Route("/devices/{id}", func(r chi.Router) {
				r.Post("/assign", s.handleAssignDevice)
				r.Put("/address", s.handleUpdateAddress)
				r.Delete("/", s.handleRemoveDevice)
			})

			// Transaction control
			r.Route("/transaction", func(r chi.Router) {
				r.Post("/begin", s.handleTransactionBegin)
				r.Post("/commit", s.handleTransactionCommit)
				r.Post("/rollback", s.handleTransactionRollback)
				r.Get("/history", s.handleTransactionHistory)
			})

			r.Post("/reload", s.handleReload)
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
