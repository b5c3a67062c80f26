package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/loop-logic-core/internal/assignment"
	"github.com/nerrad567/loop-logic-core/internal/audit"
	"github.com/nerrad567/loop-logic-core/internal/circuit"
	"github.com/nerrad567/loop-logic-core/internal/commissioning"
	"github.com/nerrad567/loop-logic-core/internal/session"
)

// handleListPanels returns the known panel identifiers.
func (s *Server) handleListPanels(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"panels": s.service.Panels(),
	})
}

// handleInitializePanels rebuilds the model from a flat device list.
func (s *Server) handleInitializePanels(w http.ResponseWriter, r *http.Request) {
	var devices []commissioning.DeviceSnapshot
	if err := json.NewDecoder(r.Body).Decode(&devices); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	if len(devices) == 0 {
		writeBadRequest(w, "device list is empty")
		return
	}

	result, err := s.service.InitializePanels(r.Context(), devices)
	if err != nil {
		writeInternalError(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleValidatePanel runs full validation over one panel.
func (s *Server) handleValidatePanel(w http.ResponseWriter, r *http.Request) {
	panelID := chi.URLParam(r, "id")

	result, err := s.service.ValidatePanel(panelID)
	if err != nil {
		if errors.Is(err, circuit.ErrPanelNotFound) {
			writeNotFound(w, "panel not found: "+panelID)
			return
		}
		writeInternalError(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleAutoAssign runs batch auto-assignment over every circuit. The body
// is optional; when present it overrides the configured defaults.
func (s *Server) handleAutoAssign(w http.ResponseWriter, r *http.Request) {
	var opts *assignment.AutoAssignOptions
	if r.ContentLength != 0 {
		opts = &assignment.AutoAssignOptions{}
		if err := json.NewDecoder(r.Body).Decode(opts); err != nil {
			writeBadRequest(w, "invalid request body: "+err.Error())
			return
		}
		if opts.Strategy != "" {
			if _, err := assignment.ParseStrategy(string(opts.Strategy)); err != nil {
				writeBadRequest(w, err.Error())
				return
			}
		}
	}

	result, err := s.service.AutoAssignAll(r.Context(), opts)
	if err != nil {
		writeInternalError(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleBalance runs one balancing pass across all circuits.
func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	result := s.service.Balance(r.Context())
	writeJSON(w, http.StatusOK, result)
}

// handleCircuitUtilization reports the live load of every circuit.
func (s *Server) handleCircuitUtilization(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"circuits": s.service.CircuitUtilization(),
	})
}

// handleStatistics returns the aggregate commissioning statistics.
func (s *Server) handleStatistics(w http.ResponseWriter, _ *http.Request) {
	stats := s.service.GetStatistics()
	if stats.Error != "" {
		writeJSON(w, http.StatusInternalServerError, stats)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleTransactionBegin opens a fresh persistence batch.
func (s *Server) handleTransactionBegin(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"batch_id": s.service.Begin(),
	})
}

// handleTransactionCommit writes the pending batch to the store.
func (s *Server) handleTransactionCommit(w http.ResponseWriter, r *http.Request) {
	count, err := s.service.Commit(r.Context())
	if err != nil {
		if errors.Is(err, session.ErrNilStore) {
			writeError(w, http.StatusConflict, ErrCodeConflict, "no durable store configured")
			return
		}
		writeInternalError(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"applied": count,
	})
}

// handleTransactionRollback discards the pending batch.
func (s *Server) handleTransactionRollback(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"dropped": s.service.Rollback(),
	})
}

// handleTransactionHistory lists committed batches, most recent first.
// Supports ?limit= and ?offset= for pagination.
func (s *Server) handleTransactionHistory(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeError(w, http.StatusConflict, ErrCodeConflict, "no durable store configured")
		return
	}

	filter := audit.Filter{}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeBadRequest(w, "limit must be an integer")
			return
		}
		filter.Limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeBadRequest(w, "offset must be an integer")
			return
		}
		filter.Offset = n
	}

	result, err := s.audit.List(r.Context(), filter)
	if err != nil {
		writeInternalError(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleReload rebuilds the model from the durable store.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Reload(r.Context()); err != nil {
		if errors.Is(err, session.ErrNilStore) {
			writeError(w, http.StatusConflict, ErrCodeConflict, "no durable store configured")
			return
		}
		writeInternalError(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "reloaded",
	})
}
