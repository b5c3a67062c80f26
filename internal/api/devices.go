package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/loop-logic-core/internal/assignment"
	"github.com/nerrad567/loop-logic-core/internal/circuit"
)

// assignDeviceRequest is the body of POST /devices/{id}/assign.
type assignDeviceRequest struct {
	CircuitID string                   `json:"circuit_id"`
	Options   assignment.AssignOptions `json:"options"`
}

// handleAssignDevice places a device on a circuit.
func (s *Server) handleAssignDevice(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "id")

	var req assignDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	if req.CircuitID == "" {
		writeBadRequest(w, "circuit_id is required")
		return
	}

	addr, err := s.service.AssignDevice(deviceID, req.CircuitID, req.Options)
	if err != nil {
		writeAssignmentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": deviceID,
		"circuit":   req.CircuitID,
		"address":   addr,
	})
}

// updateAddressRequest is the body of PUT /devices/{id}/address.
type updateAddressRequest struct {
	Address int `json:"address"`
}

// handleUpdateAddress moves a device to a specific address on its circuit.
func (s *Server) handleUpdateAddress(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "id")

	var req updateAddressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}

	if err := s.service.UpdateDeviceAddress(deviceID, req.Address); err != nil {
		writeAssignmentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": deviceID,
		"address":   req.Address,
	})
}

// handleRemoveDevice releases a device's address and detaches it.
func (s *Server) handleRemoveDevice(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "id")

	if !s.service.RemoveDevice(deviceID) {
		writeNotFound(w, "device not assigned: "+deviceID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": deviceID,
		"removed":   true,
	})
}

// writeAssignmentError maps assignment-layer errors onto HTTP responses.
// Validation failures carry their issues (and suggested alternatives) in
// the response body.
func writeAssignmentError(w http.ResponseWriter, err error) {
	var vErr *assignment.ValidationError
	switch {
	case errors.As(err, &vErr):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"status":  http.StatusUnprocessableEntity,
			"code":    ErrCodeValidation,
			"message": vErr.Error(),
			"issues":  vErr.Issues,
		})
	case errors.Is(err, circuit.ErrDeviceNotFound):
		writeNotFound(w, err.Error())
	case errors.Is(err, circuit.ErrCircuitNotFound):
		writeNotFound(w, err.Error())
	case errors.Is(err, circuit.ErrAddressOccupied):
		writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, assignment.ErrNoFreeAddress):
		writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, assignment.ErrValidationFailed):
		writeError(w, http.StatusUnprocessableEntity, ErrCodeValidation, err.Error())
	default:
		writeInternalError(w, err.Error())
	}
}
