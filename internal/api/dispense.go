package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/seorin-dev/syruplink-core/internal/dispense"
)

// dispenseRequest is the body for POST /dispense.
type dispenseRequest struct {
	PatientID   string          `json:"patient_id"`
	PatientName string          `json:"patient_name"`
	Lines       []dispense.Line `json:"lines"`
}

// handleDispense validates and submits a dispense request. The request
// runs in the background; progress and the final rollup are delivered
// over the WebSocket event stream and recorded in history.
func (s *Server) handleDispense(w http.ResponseWriter, r *http.Request) {
	var body dispenseRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	req, err := dispense.NewRequest(body.PatientID, body.PatientName, body.Lines)
	if err != nil {
		if errors.Is(err, dispense.ErrPatientRequired) ||
			errors.Is(err, dispense.ErrNoLines) ||
			errors.Is(err, dispense.ErrInvalidVolume) {
			writeBadRequest(w, err.Error())
			return
		}
		writeInternalError(w, "failed to build dispense request")
		return
	}

	// Detach from the HTTP request context; the pour outlives it.
	go s.coordinator.Run(context.Background(), req)

	writeJSON(w, http.StatusAccepted, map[string]any{
		"request_id": req.ID,
		"patient_id": req.PatientID,
		"lines":      len(req.Lines),
	})
}

// handleListDispenseRequests returns recent dispense requests, newest first.
func (s *Server) handleListDispenseRequests(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeInternal, "dispense history is not enabled")
		return
	}

	limit := parseLimit(r.URL.Query().Get("limit"), 50)

	requests, err := s.history.Requests(r.Context(), limit)
	if err != nil {
		writeInternalError(w, "failed to query dispense requests")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"requests": requests, "count": len(requests)})
}

// handleDispenseRequestLines returns the per-line outcomes of one request.
func (s *Server) handleDispenseRequestLines(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeInternal, "dispense history is not enabled")
		return
	}

	requestID := chi.URLParam(r, "id")

	lines, err := s.history.Lines(r.Context(), requestID)
	if err != nil {
		writeInternalError(w, "failed to query dispense lines")
		return
	}
	if len(lines) == 0 {
		writeNotFound(w, "dispense request not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"request_id": requestID, "lines": lines, "count": len(lines)})
}
