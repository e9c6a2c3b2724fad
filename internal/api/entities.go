package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/greyfold/tahoma-bridge/internal/device"
)

// entityRequest is the body of PUT /api/v1/entities.
type entityRequest struct {
	StableID    string `json:"stable_id"`
	DisplayName string `json:"display_name"`
}

// handleListEntities returns all registered entity display names.
//
// GET /api/v1/entities
func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	if s.entities == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeInternal, "entity registry not configured")
		return
	}

	records := s.entities.Records()
	writeJSON(w, http.StatusOK, map[string]any{
		"entities": records,
		"count":    len(records),
	})
}

// handleRegisterEntity registers or replaces a display name for a stable
// identifier.
//
// PUT /api/v1/entities
func (s *Server) handleRegisterEntity(w http.ResponseWriter, r *http.Request) {
	if s.entities == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeInternal, "entity registry not configured")
		return
	}

	var req entityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	if req.StableID == "" {
		writeBadRequest(w, "stable_id is required")
		return
	}
	if req.DisplayName == "" {
		writeBadRequest(w, "display_name is required")
		return
	}

	if err := s.entities.Register(r.Context(), req.StableID, req.DisplayName); err != nil {
		s.logger.Error("entity registration failed", "stable_id", req.StableID, "error", err)
		writeInternalError(w, "failed to register entity")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"stable_id":    req.StableID,
		"display_name": req.DisplayName,
	})
}

// handleDeregisterEntity removes a registration. The stable ID is a device
// URL and carries slashes, so it travels as a query parameter.
//
// DELETE /api/v1/entities?stable_id=...
func (s *Server) handleDeregisterEntity(w http.ResponseWriter, r *http.Request) {
	if s.entities == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeInternal, "entity registry not configured")
		return
	}

	stableID := r.URL.Query().Get("stable_id")
	if stableID == "" {
		writeBadRequest(w, "stable_id query parameter is required")
		return
	}

	if err := s.entities.Deregister(r.Context(), stableID); err != nil {
		if errors.Is(err, device.ErrEntityNotFound) {
			writeNotFound(w, "no registration for "+stableID)
			return
		}
		s.logger.Error("entity deregistration failed", "stable_id", stableID, "error", err)
		writeInternalError(w, "failed to deregister entity")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"stable_id": stableID})
}
