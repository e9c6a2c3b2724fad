package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/greyfold/tahoma-bridge/internal/device"
)

// executeRequest is the body of POST /api/v1/exec.
type executeRequest struct {
	DeviceURL string `json:"device_url"`
	Command   string `json:"command"`
	Args      []any  `json:"args,omitempty"`
}

// handleExecute dispatches a command to a device.
//
// POST /api/v1/exec
//
// Responds 202 with the execution ID on success. A hub rejection is reported
// as 502 dispatch_failed; the caller decides whether that matters.
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	if req.DeviceURL == "" {
		writeBadRequest(w, "device_url is required")
		return
	}
	if req.Command == "" {
		writeBadRequest(w, "command is required")
		return
	}

	facade := device.NewFacade(req.DeviceURL, s.coord, s.resolver())
	facade.SetLogger(s.logger)

	execID, err := facade.ExecuteCommand(r.Context(), req.Command, req.Args...)
	if err != nil {
		if errors.Is(err, device.ErrDispatchFailed) {
			writeError(w, http.StatusBadGateway, ErrCodeDispatchFailed, err.Error())
			return
		}
		// Dispatch went through but the follow-up refresh failed; the
		// execution is live, so report success with a warning.
		s.logger.Warn("post-dispatch refresh failed", "device_url", req.DeviceURL, "error", err)
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"exec_id":    execID,
		"device_url": req.DeviceURL,
		"command":    req.Command,
	})
}

// handleCancel stops a running execution by its hub-issued identifier.
//
// DELETE /api/v1/exec/{execID}
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	execID := chi.URLParam(r, "execID")
	if execID == "" {
		writeBadRequest(w, "execution id is required")
		return
	}

	// The tracking table sharpens the error message but a cancel for an
	// untracked execution is still forwarded; another controller may own it.
	exec, tracked := s.coord.Execution(execID)

	facade := device.NewFacade(exec.DeviceURL, s.coord, s.resolver())
	if err := facade.CancelCommand(r.Context(), execID); err != nil {
		s.logger.Error("cancel failed", "exec_id", execID, "error", err)
		writeError(w, http.StatusBadGateway, ErrCodeHubUnavailable, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"exec_id": execID,
		"tracked": tracked,
	})
}
