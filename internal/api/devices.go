package api

import (
	"errors"
	"net/http"

	"github.com/greyfold/tahoma-bridge/internal/device"
)

// deviceView is the API representation of a device: the raw snapshot plus
// the derived fields clients would otherwise compute themselves.
type deviceView struct {
	device.Snapshot
	Attributes map[string]any      `json:"derived_attributes"`
	Grouping   device.GroupingInfo `json:"grouping"`
	Assumed    bool                `json:"assumed_state"`
}

// buildDeviceView assembles a deviceView through a facade.
func (s *Server) buildDeviceView(snap device.Snapshot) deviceView {
	facade := device.NewFacade(snap.DeviceURL, s.coord, s.resolver())
	return deviceView{
		Snapshot:   snap,
		Attributes: facade.Attributes(),
		Grouping:   facade.GroupingInfo(),
		Assumed:    facade.HasAssumedState(),
	}
}

// handleListDevices returns every device in the snapshot store.
//
// GET /api/v1/devices
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	snaps := s.coord.Snapshots()
	views := make([]deviceView, 0, len(snaps))
	for _, snap := range snaps {
		views = append(views, s.buildDeviceView(snap))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": views,
		"count":   len(views),
	})
}

// handleGetDevice returns a single device by URL.
//
// GET /api/v1/devices/find?device_url=io://...
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	deviceURL := r.URL.Query().Get("device_url")
	if deviceURL == "" {
		writeBadRequest(w, "device_url query parameter is required")
		return
	}

	snap, err := s.coord.Snapshot(deviceURL)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found: "+deviceURL)
			return
		}
		writeInternalError(w, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, s.buildDeviceView(*snap))
}

// handleRefresh forces an immediate snapshot refresh from the hub.
//
// POST /api/v1/devices/refresh
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.coord.ForceRefresh(r.Context()); err != nil {
		s.logger.Error("forced refresh failed", "error", err)
		writeError(w, http.StatusBadGateway, ErrCodeHubUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": s.coord.DeviceCount(),
	})
}
