package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/seorin-dev/syruplink-core/internal/connection"
	"github.com/seorin-dev/syruplink-core/internal/dispenser"
)

// deviceView merges a catalog entry with live connection state for
// API responses.
type deviceView struct {
	Identity string           `json:"identity"`
	Address  string           `json:"address"`
	Nickname string           `json:"nickname"`
	DrugCode string           `json:"drug_code"`
	Status   dispenser.Status `json:"status"`
	LastSeen *time.Time       `json:"last_seen,omitempty"`
}

// saveDeviceRequest is the body for PUT /devices/{identity}.
type saveDeviceRequest struct {
	Address  string `json:"address"`
	Nickname string `json:"nickname"`
	DrugCode string `json:"drug_code"`
}

// handleListDevices returns every catalog entry overlaid with its live
// connection state. Devices without an open connection report as
// disconnected.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	entries := s.catalog.List()

	views := make([]deviceView, 0, len(entries))
	for _, entry := range entries {
		view := deviceView{
			Identity: entry.Identity,
			Address:  entry.Address,
			Nickname: entry.Nickname,
			DrugCode: entry.DrugCode,
			Status:   dispenser.StatusDisconnected,
		}
		if live, ok := s.manager.Lookup(entry.Identity); ok {
			view.Address = live.Address
			view.Status = live.Status
			seen := live.LastSeen
			view.LastSeen = &seen
		}
		views = append(views, view)
	}

	writeJSON(w, http.StatusOK, map[string]any{"devices": views, "count": len(views)})
}

// handleSaveDevice creates or updates a catalog entry.
func (s *Server) handleSaveDevice(w http.ResponseWriter, r *http.Request) {
	identity := dispenser.NormalizeIdentity(chi.URLParam(r, "identity"))

	var body saveDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	entry := dispenser.Entry{
		Identity: identity,
		Address:  body.Address,
		Nickname: body.Nickname,
		DrugCode: body.DrugCode,
	}

	if err := s.manager.Save(entry); err != nil {
		if errors.Is(err, dispenser.ErrInvalidIdentity) ||
			errors.Is(err, dispenser.ErrAddressRequired) ||
			errors.Is(err, dispenser.ErrNicknameRequired) ||
			errors.Is(err, dispenser.ErrDrugCodeRequired) {
			writeBadRequest(w, err.Error())
			return
		}
		writeInternalError(w, "failed to save device")
		return
	}

	writeJSON(w, http.StatusOK, entryView(s, entry))
}

// handleDeleteDevice removes a catalog entry. Connected devices must be
// disconnected first.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	identity := dispenser.NormalizeIdentity(chi.URLParam(r, "identity"))

	if err := s.manager.Delete(identity); err != nil {
		switch {
		case errors.Is(err, connection.ErrDeviceConnected):
			writeConflict(w, "disconnect the device before deleting it")
		case errors.Is(err, dispenser.ErrNotFound):
			writeNotFound(w, "device not found")
		default:
			writeInternalError(w, "failed to delete device")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"deleted": identity})
}

// handleConnect opens a connection to a catalog device. The stored
// address is tried first; if the device moved, one fallback scan of the
// active prefix locates it.
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	identity := dispenser.NormalizeIdentity(chi.URLParam(r, "identity"))

	if err := s.manager.Connect(r.Context(), identity, false); err != nil {
		switch {
		case errors.Is(err, connection.ErrUnknownDevice):
			writeNotFound(w, "device not in catalog")
		case errors.Is(err, connection.ErrAlreadyConnected):
			writeConflict(w, "device already connected")
		case errors.Is(err, connection.ErrDeviceNotFound):
			writeError(w, http.StatusServiceUnavailable, ErrCodeUnreachable, "device not found on network")
		case errors.Is(err, connection.ErrNoPrefix):
			writeConflict(w, "no active scan prefix; select one first")
		default:
			writeInternalError(w, "failed to connect device")
		}
		return
	}

	live, _ := s.manager.Lookup(identity)
	writeJSON(w, http.StatusOK, live)
}

// handleDisconnect closes a device's connection. The device will not be
// auto-reconnected until the next restart or a manual connect.
func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	identity := dispenser.NormalizeIdentity(chi.URLParam(r, "identity"))

	if err := s.manager.Disconnect(identity); err != nil {
		if errors.Is(err, connection.ErrNotConnected) {
			writeConflict(w, "device not connected")
			return
		}
		writeInternalError(w, "failed to disconnect device")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"disconnected": identity})
}

// handleDeviceHistory returns recent dispense line outcomes for one device.
func (s *Server) handleDeviceHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeInternal, "dispense history is not enabled")
		return
	}

	identity := dispenser.NormalizeIdentity(chi.URLParam(r, "identity"))
	limit := parseLimit(r.URL.Query().Get("limit"), 50)

	lines, err := s.history.DeviceLines(r.Context(), identity, limit)
	if err != nil {
		writeInternalError(w, "failed to query device history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"identity": identity, "lines": lines, "count": len(lines)})
}

// entryView builds the response view for a freshly saved entry.
func entryView(s *Server, entry dispenser.Entry) deviceView {
	view := deviceView{
		Identity: entry.Identity,
		Address:  entry.Address,
		Nickname: entry.Nickname,
		DrugCode: entry.DrugCode,
		Status:   dispenser.StatusDisconnected,
	}
	if live, ok := s.manager.Lookup(entry.Identity); ok {
		view.Address = live.Address
		view.Status = live.Status
		seen := live.LastSeen
		view.LastSeen = &seen
	}
	return view
}

// parseLimit parses a limit query parameter, falling back to def for
// missing or invalid values.
func parseLimit(raw string, def int) int {
	if raw == "" {
		return def
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return def
	}
	return limit
}
