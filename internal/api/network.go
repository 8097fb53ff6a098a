package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/seorin-dev/syruplink-core/internal/connection"
	"github.com/seorin-dev/syruplink-core/internal/network"
)

// reachableView is one scan hit in API responses.
type reachableView struct {
	Identity   string `json:"identity"`
	Address    string `json:"address"`
	Registered bool   `json:"registered"`
}

// setPrefixRequest is the body for PUT /network/prefix.
type setPrefixRequest struct {
	Prefix string `json:"prefix"`
}

// handleListPrefixes returns the candidate scan prefixes derived from
// the host's network interfaces, plus the currently active one.
func (s *Server) handleListPrefixes(w http.ResponseWriter, _ *http.Request) {
	prefixes, err := s.resolver.Prefixes()
	if err != nil {
		if errors.Is(err, network.ErrNoPrefixes) {
			writeJSON(w, http.StatusOK, map[string]any{
				"prefixes": []string{},
				"count":    0,
				"active":   s.manager.ActivePrefix(),
			})
			return
		}
		writeInternalError(w, "failed to resolve address prefixes")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"prefixes": prefixes,
		"count":    len(prefixes),
		"active":   s.manager.ActivePrefix(),
	})
}

// handleSetPrefix selects the prefix for subsequent scans.
func (s *Server) handleSetPrefix(w http.ResponseWriter, r *http.Request) {
	var body setPrefixRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.manager.SetPrefix(body.Prefix); err != nil {
		writeBadRequest(w, "invalid address prefix")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"active": body.Prefix})
}

// handleScanNow runs one synchronous scan cycle of the active prefix
// and returns the snapshot. Hits without a catalog entry are also
// broadcast to WebSocket clients as discoveries.
func (s *Server) handleScanNow(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	snapshot, err := s.manager.ScanNow(r.Context())
	if err != nil {
		if errors.Is(err, connection.ErrNoPrefix) {
			writeConflict(w, "no active scan prefix; select one first")
			return
		}
		writeInternalError(w, "scan failed")
		return
	}

	views := make([]reachableView, 0, len(snapshot))
	for _, found := range snapshot {
		_, catErr := s.catalog.Get(found.Identity)
		view := reachableView{
			Identity:   found.Identity,
			Address:    found.Address,
			Registered: catErr == nil,
		}
		if !view.Registered && s.hub != nil {
			s.hub.Broadcast(ChannelDeviceDiscovered, view)
		}
		views = append(views, view)
	}

	if s.influx != nil {
		s.influx.WriteScanStats(s.manager.ActivePrefix(), len(views), time.Since(start))
	}

	writeJSON(w, http.StatusOK, map[string]any{"devices": views, "count": len(views)})
}
