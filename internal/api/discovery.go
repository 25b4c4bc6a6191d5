package api

import (
	"net/http"
)

// handleDiscovery browses the local network and reports every Home Connect
// appliance found, marking the ones already bridged.
func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	if s.scanner == nil {
		writeUnavailable(w, "discovery disabled")
		return
	}

	found := s.scanner.Scan(r.Context())
	out := make([]map[string]any, 0, len(found))
	for _, a := range found {
		_, bridged := s.appliances.Get(a.DeviceID)
		addr, _ := a.Address() //nolint:errcheck // empty address is reported as such
		out = append(out, map[string]any{
			"appliance": a,
			"address":   addr,
			"bridged":   bridged,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"appliances": out,
		"count":      len(out),
	})
}
