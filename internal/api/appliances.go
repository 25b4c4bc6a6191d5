package api

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/hcbridge/internal/bridge"
	"github.com/nerrad567/hcbridge/internal/entity"
)

// maxPathParamLen limits path parameter length.
const maxPathParamLen = 100

// ApplianceResponse describes one bridged appliance.
type ApplianceResponse struct {
	DeviceID        string            `json:"device_id"`
	Device          bridge.DeviceInfo `json:"device"`
	Connected       bool              `json:"connected"`
	ConnectionState string            `json:"connection_state"`
	SelectedProgram string            `json:"selected_program,omitempty"`
	Entities        int               `json:"entities"`
}

// EntityResponse describes one projected entity and its current state.
type EntityResponse struct {
	entity.State
	Name        string `json:"name"`
	DeviceClass string `json:"device_class,omitempty"`
	Unit        string `json:"unit,omitempty"`
	Icon        string `json:"icon,omitempty"`
	Category    string `json:"entity_category,omitempty"`
}

func applianceResponse(b *bridge.Bridge) ApplianceResponse {
	resp := ApplianceResponse{
		DeviceID:        b.DeviceID(),
		Device:          b.DeviceInfo(),
		Connected:       b.Connected(),
		ConnectionState: b.ConnectionState().String(),
		Entities:        len(b.Entities()),
	}
	if p := b.SelectedProgram(); p != nil {
		resp.SelectedProgram = p.Name()
	}
	return resp
}

func entityResponse(p *entity.Projected) EntityResponse {
	desc := p.Description()
	return EntityResponse{
		State:       p.Snapshot(),
		Name:        desc.Name,
		DeviceClass: desc.DeviceClass,
		Unit:        desc.Unit,
		Icon:        desc.Icon,
		Category:    desc.Category,
	}
}

// handleListAppliances returns every bridged appliance.
func (s *Server) handleListAppliances(w http.ResponseWriter, _ *http.Request) {
	bridges := s.appliances.Bridges()
	out := make([]ApplianceResponse, 0, len(bridges))
	for _, b := range bridges {
		out = append(out, applianceResponse(b))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"appliances": out,
		"count":      len(out),
	})
}

// handleGetAppliance returns one appliance.
func (s *Server) handleGetAppliance(w http.ResponseWriter, r *http.Request) {
	b, ok := s.lookupBridge(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, applianceResponse(b))
}

// handleListEntities returns the projected entities of an appliance with
// their current state.
func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	b, ok := s.lookupBridge(w, r)
	if !ok {
		return
	}
	entities := b.Entities()
	out := make([]EntityResponse, 0, len(entities))
	for _, p := range entities {
		out = append(out, entityResponse(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": b.DeviceID(),
		"entities":  out,
		"count":     len(out),
	})
}

// handleGetEntity returns one projected entity.
func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	b, ok := s.lookupBridge(w, r)
	if !ok {
		return
	}
	p, ok := b.Entity(chi.URLParam(r, "key"))
	if !ok {
		writeNotFound(w, "entity not found")
		return
	}
	writeJSON(w, http.StatusOK, entityResponse(p))
}

// handleCallService runs an appliance service. The request body is the
// service payload, for example {"start_in": {"hours": 1}}.
func (s *Server) handleCallService(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "id")
	if deviceID == "" || len(deviceID) > maxPathParamLen {
		writeBadRequest(w, "invalid appliance ID")
		return
	}
	service := chi.URLParam(r, "service")

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		writeBadRequest(w, "failed to read body")
		return
	}

	if err := s.appliances.CallService(r.Context(), deviceID, service, payload); err != nil {
		s.logger.ForAppliance(deviceID).Warn("service call failed",
			"service", service,
			"error", err,
		)
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": deviceID,
		"service":   service,
		"status":    "ok",
	})
}

// lookupBridge resolves the {id} path parameter, writing the error
// response itself when it fails.
func (s *Server) lookupBridge(w http.ResponseWriter, r *http.Request) (*bridge.Bridge, bool) {
	deviceID := chi.URLParam(r, "id")
	if deviceID == "" || len(deviceID) > maxPathParamLen {
		writeBadRequest(w, "invalid appliance ID")
		return nil, false
	}
	b, ok := s.appliances.Get(deviceID)
	if !ok {
		writeNotFound(w, "appliance not found")
		return nil, false
	}
	return b, true
}
