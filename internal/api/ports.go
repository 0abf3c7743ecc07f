package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/harbor-data/portcall.report/internal/db"
	"github.com/harbor-data/portcall.report/internal/httputil"
	"github.com/harbor-data/portcall.report/internal/units"
)

// maxCallsPerQuery is the maximum number of calls returned by list
// queries. This prevents excessive response sizes for busy ports; clients
// can narrow by vessel for older history.
const maxCallsPerQuery = 1000

// PortAPI is the wire representation of a port. The geofence radius is
// stored in kilometers and additionally rendered in the server's
// configured display unit.
type PortAPI struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Country       *string `json:"country,omitempty"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	RadiusKm      float64 `json:"radius_km"`
	DisplayRadius float64 `json:"display_radius"`
	DisplayUnit   string  `json:"display_unit"`
}

func (s *Server) portToAPI(p db.Port) PortAPI {
	return PortAPI{
		ID:            p.ID,
		Name:          p.Name,
		Country:       p.Country,
		Latitude:      p.Latitude,
		Longitude:     p.Longitude,
		RadiusKm:      p.RadiusKm,
		DisplayRadius: units.ConvertDistance(p.RadiusKm, s.units),
		DisplayUnit:   s.units,
	}
}

// handlePorts handles list and create operations.
func (s *Server) handlePorts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListPorts(w, r)
	case http.MethodPost:
		s.handleCreatePort(w, r)
	default:
		httputil.MethodNotAllowed(w)
	}
}

func (s *Server) handleListPorts(w http.ResponseWriter, r *http.Request) {
	ports, err := s.db.GetAllPorts()
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to list ports: %v", err))
		return
	}

	apiPorts := make([]PortAPI, len(ports))
	for i, p := range ports {
		apiPorts[i] = s.portToAPI(p)
	}

	httputil.WriteJSONOK(w, map[string]interface{}{
		"ports": apiPorts,
		"count": len(apiPorts),
	})
}

func (s *Server) handleCreatePort(w http.ResponseWriter, r *http.Request) {
	var port db.Port
	if err := json.NewDecoder(r.Body).Decode(&port); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	if err := s.db.CreatePort(&port); err != nil {
		// Validation failures come back as plain errors; anything the
		// caller can fix is a 400.
		httputil.BadRequest(w, fmt.Sprintf("failed to create port: %v", err))
		return
	}

	httputil.Created(w, s.portToAPI(port))
}

// handlePortByID handles get, update, and delete for a specific port,
// plus the /metrics and /calls subresources.
func (s *Server) handlePortByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/ports/")
	portID, sub, _ := strings.Cut(strings.TrimSpace(path), "/")

	if portID == "" {
		httputil.BadRequest(w, "port id is required")
		return
	}

	switch sub {
	case "metrics":
		s.handlePortMetrics(w, r, portID)
		return
	case "calls":
		s.handlePortCalls(w, r, portID)
		return
	case "":
	default:
		httputil.NotFound(w, fmt.Sprintf("unknown port resource %q", sub))
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleGetPort(w, r, portID)
	case http.MethodPut:
		s.handleUpdatePort(w, r, portID)
	case http.MethodDelete:
		s.handleDeletePort(w, r, portID)
	default:
		httputil.MethodNotAllowed(w)
	}
}

func (s *Server) handleGetPort(w http.ResponseWriter, r *http.Request, portID string) {
	port, err := s.db.GetPort(portID)
	if errors.Is(err, db.ErrNotFound) {
		httputil.NotFound(w, "port not found")
		return
	}
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to get port: %v", err))
		return
	}

	httputil.WriteJSONOK(w, s.portToAPI(*port))
}

func (s *Server) handleUpdatePort(w http.ResponseWriter, r *http.Request, portID string) {
	var port db.Port
	if err := json.NewDecoder(r.Body).Decode(&port); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	port.ID = portID

	err := s.db.UpdatePort(&port)
	if errors.Is(err, db.ErrNotFound) {
		httputil.NotFound(w, "port not found")
		return
	}
	if err != nil {
		httputil.BadRequest(w, fmt.Sprintf("failed to update port: %v", err))
		return
	}

	s.handleGetPort(w, r, portID)
}

func (s *Server) handleDeletePort(w http.ResponseWriter, r *http.Request, portID string) {
	err := s.db.DeletePort(portID)
	if errors.Is(err, db.ErrNotFound) {
		httputil.NotFound(w, "port not found")
		return
	}
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to delete port: %v", err))
		return
	}

	httputil.WriteJSONOK(w, map[string]interface{}{
		"status":  "deleted",
		"port_id": portID,
	})
}

// handlePortMetrics serves the rolling-window KPI snapshot for one port.
// The window defaults to the server's configured day count and can be
// overridden with ?days=N.
func (s *Server) handlePortMetrics(w http.ResponseWriter, r *http.Request, portID string) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	window := time.Duration(s.metricsDays) * 24 * time.Hour
	if d := r.URL.Query().Get("days"); d != "" {
		parsedDays, err := strconv.Atoi(d)
		if err != nil || parsedDays < 1 {
			httputil.BadRequest(w, "invalid 'days' parameter")
			return
		}
		window = time.Duration(parsedDays) * 24 * time.Hour
	}

	metrics, err := s.db.PortMetrics(r.Context(), portID, time.Now().UTC(), window)
	if errors.Is(err, db.ErrNotFound) {
		httputil.NotFound(w, "port not found")
		return
	}
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to compute metrics: %v", err))
		return
	}

	httputil.WriteJSONOK(w, metrics)
}

func (s *Server) handlePortCalls(w http.ResponseWriter, r *http.Request, portID string) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	if _, err := s.db.GetPort(portID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			httputil.NotFound(w, "port not found")
			return
		}
		httputil.InternalServerError(w, fmt.Sprintf("failed to get port: %v", err))
		return
	}

	limit := maxCallsPerQuery
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 || parsed > maxCallsPerQuery {
			httputil.BadRequest(w, "invalid 'limit' parameter")
			return
		}
		limit = parsed
	}

	calls, err := s.db.CallsForPort(r.Context(), portID, limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to list calls: %v", err))
		return
	}

	httputil.WriteJSONOK(w, map[string]interface{}{
		"calls": calls,
		"count": len(calls),
	})
}
