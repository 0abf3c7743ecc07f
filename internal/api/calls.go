package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/harbor-data/portcall.report/internal/db"
	"github.com/harbor-data/portcall.report/internal/httputil"
)

// handleOpenCalls lists every call currently open across all ports.
func (s *Server) handleOpenCalls(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	calls, err := s.db.OpenCalls(r.Context())
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to list open calls: %v", err))
		return
	}

	httputil.WriteJSONOK(w, map[string]interface{}{
		"calls": calls,
		"count": len(calls),
	})
}

func (s *Server) handleCallByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	callID := strings.TrimSpace(strings.TrimPrefix(r.URL.Path, "/api/calls/"))
	if callID == "" {
		httputil.BadRequest(w, "call id is required")
		return
	}

	call, err := s.db.GetCall(r.Context(), callID)
	if errors.Is(err, db.ErrNotFound) {
		httputil.NotFound(w, "call not found")
		return
	}
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to get call: %v", err))
		return
	}

	httputil.WriteJSONOK(w, call)
}

// handleVessels lists the persisted per-vessel states.
func (s *Server) handleVessels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	states, err := s.db.ListVesselStates(r.Context())
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to list vessel states: %v", err))
		return
	}

	httputil.WriteJSONOK(w, map[string]interface{}{
		"vessels": states,
		"count":   len(states),
	})
}

// handleVesselByID serves the /api/vessels/{id}/state and
// /api/vessels/{id}/calls subresources.
func (s *Server) handleVesselByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/vessels/")
	vesselID, sub, _ := strings.Cut(strings.TrimSpace(path), "/")
	if vesselID == "" {
		httputil.BadRequest(w, "vessel id is required")
		return
	}

	switch sub {
	case "state", "":
		state, err := s.db.GetVesselState(r.Context(), vesselID)
		if err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("failed to get vessel state: %v", err))
			return
		}
		httputil.WriteJSONOK(w, state)
	case "calls":
		calls, err := s.db.CallsForVessel(r.Context(), vesselID)
		if err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("failed to list calls: %v", err))
			return
		}
		httputil.WriteJSONOK(w, map[string]interface{}{
			"calls": calls,
			"count": len(calls),
		})
	default:
		httputil.NotFound(w, fmt.Sprintf("unknown vessel resource %q", sub))
	}
}
