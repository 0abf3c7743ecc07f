package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/harbor-data/portcall.report/internal/httputil"
)

func (s *Server) handleWorkerStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	httputil.WriteJSONOK(w, s.controller.GetStatus())
}

func (s *Server) handleWorkerTrigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	s.controller.TriggerManualRun()
	httputil.Accepted(w, map[string]string{"status": "triggered"})
}

func (s *Server) handleWorkerFullHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	s.controller.TriggerFullHistoryRun()
	httputil.Accepted(w, map[string]string{"status": "full-history triggered"})
}

// handleWorkerEnabled reads or flips the worker enabled flag.
func (s *Server) handleWorkerEnabled(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		httputil.WriteJSONOK(w, map[string]bool{"enabled": s.controller.IsEnabled()})
	case http.MethodPost, http.MethodPut:
		var body struct {
			Enabled *bool `json:"enabled"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			httputil.BadRequest(w, fmt.Sprintf("invalid JSON: %v", err))
			return
		}
		if body.Enabled == nil {
			httputil.BadRequest(w, "'enabled' is required")
			return
		}
		s.controller.SetEnabled(*body.Enabled)
		httputil.WriteJSONOK(w, map[string]bool{"enabled": s.controller.IsEnabled()})
	default:
		httputil.MethodNotAllowed(w)
	}
}
