package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/harbor-data/portcall.report/internal/geo"
	"github.com/harbor-data/portcall.report/internal/httputil"
	"github.com/harbor-data/portcall.report/internal/portcall"
)

// maxPositionsPerBatch bounds a single ingest request.
const maxPositionsPerBatch = 10000

// PositionIn is one position report in an ingest request. Timestamps are
// RFC 3339; batches must be ordered ascending per vessel.
type PositionIn struct {
	VesselID   string    `json:"vessel_id"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	RecordedAt time.Time `json:"recorded_at"`
}

// PositionOut is one latest-position record in a list response.
type PositionOut struct {
	VesselID   string    `json:"vessel_id"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	RecordedAt time.Time `json:"recorded_at"`
}

// handlePositions accepts position report batches and serves the latest
// known position per vessel.
func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleLatestPositions(w, r)
	case http.MethodPost:
		s.handleIngestPositions(w, r)
	default:
		httputil.MethodNotAllowed(w)
	}
}

func (s *Server) handleIngestPositions(w http.ResponseWriter, r *http.Request) {
	var reports []PositionIn
	if err := json.NewDecoder(r.Body).Decode(&reports); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	if len(reports) == 0 {
		httputil.BadRequest(w, "empty position batch")
		return
	}
	if len(reports) > maxPositionsPerBatch {
		httputil.BadRequest(w, fmt.Sprintf("batch exceeds %d positions", maxPositionsPerBatch))
		return
	}

	samples := make([]portcall.PositionSample, len(reports))
	for i, report := range reports {
		if report.VesselID == "" {
			httputil.BadRequest(w, fmt.Sprintf("position %d missing vessel_id", i))
			return
		}
		if report.RecordedAt.IsZero() {
			httputil.BadRequest(w, fmt.Sprintf("position %d missing recorded_at", i))
			return
		}
		samples[i] = portcall.PositionSample{
			VesselID:   report.VesselID,
			Position:   geo.Coordinate{Latitude: report.Latitude, Longitude: report.Longitude},
			RecordedAt: report.RecordedAt.UTC(),
		}
	}

	if err := s.db.InsertPositionBatch(r.Context(), samples); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("failed to ingest positions: %v", err))
		return
	}

	// Nudge the worker so calls derive promptly instead of waiting for
	// the next scheduled sweep.
	s.controller.TriggerManualRun()

	httputil.Accepted(w, map[string]interface{}{
		"status":   "accepted",
		"ingested": len(samples),
	})
}

func (s *Server) handleLatestPositions(w http.ResponseWriter, r *http.Request) {
	latest, err := s.db.LatestPositions(r.Context())
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to list positions: %v", err))
		return
	}

	out := make([]PositionOut, len(latest))
	for i, sample := range latest {
		out[i] = PositionOut{
			VesselID:   sample.VesselID,
			Latitude:   sample.Position.Latitude,
			Longitude:  sample.Position.Longitude,
			RecordedAt: sample.RecordedAt,
		}
	}

	httputil.WriteJSONOK(w, map[string]interface{}{
		"positions": out,
		"count":     len(out),
	})
}
