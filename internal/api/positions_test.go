package api

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"
)

const alphaPortJSON = `{"id": "PORTA", "name": "Alpha", "latitude": 0, "longitude": 0, "radius_km": 2}`

// trackBody marshals a track of (lat, lon) pairs into an ingest request,
// spacing samples one minute apart from start.
func trackBody(t *testing.T, vesselID string, start time.Time, coords [][2]float64) string {
	t.Helper()

	reports := make([]PositionIn, len(coords))
	for i, c := range coords {
		reports[i] = PositionIn{
			VesselID:   vesselID,
			Latitude:   c[0],
			Longitude:  c[1],
			RecordedAt: start.Add(time.Duration(i) * time.Minute),
		}
	}
	body, err := json.Marshal(reports)
	if err != nil {
		t.Fatalf("failed to marshal track: %v", err)
	}
	return string(body)
}

func TestIngestPositions(t *testing.T) {
	server, _ := newTestServer(t)

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	body := trackBody(t, "IMO9000001", start, [][2]float64{
		{0.05, 0.05},
		{0.03, 0.03},
	})

	rec := doRequest(t, server, http.MethodPost, "/api/positions", body)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Status   string `json:"status"`
		Ingested int    `json:"ingested"`
	}
	decodeBody(t, rec, &resp)
	if resp.Status != "accepted" || resp.Ingested != 2 {
		t.Errorf("Expected accepted/2, got %+v", resp)
	}

	rec = doRequest(t, server, http.MethodGet, "/api/positions", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var list struct {
		Positions []PositionOut `json:"positions"`
		Count     int           `json:"count"`
	}
	decodeBody(t, rec, &list)
	if list.Count != 1 {
		t.Fatalf("Expected one latest position, got %d", list.Count)
	}
	latest := list.Positions[0]
	if latest.VesselID != "IMO9000001" {
		t.Errorf("Expected vessel IMO9000001, got %q", latest.VesselID)
	}
	// Latest means the newest sample, not the first.
	if latest.Latitude != 0.03 || !latest.RecordedAt.Equal(start.Add(time.Minute)) {
		t.Errorf("Expected newest sample, got %+v", latest)
	}
}

func TestIngestPositions_Validation(t *testing.T) {
	server, _ := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed JSON", `[{`},
		{"empty batch", `[]`},
		{"missing vessel_id", `[{"latitude": 0, "longitude": 0, "recorded_at": "2026-01-01T00:00:00Z"}]`},
		{"missing recorded_at", `[{"vessel_id": "V1", "latitude": 0, "longitude": 0}]`},
		{"latitude out of range", `[{"vessel_id": "V1", "latitude": 91, "longitude": 0, "recorded_at": "2026-01-01T00:00:00Z"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, server, http.MethodPost, "/api/positions", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("Expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestIngestPositions_RejectedBatchInsertsNothing(t *testing.T) {
	server, _ := newTestServer(t)

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	body := trackBody(t, "IMO9000002", start, [][2]float64{
		{0.05, 0.05},
		{91.0, 0.0},
	})

	rec := doRequest(t, server, http.MethodPost, "/api/positions", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, server, http.MethodGet, "/api/positions", "")
	var list struct {
		Count int `json:"count"`
	}
	decodeBody(t, rec, &list)
	if list.Count != 0 {
		t.Errorf("Expected no positions after rejected batch, got %d", list.Count)
	}
}
