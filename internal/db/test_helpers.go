package db

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/harbor-data/portcall.report/internal/geo"
	"github.com/harbor-data/portcall.report/internal/portcall"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	fname := t.Name() + ".db"
	_ = os.Remove(fname)

	db, err := NewDB(fname)
	if err != nil {
		t.Fatalf("failed to create test DB: %v", err)
	}
	return db
}

func cleanupTestDB(t *testing.T, db *DB) {
	t.Helper()
	fname := t.Name() + ".db"
	db.Close()
	_ = os.Remove(fname)
	_ = os.Remove(fname + "-shm")
	_ = os.Remove(fname + "-wal")
}

func strPtr(s string) *string {
	return &s
}

// createTestPort creates a port whose geofence is centered at the given
// coordinate. Most tests use a 2 km radius, which makes (0.005, 0.005)
// inside and (0.05, 0.05) comfortably outside a fence at the origin.
func createTestPort(t *testing.T, db *DB, id string, lat, lon, radiusKm float64) *Port {
	t.Helper()

	port := &Port{
		ID:        id,
		Name:      "Test Port " + id,
		Latitude:  lat,
		Longitude: lon,
		RadiusKm:  radiusKm,
	}
	if err := db.CreatePort(port); err != nil {
		t.Fatalf("CreatePort failed: %v", err)
	}
	return port
}

// insertTrack stores a sequence of positions for one vessel, one minute
// apart starting at the given time.
func insertTrack(t *testing.T, db *DB, vesselID string, start time.Time, coords []geo.Coordinate) {
	t.Helper()

	samples := make([]portcall.PositionSample, len(coords))
	for i, c := range coords {
		samples[i] = portcall.PositionSample{
			VesselID:   vesselID,
			Position:   c,
			RecordedAt: start.Add(time.Duration(i) * time.Minute),
		}
	}
	if err := db.InsertPositionBatch(context.Background(), samples); err != nil {
		t.Fatalf("InsertPositionBatch failed: %v", err)
	}
}

// runWorkerOnce runs a single worker sweep and fails the test on error.
func runWorkerOnce(t *testing.T, db *DB) {
	t.Helper()

	worker := NewCallWorker(db)
	if err := worker.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
}
