// Package portcall implements the geofence-crossing detector, the
// per-vessel call state machine, and the rolling port metrics
// aggregator. Every function in this package is pure: persistence and
// transaction discipline live in internal/db, which feeds durable state
// in and writes derived actions out.
package portcall

import (
	"time"

	"github.com/harbor-data/portcall.report/internal/geo"
)

// Geofence is a circular monitored area (a port) described by its center
// and radius. Geofences are immutable reference data owned by the
// storage layer; this package only reads them.
type Geofence struct {
	ID       string
	Center   geo.Coordinate
	RadiusKm float64
}

// Contains reports whether the given coordinate lies inside the geofence.
func (g Geofence) Contains(point geo.Coordinate) bool {
	return geo.WithinRadiusKm(point, g.Center, g.RadiusKm)
}

// PositionSample is a single geolocated report for one vessel. Batches
// handed to the detector must be ordered ascending by RecordedAt; the
// detector does not sort or deduplicate.
type PositionSample struct {
	VesselID   string
	Position   geo.Coordinate
	RecordedAt time.Time
}

// VesselState is the persisted per-vessel cursor driving the state
// machine. Invariant: InPort is true iff both CurrentPortID and
// CurrentCallID are non-empty.
type VesselState struct {
	VesselID       string    `json:"vessel_id"`
	InPort         bool      `json:"in_port"`
	CurrentPortID  string    `json:"current_port_id,omitempty"`
	CurrentCallID  string    `json:"current_call_id,omitempty"`
	LastPositionAt time.Time `json:"last_position_at"`
}

// Call is one continuous inside-geofence dwell for one vessel, bounded
// by an arrival and, once closed, a departure.
type Call struct {
	ID        string    `json:"call_id"`
	VesselID  string    `json:"vessel_id"`
	PortID    string    `json:"port_id"`
	ArrivedAt time.Time `json:"arrived_at"`
	// DepartedAt is nil while the call is still open.
	DepartedAt *time.Time `json:"departed_at,omitempty"`
}

// Open reports whether the call has no departure yet.
func (c Call) Open() bool {
	return c.DepartedAt == nil
}

// DwellHours returns the elapsed hours spent inside the geofence,
// computed to now for calls that are still open.
func (c Call) DwellHours(now time.Time) float64 {
	end := now
	if c.DepartedAt != nil {
		end = *c.DepartedAt
	}
	return end.Sub(c.ArrivedAt).Hours()
}
