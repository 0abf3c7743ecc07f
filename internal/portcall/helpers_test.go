package portcall

import (
	"time"

	"github.com/harbor-data/portcall.report/internal/geo"
)

func coord(lat, lon float64) geo.Coordinate {
	return geo.Coordinate{Latitude: lat, Longitude: lon}
}

func sample(vesselID string, lat, lon float64, ts time.Time) PositionSample {
	return PositionSample{
		VesselID:   vesselID,
		Position:   coord(lat, lon),
		RecordedAt: ts,
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}
