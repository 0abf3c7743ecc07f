package portcall

import (
	"time"

	"gonum.org/v1/gonum/stat"
)

// DefaultMetricsWindow is the trailing window over which port KPIs are
// aggregated.
const DefaultMetricsWindow = 7 * 24 * time.Hour

// MetricsSnapshot holds rolling-window KPIs for one port. Snapshots are
// derived on demand and never persisted.
type MetricsSnapshot struct {
	WindowStart   time.Time `json:"window_start"`
	WindowEnd     time.Time `json:"window_end"`
	Arrivals      int       `json:"arrivals"`
	Departures    int       `json:"departures"`
	UniqueVessels int       `json:"unique_vessels"`
	OpenCalls     int       `json:"open_calls"`
	// AvgDwellHours is nil when no call arrived inside the window.
	AvgDwellHours *float64 `json:"avg_dwell_hours,omitempty"`
}

// ComputeMetrics aggregates KPIs for one port's calls over the window
// [now-window, now].
//
// Arrivals, unique vessels and the dwell average share one population:
// calls whose arrival falls inside the window. Departures are counted
// independently (a call that arrived 20 days ago and departed yesterday
// counts as a departure but not an arrival). Open calls are counted
// without any window restriction so a vessel berthed for more than the
// window still shows as present.
func ComputeMetrics(calls []Call, now time.Time, window time.Duration) MetricsSnapshot {
	windowStart := now.Add(-window)
	snapshot := MetricsSnapshot{
		WindowStart: windowStart,
		WindowEnd:   now,
	}

	vessels := make(map[string]struct{})
	var dwells []float64

	for _, call := range calls {
		if call.Open() {
			snapshot.OpenCalls++
		} else if inWindow(*call.DepartedAt, windowStart, now) {
			snapshot.Departures++
		}

		if inWindow(call.ArrivedAt, windowStart, now) {
			snapshot.Arrivals++
			vessels[call.VesselID] = struct{}{}
			dwells = append(dwells, call.DwellHours(now))
		}
	}

	snapshot.UniqueVessels = len(vessels)
	if len(dwells) > 0 {
		avg := stat.Mean(dwells, nil)
		snapshot.AvgDwellHours = &avg
	}

	return snapshot
}

func inWindow(t, start, end time.Time) bool {
	return !t.Before(start) && !t.After(end)
}
