package portcall

import "time"

// Transition is the result of scanning one ordered position batch
// against one geofence. At most one of ArrivalAt/DepartureAt is set: the
// detector reports only the first boundary crossing in the batch.
// CurrentlyInside always reflects the final sample, so when a batch
// oscillates across the boundary more than once the reported crossing
// may not match the final status.
type Transition struct {
	ArrivalAt       *time.Time
	DepartureAt     *time.Time
	CurrentlyInside bool
}

// DetectTransition scans an ordered, non-empty batch of position samples
// for one vessel against a single geofence and reports the first
// inside/outside boundary crossing plus the final inside status.
//
// The batch must be ordered ascending by RecordedAt; that precondition
// is the caller's responsibility and is not validated here. The detector
// is stateless across batches: longitudinal correctness (not re-opening
// a call that was already open before this batch) belongs to
// DeriveTransition, which combines CurrentlyInside with persisted state.
func DetectTransition(samples []PositionSample, fence Geofence) Transition {
	initialInside := fence.Contains(samples[0].Position)
	finalInside := initialInside

	var result Transition
	crossed := false
	for i := 1; i < len(samples); i++ {
		inside := fence.Contains(samples[i].Position)
		finalInside = inside
		if crossed || inside == initialInside {
			continue
		}
		ts := samples[i].RecordedAt
		if inside {
			result.ArrivalAt = &ts
		} else {
			result.DepartureAt = &ts
		}
		crossed = true
	}

	result.CurrentlyInside = finalInside
	return result
}
