package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/harbor-data/portcall.report/internal/geo"
	"github.com/harbor-data/portcall.report/internal/portcall"
)

// CallWorker scans vessels with position samples newer than their state
// cursor and derives call opens/closes from them. Each vessel is
// processed inside its own transaction: load state, compute, persist
// state plus call mutations, commit. Combined with the single worker
// goroutine this gives the single-writer-per-vessel guarantee the state
// machine's read-modify-write cycle requires; a conflicting write aborts
// the transaction and the next run re-reads state rather than reusing a
// stale copy.
type CallWorker struct {
	DB       *DB
	Interval time.Duration // how often the controller runs the worker
}

// DefaultWorkerInterval is how often pending positions are swept when
// no explicit interval is configured.
const DefaultWorkerInterval = time.Minute

func NewCallWorker(db *DB) *CallWorker {
	return &CallWorker{
		DB:       db,
		Interval: DefaultWorkerInterval,
	}
}

// RunOnce processes every vessel with pending positions. Failures are
// per-vessel: one vessel's bad data does not stall the rest of the fleet.
func (w *CallWorker) RunOnce(ctx context.Context) error {
	ports, err := w.DB.GetAllPorts()
	if err != nil {
		return fmt.Errorf("failed to load ports: %w", err)
	}

	vessels, err := w.DB.PendingVessels(ctx)
	if err != nil {
		return err
	}

	var errs []error
	for _, vesselID := range vessels {
		if err := w.ProcessVessel(ctx, vesselID, ports); err != nil {
			log.Printf("Call worker: vessel %s failed: %v", vesselID, err)
			errs = append(errs, fmt.Errorf("vessel %s: %w", vesselID, err))
		}
	}

	return errors.Join(errs...)
}

// RunFullHistory discards all derived state (vessel states and calls)
// and re-derives everything from the stored positions. Because the scan
// resumes after every crossing, replaying the full history yields the
// same calls the incremental runs produced.
func (w *CallWorker) RunFullHistory(ctx context.Context) error {
	tx, err := w.DB.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			log.Printf("warning: failed to rollback transaction: %v", err)
		}
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM port_calls`); err != nil {
		return fmt.Errorf("failed to clear calls: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM vessel_states`); err != nil {
		return fmt.Errorf("failed to clear vessel states: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	log.Printf("Call worker: cleared derived state, re-deriving from full position history")
	return w.RunOnce(ctx)
}

// ProcessVessel runs the read-modify-write cycle for a single vessel:
// load the persisted state, scan the positions past its cursor, derive
// call opens and closes, and persist the next state transactionally with
// the call mutations.
//
// The detector reports at most one crossing per scan, so after recording
// a crossing the cursor moves to the crossing and the scan resumes from
// there. A batch spanning several visits derives each of them in turn.
func (w *CallWorker) ProcessVessel(ctx context.Context, vesselID string, ports []Port) error {
	tx, err := w.DB.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			log.Printf("warning: failed to rollback transaction: %v", err)
		}
	}()

	state, err := getVesselStateTx(ctx, tx, vesselID)
	if err != nil {
		return err
	}

	samples, err := positionsAfterTx(ctx, tx, vesselID, state.LastPositionAt)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		return tx.Commit()
	}

	for len(samples) > 0 {
		next, err := w.step(ctx, tx, state, samples, ports)
		if err != nil {
			return err
		}
		state = next
		samples = samplesAfter(samples, state.LastPositionAt)
	}

	if err := upsertVesselStateTx(ctx, tx, state); err != nil {
		return err
	}

	return tx.Commit()
}

// step derives at most one action from the samples and returns the next
// state. The returned state's cursor always moves past at least the
// first sample, so repeated steps terminate.
func (w *CallWorker) step(ctx context.Context, tx *sql.Tx, state portcall.VesselState, samples []portcall.PositionSample, ports []Port) (portcall.VesselState, error) {
	last := samples[len(samples)-1]

	// An open call pins the vessel to its current geofence: derive a
	// close against that fence before considering any other port. A jump
	// between geofences then decomposes into a close followed by an open
	// on the next step.
	if state.InPort {
		fence, ok := fenceByID(ports, state.CurrentPortID)
		if !ok {
			return state, fmt.Errorf("open call references unknown port %q", state.CurrentPortID)
		}

		var departedAt time.Time
		if !fence.Contains(samples[0].Position) {
			// The batch resumes outside the fence: the departure happened
			// in a reporting gap, so the first sample is the earliest
			// evidence of it, even when the batch re-enters later. The
			// re-entry then opens a fresh call on the next step, the same
			// calls a sample-at-a-time scan derives.
			departedAt = samples[0].RecordedAt
		} else {
			tr := portcall.DetectTransition(samples, fence)
			if tr.DepartureAt == nil {
				// Inside for the whole batch: the cursor advances, nothing
				// else changes
				_, next, err := portcall.DeriveTransition(state, true, fence.ID, "", last.RecordedAt)
				return next, err
			}
			departedAt = *tr.DepartureAt
		}

		action, next, err := portcall.DeriveTransition(state, false, fence.ID, "", departedAt)
		if err != nil {
			return state, err
		}
		if action != portcall.ActionClose {
			return state, fmt.Errorf("expected close leaving %s, got %q", fence.ID, action)
		}
		if err := closeCallTx(ctx, tx, state.CurrentCallID, departedAt); err != nil {
			return state, err
		}
		return next, nil
	}

	// Outside any port. Open a call at the earliest fence entry in the
	// batch, if there is one.
	fence, arrivedAt, ok := earliestEntry(samples, ports)
	if !ok {
		_, next, err := portcall.DeriveTransition(state, false, "", "", last.RecordedAt)
		return next, err
	}

	callID := uuid.New().String()
	action, next, err := portcall.DeriveTransition(state, true, fence.ID, callID, arrivedAt)
	if err != nil {
		return state, err
	}
	if action != portcall.ActionOpen {
		return state, fmt.Errorf("expected open entering %s, got %q", fence.ID, action)
	}
	if err := openCallTx(ctx, tx, portcall.Call{
		ID:        callID,
		VesselID:  state.VesselID,
		PortID:    fence.ID,
		ArrivedAt: arrivedAt,
	}); err != nil {
		return state, err
	}
	return next, nil
}

// earliestEntry tests the batch against every geofence and returns the
// one entered first. A fence already containing the first sample counts
// as entered at that sample. Ties (overlapping fences) go to the fence
// whose center is nearest the entry position.
func earliestEntry(samples []portcall.PositionSample, ports []Port) (portcall.Geofence, time.Time, bool) {
	var best portcall.Geofence
	var bestAt time.Time
	found := false

	for _, p := range ports {
		fence := p.Geofence()

		var at time.Time
		if fence.Contains(samples[0].Position) {
			at = samples[0].RecordedAt
		} else {
			tr := portcall.DetectTransition(samples, fence)
			if tr.ArrivalAt == nil {
				continue
			}
			at = *tr.ArrivalAt
		}

		switch {
		case !found || at.Before(bestAt):
			best, bestAt, found = fence, at, true
		case at.Equal(bestAt):
			pos := sampleAt(samples, at).Position
			if geo.DistanceKm(pos, fence.Center) < geo.DistanceKm(pos, best.Center) {
				best = fence
			}
		}
	}

	return best, bestAt, found
}

// samplesAfter returns the suffix of samples strictly newer than the
// cursor.
func samplesAfter(samples []portcall.PositionSample, cursor time.Time) []portcall.PositionSample {
	for i, s := range samples {
		if s.RecordedAt.After(cursor) {
			return samples[i:]
		}
	}
	return nil
}

func sampleAt(samples []portcall.PositionSample, ts time.Time) portcall.PositionSample {
	for _, s := range samples {
		if s.RecordedAt.Equal(ts) {
			return s
		}
	}
	return samples[len(samples)-1]
}

func fenceByID(ports []Port, portID string) (portcall.Geofence, bool) {
	for _, p := range ports {
		if p.ID == portID {
			return p.Geofence(), true
		}
	}
	return portcall.Geofence{}, false
}
