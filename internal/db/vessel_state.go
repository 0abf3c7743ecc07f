package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/harbor-data/portcall.report/internal/portcall"
)

// GetVesselState reads the persisted state cursor for one vessel. A
// vessel that has never been observed gets a zero-valued state (outside
// any port, cursor at the epoch).
func (db *DB) GetVesselState(ctx context.Context, vesselID string) (portcall.VesselState, error) {
	return scanVesselState(db.QueryRowContext(ctx, vesselStateQuery, vesselID), vesselID)
}

// getVesselStateTx is the transactional variant used by the ingest
// worker's read-modify-write cycle.
func getVesselStateTx(ctx context.Context, tx *sql.Tx, vesselID string) (portcall.VesselState, error) {
	return scanVesselState(tx.QueryRowContext(ctx, vesselStateQuery, vesselID), vesselID)
}

const vesselStateQuery = `
	SELECT vessel_id, in_port, current_port_id, current_call_id, last_position_unix
	FROM vessel_states
	WHERE vessel_id = ?
`

func scanVesselState(row *sql.Row, vesselID string) (portcall.VesselState, error) {
	var state portcall.VesselState
	var inPort int
	var portID, callID sql.NullString
	var lastPositionUnix float64

	err := row.Scan(&state.VesselID, &inPort, &portID, &callID, &lastPositionUnix)
	if err == sql.ErrNoRows {
		// first observation of this vessel
		return portcall.VesselState{VesselID: vesselID}, nil
	}
	if err != nil {
		return state, fmt.Errorf("failed to get vessel state: %w", err)
	}

	state.InPort = inPort == 1
	state.CurrentPortID = portID.String
	state.CurrentCallID = callID.String
	state.LastPositionAt = unixToTime(lastPositionUnix)

	if state.InPort && (state.CurrentPortID == "" || state.CurrentCallID == "") {
		return state, fmt.Errorf("vessel state invariant violated for %s: in_port without port/call pointers", vesselID)
	}

	return state, nil
}

// upsertVesselStateTx persists the next state inside the worker's
// transaction, atomically with any call insert/update derived from it.
func upsertVesselStateTx(ctx context.Context, tx *sql.Tx, state portcall.VesselState) error {
	inPort := 0
	if state.InPort {
		inPort = 1
	}

	var portID, callID *string
	if state.CurrentPortID != "" {
		portID = &state.CurrentPortID
	}
	if state.CurrentCallID != "" {
		callID = &state.CurrentCallID
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO vessel_states (vessel_id, in_port, current_port_id, current_call_id, last_position_unix, updated_at)
		VALUES (?, ?, ?, ?, ?, UNIXEPOCH('subsec'))
		ON CONFLICT(vessel_id) DO UPDATE SET
			in_port = excluded.in_port,
			current_port_id = excluded.current_port_id,
			current_call_id = excluded.current_call_id,
			last_position_unix = excluded.last_position_unix,
			updated_at = UNIXEPOCH('subsec')
	`,
		state.VesselID,
		inPort,
		portID,
		callID,
		timeToUnix(state.LastPositionAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert vessel state: %w", err)
	}

	return nil
}

// ListVesselStates returns every persisted vessel state, ordered by
// vessel ID.
func (db *DB) ListVesselStates(ctx context.Context) ([]portcall.VesselState, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT vessel_id, in_port, current_port_id, current_call_id, last_position_unix
		FROM vessel_states
		ORDER BY vessel_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query vessel states: %w", err)
	}
	defer rows.Close()

	var states []portcall.VesselState
	for rows.Next() {
		var state portcall.VesselState
		var inPort int
		var portID, callID sql.NullString
		var lastPositionUnix float64

		if err := rows.Scan(&state.VesselID, &inPort, &portID, &callID, &lastPositionUnix); err != nil {
			return nil, fmt.Errorf("failed to scan vessel state: %w", err)
		}

		state.InPort = inPort == 1
		state.CurrentPortID = portID.String
		state.CurrentCallID = callID.String
		state.LastPositionAt = unixToTime(lastPositionUnix)

		states = append(states, state)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating vessel states: %w", err)
	}

	return states, nil
}
