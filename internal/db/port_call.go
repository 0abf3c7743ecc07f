package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/harbor-data/portcall.report/internal/portcall"
)

// openCallTx inserts a new open call inside the worker's transaction.
// The unique partial index on (vessel_id) WHERE departure IS NULL makes
// a duplicate open a constraint error rather than silent data damage.
func openCallTx(ctx context.Context, tx *sql.Tx, call portcall.Call) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO port_calls (call_id, vessel_id, port_id, arrival_unix)
		VALUES (?, ?, ?, ?)
	`,
		call.ID,
		call.VesselID,
		call.PortID,
		timeToUnix(call.ArrivedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to open call: %w", err)
	}
	return nil
}

// closeCallTx sets the departure timestamp on the referenced call inside
// the worker's transaction.
func closeCallTx(ctx context.Context, tx *sql.Tx, callID string, departedAt time.Time) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE port_calls
		SET departure_unix = ?, updated_at = UNIXEPOCH('subsec')
		WHERE call_id = ? AND departure_unix IS NULL
	`,
		timeToUnix(departedAt),
		callID,
	)
	if err != nil {
		return fmt.Errorf("failed to close call: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("open call %q: %w", callID, ErrNotFound)
	}

	return nil
}

// GetCall retrieves a single call by ID.
func (db *DB) GetCall(ctx context.Context, callID string) (*portcall.Call, error) {
	row := db.QueryRowContext(ctx, `
		SELECT call_id, vessel_id, port_id, arrival_unix, departure_unix
		FROM port_calls
		WHERE call_id = ?
	`, callID)

	call, err := scanCall(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("call %q: %w", callID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get call: %w", err)
	}
	return &call, nil
}

// CallsForPort returns a port's calls newest-arrival first, optionally
// limited.
func (db *DB) CallsForPort(ctx context.Context, portID string, limit int) ([]portcall.Call, error) {
	query := `
		SELECT call_id, vessel_id, port_id, arrival_unix, departure_unix
		FROM port_calls
		WHERE port_id = ?
		ORDER BY arrival_unix DESC
	`
	args := []interface{}{portID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	return db.queryCalls(ctx, query, args...)
}

// CallsForVessel returns a vessel's calls newest-arrival first.
func (db *DB) CallsForVessel(ctx context.Context, vesselID string) ([]portcall.Call, error) {
	return db.queryCalls(ctx, `
		SELECT call_id, vessel_id, port_id, arrival_unix, departure_unix
		FROM port_calls
		WHERE vessel_id = ?
		ORDER BY arrival_unix DESC
	`, vesselID)
}

// OpenCalls returns every call without a departure, across all ports.
func (db *DB) OpenCalls(ctx context.Context) ([]portcall.Call, error) {
	return db.queryCalls(ctx, `
		SELECT call_id, vessel_id, port_id, arrival_unix, departure_unix
		FROM port_calls
		WHERE departure_unix IS NULL
		ORDER BY arrival_unix ASC
	`)
}

// callsForMetrics loads the calls the aggregator needs for one port and
// window anchor: anything still open (regardless of age), plus anything
// that arrived or departed since the window start. ComputeMetrics then
// applies the exact window semantics.
func (db *DB) callsForMetrics(ctx context.Context, portID string, windowStart time.Time) ([]portcall.Call, error) {
	return db.queryCalls(ctx, `
		SELECT call_id, vessel_id, port_id, arrival_unix, departure_unix
		FROM port_calls
		WHERE port_id = ?
		  AND (departure_unix IS NULL OR departure_unix >= ? OR arrival_unix >= ?)
	`, portID, timeToUnix(windowStart), timeToUnix(windowStart))
}

func (db *DB) queryCalls(ctx context.Context, query string, args ...interface{}) ([]portcall.Call, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query calls: %w", err)
	}
	defer rows.Close()

	var calls []portcall.Call
	for rows.Next() {
		call, err := scanCall(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan call: %w", err)
		}
		calls = append(calls, call)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating calls: %w", err)
	}

	return calls, nil
}

func scanCall(scan func(dest ...interface{}) error) (portcall.Call, error) {
	var call portcall.Call
	var arrivalUnix float64
	var departureUnix sql.NullFloat64

	if err := scan(&call.ID, &call.VesselID, &call.PortID, &arrivalUnix, &departureUnix); err != nil {
		return call, err
	}

	call.ArrivedAt = unixToTime(arrivalUnix)
	if departureUnix.Valid {
		departed := unixToTime(departureUnix.Float64)
		call.DepartedAt = &departed
	}

	return call, nil
}

// PortMetrics computes the rolling-window KPI snapshot for one port.
func (db *DB) PortMetrics(ctx context.Context, portID string, now time.Time, window time.Duration) (portcall.MetricsSnapshot, error) {
	if _, err := db.GetPort(portID); err != nil {
		return portcall.MetricsSnapshot{}, err
	}

	calls, err := db.callsForMetrics(ctx, portID, now.Add(-window))
	if err != nil {
		return portcall.MetricsSnapshot{}, err
	}

	return portcall.ComputeMetrics(calls, now, window), nil
}
