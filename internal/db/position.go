package db

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/harbor-data/portcall.report/internal/geo"
	"github.com/harbor-data/portcall.report/internal/portcall"
)

// InsertPositionBatch appends an ordered batch of position samples for
// one vessel. The batch is written in a single transaction so a partial
// feed failure never leaves half a batch behind.
func (db *DB) InsertPositionBatch(ctx context.Context, samples []portcall.PositionSample) error {
	if len(samples) == 0 {
		return nil
	}

	tx, err := db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			// ErrTxDone means transaction was already committed/rolled back
			log.Printf("warning: failed to rollback transaction: %v", err)
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO positions (vessel_id, latitude, longitude, recorded_at_unix)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare position insert: %w", err)
	}
	defer stmt.Close()

	for _, s := range samples {
		if s.VesselID == "" {
			return fmt.Errorf("position sample missing vessel id")
		}
		if err := ValidateCoordinate(s.Position); err != nil {
			return fmt.Errorf("position sample for %s: %w", s.VesselID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			s.VesselID,
			s.Position.Latitude,
			s.Position.Longitude,
			timeToUnix(s.RecordedAt),
		); err != nil {
			return fmt.Errorf("failed to insert position: %w", err)
		}
	}

	return tx.Commit()
}

// PendingVessels returns the IDs of vessels that have position samples
// newer than their state cursor (or no state row at all).
func (db *DB) PendingVessels(ctx context.Context) ([]string, error) {
	query := `
		SELECT DISTINCT p.vessel_id
		FROM positions p
		LEFT JOIN vessel_states s ON s.vessel_id = p.vessel_id
		WHERE s.vessel_id IS NULL OR p.recorded_at_unix > s.last_position_unix
		ORDER BY p.vessel_id
	`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending vessels: %w", err)
	}
	defer rows.Close()

	var vessels []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan vessel id: %w", err)
		}
		vessels = append(vessels, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pending vessels: %w", err)
	}

	return vessels, nil
}

// positionsAfterTx reads a vessel's samples strictly newer than the
// cursor, ordered ascending by recording time, inside the caller's
// transaction.
func positionsAfterTx(ctx context.Context, tx *sql.Tx, vesselID string, after time.Time) ([]portcall.PositionSample, error) {
	query := `
		SELECT vessel_id, latitude, longitude, recorded_at_unix
		FROM positions
		WHERE vessel_id = ? AND recorded_at_unix > ?
		ORDER BY recorded_at_unix ASC
	`

	// A zero cursor means the vessel has never been processed; scan from
	// the beginning rather than converting the zero time.
	cursor := 0.0
	if !after.IsZero() {
		cursor = timeToUnix(after)
	}

	rows, err := tx.QueryContext(ctx, query, vesselID, cursor)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	var samples []portcall.PositionSample
	for rows.Next() {
		var s portcall.PositionSample
		var recordedAtUnix float64
		if err := rows.Scan(&s.VesselID, &s.Position.Latitude, &s.Position.Longitude, &recordedAtUnix); err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		s.RecordedAt = unixToTime(recordedAtUnix)
		samples = append(samples, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating positions: %w", err)
	}

	return samples, nil
}

// LatestPositions returns the most recent sample per vessel, newest
// vessels first. Used by the API to show the live picture.
func (db *DB) LatestPositions(ctx context.Context) ([]portcall.PositionSample, error) {
	query := `
		SELECT vessel_id, latitude, longitude, MAX(recorded_at_unix)
		FROM positions
		GROUP BY vessel_id
		ORDER BY MAX(recorded_at_unix) DESC
	`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest positions: %w", err)
	}
	defer rows.Close()

	var samples []portcall.PositionSample
	for rows.Next() {
		var s portcall.PositionSample
		var recordedAtUnix float64
		if err := rows.Scan(&s.VesselID, &s.Position.Latitude, &s.Position.Longitude, &recordedAtUnix); err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		s.RecordedAt = unixToTime(recordedAtUnix)
		samples = append(samples, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating latest positions: %w", err)
	}

	return samples, nil
}

// ValidateCoordinate rejects latitude/longitude values outside the valid
// range before they reach the pure geo functions, where out-of-range
// input is undefined behaviour.
func ValidateCoordinate(c geo.Coordinate) error {
	if c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("latitude %f out of range [-90, 90]", c.Latitude)
	}
	if c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("longitude %f out of range [-180, 180]", c.Longitude)
	}
	return nil
}
