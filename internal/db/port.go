package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/harbor-data/portcall.report/internal/geo"
	"github.com/harbor-data/portcall.report/internal/portcall"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Port is the geofence reference data for one monitored port. Ports are
// created and updated by an administrative process; the call engine only
// reads them.
type Port struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Country   *string   `json:"country"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	RadiusKm  float64   `json:"radius_km"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Geofence returns the port as the immutable geofence snapshot the pure
// engine functions consume.
func (p Port) Geofence() portcall.Geofence {
	return portcall.Geofence{
		ID:       p.ID,
		Center:   geo.Coordinate{Latitude: p.Latitude, Longitude: p.Longitude},
		RadiusKm: p.RadiusKm,
	}
}

// CreatePort creates a new port in the database. The port ID is supplied
// by the caller (UN/LOCODE style identifiers, e.g. "NLRTM").
func (db *DB) CreatePort(port *Port) error {
	if port.ID == "" {
		return fmt.Errorf("port id is required")
	}
	if port.RadiusKm <= 0 {
		return fmt.Errorf("port radius must be positive")
	}

	query := `
		INSERT INTO ports (port_id, name, country, latitude, longitude, radius_km)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := db.DB.Exec(
		query,
		port.ID,
		port.Name,
		port.Country,
		port.Latitude,
		port.Longitude,
		port.RadiusKm,
	)
	if err != nil {
		return fmt.Errorf("failed to create port: %w", err)
	}

	return nil
}

// GetPort retrieves a port by ID.
func (db *DB) GetPort(id string) (*Port, error) {
	query := `
		SELECT port_id, name, country, latitude, longitude, radius_km,
			created_at, updated_at
		FROM ports
		WHERE port_id = ?
	`

	var port Port
	var createdAtUnix, updatedAtUnix float64

	err := db.DB.QueryRow(query, id).Scan(
		&port.ID,
		&port.Name,
		&port.Country,
		&port.Latitude,
		&port.Longitude,
		&port.RadiusKm,
		&createdAtUnix,
		&updatedAtUnix,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("port %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get port: %w", err)
	}

	port.CreatedAt = unixToTime(createdAtUnix)
	port.UpdatedAt = unixToTime(updatedAtUnix)

	return &port, nil
}

// GetAllPorts retrieves all ports ordered by name.
func (db *DB) GetAllPorts() ([]Port, error) {
	query := `
		SELECT port_id, name, country, latitude, longitude, radius_km,
			created_at, updated_at
		FROM ports
		ORDER BY name ASC
	`

	rows, err := db.DB.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query ports: %w", err)
	}
	defer rows.Close()

	var ports []Port
	for rows.Next() {
		var port Port
		var createdAtUnix, updatedAtUnix float64

		err := rows.Scan(
			&port.ID,
			&port.Name,
			&port.Country,
			&port.Latitude,
			&port.Longitude,
			&port.RadiusKm,
			&createdAtUnix,
			&updatedAtUnix,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan port: %w", err)
		}

		port.CreatedAt = unixToTime(createdAtUnix)
		port.UpdatedAt = unixToTime(updatedAtUnix)

		ports = append(ports, port)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ports: %w", err)
	}

	return ports, nil
}

// UpdatePort updates an existing port in the database.
func (db *DB) UpdatePort(port *Port) error {
	if port.RadiusKm <= 0 {
		return fmt.Errorf("port radius must be positive")
	}

	query := `
		UPDATE ports SET
			name = ?,
			country = ?,
			latitude = ?,
			longitude = ?,
			radius_km = ?,
			updated_at = UNIXEPOCH('subsec')
		WHERE port_id = ?
	`

	result, err := db.DB.Exec(
		query,
		port.Name,
		port.Country,
		port.Latitude,
		port.Longitude,
		port.RadiusKm,
		port.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update port: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("port %q: %w", port.ID, ErrNotFound)
	}

	return nil
}

// DeletePort deletes a port from the database.
func (db *DB) DeletePort(id string) error {
	result, err := db.DB.Exec(`DELETE FROM ports WHERE port_id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete port: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("port %q: %w", id, ErrNotFound)
	}

	return nil
}
