// Package db is the durable storage layer: SQLite-backed persistence
// for ports (geofence reference data), raw position samples, the
// per-vessel state cursor, and derived port calls, plus the ingest
// worker that turns positions into calls.
package db

import (
	"compress/gzip"
	"database/sql"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/tailscale/tailsql/server/tailsql"
	_ "modernc.org/sqlite"
	"tailscale.com/tsweb"

	"github.com/harbor-data/portcall.report/internal/db/migrations"
)

type DB struct {
	*sql.DB
}

// OpenDB opens the database and applies connection pragmas without
// touching the schema. Use it when migrations are managed explicitly
// (the migrate CLI); NewDB is the everyday constructor.
func OpenDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// WAL keeps the single-writer ingest transaction from blocking the
	// read-only API queries; busy_timeout retries briefly on contention
	// instead of surfacing SQLITE_BUSY to every caller.
	if _, err := sqlDB.Exec(`
		PRAGMA journal_mode = WAL;
		PRAGMA busy_timeout = 5000;
		PRAGMA foreign_keys = ON;
	`); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	return &DB{sqlDB}, nil
}

// NewDB opens the database and brings the schema up to date from the
// embedded migrations.
func NewDB(path string) (*DB, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}

	if err := db.MigrateUp(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

// unixToTime converts a stored unix-seconds float into a UTC time.
func unixToTime(unix float64) time.Time {
	return time.Unix(0, int64(unix*float64(time.Second))).UTC()
}

// timeToUnix converts a time into the unix-seconds float stored in sqlite.
func timeToUnix(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// AttachAdminRoutes mounts the admin debugging routes on the given mux.
// These are served under /debug/ and are accessible only in dev mode or
// over Tailscale.
func (db *DB) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	// live SQL debugging against the call database
	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		log.Fatalf("failed to create tailsql server: %v", err)
	}
	tsql.SetDB("sqlite://portcall.db", db.DB, &tailsql.DBOptions{
		Label: "Port Call DB",
	})
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	debug.Handle("backup", "Create and download a backup of the database now", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		unixTime := time.Now().Unix()
		backupPath := fmt.Sprintf("backup-%d.db", unixTime)
		if _, err := db.DB.Exec("VACUUM INTO ?", backupPath); err != nil {
			http.Error(w, fmt.Sprintf("Failed to create backup: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", backupPath))
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Encoding", "gzip")

		backupFile, err := os.Open(backupPath)
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to open backup file: %v", err), http.StatusInternalServerError)
			return
		}

		// close the backup file after sending it
		// and remove it from the filesystem
		defer func() {
			backupFile.Close()
			if err := os.Remove(backupPath); err != nil {
				log.Printf("Failed to remove backup file: %v", err)
			}
		}()

		gzipWriter := gzip.NewWriter(w)
		defer gzipWriter.Close()

		if _, err := io.Copy(gzipWriter, backupFile); err != nil {
			http.Error(w, fmt.Sprintf("Failed to write backup file: %v", err), http.StatusInternalServerError)
			return
		}
	}))
}
