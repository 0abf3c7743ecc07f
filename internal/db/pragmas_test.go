package db

import (
	"os"
	"testing"
)

// TestPragmasApplied verifies the connection pragmas that the ingest
// path depends on are set when a database is created.
func TestPragmasApplied(t *testing.T) {
	testDB := t.TempDir() + "/pragmas.db"
	defer os.Remove(testDB)

	db, err := NewDB(testDB)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("Failed to query journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("Expected journal_mode=wal, got %s", journalMode)
	}

	var busyTimeout int
	if err := db.QueryRow("PRAGMA busy_timeout").Scan(&busyTimeout); err != nil {
		t.Fatalf("Failed to query busy_timeout: %v", err)
	}
	if busyTimeout != 5000 {
		t.Errorf("Expected busy_timeout=5000, got %d", busyTimeout)
	}

	var foreignKeys int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeys); err != nil {
		t.Fatalf("Failed to query foreign_keys: %v", err)
	}
	if foreignKeys != 1 {
		t.Errorf("Expected foreign_keys=1, got %d", foreignKeys)
	}
}

// TestPragmasAppliedOnReopen verifies pragmas are re-applied when an
// existing database file is opened without running migrations.
func TestPragmasAppliedOnReopen(t *testing.T) {
	testDB := t.TempDir() + "/pragmas_reopen.db"
	defer os.Remove(testDB)

	db1, err := NewDB(testDB)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	db1.Close()

	db2, err := OpenDB(testDB)
	if err != nil {
		t.Fatalf("Failed to reopen database: %v", err)
	}
	defer db2.Close()

	var journalMode string
	if err := db2.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("Failed to query journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("Expected journal_mode=wal after reopening, got %s", journalMode)
	}
}
