package db

import (
	"database/sql"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/harbor-data/portcall.report/internal/db/migrations"
)

// setupMigrationTestDB opens a bare database without applying the
// embedded schema, so each test controls which migrations run.
func setupMigrationTestDB(t *testing.T) *DB {
	t.Helper()
	fname := t.Name() + ".db"
	_ = os.Remove(fname)

	sqlDB, err := sql.Open("sqlite", fname)
	if err != nil {
		t.Fatalf("failed to open test DB: %v", err)
	}

	return &DB{sqlDB}
}

// setupTestMigrations writes a small two-version migration set to a
// temp directory. The .sql files sit at the FS root because newMigrate
// reads the source from ".".
func setupTestMigrations(t *testing.T) fs.FS {
	t.Helper()
	tmpDir := filepath.Join(t.TempDir(), "migrations")
	if err := os.MkdirAll(tmpDir, 0755); err != nil {
		t.Fatalf("failed to create temp migrations dir: %v", err)
	}

	files := map[string]string{
		"000001_create_berths.up.sql": `
			CREATE TABLE IF NOT EXISTS berths (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				port_id TEXT NOT NULL
			);
		`,
		"000001_create_berths.down.sql": `
			DROP TABLE IF EXISTS berths;
		`,
		"000002_add_berth_name.up.sql": `
			ALTER TABLE berths ADD COLUMN name TEXT;
		`,
		"000002_add_berth_name.down.sql": `
			CREATE TABLE berths_new (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				port_id TEXT NOT NULL
			);
			INSERT INTO berths_new (id, port_id) SELECT id, port_id FROM berths;
			DROP TABLE berths;
			ALTER TABLE berths_new RENAME TO berths;
		`,
	}

	for filename, content := range files {
		path := filepath.Join(tmpDir, filename)
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write migration file %s: %v", filename, err)
		}
	}

	return os.DirFS(tmpDir)
}

func tableExists(t *testing.T, db *DB, name string) bool {
	t.Helper()
	var exists bool
	err := db.QueryRow(`
		SELECT COUNT(*) > 0
		FROM sqlite_master
		WHERE type='table' AND name=?
	`, name).Scan(&exists)
	if err != nil {
		t.Fatalf("failed to check table %s: %v", name, err)
	}
	return exists
}

// TestMigrateUp_EmbeddedSchema runs the real embedded migrations and
// verifies the tables the rest of the package queries actually exist.
func TestMigrateUp_EmbeddedSchema(t *testing.T) {
	db := setupMigrationTestDB(t)
	defer cleanupTestDB(t, db)

	if err := db.MigrateUp(migrations.FS); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}

	for _, table := range []string{"ports", "positions", "vessel_states", "port_calls"} {
		if !tableExists(t, db, table) {
			t.Errorf("table %s should exist after migration", table)
		}
	}

	// A second up is a no-op, not an error.
	if err := db.MigrateUp(migrations.FS); err != nil {
		t.Errorf("second MigrateUp should not error: %v", err)
	}

	version, dirty, err := db.MigrateVersion(migrations.FS)
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if version == 0 {
		t.Error("expected nonzero version after migration")
	}
	if dirty {
		t.Error("database should not be dirty after successful migration")
	}
}

func TestMigrateUpDown(t *testing.T) {
	db := setupMigrationTestDB(t)
	defer cleanupTestDB(t, db)

	migrationsFS := setupTestMigrations(t)

	if err := db.MigrateUp(migrationsFS); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}

	version, dirty, err := db.MigrateVersion(migrationsFS)
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if version != 2 {
		t.Errorf("expected version 2, got %d", version)
	}
	if dirty {
		t.Error("database should not be dirty after successful migration")
	}

	// Roll back one step: the name column goes away, the table stays.
	if err := db.MigrateDown(migrationsFS); err != nil {
		t.Fatalf("MigrateDown failed: %v", err)
	}

	version, _, err = db.MigrateVersion(migrationsFS)
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if version != 1 {
		t.Errorf("expected version 1 after down migration, got %d", version)
	}

	var hasName bool
	err = db.QueryRow(`
		SELECT COUNT(*) > 0
		FROM pragma_table_info('berths')
		WHERE name='name'
	`).Scan(&hasName)
	if err != nil {
		t.Fatalf("failed to check name column: %v", err)
	}
	if hasName {
		t.Error("name column should not exist after rolling back second migration")
	}
	if !tableExists(t, db, "berths") {
		t.Error("berths should still exist after rolling back only the second migration")
	}
}

func TestMigrateVersion_FreshDatabase(t *testing.T) {
	db := setupMigrationTestDB(t)
	defer cleanupTestDB(t, db)

	version, dirty, err := db.MigrateVersion(setupTestMigrations(t))
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if version != 0 {
		t.Errorf("expected version 0 before migrations, got %d", version)
	}
	if dirty {
		t.Error("database should not be dirty before any migrations")
	}
}

func TestMigrateTo(t *testing.T) {
	db := setupMigrationTestDB(t)
	defer cleanupTestDB(t, db)

	migrationsFS := setupTestMigrations(t)

	if err := db.MigrateTo(migrationsFS, 1); err != nil {
		t.Fatalf("MigrateTo(1) failed: %v", err)
	}

	version, _, err := db.MigrateVersion(migrationsFS)
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if version != 1 {
		t.Errorf("expected version 1, got %d", version)
	}

	var hasName bool
	err = db.QueryRow(`
		SELECT COUNT(*) > 0
		FROM pragma_table_info('berths')
		WHERE name='name'
	`).Scan(&hasName)
	if err != nil {
		t.Fatalf("failed to check name column: %v", err)
	}
	if hasName {
		t.Error("name column should not exist at version 1")
	}

	if err := db.MigrateTo(migrationsFS, 2); err != nil {
		t.Fatalf("MigrateTo(2) failed: %v", err)
	}

	version, _, err = db.MigrateVersion(migrationsFS)
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if version != 2 {
		t.Errorf("expected version 2, got %d", version)
	}
}

func TestMigrateForce(t *testing.T) {
	db := setupMigrationTestDB(t)
	defer cleanupTestDB(t, db)

	migrationsFS := setupTestMigrations(t)

	if err := db.MigrateUp(migrationsFS); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}

	if err := db.MigrateForce(migrationsFS, 1); err != nil {
		t.Fatalf("MigrateForce failed: %v", err)
	}

	version, _, err := db.MigrateVersion(migrationsFS)
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if version != 1 {
		t.Errorf("expected version 1 after force, got %d", version)
	}
}

func TestBaselineAtVersion(t *testing.T) {
	db := setupMigrationTestDB(t)
	defer cleanupTestDB(t, db)

	if err := db.BaselineAtVersion(2); err != nil {
		t.Fatalf("BaselineAtVersion failed: %v", err)
	}

	if !tableExists(t, db, "schema_migrations") {
		t.Error("schema_migrations table should exist after baseline")
	}

	var version int
	if err := db.QueryRow("SELECT version FROM schema_migrations LIMIT 1").Scan(&version); err != nil {
		t.Fatalf("failed to read version: %v", err)
	}
	if version != 2 {
		t.Errorf("expected baseline version 2, got %d", version)
	}

	// Baselining twice is refused.
	if err := db.BaselineAtVersion(3); err == nil {
		t.Error("expected error when baselining already-migrated database")
	}
}

func TestGetMigrationStatus(t *testing.T) {
	db := setupMigrationTestDB(t)
	defer cleanupTestDB(t, db)

	migrationsFS := setupTestMigrations(t)

	status, err := db.GetMigrationStatus(migrationsFS)
	if err != nil {
		t.Fatalf("GetMigrationStatus failed: %v", err)
	}
	if status["current_version"] != uint(0) {
		t.Errorf("expected version 0, got %v", status["current_version"])
	}
	if status["dirty"] != false {
		t.Error("expected dirty=false before migrations")
	}

	if err := db.MigrateUp(migrationsFS); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}

	status, err = db.GetMigrationStatus(migrationsFS)
	if err != nil {
		t.Fatalf("GetMigrationStatus failed: %v", err)
	}
	if status["current_version"] != uint(2) {
		t.Errorf("expected version 2, got %v", status["current_version"])
	}
	if status["schema_migrations_exists"] != true {
		t.Error("expected schema_migrations_exists=true after migrations")
	}
}

func TestGetLatestMigrationVersion(t *testing.T) {
	latest, err := GetLatestMigrationVersion(setupTestMigrations(t))
	if err != nil {
		t.Fatalf("GetLatestMigrationVersion failed: %v", err)
	}
	if latest != 2 {
		t.Errorf("expected latest version 2, got %d", latest)
	}

	if _, err := GetLatestMigrationVersion(os.DirFS(t.TempDir())); err == nil {
		t.Error("expected error for an empty migrations directory")
	}
}

func TestCheckAndPromptMigrations(t *testing.T) {
	db := setupMigrationTestDB(t)
	defer cleanupTestDB(t, db)

	migrationsFS := setupTestMigrations(t)

	// A fresh database is behind: outstanding migrations are reported.
	needed, err := db.CheckAndPromptMigrations(migrationsFS)
	if !needed {
		t.Error("expected migrations to be needed on a fresh database")
	}
	if err == nil {
		t.Error("expected an out-of-date error on a fresh database")
	}

	if err := db.MigrateUp(migrationsFS); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}

	needed, err = db.CheckAndPromptMigrations(migrationsFS)
	if needed {
		t.Error("expected no migrations needed after MigrateUp")
	}
	if err != nil {
		t.Errorf("unexpected error after MigrateUp: %v", err)
	}
}
