package db

import (
	"fmt"
	"io/fs"
	"log"
	"os"

	"github.com/harbor-data/portcall.report/internal/db/migrations"
)

// RunMigrateCommand handles the 'migrate' subcommand dispatching.
func RunMigrateCommand(args []string, dbPath string) {
	if len(args) < 1 {
		PrintMigrateHelp()
		os.Exit(1)
	}

	action := args[0]

	// Open the database without running schema initialization
	// (migrations manage the schema).
	database, err := OpenDB(dbPath)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	switch action {
	case "up":
		handleMigrateUp(database, migrations.FS)

	case "down":
		handleMigrateDown(database, migrations.FS)

	case "status":
		handleMigrateStatus(database, migrations.FS)

	case "version":
		if len(args) < 2 {
			log.Fatal("Usage: portcalld migrate version <version_number>")
		}
		handleMigrateVersion(database, migrations.FS, args[1])

	case "force":
		if len(args) < 2 {
			log.Fatal("Usage: portcalld migrate force <version_number>")
		}
		handleMigrateForce(database, migrations.FS, args[1])

	case "baseline":
		if len(args) < 2 {
			log.Fatal("Usage: portcalld migrate baseline <version_number>")
		}
		handleMigrateBaseline(database, args[1])

	case "help":
		PrintMigrateHelp()

	default:
		fmt.Printf("Unknown migrate action: %s\n\n", action)
		PrintMigrateHelp()
		os.Exit(1)
	}
}

// handleMigrateUp applies all pending migrations
func handleMigrateUp(database *DB, migrationsFS fs.FS) {
	log.Printf("Running migrations...")
	if err := database.MigrateUp(migrationsFS); err != nil {
		log.Fatalf("Migration up failed: %v", err)
	}
	log.Println("All migrations applied successfully")

	version, dirty, _ := database.MigrateVersion(migrationsFS)
	log.Printf("Current version: %d (dirty: %v)", version, dirty)
}

// handleMigrateDown rolls back one migration
func handleMigrateDown(database *DB, migrationsFS fs.FS) {
	log.Printf("Rolling back one migration...")
	if err := database.MigrateDown(migrationsFS); err != nil {
		log.Fatalf("Migration down failed: %v", err)
	}
	log.Println("Migration rolled back successfully")

	version, dirty, _ := database.MigrateVersion(migrationsFS)
	log.Printf("Current version: %d (dirty: %v)", version, dirty)
}

// handleMigrateStatus displays the current migration status
func handleMigrateStatus(database *DB, migrationsFS fs.FS) {
	version, dirty, err := database.MigrateVersion(migrationsFS)
	if err != nil {
		log.Fatalf("Failed to get migration status: %v", err)
	}

	status, err := database.GetMigrationStatus(migrationsFS)
	if err != nil {
		log.Fatalf("Failed to get migration status: %v", err)
	}

	fmt.Println("=== Migration Status ===")
	fmt.Printf("Current version: %d\n", version)
	fmt.Printf("Dirty: %v\n", dirty)
	fmt.Printf("Schema migrations table exists: %v\n", status["schema_migrations_exists"])

	if dirty {
		fmt.Println("\nWARNING: Database is in a dirty state!")
		fmt.Println("A migration failed mid-execution. You may need to:")
		fmt.Println("  1. Inspect the database manually")
		fmt.Println("  2. Fix any issues")
		fmt.Println("  3. Run: portcalld migrate force <version>")
	}
}

// handleMigrateVersion migrates to a specific version
func handleMigrateVersion(database *DB, migrationsFS fs.FS, versionStr string) {
	var targetVersion uint
	if _, err := fmt.Sscanf(versionStr, "%d", &targetVersion); err != nil {
		log.Fatalf("Invalid version number: %s", versionStr)
	}

	log.Printf("Migrating to version %d...", targetVersion)
	if err := database.MigrateTo(migrationsFS, targetVersion); err != nil {
		log.Fatalf("Migration to version %d failed: %v", targetVersion, err)
	}
	log.Printf("Migrated to version %d successfully", targetVersion)
}

// handleMigrateForce forces the migration version (recovery only)
func handleMigrateForce(database *DB, migrationsFS fs.FS, versionStr string) {
	var forceVersion int
	if _, err := fmt.Sscanf(versionStr, "%d", &forceVersion); err != nil {
		log.Fatalf("Invalid version number: %s", versionStr)
	}

	fmt.Printf("WARNING: Forcing migration version to %d\n", forceVersion)
	fmt.Println("This should only be used to recover from a dirty migration state.")
	fmt.Print("Continue? [y/N]: ")

	var response string
	fmt.Scanln(&response)
	if response != "y" && response != "Y" {
		log.Println("Aborted")
		os.Exit(0)
	}

	if err := database.MigrateForce(migrationsFS, forceVersion); err != nil {
		log.Fatalf("Force migration failed: %v", err)
	}
	log.Printf("Migration version forced to %d", forceVersion)
}

// handleMigrateBaseline sets the baseline version without running migrations
func handleMigrateBaseline(database *DB, versionStr string) {
	var baselineVersion uint
	if _, err := fmt.Sscanf(versionStr, "%d", &baselineVersion); err != nil {
		log.Fatalf("Invalid version number: %s", versionStr)
	}

	log.Printf("Baselining database at version %d...", baselineVersion)
	if err := database.BaselineAtVersion(baselineVersion); err != nil {
		log.Fatalf("Baseline failed: %v", err)
	}
	log.Printf("Database baselined at version %d", baselineVersion)
}

// PrintMigrateHelp displays the help message for the migrate command
func PrintMigrateHelp() {
	fmt.Println("Database Migration Commands")
	fmt.Println()
	fmt.Println("Usage: portcalld migrate <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  up              Apply all pending migrations")
	fmt.Println("  down            Rollback one migration")
	fmt.Println("  status          Show current migration status and version")
	fmt.Println("  version <N>     Migrate to specific version N")
	fmt.Println("  force <N>       Force migration version to N (recovery only)")
	fmt.Println("  baseline <N>    Set migration version to N without running migrations")
	fmt.Println("  help            Show this help message")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  portcalld migrate up")
	fmt.Println("  portcalld migrate status")
	fmt.Println("  portcalld migrate baseline 1")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -db <path>    Path to database file (default: portcall.db)")
}
