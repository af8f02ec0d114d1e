package database

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestApplyMigrations_CreatesSchema(t *testing.T) {
	db := openTestDB(t)

	manager := NewMigrationManager(db, "")
	if err := manager.ApplyMigrations(); err != nil {
		t.Fatalf("ApplyMigrations failed: %v", err)
	}

	validator := NewSchemaValidator(db)
	if err := validator.ValidateTablesExist(); err != nil {
		t.Errorf("Schema validation failed: %v", err)
	}
	if err := validator.ValidateIndexes(); err != nil {
		t.Errorf("Index validation failed: %v", err)
	}
}

func TestApplyMigrations_Idempotent(t *testing.T) {
	db := openTestDB(t)

	manager := NewMigrationManager(db, "")
	if err := manager.ApplyMigrations(); err != nil {
		t.Fatalf("First run failed: %v", err)
	}
	if err := manager.ApplyMigrations(); err != nil {
		t.Fatalf("Second run must be a no-op, got: %v", err)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		t.Fatalf("Failed to count migrations: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 applied migration, got %d", count)
	}
}

func TestApplyMigrations_MissingDirectoryIsNotAnError(t *testing.T) {
	db := openTestDB(t)

	manager := NewMigrationManager(db, "/nonexistent/migrations")
	if err := manager.ApplyMigrations(); err != nil {
		t.Fatalf("Missing migrations directory must not fail: %v", err)
	}
}

func TestApplyMigrations_DirectoryExtendsBuiltins(t *testing.T) {
	db := openTestDB(t)

	dir := t.TempDir()
	extra := "CREATE TABLE audit_log (id INTEGER PRIMARY KEY, entry TEXT NOT NULL);"
	if err := os.WriteFile(filepath.Join(dir, "002_audit_log.sql"), []byte(extra), 0o644); err != nil {
		t.Fatalf("Failed to write migration file: %v", err)
	}

	manager := NewMigrationManager(db, dir)
	if err := manager.ApplyMigrations(); err != nil {
		t.Fatalf("ApplyMigrations failed: %v", err)
	}

	if _, err := db.Exec("INSERT INTO audit_log (entry) VALUES ('hello')"); err != nil {
		t.Errorf("Directory migration not applied: %v", err)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		t.Fatalf("Failed to count migrations: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 applied migrations, got %d", count)
	}
}
