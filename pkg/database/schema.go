package database

import (
	"database/sql"
	"fmt"
)

// initialSchema is the built-in first migration. Keeping it in code means
// a fresh database bootstraps without a migrations directory on disk;
// additional *.sql files in MigrationsPath extend it.
const initialSchema = `
CREATE TABLE IF NOT EXISTS users (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	name            TEXT NOT NULL,
	email           TEXT NOT NULL UNIQUE,
	gender          TEXT,
	contact_number  TEXT,
	password_hash   TEXT NOT NULL,
	role            TEXT NOT NULL CHECK (role IN ('patient', 'doctor', 'admin'))
);

CREATE TABLE IF NOT EXISTS patients (
	id              INTEGER PRIMARY KEY REFERENCES users(id),
	medical_record  TEXT,
	diagnosis       TEXT
);

CREATE TABLE IF NOT EXISTS doctors (
	id              INTEGER PRIMARY KEY REFERENCES users(id),
	specialization  TEXT NOT NULL,
	license_number  TEXT UNIQUE
);

CREATE TABLE IF NOT EXISTS appointments (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	patient_id        INTEGER NOT NULL REFERENCES patients(id),
	doctor_id         INTEGER NOT NULL REFERENCES doctors(id),
	appointment_date  DATETIME NOT NULL,
	duration_minutes  INTEGER NOT NULL DEFAULT 30,
	status            TEXT NOT NULL DEFAULT 'pending'
		CHECK (status IN ('pending', 'confirmed', 'cancelled', 'completed', 'in_progress')),
	reason            TEXT,
	notes             TEXT,
	created_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
CREATE INDEX IF NOT EXISTS idx_appointments_patient ON appointments(patient_id, appointment_date);
CREATE INDEX IF NOT EXISTS idx_appointments_doctor ON appointments(doctor_id, appointment_date);
CREATE INDEX IF NOT EXISTS idx_appointments_status ON appointments(status);
`

// SchemaValidator verifies that a database matches the expected structure.
type SchemaValidator struct {
	db *sql.DB
}

// NewSchemaValidator creates a new schema validator.
func NewSchemaValidator(db *sql.DB) *SchemaValidator {
	return &SchemaValidator{db: db}
}

// ValidateTablesExist verifies that all required tables exist.
func (v *SchemaValidator) ValidateTablesExist() error {
	requiredTables := map[string]string{
		"users":             "account storage",
		"patients":          "patient profiles",
		"doctors":           "doctor profiles",
		"appointments":      "appointment storage",
		"schema_migrations": "migration tracking",
	}

	for table, description := range requiredTables {
		exists, err := v.tableExists(table)
		if err != nil {
			return fmt.Errorf("error checking table %s (%s): %w", table, description, err)
		}
		if !exists {
			return fmt.Errorf("required table %s (%s) does not exist", table, description)
		}
	}

	return nil
}

// ValidateIndexes verifies that the performance indexes exist.
func (v *SchemaValidator) ValidateIndexes() error {
	requiredIndexes := map[string]string{
		"idx_users_email":          "login lookups",
		"idx_appointments_patient": "patient schedule queries",
		"idx_appointments_doctor":  "doctor schedule and conflict queries",
		"idx_appointments_status":  "status filtering",
	}

	for index, purpose := range requiredIndexes {
		exists, err := v.indexExists(index)
		if err != nil {
			return fmt.Errorf("error checking index %s (%s): %w", index, purpose, err)
		}
		if !exists {
			return fmt.Errorf("required index %s (%s) does not exist", index, purpose)
		}
	}

	return nil
}

func (v *SchemaValidator) tableExists(tableName string) (bool, error) {
	var count int
	err := v.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?",
		tableName,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (v *SchemaValidator) indexExists(indexName string) (bool, error) {
	var count int
	err := v.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name=?",
		indexName,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
