package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	dbconfig "careline/pkg/database"
	"careline/pkg/interfaces"
	"careline/pkg/types"
)

const defaultListLimit = 100

// maxAppointmentMinutes bounds the lookback window for conflict checks;
// must match the duration ceiling enforced by validation.
const maxAppointmentMinutes = 180

// Manager implements interfaces.DatabaseManager on SQLite. Reads run
// concurrently against the pool; all writes funnel through one goroutine
// because SQLite allows a single writer.
type Manager struct {
	db           *sql.DB
	config       *dbconfig.Config
	writeChannel chan writeOperation
	shutdown     chan struct{}
	wg           sync.WaitGroup
	closed       bool
	mu           sync.RWMutex
}

type writeOperation struct {
	operation func(*sql.DB) error
	result    chan error
}

// nullable maps "" to NULL for optional unique columns.
func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// NewManager opens the database, applies pragmas and starts the writer.
func NewManager(config *dbconfig.Config) (*Manager, error) {
	db, err := sql.Open("sqlite3", config.DatabasePath+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxConnections)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	if err := dbconfig.ApplySQLiteOptimizations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply SQLite optimizations: %w", err)
	}

	manager := &Manager{
		db:           db,
		config:       config,
		writeChannel: make(chan writeOperation, 100),
		shutdown:     make(chan struct{}),
	}

	manager.wg.Add(1)
	go manager.writeLoop()

	return manager, nil
}

// writeLoop processes all write operations in a single goroutine, with
// one retry after five seconds for transient lock contention.
func (m *Manager) writeLoop() {
	defer m.wg.Done()

	for {
		select {
		case op := <-m.writeChannel:
			err := op.operation(m.db)
			if err != nil {
				log.Printf("Database write failed, retrying in 5 seconds: %v", err)
				time.Sleep(5 * time.Second)
				err = op.operation(m.db)
				if err != nil {
					log.Printf("Database write failed after retry: %v", err)
				}
			}
			op.result <- err

		case <-m.shutdown:
			// Run what is already queued so no caller is left waiting
			// on a result that will never come.
			for {
				select {
				case op := <-m.writeChannel:
					op.result <- op.operation(m.db)
				default:
					log.Println("Database write loop shutting down")
					return
				}
			}
		}
	}
}

func (m *Manager) executeWrite(operation func(*sql.DB) error) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return fmt.Errorf("database manager is closed")
	}
	m.mu.RUnlock()

	result := make(chan error, 1)

	select {
	case m.writeChannel <- writeOperation{operation: operation, result: result}:
		return <-result
	case <-time.After(30 * time.Second):
		return fmt.Errorf("write operation timeout")
	case <-m.shutdown:
		return fmt.Errorf("database manager is shutting down")
	}
}

// CreateUser inserts a user and fills in the generated id.
func (m *Manager) CreateUser(ctx context.Context, user *types.User) error {
	return m.executeWrite(func(db *sql.DB) error {
		query := `
			INSERT INTO users (name, email, gender, contact_number, password_hash, role)
			VALUES (?, ?, ?, ?, ?, ?)
		`
		res, err := db.ExecContext(ctx, query,
			user.Name,
			user.Email,
			user.Gender,
			user.ContactNumber,
			user.PasswordHash,
			user.Role,
		)
		if err != nil {
			if strings.Contains(err.Error(), "UNIQUE constraint failed: users.email") {
				return interfaces.ErrDuplicateEmail
			}
			return fmt.Errorf("failed to insert user: %w", err)
		}

		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read user id: %w", err)
		}
		user.ID = id
		return nil
	})
}

// GetUser retrieves a user by id.
func (m *Manager) GetUser(ctx context.Context, id int64) (*types.User, error) {
	query := `
		SELECT id, name, email, gender, contact_number, password_hash, role
		FROM users
		WHERE id = ?
	`
	return m.scanUser(m.db.QueryRowContext(ctx, query, id))
}

// GetUserByEmail retrieves a user by email for login.
func (m *Manager) GetUserByEmail(ctx context.Context, email string) (*types.User, error) {
	query := `
		SELECT id, name, email, gender, contact_number, password_hash, role
		FROM users
		WHERE email = ?
	`
	return m.scanUser(m.db.QueryRowContext(ctx, query, email))
}

func (m *Manager) scanUser(row *sql.Row) (*types.User, error) {
	var user types.User
	var gender, contact sql.NullString

	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&gender,
		&contact,
		&user.PasswordHash,
		&user.Role,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, interfaces.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	user.Gender = gender.String
	user.ContactNumber = contact.String
	return &user, nil
}

// ListUsers returns all users ordered by id.
func (m *Manager) ListUsers(ctx context.Context) ([]*types.User, error) {
	query := `
		SELECT id, name, email, gender, contact_number, password_hash, role
		FROM users
		ORDER BY id
	`
	rows, err := m.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []*types.User
	for rows.Next() {
		var user types.User
		var gender, contact sql.NullString
		err := rows.Scan(
			&user.ID,
			&user.Name,
			&user.Email,
			&gender,
			&contact,
			&user.PasswordHash,
			&user.Role,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		user.Gender = gender.String
		user.ContactNumber = contact.String
		users = append(users, &user)
	}

	return users, rows.Err()
}

// UpdateUser persists changes to name, email, gender, contact number
// and role.
func (m *Manager) UpdateUser(ctx context.Context, user *types.User) error {
	return m.executeWrite(func(db *sql.DB) error {
		query := `
			UPDATE users
			SET name = ?, email = ?, gender = ?, contact_number = ?, role = ?
			WHERE id = ?
		`
		res, err := db.ExecContext(ctx, query,
			user.Name,
			user.Email,
			user.Gender,
			user.ContactNumber,
			user.Role,
			user.ID,
		)
		if err != nil {
			if strings.Contains(err.Error(), "UNIQUE constraint failed: users.email") {
				return interfaces.ErrDuplicateEmail
			}
			return fmt.Errorf("failed to update user: %w", err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check update result: %w", err)
		}
		if affected == 0 {
			return interfaces.ErrUserNotFound
		}
		return nil
	})
}

// DeleteUser removes the account row. A user that still has a patient
// or doctor profile keeps the row and returns ErrHasDependents.
func (m *Manager) DeleteUser(ctx context.Context, id int64) error {
	return m.executeWrite(func(db *sql.DB) error {
		res, err := db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
		if err != nil {
			if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
				return interfaces.ErrHasDependents
			}
			return fmt.Errorf("failed to delete user: %w", err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check delete result: %w", err)
		}
		if affected == 0 {
			return interfaces.ErrUserNotFound
		}
		return nil
	})
}

// CreatePatient inserts a patient profile for an existing user.
func (m *Manager) CreatePatient(ctx context.Context, patient *types.Patient) error {
	return m.executeWrite(func(db *sql.DB) error {
		query := `
			INSERT INTO patients (id, medical_record, diagnosis)
			VALUES (?, ?, ?)
		`
		_, err := db.ExecContext(ctx, query, patient.ID, patient.MedicalRecord, patient.Diagnosis)
		if err != nil {
			return fmt.Errorf("failed to insert patient: %w", err)
		}
		return nil
	})
}

// GetPatient retrieves a patient profile by user id.
func (m *Manager) GetPatient(ctx context.Context, id int64) (*types.Patient, error) {
	query := `SELECT id, medical_record, diagnosis FROM patients WHERE id = ?`

	var patient types.Patient
	var record, diagnosis sql.NullString
	err := m.db.QueryRowContext(ctx, query, id).Scan(&patient.ID, &record, &diagnosis)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, interfaces.ErrPatientNotFound
		}
		return nil, fmt.Errorf("failed to query patient: %w", err)
	}

	patient.MedicalRecord = record.String
	patient.Diagnosis = diagnosis.String
	return &patient, nil
}

// ListPatients returns all patient profiles.
func (m *Manager) ListPatients(ctx context.Context) ([]*types.Patient, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT id, medical_record, diagnosis FROM patients ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query patients: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var patients []*types.Patient
	for rows.Next() {
		var patient types.Patient
		var record, diagnosis sql.NullString
		if err := rows.Scan(&patient.ID, &record, &diagnosis); err != nil {
			return nil, fmt.Errorf("failed to scan patient row: %w", err)
		}
		patient.MedicalRecord = record.String
		patient.Diagnosis = diagnosis.String
		patients = append(patients, &patient)
	}

	return patients, rows.Err()
}

// UpdatePatient persists changes to the medical record and diagnosis.
func (m *Manager) UpdatePatient(ctx context.Context, patient *types.Patient) error {
	return m.executeWrite(func(db *sql.DB) error {
		query := `UPDATE patients SET medical_record = ?, diagnosis = ? WHERE id = ?`
		res, err := db.ExecContext(ctx, query, patient.MedicalRecord, patient.Diagnosis, patient.ID)
		if err != nil {
			return fmt.Errorf("failed to update patient: %w", err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check update result: %w", err)
		}
		if affected == 0 {
			return interfaces.ErrPatientNotFound
		}
		return nil
	})
}

// DeletePatient removes the profile row; the user account stays. A
// patient with appointments on file returns ErrHasDependents.
func (m *Manager) DeletePatient(ctx context.Context, id int64) error {
	return m.executeWrite(func(db *sql.DB) error {
		res, err := db.ExecContext(ctx, `DELETE FROM patients WHERE id = ?`, id)
		if err != nil {
			if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
				return interfaces.ErrHasDependents
			}
			return fmt.Errorf("failed to delete patient: %w", err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check delete result: %w", err)
		}
		if affected == 0 {
			return interfaces.ErrPatientNotFound
		}
		return nil
	})
}

// SearchPatients matches patient profiles joined with their accounts by
// substring on name, email and diagnosis.
func (m *Manager) SearchPatients(ctx context.Context, search types.PatientSearch) ([]*types.Patient, error) {
	query := `
		SELECT p.id, p.medical_record, p.diagnosis
		FROM patients p
		JOIN users u ON u.id = p.id
		WHERE 1=1
	`
	var args []interface{}

	if search.Name != "" {
		query += ` AND u.name LIKE ?`
		args = append(args, "%"+search.Name+"%")
	}
	if search.Email != "" {
		query += ` AND u.email LIKE ?`
		args = append(args, "%"+search.Email+"%")
	}
	if search.Diagnosis != "" {
		query += ` AND p.diagnosis LIKE ?`
		args = append(args, "%"+search.Diagnosis+"%")
	}
	query += ` ORDER BY p.id`

	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search patients: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var patients []*types.Patient
	for rows.Next() {
		var patient types.Patient
		var record, diagnosis sql.NullString
		if err := rows.Scan(&patient.ID, &record, &diagnosis); err != nil {
			return nil, fmt.Errorf("failed to scan patient row: %w", err)
		}
		patient.MedicalRecord = record.String
		patient.Diagnosis = diagnosis.String
		patients = append(patients, &patient)
	}

	return patients, rows.Err()
}

// CreateDoctor inserts a doctor profile for an existing user.
func (m *Manager) CreateDoctor(ctx context.Context, doctor *types.Doctor) error {
	return m.executeWrite(func(db *sql.DB) error {
		query := `
			INSERT INTO doctors (id, specialization, license_number)
			VALUES (?, ?, ?)
		`
		// NULL instead of "" so unlicensed doctors do not collide on the
		// unique license column.
		_, err := db.ExecContext(ctx, query, doctor.ID, doctor.Specialization, nullable(doctor.LicenseNumber))
		if err != nil {
			if strings.Contains(err.Error(), "UNIQUE constraint failed: doctors.license_number") {
				return interfaces.ErrDuplicateLicense
			}
			return fmt.Errorf("failed to insert doctor: %w", err)
		}
		return nil
	})
}

// GetDoctor retrieves a doctor profile by user id.
func (m *Manager) GetDoctor(ctx context.Context, id int64) (*types.Doctor, error) {
	query := `SELECT id, specialization, license_number FROM doctors WHERE id = ?`

	var doctor types.Doctor
	var license sql.NullString
	err := m.db.QueryRowContext(ctx, query, id).Scan(&doctor.ID, &doctor.Specialization, &license)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, interfaces.ErrDoctorNotFound
		}
		return nil, fmt.Errorf("failed to query doctor: %w", err)
	}

	doctor.LicenseNumber = license.String
	return &doctor, nil
}

// ListDoctors returns all doctor profiles.
func (m *Manager) ListDoctors(ctx context.Context) ([]*types.Doctor, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT id, specialization, license_number FROM doctors ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query doctors: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var doctors []*types.Doctor
	for rows.Next() {
		var doctor types.Doctor
		var license sql.NullString
		if err := rows.Scan(&doctor.ID, &doctor.Specialization, &license); err != nil {
			return nil, fmt.Errorf("failed to scan doctor row: %w", err)
		}
		doctor.LicenseNumber = license.String
		doctors = append(doctors, &doctor)
	}

	return doctors, rows.Err()
}

// UpdateDoctor persists changes to specialization and license number.
func (m *Manager) UpdateDoctor(ctx context.Context, doctor *types.Doctor) error {
	return m.executeWrite(func(db *sql.DB) error {
		query := `UPDATE doctors SET specialization = ?, license_number = ? WHERE id = ?`
		res, err := db.ExecContext(ctx, query, doctor.Specialization, nullable(doctor.LicenseNumber), doctor.ID)
		if err != nil {
			if strings.Contains(err.Error(), "UNIQUE constraint failed: doctors.license_number") {
				return interfaces.ErrDuplicateLicense
			}
			return fmt.Errorf("failed to update doctor: %w", err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check update result: %w", err)
		}
		if affected == 0 {
			return interfaces.ErrDoctorNotFound
		}
		return nil
	})
}

// DeleteDoctor removes the profile row; the user account stays. A
// doctor with appointments on file returns ErrHasDependents.
func (m *Manager) DeleteDoctor(ctx context.Context, id int64) error {
	return m.executeWrite(func(db *sql.DB) error {
		res, err := db.ExecContext(ctx, `DELETE FROM doctors WHERE id = ?`, id)
		if err != nil {
			if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
				return interfaces.ErrHasDependents
			}
			return fmt.Errorf("failed to delete doctor: %w", err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check delete result: %w", err)
		}
		if affected == 0 {
			return interfaces.ErrDoctorNotFound
		}
		return nil
	})
}

// SearchDoctors matches doctor profiles joined with their accounts by
// substring on name, email, specialization and license number.
func (m *Manager) SearchDoctors(ctx context.Context, search types.DoctorSearch) ([]*types.Doctor, error) {
	query := `
		SELECT d.id, d.specialization, d.license_number
		FROM doctors d
		JOIN users u ON u.id = d.id
		WHERE 1=1
	`
	var args []interface{}

	if search.Name != "" {
		query += ` AND u.name LIKE ?`
		args = append(args, "%"+search.Name+"%")
	}
	if search.Email != "" {
		query += ` AND u.email LIKE ?`
		args = append(args, "%"+search.Email+"%")
	}
	if search.Specialization != "" {
		query += ` AND d.specialization LIKE ?`
		args = append(args, "%"+search.Specialization+"%")
	}
	if search.LicenseNumber != "" {
		query += ` AND d.license_number LIKE ?`
		args = append(args, "%"+search.LicenseNumber+"%")
	}
	query += ` ORDER BY d.id`

	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search doctors: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var doctors []*types.Doctor
	for rows.Next() {
		var doctor types.Doctor
		var license sql.NullString
		if err := rows.Scan(&doctor.ID, &doctor.Specialization, &license); err != nil {
			return nil, fmt.Errorf("failed to scan doctor row: %w", err)
		}
		doctor.LicenseNumber = license.String
		doctors = append(doctors, &doctor)
	}

	return doctors, rows.Err()
}

// CreateAppointment inserts an appointment and fills in the generated id
// and timestamps.
func (m *Manager) CreateAppointment(ctx context.Context, appt *types.Appointment) error {
	return m.executeWrite(func(db *sql.DB) error {
		now := time.Now().UTC()
		if appt.Status == "" {
			appt.Status = types.AppointmentPending
		}
		if appt.DurationMinutes == 0 {
			appt.DurationMinutes = 30
		}
		appt.CreatedAt = now
		appt.UpdatedAt = now

		query := `
			INSERT INTO appointments (patient_id, doctor_id, appointment_date, duration_minutes, status, reason, notes, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		res, err := db.ExecContext(ctx, query,
			appt.PatientID,
			appt.DoctorID,
			appt.AppointmentDate,
			appt.DurationMinutes,
			appt.Status,
			appt.Reason,
			appt.Notes,
			appt.CreatedAt,
			appt.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert appointment: %w", err)
		}

		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read appointment id: %w", err)
		}
		appt.ID = id
		return nil
	})
}

// GetAppointment retrieves an appointment by id.
func (m *Manager) GetAppointment(ctx context.Context, id int64) (*types.Appointment, error) {
	query := appointmentSelect + ` WHERE id = ?`

	row := m.db.QueryRowContext(ctx, query, id)
	appt, err := scanAppointment(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, interfaces.ErrAppointmentNotFound
		}
		return nil, fmt.Errorf("failed to query appointment: %w", err)
	}
	return appt, nil
}

const appointmentSelect = `
	SELECT id, patient_id, doctor_id, appointment_date, duration_minutes, status, reason, notes, created_at, updated_at
	FROM appointments
`

func scanAppointment(scan func(dest ...interface{}) error) (*types.Appointment, error) {
	var appt types.Appointment
	var reason, notes sql.NullString

	err := scan(
		&appt.ID,
		&appt.PatientID,
		&appt.DoctorID,
		&appt.AppointmentDate,
		&appt.DurationMinutes,
		&appt.Status,
		&reason,
		&notes,
		&appt.CreatedAt,
		&appt.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	appt.Reason = reason.String
	appt.Notes = notes.String
	return &appt, nil
}

// ListAppointments returns appointments matching the filter, ordered by
// appointment date.
func (m *Manager) ListAppointments(ctx context.Context, filter types.AppointmentFilter) ([]*types.Appointment, error) {
	query := appointmentSelect + ` WHERE 1=1`
	var args []interface{}

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	if filter.PatientID != 0 {
		query += ` AND patient_id = ?`
		args = append(args, filter.PatientID)
	}
	if filter.DoctorID != 0 {
		query += ` AND doctor_id = ?`
		args = append(args, filter.DoctorID)
	}
	if !filter.DateFrom.IsZero() {
		query += ` AND appointment_date >= ?`
		args = append(args, filter.DateFrom)
	}
	if !filter.DateTo.IsZero() {
		query += ` AND appointment_date <= ?`
		args = append(args, filter.DateTo)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += ` ORDER BY appointment_date LIMIT ? OFFSET ?`
	args = append(args, limit, filter.Offset)

	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query appointments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var appointments []*types.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan appointment row: %w", err)
		}
		appointments = append(appointments, appt)
	}

	return appointments, rows.Err()
}

// UpdateAppointment persists changes to date, duration, status, reason
// and notes, and refreshes updated_at.
func (m *Manager) UpdateAppointment(ctx context.Context, appt *types.Appointment) error {
	return m.executeWrite(func(db *sql.DB) error {
		appt.UpdatedAt = time.Now().UTC()

		query := `
			UPDATE appointments
			SET appointment_date = ?, duration_minutes = ?, status = ?, reason = ?, notes = ?, updated_at = ?
			WHERE id = ?
		`
		res, err := db.ExecContext(ctx, query,
			appt.AppointmentDate,
			appt.DurationMinutes,
			appt.Status,
			appt.Reason,
			appt.Notes,
			appt.UpdatedAt,
			appt.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update appointment: %w", err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check update result: %w", err)
		}
		if affected == 0 {
			return interfaces.ErrAppointmentNotFound
		}
		return nil
	})
}

// FindConflictingAppointment returns a pending or confirmed appointment
// for the doctor that overlaps [date, date+duration). The overlap check
// runs in Go over a bounded window so it is independent of how the
// driver serializes timestamps. Returns ErrAppointmentNotFound when the
// slot is free.
func (m *Manager) FindConflictingAppointment(ctx context.Context, doctorID int64, date time.Time, durationMinutes int, excludeID int64) (*types.Appointment, error) {
	slotEnd := date.Add(time.Duration(durationMinutes) * time.Minute)
	windowStart := date.Add(-maxAppointmentMinutes * time.Minute)

	query := appointmentSelect + `
		WHERE doctor_id = ?
		  AND status IN (?, ?)
		  AND appointment_date > ?
		  AND appointment_date < ?
	`
	rows, err := m.db.QueryContext(ctx, query,
		doctorID,
		types.AppointmentPending,
		types.AppointmentConfirmed,
		windowStart,
		slotEnd,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query conflicting appointments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		appt, err := scanAppointment(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan appointment row: %w", err)
		}
		if appt.ID == excludeID {
			continue
		}
		existingEnd := appt.AppointmentDate.Add(time.Duration(appt.DurationMinutes) * time.Minute)
		if appt.AppointmentDate.Before(slotEnd) && existingEnd.After(date) {
			return appt, nil
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return nil, interfaces.ErrAppointmentNotFound
}

// HealthCheck validates connectivity and a basic read.
func (m *Manager) HealthCheck(ctx context.Context) error {
	if err := m.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	var count int
	if err := m.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return fmt.Errorf("database read test failed: %w", err)
	}

	return nil
}

// GetDB exposes the underlying pool for migrations.
func (m *Manager) GetDB() *sql.DB {
	return m.db
}

// Close shuts down the writer and the connection pool.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	close(m.shutdown)
	m.wg.Wait()

	if err := m.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	return nil
}
