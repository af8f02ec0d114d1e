package interfaces

import (
	"context"
	"time"

	"careline/pkg/types"
)

// DatabaseManager handles all persistence operations. Implementations
// must be safe for concurrent use; writes may be serialized internally.
type DatabaseManager interface {
	// User operations
	CreateUser(ctx context.Context, user *types.User) error
	GetUser(ctx context.Context, id int64) (*types.User, error)
	GetUserByEmail(ctx context.Context, email string) (*types.User, error)
	ListUsers(ctx context.Context) ([]*types.User, error)
	UpdateUser(ctx context.Context, user *types.User) error

	// DeleteUser removes the account row. Users with a patient or doctor
	// profile still attached return ErrHasDependents.
	DeleteUser(ctx context.Context, id int64) error

	// Patient operations
	CreatePatient(ctx context.Context, patient *types.Patient) error
	GetPatient(ctx context.Context, id int64) (*types.Patient, error)
	ListPatients(ctx context.Context) ([]*types.Patient, error)
	UpdatePatient(ctx context.Context, patient *types.Patient) error
	DeletePatient(ctx context.Context, id int64) error
	SearchPatients(ctx context.Context, search types.PatientSearch) ([]*types.Patient, error)

	// Doctor operations
	CreateDoctor(ctx context.Context, doctor *types.Doctor) error
	GetDoctor(ctx context.Context, id int64) (*types.Doctor, error)
	ListDoctors(ctx context.Context) ([]*types.Doctor, error)
	UpdateDoctor(ctx context.Context, doctor *types.Doctor) error
	DeleteDoctor(ctx context.Context, id int64) error
	SearchDoctors(ctx context.Context, search types.DoctorSearch) ([]*types.Doctor, error)

	// Appointment operations
	CreateAppointment(ctx context.Context, appt *types.Appointment) error
	GetAppointment(ctx context.Context, id int64) (*types.Appointment, error)
	ListAppointments(ctx context.Context, filter types.AppointmentFilter) ([]*types.Appointment, error)
	UpdateAppointment(ctx context.Context, appt *types.Appointment) error

	// FindConflictingAppointment returns a pending or confirmed appointment
	// for the doctor that overlaps the given slot, or ErrAppointmentNotFound.
	// excludeID skips one appointment (used when rescheduling).
	FindConflictingAppointment(ctx context.Context, doctorID int64, date time.Time, durationMinutes int, excludeID int64) (*types.Appointment, error)

	// Health and lifecycle
	HealthCheck(ctx context.Context) error
	Close() error
}
