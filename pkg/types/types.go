package types

import (
	"time"
)

// ClassTag partitions WebSocket connections by peer role.
type ClassTag string

const (
	ClassDoctors  ClassTag = "doctors"
	ClassPatients ClassTag = "patients"
	ClassGeneral  ClassTag = "general"
)

// Classes lists all connection classes in broadcast order. BroadcastToAll
// walks this slice so delivery order across classes is deterministic.
var Classes = []ClassTag{ClassDoctors, ClassPatients, ClassGeneral}

// PresenceStatus is a doctor's last-known availability.
type PresenceStatus string

const (
	StatusOnline  PresenceStatus = "online"
	StatusOffline PresenceStatus = "offline"
	StatusBusy    PresenceStatus = "busy"
)

// AppointmentAction tags appointment lifecycle events.
type AppointmentAction string

const (
	ActionCreated   AppointmentAction = "created"
	ActionUpdated   AppointmentAction = "updated"
	ActionCancelled AppointmentAction = "cancelled"
)

// Appointment statuses persisted in the database.
const (
	AppointmentPending    = "pending"
	AppointmentConfirmed  = "confirmed"
	AppointmentCancelled  = "cancelled"
	AppointmentCompleted  = "completed"
	AppointmentInProgress = "in_progress"
)

// User roles.
const (
	RolePatient = "patient"
	RoleDoctor  = "doctor"
	RoleAdmin   = "admin"
)

// User is an account record shared by patients, doctors and admins.
type User struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	Gender        string `json:"gender,omitempty"`
	ContactNumber string `json:"contact_number,omitempty"`
	PasswordHash  string `json:"-"`
	Role          string `json:"role"`
}

// Patient extends a user with medical details. ID equals the user ID.
type Patient struct {
	ID            int64  `json:"id"`
	MedicalRecord string `json:"medical_record,omitempty"`
	Diagnosis     string `json:"diagnosis,omitempty"`
}

// Doctor extends a user with professional details. ID equals the user ID.
type Doctor struct {
	ID             int64  `json:"id"`
	Specialization string `json:"specialization"`
	LicenseNumber  string `json:"license_number,omitempty"`
}

// Appointment is a scheduled visit between a patient and a doctor.
type Appointment struct {
	ID              int64     `json:"id"`
	PatientID       int64     `json:"patient_id"`
	DoctorID        int64     `json:"doctor_id"`
	AppointmentDate time.Time `json:"appointment_date"`
	DurationMinutes int       `json:"duration_minutes"`
	Status          string    `json:"status"`
	Reason          string    `json:"reason,omitempty"`
	Notes           string    `json:"notes,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// AppointmentSummary is the slice of an appointment carried inside a
// notification frame. Timestamps marshal as RFC 3339.
type AppointmentSummary struct {
	ID              int64     `json:"id"`
	PatientID       int64     `json:"patient_id"`
	DoctorID        int64     `json:"doctor_id"`
	AppointmentDate time.Time `json:"appointment_date"`
	Status          string    `json:"status"`
}

// Summary extracts the notification view of an appointment.
func (a *Appointment) Summary() AppointmentSummary {
	return AppointmentSummary{
		ID:              a.ID,
		PatientID:       a.PatientID,
		DoctorID:        a.DoctorID,
		AppointmentDate: a.AppointmentDate,
		Status:          a.Status,
	}
}

// Notification is an addressed outbound frame for appointment events.
// Constructed once per event, serialized per delivery, never stored.
type Notification struct {
	ID        string             `json:"id"`
	Type      string             `json:"type"`
	Message   string             `json:"message"`
	Data      AppointmentSummary `json:"data"`
	Timestamp time.Time          `json:"timestamp"`
}

// PresenceEvent is the outbound frame announcing a doctor status change.
type PresenceEvent struct {
	Type      string         `json:"type"`
	DoctorID  int64          `json:"doctor_id"`
	Status    PresenceStatus `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
}

// DoctorPresence is the stored presence record for one doctor.
// LastUpdated is nil until the first status update.
type DoctorPresence struct {
	Status      PresenceStatus `json:"status"`
	LastUpdated *time.Time     `json:"last_updated"`
}

// PatientSearch matches patients by substring on name, email and
// diagnosis. Empty fields match everything.
type PatientSearch struct {
	Name      string
	Email     string
	Diagnosis string
}

// DoctorSearch matches doctors by substring on name, email,
// specialization and license number. Empty fields match everything.
type DoctorSearch struct {
	Name           string
	Email          string
	Specialization string
	LicenseNumber  string
}

// AppointmentFilter narrows appointment list queries. Zero values mean
// "no constraint"; Limit defaults at the database layer.
type AppointmentFilter struct {
	Status    string
	PatientID int64
	DoctorID  int64
	DateFrom  time.Time
	DateTo    time.Time
	Offset    int
	Limit     int
}
