package types

import (
	"regexp"
	"time"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// IsValidEmail reports whether s looks like an email address. The check
// is a shape check, not RFC 5322 validation.
func IsValidEmail(s string) bool {
	return len(s) <= 254 && emailPattern.MatchString(s)
}

// IsValidRole reports whether s is a known user role.
func IsValidRole(s string) bool {
	return s == RolePatient || s == RoleDoctor || s == RoleAdmin
}

// IsValidClass reports whether s is a known connection class.
func IsValidClass(s string) bool {
	switch ClassTag(s) {
	case ClassDoctors, ClassPatients, ClassGeneral:
		return true
	}
	return false
}

// IsValidPresenceStatus reports whether s is a known presence status.
func IsValidPresenceStatus(s string) bool {
	switch PresenceStatus(s) {
	case StatusOnline, StatusOffline, StatusBusy:
		return true
	}
	return false
}

// IsValidAppointmentStatus reports whether s is a known appointment status.
func IsValidAppointmentStatus(s string) bool {
	switch s {
	case AppointmentPending, AppointmentConfirmed, AppointmentCancelled,
		AppointmentCompleted, AppointmentInProgress:
		return true
	}
	return false
}

// Validate checks user fields before registration.
func (u *User) Validate() error {
	if u.Name == "" || len(u.Name) > 100 {
		return ErrInvalidName
	}
	if !IsValidEmail(u.Email) {
		return ErrInvalidEmail
	}
	if !IsValidRole(u.Role) {
		return ErrInvalidRole
	}
	return nil
}

// Validate checks appointment fields before creation. Booking in the past
// is rejected; duration outside 15-180 minutes is rejected.
func (a *Appointment) Validate() error {
	if a.PatientID == 0 || a.DoctorID == 0 {
		return ErrMissingParticipant
	}
	if !a.AppointmentDate.After(time.Now()) {
		return ErrAppointmentInPast
	}
	if a.DurationMinutes < 15 || a.DurationMinutes > 180 {
		return ErrInvalidDuration
	}
	if a.Status != "" && !IsValidAppointmentStatus(a.Status) {
		return ErrInvalidAppointmentStatus
	}
	return nil
}
