package interfaces

import "errors"

// Common errors shared across component boundaries.
var (
	ErrUserNotFound        = errors.New("user not found")
	ErrPatientNotFound     = errors.New("patient not found")
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrDuplicateEmail      = errors.New("email already registered")
	ErrDuplicateLicense    = errors.New("license number already registered")
	ErrHasDependents       = errors.New("record has dependent rows")
)
