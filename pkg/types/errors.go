package types

import "errors"

// Validation errors surfaced at API and service boundaries.
var (
	ErrInvalidEmail             = errors.New("email must be a valid address")
	ErrInvalidName              = errors.New("name must be 1-100 characters")
	ErrInvalidRole              = errors.New("role must be one of patient, doctor, admin")
	ErrInvalidPassword          = errors.New("password must be 8-72 characters")
	ErrInvalidAppointmentStatus = errors.New("invalid appointment status")
	ErrAppointmentInPast        = errors.New("appointment date must be in the future")
	ErrInvalidDuration          = errors.New("duration must be between 15 and 180 minutes")
	ErrMissingParticipant       = errors.New("appointment requires patient_id and doctor_id")
)
