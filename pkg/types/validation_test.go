package types

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestIsValidEmail(t *testing.T) {
	valid := []string{"a@b.co", "alice.smith@clinic.example.org"}
	for _, email := range valid {
		if !IsValidEmail(email) {
			t.Errorf("Expected %q to be valid", email)
		}
	}

	invalid := []string{"", "no-at.example.com", "two@@example.com", "spaces in@example.com", "noext@host", strings.Repeat("a", 250) + "@b.co"}
	for _, email := range invalid {
		if IsValidEmail(email) {
			t.Errorf("Expected %q to be invalid", email)
		}
	}
}

func TestUserValidate(t *testing.T) {
	valid := User{Name: "Alice", Email: "alice@example.com", Role: RolePatient}
	if err := valid.Validate(); err != nil {
		t.Errorf("Valid user rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*User)
		want   error
	}{
		{"empty name", func(u *User) { u.Name = "" }, ErrInvalidName},
		{"name too long", func(u *User) { u.Name = strings.Repeat("a", 101) }, ErrInvalidName},
		{"bad email", func(u *User) { u.Email = "nope" }, ErrInvalidEmail},
		{"unknown role", func(u *User) { u.Role = "janitor" }, ErrInvalidRole},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := valid
			tt.mutate(&u)
			if err := u.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestAppointmentValidate(t *testing.T) {
	valid := Appointment{
		PatientID:       9,
		DoctorID:        5,
		AppointmentDate: time.Now().Add(24 * time.Hour),
		DurationMinutes: 30,
		Status:          AppointmentPending,
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("Valid appointment rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Appointment)
		want   error
	}{
		{"missing patient", func(a *Appointment) { a.PatientID = 0 }, ErrMissingParticipant},
		{"missing doctor", func(a *Appointment) { a.DoctorID = 0 }, ErrMissingParticipant},
		{"in the past", func(a *Appointment) { a.AppointmentDate = time.Now().Add(-time.Hour) }, ErrAppointmentInPast},
		{"too short", func(a *Appointment) { a.DurationMinutes = 10 }, ErrInvalidDuration},
		{"too long", func(a *Appointment) { a.DurationMinutes = 240 }, ErrInvalidDuration},
		{"unknown status", func(a *Appointment) { a.Status = "maybe" }, ErrInvalidAppointmentStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := valid
			tt.mutate(&a)
			if err := a.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestAppointmentSummary(t *testing.T) {
	date := time.Now().Add(24 * time.Hour)
	appt := Appointment{
		ID:              1,
		PatientID:       9,
		DoctorID:        5,
		AppointmentDate: date,
		DurationMinutes: 30,
		Status:          AppointmentConfirmed,
		Notes:           "internal notes stay out of the summary",
	}

	summary := appt.Summary()
	if summary.ID != 1 || summary.PatientID != 9 || summary.DoctorID != 5 {
		t.Errorf("Unexpected summary: %+v", summary)
	}
	if !summary.AppointmentDate.Equal(date) || summary.Status != AppointmentConfirmed {
		t.Errorf("Unexpected summary: %+v", summary)
	}
}

func TestClassAndStatusSets(t *testing.T) {
	for _, class := range Classes {
		if !IsValidClass(string(class)) {
			t.Errorf("Class %s missing from validation set", class)
		}
	}
	if IsValidClass("nurses") {
		t.Error("Unknown class accepted")
	}
	if IsValidPresenceStatus("napping") {
		t.Error("Unknown presence status accepted")
	}
	if !IsValidPresenceStatus(string(StatusBusy)) {
		t.Error("Known presence status rejected")
	}
}
