package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"careline/internal/auth"
	"careline/pkg/interfaces"
	"careline/pkg/types"
)

// Registry is the narrow registry surface the API layer needs.
type Registry interface {
	Stats() map[string]int
}

// Server is the HTTP interface over the domain. It holds no business
// state; handlers validate input, call the managers and serialize the
// result.
type Server struct {
	dbManager interfaces.DatabaseManager
	notifier  interfaces.EventNotifier
	tracker   interfaces.PresenceTracker
	authSvc   *auth.Service
	registry  Registry
	router    *http.ServeMux
}

// NewServer wires the API routes against the given dependencies.
func NewServer(dbManager interfaces.DatabaseManager, notifier interfaces.EventNotifier, tracker interfaces.PresenceTracker, authSvc *auth.Service, registry Registry) *Server {
	s := &Server{
		dbManager: dbManager,
		notifier:  notifier,
		tracker:   tracker,
		authSvc:   authSvc,
		registry:  registry,
		router:    http.NewServeMux(),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	public := func(h http.HandlerFunc) http.Handler {
		return s.corsMiddleware(s.jsonMiddleware(h))
	}
	protected := func(h http.HandlerFunc) http.Handler {
		return s.corsMiddleware(s.jsonMiddleware(s.authSvc.Middleware(h)))
	}

	s.router.Handle("/api/users/register", public(s.handleRegister))
	s.router.Handle("/api/users/login", public(s.handleLogin))
	s.router.Handle("/api/users/me", protected(s.handleCurrentUser))
	s.router.Handle("/api/users", protected(s.handleUsers))
	s.router.Handle("/api/users/", protected(s.handleUserByID))

	s.router.Handle("/api/patients", protected(s.handlePatients))
	s.router.Handle("/api/patients/", protected(s.handlePatientByID))

	s.router.Handle("/api/doctors", protected(s.handleDoctors))
	s.router.Handle("/api/doctors/", protected(s.handleDoctorByID))

	s.router.Handle("/api/appointments", protected(s.handleAppointments))
	s.router.Handle("/api/appointments/", protected(s.handleAppointmentByID))

	s.router.Handle("/health", public(s.healthCheck))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Request/Response types for JSON serialization
type RegisterRequest struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	Password      string `json:"password"`
	Gender        string `json:"gender"`
	ContactNumber string `json:"contact_number"`
	Role          string `json:"role"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type CreateAppointmentRequest struct {
	PatientID       int64     `json:"patient_id"`
	DoctorID        int64     `json:"doctor_id"`
	AppointmentDate time.Time `json:"appointment_date"`
	DurationMinutes int       `json:"duration_minutes"`
	Reason          string    `json:"reason"`
}

type UpdateAppointmentRequest struct {
	AppointmentDate *time.Time `json:"appointment_date"`
	DurationMinutes *int       `json:"duration_minutes"`
	Status          *string    `json:"status"`
	Reason          *string    `json:"reason"`
	Notes           *string    `json:"notes"`
}

type UpdateUserRequest struct {
	Name          *string `json:"name"`
	Email         *string `json:"email"`
	Gender        *string `json:"gender"`
	ContactNumber *string `json:"contact_number"`
	Role          *string `json:"role"`
}

type UpdatePatientRequest struct {
	MedicalRecord *string `json:"medical_record"`
	Diagnosis     *string `json:"diagnosis"`
}

type UpdateDoctorRequest struct {
	Specialization *string `json:"specialization"`
	LicenseNumber  *string `json:"license_number"`
}

type StatusUpdateRequest struct {
	Status string `json:"status"`
}

type DoctorStatusResponse struct {
	DoctorID    int64                `json:"doctor_id"`
	Status      types.PresenceStatus `json:"status"`
	LastUpdated *time.Time           `json:"last_updated"`
}

type HealthResponse struct {
	Status      string         `json:"status"`
	Timestamp   time.Time      `json:"timestamp"`
	Database    string         `json:"database"`
	Connections map[string]int `json:"connections"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// POST /api/users/register
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	user := &types.User{
		Name:          req.Name,
		Email:         req.Email,
		Gender:        req.Gender,
		ContactNumber: req.ContactNumber,
		Role:          req.Role,
	}
	if user.Role == "" {
		user.Role = types.RolePatient
	}
	if err := user.Validate(); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.Password) < 8 || len(req.Password) > 72 {
		s.sendError(w, types.ErrInvalidPassword.Error(), http.StatusBadRequest)
		return
	}

	hash, err := s.authSvc.HashPassword(req.Password)
	if err != nil {
		s.sendError(w, "Failed to register user", http.StatusInternalServerError)
		return
	}
	user.PasswordHash = hash

	if err := s.dbManager.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, interfaces.ErrDuplicateEmail) {
			s.sendError(w, "Email already registered", http.StatusConflict)
			return
		}
		s.sendError(w, "Failed to register user", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(user)
}

// POST /api/users/login
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	user, err := s.dbManager.GetUserByEmail(r.Context(), req.Email)
	if err != nil || !s.authSvc.VerifyPassword(req.Password, user.PasswordHash) {
		s.sendError(w, auth.ErrInvalidCredentials.Error(), http.StatusUnauthorized)
		return
	}

	token, err := s.authSvc.CreateToken(user.ID)
	if err != nil {
		s.sendError(w, "Failed to issue token", http.StatusInternalServerError)
		return
	}

	_ = json.NewEncoder(w).Encode(LoginResponse{AccessToken: token, TokenType: "bearer"})
}

// GET /api/users/me
func (s *Server) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, ok := auth.UserIDFrom(r.Context())
	if !ok {
		s.sendError(w, "Not authenticated", http.StatusUnauthorized)
		return
	}

	user, err := s.dbManager.GetUser(r.Context(), userID)
	if err != nil {
		s.sendError(w, "User not found", http.StatusNotFound)
		return
	}
	_ = json.NewEncoder(w).Encode(user)
}

// GET /api/users
func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	users, err := s.dbManager.ListUsers(r.Context())
	if err != nil {
		s.sendError(w, "Failed to list users", http.StatusInternalServerError)
		return
	}
	if users == nil {
		users = []*types.User{}
	}
	_ = json.NewEncoder(w).Encode(users)
}

// GET|PUT|DELETE /api/users/{id}
func (s *Server) handleUserByID(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r.URL.Path, "/api/users/")
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		user, err := s.dbManager.GetUser(r.Context(), id)
		if err != nil {
			if errors.Is(err, interfaces.ErrUserNotFound) {
				s.sendError(w, "User not found", http.StatusNotFound)
				return
			}
			s.sendError(w, "Failed to get user", http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(user)

	case http.MethodPut:
		s.updateUser(w, r, id)

	case http.MethodDelete:
		err := s.dbManager.DeleteUser(r.Context(), id)
		switch {
		case errors.Is(err, interfaces.ErrUserNotFound):
			s.sendError(w, "User not found", http.StatusNotFound)
		case errors.Is(err, interfaces.ErrHasDependents):
			s.sendError(w, "User still has a patient or doctor profile", http.StatusConflict)
		case err != nil:
			s.sendError(w, "Failed to delete user", http.StatusInternalServerError)
		default:
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "User deleted"})
		}

	default:
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) updateUser(w http.ResponseWriter, r *http.Request, id int64) {
	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	user, err := s.dbManager.GetUser(r.Context(), id)
	if err != nil {
		if errors.Is(err, interfaces.ErrUserNotFound) {
			s.sendError(w, "User not found", http.StatusNotFound)
			return
		}
		s.sendError(w, "Failed to get user", http.StatusInternalServerError)
		return
	}

	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.Email != nil {
		user.Email = *req.Email
	}
	if req.Gender != nil {
		user.Gender = *req.Gender
	}
	if req.ContactNumber != nil {
		user.ContactNumber = *req.ContactNumber
	}
	if req.Role != nil {
		user.Role = *req.Role
	}
	if err := user.Validate(); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.dbManager.UpdateUser(r.Context(), user); err != nil {
		if errors.Is(err, interfaces.ErrDuplicateEmail) {
			s.sendError(w, "Email already registered", http.StatusConflict)
			return
		}
		s.sendError(w, "Failed to update user", http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(user)
}

// POST /api/patients, GET /api/patients
func (s *Server) handlePatients(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var patient types.Patient
		if err := json.NewDecoder(r.Body).Decode(&patient); err != nil {
			s.sendError(w, "Invalid JSON", http.StatusBadRequest)
			return
		}
		if patient.ID == 0 {
			if userID, ok := auth.UserIDFrom(r.Context()); ok {
				patient.ID = userID
			}
		}
		if _, err := s.dbManager.GetUser(r.Context(), patient.ID); err != nil {
			s.sendError(w, "User not found", http.StatusNotFound)
			return
		}
		if err := s.dbManager.CreatePatient(r.Context(), &patient); err != nil {
			s.sendError(w, "Failed to create patient", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(patient)

	case http.MethodGet:
		patients, err := s.dbManager.ListPatients(r.Context())
		if err != nil {
			s.sendError(w, "Failed to list patients", http.StatusInternalServerError)
			return
		}
		if patients == nil {
			patients = []*types.Patient{}
		}
		_ = json.NewEncoder(w).Encode(patients)

	default:
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// GET /api/patients/search, GET|PUT|DELETE /api/patients/{id}
func (s *Server) handlePatientByID(w http.ResponseWriter, r *http.Request) {
	if strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/patients/"), "/") == "search" {
		s.searchPatients(w, r)
		return
	}

	id, ok := s.pathID(w, r.URL.Path, "/api/patients/")
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		patient, err := s.dbManager.GetPatient(r.Context(), id)
		if err != nil {
			if errors.Is(err, interfaces.ErrPatientNotFound) {
				s.sendError(w, "Patient not found", http.StatusNotFound)
				return
			}
			s.sendError(w, "Failed to get patient", http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(patient)

	case http.MethodPut:
		s.updatePatient(w, r, id)

	case http.MethodDelete:
		err := s.dbManager.DeletePatient(r.Context(), id)
		switch {
		case errors.Is(err, interfaces.ErrPatientNotFound):
			s.sendError(w, "Patient not found", http.StatusNotFound)
		case errors.Is(err, interfaces.ErrHasDependents):
			s.sendError(w, "Patient still has appointments on file", http.StatusConflict)
		case err != nil:
			s.sendError(w, "Failed to delete patient", http.StatusInternalServerError)
		default:
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "Patient record deleted"})
		}

	default:
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) updatePatient(w http.ResponseWriter, r *http.Request, id int64) {
	var req UpdatePatientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	patient, err := s.dbManager.GetPatient(r.Context(), id)
	if err != nil {
		if errors.Is(err, interfaces.ErrPatientNotFound) {
			s.sendError(w, "Patient not found", http.StatusNotFound)
			return
		}
		s.sendError(w, "Failed to get patient", http.StatusInternalServerError)
		return
	}

	if req.MedicalRecord != nil {
		patient.MedicalRecord = *req.MedicalRecord
	}
	if req.Diagnosis != nil {
		patient.Diagnosis = *req.Diagnosis
	}

	if err := s.dbManager.UpdatePatient(r.Context(), patient); err != nil {
		s.sendError(w, "Failed to update patient", http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(patient)
}

func (s *Server) searchPatients(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	patients, err := s.dbManager.SearchPatients(r.Context(), types.PatientSearch{
		Name:      r.URL.Query().Get("name"),
		Email:     r.URL.Query().Get("email"),
		Diagnosis: r.URL.Query().Get("diagnosis"),
	})
	if err != nil {
		s.sendError(w, "Failed to search patients", http.StatusInternalServerError)
		return
	}
	if patients == nil {
		patients = []*types.Patient{}
	}
	_ = json.NewEncoder(w).Encode(patients)
}

// POST /api/doctors, GET /api/doctors
func (s *Server) handleDoctors(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var doctor types.Doctor
		if err := json.NewDecoder(r.Body).Decode(&doctor); err != nil {
			s.sendError(w, "Invalid JSON", http.StatusBadRequest)
			return
		}
		if doctor.ID == 0 {
			if userID, ok := auth.UserIDFrom(r.Context()); ok {
				doctor.ID = userID
			}
		}
		if doctor.Specialization == "" {
			s.sendError(w, "Specialization is required", http.StatusBadRequest)
			return
		}
		if _, err := s.dbManager.GetUser(r.Context(), doctor.ID); err != nil {
			s.sendError(w, "User not found", http.StatusNotFound)
			return
		}
		if err := s.dbManager.CreateDoctor(r.Context(), &doctor); err != nil {
			if errors.Is(err, interfaces.ErrDuplicateLicense) {
				s.sendError(w, "License number already registered", http.StatusConflict)
				return
			}
			s.sendError(w, "Failed to create doctor", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(doctor)

	case http.MethodGet:
		doctors, err := s.dbManager.ListDoctors(r.Context())
		if err != nil {
			s.sendError(w, "Failed to list doctors", http.StatusInternalServerError)
			return
		}
		if doctors == nil {
			doctors = []*types.Doctor{}
		}
		_ = json.NewEncoder(w).Encode(doctors)

	default:
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// GET /api/doctors/search, GET|PUT|DELETE /api/doctors/{id},
// GET|POST /api/doctors/{id}/status
func (s *Server) handleDoctorByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/doctors/")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		s.sendError(w, "Doctor ID required", http.StatusBadRequest)
		return
	}
	if len(parts) == 1 && parts[0] == "search" {
		s.searchDoctors(w, r)
		return
	}

	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || id <= 0 {
		s.sendError(w, "Invalid doctor ID", http.StatusBadRequest)
		return
	}

	if len(parts) == 2 && parts[1] == "status" {
		s.handleDoctorStatus(w, r, id)
		return
	}
	if len(parts) > 1 {
		s.sendError(w, "Not found", http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		doctor, err := s.dbManager.GetDoctor(r.Context(), id)
		if err != nil {
			if errors.Is(err, interfaces.ErrDoctorNotFound) {
				s.sendError(w, "Doctor not found", http.StatusNotFound)
				return
			}
			s.sendError(w, "Failed to get doctor", http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(doctor)

	case http.MethodPut:
		s.updateDoctor(w, r, id)

	case http.MethodDelete:
		err := s.dbManager.DeleteDoctor(r.Context(), id)
		switch {
		case errors.Is(err, interfaces.ErrDoctorNotFound):
			s.sendError(w, "Doctor not found", http.StatusNotFound)
		case errors.Is(err, interfaces.ErrHasDependents):
			s.sendError(w, "Doctor still has appointments on file", http.StatusConflict)
		case err != nil:
			s.sendError(w, "Failed to delete doctor", http.StatusInternalServerError)
		default:
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "Doctor record deleted"})
		}

	default:
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) updateDoctor(w http.ResponseWriter, r *http.Request, id int64) {
	var req UpdateDoctorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	doctor, err := s.dbManager.GetDoctor(r.Context(), id)
	if err != nil {
		if errors.Is(err, interfaces.ErrDoctorNotFound) {
			s.sendError(w, "Doctor not found", http.StatusNotFound)
			return
		}
		s.sendError(w, "Failed to get doctor", http.StatusInternalServerError)
		return
	}

	if req.Specialization != nil {
		doctor.Specialization = *req.Specialization
	}
	if req.LicenseNumber != nil {
		doctor.LicenseNumber = *req.LicenseNumber
	}
	if doctor.Specialization == "" {
		s.sendError(w, "Specialization is required", http.StatusBadRequest)
		return
	}

	if err := s.dbManager.UpdateDoctor(r.Context(), doctor); err != nil {
		if errors.Is(err, interfaces.ErrDuplicateLicense) {
			s.sendError(w, "License number already registered", http.StatusConflict)
			return
		}
		s.sendError(w, "Failed to update doctor", http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(doctor)
}

func (s *Server) searchDoctors(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	doctors, err := s.dbManager.SearchDoctors(r.Context(), types.DoctorSearch{
		Name:           r.URL.Query().Get("name"),
		Email:          r.URL.Query().Get("email"),
		Specialization: r.URL.Query().Get("specialization"),
		LicenseNumber:  r.URL.Query().Get("license_number"),
	})
	if err != nil {
		s.sendError(w, "Failed to search doctors", http.StatusInternalServerError)
		return
	}
	if doctors == nil {
		doctors = []*types.Doctor{}
	}
	_ = json.NewEncoder(w).Encode(doctors)
}

func (s *Server) handleDoctorStatus(w http.ResponseWriter, r *http.Request, doctorID int64) {
	switch r.Method {
	case http.MethodGet:
		presence := s.tracker.Status(doctorID)
		_ = json.NewEncoder(w).Encode(DoctorStatusResponse{
			DoctorID:    doctorID,
			Status:      presence.Status,
			LastUpdated: presence.LastUpdated,
		})

	case http.MethodPost:
		var req StatusUpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.sendError(w, "Invalid JSON", http.StatusBadRequest)
			return
		}
		if err := s.tracker.UpdateStatus(doctorID, types.PresenceStatus(req.Status)); err != nil {
			s.sendError(w, fmt.Sprintf("Invalid status %q", req.Status), http.StatusBadRequest)
			return
		}
		presence := s.tracker.Status(doctorID)
		_ = json.NewEncoder(w).Encode(DoctorStatusResponse{
			DoctorID:    doctorID,
			Status:      presence.Status,
			LastUpdated: presence.LastUpdated,
		})

	default:
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// POST /api/appointments, GET /api/appointments
func (s *Server) handleAppointments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.createAppointment(w, r)
	case http.MethodGet:
		s.listAppointments(w, r)
	default:
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) createAppointment(w http.ResponseWriter, r *http.Request) {
	var req CreateAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if req.DurationMinutes == 0 {
		req.DurationMinutes = 30
	}
	appt := &types.Appointment{
		PatientID:       req.PatientID,
		DoctorID:        req.DoctorID,
		AppointmentDate: req.AppointmentDate,
		DurationMinutes: req.DurationMinutes,
		Status:          types.AppointmentPending,
		Reason:          req.Reason,
	}
	if err := appt.Validate(); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if _, err := s.dbManager.GetPatient(r.Context(), appt.PatientID); err != nil {
		s.sendError(w, "Patient not found", http.StatusNotFound)
		return
	}
	if _, err := s.dbManager.GetDoctor(r.Context(), appt.DoctorID); err != nil {
		s.sendError(w, "Doctor not found", http.StatusNotFound)
		return
	}

	conflict, err := s.dbManager.FindConflictingAppointment(r.Context(), appt.DoctorID, appt.AppointmentDate, appt.DurationMinutes, 0)
	if err == nil && conflict != nil {
		s.sendError(w, "Doctor is not available at the requested time", http.StatusConflict)
		return
	}
	if err != nil && !errors.Is(err, interfaces.ErrAppointmentNotFound) {
		s.sendError(w, "Failed to check doctor availability", http.StatusInternalServerError)
		return
	}

	if err := s.dbManager.CreateAppointment(r.Context(), appt); err != nil {
		s.sendError(w, "Failed to create appointment", http.StatusInternalServerError)
		return
	}

	s.notifier.AppointmentEvent(appt.Summary(), types.ActionCreated)

	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(appt)
}

func (s *Server) listAppointments(w http.ResponseWriter, r *http.Request) {
	filter := types.AppointmentFilter{
		Status: r.URL.Query().Get("status"),
	}
	if v := r.URL.Query().Get("patient_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			s.sendError(w, "Invalid patient_id", http.StatusBadRequest)
			return
		}
		filter.PatientID = id
	}
	if v := r.URL.Query().Get("doctor_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			s.sendError(w, "Invalid doctor_id", http.StatusBadRequest)
			return
		}
		filter.DoctorID = id
	}
	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			s.sendError(w, "Invalid from timestamp", http.StatusBadRequest)
			return
		}
		filter.DateFrom = t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			s.sendError(w, "Invalid to timestamp", http.StatusBadRequest)
			return
		}
		filter.DateTo = t
	}
	if filter.Status != "" && !types.IsValidAppointmentStatus(filter.Status) {
		s.sendError(w, fmt.Sprintf("Invalid status %q", filter.Status), http.StatusBadRequest)
		return
	}

	appointments, err := s.dbManager.ListAppointments(r.Context(), filter)
	if err != nil {
		s.sendError(w, "Failed to list appointments", http.StatusInternalServerError)
		return
	}
	if appointments == nil {
		appointments = []*types.Appointment{}
	}
	_ = json.NewEncoder(w).Encode(appointments)
}

// GET|PUT|DELETE /api/appointments/{id}
func (s *Server) handleAppointmentByID(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r.URL.Path, "/api/appointments/")
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		appt, err := s.dbManager.GetAppointment(r.Context(), id)
		if err != nil {
			if errors.Is(err, interfaces.ErrAppointmentNotFound) {
				s.sendError(w, "Appointment not found", http.StatusNotFound)
				return
			}
			s.sendError(w, "Failed to get appointment", http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(appt)

	case http.MethodPut:
		s.updateAppointment(w, r, id)

	case http.MethodDelete:
		s.cancelAppointment(w, r, id)

	default:
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) updateAppointment(w http.ResponseWriter, r *http.Request, id int64) {
	var req UpdateAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	appt, err := s.dbManager.GetAppointment(r.Context(), id)
	if err != nil {
		if errors.Is(err, interfaces.ErrAppointmentNotFound) {
			s.sendError(w, "Appointment not found", http.StatusNotFound)
			return
		}
		s.sendError(w, "Failed to get appointment", http.StatusInternalServerError)
		return
	}

	rescheduled := false
	if req.AppointmentDate != nil {
		appt.AppointmentDate = *req.AppointmentDate
		rescheduled = true
	}
	if req.DurationMinutes != nil {
		appt.DurationMinutes = *req.DurationMinutes
		rescheduled = true
	}
	if req.Status != nil {
		if !types.IsValidAppointmentStatus(*req.Status) {
			s.sendError(w, fmt.Sprintf("Invalid status %q", *req.Status), http.StatusBadRequest)
			return
		}
		appt.Status = *req.Status
	}
	if req.Reason != nil {
		appt.Reason = *req.Reason
	}
	if req.Notes != nil {
		appt.Notes = *req.Notes
	}

	if rescheduled {
		if err := appt.Validate(); err != nil {
			s.sendError(w, err.Error(), http.StatusBadRequest)
			return
		}
		conflict, err := s.dbManager.FindConflictingAppointment(r.Context(), appt.DoctorID, appt.AppointmentDate, appt.DurationMinutes, appt.ID)
		if err == nil && conflict != nil {
			s.sendError(w, "Doctor is not available at the requested time", http.StatusConflict)
			return
		}
		if err != nil && !errors.Is(err, interfaces.ErrAppointmentNotFound) {
			s.sendError(w, "Failed to check doctor availability", http.StatusInternalServerError)
			return
		}
	}

	if err := s.dbManager.UpdateAppointment(r.Context(), appt); err != nil {
		s.sendError(w, "Failed to update appointment", http.StatusInternalServerError)
		return
	}

	s.notifier.AppointmentEvent(appt.Summary(), types.ActionUpdated)

	_ = json.NewEncoder(w).Encode(appt)
}

// cancelAppointment marks the appointment cancelled rather than deleting
// the row, so history survives.
func (s *Server) cancelAppointment(w http.ResponseWriter, r *http.Request, id int64) {
	appt, err := s.dbManager.GetAppointment(r.Context(), id)
	if err != nil {
		if errors.Is(err, interfaces.ErrAppointmentNotFound) {
			s.sendError(w, "Appointment not found", http.StatusNotFound)
			return
		}
		s.sendError(w, "Failed to get appointment", http.StatusInternalServerError)
		return
	}

	if appt.Status == types.AppointmentCancelled {
		s.sendError(w, "Appointment already cancelled", http.StatusBadRequest)
		return
	}

	appt.Status = types.AppointmentCancelled
	if err := s.dbManager.UpdateAppointment(r.Context(), appt); err != nil {
		s.sendError(w, "Failed to cancel appointment", http.StatusInternalServerError)
		return
	}

	s.notifier.AppointmentEvent(appt.Summary(), types.ActionCancelled)

	_ = json.NewEncoder(w).Encode(map[string]string{"message": "Appointment cancelled"})
}

// GET /health
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	dbStatus := "healthy"
	if err := s.dbManager.HealthCheck(ctx); err != nil {
		status = "unhealthy"
		dbStatus = fmt.Sprintf("error: %v", err)
	}

	response := HealthResponse{
		Status:      status,
		Timestamp:   time.Now().UTC(),
		Database:    dbStatus,
		Connections: s.registry.Stats(),
	}

	if status == "unhealthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(response)
}

// pathID parses a numeric id from the tail of the URL path. Writes the
// error response itself when the id is missing or malformed.
func (s *Server) pathID(w http.ResponseWriter, path, prefix string) (int64, bool) {
	tail := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if tail == "" {
		s.sendError(w, "ID required", http.StatusBadRequest)
		return 0, false
	}
	if strings.Contains(tail, "/") {
		s.sendError(w, "Not found", http.StatusNotFound)
		return 0, false
	}

	id, err := strconv.ParseInt(tail, 10, 64)
	if err != nil || id <= 0 {
		s.sendError(w, "Invalid ID", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func (s *Server) sendError(w http.ResponseWriter, message string, code int) {
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:   http.StatusText(code),
		Code:    code,
		Message: message,
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}
