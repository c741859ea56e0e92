package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// CoursesHandler handles courses and enrollments
type CoursesHandler struct {
	courses database.CourseStore
	users   database.UserReader
	logger  *slog.Logger
}

// NewCoursesHandler creates a new courses handler
func NewCoursesHandler(courses database.CourseStore, users database.UserReader, logger *slog.Logger) *CoursesHandler {
	return &CoursesHandler{courses: courses, users: users, logger: logger}
}

// CreateCourseRequest is the body of POST /courses
type CreateCourseRequest struct {
	Name        string `json:"course_name"`
	Code        string `json:"course_code"`
	DoctorID    int64  `json:"doctor_id"`
	Description string `json:"description"`
}

// Create adds a course taught by an existing doctor
func (h *CoursesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateCourseRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	course := &database.Course{
		Name:        strings.TrimSpace(req.Name),
		Code:        strings.TrimSpace(req.Code),
		DoctorID:    req.DoctorID,
		Description: strings.TrimSpace(req.Description),
	}
	if course.Name == "" || course.Code == "" || course.DoctorID <= 0 {
		respondError(w, http.StatusBadRequest, "course_name, course_code and doctor_id are required")
		return
	}

	doctor, err := h.users.GetUser(r.Context(), course.DoctorID)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	if doctor.Role != database.RoleDoctor {
		respondError(w, http.StatusBadRequest, "doctor_id must reference a doctor")
		return
	}

	if err := h.courses.CreateCourse(r.Context(), course); err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, course)
}

// List returns all courses
func (h *CoursesHandler) List(w http.ResponseWriter, r *http.Request) {
	courses, err := h.courses.ListCourses(r.Context())
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, courses)
}

// Enroll adds a student to a course
func (h *CoursesHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	var req database.Enrollment
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.StudentID <= 0 || req.CourseID <= 0 {
		respondError(w, http.StatusBadRequest, "student_id and course_id are required")
		return
	}

	if _, err := h.users.GetUser(r.Context(), req.StudentID); err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	if err := h.courses.Enroll(r.Context(), req.StudentID, req.CourseID); err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, req)
}
