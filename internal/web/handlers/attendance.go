package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
)

// AttendanceHandler handles attendance marking, listing and face identification
type AttendanceHandler struct {
	service *attendance.Service
	records database.AttendanceStore
	logger  *slog.Logger
}

// NewAttendanceHandler creates a new attendance handler
func NewAttendanceHandler(service *attendance.Service, records database.AttendanceStore, logger *slog.Logger) *AttendanceHandler {
	return &AttendanceHandler{service: service, records: records, logger: logger}
}

// MarkRequest is the body of POST /attendance/mark
type MarkRequest struct {
	LectureID int64  `json:"lecture_id"`
	StudentID int64  `json:"student_id"`
	IsPresent string `json:"is_present"`
}

// Mark records attendance for one student by hand
func (h *AttendanceHandler) Mark(w http.ResponseWriter, r *http.Request) {
	var req MarkRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.LectureID <= 0 || req.StudentID <= 0 {
		respondError(w, http.StatusBadRequest, "lecture_id and student_id are required")
		return
	}
	status, err := database.ParseAttendanceStatus(strings.ToLower(strings.TrimSpace(req.IsPresent)))
	if err != nil {
		respondError(w, http.StatusBadRequest, "is_present must be present or absent")
		return
	}

	record, err := h.service.MarkManual(r.Context(), req.LectureID, req.StudentID, status)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, record)
}

// MarkFromImage detects students in a lecture photo and marks them present.
// Form fields: lecture_id, optional threshold, and the photo as "image"
// (or "image_file").
func (h *AttendanceHandler) MarkFromImage(w http.ResponseWriter, r *http.Request) {
	if !parseMultipart(w, r) {
		return
	}

	lectureID, err := strconv.ParseInt(strings.TrimSpace(r.FormValue("lecture_id")), 10, 64)
	if err != nil || lectureID <= 0 {
		respondError(w, http.StatusBadRequest, "lecture_id is required")
		return
	}
	threshold, ok := formFloat(r, "threshold")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid threshold")
		return
	}
	files := formFiles(r, "image", "image_file", "file")
	if len(files) == 0 {
		respondError(w, http.StatusBadRequest, "image is required")
		return
	}
	upload, err := readUpload(files[0])
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.service.MarkFromImage(r.Context(), lectureID, upload.Data, threshold)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// List returns attendance records filtered by lecture and/or student
func (h *AttendanceHandler) List(w http.ResponseWriter, r *http.Request) {
	lectureID, okLecture := queryID(r, "lecture_id")
	studentID, okStudent := queryID(r, "student_id")
	if !okLecture || !okStudent {
		respondError(w, http.StatusBadRequest, "invalid lecture_id or student_id")
		return
	}
	records, err := h.records.ListAttendance(r.Context(), database.AttendanceFilter{
		LectureID: lectureID,
		StudentID: studentID,
	})
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, records)
}

// Present lists students marked present for a course or a doctor
func (h *AttendanceHandler) Present(w http.ResponseWriter, r *http.Request) {
	courseID, okCourse := queryID(r, "course_id")
	doctorID, okDoctor := queryID(r, "doctor_id")
	if !okCourse || !okDoctor {
		respondError(w, http.StatusBadRequest, "invalid course_id or doctor_id")
		return
	}
	students, err := h.service.Present(r.Context(), database.PresentFilter{CourseID: courseID, DoctorID: doctorID})
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, students)
}

// IdentifyResponse is returned by POST /identify
type IdentifyResponse struct {
	Threshold float64                  `json:"threshold"`
	Faces     []attendance.FaceMatches `json:"faces"`
}

// Identify ranks enrolled identities for every face in an image without
// recording attendance. Form fields: optional threshold and limit, and the
// photo as "image".
func (h *AttendanceHandler) Identify(w http.ResponseWriter, r *http.Request) {
	if !parseMultipart(w, r) {
		return
	}
	threshold, ok := formFloat(r, "threshold")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid threshold")
		return
	}
	limit := constants.DefaultIdentifyLimit
	if s := strings.TrimSpace(r.FormValue("limit")); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, constants.MaxIdentifyLimit)
	}
	files := formFiles(r, "image", "image_file", "file")
	if len(files) == 0 {
		respondError(w, http.StatusBadRequest, "image is required")
		return
	}
	upload, err := readUpload(files[0])
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	faces, err := h.service.Identify(r.Context(), upload.Data, threshold, limit)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	used := h.service.Threshold()
	if threshold != nil {
		used = *threshold
	}
	respondJSON(w, http.StatusOK, IdentifyResponse{Threshold: used, Faces: faces})
}
