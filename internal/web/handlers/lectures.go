package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// LecturesHandler handles lecture schedules
type LecturesHandler struct {
	lectures database.LectureStore
	courses  database.CourseStore
	logger   *slog.Logger
}

// NewLecturesHandler creates a new lectures handler
func NewLecturesHandler(lectures database.LectureStore, courses database.CourseStore, logger *slog.Logger) *LecturesHandler {
	return &LecturesHandler{lectures: lectures, courses: courses, logger: logger}
}

// CreateLectureRequest is the body of POST /lectures
type CreateLectureRequest struct {
	CourseID  int64  `json:"course_id"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	DayOfWeek string `json:"day_of_week"`
	Room      *int   `json:"room_num"`
}

const clockLayout = "15:04:05"

// parseClock accepts HH:MM:SS or HH:MM.
func parseClock(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{clockLayout, "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Create schedules a lecture for an existing course
func (h *LecturesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateLectureRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	start, okStart := parseClock(req.StartTime)
	end, okEnd := parseClock(req.EndTime)
	if !okStart || !okEnd {
		respondError(w, http.StatusBadRequest, "start_time and end_time must be HH:MM:SS")
		return
	}
	if !end.After(start) {
		respondError(w, http.StatusBadRequest, "end_time must be after start_time")
		return
	}
	day := database.DayOfWeek(strings.ToLower(strings.TrimSpace(req.DayOfWeek)))
	if !day.Valid() {
		respondError(w, http.StatusBadRequest, "day_of_week must be a weekday name")
		return
	}
	if req.CourseID <= 0 {
		respondError(w, http.StatusBadRequest, "course_id is required")
		return
	}
	if _, err := h.courses.GetCourse(r.Context(), req.CourseID); err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}

	lecture := &database.Lecture{
		CourseID:  req.CourseID,
		StartTime: start.Format(clockLayout),
		EndTime:   end.Format(clockLayout),
		DayOfWeek: day,
		Room:      req.Room,
	}
	if err := h.lectures.CreateLecture(r.Context(), lecture); err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, lecture)
}

// List returns lectures, optionally for one course
func (h *LecturesHandler) List(w http.ResponseWriter, r *http.Request) {
	courseID, ok := queryID(r, "course_id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid course_id")
		return
	}
	lectures, err := h.lectures.ListLectures(r.Context(), courseID)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, lectures)
}
