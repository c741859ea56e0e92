package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/vision"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps store and workflow errors to status codes.
// Unexpected errors are logged and hidden from the client.
func respondServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, database.ErrDuplicateEmail):
		respondError(w, http.StatusBadRequest, "User with this email already exists")
	case errors.Is(err, database.ErrDuplicateCourseCode):
		respondError(w, http.StatusBadRequest, "Course with this code already exists")
	case errors.Is(err, vision.ErrInvalidImage):
		respondError(w, http.StatusBadRequest, "Invalid image file")
	case errors.Is(err, attendance.ErrImageCount),
		errors.Is(err, attendance.ErrInvalidRole),
		errors.Is(err, attendance.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, attendance.ErrFilterRequired):
		respondError(w, http.StatusBadRequest, "Either course_id or doctor_id must be provided")
	default:
		logger.Error("request failed",
			"method", r.Method,
			"path", sanitizeForLog(r.URL.Path),
			"error", err,
		)
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}

// decodeJSON reads the request body into v.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	return dec.Decode(v) //nolint:wrapcheck // handlers respond with a fixed message
}

// pathID parses a positive integer URL parameter.
func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// queryID parses an optional positive integer query parameter.
// A missing parameter yields nil; a malformed one reports false.
func queryID(r *http.Request, name string) (*int64, bool) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return nil, true
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return nil, false
	}
	return &id, true
}

// formFloat parses an optional float form value.
func formFloat(r *http.Request, name string) (*float64, bool) {
	s := strings.TrimSpace(r.FormValue(name))
	if s == "" {
		return nil, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, false
	}
	return &f, true
}

// HealthCheck handles the liveness endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
