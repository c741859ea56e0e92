package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/vision"
)

func TestRespondJSON_SetsContentTypeAndStatus(t *testing.T) {
	recorder := httptest.NewRecorder()
	respondJSON(recorder, http.StatusCreated, map[string]string{"status": "ok"})

	if ct := recorder.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type 'application/json', got '%s'", ct)
	}
	if recorder.Code != http.StatusCreated {
		t.Errorf("expected status %d, got %d", http.StatusCreated, recorder.Code)
	}
}

func TestRespondJSON_NilData(t *testing.T) {
	recorder := httptest.NewRecorder()
	respondJSON(recorder, http.StatusOK, nil)

	if recorder.Body.Len() != 0 {
		t.Errorf("expected empty body for nil data, got '%s'", recorder.Body.String())
	}
}

func TestRespondError_ContainsErrorKey(t *testing.T) {
	recorder := httptest.NewRecorder()
	respondError(recorder, http.StatusBadRequest, "something went wrong")

	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if result["error"] != "something went wrong" {
		t.Errorf("expected error 'something went wrong', got '%s'", result["error"])
	}
}

func TestRespondServiceError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{"not found", fmt.Errorf("lecture 3: %w", database.ErrNotFound), http.StatusNotFound, "not found"},
		{"duplicate email", database.ErrDuplicateEmail, http.StatusBadRequest, "User with this email already exists"},
		{"duplicate course", fmt.Errorf("x: %w", database.ErrDuplicateCourseCode), http.StatusBadRequest, "Course with this code already exists"},
		{"invalid image", fmt.Errorf("%w: zero size", vision.ErrInvalidImage), http.StatusBadRequest, "Invalid image file"},
		{"image count", fmt.Errorf("%w: need 5", attendance.ErrImageCount), http.StatusBadRequest, "need 5"},
		{"invalid role", attendance.ErrInvalidRole, http.StatusBadRequest, "invalid role"},
		{"filter required", attendance.ErrFilterRequired, http.StatusBadRequest, "Either course_id or doctor_id must be provided"},
		{"unexpected", errors.New("connection reset"), http.StatusInternalServerError, "internal server error"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var logs strings.Builder
			logger := slog.New(slog.NewTextHandler(&logs, nil))
			recorder := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/v1/x", nil)

			respondServiceError(recorder, req, logger, tc.err)

			assertStatusCode(t, recorder, tc.wantStatus)
			if !strings.Contains(recorder.Body.String(), tc.wantBody) {
				t.Errorf("expected body to contain %q, got %s", tc.wantBody, recorder.Body.String())
			}
			if tc.wantStatus == http.StatusInternalServerError && !strings.Contains(logs.String(), "connection reset") {
				t.Errorf("expected unexpected error to be logged, got %q", logs.String())
			}
		})
	}
}

func TestSanitizeForLog(t *testing.T) {
	if got := sanitizeForLog("a\nb\rc"); got != "abc" {
		t.Errorf("expected 'abc', got %q", got)
	}
}

func TestQueryID(t *testing.T) {
	tests := []struct {
		query  string
		wantOK bool
		want   *int64
	}{
		{"", true, nil},
		{"?course_id=7", true, ptr(int64(7))},
		{"?course_id=abc", false, nil},
		{"?course_id=-1", false, nil},
	}
	for _, tc := range tests {
		req := httptest.NewRequest(http.MethodGet, "/x"+tc.query, nil)
		got, ok := queryID(req, "course_id")
		if ok != tc.wantOK {
			t.Errorf("%q: expected ok=%v, got %v", tc.query, tc.wantOK, ok)
		}
		if (got == nil) != (tc.want == nil) || (got != nil && *got != *tc.want) {
			t.Errorf("%q: unexpected id %v", tc.query, got)
		}
	}
}

func TestFormFloat(t *testing.T) {
	tests := []struct {
		value  string
		wantOK bool
		want   *float64
	}{
		{"", true, nil},
		{"0.45", true, ptr(0.45)},
		{" -1 ", true, ptr(-1.0)},
		{"high", false, nil},
		{"NaN", false, nil},
		{"Inf", false, nil},
		{"-infinity", false, nil},
	}
	for _, tc := range tests {
		req := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader("threshold="+url.QueryEscape(tc.value)))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		got, ok := formFloat(req, "threshold")
		if ok != tc.wantOK {
			t.Errorf("%q: expected ok=%v, got %v", tc.value, tc.wantOK, ok)
		}
		if (got == nil) != (tc.want == nil) || (got != nil && *got != *tc.want) {
			t.Errorf("%q: unexpected value %v", tc.value, got)
		}
	}
}

func TestHealthCheck(t *testing.T) {
	recorder := httptest.NewRecorder()
	HealthCheck(recorder, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assertStatusCode(t, recorder, http.StatusOK)
}

func ptr[T any](v T) *T { return &v }
