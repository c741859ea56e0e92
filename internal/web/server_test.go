package web

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/candidates"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/mock"
)

func newTestServer(t *testing.T) (*Server, *mock.MockUserStore) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	users := mock.NewMockUserStore()
	embeddings := mock.NewMockEmbeddingStore()
	courses := mock.NewMockCourseStore()
	lectures := mock.NewMockLectureStore()
	records := mock.NewMockAttendanceStore(users, courses, lectures)

	service := attendance.NewService(attendance.Deps{
		Source:     candidates.NewCache(candidates.NewLoader(embeddings, logger), 0),
		Users:      users,
		Embeddings: embeddings,
		Courses:    courses,
		Lectures:   lectures,
		Attendance: records,
		Logger:     logger,
	}, attendance.Options{})

	cfg := config.Defaults()
	cfg.Web.AllowedOrigins = []string{"https://attendance.example.edu"}
	return NewServer(&cfg, Deps{
		Service:    service,
		Users:      users,
		Embeddings: embeddings,
		Courses:    courses,
		Lectures:   lectures,
		Attendance: records,
		Logger:     logger,
	}), users
}

func TestServer_Routes(t *testing.T) {
	s, users := newTestServer(t)
	users.AddUser(database.User{FirstName: "Gregory", LastName: "House", Email: "house@uni.test", Role: database.RoleDoctor})

	tests := []struct {
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{http.MethodGet, "/healthz", "", http.StatusOK},
		{http.MethodGet, "/api/v1/health", "", http.StatusOK},
		{http.MethodGet, "/api/v1/users", "", http.StatusOK},
		{http.MethodGet, "/api/v1/users/1", "", http.StatusOK},
		{http.MethodGet, "/api/v1/users/2", "", http.StatusNotFound},
		{http.MethodPost, "/api/v1/courses", `{"course_name":"Diagnostics","course_code":"MED200","doctor_id":1}`, http.StatusCreated},
		{http.MethodGet, "/api/v1/courses", "", http.StatusOK},
		{http.MethodPost, "/api/v1/lectures", `{"course_id":1,"start_time":"09:00","end_time":"10:00","day_of_week":"friday"}`, http.StatusCreated},
		{http.MethodGet, "/api/v1/lectures?course_id=1", "", http.StatusOK},
		{http.MethodGet, "/api/v1/attendance", "", http.StatusOK},
		{http.MethodGet, "/api/v1/attendance/present", "", http.StatusBadRequest},
		{http.MethodGet, "/api/v1/attendance/present?doctor_id=1", "", http.StatusOK},
		{http.MethodGet, "/api/v1/nope", "", http.StatusNotFound},
		{http.MethodDelete, "/api/v1/users/1", "", http.StatusMethodNotAllowed},
	}

	for _, tc := range tests {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			var body io.Reader
			if tc.body != "" {
				body = strings.NewReader(tc.body)
			}
			req := httptest.NewRequest(tc.method, tc.path, body)
			if tc.body != "" {
				req.Header.Set("Content-Type", "application/json")
			}
			recorder := httptest.NewRecorder()
			s.Router().ServeHTTP(recorder, req)
			if recorder.Code != tc.wantStatus {
				t.Errorf("expected status %d, got %d\nBody: %s", tc.wantStatus, recorder.Code, recorder.Body.String())
			}
		})
	}
}

func TestServer_HealthReportsOfflineVision(t *testing.T) {
	s, _ := newTestServer(t)
	recorder := httptest.NewRecorder()
	s.Router().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	var body map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body["status"] != "degraded" {
		t.Errorf("expected degraded status without a detector, got %v", body["status"])
	}
	vision, _ := body["vision"].(map[string]any)
	if vision["state"] != "unavailable" {
		t.Errorf("expected unavailable vision, got %v", vision)
	}
}

func TestServer_CORSHeaders(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/courses", nil)
	req.Header.Set("Origin", "https://attendance.example.edu")
	recorder := httptest.NewRecorder()
	s.Router().ServeHTTP(recorder, req)

	if got := recorder.Header().Get("Access-Control-Allow-Origin"); got != "https://attendance.example.edu" {
		t.Errorf("expected CORS header for configured origin, got %q", got)
	}
	if recorder.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected security headers")
	}
}
