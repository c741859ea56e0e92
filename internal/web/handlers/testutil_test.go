package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/candidates"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/mock"
	"github.com/kozaktomas/face-attendance/internal/matching"
	"github.com/kozaktomas/face-attendance/internal/vision"
)

// stubDetector returns preset faces keyed by the image bytes
type stubDetector struct {
	faces map[string][]vision.Face
}

func (d *stubDetector) DetectFaces(_ context.Context, img []byte) ([]vision.Face, error) {
	return d.faces[string(img)], nil
}

func (d *stubDetector) Status() vision.Status {
	return vision.Status{State: vision.Ready, Model: "stub"}
}

// testEnv bundles mock stores and a service wired to them
type testEnv struct {
	users      *mock.MockUserStore
	embeddings *mock.MockEmbeddingStore
	courses    *mock.MockCourseStore
	lectures   *mock.MockLectureStore
	attendance *mock.MockAttendanceStore
	detector   *stubDetector
	service    *attendance.Service
	logger     *slog.Logger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		users:      mock.NewMockUserStore(),
		embeddings: mock.NewMockEmbeddingStore(),
		courses:    mock.NewMockCourseStore(),
		lectures:   mock.NewMockLectureStore(),
		detector:   &stubDetector{faces: map[string][]vision.Face{}},
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	env.attendance = mock.NewMockAttendanceStore(env.users, env.courses, env.lectures)
	env.service = attendance.NewService(attendance.Deps{
		Detector:   env.detector,
		Source:     candidates.NewCache(candidates.NewLoader(env.embeddings, env.logger), 0),
		Users:      env.users,
		Embeddings: env.embeddings,
		Courses:    env.courses,
		Lectures:   env.lectures,
		Attendance: env.attendance,
		Logger:     env.logger,
	}, attendance.Options{RequiredStudentImages: 2})
	return env
}

// seedLecture creates a doctor, a course and one lecture
func (env *testEnv) seedLecture(t *testing.T) (*database.User, *database.Course, *database.Lecture) {
	t.Helper()
	ctx := context.Background()
	doctor := env.users.AddUser(database.User{FirstName: "Gregory", LastName: "House", Email: "house@uni.test", Role: database.RoleDoctor})
	course := &database.Course{Code: "CS101", Name: "Intro", DoctorID: doctor.ID}
	if err := env.courses.CreateCourse(ctx, course); err != nil {
		t.Fatalf("CreateCourse failed: %v", err)
	}
	lecture := &database.Lecture{CourseID: course.ID, StartTime: "09:00:00", EndTime: "10:00:00", DayOfWeek: database.Monday}
	if err := env.lectures.CreateLecture(ctx, lecture); err != nil {
		t.Fatalf("CreateLecture failed: %v", err)
	}
	return doctor, course, lecture
}

// testPNG encodes a tiny image; distinct widths give distinct bytes
func testPNG(t *testing.T, width int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, width, 2))); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

func testFace(v ...float32) vision.Face {
	return vision.Face{Embedding: matching.Vector(v), BBox: [4]float64{1, 1, 20, 20}, Confidence: 0.95}
}

// multipartRequest builds a multipart request with form fields and files
// under fileField
func multipartRequest(t *testing.T, method, path string, fields map[string]string, fileField string, files ...[]byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("failed to write field: %v", err)
		}
	}
	for i, data := range files {
		fw, err := mw.CreateFormFile(fileField, "img"+string(rune('a'+i))+".png")
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		fw.Write(data)
	}
	mw.Close()

	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// jsonRequest builds a request with a JSON body
func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}
	req := httptest.NewRequest(method, path, strings.NewReader(string(data)))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
