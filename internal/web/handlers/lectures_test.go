package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/database"
)

func TestParseClock(t *testing.T) {
	for _, s := range []string{"09:30", "09:30:00", " 23:59:59 "} {
		if _, ok := parseClock(s); !ok {
			t.Errorf("parseClock(%q) should succeed", s)
		}
	}
	for _, s := range []string{"", "9.30", "25:00", "noon"} {
		if _, ok := parseClock(s); ok {
			t.Errorf("parseClock(%q) should fail", s)
		}
	}
}

func TestLecturesHandler_Create(t *testing.T) {
	env := newTestEnv(t)
	h := NewLecturesHandler(env.lectures, env.courses, env.logger)
	_, course, _ := env.seedLecture(t)
	room := 204

	recorder := httptest.NewRecorder()
	h.Create(recorder, jsonRequest(t, http.MethodPost, "/api/v1/lectures", CreateLectureRequest{
		CourseID: course.ID, StartTime: "13:00", EndTime: "14:30", DayOfWeek: "Wednesday", Room: &room,
	}))
	assertStatusCode(t, recorder, http.StatusCreated)
	var lecture database.Lecture
	parseJSONResponse(t, recorder, &lecture)
	if lecture.StartTime != "13:00:00" || lecture.EndTime != "14:30:00" || lecture.DayOfWeek != database.Wednesday {
		t.Errorf("unexpected lecture: %+v", lecture)
	}
	if lecture.Room == nil || *lecture.Room != room {
		t.Errorf("expected room %d, got %v", room, lecture.Room)
	}

	tests := []struct {
		name       string
		req        CreateLectureRequest
		wantStatus int
		wantError  string
	}{
		{"bad time", CreateLectureRequest{CourseID: course.ID, StartTime: "9am", EndTime: "10:00", DayOfWeek: "monday"}, http.StatusBadRequest, "start_time and end_time must be HH:MM:SS"},
		{"end before start", CreateLectureRequest{CourseID: course.ID, StartTime: "10:00", EndTime: "10:00", DayOfWeek: "monday"}, http.StatusBadRequest, "end_time must be after start_time"},
		{"bad day", CreateLectureRequest{CourseID: course.ID, StartTime: "10:00", EndTime: "11:00", DayOfWeek: "someday"}, http.StatusBadRequest, "day_of_week must be a weekday name"},
		{"missing course", CreateLectureRequest{StartTime: "10:00", EndTime: "11:00", DayOfWeek: "monday"}, http.StatusBadRequest, "course_id is required"},
		{"unknown course", CreateLectureRequest{CourseID: 999, StartTime: "10:00", EndTime: "11:00", DayOfWeek: "monday"}, http.StatusNotFound, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			h.Create(recorder, jsonRequest(t, http.MethodPost, "/api/v1/lectures", tc.req))
			assertStatusCode(t, recorder, tc.wantStatus)
			if tc.wantError != "" {
				assertJSONError(t, recorder, tc.wantError)
			}
		})
	}
}

func TestLecturesHandler_List(t *testing.T) {
	env := newTestEnv(t)
	h := NewLecturesHandler(env.lectures, env.courses, env.logger)
	_, course, lecture := env.seedLecture(t)

	recorder := httptest.NewRecorder()
	h.List(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/lectures?course_id=1", nil))
	assertStatusCode(t, recorder, http.StatusOK)
	var lectures []database.Lecture
	parseJSONResponse(t, recorder, &lectures)
	if len(lectures) != 1 || lectures[0].ID != lecture.ID || lectures[0].CourseID != course.ID {
		t.Errorf("unexpected lectures: %+v", lectures)
	}

	recorder = httptest.NewRecorder()
	h.List(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/lectures?course_id=42", nil))
	assertStatusCode(t, recorder, http.StatusOK)
	parseJSONResponse(t, recorder, &lectures)
	if len(lectures) != 0 {
		t.Errorf("expected no lectures, got %d", len(lectures))
	}

	recorder = httptest.NewRecorder()
	h.List(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/lectures?course_id=abc", nil))
	assertStatusCode(t, recorder, http.StatusBadRequest)
}
