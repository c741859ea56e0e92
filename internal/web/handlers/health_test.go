package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/vision"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

// healthBody mirrors HealthResponse as a client sees it on the wire
type healthBody struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Vision   struct {
		State  string `json:"state"`
		Model  string `json:"model"`
		Reason string `json:"reason"`
	} `json:"vision"`
	Embeddings int     `json:"embeddings"`
	Threshold  float64 `json:"threshold"`
}

func TestHealthHandler(t *testing.T) {
	env := newTestEnv(t)
	env.embeddings.AddRaw(database.RawEmbedding{ID: 1, UserID: 1, Raw: []byte("[1,0]")})
	healthy := pingFunc(func(context.Context) error { return nil })

	recorder := httptest.NewRecorder()
	NewHealthHandler(env.service, env.embeddings, healthy, env.logger).Health(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	assertStatusCode(t, recorder, http.StatusOK)
	var resp healthBody
	parseJSONResponse(t, recorder, &resp)
	if resp.Status != "ok" || resp.Database != "ok" || resp.Embeddings != 1 || resp.Vision.State != "ready" || resp.Vision.Model != "stub" {
		t.Errorf("unexpected health: %+v", resp)
	}
	if resp.Threshold != 0.6 {
		t.Errorf("expected default threshold 0.6, got %v", resp.Threshold)
	}
}

func TestHealthHandler_Degraded(t *testing.T) {
	env := newTestEnv(t)

	recorder := httptest.NewRecorder()
	failing := pingFunc(func(context.Context) error { return errors.New("connection refused") })
	NewHealthHandler(env.service, env.embeddings, failing, env.logger).Health(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	assertStatusCode(t, recorder, http.StatusOK)
	var resp healthBody
	parseJSONResponse(t, recorder, &resp)
	if resp.Status != "degraded" || resp.Database != "unavailable" {
		t.Errorf("expected degraded database, got %+v", resp)
	}

	offline := attendance.NewService(attendance.Deps{
		Detector: vision.Offline{Reason: "model not loaded"},
		Logger:   env.logger,
	}, attendance.Options{})
	recorder = httptest.NewRecorder()
	NewHealthHandler(offline, env.embeddings, nil, env.logger).Health(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	resp = healthBody{}
	parseJSONResponse(t, recorder, &resp)
	if resp.Status != "degraded" || resp.Database != "ok" || resp.Vision.State != "unavailable" || resp.Vision.Reason != "model not loaded" {
		t.Errorf("expected degraded vision, got %+v", resp)
	}
}
