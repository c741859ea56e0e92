package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/vision"
)

// Pinger checks a backing store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports the state of the store and the vision model
type HealthHandler struct {
	service    *attendance.Service
	embeddings database.EmbeddingReader
	db         Pinger
	logger     *slog.Logger
}

// NewHealthHandler creates a new health handler. db may be nil.
func NewHealthHandler(service *attendance.Service, embeddings database.EmbeddingReader, db Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{service: service, embeddings: embeddings, db: db, logger: logger}
}

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status     string        `json:"status"`
	Database   string        `json:"database"`
	Vision     vision.Status `json:"vision"`
	Embeddings int           `json:"embeddings"`
	Threshold  float64       `json:"threshold"`
}

// Health always answers 200. A failed store or a missing model is reported
// as "degraded".
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:    "ok",
		Database:  "ok",
		Vision:    h.service.VisionStatus(),
		Threshold: h.service.Threshold(),
	}
	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			h.logger.Warn("database ping failed", "error", err)
			resp.Database = "unavailable"
			resp.Status = "degraded"
		}
	}
	if resp.Database == "ok" {
		n, err := h.embeddings.CountEmbeddings(ctx)
		if err != nil {
			h.logger.Warn("counting embeddings failed", "error", err)
			resp.Status = "degraded"
		}
		resp.Embeddings = n
	}
	if resp.Vision.State != vision.Ready {
		resp.Status = "degraded"
	}
	respondJSON(w, http.StatusOK, resp)
}
