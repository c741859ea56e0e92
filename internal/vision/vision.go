// Package vision talks to the face detection and embedding server.
package vision

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/matching"
)

// State tells whether the vision model can be used.
type State int

const (
	Unavailable State = iota
	Ready
)

func (s State) String() string {
	if s == Ready {
		return "ready"
	}
	return "unavailable"
}

// MarshalJSON encodes the state as its name
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Status describes the detector in use.
type Status struct {
	State  State  `json:"state"`
	Model  string `json:"model,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Face is one detected face.
type Face struct {
	Embedding  matching.Vector
	BBox       [4]float64 // x1, y1, x2, y2 in pixels
	Confidence float64
}

// Area returns the bounding box area in square pixels.
func (f Face) Area() float64 {
	w := f.BBox[2] - f.BBox[0]
	h := f.BBox[3] - f.BBox[1]
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// Detector finds faces in an image and embeds them.
type Detector interface {
	DetectFaces(ctx context.Context, image []byte) ([]Face, error)
	Status() Status
}

// Offline is the detector used when no model is reachable. It never
// detects anything and never fails.
type Offline struct {
	Reason string
}

func (Offline) DetectFaces(context.Context, []byte) ([]Face, error) {
	return nil, nil
}

func (o Offline) Status() Status {
	return Status{State: Unavailable, Reason: o.Reason}
}

// Connect creates the detector once for the process. The client is health-checked
// and the Offline detector is returned if it cannot be reached.
func Connect(ctx context.Context, cfg config.VisionConfig, logger *slog.Logger) Detector {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.URL == "" {
		logger.Warn("vision model unavailable", "reason", "VISION_URL not set")
		return Offline{Reason: "VISION_URL not set"}
	}

	client := NewClient(cfg)
	if err := client.Ping(ctx); err != nil {
		logger.Warn("vision model unavailable", "url", cfg.URL, "error", err)
		return Offline{Reason: err.Error()}
	}
	logger.Info("vision model ready", "url", cfg.URL, "model", cfg.Model)
	return client
}

// LargestFace returns the face with the biggest bounding box.
func LargestFace(faces []Face) (Face, bool) {
	if len(faces) == 0 {
		return Face{}, false
	}
	best := faces[0]
	for _, f := range faces[1:] {
		if f.Area() > best.Area() {
			best = f
		}
	}
	return best, true
}
