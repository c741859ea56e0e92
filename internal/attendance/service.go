// Package attendance implements enrollment and attendance marking on top of
// the vision model, the candidate sources and the matching engine.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/kozaktomas/face-attendance/internal/candidates"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/matching"
	"github.com/kozaktomas/face-attendance/internal/vision"
)

// Workflow errors
var (
	ErrImageCount     = errors.New("wrong number of images")
	ErrInvalidRole    = errors.New("invalid role")
	ErrInvalidInput   = errors.New("invalid input")
	ErrFilterRequired = errors.New("either course_id or doctor_id must be provided")
)

// Deps are the collaborators of the service.
type Deps struct {
	Detector   vision.Detector
	Source     candidates.Source
	Users      database.UserWriter
	Embeddings database.EmbeddingWriter
	Courses    database.CourseStore
	Lectures   database.LectureStore
	Attendance database.AttendanceStore
	Engine     *matching.Engine
	Logger     *slog.Logger
}

// Options tune matching and enrollment.
type Options struct {
	Threshold             float64
	LimitPerQuery         int
	RequiredStudentImages int
	RestrictToRoster      bool
	// ExpectedDim rejects enrollment embeddings of another length when set.
	ExpectedDim int
	// UploadDir keeps enrollment images on disk when set.
	UploadDir string
	// Model is recorded with each stored embedding.
	Model string
}

// Service runs the attendance workflows.
type Service struct {
	deps Deps
	opts Options
	log  *slog.Logger
}

// NewService creates the service. Zero options take the usual defaults.
func NewService(deps Deps, opts Options) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Engine == nil {
		deps.Engine = &matching.Engine{Logger: deps.Logger}
	}
	if deps.Detector == nil {
		deps.Detector = vision.Offline{Reason: "no detector configured"}
	}
	if opts.Threshold == 0 {
		opts.Threshold = matching.DefaultThreshold
	}
	if opts.LimitPerQuery <= 0 {
		opts.LimitPerQuery = 1
	}
	if opts.RequiredStudentImages <= 0 {
		opts.RequiredStudentImages = 5
	}
	return &Service{deps: deps, opts: opts, log: deps.Logger}
}

// VisionStatus reports the state of the injected detector.
func (s *Service) VisionStatus() vision.Status {
	return s.deps.Detector.Status()
}

// Threshold returns the default match threshold.
func (s *Service) Threshold() float64 {
	return s.opts.Threshold
}

// detect runs face detection. Failures degrade to no faces.
func (s *Service) detect(ctx context.Context, image []byte) []vision.Face {
	faces, err := s.deps.Detector.DetectFaces(ctx, image)
	if err != nil {
		s.log.Warn("face detection failed, treating as no faces", "error", err)
		return nil
	}
	return faces
}

func (s *Service) threshold(override *float64) (float64, error) {
	if override == nil {
		return s.opts.Threshold, nil
	}
	if math.IsNaN(*override) || *override < -1 || *override > 1 {
		return 0, fmt.Errorf("%w: threshold must be within [-1, 1]", ErrInvalidInput)
	}
	return *override, nil
}

func embeddings(faces []vision.Face) []matching.Vector {
	out := make([]matching.Vector, len(faces))
	for i, f := range faces {
		out[i] = f.Embedding
	}
	return out
}
