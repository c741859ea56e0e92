package attendance

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/kozaktomas/face-attendance/internal/candidates"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/matching"
	"github.com/kozaktomas/face-attendance/internal/vision"
)

// Recognized is a student identified in a lecture photo.
type Recognized struct {
	UserID     int64   `json:"user_id"`
	Name       string  `json:"name"`
	Email      string  `json:"email"`
	Confidence float64 `json:"confidence"`
}

// ScanResult is the outcome of marking attendance from one photo.
type ScanResult struct {
	ScanID             string       `json:"scan_id"`
	LectureID          int64        `json:"lecture_id"`
	RecognizedStudents []Recognized `json:"recognized_students"`
	TotalFacesDetected int          `json:"total_faces_detected"`
}

// MarkFromImage detects the faces in a lecture photo, matches them against
// one candidate snapshot and marks each recognized student present once.
func (s *Service) MarkFromImage(ctx context.Context, lectureID int64, image []byte, threshold *float64) (*ScanResult, error) {
	th, err := s.threshold(threshold)
	if err != nil {
		return nil, err
	}
	lecture, err := s.deps.Lectures.GetLecture(ctx, lectureID)
	if err != nil {
		return nil, fmt.Errorf("failed to load lecture %d: %w", lectureID, err)
	}
	if _, err := vision.DecodeImage(image); err != nil {
		return nil, err
	}

	result := &ScanResult{
		ScanID:             uuid.NewString(),
		LectureID:          lectureID,
		RecognizedStudents: []Recognized{},
	}
	log := s.log.With("scan_id", result.ScanID, "lecture_id", lectureID)

	faces := s.detect(ctx, image)
	result.TotalFacesDetected = len(faces)
	if len(faces) == 0 {
		log.Info("no faces detected")
		return result, nil
	}

	queries := embeddings(faces)
	snap, err := s.deps.Source.Candidates(ctx, queries)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidates: %w", err)
	}
	if s.opts.RestrictToRoster {
		snap, err = s.restrictToRoster(ctx, lecture.CourseID, snap)
		if err != nil {
			return nil, err
		}
	}

	slots := s.deps.Engine.MatchAll(queries, snap.Candidates, th, 1)

	best := make(map[int64]float64)
	for _, slot := range slots {
		m, ok := slot.Best()
		if !ok {
			continue
		}
		if prev, seen := best[m.Identity]; !seen || m.Score > prev {
			best[m.Identity] = m.Score
		}
	}

	for id, score := range best {
		if _, err := s.deps.Attendance.UpsertAttendance(ctx, lectureID, id, database.StatusPresent); err != nil {
			return nil, fmt.Errorf("failed to mark student %d present: %w", id, err)
		}
		r := Recognized{UserID: id, Confidence: score}
		if u, err := s.deps.Users.GetUser(ctx, id); err == nil {
			r.Name = u.FullName()
			r.Email = u.Email
		} else {
			log.Warn("recognized user could not be loaded", "user_id", id, "error", err)
		}
		result.RecognizedStudents = append(result.RecognizedStudents, r)
	}
	sort.Slice(result.RecognizedStudents, func(i, j int) bool {
		a, b := result.RecognizedStudents[i], result.RecognizedStudents[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		return a.UserID < b.UserID
	})

	log.Info("attendance marked from image",
		"faces", len(faces),
		"candidates", snap.Len(),
		"skipped_candidates", snap.Skipped,
		"recognized", len(result.RecognizedStudents),
	)
	return result, nil
}

// restrictToRoster limits the snapshot to students enrolled in the course.
// An empty roster leaves the snapshot unchanged.
func (s *Service) restrictToRoster(ctx context.Context, courseID int64, snap candidates.Snapshot) (candidates.Snapshot, error) {
	ids, err := s.deps.Courses.RosterIDs(ctx, courseID)
	if err != nil {
		return candidates.Snapshot{}, fmt.Errorf("failed to load roster of course %d: %w", courseID, err)
	}
	if len(ids) == 0 {
		return snap, nil
	}
	roster := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		roster[id] = struct{}{}
	}
	return snap.Restrict(roster), nil
}

// MarkManual records a status for one student at one lecture.
func (s *Service) MarkManual(ctx context.Context, lectureID, studentID int64, status database.AttendanceStatus) (*database.Attendance, error) {
	if _, err := s.deps.Lectures.GetLecture(ctx, lectureID); err != nil {
		return nil, fmt.Errorf("failed to load lecture %d: %w", lectureID, err)
	}
	if _, err := s.deps.Users.GetUser(ctx, studentID); err != nil {
		return nil, fmt.Errorf("failed to load student %d: %w", studentID, err)
	}
	markedAt, err := s.deps.Attendance.UpsertAttendance(ctx, lectureID, studentID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to mark attendance: %w", err)
	}
	return &database.Attendance{LectureID: lectureID, StudentID: studentID, Status: status, MarkedAt: markedAt}, nil
}

// Present lists students marked present, by course or by doctor.
func (s *Service) Present(ctx context.Context, filter database.PresentFilter) ([]database.PresentStudent, error) {
	if filter.Empty() {
		return nil, ErrFilterRequired
	}
	students, err := s.deps.Attendance.PresentStudents(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list present students: %w", err)
	}
	return students, nil
}

// FaceMatches are the ranked identities for one detected face.
type FaceMatches struct {
	Face    int              `json:"face"`
	BBox    [4]float64       `json:"bbox"`
	Score   float64          `json:"det_score"`
	Matches []matching.Match `json:"matches"`
}

// Identify ranks up to limit identities for each face in the image without
// recording anything.
func (s *Service) Identify(ctx context.Context, image []byte, threshold *float64, limit int) ([]FaceMatches, error) {
	th, err := s.threshold(threshold)
	if err != nil {
		return nil, err
	}
	if _, err := vision.DecodeImage(image); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = s.opts.LimitPerQuery
	}

	faces := s.detect(ctx, image)
	out := make([]FaceMatches, len(faces))
	if len(faces) == 0 {
		return out, nil
	}

	queries := embeddings(faces)
	snap, err := s.deps.Source.Candidates(ctx, queries)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidates: %w", err)
	}
	slots := s.deps.Engine.MatchAll(queries, snap.Candidates, th, limit)
	for i, f := range faces {
		matches := slots[i].Matches
		if matches == nil {
			matches = []matching.Match{}
		}
		out[i] = FaceMatches{Face: i, BBox: f.BBox, Score: f.Confidence, Matches: matches}
	}
	return out, nil
}
