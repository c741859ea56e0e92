// Package candidates builds the candidate sets the matching engine scans:
// a full-scan snapshot with caching, or an HNSW-narrowed subset.
package candidates

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/matching"
)

// Store is the record-store seam the snapshot is read from.
type Store interface {
	FetchAllEmbeddings(ctx context.Context) ([]database.RawEmbedding, error)
}

// Source supplies the candidates for one matching pass.
type Source interface {
	// Candidates returns one snapshot for the whole batch of queries.
	Candidates(ctx context.Context, queries []matching.Vector) (Snapshot, error)
	// EmbeddingAdded tells the source a new embedding was stored.
	EmbeddingAdded(c matching.Candidate)
}

// Snapshot is a point-in-time copy of the stored embeddings.
type Snapshot struct {
	Candidates []matching.Candidate
	// Skipped counts records whose stored vector failed to decode.
	Skipped int
	TakenAt time.Time
}

// Len returns the number of candidates.
func (s Snapshot) Len() int {
	return len(s.Candidates)
}

// Clone deep-copies the snapshot so callers never share vectors.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Candidates: make([]matching.Candidate, len(s.Candidates)),
		Skipped:    s.Skipped,
		TakenAt:    s.TakenAt,
	}
	for i, c := range s.Candidates {
		c.Vector = c.Vector.Clone()
		out.Candidates[i] = c
	}
	return out
}

// Restrict keeps only candidates whose identity is in identities.
func (s Snapshot) Restrict(identities map[int64]struct{}) Snapshot {
	out := Snapshot{Skipped: s.Skipped, TakenAt: s.TakenAt}
	for _, c := range s.Candidates {
		if _, ok := identities[c.Identity]; ok {
			out.Candidates = append(out.Candidates, c)
		}
	}
	return out
}

// Loader reads and decodes every stored embedding.
type Loader struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// NewLoader creates a loader over store.
func NewLoader(store Store, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{store: store, logger: logger, now: time.Now}
}

// Load performs a full scan. Records that fail to decode are logged and
// left out of the snapshot.
func (l *Loader) Load(ctx context.Context) (Snapshot, error) {
	rows, err := l.store.FetchAllEmbeddings(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to fetch embeddings: %w", err)
	}

	snap := Snapshot{
		Candidates: make([]matching.Candidate, 0, len(rows)),
		TakenAt:    l.now(),
	}
	for _, row := range rows {
		vec, err := Decode(row.Raw)
		if err != nil {
			snap.Skipped++
			l.logger.Warn("skipping undecodable embedding",
				"embedding_id", row.ID,
				"user_id", row.UserID,
				"error", err,
			)
			continue
		}
		snap.Candidates = append(snap.Candidates, matching.Candidate{
			Identity:    row.UserID,
			EmbeddingID: row.ID,
			Vector:      vec,
		})
	}
	return snap, nil
}
