package candidates

import (
	"context"
	"time"

	"github.com/kozaktomas/face-attendance/internal/matching"
)

// Indexed is a Source that narrows the candidate set with an HNSW index.
// The engine still scores every returned candidate exactly.
type Indexed struct {
	index     *Index
	neighbors int
	now       func() time.Time
}

// NewIndexed returns a source yielding, per query, the neighbors*HNSWSearchMultiplier
// nearest embeddings. The index must already be built.
func NewIndexed(index *Index, neighbors int) *Indexed {
	if neighbors <= 0 {
		neighbors = 10
	}
	return &Indexed{index: index, neighbors: neighbors, now: time.Now}
}

// Candidates returns the union of nearest embeddings over all queries,
// each embedding at most once.
func (s *Indexed) Candidates(_ context.Context, queries []matching.Vector) (Snapshot, error) {
	snap := Snapshot{TakenAt: s.now()}
	seen := make(map[int64]struct{})
	k := s.neighbors * HNSWSearchMultiplier
	for _, q := range queries {
		for _, c := range s.index.Search(q, k) {
			if _, ok := seen[c.EmbeddingID]; ok {
				continue
			}
			seen[c.EmbeddingID] = struct{}{}
			c.Vector = c.Vector.Clone()
			snap.Candidates = append(snap.Candidates, c)
		}
	}
	return snap, nil
}

// EmbeddingAdded inserts the embedding into the index.
func (s *Indexed) EmbeddingAdded(c matching.Candidate) {
	s.index.Add(c)
}
