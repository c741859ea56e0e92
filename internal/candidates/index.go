package candidates

import (
	"context"
	"fmt"
	"sync"

	"github.com/coder/hnsw"

	"github.com/kozaktomas/face-attendance/internal/matching"
)

// HNSW index parameters for 512-dim face embeddings
const (
	// HNSWMaxNeighbors (M) is the maximum number of neighbors per node.
	HNSWMaxNeighbors = 16

	// HNSWEfSearch is the search candidate pool size.
	HNSWEfSearch = 100

	// HNSWSearchMultiplier widens each search so identities with several
	// embeddings still leave room for others.
	HNSWSearchMultiplier = 3
)

// Index is an in-memory HNSW graph over stored embeddings, keyed by embedding ID.
type Index struct {
	loader *Loader
	dim    int

	mu          sync.RWMutex
	graph       *hnsw.Graph[int64]
	byEmbedding map[int64]matching.Candidate
	// stored counts the store rows seen, including ones not indexed
	stored int
}

// NewIndex creates an empty index accepting vectors of length dim.
func NewIndex(loader *Loader, dim int) *Index {
	return &Index{
		loader:      loader,
		dim:         dim,
		byEmbedding: make(map[int64]matching.Candidate),
	}
}

func newGraph() *hnsw.Graph[int64] {
	g := hnsw.NewGraph[int64]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors)
	g.EfSearch = HNSWEfSearch
	g.Distance = hnsw.CosineDistance
	return g
}

// Rebuild replaces the graph with the current contents of the store.
func (x *Index) Rebuild(ctx context.Context) error {
	snap, err := x.loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load embeddings for index: %w", err)
	}

	g := newGraph()
	byEmbedding := make(map[int64]matching.Candidate, snap.Len())
	for _, c := range snap.Candidates {
		if !x.accepts(c.Vector) {
			x.loader.logger.Warn("not indexing embedding",
				"embedding_id", c.EmbeddingID,
				"user_id", c.Identity,
				"dim", len(c.Vector),
				"want_dim", x.dim,
			)
			continue
		}
		g.Add(hnsw.MakeNode(c.EmbeddingID, []float32(c.Vector)))
		byEmbedding[c.EmbeddingID] = c
	}

	x.mu.Lock()
	x.graph = g
	x.byEmbedding = byEmbedding
	x.stored = snap.Len() + snap.Skipped
	x.mu.Unlock()
	return nil
}

// accepts reports whether v can be inserted; the graph rejects mixed dimensions.
func (x *Index) accepts(v matching.Vector) bool {
	return len(v) > 0 && len(v) == x.dim
}

// Add inserts a single embedding. Vectors of the wrong length are ignored.
func (x *Index) Add(c matching.Candidate) bool {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.stored++
	if !x.accepts(c.Vector) {
		return false
	}

	if x.graph == nil {
		x.graph = newGraph()
	}
	c.Vector = c.Vector.Clone()
	x.graph.Add(hnsw.MakeNode(c.EmbeddingID, []float32(c.Vector)))
	x.byEmbedding[c.EmbeddingID] = c
	return true
}

// Search returns up to k candidates nearest to query.
func (x *Index) Search(query matching.Vector, k int) []matching.Candidate {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.graph == nil || x.graph.Len() == 0 || len(query) != x.dim || k <= 0 {
		return nil
	}

	neighbors := x.graph.Search([]float32(query), k)
	out := make([]matching.Candidate, 0, len(neighbors))
	for _, n := range neighbors {
		if c, ok := x.byEmbedding[n.Key]; ok {
			out = append(out, c)
		}
	}
	return out
}

// Len returns the number of indexed embeddings.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.byEmbedding)
}
