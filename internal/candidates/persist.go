package candidates

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/gofrs/flock"

	"github.com/kozaktomas/face-attendance/internal/matching"
)

const indexMetaVersion = 1

// ErrStaleIndex is returned by Load when the saved index cannot be reused.
var ErrStaleIndex = errors.New("saved index is stale")

// IndexMeta is written next to a saved graph as <path>.meta.
type IndexMeta struct {
	Version int   `json:"version"`
	Dim     int   `json:"dim"`
	Count   int   `json:"count"` // store rows the graph was built from
	SavedAt int64 `json:"saved_at"`
	// Identities maps embedding ID to user ID.
	Identities map[int64]int64 `json:"identities"`
}

// lockFile takes the lock guarding path, retrying until timeout.
func lockFile(path string, exclusive bool, timeout time.Duration) (func(), error) {
	l := flock.New(path + ".lock")
	deadline := time.Now().Add(timeout)
	for {
		var locked bool
		var err error
		if exclusive {
			locked, err = l.TryLock()
		} else {
			locked, err = l.TryRLock()
		}
		if err != nil {
			return nil, fmt.Errorf("cannot lock %s: %w", path, err)
		}
		if locked {
			return func() { _ = l.Unlock() }, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("index %s is locked by another process", path)
		}
		time.Sleep(100 * time.Millisecond)
	}
}

// Save writes the graph to path and its metadata to path+".meta".
// An empty index removes both files.
func (x *Index) Save(path string) error {
	unlock, err := lockFile(path, true, 10*time.Second)
	if err != nil {
		return err
	}
	defer unlock()

	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.graph == nil || len(x.byEmbedding) == 0 {
		_ = os.Remove(path)
		_ = os.Remove(path + ".meta")
		return nil
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp) //nolint:gosec // path is from trusted config
	if err != nil {
		return fmt.Errorf("failed to create index file: %w", err)
	}
	w := bufio.NewWriter(f)
	if err := x.graph.Export(w); err != nil {
		f.Close()
		return fmt.Errorf("failed to export index graph: %w", err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("failed to write index graph: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close index file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace index file: %w", err)
	}

	meta := IndexMeta{
		Version:    indexMetaVersion,
		Dim:        x.dim,
		Count:      x.stored,
		SavedAt:    time.Now().Unix(),
		Identities: make(map[int64]int64, len(x.byEmbedding)),
	}
	for id, c := range x.byEmbedding {
		meta.Identities[id] = c.Identity
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal index metadata: %w", err)
	}
	if err := os.WriteFile(path+".meta", data, 0o600); err != nil {
		return fmt.Errorf("failed to write index metadata: %w", err)
	}
	return nil
}

// Load replaces the graph with the one saved at path. It returns
// ErrStaleIndex when the files are missing, were written for another
// dimension, or do not hold wantCount embeddings.
func (x *Index) Load(path string, wantCount int) (IndexMeta, error) {
	unlock, err := lockFile(path, false, 10*time.Second)
	if err != nil {
		return IndexMeta{}, err
	}
	defer unlock()

	var meta IndexMeta
	data, err := os.ReadFile(path + ".meta") //nolint:gosec // path is from trusted config
	if errors.Is(err, os.ErrNotExist) {
		return meta, fmt.Errorf("%w: no metadata at %s", ErrStaleIndex, path)
	}
	if err != nil {
		return meta, fmt.Errorf("failed to read index metadata: %w", err)
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("failed to parse index metadata: %w", err)
	}
	if meta.Version != indexMetaVersion || meta.Dim != x.dim {
		return meta, fmt.Errorf("%w: version %d dim %d", ErrStaleIndex, meta.Version, meta.Dim)
	}
	if meta.Count != wantCount {
		return meta, fmt.Errorf("%w: %d embeddings saved, %d stored", ErrStaleIndex, meta.Count, wantCount)
	}

	f, err := os.Open(path) //nolint:gosec // path is from trusted config
	if err != nil {
		return meta, fmt.Errorf("failed to open index file: %w", err)
	}
	defer f.Close()

	g := newGraph()
	if err := g.Import(bufio.NewReader(f)); err != nil {
		return meta, fmt.Errorf("failed to import index graph: %w", err)
	}

	byEmbedding := make(map[int64]matching.Candidate, len(meta.Identities))
	for id, identity := range meta.Identities {
		vec, ok := g.Lookup(id)
		if !ok {
			return meta, fmt.Errorf("%w: embedding %d missing from graph", ErrStaleIndex, id)
		}
		byEmbedding[id] = matching.Candidate{Identity: identity, EmbeddingID: id, Vector: matching.Vector(vec)}
	}

	x.mu.Lock()
	x.graph = g
	x.byEmbedding = byEmbedding
	x.stored = meta.Count
	x.mu.Unlock()
	return meta, nil
}
