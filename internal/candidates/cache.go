package candidates

import (
	"context"
	"sync"
	"time"

	"github.com/kozaktomas/face-attendance/internal/matching"
)

// DefaultCacheTTL is how long a loaded snapshot is reused.
const DefaultCacheTTL = 5 * time.Minute

// Cache is the full-scan Source. It keeps the last decoded snapshot for a
// TTL and hands out copies of it.
type Cache struct {
	loader *Loader
	ttl    time.Duration
	now    func() time.Time

	mu       sync.Mutex
	snap     Snapshot
	loadedAt time.Time
	valid    bool
}

// NewCache creates a cache over loader. A ttl of zero disables caching.
func NewCache(loader *Loader, ttl time.Duration) *Cache {
	return &Cache{loader: loader, ttl: ttl, now: time.Now}
}

// Candidates returns a copy of the full snapshot; queries are not used.
func (c *Cache) Candidates(ctx context.Context, _ []matching.Vector) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.valid && c.ttl > 0 && c.now().Sub(c.loadedAt) < c.ttl {
		return c.snap.Clone(), nil
	}

	snap, err := c.loader.Load(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	c.snap = snap
	c.loadedAt = c.now()
	c.valid = true
	return snap.Clone(), nil
}

// EmbeddingAdded drops the cached snapshot.
func (c *Cache) EmbeddingAdded(matching.Candidate) {
	c.Invalidate()
}

// Invalidate forces the next call to reload from the store.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.valid = false
	c.snap = Snapshot{}
}
