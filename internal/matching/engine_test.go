package matching

import (
	"bytes"
	"log/slog"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func randomVector(r *rand.Rand, dim int) Vector {
	v := make(Vector, dim)
	for i := range v {
		v[i] = float32(r.NormFloat64())
	}
	return v
}

func unit(v Vector) Vector {
	var n float64
	for _, x := range v {
		n += float64(x) * float64(x)
	}
	n = math.Sqrt(n)
	out := make(Vector, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / n)
	}
	return out
}

// atScore returns a vector whose similarity to (1, 0, 0) is s.
func atScore(s float64) Vector {
	return Vector{float32(s), float32(math.Sqrt(1 - s*s)), 0}
}

var axis = Vector{1, 0, 0}

func quietEngine(buf *bytes.Buffer) *Engine {
	return &Engine{Logger: slog.New(slog.NewTextHandler(buf, nil))}
}

func TestFindBestMatch_Empty(t *testing.T) {
	e := &Engine{}
	for _, threshold := range []float64{-1, 0, 0.6, 1} {
		_, ok := e.FindBestMatch(axis, nil, threshold)
		assert.False(t, ok)
		_, ok = e.FindBestMatch(axis, []Candidate{}, threshold)
		assert.False(t, ok)
	}
}

func TestFindBestMatch_ThresholdInclusive(t *testing.T) {
	e := &Engine{}
	c := Candidate{Identity: 7, EmbeddingID: 1, Vector: atScore(0.75)}
	score, err := Similarity(axis, c.Vector)
	require.NoError(t, err)

	m, ok := e.FindBestMatch(axis, []Candidate{c}, score)
	require.True(t, ok)
	assert.Equal(t, int64(7), m.Identity)
	assert.Equal(t, score, m.Score)

	_, ok = e.FindBestMatch(axis, []Candidate{c}, math.Nextafter(score, 2))
	assert.False(t, ok)
}

func TestFindBestMatch_PicksHighest(t *testing.T) {
	e := &Engine{}
	candidates := []Candidate{
		{Identity: 1, EmbeddingID: 1, Vector: atScore(0.7)},
		{Identity: 2, EmbeddingID: 2, Vector: atScore(0.9)},
		{Identity: 3, EmbeddingID: 3, Vector: atScore(0.8)},
	}
	m, ok := e.FindBestMatch(axis, candidates, 0.6)
	require.True(t, ok)
	assert.Equal(t, int64(2), m.Identity)
	assert.InDelta(t, 0.9, m.Score, 1e-6)
}

func TestFindBestMatch_TieKeepsFirst(t *testing.T) {
	e := &Engine{}
	candidates := []Candidate{
		{Identity: 4, EmbeddingID: 1, Vector: Vector{1, 1, 0}},
		{Identity: 9, EmbeddingID: 2, Vector: Vector{1, 1, 0}},
	}
	for range 10 {
		m, ok := e.FindBestMatch(axis, candidates, 0.1)
		require.True(t, ok)
		assert.Equal(t, int64(4), m.Identity)
	}
}

func TestFindBestMatch_SkipsMismatchedCandidate(t *testing.T) {
	var buf bytes.Buffer
	e := quietEngine(&buf)
	candidates := []Candidate{
		{Identity: 1, EmbeddingID: 10, Vector: Vector{1, 0}},
		{Identity: 2, EmbeddingID: 11, Vector: atScore(0.8)},
	}
	m, ok := e.FindBestMatch(axis, candidates, 0.6)
	require.True(t, ok)
	assert.Equal(t, int64(2), m.Identity)
	assert.Contains(t, buf.String(), "skipping candidate")
	assert.Contains(t, buf.String(), "embedding_id=10")
}

func TestFindBestMatch_OnlyMismatched(t *testing.T) {
	var buf bytes.Buffer
	e := quietEngine(&buf)
	_, ok := e.FindBestMatch(axis, []Candidate{{Identity: 1, Vector: Vector{1}}}, -1)
	assert.False(t, ok)
}

func TestEngine_NaNThresholdMatchesNothing(t *testing.T) {
	e := &Engine{}
	candidates := []Candidate{
		{Identity: 1, EmbeddingID: 1, Vector: Vector{0, 1, 0}},
		{Identity: 2, EmbeddingID: 2, Vector: atScore(0.99)},
	}
	_, ok := e.FindBestMatch(axis, candidates, math.NaN())
	assert.False(t, ok)
	assert.Empty(t, e.Rank(axis, candidates, math.NaN(), 5))

	for _, limit := range []int{1, 3} {
		slots := e.MatchAll([]Vector{axis, {0, 1, 0}}, candidates, math.NaN(), limit)
		require.Len(t, slots, 2)
		for _, slot := range slots {
			assert.Empty(t, slot.Matches)
		}
	}
}

func TestCollapseByIdentity(t *testing.T) {
	pairs := []Match{
		{Identity: 1, Score: 0.9},
		{Identity: 1, Score: 0.95},
		{Identity: 2, Score: 0.8},
	}
	assert.Equal(t, []Match{{Identity: 1, Score: 0.95}, {Identity: 2, Score: 0.8}}, CollapseByIdentity(pairs, 10))
	assert.Equal(t, []Match{{Identity: 1, Score: 0.95}}, CollapseByIdentity(pairs, 1))
	assert.Len(t, CollapseByIdentity(pairs, 0), 2)

	// input is not mutated
	assert.Equal(t, 0.9, pairs[0].Score)
}

func TestCollapseByIdentity_Empty(t *testing.T) {
	got := CollapseByIdentity(nil, 5)
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestMatchAll_CollapsesPerIdentity(t *testing.T) {
	e := &Engine{}
	candidates := []Candidate{
		{Identity: 1, EmbeddingID: 1, Vector: atScore(0.9)},
		{Identity: 1, EmbeddingID: 2, Vector: atScore(0.95)},
		{Identity: 2, EmbeddingID: 3, Vector: atScore(0.8)},
	}

	slots := e.MatchAll([]Vector{axis}, candidates, 0.6, 5)
	require.Len(t, slots, 1)
	got := slots[0].Matches
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].Identity)
	assert.InDelta(t, 0.95, got[0].Score, 1e-6)
	assert.Equal(t, int64(2), got[1].Identity)
	assert.InDelta(t, 0.8, got[1].Score, 1e-6)

	best, ok := slots[0].Best()
	require.True(t, ok)
	assert.Equal(t, int64(1), best.Identity)
}

func TestMatchAll_EndToEnd512(t *testing.T) {
	r := newRand(2024)
	const dim = 512

	a := randomVector(r, dim)
	b := randomVector(r, dim)
	c := randomVector(r, dim)
	candidates := []Candidate{
		{Identity: 100, EmbeddingID: 1, Vector: a},
		{Identity: 200, EmbeddingID: 2, Vector: b},
		{Identity: 300, EmbeddingID: 3, Vector: c},
	}

	nearA := make(Vector, dim)
	for i := range a {
		nearA[i] = a[i] + float32(0.01*r.NormFloat64())
	}
	noise := randomVector(r, dim)

	for _, cand := range candidates {
		s, err := Similarity(noise, cand.Vector)
		require.NoError(t, err)
		require.Less(t, s, 0.3)
	}

	for _, workers := range []int{0, 4} {
		e := &Engine{Workers: workers}
		slots := e.MatchAll([]Vector{nearA, noise}, candidates, 0.6, 1)
		require.Len(t, slots, 2)

		m, ok := slots[0].Best()
		require.True(t, ok)
		assert.Equal(t, int64(100), m.Identity)
		assert.Greater(t, m.Score, 0.99)

		_, ok = slots[1].Best()
		assert.False(t, ok)
	}
}

func TestMatchAll_PreservesOrderAndLength(t *testing.T) {
	r := newRand(5)
	candidates := make([]Candidate, 0, 20)
	for i := range 20 {
		candidates = append(candidates, Candidate{Identity: int64(i % 5), EmbeddingID: int64(i), Vector: randomVector(r, 16)})
	}
	queries := []Vector{
		candidates[3].Vector,
		randomVector(r, 16),
		candidates[17].Vector,
		candidates[3].Vector,
	}

	for _, workers := range []int{0, 1, 3, 16} {
		e := &Engine{Workers: workers}
		for _, limit := range []int{0, 1, 3} {
			slots := e.MatchAll(queries, candidates, 0.99, limit)
			require.Len(t, slots, len(queries))

			m, ok := slots[0].Best()
			require.True(t, ok)
			assert.Equal(t, int64(3), m.Identity)

			m, ok = slots[2].Best()
			require.True(t, ok)
			assert.Equal(t, int64(2), m.Identity)

			// the same identity may match more than one slot
			m, ok = slots[3].Best()
			require.True(t, ok)
			assert.Equal(t, int64(3), m.Identity)
		}
	}

	assert.Empty(t, (&Engine{}).MatchAll(nil, candidates, 0.6, 1))
	assert.Len(t, (&Engine{}).MatchAll(queries, nil, 0.6, 1), len(queries))
}

func TestMatchAll_CorruptCandidateIsExcluded(t *testing.T) {
	var buf bytes.Buffer
	e := quietEngine(&buf)
	r := newRand(11)
	valid := []Candidate{
		{Identity: 1, EmbeddingID: 1, Vector: randomVector(r, 32)},
		{Identity: 2, EmbeddingID: 2, Vector: randomVector(r, 32)},
		{Identity: 3, EmbeddingID: 3, Vector: randomVector(r, 32)},
	}
	corrupt := Candidate{Identity: 2, EmbeddingID: 99, Vector: Vector{1, 2, 3}}
	candidates := append([]Candidate{corrupt}, valid...)

	queries := []Vector{valid[0].Vector, valid[1].Vector, valid[2].Vector}
	slots := e.MatchAll(queries, candidates, 0.6, 1)
	require.Len(t, slots, 3)
	for i, slot := range slots {
		m, ok := slot.Best()
		require.True(t, ok)
		assert.Equal(t, valid[i].Identity, m.Identity)
		assert.InDelta(t, 1.0, m.Score, 1e-6)
	}
	assert.Contains(t, buf.String(), "embedding_id=99")
}

func TestEngine_NilLogger(t *testing.T) {
	var e *Engine
	slots := e.MatchAll([]Vector{axis}, []Candidate{{Identity: 1, Vector: axis}}, 0.6, 1)
	require.Len(t, slots, 1)
	_, ok := slots[0].Best()
	assert.True(t, ok)
}
