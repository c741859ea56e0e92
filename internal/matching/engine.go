package matching

import (
	"log/slog"
	"sort"
	"sync"
)

// DefaultThreshold is the minimum similarity accepted as a match.
const DefaultThreshold = 0.6

// Engine matches query embeddings against a candidate snapshot.
// The zero value is ready to use and runs queries sequentially.
type Engine struct {
	// Logger receives warnings about skipped candidates. Nil means slog.Default().
	Logger *slog.Logger

	// Workers bounds the number of queries matched in parallel by MatchAll.
	Workers int
}

func (e *Engine) logger() *slog.Logger {
	if e == nil || e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

// score compares query to c and logs incomparable candidates.
func (e *Engine) score(query Vector, c Candidate) (float64, bool) {
	s, err := Similarity(query, c.Vector)
	if err != nil {
		e.logger().Warn("skipping candidate",
			"identity", c.Identity,
			"embedding_id", c.EmbeddingID,
			"query_dim", len(query),
			"candidate_dim", len(c.Vector),
			"error", err,
		)
		return 0, false
	}
	return s, true
}

// FindBestMatch returns the candidate most similar to query, if its score
// is at least threshold. Ties keep the first candidate encountered.
func (e *Engine) FindBestMatch(query Vector, candidates []Candidate, threshold float64) (Match, bool) {
	var best Match
	found := false
	for _, c := range candidates {
		s, ok := e.score(query, c)
		if !ok {
			continue
		}
		if !found || s > best.Score {
			best = Match{Identity: c.Identity, Score: s}
			found = true
		}
	}
	// negated so a NaN threshold matches nothing
	if !found || !(best.Score >= threshold) {
		return Match{}, false
	}
	return best, true
}

// Rank returns every identity whose best embedding scores at least
// threshold against query, highest first, truncated to limit.
func (e *Engine) Rank(query Vector, candidates []Candidate, threshold float64, limit int) []Match {
	qualifying := make([]Match, 0)
	for _, c := range candidates {
		s, ok := e.score(query, c)
		if !ok || !(s >= threshold) {
			continue
		}
		qualifying = append(qualifying, Match{Identity: c.Identity, Score: s})
	}
	return CollapseByIdentity(qualifying, limit)
}

// CollapseByIdentity keeps the highest score per identity and returns the
// result ordered by descending score. A limit <= 0 keeps everything.
func CollapseByIdentity(pairs []Match, limit int) []Match {
	sorted := make([]Match, len(pairs))
	copy(sorted, pairs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	seen := make(map[int64]struct{}, len(sorted))
	out := make([]Match, 0, len(sorted))
	for _, m := range sorted {
		if _, ok := seen[m.Identity]; ok {
			continue
		}
		seen[m.Identity] = struct{}{}
		out = append(out, m)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// MatchAll matches every query against the same candidate snapshot and
// returns one slot per query, in input order. Slots are independent, so an
// identity may be the match of more than one query.
func (e *Engine) MatchAll(queries []Vector, candidates []Candidate, threshold float64, limitPerQuery int) []Slot {
	if limitPerQuery <= 0 {
		limitPerQuery = 1
	}
	slots := make([]Slot, len(queries))

	matchOne := func(i int) {
		if limitPerQuery == 1 {
			if m, ok := e.FindBestMatch(queries[i], candidates, threshold); ok {
				slots[i] = Slot{Matches: []Match{m}}
			}
			return
		}
		if ranked := e.Rank(queries[i], candidates, threshold, limitPerQuery); len(ranked) > 0 {
			slots[i] = Slot{Matches: ranked}
		}
	}

	workers := 1
	if e != nil {
		workers = e.Workers
	}
	if workers <= 1 || len(queries) < 2 {
		for i := range queries {
			matchOne(i)
		}
		return slots
	}

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for i := range queries {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			matchOne(idx)
		}(i)
	}
	wg.Wait()
	return slots
}
