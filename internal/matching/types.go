// Package matching compares face embeddings against a candidate set and
// resolves the results to identities.
package matching

// Vector is a face embedding produced by the vision model.
type Vector []float32

// Candidate is one stored embedding belonging to an identity.
type Candidate struct {
	Identity    int64
	EmbeddingID int64
	Vector      Vector
}

// Match pairs an identity with its similarity to a query.
type Match struct {
	Identity int64   `json:"identity"`
	Score    float64 `json:"score"`
}

// Slot holds the ranked matches for one query. It is empty when no
// candidate cleared the threshold.
type Slot struct {
	Matches []Match `json:"matches"`
}

// Best returns the top match of the slot.
func (s Slot) Best() (Match, bool) {
	if len(s.Matches) == 0 {
		return Match{}, false
	}
	return s.Matches[0], true
}

// Clone returns a deep copy of the vector.
func (v Vector) Clone() Vector {
	if v == nil {
		return nil
	}
	out := make(Vector, len(v))
	copy(out, v)
	return out
}
