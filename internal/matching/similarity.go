package matching

import (
	"errors"
	"math"

	"github.com/samber/oops"
)

// ErrDimensionMismatch is returned when two compared vectors differ in length.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// CodeDimensionMismatch is the oops error code attached to ErrDimensionMismatch.
const CodeDimensionMismatch = "matching.dimension_mismatch"

// Similarity computes the cosine similarity between two embeddings.
// The result is clamped to [-1, 1]. A zero-norm vector yields 0.
func Similarity(a, b Vector) (float64, error) {
	if len(a) != len(b) {
		return 0, oops.
			Code(CodeDimensionMismatch).
			With("left_dim", len(a), "right_dim", len(b)).
			Wrap(ErrDimensionMismatch)
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}

	similarity := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// Clamp to [-1, 1] to absorb rounding
	if similarity > 1 {
		similarity = 1
	}
	if similarity < -1 {
		similarity = -1
	}
	return similarity, nil
}
