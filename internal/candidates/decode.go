package candidates

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/face-attendance/internal/matching"
)

var errMalformed = errors.New("malformed vector")

// Decode parses a stored embedding in pgvector text form ("[0.1,0.2,...]").
// Empty vectors and non-finite components are rejected.
func Decode(raw []byte) (matching.Vector, error) {
	s := bytes.TrimSpace(raw)
	// pgvector's parser slices off the brackets without checking for them
	if len(s) < 3 || s[0] != '[' || s[len(s)-1] != ']' {
		return nil, fmt.Errorf("%w: %q", errMalformed, truncate(s))
	}

	var v pgvector.Vector
	if err := v.Parse(string(s)); err != nil {
		return nil, fmt.Errorf("%w: %w", errMalformed, err)
	}

	vec := v.Slice()
	for i, x := range vec {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return nil, fmt.Errorf("%w: non-finite component at %d", errMalformed, i)
		}
	}
	return matching.Vector(vec), nil
}

// Encode renders a vector in the form accepted by Decode.
func Encode(v matching.Vector) []byte {
	return []byte(pgvector.NewVector(v).String())
}

func truncate(b []byte) string {
	const max = 32
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
