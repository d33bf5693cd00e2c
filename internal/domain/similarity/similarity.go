// Package similarity implements vector similarity and score rounding.
package similarity

import (
	"fmt"
	"math"
	"strconv"

	"github.com/kailas-cloud/vecrank/internal/domain"
)

// ScoreDigits is the number of decimal digits kept in response scores.
const ScoreDigits = 4

// Cosine returns (a·b)/(‖a‖·‖b‖), accumulated in float64.
// Vectors of different length fail with domain.ErrVectorDimMismatch.
// Empty or zero-norm vectors fail with domain.ErrZeroMagnitude.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d != %d", domain.ErrVectorDimMismatch, len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0, domain.ErrZeroMagnitude
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))

	// float error can push |sim| slightly above 1 for parallel vectors
	return math.Max(-1, math.Min(1, sim)), nil
}

// Round rounds x to the given number of decimal digits.
// The exact binary value of x is rounded, ties to even, so 0.12345
// (stored as 0.123450000000000004...) becomes 0.1235 and the exact
// tie 0.03125 becomes 0.0312.
func Round(x float64, digits int) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	r, err := strconv.ParseFloat(strconv.FormatFloat(x, 'f', digits, 64), 64)
	if err != nil {
		return x
	}
	return r
}
