package rag

import (
	"fmt"
	"math"

	"github.com/viant/vec/search"
)

// Norm returns the Euclidean length of v.
func Norm(v []float32) float64 {
	if len(v) == 0 {
		return 0
	}
	return float64(search.Float32s(v).Magnitude())
}

// Normalize returns a unit-length copy of v. A zero, NaN, or infinite
// vector cannot be normalised and yields ErrEncoding.
func Normalize(v []float32) ([]float32, error) {
	n := Norm(v)
	if n == 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return nil, fmt.Errorf("rag: cannot normalise vector with norm %v: %w", n, ErrEncoding)
	}
	out := make([]float32, len(v))
	inv := 1 / n
	for i, x := range v {
		out[i] = float32(float64(x) * inv)
	}
	return out, nil
}

// dot returns the inner product of a and b, which must have equal length.
func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

// squaredL2 returns the squared Euclidean distance between a and b, the
// value FAISS reports for L2 indexes.
func squaredL2(a, b []float32) float64 {
	d := float64(search.Float32s(a).EuclideanDistance(b))
	return d * d
}
