// Package vecmath provides the vector primitives shared by the similarity
// index backends: L2 normalization and inner-product similarity over
// float32 embeddings. The heavy kernels delegate to the SIMD-accelerated
// routines in github.com/viant/vec.
package vecmath

import (
	"math"

	"github.com/viant/vec/search"
)

// Magnitude returns the Euclidean (L2) norm of v.
func Magnitude(v []float32) float32 {
	return search.Float32s(v).Magnitude()
}

// Normalize scales v to unit length in place. A zero vector is left
// unchanged so downstream similarity against it stays zero.
func Normalize(v []float32) {
	m := Magnitude(v)
	if m == 0 || math.IsNaN(float64(m)) || math.IsInf(float64(m), 0) {
		return
	}
	inv := 1 / m
	for i := range v {
		v[i] *= inv
	}
}

// NormalizedCopy returns a unit-length copy of v, leaving v untouched.
func NormalizedCopy(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	Normalize(out)
	return out
}

// Dot returns the inner product of two equal-length vectors. For
// unit-normalized inputs this equals their cosine similarity. Callers
// validate dimensions; the kernel assumes len(a) == len(b).
func Dot(a, b []float32) float32 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	// The cosine kernel computes 1 - dot/(m1*m2); pinning both magnitudes
	// to 1 turns it into a raw SIMD dot product.
	return 1 - search.Float32s(a).CosineDistanceWithMagnitude(b, 1, 1)
}

// CosineSimilarity returns the cosine of the angle between a and b,
// zero when either vector has no magnitude.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	ma := Magnitude(a)
	mb := Magnitude(b)
	if ma == 0 || mb == 0 {
		return 0
	}
	return 1 - search.Float32s(a).CosineDistanceWithMagnitude(b, ma, mb)
}
