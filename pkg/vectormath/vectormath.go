// Package vectormath provides the similarity primitives used across the
// intent graph: cosine similarity, Euclidean distance, dot product,
// centroid computation and vector blending. All functions are pure and
// operate on float32 slices as produced by the embedding providers.
package vectormath

import "math"

// Dot returns the dot product of a and b. Vectors of different lengths
// are compared over their common prefix.
func Dot(a, b []float32) float64 {
	n := min(len(a), len(b))
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// Norm returns the Euclidean norm of v.
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// CosineSimilarity returns the cosine of the angle between a and b in
// [-1, 1]. Zero vectors yield 0.
func CosineSimilarity(a, b []float32) float64 {
	na := Norm(a)
	nb := Norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	return Dot(a, b) / (na * nb)
}

// EuclideanDistance returns the L2 distance between a and b. Vectors of
// different lengths are compared over their common prefix.
func EuclideanDistance(a, b []float32) float64 {
	n := min(len(a), len(b))
	var sum float64
	for i := 0; i < n; i++ {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Centroid returns the component-wise mean of the given vectors. All
// vectors must share the dimension of the first; shorter ones contribute
// zeros for their missing components. Returns nil for empty input.
func Centroid(vectors [][]float32) []float32 {
	if len(vectors) == 0 {
		return nil
	}
	dim := len(vectors[0])
	out := make([]float64, dim)
	for _, v := range vectors {
		for i := 0; i < dim && i < len(v); i++ {
			out[i] += float64(v[i])
		}
	}
	centroid := make([]float32, dim)
	for i := range out {
		centroid[i] = float32(out[i] / float64(len(vectors)))
	}
	return centroid
}

// Blend returns alpha*old + (1-alpha)*next, the exponential blend used for
// running intent vectors. If old is empty, next is copied through.
func Blend(old, next []float32, alpha float64) []float32 {
	if len(old) == 0 {
		out := make([]float32, len(next))
		copy(out, next)
		return out
	}
	dim := max(len(old), len(next))
	out := make([]float32, dim)
	for i := 0; i < dim; i++ {
		var o, n float64
		if i < len(old) {
			o = float64(old[i])
		}
		if i < len(next) {
			n = float64(next[i])
		}
		out[i] = float32(alpha*o + (1-alpha)*n)
	}
	return out
}

// Normalize returns v scaled to unit length. Zero vectors are returned
// unchanged.
func Normalize(v []float32) []float32 {
	n := Norm(v)
	out := make([]float32, len(v))
	if n == 0 {
		copy(out, v)
		return out
	}
	for i, x := range v {
		out[i] = float32(float64(x) / n)
	}
	return out
}
