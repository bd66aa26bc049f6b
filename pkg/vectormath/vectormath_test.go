package vectormath

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a    []float32
		b    []float32
		want float64
	}{
		{
			name: "identical vectors",
			a:    []float32{1, 2, 3},
			b:    []float32{1, 2, 3},
			want: 1,
		},
		{
			name: "orthogonal vectors",
			a:    []float32{1, 0},
			b:    []float32{0, 1},
			want: 0,
		},
		{
			name: "opposite vectors",
			a:    []float32{1, 0},
			b:    []float32{-1, 0},
			want: -1,
		},
		{
			name: "zero vector",
			a:    []float32{0, 0},
			b:    []float32{1, 1},
			want: 0,
		},
		{
			name: "scaled vectors",
			a:    []float32{2, 4},
			b:    []float32{1, 2},
			want: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if !almostEqual(got, tt.want) {
				t.Fatalf("CosineSimilarity(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestEuclideanDistance(t *testing.T) {
	got := EuclideanDistance([]float32{0, 0}, []float32{3, 4})
	if !almostEqual(got, 5) {
		t.Fatalf("expected 5, got %v", got)
	}
	if d := EuclideanDistance([]float32{1, 1}, []float32{1, 1}); !almostEqual(d, 0) {
		t.Fatalf("expected 0 for identical vectors, got %v", d)
	}
}

func TestDot(t *testing.T) {
	got := Dot([]float32{1, 2, 3}, []float32{4, 5, 6})
	if !almostEqual(got, 32) {
		t.Fatalf("expected 32, got %v", got)
	}
	// Mismatched lengths compare over the common prefix.
	got = Dot([]float32{1, 2}, []float32{3, 4, 5})
	if !almostEqual(got, 11) {
		t.Fatalf("expected 11, got %v", got)
	}
}

func TestCentroid(t *testing.T) {
	vectors := [][]float32{
		{1, 2, 3},
		{3, 4, 5},
	}
	got := Centroid(vectors)
	want := []float32{2, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("expected length %d, got %d", len(want), len(got))
	}
	for i := range want {
		if !almostEqual(float64(got[i]), float64(want[i])) {
			t.Fatalf("component %d: expected %v, got %v", i, want[i], got[i])
		}
	}

	if c := Centroid(nil); c != nil {
		t.Fatalf("expected nil centroid for empty input, got %v", c)
	}
}

func TestBlend(t *testing.T) {
	old := []float32{1, 1}
	next := []float32{0, 2}
	got := Blend(old, next, 0.8)
	want := []float32{0.8, 1.2}
	for i := range want {
		if !almostEqual(float64(got[i]), float64(want[i])) {
			t.Fatalf("component %d: expected %v, got %v", i, want[i], got[i])
		}
	}

	// Empty history takes the new vector as-is.
	got = Blend(nil, next, 0.8)
	for i := range next {
		if got[i] != next[i] {
			t.Fatalf("expected copy of next, got %v", got)
		}
	}
}

func TestNormalize(t *testing.T) {
	got := Normalize([]float32{3, 4})
	if !almostEqual(Norm(got), 1) {
		t.Fatalf("expected unit norm, got %v", Norm(got))
	}

	zero := Normalize([]float32{0, 0})
	if zero[0] != 0 || zero[1] != 0 {
		t.Fatalf("expected zero vector unchanged, got %v", zero)
	}
}
