package core

import (
	"math"
	"testing"
)

const epsilon = 1e-5

func approxEqual(a, b float32) bool {
	return math.Abs(float64(a-b)) < epsilon
}

func TestCosineSimilarityProperties(t *testing.T) {
	vectors := [][]float32{
		{1, 0, 0},
		{0.3, -0.7, 2.5},
		{-4, 4, 0.001},
		{1e-3, 2e-3, 3e-3},
	}

	for _, v := range vectors {
		neg := make([]float32, len(v))
		for i := range v {
			neg[i] = -v[i]
		}

		if got := CosineSimilarity(v, v); !approxEqual(got, 1) {
			t.Errorf("similarity(v, v) = %f, want 1 for %v", got, v)
		}
		if got := CosineSimilarity(v, neg); !approxEqual(got, -1) {
			t.Errorf("similarity(v, -v) = %f, want -1 for %v", got, v)
		}
	}

	for _, a := range vectors {
		for _, b := range vectors {
			if ab, ba := CosineSimilarity(a, b), CosineSimilarity(b, a); !approxEqual(ab, ba) {
				t.Errorf("similarity not symmetric: %f vs %f", ab, ba)
			}
		}
	}
}

func TestCosineSimilarityDegenerate(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
	}{
		{"zero query", []float32{0, 0, 0}, []float32{1, 2, 3}},
		{"zero stored", []float32{1, 2, 3}, []float32{0, 0, 0}},
		{"both zero", []float32{0, 0}, []float32{0, 0}},
		{"length mismatch", []float32{1, 2}, []float32{1, 2, 3}},
		{"empty", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CosineSimilarity(tt.a, tt.b); got != 0 {
				t.Errorf("CosineSimilarity() = %f, want 0", got)
			}
		})
	}
}

func TestCosineSimilarityOrthogonal(t *testing.T) {
	if got := CosineSimilarity([]float32{1, 0}, []float32{0, 1}); !approxEqual(got, 0) {
		t.Errorf("orthogonal similarity = %f, want 0", got)
	}
}

func TestNorm(t *testing.T) {
	if got := Norm([]float32{3, 4}); math.Abs(got-5) > epsilon {
		t.Errorf("Norm() = %f, want 5", got)
	}
	if got := Norm(nil); got != 0 {
		t.Errorf("Norm(nil) = %f, want 0", got)
	}
}
