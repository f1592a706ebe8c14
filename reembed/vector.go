package reembed

import "github.com/poiesic/kbase/core"

// NormalizeVector returns v scaled to unit length as a new slice.
// A zero vector comes back as zeros of the same length.
func NormalizeVector(v []float32) []float32 {
	out := make([]float32, len(v))
	norm := core.Norm(v)
	if norm == 0 {
		return out
	}
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}
