package chunking

import "math"

// similarityStats is a running mean and population standard deviation of
// consecutive-chunk similarities within one section (Welford's method).
// It is a value: add returns the updated accumulator.
type similarityStats struct {
	count int
	mean  float64
	m2    float64
}

func (s similarityStats) add(x float64) similarityStats {
	s.count++
	delta := x - s.mean
	s.mean += delta / float64(s.count)
	s.m2 += delta * (x - s.mean)
	return s
}

func (s similarityStats) stdDev() float64 {
	if s.count == 0 {
		return 0
	}
	return math.Sqrt(s.m2 / float64(s.count))
}

// shifted reports whether x falls more than sigma standard deviations below
// the running mean. With no samples nothing is a shift. With one sample the
// deviation is 0, so any drop below that single similarity is a shift: the
// third chunk of a section must be at least as close to the second as the
// second was to the first. Raising sigma only widens the band once the
// section has two or more samples.
func (s similarityStats) shifted(x, sigma float64) bool {
	if s.count == 0 {
		return false
	}
	return x < s.mean-sigma*s.stdDev()
}
