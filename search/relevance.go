package search

import (
	"math"

	"github.com/poiesic/kbase/core"
)

// RelevanceScore maps a cosine similarity onto an integer in [0, 100].
func RelevanceScore(similarity float32) int {
	score := int(math.Round(float64(similarity) * 100))
	return max(0, min(100, score))
}

// ComputeMetrics derives the set-relative metrics for one result set.
// NormalizedScore is a min-max rescale to [0, 100]; when every similarity is
// equal each item scores 100. StandardDeviation is the population standard
// deviation of the set and is the same for every item.
func ComputeMetrics(similarities []float32) []core.RelevanceMetrics {
	if len(similarities) == 0 {
		return nil
	}

	lo, hi := similarities[0], similarities[0]
	var sum float64
	for _, s := range similarities {
		lo = min(lo, s)
		hi = max(hi, s)
		sum += float64(s)
	}
	mean := sum / float64(len(similarities))

	var sq float64
	for _, s := range similarities {
		d := float64(s) - mean
		sq += d * d
	}
	stdDev := math.Sqrt(sq / float64(len(similarities)))

	spread := float64(hi) - float64(lo)
	metrics := make([]core.RelevanceMetrics, len(similarities))
	for i, s := range similarities {
		normalized := 100.0
		if spread > 0 {
			normalized = (float64(s) - float64(lo)) / spread * 100
		}
		metrics[i] = core.RelevanceMetrics{
			CosineSimilarity:  s,
			RelevanceScore:    RelevanceScore(s),
			NormalizedScore:   normalized,
			StandardDeviation: stdDev,
		}
	}
	return metrics
}

// Score fills in Metrics for every result from its CosineSimilarity.
func Score(results []*core.SearchResult) {
	similarities := make([]float32, len(results))
	for i, r := range results {
		similarities[i] = r.Metrics.CosineSimilarity
	}
	for i, m := range ComputeMetrics(similarities) {
		results[i].Metrics = m
	}
}
