package mock

import (
	"context"
	"strings"
)

// topicBias keeps topic vectors away from zero norm.
const topicBias = 0.1

// NewTopicEmbedder returns a MockEmbedder whose vectors count keyword hits.
// Component i is the number of case-insensitive occurrences of topics[i];
// a final constant component keeps every vector non-zero. Texts about the
// same keywords therefore land close together, which makes section and
// ranking behavior predictable in tests.
func NewTopicEmbedder(topics ...string) *MockEmbedder {
	m := NewMockEmbedderWithDimension(len(topics) + 1)
	m.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return TopicVector(text, topics), nil
	}
	return m
}

// TopicVector computes the vector NewTopicEmbedder would return for text.
func TopicVector(text string, topics []string) []float32 {
	lower := strings.ToLower(text)
	vector := make([]float32, len(topics)+1)
	for i, topic := range topics {
		vector[i] = float32(strings.Count(lower, strings.ToLower(topic)))
	}
	vector[len(topics)] = topicBias
	return vector
}
