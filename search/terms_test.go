package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContainsAllTerms(t *testing.T) {
	content := "## Engines\n\nThe **car** engine turns fuel into motion."

	assert.True(t, ContainsAllTerms(content, "car fuel"))
	assert.True(t, ContainsAllTerms(content, "What is the engine?"))
	assert.True(t, ContainsAllTerms(content, "engines"))
	assert.False(t, ContainsAllTerms(content, "car oil"))
	assert.False(t, ContainsAllTerms(content, "the of and"), "stop words alone never match")
	assert.False(t, ContainsAllTerms(content, ""))
}
