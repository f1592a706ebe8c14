package search

import "strings"

// Words ignored when checking a chunk for the query's terms.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "to": true, "of": true, "and": true, "in": true, "that": true,
	"have": true, "it": true, "for": true, "not": true, "on": true, "with": true,
	"as": true, "you": true, "do": true, "at": true, "this": true, "but": true,
	"by": true, "from": true, "how": true, "what": true, "does": true,
}

// queryTerms splits text into lowercased words with punctuation and
// markdown emphasis trimmed, dropping stop words.
func queryTerms(text string) []string {
	words := strings.Fields(text)
	terms := make([]string, 0, len(words))
	for _, word := range words {
		cleaned := strings.ToLower(strings.Trim(word, ".,!?;:'\"-()[]{}*_`#"))
		if cleaned != "" && !stopWords[cleaned] {
			terms = append(terms, cleaned)
		}
	}
	return terms
}

// ContainsAllTerms reports whether every non-stop-word term of query occurs
// as a word in content. A query made only of stop words never matches.
func ContainsAllTerms(content, query string) bool {
	want := queryTerms(query)
	if len(want) == 0 {
		return false
	}

	have := make(map[string]bool)
	for _, term := range queryTerms(content) {
		have[term] = true
	}
	for _, term := range want {
		if !have[term] {
			return false
		}
	}
	return true
}
