package main

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/poiesic/kbase"
	"github.com/poiesic/kbase/config"
	"github.com/poiesic/kbase/search"
	"github.com/urfave/cli/v2"
)

const snippetRunes = 160

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Find the chunks most similar to a query",
		ArgsUsage: "<query...>",
		Action:    runSearch,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "top-k",
				Aliases: []string{"k"},
				Usage:   "Maximum number of results (overrides config)",
			},
			&cli.Float64Flag{
				Name:  "min-similarity",
				Usage: "Drop results below this cosine similarity (overrides config)",
			},
		},
	}
}

func runSearch(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return errors.New("a query is required")
	}

	return withDatabase(c, func(db *kbase.Database, cfg *config.Config) error {
		topK := cfg.Search.TopK
		if c.IsSet("top-k") {
			topK = c.Int("top-k")
		}
		minSimilarity := cfg.Search.MinSimilarity
		if c.IsSet("min-similarity") {
			minSimilarity = float32(c.Float64("min-similarity"))
		}

		searcher, err := db.NewSearcher(search.WithMinSimilarity(minSimilarity))
		if err != nil {
			return err
		}
		results, err := searcher.Search(c.Context, query, topK)
		if err != nil {
			return err
		}

		w := c.App.Writer
		if len(results) == 0 {
			fmt.Fprintln(w, "No results")
			return nil
		}
		fmt.Fprintf(w, "Found %d results\n", len(results))
		for i, r := range results {
			marker := " "
			if search.ContainsAllTerms(r.Chunk.Content, query) {
				marker = "*"
			}
			name := "(unknown file)"
			if r.File != nil {
				name = r.File.Name
			}
			fmt.Fprintf(w, "%2d.%s [%3d] %s section %d chunk %d (similarity %.3f, normalized %.1f, sd %.3f)\n",
				i+1, marker, r.Metrics.RelevanceScore, name, r.Section.Index, r.Chunk.Index,
				r.Metrics.CosineSimilarity, r.Metrics.NormalizedScore, r.Metrics.StandardDeviation)
			fmt.Fprintf(w, "     %s\n", snippet(r.Chunk.Content))
		}
		return nil
	})
}

// snippet flattens whitespace and truncates to snippetRunes runes.
func snippet(content string) string {
	flat := strings.Join(strings.Fields(content), " ")
	if utf8.RuneCountInString(flat) <= snippetRunes {
		return flat
	}
	runes := []rune(flat)
	return string(runes[:snippetRunes]) + "..."
}
