package main

import (
	"fmt"
	"os"

	"github.com/poiesic/kbase"
	"github.com/poiesic/kbase/config"
	"github.com/urfave/cli/v2"
)

func reembedCommand() *cli.Command {
	return &cli.Command{
		Name:   "reembed",
		Usage:  "Re-embed every indexed chunk with the configured embedding model",
		Action: runReembed,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "batch-size",
				Usage: "Number of chunks to embed per request (overrides config)",
			},
			&cli.IntFlag{
				Name:  "report-interval",
				Usage: "Report progress every N chunks (overrides config)",
			},
			&cli.IntFlag{
				Name:  "max-retries",
				Usage: "Maximum attempts per embedding request (overrides config)",
			},
			&cli.DurationFlag{
				Name:  "retry-delay",
				Usage: "Base delay for exponential backoff (overrides config)",
			},
		},
	}
}

func runReembed(c *cli.Context) error {
	return withDatabase(c, func(db *kbase.Database, cfg *config.Config) error {
		reembedConfig := cfg.Reembed
		if c.IsSet("batch-size") {
			reembedConfig.BatchSize = c.Int("batch-size")
		}
		if c.IsSet("report-interval") {
			reembedConfig.ReportInterval = c.Int("report-interval")
		}
		if c.IsSet("max-retries") {
			reembedConfig.MaxRetries = c.Int("max-retries")
		}
		if c.IsSet("retry-delay") {
			reembedConfig.RetryDelay = c.Duration("retry-delay")
		}

		if reembedConfig.BatchSize <= 0 {
			return fmt.Errorf("batch-size must be greater than 0")
		}
		if reembedConfig.ReportInterval <= 0 {
			return fmt.Errorf("report-interval must be greater than 0")
		}
		if reembedConfig.MaxRetries <= 0 {
			return fmt.Errorf("max-retries must be greater than 0")
		}

		reembedder, err := db.NewReembedder(&reembedConfig, os.Stderr)
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stderr, "Database: %s\n", cfg.Database.Path)
		fmt.Fprintf(os.Stderr, "Embedding host: %s\n", cfg.AI.EmbeddingHost)
		fmt.Fprintf(os.Stderr, "Embedding model: %s\n", cfg.AI.EmbeddingModel)
		fmt.Fprintln(os.Stderr)

		if _, err := reembedder.Run(c.Context); err != nil {
			return fmt.Errorf("re-embedding failed: %w", err)
		}
		return nil
	})
}
