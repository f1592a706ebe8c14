package main

import (
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/poiesic/kbase"
	"github.com/poiesic/kbase/config"
	"github.com/poiesic/kbase/ingestion"
	"github.com/urfave/cli/v2"
)

func indexCommand() *cli.Command {
	return &cli.Command{
		Name:      "index",
		Usage:     "Index matching files under one or more directories",
		ArgsUsage: "[dir...]",
		Action:    runIndex,
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "include",
				Usage: "Glob of files to index, relative to each directory (repeatable, overrides config)",
			},
			&cli.StringSliceFlag{
				Name:  "exclude",
				Usage: "Glob of files to skip (repeatable, added to config)",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Number of files indexed concurrently (overrides config)",
			},
		},
	}
}

func runIndex(c *cli.Context) error {
	roots := c.Args().Slice()
	if len(roots) == 0 {
		roots = []string{"."}
	}

	return withDatabase(c, func(db *kbase.Database, cfg *config.Config) error {
		filter := fileFilter{include: cfg.Index.Include, exclude: cfg.Index.Exclude}
		if c.IsSet("include") {
			filter.include = c.StringSlice("include")
		}
		filter.exclude = append(filter.exclude, c.StringSlice("exclude")...)
		if err := filter.validate(); err != nil {
			return err
		}

		var sources []ingestion.FileSource
		for _, root := range roots {
			paths, err := filter.collect(root)
			if err != nil {
				return err
			}
			for _, path := range paths {
				sources = append(sources, ingestion.NewLocalFileSource(path, ingestion.FileIDForPath(path)))
			}
		}
		if len(sources) == 0 {
			fmt.Fprintln(c.App.Writer, "No matching files found")
			return nil
		}

		workers := cfg.Index.Workers
		if c.IsSet("workers") {
			workers = c.Int("workers")
		}
		pipeline, err := db.NewPipeline(
			ingestion.WithChunkingConfig(cfg.Chunking),
			ingestion.WithPoolSize(workers),
		)
		if err != nil {
			return err
		}
		defer pipeline.Release()

		results, err := pipeline.ConsumeAll(c.Context, sources)
		if err != nil {
			return err
		}

		var changed, unchanged, unsupported, failed int
		for _, r := range results {
			switch {
			case r.Err != nil:
				failed++
				fmt.Fprintf(c.App.Writer, "FAILED  %s: %v\n", r.Name, r.Err)
			case r.Changed:
				changed++
				fmt.Fprintf(c.App.Writer, "indexed %s\n", r.Name)
			case r.Unsupported:
				unsupported++
				fmt.Fprintf(c.App.Writer, "skipped %s (unsupported content type)\n", r.Name)
			default:
				unchanged++
				slog.Debug("unchanged", "file", r.Name)
			}
		}
		fmt.Fprintf(c.App.Writer, "%d files: %d indexed, %d unchanged, %d unsupported, %d failed\n",
			len(results), changed, unchanged, unsupported, failed)

		if failed > 0 {
			return cli.Exit(fmt.Sprintf("%d files failed to index", failed), 1)
		}
		return nil
	})
}

// fileFilter selects files by doublestar globs matched against the path
// relative to the walked directory. Exclude globs are also tried against the
// base name.
type fileFilter struct {
	include []string
	exclude []string
}

func (f fileFilter) validate() error {
	for _, pattern := range append(append([]string(nil), f.include...), f.exclude...) {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("bad file pattern %q", pattern)
		}
	}
	return nil
}

func (f fileFilter) match(rel string) bool {
	rel = filepath.ToSlash(rel)
	for _, pattern := range f.exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return false
		}
		if ok, _ := doublestar.Match(pattern, filepath.Base(rel)); ok {
			return false
		}
	}
	for _, pattern := range f.include {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// collect walks root and returns the matching regular files in walk order.
func (f fileFilter) collect(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if f.match(rel) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}
	return paths, nil
}
