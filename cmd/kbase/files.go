package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/kbase"
	"github.com/poiesic/kbase/config"
	"github.com/poiesic/kbase/ingestion"
	"github.com/poiesic/kbase/storage"
	"github.com/urfave/cli/v2"
)

func filesCommand() *cli.Command {
	return &cli.Command{
		Name:   "files",
		Usage:  "List known files and their indexing status",
		Action: runFiles,
	}
}

func runFiles(c *cli.Context) error {
	return withDatabase(c, func(db *kbase.Database, _ *config.Config) error {
		files, err := db.Stores().Files.GetAll(c.Context)
		if err != nil {
			return err
		}
		if len(files) == 0 {
			fmt.Fprintln(c.App.Writer, "No files indexed")
			return nil
		}

		tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tSTATUS\tPROCESSED\tNAME")
		for _, f := range files {
			processed := "-"
			if !f.ProcessedAt.IsZero() {
				processed = f.ProcessedAt.Local().Format(time.DateTime)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", f.ID, f.Status, processed, f.Name)
		}
		return tw.Flush()
	})
}

func removeCommand() *cli.Command {
	return &cli.Command{
		Name:      "remove",
		Usage:     "Remove files and everything indexed from them",
		ArgsUsage: "<file-id|path...>",
		Action:    runRemove,
	}
}

func runRemove(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("at least one file id or path is required")
	}

	return withDatabase(c, func(db *kbase.Database, _ *config.Config) error {
		var missing int
		for _, arg := range c.Args().Slice() {
			id, err := uuid.Parse(arg)
			if err != nil {
				id = ingestion.FileIDForPath(arg)
			}
			err = db.RemoveFile(c.Context, id)
			switch {
			case errors.Is(err, storage.ErrNotFound):
				missing++
				fmt.Fprintf(c.App.Writer, "not found %s\n", arg)
			case err != nil:
				return fmt.Errorf("failed to remove %s: %w", arg, err)
			default:
				fmt.Fprintf(c.App.Writer, "removed %s\n", arg)
			}
		}
		if missing > 0 {
			return cli.Exit(fmt.Sprintf("%d files not found", missing), 1)
		}
		return nil
	})
}
