package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/internal/library"
	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/internal/retrieval"
	apperrors "github.com/Adithya-Monish-Kumar-K/term-proximity-network/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/pkg/postgres"
)

var importOpts struct {
	source   string
	boltPath string
	quiet    bool
}

var importCmd = &cobra.Command{
	Use:   "import <file-or-glob>...",
	Short: "Copy corpus files into the persistent library store",
	Long: `Read JSON corpus files and store their documents in the bolt file or the
PostgreSQL table that proximityd restores its library from. Documents whose
ID is already stored are skipped; documents without an ID get a content hash.

Examples:
  proximity import data/corpus.json
  proximity import --source postgres 'data/**/*.json'`,
	Args: cobra.MinimumNArgs(1),
	RunE: runImport,
}

func init() {
	f := importCmd.Flags()
	f.StringVar(&importOpts.source, "source", "", "store to write: bolt or postgres (default library.source, or bolt)")
	f.StringVar(&importOpts.boltPath, "bolt-path", "", "bolt file (default library.boltPath)")
	f.BoolVar(&importOpts.quiet, "quiet", false, "hide the progress bar")

	rootCmd.AddCommand(importCmd)
}

// importResult counts what happened to each document read.
type importResult struct {
	Stored     int
	Duplicates int
	Invalid    int
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var docs []retrieval.Document
	for _, pattern := range args {
		paths, err := library.ExpandGlob(pattern)
		if err != nil {
			return err
		}
		for _, p := range paths {
			batch, err := library.ReadFile(p)
			if err != nil {
				return err
			}
			docs = append(docs, batch...)
		}
	}
	if len(docs) == 0 {
		return fmt.Errorf("no documents matched %v", args)
	}

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	var bar *progressbar.ProgressBar
	if !importOpts.quiet {
		bar = progressbar.NewOptions(len(docs),
			progressbar.OptionSetWriter(cmd.ErrOrStderr()),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionSetDescription("Importing"),
			progressbar.OptionOnCompletion(func() {
				fmt.Fprintln(cmd.ErrOrStderr())
			}),
		)
	}

	res, err := importDocuments(ctx, store, docs, func() {
		if bar != nil {
			_ = bar.Add(1)
		}
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Import complete:\n")
	fmt.Fprintf(out, "  Stored:     %d\n", res.Stored)
	fmt.Fprintf(out, "  Duplicates: %d\n", res.Duplicates)
	fmt.Fprintf(out, "  Invalid:    %d\n", res.Invalid)
	return nil
}

// importDocuments writes docs to store, deduplicating within the batch by
// ID. step is called once per document.
func importDocuments(ctx context.Context, store library.Store, docs []retrieval.Document, step func()) (importResult, error) {
	var res importResult
	lib, err := library.NewDefault()
	if err != nil {
		return res, err
	}
	for _, d := range docs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		doc, err := lib.Add(d)
		if err == nil {
			err = store.Put(ctx, doc)
		}
		switch {
		case err == nil:
			res.Stored++
		case errors.Is(err, apperrors.ErrDocumentExists):
			res.Duplicates++
		case errors.Is(err, apperrors.ErrInvalidInput):
			res.Invalid++
		default:
			return res, fmt.Errorf("storing document %s: %w", doc.ID, err)
		}
		step()
	}
	return res, nil
}

func openStore(ctx context.Context) (library.Store, error) {
	source := importOpts.source
	if source == "" {
		source = cfg.Library.Source
		if source == "file" {
			source = "bolt"
		}
	}
	switch source {
	case "bolt":
		path := importOpts.boltPath
		if path == "" {
			path = cfg.Library.BoltPath
		}
		return library.NewBoltStore(path)
	case "postgres":
		pg, err := postgres.New(cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		store, err := library.NewPostgresStore(ctx, pg)
		if err != nil {
			pg.Close()
			return nil, err
		}
		return store, nil
	}
	return nil, fmt.Errorf("unknown store %q (want bolt or postgres)", source)
}
