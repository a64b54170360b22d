package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/movieweb/internal/shared"
	"github.com/desertthunder/movieweb/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Export writes the account's library to a directory in the chosen format.
func (r *Runner) Export(ctx context.Context, cmd *cli.Command) error {
	accountID, err := r.resolveAccount(ctx, cmd)
	if err != nil {
		return err
	}

	exporter := tasks.NewExporter(r.library, r.logger)
	progress, wait := r.printProgress(true)
	result, err := exporter.Export(ctx, progress, accountID, tasks.ExportOpts{
		Format:     cmd.String("format"),
		OutputDir:  cmd.String("output"),
		Filter:     listFilter(cmd),
		Posters:    cmd.Bool("posters"),
		NumWorkers: cmd.Int("workers"),
	})
	wait()
	if err != nil {
		return err
	}

	m := result.Manifest
	r.writePlainln("✓ Exported %d movies to %s", m.TotalEntries, m.OutputDirectory)
	if m.PostersSaved+m.PostersFailed > 0 {
		r.writePlain("Posters: %d saved, %d failed\n", m.PostersSaved, m.PostersFailed)
	}
	return r.writePlain("Manifest: %s\n", result.ManifestPath)
}

type importSummary struct {
	Total        int            `json:"total"`
	Inserted     int            `json:"inserted"`
	Duplicates   int            `json:"duplicates"`
	NoMatch      int            `json:"no_match"`
	ProviderDown int            `json:"provider_down"`
	Failed       int            `json:"failed"`
	Outcomes     []importedItem `json:"outcomes"`
}

type importedItem struct {
	Title   string `json:"title"`
	Year    string `json:"year,omitempty"`
	State   string `json:"state"`
	EntryID string `json:"entry_id,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Import adds every title in a "title[,year]" list file.
func (r *Runner) Import(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("path")
	if path == "" {
		return fmt.Errorf("%w: path", shared.ErrMissingArgument)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open import list: %w", err)
	}
	defer f.Close()

	items, err := tasks.ParseImportList(f)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return fmt.Errorf("%w: %s lists no titles", shared.ErrInvalidInput, path)
	}

	accountID, err := r.resolveAccount(ctx, cmd)
	if err != nil {
		return err
	}
	svc, err := r.reconcile()
	if err != nil {
		return err
	}

	rateLimit := r.config.Provider.RateLimit
	if cmd.IsSet("rate") {
		rateLimit = cmd.Float("rate")
	}

	useJSON := cmd.Bool("json")
	r.logger.Info("importing titles", "account", accountID, "count", len(items), "rate", rateLimit)
	progress, wait := r.printProgress(!useJSON)
	result, err := svc.Import(ctx, progress, accountID, items, tasks.ImportOpts{RateLimit: rateLimit})
	wait()
	if result == nil {
		return err
	}

	summary := importSummary{
		Total:        result.Total,
		Inserted:     result.Inserted,
		Duplicates:   result.Duplicates,
		NoMatch:      result.NoMatch,
		ProviderDown: result.ProviderDown,
		Failed:       result.Failed,
		Outcomes:     make([]importedItem, 0, len(result.Outcomes)),
	}
	for _, o := range result.Outcomes {
		item := importedItem{Title: o.Item.Title, Year: o.Item.Year, State: o.State.String(), EntryID: o.EntryID}
		if o.Err != nil {
			item.Error = shared.UserMessage(o.Err)
		}
		summary.Outcomes = append(summary.Outcomes, item)
	}

	if useJSON {
		if werr := r.writeJSON(summary, true); werr != nil {
			return werr
		}
		return err
	}

	r.writePlainln("Import finished: %d of %d titles processed", len(summary.Outcomes), summary.Total)
	r.writePlain("%s\n", renderTable(
		[]string{"Inserted", "Duplicates", "No match", "Provider down", "Failed"},
		[][]string{{
			fmt.Sprint(summary.Inserted),
			fmt.Sprint(summary.Duplicates),
			fmt.Sprint(summary.NoMatch),
			fmt.Sprint(summary.ProviderDown),
			fmt.Sprint(summary.Failed),
		}},
		[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight},
	))
	return err
}
