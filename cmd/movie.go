package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/movieweb/internal/models"
	"github.com/desertthunder/movieweb/internal/tasks"
	"github.com/urfave/cli/v3"
)

// MovieAdd resolves a title against the provider and adds it to the account's library.
func (r *Runner) MovieAdd(ctx context.Context, cmd *cli.Command) error {
	title := cmd.StringArg("title")
	accountID, err := r.resolveAccount(ctx, cmd)
	if err != nil {
		return err
	}
	svc, err := r.reconcile()
	if err != nil {
		return err
	}

	useJSON := cmd.Bool("json")
	progress, wait := r.printProgress(!useJSON)
	result, err := svc.AddByTitle(ctx, progress, accountID, title, cmd.String("year"))
	wait()
	if err != nil {
		return err
	}

	if useJSON {
		return r.writeJSON(result.Entry, true)
	}
	r.writePlainln("✓ Added to library:")
	return r.printEntry(result.Entry)
}

// MoviePreview shows the normalized metadata for a title without storing it.
func (r *Runner) MoviePreview(ctx context.Context, cmd *cli.Command) error {
	svc, err := r.reconcile()
	if err != nil {
		return err
	}

	fields, err := svc.Preview(ctx, cmd.StringArg("title"), cmd.String("year"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(fields, true)
	}
	return r.printEntry(&models.LibraryEntry{CanonicalFields: *fields})
}

// MovieList prints the account's library, newest first.
func (r *Runner) MovieList(ctx context.Context, cmd *cli.Command) error {
	accountID, err := r.resolveAccount(ctx, cmd)
	if err != nil {
		return err
	}

	filter := listFilter(cmd)
	filter.Limit = cmd.Int("limit")

	entries := []*models.LibraryEntry{}
	for entry, err := range r.library.List(ctx, accountID, filter) {
		if err != nil {
			return err
		}
		entries = append(entries, entry)
	}

	if cmd.Bool("json") {
		return r.writeJSON(entries, true)
	}

	if len(entries) == 0 {
		return r.writePlain("No movies yet. Add one with 'movieweb movie add <title>'.\n")
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		mine := ""
		if e.PersonalRating != nil {
			mine = strconv.Itoa(*e.PersonalRating)
		}
		rows = append(rows, []string{e.ID, e.Title, e.DisplayYear(), e.Director, e.DisplayRating(), mine})
	}
	r.writePlain("%s\n", renderTable(
		[]string{"ID", "Title", "Year", "Director", "Rating", "Mine"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignRight},
	))
	return r.writePlain("%d movies\n", len(entries))
}

// MovieShow prints a single entry.
func (r *Runner) MovieShow(ctx context.Context, cmd *cli.Command) error {
	accountID, err := r.resolveAccount(ctx, cmd)
	if err != nil {
		return err
	}

	entry, err := r.library.Get(ctx, accountID, cmd.StringArg("id"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(entry, true)
	}
	return r.printEntry(entry)
}

// MovieEdit changes the notes or personal rating of an entry.
func (r *Runner) MovieEdit(ctx context.Context, cmd *cli.Command) error {
	accountID, err := r.resolveAccount(ctx, cmd)
	if err != nil {
		return err
	}

	var fields models.EditableFields
	if cmd.IsSet("notes") {
		notes := cmd.String("notes")
		fields.Notes = &notes
	}
	if cmd.IsSet("rating") {
		rating := cmd.Int("rating")
		fields.PersonalRating = &rating
	}

	svc, err := r.editor()
	if err != nil {
		return err
	}
	entry, err := svc.Edit(ctx, accountID, cmd.StringArg("id"), fields)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(entry, true)
	}
	r.writePlainln("✓ Updated:")
	return r.printEntry(entry)
}

// MovieDelete removes an entry from the account's library.
func (r *Runner) MovieDelete(ctx context.Context, cmd *cli.Command) error {
	accountID, err := r.resolveAccount(ctx, cmd)
	if err != nil {
		return err
	}

	id := cmd.StringArg("id")
	if err := r.library.Delete(ctx, accountID, id); err != nil {
		return err
	}

	r.logger.Info("entry deleted", "account", accountID, "entry", id)
	return r.writePlain("✓ Deleted %s\n", id)
}

// editor returns a service for edits, which never touch the provider.
func (r *Runner) editor() (*tasks.ReconciliationService, error) {
	if r.reconciler != nil || r.provider != nil {
		return r.reconcile()
	}
	if err := r.openStore(); err != nil {
		return nil, err
	}
	return tasks.NewReconciliationService(nil, r.library, r.logger), nil
}

// printProgress starts a printer for reconciliation updates. The returned func closes the
// channel and waits until every update has been written.
func (r *Runner) printProgress(enabled bool) (chan tasks.ProgressUpdate, func()) {
	if !enabled {
		return nil, func() {}
	}

	progress := make(chan tasks.ProgressUpdate, 10)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			r.writePlain("  %-18s %s\n", update.State, update.Message)
		}
	}()

	return progress, func() {
		close(progress)
		<-done
	}
}

func (r *Runner) printEntry(e *models.LibraryEntry) error {
	r.writePlainHeader(fmt.Sprintf("%s (%s)", e.Title, e.DisplayYear()))

	field := func(label, value string) {
		if value != "" && value != "-" {
			r.writePlain("%-12s %s\n", label+":", value)
		}
	}
	field("ID", e.ID)
	field("Director", e.Director)
	field("Genre", e.Genre)
	field("Rating", e.DisplayRating())
	if e.PersonalRating != nil {
		field("My rating", fmt.Sprintf("%d/10", *e.PersonalRating))
	}
	field("External ID", e.DisplayExternalID())
	if e.PosterURL != nil {
		field("Poster", *e.PosterURL)
	}
	if !e.CreatedAt.IsZero() {
		field("Added", e.CreatedAt.Local().Format(time.DateTime))
	}
	if e.Plot != "" {
		r.writePlainln("%s", e.Plot)
	}
	if e.Notes != "" {
		r.writePlainln("Notes: %s", e.Notes)
	}
	if e.Degraded() {
		r.writePlainln("⚠ Degraded fields: %s", strings.ReplaceAll(models.JoinFlags(e.Flags), ",", ", "))
	}
	return nil
}

func listFilter(cmd *cli.Command) models.ListFilter {
	return models.ListFilter{
		Title: cmd.String("title"),
		Genre: cmd.String("genre"),
		Year:  cmd.Int("year"),
	}
}
