package tasks

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/desertthunder/movieweb/internal/shared"
	"golang.org/x/time/rate"
)

// ImportOpts contains configuration for bulk title imports.
type ImportOpts struct {
	RateLimit float64 // Provider lookups per second (default: 2)
}

// ImportItem is one requested title with an optional year hint.
type ImportItem struct {
	Title string
	Year  string
}

// ImportOutcome is the result of adding one [ImportItem].
type ImportOutcome struct {
	Item    ImportItem
	State   State
	EntryID string // Created or conflicting entry
	Err     error
}

// ImportResult aggregates the outcomes of an import run.
type ImportResult struct {
	Total        int
	Inserted     int
	Duplicates   int
	NoMatch      int
	ProviderDown int
	Failed       int
	Outcomes     []ImportOutcome
}

// ParseImportList reads one title per line in the form "title[,year]".
//
// Blank lines and lines starting with # are skipped. The text after the last comma is
// taken as the year only when it is four digits, so titles containing commas survive.
func ParseImportList(r io.Reader) ([]ImportItem, error) {
	var items []ImportItem

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		items = append(items, ParseImportLine(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read import list: %w", err)
	}
	return items, nil
}

// ParseImportLine splits a single "title[,year]" line.
func ParseImportLine(line string) ImportItem {
	line = strings.TrimSpace(line)
	i := strings.LastIndex(line, ",")
	if i < 0 {
		return ImportItem{Title: line}
	}

	year := strings.TrimSpace(line[i+1:])
	if !isYear(year) {
		return ImportItem{Title: line}
	}
	return ImportItem{Title: strings.TrimSpace(line[:i]), Year: year}
}

func isYear(s string) bool {
	if len(s) != 4 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Import adds items to accountID's library one at a time, pacing provider lookups with a rate limiter.
//
// Per-item failures are counted and do not stop the run. Cancelling ctx stops the run and returns
// the partial result together with the context error.
func (s *ReconciliationService) Import(
	ctx context.Context,
	progress chan<- ProgressUpdate,
	accountID string,
	items []ImportItem,
	opts ImportOpts,
) (*ImportResult, error) {
	if accountID == "" {
		return nil, fmt.Errorf("%w: account", shared.ErrMissingArgument)
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 2.0
	}

	result := &ImportResult{
		Total:    len(items),
		Outcomes: make([]ImportOutcome, 0, len(items)),
	}
	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)

	for i, item := range items {
		if err := limiter.Wait(ctx); err != nil {
			s.logger.Warn("import stopped", "account", accountID, "done", i, "total", len(items))
			return result, err
		}

		res, err := s.AddByTitle(ctx, nil, accountID, item.Title, item.Year)
		outcome := ImportOutcome{Item: item, State: res.State, Err: err}

		switch {
		case err == nil:
			result.Inserted++
			outcome.EntryID = res.Entry.ID
		case errors.Is(err, shared.ErrDuplicateEntry):
			result.Duplicates++
			outcome.EntryID = res.ExistingID
		case errors.Is(err, shared.ErrNoMatch):
			result.NoMatch++
		case errors.Is(err, shared.ErrProviderDown):
			result.ProviderDown++
		default:
			result.Failed++
		}

		result.Outcomes = append(result.Outcomes, outcome)
		sendProgress(progress, importItemUpdate(i+1, len(items), item, outcome))

		if err := ctx.Err(); err != nil {
			return result, err
		}
	}

	s.logger.Info("import finished",
		"account", accountID,
		"inserted", result.Inserted,
		"duplicates", result.Duplicates,
		"no_match", result.NoMatch,
		"provider_down", result.ProviderDown,
		"failed", result.Failed,
	)
	return result, nil
}
