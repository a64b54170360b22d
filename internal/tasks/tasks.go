package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/movieweb/internal/metrics"
	"github.com/desertthunder/movieweb/internal/models"
	"github.com/desertthunder/movieweb/internal/normalizer"
	"github.com/desertthunder/movieweb/internal/services"
	"github.com/desertthunder/movieweb/internal/shared"
)

// MaxNotesLength bounds user notes, in runes.
const MaxNotesLength = 2000

// MaxPersonalRating is the top of the 1-10 personal rating scale.
const MaxPersonalRating = 10

// LibraryStore is the persistence the reconciler needs.
//
// Implemented by [repositories.LibraryRepository].
type LibraryStore interface {
	FindDuplicate(ctx context.Context, accountID string, externalID *string, title string, year *int) (*models.LibraryEntry, error)
	Insert(ctx context.Context, accountID string, fields models.CanonicalFields) (*models.LibraryEntry, error)
	Update(ctx context.Context, accountID, entryID string, fields models.EditableFields) (*models.LibraryEntry, error)
}

// AddResult describes where an add request ended.
//
// State is always set, even when an error is returned.
type AddResult struct {
	State      State                   // Last state reached
	Fields     *models.CanonicalFields // Normalized metadata, once resolved
	Entry      *models.LibraryEntry    // Created entry when State is Inserted
	ExistingID string                  // Conflicting entry when State is RejectedDuplicate
}

// Reconciler turns titles into library entries.
type Reconciler interface {
	// AddByTitle resolves title against the provider and stores the normalized entry for accountID.
	AddByTitle(ctx context.Context, progress chan<- ProgressUpdate, accountID, title, year string) (*AddResult, error)

	// Preview resolves and normalizes title without storing anything.
	Preview(ctx context.Context, title, year string) (*models.CanonicalFields, error)

	// Edit changes the user-editable fields of an entry owned by accountID.
	Edit(ctx context.Context, accountID, entryID string, fields models.EditableFields) (*models.LibraryEntry, error)
}

// ReconciliationService implements [Reconciler] over a metadata provider and a library store.
type ReconciliationService struct {
	provider services.MetadataProvider
	store    LibraryStore
	logger   *log.Logger
}

// NewReconciliationService creates a ReconciliationService. A nil logger discards output.
func NewReconciliationService(provider services.MetadataProvider, store LibraryStore, logger *log.Logger) *ReconciliationService {
	if logger == nil {
		logger = log.New(nilWriter{})
	}
	return &ReconciliationService{provider: provider, store: store, logger: logger}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// AddByTitle runs one add request through the state machine.
//
// Provider failures end in [ProviderDown] with an error wrapping [shared.ErrProviderDown];
// a provider miss ends in [NotFound] with [shared.ErrNoMatch]. An existing entry, found
// up front or by losing an insert race, ends in [RejectedDuplicate] with a
// [*shared.DuplicateEntryError]. The store is only written in the [Inserted] case.
func (s *ReconciliationService) AddByTitle(ctx context.Context, progress chan<- ProgressUpdate, accountID, title, year string) (result *AddResult, err error) {
	const total = 3
	result = &AddResult{State: PendingLookup}

	title = strings.TrimSpace(title)
	year = strings.TrimSpace(year)
	if accountID == "" {
		return result, fmt.Errorf("%w: account", shared.ErrMissingArgument)
	}
	if title == "" {
		return result, fmt.Errorf("%w: title must not be empty", shared.ErrInvalidInput)
	}

	logger := shared.WithLogger(s.logger, "account", accountID, "title", title)
	defer func() {
		if result.State.Terminal() {
			metrics.Reconciliations.WithLabelValues(result.State.String()).Inc()
		}
	}()

	sendProgress(progress, lookupUpdate(1, total, title))

	fields, err := s.resolve(ctx, title, year)
	switch {
	case errors.Is(err, shared.ErrNoMatch):
		result.State = NotFound
		logger.Info("no match")
		sendProgress(progress, notFoundUpdate(1, total, title))
		return result, fmt.Errorf("%q: %w", title, shared.ErrNoMatch)
	case err != nil:
		result.State = ProviderDown
		logger.Warn("provider down", "error", err)
		sendProgress(progress, providerDownUpdate(1, total, err))
		return result, err
	}

	result.State = Resolved
	result.Fields = fields
	logger.Debug("resolved", "flags", models.JoinFlags(fields.Flags))
	sendProgress(progress, resolvedUpdate(2, total, fields))

	result.State = DuplicateCheck
	sendProgress(progress, duplicateCheckUpdate(2, total, fields.Title))

	existing, err := s.store.FindDuplicate(ctx, accountID, fields.ExternalID, fields.Title, fields.Year)
	if err != nil {
		logger.Error("duplicate check failed", "error", err)
		return result, fmt.Errorf("duplicate check: %w", err)
	}
	if existing != nil {
		return s.rejectDuplicate(result, progress, logger, existing.ID)
	}

	entry, err := s.store.Insert(ctx, accountID, *fields)
	if err != nil {
		if id, ok := shared.ExistingEntryID(err); ok {
			return s.rejectDuplicate(result, progress, logger, id)
		}
		logger.Error("insert failed", "error", err)
		return result, fmt.Errorf("insert: %w", err)
	}

	result.State = Inserted
	result.Entry = entry
	logger.Info("inserted", "entry", entry.ID)
	sendProgress(progress, insertedUpdate(3, total, entry))
	return result, nil
}

func (s *ReconciliationService) rejectDuplicate(result *AddResult, progress chan<- ProgressUpdate, logger *log.Logger, existingID string) (*AddResult, error) {
	result.State = RejectedDuplicate
	result.ExistingID = existingID
	logger.Info("already in library", "entry", existingID)
	sendProgress(progress, rejectedDuplicateUpdate(3, 3, result.Fields.Title, existingID))
	return result, &shared.DuplicateEntryError{ExistingID: existingID}
}

// Preview looks title up and normalizes the result without touching the store.
func (s *ReconciliationService) Preview(ctx context.Context, title, year string) (*models.CanonicalFields, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: title must not be empty", shared.ErrInvalidInput)
	}

	fields, err := s.resolve(ctx, title, strings.TrimSpace(year))
	if errors.Is(err, shared.ErrNoMatch) {
		return nil, fmt.Errorf("%q: %w", title, shared.ErrNoMatch)
	}
	return fields, err
}

// resolve performs the lookup and normalization shared by [AddByTitle] and [Preview].
//
// Any lookup failure other than a miss is reported as [shared.ErrProviderDown].
func (s *ReconciliationService) resolve(ctx context.Context, title, year string) (*models.CanonicalFields, error) {
	raw, err := s.provider.Lookup(ctx, title, year)
	if err != nil {
		if errors.Is(err, shared.ErrNoMatch) {
			return nil, shared.ErrNoMatch
		}
		return nil, fmt.Errorf("%w: %w", shared.ErrProviderDown, err)
	}

	fields := normalizer.Normalize(*raw)
	normalizer.FallbackTitle(&fields, title)

	if fields.Degraded() {
		s.logger.Warn("metadata degraded", "title", fields.Title, "error", fields.DegradedErr())
		for _, f := range fields.Flags {
			metrics.DegradedFields.WithLabelValues(string(f)).Inc()
		}
	}
	return &fields, nil
}

// Edit validates fields and applies them to the entry.
//
// Entries owned by another account are reported as [shared.ErrNotFound].
func (s *ReconciliationService) Edit(ctx context.Context, accountID, entryID string, fields models.EditableFields) (*models.LibraryEntry, error) {
	if accountID == "" {
		return nil, fmt.Errorf("%w: account", shared.ErrMissingArgument)
	}
	if err := ValidateEditable(fields); err != nil {
		return nil, err
	}

	entry, err := s.store.Update(ctx, accountID, entryID, fields)
	if err != nil {
		return nil, err
	}

	s.logger.Info("entry updated", "account", accountID, "entry", entryID)
	return entry, nil
}

// ValidateEditable checks user edits. A personal rating of 0 clears the rating.
func ValidateEditable(fields models.EditableFields) error {
	if fields.Empty() {
		return fmt.Errorf("%w: nothing to update", shared.ErrInvalidInput)
	}
	if r := fields.PersonalRating; r != nil && (*r < 0 || *r > MaxPersonalRating) {
		return fmt.Errorf("%w: personal rating must be between 1 and %d", shared.ErrInvalidInput, MaxPersonalRating)
	}
	if n := fields.Notes; n != nil && utf8.RuneCountInString(*n) > MaxNotesLength {
		return fmt.Errorf("%w: notes must be at most %d characters", shared.ErrInvalidInput, MaxNotesLength)
	}
	return nil
}

type nilWriter struct{}

func (nilWriter) Write(p []byte) (int, error) { return len(p), nil }
