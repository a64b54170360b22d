package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/desertthunder/movieweb/internal/models"
	"github.com/desertthunder/movieweb/internal/shared"
)

// LibraryRepository persists [models.LibraryEntry] rows, always scoped to the owning account.
type LibraryRepository struct {
	db *sql.DB
}

// NewLibraryRepository creates a new [LibraryRepository] with the given database connection
func NewLibraryRepository(db *sql.DB) *LibraryRepository {
	return &LibraryRepository{db: db}
}

const selectEntry = `
	SELECT
		id, sequence, account_id, external_id, title, title_key, year,
		director, genre, plot, poster_url, rating, notes, personal_rating,
		degraded_flags, created_at, updated_at
	FROM library_entries
`

// FindDuplicate returns the entry in accountID's library that describes the same film, or nil.
//
// A matching external ID wins. Otherwise the folded title and year must match, and that rule
// only applies when one of the two sides has no external ID, since two different provider IDs
// are two different films. A missing year matches only a missing year.
func (r *LibraryRepository) FindDuplicate(ctx context.Context, accountID string, externalID *string, title string, year *int) (*models.LibraryEntry, error) {
	return findDuplicate(ctx, r.db, accountID, externalID, title, year)
}

func findDuplicate(ctx context.Context, exec DBExecutor, accountID string, externalID *string, title string, year *int) (*models.LibraryEntry, error) {
	if externalID != nil {
		entry, err := scanEntryRow(exec.QueryRowContext(ctx,
			selectEntry+` WHERE account_id = ? AND external_id = ?`, accountID, *externalID))
		if err == nil || !errors.Is(err, shared.ErrNotFound) {
			return entry, err
		}
	}

	query := selectEntry + `
		WHERE account_id = ?
			AND title_key = ?
			AND IFNULL(year, 0) = IFNULL(?, 0)
			AND (? IS NULL OR external_id IS NULL)
		ORDER BY sequence ASC
		LIMIT 1
	`

	entry, err := scanEntryRow(exec.QueryRowContext(ctx, query, accountID, shared.NormalizeTitleKey(title), year, externalID))
	if errors.Is(err, shared.ErrNotFound) {
		return nil, nil
	}
	return entry, err
}

// Insert stores fields as a new entry in accountID's library.
//
// The duplicate check and the insert run in one write transaction, and the unique indexes back it up,
// so racing inserts of the same film store exactly one row. Duplicates report a [shared.DuplicateEntryError]
// naming the existing entry. An unknown account reports [shared.ErrNotFound].
func (r *LibraryRepository) Insert(ctx context.Context, accountID string, fields models.CanonicalFields) (*models.LibraryEntry, error) {
	if strings.TrimSpace(fields.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", shared.ErrInvalidInput)
	}
	if fields.TitleKey == "" {
		fields.TitleKey = shared.NormalizeTitleKey(fields.Title)
	}

	now := time.Now().UTC()
	entry := &models.LibraryEntry{
		ID:              shared.GenerateID(),
		AccountID:       accountID,
		CanonicalFields: fields,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		existing, err := findDuplicate(ctx, tx, accountID, fields.ExternalID, fields.Title, fields.Year)
		if err != nil {
			return fmt.Errorf("failed to check for duplicates: %w", err)
		}
		if existing != nil {
			return &shared.DuplicateEntryError{ExistingID: existing.ID}
		}

		sequence, err := NextSequence(ctx, tx, "library_entries")
		if err != nil {
			return fmt.Errorf("failed to generate sequence: %w", err)
		}
		entry.Sequence = sequence

		query := `
			INSERT INTO library_entries (
				id, sequence, account_id, external_id, title, title_key, year,
				director, genre, plot, poster_url, rating, notes, personal_rating,
				degraded_flags, created_at, updated_at
			)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`

		_, err = tx.ExecContext(ctx, query,
			entry.ID,
			entry.Sequence,
			accountID,
			fields.ExternalID,
			fields.Title,
			fields.TitleKey,
			fields.Year,
			fields.Director,
			fields.Genre,
			fields.Plot,
			fields.PosterURL,
			fields.Rating,
			entry.Notes,
			entry.PersonalRating,
			models.JoinFlags(fields.Flags),
			entry.CreatedAt,
			entry.UpdatedAt,
		)
		switch {
		case isForeignKeyViolation(err):
			return fmt.Errorf("account %s: %w", accountID, shared.ErrNotFound)
		case isUniqueViolation(err):
			return shared.ErrDuplicateEntry
		case err != nil:
			return fmt.Errorf("failed to insert entry: %w", err)
		}
		return nil
	})

	if errors.Is(err, shared.ErrDuplicateEntry) {
		if _, ok := shared.ExistingEntryID(err); !ok {
			return nil, r.duplicateOf(ctx, accountID, fields)
		}
	}
	if err != nil {
		return nil, err
	}

	return entry, nil
}

// duplicateOf resolves a unique index violation into a [shared.DuplicateEntryError] naming the entry that won.
func (r *LibraryRepository) duplicateOf(ctx context.Context, accountID string, fields models.CanonicalFields) error {
	existing, err := r.FindDuplicate(ctx, accountID, fields.ExternalID, fields.Title, fields.Year)
	if err != nil || existing == nil {
		return &shared.DuplicateEntryError{}
	}
	return &shared.DuplicateEntryError{ExistingID: existing.ID}
}

// Get retrieves one entry from accountID's library.
func (r *LibraryRepository) Get(ctx context.Context, accountID, entryID string) (*models.LibraryEntry, error) {
	entry, err := scanEntryRow(r.db.QueryRowContext(ctx,
		selectEntry+` WHERE id = ? AND account_id = ?`, entryID, accountID))
	if err != nil {
		return nil, fmt.Errorf("entry %s: %w", entryID, err)
	}
	return entry, nil
}

// Update applies the supplied editable fields to an entry owned by accountID.
//
// Entries belonging to other accounts report [shared.ErrNotFound], exactly like missing ones.
func (r *LibraryRepository) Update(ctx context.Context, accountID, entryID string, fields models.EditableFields) (*models.LibraryEntry, error) {
	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC()}

	if fields.Notes != nil {
		sets = append(sets, "notes = ?")
		args = append(args, *fields.Notes)
	}
	if fields.PersonalRating != nil {
		sets = append(sets, "personal_rating = ?")
		if *fields.PersonalRating == 0 {
			args = append(args, nil)
		} else {
			args = append(args, *fields.PersonalRating)
		}
	}

	query := fmt.Sprintf(`UPDATE library_entries SET %s WHERE id = ? AND account_id = ?`, strings.Join(sets, ", "))
	args = append(args, entryID, accountID)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update entry: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return nil, fmt.Errorf("entry %s: %w", entryID, shared.ErrNotFound)
	}

	return r.Get(ctx, accountID, entryID)
}

// Delete removes an entry owned by accountID. Missing and foreign entries report [shared.ErrNotFound].
func (r *LibraryRepository) Delete(ctx context.Context, accountID, entryID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM library_entries WHERE id = ? AND account_id = ?`, entryID, accountID)
	if err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("entry %s: %w", entryID, shared.ErrNotFound)
	}

	return nil
}

// List returns accountID's entries, most recently added first.
//
// The sequence is lazy and restartable: each range runs the query again. The underlying rows
// hold a connection until iteration ends, so do not issue other queries on a single-connection
// database from inside the loop.
func (r *LibraryRepository) List(ctx context.Context, accountID string, filter models.ListFilter) iter.Seq2[*models.LibraryEntry, error] {
	query := selectEntry + ` WHERE account_id = ?`
	args := []any{accountID}

	if title := shared.NormalizeTitleKey(filter.Title); title != "" {
		query += ` AND instr(title_key, ?) > 0`
		args = append(args, title)
	}
	if filter.Year > 0 {
		query += ` AND year = ?`
		args = append(args, filter.Year)
	}
	if genre := strings.ToLower(strings.TrimSpace(filter.Genre)); genre != "" {
		query += ` AND instr(lower(genre), ?) > 0`
		args = append(args, genre)
	}

	query += ` ORDER BY sequence DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	return func(yield func(*models.LibraryEntry, error) bool) {
		rows, err := r.db.QueryContext(ctx, query, args...)
		if err != nil {
			yield(nil, fmt.Errorf("failed to query entries: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			entry, err := scanEntry(rows)
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(entry, nil) {
				return
			}
		}

		if err := rows.Err(); err != nil {
			yield(nil, fmt.Errorf("row iteration error: %w", err))
		}
	}
}

// Count returns the number of entries in accountID's library.
func (r *LibraryRepository) Count(ctx context.Context, accountID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM library_entries WHERE account_id = ?`, accountID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return count, nil
}

// Collect drains seq into a slice, stopping at the first error.
func Collect(seq iter.Seq2[*models.LibraryEntry, error]) ([]*models.LibraryEntry, error) {
	var entries []*models.LibraryEntry
	for entry, err := range seq {
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func scanEntryRow(row *sql.Row) (*models.LibraryEntry, error) {
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	return entry, err
}

func scanEntry(s scanner) (*models.LibraryEntry, error) {
	var (
		e              models.LibraryEntry
		externalID     sql.NullString
		year           sql.NullInt64
		posterURL      sql.NullString
		rating         sql.NullFloat64
		personalRating sql.NullInt64
		flags          string
	)

	err := s.Scan(
		&e.ID, &e.Sequence, &e.AccountID, &externalID, &e.Title, &e.TitleKey, &year,
		&e.Director, &e.Genre, &e.Plot, &posterURL, &rating, &e.Notes, &personalRating,
		&flags, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan entry: %w", err)
	}

	if externalID.Valid {
		e.ExternalID = &externalID.String
	}
	if year.Valid {
		y := int(year.Int64)
		e.Year = &y
	}
	if posterURL.Valid {
		e.PosterURL = &posterURL.String
	}
	if rating.Valid {
		e.Rating = &rating.Float64
	}
	if personalRating.Valid {
		pr := int(personalRating.Int64)
		e.PersonalRating = &pr
	}
	e.Flags = models.SplitFlags(flags)

	return &e, nil
}
