package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/movieweb/internal/shared"
)

// DegradationFlag names a field the normalizer had to truncate, drop, or substitute.
type DegradationFlag string

const (
	FlagTitleTruncated    DegradationFlag = "title_truncated"
	FlagDirectorTruncated DegradationFlag = "director_truncated"
	FlagGenreTruncated    DegradationFlag = "genre_truncated"
	FlagPlotTruncated     DegradationFlag = "plot_truncated"
	FlagYearUnparsable    DegradationFlag = "year_unparsable"
	FlagPosterURLInvalid  DegradationFlag = "poster_url_invalid"
	FlagRatingUnparsable  DegradationFlag = "rating_unparsable"
	FlagTitleFallback     DegradationFlag = "title_fallback"
)

// CanonicalFields is the strictly typed form of a provider result, produced once by the normalizer.
//
// Optional values are pointers; nil means the provider had nothing usable.
type CanonicalFields struct {
	ExternalID *string           `json:"external_id"`
	Title      string            `json:"title"`
	TitleKey   string            `json:"-"`
	Year       *int              `json:"year"`
	Director   string            `json:"director"`
	Genre      string            `json:"genre"`
	Plot       string            `json:"plot"`
	PosterURL  *string           `json:"poster_url"`
	Rating     *float64          `json:"rating"`
	Flags      []DegradationFlag `json:"degraded_flags"`
}

// Degraded reports whether any field was truncated or dropped during normalization.
func (c CanonicalFields) Degraded() bool {
	return len(c.Flags) > 0
}

// HasFlag reports whether f was recorded.
func (c CanonicalFields) HasFlag(f DegradationFlag) bool {
	for _, flag := range c.Flags {
		if flag == f {
			return true
		}
	}
	return false
}

// DegradedErr returns an error wrapping [shared.ErrValidationDegraded] that lists the flags, or nil.
func (c CanonicalFields) DegradedErr() error {
	if !c.Degraded() {
		return nil
	}
	return fmt.Errorf("%w: %s", shared.ErrValidationDegraded, JoinFlags(c.Flags))
}

// JoinFlags renders flags as the comma separated form stored in the database.
func JoinFlags(flags []DegradationFlag) string {
	parts := make([]string, len(flags))
	for i, f := range flags {
		parts[i] = string(f)
	}
	return strings.Join(parts, ",")
}

// SplitFlags parses the stored form produced by [JoinFlags].
func SplitFlags(s string) []DegradationFlag {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	flags := make([]DegradationFlag, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			flags = append(flags, DegradationFlag(p))
		}
	}
	return flags
}

// LibraryEntry is one normalized movie owned by an account.
//
// Sequence increases monotonically across the table and orders entries by creation.
type LibraryEntry struct {
	ID        string `json:"id"`
	Sequence  int    `json:"-"`
	AccountID string `json:"account_id"`
	CanonicalFields
	Notes          string    `json:"notes"`
	PersonalRating *int      `json:"personal_rating"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// DisplayYear formats the year or a dash when unknown.
func (e *LibraryEntry) DisplayYear() string {
	if e.Year == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *e.Year)
}

// DisplayRating formats the provider rating or a dash when unknown.
func (e *LibraryEntry) DisplayRating() string {
	if e.Rating == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", *e.Rating)
}

// DisplayExternalID returns the provider id or an empty string.
func (e *LibraryEntry) DisplayExternalID() string {
	if e.ExternalID == nil {
		return ""
	}
	return *e.ExternalID
}

// EditableFields is the subset of an entry a user may change.
//
// Nil fields are left untouched. A PersonalRating of 0 clears the rating.
type EditableFields struct {
	Notes          *string `json:"notes,omitempty"`
	PersonalRating *int    `json:"personal_rating,omitempty"`
}

// Empty reports whether no field was supplied.
func (f EditableFields) Empty() bool {
	return f.Notes == nil && f.PersonalRating == nil
}

// ListFilter narrows [LibraryEntry] listings. Zero values match everything.
type ListFilter struct {
	Title string // case-insensitive substring of the title
	Year  int
	Genre string // case-insensitive substring of the genre
	Limit int
}

// LibraryExport is a snapshot of one account's library, newest entries first.
type LibraryExport struct {
	AccountID  string          `json:"account_id"`
	ExportedAt time.Time       `json:"exported_at"`
	Entries    []*LibraryEntry `json:"entries"`
}
