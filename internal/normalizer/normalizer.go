// Package normalizer converts provider results into [models.CanonicalFields].
//
// Normalization never fails. Fields that do not fit storage limits are truncated and
// fields that cannot be parsed are dropped, each recording a [models.DegradationFlag].
package normalizer

import (
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/desertthunder/movieweb/internal/models"
	"github.com/desertthunder/movieweb/internal/shared"
)

// Storage limits, in runes.
const (
	MaxTitleLength    = 255
	MaxDirectorLength = 255
	MaxGenreLength    = 255
	MaxPlotLength     = 2000
)

const (
	MinYear   = 1870
	MaxYear   = 2100
	MaxRating = 10.0
)

var yearPattern = regexp.MustCompile(`(?:^|\D)(\d{4})(?:\D|$)`)

// Normalize converts raw into canonical fields, recording a flag for every field it had to degrade.
func Normalize(raw models.ProviderResult) models.CanonicalFields {
	var c models.CanonicalFields

	if id := strings.TrimSpace(raw.ExternalID); id != "" {
		c.ExternalID = &id
	}

	c.Title = truncateField(&c, strings.TrimSpace(raw.Title), MaxTitleLength, models.FlagTitleTruncated)
	c.TitleKey = TitleKey(c.Title)
	c.Director = truncateField(&c, strings.TrimSpace(raw.Director), MaxDirectorLength, models.FlagDirectorTruncated)
	c.Genre = truncateField(&c, strings.TrimSpace(raw.Genre), MaxGenreLength, models.FlagGenreTruncated)
	c.Plot = truncateField(&c, strings.TrimSpace(raw.Plot), MaxPlotLength, models.FlagPlotTruncated)

	if y := strings.TrimSpace(raw.Year); y != "" {
		if year, ok := ParseYear(y); ok {
			c.Year = &year
		} else {
			c.Flags = append(c.Flags, models.FlagYearUnparsable)
		}
	}

	if p := strings.TrimSpace(raw.PosterURL); p != "" {
		if ValidPosterURL(p) {
			c.PosterURL = &p
		} else {
			c.Flags = append(c.Flags, models.FlagPosterURLInvalid)
		}
	}

	if r := strings.TrimSpace(raw.Rating); r != "" {
		if rating, ok := ParseRating(r); ok {
			c.Rating = &rating
		} else {
			c.Flags = append(c.Flags, models.FlagRatingUnparsable)
		}
	}

	return c
}

// FallbackTitle fills an empty title with the title the user asked for.
func FallbackTitle(c *models.CanonicalFields, requested string) {
	if c.Title != "" {
		return
	}
	c.Title = truncateField(c, strings.TrimSpace(requested), MaxTitleLength, models.FlagTitleTruncated)
	c.TitleKey = TitleKey(c.Title)
	c.Flags = append(c.Flags, models.FlagTitleFallback)
}

// TitleKey returns the folded form of title used to detect duplicates.
func TitleKey(title string) string {
	return shared.NormalizeTitleKey(title)
}

// ParseYear extracts the first four digit run in s, so "2010–2012" yields 2010.
func ParseYear(s string) (int, bool) {
	m := yearPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	year, err := strconv.Atoi(m[1])
	if err != nil || year < MinYear || year > MaxYear {
		return 0, false
	}
	return year, true
}

// ParseRating parses a provider rating rounded to one decimal place.
func ParseRating(s string) (float64, bool) {
	s = strings.TrimSuffix(s, "/10")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || v < 0 || v > MaxRating {
		return 0, false
	}
	return math.Round(v*10) / 10, true
}

// ValidPosterURL reports whether s is an absolute http or https URL with a host.
func ValidPosterURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Truncate shortens s to at most n runes. The boolean reports whether anything was cut.
func Truncate(s string, n int) (string, bool) {
	if utf8.RuneCountInString(s) <= n {
		return s, false
	}
	return string([]rune(s)[:n]), true
}

func truncateField(c *models.CanonicalFields, s string, n int, flag models.DegradationFlag) string {
	s, cut := Truncate(s, n)
	if cut {
		c.Flags = append(c.Flags, flag)
	}
	return s
}
