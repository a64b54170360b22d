// package formatter provides functions to export library data to various formats (CSV, Markdown, plain text, JSON)
package formatter

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/movieweb/internal/models"
	"github.com/desertthunder/movieweb/internal/shared"
)

// Supported export formats.
const (
	FormatJSON     = "json"
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
	FormatText     = "txt"
)

// Formats lists every format accepted by [WriteExport].
var Formats = []string{FormatJSON, FormatCSV, FormatMarkdown, FormatText}

// ValidFormat reports whether format is one of [Formats].
func ValidFormat(format string) bool {
	for _, f := range Formats {
		if f == format {
			return true
		}
	}
	return false
}

// ExportToCSV converts a LibraryExport to CSV format with columns:
// ID, Title, Year, Director, Genre, Rating, Personal Rating, External ID, Notes, Degraded
func ExportToCSV(export *models.LibraryExport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Title", "Year", "Director", "Genre", "Rating", "Personal Rating", "External ID", "Notes", "Degraded"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, e := range export.Entries {
		record := []string{
			e.ID,
			e.Title,
			optionalInt(e.Year),
			e.Director,
			e.Genre,
			optionalRating(e.Rating),
			optionalInt(e.PersonalRating),
			e.DisplayExternalID(),
			e.Notes,
			models.JoinFlags(e.Flags),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a LibraryExport to Markdown format.
//
// posters maps entry IDs to image paths relative to the Markdown file; entries without one get no image.
func ExportToMarkdown(export *models.LibraryExport, posters map[string]string) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# Library of %s\n\n", export.AccountID))
	buf.WriteString(fmt.Sprintf("**Movies**: %d\n", len(export.Entries)))
	buf.WriteString(fmt.Sprintf("**Exported**: %s\n\n", export.ExportedAt.UTC().Format(time.RFC3339)))

	for _, e := range export.Entries {
		buf.WriteString(fmt.Sprintf("## %s (%s)\n\n", e.Title, e.DisplayYear()))

		if p, ok := posters[e.ID]; ok && p != "" {
			buf.WriteString(fmt.Sprintf("![Poster](%s)\n\n", p))
		}

		if e.Director != "" {
			buf.WriteString(fmt.Sprintf("- **Director**: %s\n", e.Director))
		}
		if e.Genre != "" {
			buf.WriteString(fmt.Sprintf("- **Genre**: %s\n", e.Genre))
		}
		buf.WriteString(fmt.Sprintf("- **Rating**: %s\n", e.DisplayRating()))
		if e.PersonalRating != nil {
			buf.WriteString(fmt.Sprintf("- **My rating**: %d/10\n", *e.PersonalRating))
		}
		buf.WriteString("\n")

		if e.Plot != "" {
			buf.WriteString(e.Plot + "\n\n")
		}
		if e.Notes != "" {
			buf.WriteString(fmt.Sprintf("> %s\n\n", strings.ReplaceAll(e.Notes, "\n", "\n> ")))
		}
	}

	return buf.Bytes(), nil
}

// ExportToText converts a LibraryExport to plain text format
func ExportToText(export *models.LibraryExport) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Library: %s\n", export.AccountID))
	buf.WriteString(fmt.Sprintf("Movies: %d\n\n", len(export.Entries)))

	for i, e := range export.Entries {
		line := fmt.Sprintf("%d. %s (%s)", i+1, e.Title, e.DisplayYear())
		if e.Director != "" {
			line += " - " + e.Director
		}
		if e.PersonalRating != nil {
			line += fmt.Sprintf(" [%d/10]", *e.PersonalRating)
		}
		buf.WriteString(line + "\n")
	}

	return buf.Bytes(), nil
}

// ExportToJSON converts a LibraryExport to indented JSON.
func ExportToJSON(export *models.LibraryExport) ([]byte, error) {
	return shared.MarshalJSON(export, true)
}

// DownloadImage downloads an image from the given URL and returns the raw bytes
func DownloadImage(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("empty URL provided")
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create image request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	return imageData, nil
}

// PosterFilename returns the file name used for an entry's poster inside a Markdown export.
func PosterFilename(entryID string) string {
	return filepath.Join("posters", entryID+".jpg")
}

// WriteExport writes export to outputDir in the given format and returns the created file paths.
//
// Files are named library.{json,csv,txt}; Markdown goes to README.md so posters can sit beside it.
func WriteExport(export *models.LibraryExport, format, outputDir string, posters map[string]string) ([]string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	var (
		data []byte
		name string
		err  error
	)

	switch format {
	case FormatCSV:
		data, err = ExportToCSV(export)
		name = "library.csv"
	case FormatMarkdown:
		data, err = ExportToMarkdown(export, posters)
		name = "README.md"
	case FormatText:
		data, err = ExportToText(export)
		name = "library.txt"
	case FormatJSON, "":
		data, err = ExportToJSON(export)
		name = "library.json"
	default:
		return nil, fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidArgument, format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to generate %s: %w", name, err)
	}

	path := filepath.Join(outputDir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", name, err)
	}

	return []string{path}, nil
}

// ExportManifest summarizes one export run.
type ExportManifest struct {
	AccountID       string    `json:"account_id"`
	Format          string    `json:"format"`
	ExportedAt      time.Time `json:"exported_at"`
	TotalEntries    int       `json:"total_entries"`
	PostersSaved    int       `json:"posters_saved"`
	PostersFailed   int       `json:"posters_failed"`
	Files           []string  `json:"files"`
	OutputDirectory string    `json:"output_directory"`
}

// WriteExportManifest writes manifest as indented JSON to path.
func WriteExportManifest(manifest ExportManifest, path string) error {
	data, err := shared.MarshalJSON(manifest, true)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

func optionalInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func optionalRating(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 1, 64)
}
