package formatter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/movieweb/internal/models"
	"github.com/desertthunder/movieweb/internal/shared"
	th "github.com/desertthunder/movieweb/internal/testing"
)

func sampleExport() *models.LibraryExport {
	year := 2010
	rating := 8.8
	return &models.LibraryExport{
		AccountID:  "u1",
		ExportedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Entries: []*models.LibraryEntry{
			{
				ID:        "entry1",
				AccountID: "u1",
				CanonicalFields: models.CanonicalFields{
					ExternalID: th.StrPtr("tt1375666"),
					Title:      "Inception",
					Year:       &year,
					Director:   "Christopher Nolan",
					Genre:      "Action, Sci-Fi",
					Plot:       "A thief who steals corporate secrets.",
					Rating:     &rating,
				},
				Notes:          "Rewatch with\nheadphones",
				PersonalRating: th.IntPtr(9),
			},
			{
				ID:        "entry2",
				AccountID: "u1",
				CanonicalFields: models.CanonicalFields{
					Title: "Obscure Short, Part 2",
					Flags: []models.DegradationFlag{models.FlagYearUnparsable},
				},
			},
		},
	}
}

func TestExporters(t *testing.T) {
	export := sampleExport()

	t.Run("ExportToCSV", func(t *testing.T) {
		data, err := ExportToCSV(export)
		if err != nil {
			t.Fatalf("ExportToCSV failed: %v", err)
		}

		output := string(data)

		if !strings.Contains(output, "ID,Title,Year,Director,Genre,Rating,Personal Rating,External ID,Notes,Degraded") {
			t.Errorf("CSV missing headers, got: %s", output)
		}
		if !strings.Contains(output, "entry1,Inception,2010,Christopher Nolan,\"Action, Sci-Fi\",8.8,9,tt1375666") {
			t.Errorf("CSV missing inception row, got: %s", output)
		}
		if !strings.Contains(output, "\"Obscure Short, Part 2\",,,,,,,,year_unparsable") {
			t.Errorf("CSV should leave unknown fields empty, got: %s", output)
		}
	})

	t.Run("ExportToMarkdown", func(t *testing.T) {
		t.Run("without posters", func(t *testing.T) {
			data, err := ExportToMarkdown(export, nil)
			if err != nil {
				t.Fatalf("ExportToMarkdown failed: %v", err)
			}

			output := string(data)
			if !strings.Contains(output, "# Library of u1") {
				t.Errorf("Markdown missing title, got: %s", output)
			}
			if !strings.Contains(output, "**Movies**: 2") {
				t.Errorf("Markdown missing count")
			}
			if !strings.Contains(output, "## Inception (2010)") {
				t.Errorf("Markdown missing inception heading")
			}
			if !strings.Contains(output, "## Obscure Short, Part 2 (-)") {
				t.Errorf("Markdown should show a dash for unknown years")
			}
			if !strings.Contains(output, "> Rewatch with\n> headphones") {
				t.Errorf("Markdown should quote every line of notes, got: %s", output)
			}
			if strings.Contains(output, "![Poster]") {
				t.Errorf("Markdown should not reference posters")
			}
		})

		t.Run("with posters", func(t *testing.T) {
			data, err := ExportToMarkdown(export, map[string]string{"entry1": PosterFilename("entry1")})
			if err != nil {
				t.Fatalf("ExportToMarkdown failed: %v", err)
			}
			if !strings.Contains(string(data), "![Poster](posters/entry1.jpg)") {
				t.Errorf("Markdown missing poster reference, got: %s", data)
			}
		})
	})

	t.Run("ExportToText", func(t *testing.T) {
		data, err := ExportToText(export)
		if err != nil {
			t.Fatalf("ExportToText failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "Movies: 2") {
			t.Errorf("Text missing count")
		}
		if !strings.Contains(output, "1. Inception (2010) - Christopher Nolan [9/10]") {
			t.Errorf("Text missing first line, got: %s", output)
		}
		if !strings.Contains(output, "2. Obscure Short, Part 2 (-)\n") {
			t.Errorf("Text missing second line, got: %s", output)
		}
	})

	t.Run("ExportToJSON", func(t *testing.T) {
		data, err := ExportToJSON(export)
		if err != nil {
			t.Fatalf("ExportToJSON failed: %v", err)
		}

		var decoded struct {
			AccountID string `json:"account_id"`
			Entries   []struct {
				ID             string   `json:"id"`
				Title          string   `json:"title"`
				Year           *int     `json:"year"`
				PersonalRating *int     `json:"personal_rating"`
				DegradedFlags  []string `json:"degraded_flags"`
			} `json:"entries"`
		}
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("JSON output is invalid: %v", err)
		}

		if decoded.AccountID != "u1" || len(decoded.Entries) != 2 {
			t.Fatalf("unexpected JSON document: %s", data)
		}
		if decoded.Entries[0].Year == nil || *decoded.Entries[0].Year != 2010 {
			t.Errorf("expected year 2010 in JSON")
		}
		if decoded.Entries[1].Year != nil {
			t.Errorf("expected null year in JSON")
		}
		if len(decoded.Entries[1].DegradedFlags) != 1 {
			t.Errorf("expected degraded flags in JSON")
		}
	})
}

func TestDownloadImage(t *testing.T) {
	t.Run("EmptyURL", func(t *testing.T) {
		_, err := DownloadImage(context.Background(), nil, "")
		if err == nil {
			t.Error("DownloadImage with empty URL should return error")
		}
	})

	t.Run("Success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("jpegbytes"))
		}))
		defer srv.Close()

		data, err := DownloadImage(context.Background(), srv.Client(), srv.URL+"/poster.jpg")
		if err != nil {
			t.Fatalf("DownloadImage failed: %v", err)
		}
		if string(data) != "jpegbytes" {
			t.Errorf("unexpected body %q", data)
		}
	})

	t.Run("NonOKStatus", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		if _, err := DownloadImage(context.Background(), srv.Client(), srv.URL); err == nil {
			t.Error("expected error for 404")
		}
	})

	t.Run("ReadFailure", func(t *testing.T) {
		client := &http.Client{Transport: th.NewMockRoundTripper(&http.Response{
			StatusCode: http.StatusOK,
			Body:       &th.FCloser{},
		}, nil)}

		if _, err := DownloadImage(context.Background(), client, "http://posters.test/a.jpg"); err == nil {
			t.Error("expected error when body cannot be read")
		}
	})
}

func TestWriters(t *testing.T) {
	export := sampleExport()

	tc := []struct {
		format string
		file   string
		want   string
	}{
		{format: FormatJSON, file: "library.json", want: `"account_id": "u1"`},
		{format: FormatCSV, file: "library.csv", want: "ID,Title,Year"},
		{format: FormatMarkdown, file: "README.md", want: "# Library of u1"},
		{format: FormatText, file: "library.txt", want: "Library: u1"},
	}

	for _, tt := range tc {
		t.Run(tt.format, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "export")

			files, err := WriteExport(export, tt.format, dir, nil)
			if err != nil {
				t.Fatalf("WriteExport failed: %v", err)
			}
			if len(files) != 1 || files[0] != filepath.Join(dir, tt.file) {
				t.Fatalf("unexpected files %v", files)
			}

			th.AssertFileExists(t, files[0])
			if content := th.MustReadFile(t, files[0]); !strings.Contains(content, tt.want) {
				t.Errorf("%s missing %q, got: %s", tt.file, tt.want, content)
			}
		})
	}

	t.Run("UnknownFormat", func(t *testing.T) {
		_, err := WriteExport(export, "xml", t.TempDir(), nil)
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("WriteExportManifest", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "export_manifest.json")
		manifest := ExportManifest{
			AccountID:    "u1",
			Format:       FormatCSV,
			TotalEntries: 2,
			PostersSaved: 1,
			Files:        []string{"library.csv"},
		}

		if err := WriteExportManifest(manifest, path); err != nil {
			t.Fatalf("WriteExportManifest failed: %v", err)
		}

		content := th.MustReadFile(t, path)
		if !strings.Contains(content, `"format": "csv"`) {
			t.Errorf("Manifest missing format field")
		}
		if !strings.Contains(content, `"total_entries": 2`) {
			t.Errorf("Manifest missing total_entries field")
		}
		if !strings.Contains(content, `"posters_saved": 1`) {
			t.Errorf("Manifest missing posters_saved field")
		}
	})
}

func TestValidFormat(t *testing.T) {
	for _, f := range Formats {
		if !ValidFormat(f) {
			t.Errorf("ValidFormat(%q) = false", f)
		}
	}
	if ValidFormat("pdf") {
		t.Error("ValidFormat(pdf) = true")
	}
}
