package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/movieweb/internal/models"
	"github.com/desertthunder/movieweb/internal/shared"
	"github.com/desertthunder/movieweb/internal/tasks"
	tu "github.com/desertthunder/movieweb/internal/testing"
)

var inception = models.ProviderResult{
	Provider:   "mock",
	ExternalID: "tt1375666",
	Title:      "Inception",
	Year:       "2010",
	Director:   "Christopher Nolan",
	Genre:      "Action, Adventure, Sci-Fi",
	Plot:       "A thief who steals corporate secrets through dream-sharing technology.",
	Rating:     "8.8",
}

var heat = models.ProviderResult{
	Provider:   "mock",
	ExternalID: "tt0113277",
	Title:      "Heat",
	Year:       "1995",
	Director:   "Michael Mann",
	Genre:      "Crime, Drama",
	Rating:     "8.3",
}

// cliFixture drives the full command tree over an in-memory database.
type cliFixture struct {
	runner *Runner
	output *bytes.Buffer
}

func newCLI(t *testing.T) *cliFixture {
	t.Helper()
	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{
		Logger:   shared.NewLogger(io.Discard),
		Output:   output,
		DB:       tu.SetupTestDB(t),
		Provider: tu.NewMockProvider(inception, heat),
	})
	return &cliFixture{runner: runner, output: output}
}

func (f *cliFixture) run(args ...string) (string, error) {
	f.output.Reset()
	err := newApp(f.runner).Run(context.Background(), append([]string{"movieweb"}, args...))
	return f.output.String(), err
}

func (f *cliFixture) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := f.run(args...)
	if err != nil {
		t.Fatalf("movieweb %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			db := tu.SetupTestDB(t)
			provider := tu.NewMockProvider()

			runner := NewRunner(RunnerOpts{
				Config:   config,
				Logger:   logger,
				Output:   output,
				DB:       db,
				Provider: provider,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.db != db || runner.accounts == nil || runner.library == nil {
				t.Error("expected database and repositories to be set")
			}
			if runner.provider != provider {
				t.Error("expected provider to be set")
			}
			if err := runner.Close(); err != nil || db.Ping() != nil {
				t.Error("Close should leave a caller-owned database open")
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})
			if runner.config == nil || runner.config.Provider.Name != "omdb" {
				t.Errorf("expected default config, got %+v", runner.config)
			}
		})

		t.Run("with nil logger uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})
			if runner.logger == nil {
				t.Error("expected default logger to be created")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})

		t.Run("without database opens nothing", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})
			if runner.db != nil || runner.library != nil {
				t.Error("expected database to be opened lazily")
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := `{"key":"value"}` + "\n"
			if result := output.String(); result != expected {
				t.Errorf("expected %q, got %q", expected, result)
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			// channels cannot be marshaled to JSON
			err := runner.writeJSON(make(chan int), false)
			if err == nil || !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if result := output.String(); result != "hello world" {
				t.Errorf("expected 'hello world', got %q", result)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writePlain("test")
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		names := map[string]bool{}
		for i, cmd := range commands {
			if cmd == nil {
				t.Fatalf("command at index %d is nil", i)
			}
			names[cmd.Name] = true
		}
		for _, want := range []string{"setup", "account", "movie", "export", "import", "serve", "tui"} {
			if !names[want] {
				t.Errorf("command %q not registered", want)
			}
		}
	})

	t.Run("loadConfig", func(t *testing.T) {
		t.Run("missing optional file keeps defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})
			if err := runner.loadConfig(filepath.Join(t.TempDir(), "none.toml"), false); err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		})

		t.Run("missing required file", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})
			err := runner.loadConfig(filepath.Join(t.TempDir(), "none.toml"), true)
			if !errors.Is(err, shared.ErrMissingConfig) {
				t.Errorf("expected ErrMissingConfig, got %v", err)
			}
		})

		t.Run("reads file", func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			os.WriteFile(path, []byte("[provider]\nname = \"tmdb\"\n"), 0644)

			runner := NewRunner(RunnerOpts{})
			if err := runner.loadConfig(path, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if runner.config.Provider.Name != "tmdb" {
				t.Errorf("provider = %q, want tmdb", runner.config.Provider.Name)
			}
		})
	})
}

func TestAccountCommands(t *testing.T) {
	f := newCLI(t)

	out := f.mustRun(t, "account", "add", "alice")
	if !strings.Contains(out, "Created account alice") {
		t.Errorf("unexpected output: %s", out)
	}
	f.mustRun(t, "account", "add", "bob")

	if _, err := f.run("account", "add", "ALICE"); !errors.Is(err, shared.ErrDuplicateAccount) {
		t.Errorf("duplicate name error = %v, want ErrDuplicateAccount", err)
	}
	if _, err := f.run("account", "add"); !errors.Is(err, shared.ErrMissingArgument) {
		t.Errorf("missing name error = %v, want ErrMissingArgument", err)
	}

	f.mustRun(t, "movie", "add", "--account", "alice", "Inception")

	out = f.mustRun(t, "account", "list")
	for _, want := range []string{"alice", "bob", "Movies"} {
		if !strings.Contains(out, want) {
			t.Errorf("account list missing %q:\n%s", want, out)
		}
	}

	var summaries []accountSummary
	if err := json.Unmarshal([]byte(f.mustRun(t, "account", "list", "--json")), &summaries); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(summaries) != 2 || summaries[0].Name != "alice" || summaries[0].Entries != 1 || summaries[1].Entries != 0 {
		t.Errorf("unexpected summaries %+v", summaries)
	}

	t.Run("token", func(t *testing.T) {
		if _, err := f.run("account", "token", "alice"); !errors.Is(err, shared.ErrMissingConfig) {
			t.Errorf("token without secret error = %v, want ErrMissingConfig", err)
		}

		f.runner.config.Server.JWTSecret = "test-secret"
		defer func() { f.runner.config.Server.JWTSecret = "" }()

		out := strings.TrimSpace(f.mustRun(t, "account", "token", "--ttl", "1h", "alice"))
		if strings.Count(out, ".") != 2 {
			t.Errorf("expected a JWT, got %q", out)
		}
	})

	t.Run("delete removes the library", func(t *testing.T) {
		f.mustRun(t, "account", "delete", "alice")

		if _, err := f.run("movie", "list", "--account", "alice"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("listing a deleted account error = %v, want ErrNotFound", err)
		}
		if n, _ := f.runner.library.Count(context.Background(), summaries[0].ID); n != 0 {
			t.Errorf("deleted account still owns %d entries", n)
		}
	})
}

func TestMovieCommands(t *testing.T) {
	f := newCLI(t)
	f.mustRun(t, "account", "add", "alice")
	f.mustRun(t, "account", "add", "bob")

	out := f.mustRun(t, "movie", "add", "--account", "alice", "--year", "2010", "Inception")
	for _, want := range []string{"PENDING_LOOKUP", "INSERTED", "Inception (2010)", "Christopher Nolan"} {
		if !strings.Contains(out, want) {
			t.Errorf("add output missing %q:\n%s", want, out)
		}
	}

	var entry models.LibraryEntry
	if err := json.Unmarshal([]byte(f.mustRun(t, "movie", "add", "--account", "alice", "--json", "Heat")), &entry); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if entry.Title != "Heat" || entry.ID == "" {
		t.Fatalf("unexpected entry %+v", entry)
	}

	t.Run("duplicate add", func(t *testing.T) {
		_, err := f.run("movie", "add", "--account", "alice", "Inception")
		if !errors.Is(err, shared.ErrDuplicateEntry) {
			t.Errorf("error = %v, want ErrDuplicateEntry", err)
		}
		if _, ok := shared.ExistingEntryID(err); !ok {
			t.Error("duplicate error should carry the existing entry id")
		}
	})

	t.Run("other account can add the same film", func(t *testing.T) {
		f.mustRun(t, "movie", "add", "--account", "bob", "Inception")
	})

	t.Run("account is required", func(t *testing.T) {
		if _, err := f.run("movie", "list"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("error = %v, want ErrMissingArgument", err)
		}
		if _, err := f.run("movie", "list", "--account", "carol"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("error = %v, want ErrNotFound", err)
		}
	})

	t.Run("no match", func(t *testing.T) {
		_, err := f.run("movie", "add", "--account", "alice", "Not A Real Movie")
		if !errors.Is(err, shared.ErrNoMatch) {
			t.Errorf("error = %v, want ErrNoMatch", err)
		}
	})

	t.Run("list", func(t *testing.T) {
		out := f.mustRun(t, "movie", "list", "--account", "alice")
		if strings.Index(out, "Heat") > strings.Index(out, "Inception") {
			t.Errorf("newest entry should be listed first:\n%s", out)
		}
		if !strings.Contains(out, "2 movies") {
			t.Errorf("list output missing count:\n%s", out)
		}

		var entries []*models.LibraryEntry
		json.Unmarshal([]byte(f.mustRun(t, "movie", "list", "--account", "alice", "--json", "--genre", "crime")), &entries)
		if len(entries) != 1 || entries[0].Title != "Heat" {
			t.Errorf("genre filter returned %+v", entries)
		}
	})

	t.Run("preview stores nothing", func(t *testing.T) {
		out := f.mustRun(t, "movie", "preview", "Heat")
		if !strings.Contains(out, "Michael Mann") {
			t.Errorf("preview output:\n%s", out)
		}
		if n, _ := f.runner.library.Count(context.Background(), entry.AccountID); n != 2 {
			t.Errorf("library has %d entries after preview, want 2", n)
		}
	})

	t.Run("show", func(t *testing.T) {
		out := f.mustRun(t, "movie", "show", "--account", "alice", entry.ID)
		if !strings.Contains(out, "Heat (1995)") {
			t.Errorf("show output:\n%s", out)
		}
		if _, err := f.run("movie", "show", "--account", "bob", entry.ID); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("foreign entry error = %v, want ErrNotFound", err)
		}
	})

	t.Run("edit", func(t *testing.T) {
		out := f.mustRun(t, "movie", "edit", "--account", "alice", "--rating", "9", "--notes", "rewatch soon", entry.ID)
		if !strings.Contains(out, "9/10") || !strings.Contains(out, "rewatch soon") {
			t.Errorf("edit output:\n%s", out)
		}

		tests := []struct {
			name string
			args []string
			want error
		}{
			{name: "rating out of range", args: []string{"--rating", "11"}, want: shared.ErrInvalidInput},
			{name: "nothing to change", args: nil, want: shared.ErrInvalidInput},
			{name: "foreign entry", args: []string{"--rating", "5"}, want: shared.ErrNotFound},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				account := "alice"
				if tt.name == "foreign entry" {
					account = "bob"
				}
				args := append([]string{"movie", "edit", "--account", account}, tt.args...)
				if _, err := f.run(append(args, entry.ID)...); !errors.Is(err, tt.want) {
					t.Errorf("error = %v, want %v", err, tt.want)
				}
			})
		}
	})

	t.Run("delete", func(t *testing.T) {
		if _, err := f.run("movie", "delete", "--account", "bob", entry.ID); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("foreign delete error = %v, want ErrNotFound", err)
		}
		f.mustRun(t, "movie", "delete", "--account", "alice", entry.ID)
		if _, err := f.run("movie", "show", "--account", "alice", entry.ID); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("deleted entry error = %v, want ErrNotFound", err)
		}
	})
}

func TestImportExportCommands(t *testing.T) {
	f := newCLI(t)
	f.mustRun(t, "account", "add", "alice")

	list := filepath.Join(t.TempDir(), "watchlist.txt")
	os.WriteFile(list, []byte("# weekend\nInception,2010\nHeat\nInception\nNot A Real Movie\n"), 0644)

	t.Run("import", func(t *testing.T) {
		var summary importSummary
		out := f.mustRun(t, "import", "--account", "alice", "--rate", "1000", "--json", list)
		if err := json.Unmarshal([]byte(out), &summary); err != nil {
			t.Fatalf("invalid JSON: %v\n%s", err, out)
		}
		if summary.Total != 4 || summary.Inserted != 2 || summary.Duplicates != 1 || summary.NoMatch != 1 {
			t.Errorf("unexpected summary %+v", summary)
		}
		if summary.Outcomes[3].State != "NOT_FOUND" || summary.Outcomes[3].Error == "" {
			t.Errorf("unexpected outcome %+v", summary.Outcomes[3])
		}
	})

	t.Run("import rejects an empty list", func(t *testing.T) {
		empty := filepath.Join(t.TempDir(), "empty.txt")
		os.WriteFile(empty, []byte("# nothing\n"), 0644)
		if _, err := f.run("import", "--account", "alice", empty); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("error = %v, want ErrInvalidInput", err)
		}
	})

	t.Run("export csv", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "out")
		out := f.mustRun(t, "export", "--account", "alice", "--format", "csv", "--output", dir)
		if !strings.Contains(out, "Exported 2 movies") {
			t.Errorf("export output:\n%s", out)
		}

		csv := tu.MustReadFile(t, filepath.Join(dir, "library.csv"))
		if !strings.Contains(csv, "Heat") || !strings.Contains(csv, "Inception") {
			t.Errorf("csv export:\n%s", csv)
		}
		tu.AssertFileExists(t, filepath.Join(dir, "export_manifest.json"))
	})

	t.Run("export rejects unknown formats", func(t *testing.T) {
		_, err := f.run("export", "--account", "alice", "--format", "xml", "--output", t.TempDir())
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("error = %v, want ErrInvalidArgument", err)
		}
	})
}

func TestSetupCommands(t *testing.T) {
	f := newCLI(t)
	configPath := filepath.Join(t.TempDir(), "config.toml")

	out := f.mustRun(t, "--config", configPath, "setup", "database")
	if !strings.Contains(out, "schema version 1") {
		t.Errorf("setup output:\n%s", out)
	}
	tu.AssertFileExists(t, configPath)

	t.Run("rollback", func(t *testing.T) {
		out := f.mustRun(t, "--config", configPath, "setup", "rollback")
		if !strings.Contains(out, "Rolled back migration 1") {
			t.Errorf("rollback output:\n%s", out)
		}
	})
}

func TestRenderTable(t *testing.T) {
	out := renderTable([]string{"Title", "Year"}, [][]string{{"Heat", "1995"}, {"Short"}}, []columnAlignment{alignLeft, alignRight})
	for _, want := range []string{"Title", "Heat", "1995", "Short"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "TITLE") {
		t.Errorf("headers should keep their case:\n%s", out)
	}
	if renderTable(nil, nil, nil) != "" {
		t.Error("table without headers should render nothing")
	}
}

func TestPrintProgress(t *testing.T) {
	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{Output: output})

	progress, wait := runner.printProgress(true)
	progress <- tasks.ProgressUpdate{State: tasks.PendingLookup, Message: "looking up"}
	wait()
	if !strings.Contains(output.String(), "looking up") {
		t.Errorf("progress output %q", output.String())
	}

	progress, wait = runner.printProgress(false)
	if progress != nil {
		t.Error("disabled progress should hand out a nil channel")
	}
	wait()
}
