package tasks

import (
	"context"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/movieweb/internal/formatter"
	"github.com/desertthunder/movieweb/internal/models"
	"github.com/desertthunder/movieweb/internal/shared"
	"golang.org/x/time/rate"
)

// EntryLister lists one account's library, newest first.
//
// Implemented by [repositories.LibraryRepository].
type EntryLister interface {
	List(ctx context.Context, accountID string, filter models.ListFilter) iter.Seq2[*models.LibraryEntry, error]
}

// ExportOpts contains configuration for library exports.
type ExportOpts struct {
	Format     string                                                // Export format: json, csv, markdown, txt
	OutputDir  string                                                // Output directory (default: movieweb_export_{epoch})
	Filter     models.ListFilter                                     // Restricts the exported entries
	Posters    bool                                                  // Download posters next to a Markdown export
	NumWorkers int                                                   // Concurrent poster downloads (default: 5)
	RateLimit  float64                                               // Poster requests per second (default: 5)
	Fetch      func(ctx context.Context, url string) ([]byte, error) // Poster fetcher (default: formatter.DownloadImage)
}

// ExportResult describes the files written by [Exporter.Export].
type ExportResult struct {
	Manifest     formatter.ExportManifest
	ManifestPath string
}

// Exporter writes library snapshots to disk.
type Exporter struct {
	lister EntryLister
	logger *log.Logger
}

// NewExporter creates an Exporter. A nil logger discards output.
func NewExporter(lister EntryLister, logger *log.Logger) *Exporter {
	if logger == nil {
		logger = log.New(nilWriter{})
	}
	return &Exporter{lister: lister, logger: logger}
}

type posterJob struct {
	entryID string
	url     string
}

type posterResult struct {
	entryID string
	path    string
	err     error
}

// Export snapshots accountID's library into opts.OutputDir and writes an export_manifest.json beside it.
//
// With opts.Posters set and the Markdown format, posters are fetched by a rate-limited worker pool.
// A poster that fails to download is counted in the manifest and left out of the Markdown.
func (e *Exporter) Export(ctx context.Context, prog chan<- ProgressUpdate, accountID string, opts ExportOpts) (*ExportResult, error) {
	if accountID == "" {
		return nil, fmt.Errorf("%w: account", shared.ErrMissingArgument)
	}
	if opts.Format == "" {
		opts.Format = formatter.FormatJSON
	}
	if !formatter.ValidFormat(opts.Format) {
		return nil, fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidArgument, opts.Format)
	}
	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("movieweb_export_%d", time.Now().Unix())
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 5
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}
	if opts.Fetch == nil {
		opts.Fetch = func(ctx context.Context, url string) ([]byte, error) {
			return formatter.DownloadImage(ctx, nil, url)
		}
	}

	const total = 3
	sendProgress(prog, exportingUpdate(1, total, "Reading library..."))

	entries := []*models.LibraryEntry{}
	for entry, err := range e.lister.List(ctx, accountID, opts.Filter) {
		if err != nil {
			return nil, fmt.Errorf("failed to read library: %w", err)
		}
		entries = append(entries, entry)
	}

	export := &models.LibraryExport{
		AccountID:  accountID,
		ExportedAt: time.Now().UTC(),
		Entries:    entries,
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	manifest := formatter.ExportManifest{
		AccountID:       accountID,
		Format:          opts.Format,
		ExportedAt:      export.ExportedAt,
		TotalEntries:    len(entries),
		OutputDirectory: opts.OutputDir,
	}

	var posters map[string]string
	if opts.Posters && opts.Format == formatter.FormatMarkdown {
		sendProgress(prog, exportingUpdate(2, total, "Downloading posters..."))
		posters = e.downloadPosters(ctx, entries, opts, &manifest)
	}

	sendProgress(prog, exportingUpdate(3, total, fmt.Sprintf("Writing %d entries as %s...", len(entries), opts.Format)))

	files, err := formatter.WriteExport(export, opts.Format, opts.OutputDir, posters)
	if err != nil {
		return nil, err
	}
	manifest.Files = append(manifest.Files, files...)

	manifestPath := filepath.Join(opts.OutputDir, "export_manifest.json")
	if err := formatter.WriteExportManifest(manifest, manifestPath); err != nil {
		return nil, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}

	e.logger.Info("library exported", "account", accountID, "format", opts.Format, "entries", len(entries), "dir", opts.OutputDir)
	return &ExportResult{Manifest: manifest, ManifestPath: manifestPath}, nil
}

// downloadPosters fetches every poster with a worker pool and returns entry IDs mapped to
// paths relative to the output directory.
func (e *Exporter) downloadPosters(ctx context.Context, entries []*models.LibraryEntry, opts ExportOpts, manifest *formatter.ExportManifest) map[string]string {
	var queued []posterJob
	for _, entry := range entries {
		if entry.PosterURL != nil {
			queued = append(queued, posterJob{entryID: entry.ID, url: *entry.PosterURL})
		}
	}

	posters := make(map[string]string, len(queued))
	if len(queued) == 0 {
		return posters
	}

	if err := os.MkdirAll(filepath.Join(opts.OutputDir, "posters"), 0755); err != nil {
		e.logger.Warn("failed to create poster directory", "error", err)
		manifest.PostersFailed = len(queued)
		return posters
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	jobs := make(chan posterJob, len(queued))
	results := make(chan posterResult, len(queued))

	var wg sync.WaitGroup
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go e.posterWorker(ctx, &wg, limiter, jobs, results, opts)
	}

	for _, job := range queued {
		jobs <- job
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	for res := range results {
		if res.err != nil {
			e.logger.Warn("poster download failed", "entry", res.entryID, "error", res.err)
			continue
		}
		manifest.PostersSaved++
		manifest.Files = append(manifest.Files, filepath.Join(opts.OutputDir, res.path))
		posters[res.entryID] = res.path
	}

	// workers stop early on cancellation; whatever they never picked up failed
	manifest.PostersFailed = len(queued) - manifest.PostersSaved
	return posters
}

// posterWorker downloads posters from the jobs channel until it is drained or ctx is done.
func (e *Exporter) posterWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	limiter *rate.Limiter,
	jobs <-chan posterJob,
	results chan<- posterResult,
	opts ExportOpts,
) {
	defer wg.Done()

	for job := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := limiter.Wait(ctx); err != nil {
			results <- posterResult{entryID: job.entryID, err: err}
			return
		}

		data, err := opts.Fetch(ctx, job.url)
		if err != nil {
			results <- posterResult{entryID: job.entryID, err: err}
			continue
		}

		rel := formatter.PosterFilename(job.entryID)
		if err := os.WriteFile(filepath.Join(opts.OutputDir, rel), data, 0644); err != nil {
			results <- posterResult{entryID: job.entryID, err: err}
			continue
		}
		results <- posterResult{entryID: job.entryID, path: rel}
	}
}
