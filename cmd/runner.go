package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/movieweb/internal/repositories"
	"github.com/desertthunder/movieweb/internal/services"
	"github.com/desertthunder/movieweb/internal/shared"
	"github.com/desertthunder/movieweb/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The database and the metadata provider are opened on first use so commands that need neither
// (setup, help) work without credentials.
type Runner struct {
	config     *shared.Config
	logger     *log.Logger
	output     io.Writer
	httpClient *http.Client
	db         *sql.DB
	ownsDB     bool
	provider   services.MetadataProvider
	accounts   *repositories.AccountRepository
	library    *repositories.LibraryRepository
	reconciler *tasks.ReconciliationService
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	Logger     *log.Logger
	Output     io.Writer
	HTTPClient *http.Client              // Passed to the provider; nil lets it build its own
	DB         *sql.DB                   // Already migrated database; nil opens config.Database.Path
	Provider   services.MetadataProvider // nil builds the provider named in config
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	r := &Runner{
		config:     opts.Config,
		logger:     opts.Logger,
		output:     opts.Output,
		httpClient: opts.HTTPClient,
		provider:   opts.Provider,
	}
	if opts.DB != nil {
		r.setDB(opts.DB)
	}
	return r
}

// SetLogger replaces the logger, e.g. with a file logger while the TUI owns the terminal.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
	r.reconciler = nil
}

// Close releases the database if the Runner opened it.
func (r *Runner) Close() error {
	if r.db == nil || !r.ownsDB {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

func (r *Runner) setDB(db *sql.DB) {
	r.db = db
	r.accounts = repositories.NewAccountRepository(db)
	r.library = repositories.NewLibraryRepository(db)
}

// loadConfig replaces the config with the file at path. A missing file is only an error when required.
func (r *Runner) loadConfig(path string, required bool) error {
	if _, err := os.Stat(path); err != nil {
		if required {
			return fmt.Errorf("%w: %s", shared.ErrMissingConfig, path)
		}
		r.logger.Debug("no config file, using defaults", "path", path)
		r.config.ApplyEnv()
		return nil
	}

	config, err := shared.LoadConfig(path)
	if err != nil {
		return err
	}
	r.config = config
	return nil
}

// openStore opens the configured database and applies pending migrations.
func (r *Runner) openStore() error {
	if r.db != nil {
		return nil
	}

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	r.logger.Debug("database ready", "path", r.config.Database.Path)
	r.setDB(db)
	r.ownsDB = true
	return nil
}

// reconcile returns the reconciliation service, building the provider from config when needed.
func (r *Runner) reconcile() (*tasks.ReconciliationService, error) {
	if r.reconciler != nil {
		return r.reconciler, nil
	}
	if err := r.openStore(); err != nil {
		return nil, err
	}

	if r.provider == nil {
		if err := r.config.Validate(); err != nil {
			return nil, err
		}
		provider, err := services.NewProvider(r.config, r.httpClient)
		if err != nil {
			return nil, err
		}
		r.provider = provider
	}

	r.reconciler = tasks.NewReconciliationService(r.provider, r.library, shared.WithLogger(r.logger, "provider", r.provider.Name()))
	return r.reconciler, nil
}

// resolveAccount maps the --account flag, given as a name or an ID, to an account ID.
func (r *Runner) resolveAccount(ctx context.Context, cmd *cli.Command) (string, error) {
	value := strings.TrimSpace(cmd.String("account"))
	if value == "" {
		return "", fmt.Errorf("%w: --account (or %s)", shared.ErrMissingArgument, envAccount)
	}
	return r.lookupAccount(ctx, value)
}

// lookupAccount finds an account by name first, then by ID.
func (r *Runner) lookupAccount(ctx context.Context, value string) (string, error) {
	if err := r.openStore(); err != nil {
		return "", err
	}

	account, err := r.accounts.GetByName(ctx, value)
	if errors.Is(err, shared.ErrNotFound) {
		account, err = r.accounts.Get(ctx, value)
	}
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return "", fmt.Errorf("account %q: %w (create it with 'movieweb account add')", value, shared.ErrNotFound)
		}
		return "", err
	}
	return account.ID(), nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
