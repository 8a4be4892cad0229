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
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/bookx/internal/browser"
	"github.com/desertthunder/bookx/internal/covers"
	"github.com/desertthunder/bookx/internal/repositories"
	"github.com/desertthunder/bookx/internal/services"
	"github.com/desertthunder/bookx/internal/session"
	"github.com/desertthunder/bookx/internal/shared"
	"github.com/desertthunder/bookx/internal/tasks"
	"github.com/desertthunder/bookx/internal/vault"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer

	vault   *vault.Vault
	browser *browser.Manager
	tokens  *session.TokenCache
	ensurer *session.Ensurer
	retrier *session.Retrier
	calil   *services.CalilService
	lists   *services.ListFetcher
	ndl     *services.NDLService
	covers  *covers.Cache

	dbOnce sync.Once
	db     *sql.DB
	dbErr  error
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
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
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	r := &Runner{
		configPath: opts.ConfigPath,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
	if err := r.Configure(opts.Config); err != nil {
		r.logger.Warn("invalid configuration", "error", err)
	}
	return r
}

// Configure (re)builds every component from config. A browser from an earlier configuration is released.
func (r *Runner) Configure(config *shared.Config) error {
	policy, err := session.ParseHeadlessPolicy(config.Browser.Headless)
	if err != nil {
		return err
	}
	opts, err := browser.OptionsFromConfig(config)
	if err != nil {
		return err
	}

	if r.browser != nil {
		r.browser.Release()
	}

	r.config = config
	r.browser = browser.NewManager(opts, r.logger)
	r.vault = vault.NewVault(config.Session.Path, strings.TrimRight(config.Calil.BaseURL, "/")+"/", r.httpClient, r.logger)
	r.calil = services.NewCalilService(config.Calil, r.httpClient, r.logger)
	r.tokens = session.NewTokenCache(r.calil, config.Calil.TokenTTL.Duration, r.logger)
	r.ensurer = session.NewEnsurer(r.vault, r.browser, r.tokens, policy, r.logger)
	r.retrier = session.NewRetrier(r.ensurer, r.tokens, r.logger)
	r.lists = services.NewListFetcher(r.calil, r.retrier, r.logger)
	r.ndl = services.NewNDLService(config.NDL, r.httpClient, r.logger)
	r.covers = covers.NewCache(config.Covers.Dir, r.ndl, r.logger)
	return nil
}

// SetLogger swaps the logger and rebuilds the components so they log through it.
func (r *Runner) SetLogger(logger *log.Logger) error {
	r.logger = logger
	return r.Configure(r.config)
}

// Before loads the --config file when it exists and applies --debug.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.Bool("debug") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}

	path := cmd.String("config")
	if path == "" {
		return ctx, nil
	}
	r.configPath = path

	if _, err := os.Stat(path); err != nil {
		r.logger.Debug("config file not found, using defaults", "path", path)
		return ctx, nil
	}

	config, err := shared.LoadConfig(path)
	if err != nil {
		return ctx, err
	}
	return ctx, r.Configure(config)
}

// database opens the cache database once per run, applying migrations.
func (r *Runner) database() (*sql.DB, error) {
	r.dbOnce.Do(func() {
		r.db, r.dbErr = shared.OpenCache(r.config.Database)
	})
	return r.db, r.dbErr
}

func (r *Runner) repositories() (*repositories.BookRepository, *repositories.BibliographyRepository, error) {
	db, err := r.database()
	if err != nil {
		return nil, nil, err
	}
	return repositories.NewBookRepository(db), repositories.NewBibliographyRepository(db), nil
}

func (r *Runner) engine() (*tasks.BookEngine, error) {
	books, bibs, err := r.repositories()
	if err != nil {
		return nil, err
	}
	return tasks.NewBookEngine(r.lists, r.ndl, books, bibs, r.covers, r.logger), nil
}

// Close shuts the browser down and closes the database. Used when the process is interrupted.
func (r *Runner) Close() error {
	var errs []error
	if r.browser != nil {
		errs = append(errs, r.browser.Close())
	}
	if r.db != nil {
		errs = append(errs, r.db.Close())
	}
	return errors.Join(errs...)
}

// Release leaves the browser running for the next invocation and closes the database.
func (r *Runner) Release() error {
	if r.browser != nil {
		r.browser.Release()
	}
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, listsCommand, booksCommand, apiCommand, serveCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
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
