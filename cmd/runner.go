package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/threadx/internal/auth"
	"github.com/desertthunder/threadx/internal/keychain"
	"github.com/desertthunder/threadx/internal/media"
	"github.com/desertthunder/threadx/internal/metrics"
	"github.com/desertthunder/threadx/internal/repositories"
	"github.com/desertthunder/threadx/internal/server"
	"github.com/desertthunder/threadx/internal/services"
	"github.com/desertthunder/threadx/internal/shared"
	"github.com/desertthunder/threadx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Components are built on first use so commands that only touch the config never open
// the database or the keychain.
type Runner struct {
	config     *shared.Config
	configPath string
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	browser    shared.BrowserOpener
	authorizer auth.Authorizer
	metrics    *metrics.Metrics

	keychain  keychain.Store
	db        *sql.DB
	oauth     *auth.OAuthService
	client    *services.APIClient
	threads   *repositories.ThreadRepository
	published *repositories.PublishedPostRepository
	composer  *tasks.Composer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	Browser    shared.BrowserOpener
	Authorizer auth.Authorizer
	Keychain   keychain.Store
	DB         *sql.DB
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
	if opts.Browser == nil {
		opts.Browser = shared.OpenBrowser
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		browser:    opts.Browser,
		authorizer: opts.Authorizer,
		keychain:   opts.Keychain,
		db:         opts.DB,
		metrics:    metrics.New(),
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, countCommand, threadCommand, historyCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Before loads the configuration named by --config, applies the log level and starts the
// metrics endpoint when one is configured.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if path := cmd.String("config"); path != "" {
		r.configPath = path
		if _, err := os.Stat(path); err == nil {
			config, err := shared.LoadConfig(path)
			if err != nil {
				return ctx, fmt.Errorf("%w: %v", shared.ErrInvalidConfig, err)
			}
			r.config = config
		} else {
			r.logger.Debug("config file not found, using defaults", "path", path)
		}
	}

	shared.SetLogLevel(r.logger, shared.ParseLogLevel(r.config.Log.Level))
	if cmd.Bool("debug") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}

	if err := metrics.StartServer(ctx, r.config.Metrics.Addr, r.metrics, r.logger); err != nil {
		r.logger.Warn("metrics endpoint disabled", "addr", r.config.Metrics.Addr, "error", err)
	}
	return ctx, nil
}

// After releases the database connection.
func (r *Runner) After(ctx context.Context, cmd *cli.Command) error {
	return r.Close()
}

// Close releases resources opened by the runner.
func (r *Runner) Close() error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

// SetLogger replaces the runner logger. Components built afterwards use it.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

func (r *Runner) database() (*sql.DB, error) {
	if r.db != nil {
		return r.db, nil
	}
	db, err := shared.OpenMigrated(r.config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	r.db = db
	return db, nil
}

func (r *Runner) threadRepository() (*repositories.ThreadRepository, error) {
	if r.threads != nil {
		return r.threads, nil
	}
	db, err := r.database()
	if err != nil {
		return nil, err
	}
	r.threads = repositories.NewThreadRepository(db)
	return r.threads, nil
}

func (r *Runner) publishedRepository() (*repositories.PublishedPostRepository, error) {
	if r.published != nil {
		return r.published, nil
	}
	db, err := r.database()
	if err != nil {
		return nil, err
	}
	r.published = repositories.NewPublishedPostRepository(db)
	return r.published, nil
}

func (r *Runner) oauthService() (*auth.OAuthService, error) {
	if r.oauth != nil {
		return r.oauth, nil
	}

	if r.keychain == nil {
		store, err := keychain.New(r.config.Keychain)
		if err != nil {
			return nil, err
		}
		r.keychain = store
	}

	authorizer := r.authorizer
	if authorizer == nil {
		loopback, err := server.NewLoopbackAuthorizer(r.config.Server.CallbackAddr(), r.config.Credentials.X.RedirectURI, r.browser, r.logger)
		if err != nil {
			return nil, err
		}
		authorizer = loopback
	}

	r.oauth = auth.NewOAuthService(r.config.Credentials.X, auth.NewTokenStore(r.keychain), authorizer,
		auth.WithHTTPClient(r.httpClient),
		auth.WithLogger(r.logger),
		auth.WithMetrics(r.metrics),
	)
	return r.oauth, nil
}

func (r *Runner) apiClient() (*services.APIClient, error) {
	if r.client != nil {
		return r.client, nil
	}
	oauth, err := r.oauthService()
	if err != nil {
		return nil, err
	}

	httpClient := r.httpClient
	if timeout := r.config.API.TimeoutSeconds; timeout > 0 && httpClient.Timeout == 0 {
		c := *httpClient
		c.Timeout = time.Duration(timeout) * time.Second
		httpClient = &c
	}

	r.client = services.NewAPIClient(r.config.API.BaseURL, oauth, httpClient,
		services.WithRateLimit(r.config.API.RequestsPerSecond),
		services.WithMetrics(r.metrics),
		services.WithClientLogger(r.logger),
	)
	return r.client, nil
}

func (r *Runner) postComposer() (*tasks.Composer, error) {
	if r.composer != nil {
		return r.composer, nil
	}
	client, err := r.apiClient()
	if err != nil {
		return nil, err
	}
	threads, err := r.threadRepository()
	if err != nil {
		return nil, err
	}
	published, err := r.publishedRepository()
	if err != nil {
		return nil, err
	}

	uploader := media.NewUploader(client, r.config.API.UploadURL,
		media.WithMaxBytes(r.config.Limits.MaxImageBytes),
		media.WithMetrics(r.metrics),
		media.WithLogger(r.logger),
	)
	r.composer = tasks.NewComposer(client, uploader, published,
		tasks.WithThreadSaver(threads),
		tasks.WithComposerMetrics(r.metrics),
		tasks.WithComposerLogger(r.logger),
	)
	return r.composer, nil
}

func (r *Runner) limit() int {
	return r.config.Limits.MaxChars
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

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
