package cli

import (
	"context"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/cronrun/internal/config"
	"github.com/roach88/cronrun/internal/engine"
	"github.com/roach88/cronrun/internal/lifecycle"
	"github.com/roach88/cronrun/internal/notify"
	"github.com/roach88/cronrun/internal/registry"
	"github.com/roach88/cronrun/internal/report"
	"github.com/roach88/cronrun/internal/services"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	NoNotify bool
	Grace    time.Duration

	// RunIDs overrides the run ID generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs engine.RunIDGenerator

	// HTTPClient overrides the webhook client (for testing).
	HTTPClient *http.Client

	// Sleep overrides both the webhook backoff and the grace wait (for testing).
	Sleep func(ctx context.Context, d time.Duration) error

	// Exit is called after a termination signal releases resources.
	// If nil, defaults to os.Exit.
	Exit func(code int)

	// Register adds extra services to the registry (for testing).
	Register func(reg *registry.Registry, m *lifecycle.Manager)
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <tag> <call>...",
		Short: "Run a batch of service calls",
		Long: `Run a batch of Service.function(args) calls in order under a tag.

Each call runs only after the previous one finished. After the first failure
the remaining calls are skipped. Shared resources are released, the report
is logged, and a failed batch is posted to the configured webhook.

Arguments are integers, 'quoted text', true/false, or {..}/[..] literals.
The exit status is 0 whenever the batch ran, even if calls failed; 3 means a
call named a service outside the allow-list and nothing ran.

Example:
  cronrun run daily "OrderService.sync(10)" "UserService.ping()"
  cronrun run --db ./runs.db hourly "TestService.test1('a', {a:1})"`,
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(opts, args[0], args[1:], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the SQLite run journal (overrides journal.path)")
	cmd.Flags().BoolVar(&opts.NoNotify, "no-notify", false, "never post to the webhook")
	cmd.Flags().DurationVar(&opts.Grace, "grace", config.Default().Grace.Std(), "wait after the report is sent (overrides grace)")

	return cmd
}

func runBatch(opts *RunOptions, tag string, exprs []string, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if cmd.Flags().Changed("db") {
		cfg.Journal.Path = opts.Database
	}
	if opts.NoNotify {
		cfg.Notify.Enabled = false
	}
	if cmd.Flags().Changed("grace") {
		cfg.Grace = config.Duration(opts.Grace)
	}

	logger, err := newLogger(cfg.Log, opts.Verbose, cmd.ErrOrStderr())
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid log settings", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid config", err)
	}

	// Every way out of this function releases resources exactly once.
	m := lifecycle.New(logger)
	defer m.Shutdown()
	defer m.RecoverAndShutdown()

	exit := opts.Exit
	if exit == nil {
		exit = os.Exit
	}
	stop := m.ShutdownOnSignal(exit, os.Interrupt, syscall.SIGTERM)
	defer stop()

	m.Provide(services.ResourceJournal, services.JournalOpener(cfg.Journal.Path))
	m.Provide(services.ResourcePostgres, services.PostgresOpener(cfg.Postgres.DSN, logger))

	reg := registry.New(cfg.AllowedServices)
	services.Register(reg, m, logger)
	if opts.Register != nil {
		opts.Register(reg, m)
	}

	notifyOpts := []notify.Option{notify.WithLogger(logger)}
	if opts.HTTPClient != nil {
		notifyOpts = append(notifyOpts, notify.WithHTTPClient(opts.HTTPClient))
	}
	if opts.Sleep != nil {
		notifyOpts = append(notifyOpts, notify.WithSleep(opts.Sleep))
	}
	channel := notify.New(notify.Config{
		Enabled:    cfg.Notify.Enabled,
		WebhookURL: cfg.Notify.WebhookURL,
		MaxRetries: cfg.Notify.MaxRetries,
		Backoff:    notify.NewBackoff(cfg.Notify.Backoff, cfg.Notify.RetryDelay.Std(), cfg.Notify.MaxRetryDelay.Std()),
		Timeout:    cfg.Notify.Timeout.Std(),
		Location:   loc,
	}, notifyOpts...)

	engineOpts := []engine.Option{
		engine.WithNotifier(channel),
		engine.WithReleaser(m),
		engine.WithLogger(logger),
		engine.WithStrictNesting(cfg.Parser.StrictNesting),
		engine.WithCallTimeout(cfg.CallTimeout.Std()),
		engine.WithGrace(cfg.Grace.Std()),
	}
	if cfg.Journal.Path != "" {
		engineOpts = append(engineOpts, engine.WithJournal(func(ctx context.Context) (engine.Journal, error) {
			s, err := services.Journal(ctx, m)
			if err != nil {
				return nil, err
			}
			return s, nil
		}))
	}
	if opts.RunIDs != nil {
		engineOpts = append(engineOpts, engine.WithRunIDGenerator(opts.RunIDs))
	}
	if opts.Sleep != nil {
		engineOpts = append(engineOpts, engine.WithSleep(opts.Sleep))
	}
	eng := engine.New(reg, engineOpts...)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	batch, err := eng.Run(ctx, tag, exprs)
	if err != nil {
		if registry.IsUnauthorized(err) {
			return WrapExitError(ExitUnauthorized, "unauthorized service", err)
		}
		return WrapExitError(ExitFailure, "run failed", err)
	}

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	if opts.Format == "json" {
		return formatter.SuccessRun(batch.ID, batch)
	}
	return formatter.Success(report.Render(batch))
}
