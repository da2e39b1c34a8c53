package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/cronrun/internal/callexpr"
	"github.com/roach88/cronrun/internal/ir"
	"github.com/roach88/cronrun/internal/report"
	"github.com/roach88/cronrun/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Tag      string
	Limit    int
	RunID    string
	Call     string
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show journaled runs",
		Long: `Show runs recorded in the SQLite journal, newest first.

Each run's report is rendered again from the stored outcomes, exactly as it
was logged and sent when the run finished.

Examples:
  cronrun history --db ./runs.db
  cronrun history --db ./runs.db --tag daily --limit 5
  cronrun history --db ./runs.db --call "OrderService.sync(10)"
  cronrun history --db ./runs.db --run 0192f0c4-... --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the SQLite run journal (defaults to journal.path)")
	cmd.Flags().StringVar(&opts.Tag, "tag", "", "only runs with this tag")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum number of runs (0 for all)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "show a single run by ID")
	cmd.Flags().StringVar(&opts.Call, "call", "", "only runs containing this exact call")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var call *ir.CallExpression
	if opts.Call != "" {
		expr, err := callexpr.New().Parse(opts.Call)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --call", err)
		}
		call = &expr
	}

	path := opts.Database
	if path == "" {
		cfg, err := loadConfig(opts.RootOptions)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load config", err)
		}
		path = cfg.Journal.Path
	}
	if path == "" {
		return NewExitError(ExitCommandError, "no journal: pass --db or set journal.path")
	}
	if _, err := os.Stat(path); err != nil {
		return WrapExitError(ExitCommandError, "journal not found", err)
	}

	st, err := store.Open(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer st.Close()

	runs, err := loadRuns(ctx, st, opts, call)
	if err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			return WrapExitError(ExitCommandError, "run not found", err)
		}
		return WrapExitError(ExitFailure, "failed to read journal", err)
	}

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	if opts.Format == "json" {
		return formatter.SuccessRun(opts.RunID, runs)
	}

	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded.")
		return nil
	}
	for i, run := range runs {
		if i > 0 {
			fmt.Fprintln(out)
		}
		fmt.Fprintf(out, "# %s  %s  %s\n",
			run.StartedAt.Local().Format("2006-01-02 15:04:05"), run.Batch.ID, run.Batch.Severity)
		fmt.Fprintln(out, report.Render(&run.Batch))
	}
	return nil
}

func loadRuns(ctx context.Context, st *store.Store, opts *HistoryOptions, call *ir.CallExpression) ([]store.Run, error) {
	if opts.RunID != "" {
		run, err := st.ReadRun(ctx, opts.RunID)
		if err != nil {
			return nil, err
		}
		return []store.Run{run}, nil
	}
	return st.ListRuns(ctx, store.ListFilter{Tag: opts.Tag, Limit: opts.Limit, Call: call})
}
