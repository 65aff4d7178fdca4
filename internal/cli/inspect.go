package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/relay/internal/event"
	"github.com/roach88/relay/internal/store"
)

// InspectOptions holds flags for the inspect command.
type InspectOptions struct {
	*RootOptions
	Database string
	RunID    string
	Status   string
	Since    string
	Limit    int
	Offset   int
}

// InspectListResult is the JSON shape of a run listing.
type InspectListResult struct {
	Runs   []event.Run  `json:"runs"`
	Counts store.Counts `json:"counts"`
}

// InspectRunResult is the JSON shape of a single-run inspection.
type InspectRunResult struct {
	Run    event.Run     `json:"run"`
	Events []event.Event `json:"events"`
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "List runs or show a run's event log",
		Long: `Inspect the event store.

Without --run, lists runs newest first with global status counts.
With --run, prints the run header and its full event log.

Examples:
  relay inspect --db ./relay.db
  relay inspect --db ./relay.db --status failed --limit 10
  relay inspect --db ./relay.db --run 0190b5a2-... --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "show one run's event log")
	cmd.Flags().StringVar(&opts.Status, "status", "", "filter runs by status (running|completed|failed)")
	cmd.Flags().StringVar(&opts.Since, "since", "", "only runs created at or after this ISO-8601 timestamp")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum runs to list (default 50)")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "runs to skip")

	return cmd
}

func runInspect(opts *InspectOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	f := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if opts.RunID != "" {
		return inspectRun(ctx, st, opts.RunID, f)
	}
	return inspectList(ctx, st, opts, f)
}

func inspectRun(ctx context.Context, st *store.Store, runID string, f *OutputFormatter) error {
	run, err := st.GetRun(ctx, runID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}
	if run == nil {
		return NewExitError(ExitCommandError, fmt.Sprintf("run not found: %s", runID))
	}
	events, err := st.ReadEvents(ctx, runID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read events", err)
	}

	if f.Format == "json" {
		return f.JSON(InspectRunResult{Run: *run, Events: events})
	}

	fmt.Fprintf(f.Writer, "Run %s %s (%s)\n", run.RunID, run.Status, run.Mode)
	fmt.Fprintf(f.Writer, "  goal: %s\n", run.Goal)
	fmt.Fprintf(f.Writer, "  created: %s\n", run.CreatedAt)
	fmt.Fprintf(f.Writer, "  events: %d\n", len(events))
	for _, evt := range events {
		fmt.Fprintf(f.Writer, "  %4d  %-20s %s\n", evt.Seq, evt.Type, evt.TS)
	}
	return nil
}

func inspectList(ctx context.Context, st *store.Store, opts *InspectOptions, f *OutputFormatter) error {
	runs, counts, err := st.ListRuns(ctx, store.ListFilter{
		Status: opts.Status,
		Since:  opts.Since,
		Limit:  opts.Limit,
		Offset: opts.Offset,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	if f.Format == "json" {
		return f.JSON(InspectListResult{Runs: runs, Counts: counts})
	}

	fmt.Fprintf(f.Writer, "%d runs (%d completed, %d failed, %d running)\n",
		counts.Total, counts.Completed, counts.Failed, counts.Running)
	for _, run := range runs {
		fmt.Fprintf(f.Writer, "  %s  %-9s %-7s %s  %s\n",
			run.CreatedAt, run.Status, run.Mode, run.RunID, run.Goal)
	}
	return nil
}
