package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/relay/internal/replay"
	"github.com/roach88/relay/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	RunID    string
	Strict   bool
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Rebuild a run from its event log and check invariants",
		Long: `Replay a run's event log.

Rebuilds the per-step timeline from stored events and checks the log's
structural invariants: contiguous sequence numbers, exactly one
RUN_STARTED at the head, step pairing, tool calls inside step windows,
and a single terminal event at the tail.

Exit codes:
  0 - log is well formed (or violations found without --strict)
  1 - violations found with --strict
  2 - command error (run not found, database failure)

Examples:
  relay replay --db ./relay.db --run 0190b5a2-...
  relay replay --db ./relay.db --run 0190b5a2-... --strict --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplayCmd(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run to replay (required)")
	_ = cmd.MarkFlagRequired("run")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "fail on any invariant violation")

	return cmd
}

func runReplayCmd(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	result, err := replay.Replay(ctx, st, opts.RunID, opts.Strict)
	if err != nil {
		if store.IsRunNotFound(err) {
			return NewExitError(ExitCommandError, fmt.Sprintf("run not found: %s", opts.RunID))
		}
		return WrapExitError(ExitCommandError, "replay failed", err)
	}

	f := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	if opts.Format == "json" {
		if err := f.JSON(result); err != nil {
			return WrapExitError(ExitCommandError, "failed to encode result", err)
		}
	} else {
		printReplayText(f, result)
	}

	if !result.OK {
		return NewExitError(ExitFailure,
			fmt.Sprintf("replay found %d violation(s)", len(result.Violations)))
	}
	return nil
}

func printReplayText(f *OutputFormatter, result *replay.Result) {
	view := result.View
	fmt.Fprintf(f.Writer, "Run %s %s (%s)\n", view.Run.RunID, view.Run.Status, view.Run.Mode)
	fmt.Fprintf(f.Writer, "  events: %d\n", view.EventsTotal)
	if view.Terminal != "" {
		fmt.Fprintf(f.Writer, "  terminal: %s\n", view.Terminal)
	}
	for _, step := range view.Steps {
		fmt.Fprintf(f.Writer, "  step %s: %s [seq %d..%d]\n",
			step.StepID, step.Status, step.StartSeq, step.EndSeq)
	}
	if len(result.Violations) == 0 {
		fmt.Fprintln(f.Writer, "  invariants: ok")
		return
	}
	fmt.Fprintf(f.Writer, "  invariants: %d violation(s)\n", len(result.Violations))
	for _, v := range result.Violations {
		fmt.Fprintf(f.Writer, "    [%s] seq %d: %s\n", v.Code, v.Seq, v.Message)
	}
}
