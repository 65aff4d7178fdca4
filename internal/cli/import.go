package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/relay/internal/bundle"
	"github.com/roach88/relay/internal/store"
)

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	*RootOptions
	Database         string
	Mode             string
	SkipDigestVerify bool
	SkipReplayVerify bool
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import <bundle.json>",
		Short: "Import a bundle into the event store",
		Long: `Import a previously exported bundle.

Verifies the bundle's provenance digest and replays its events against
the run invariants before anything is written; a failed verification
leaves the store untouched. Pass "-" to read the bundle from stdin.

Conflict modes:
  reject_on_conflict - fail if the run id already exists (default)
  new_run_id         - allocate a fresh run id and remap references
  overwrite          - atomically replace the existing run

Examples:
  relay import --db ./relay.db run.bundle.json
  relay import --db ./relay.db --mode new_run_id run.bundle.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Mode, "mode", string(bundle.RejectOnConflict),
		"conflict mode (reject_on_conflict|new_run_id|overwrite)")
	cmd.Flags().BoolVar(&opts.SkipDigestVerify, "skip-digest-verify", false,
		"skip provenance digest verification")
	cmd.Flags().BoolVar(&opts.SkipReplayVerify, "skip-replay-verify", false,
		"skip replay invariant verification")

	return cmd
}

func runImport(opts *ImportOptions, bundlePath string, cmd *cobra.Command) error {
	ctx := context.Background()

	data, err := readBundle(bundlePath, cmd.InOrStdin())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read bundle", err)
	}
	b, err := bundle.Decode(data)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid bundle", err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	result, err := bundle.Import(ctx, st, b, bundle.ImportOptions{
		Mode:             bundle.ImportMode(opts.Mode),
		SkipDigestVerify: opts.SkipDigestVerify,
		SkipReplayVerify: opts.SkipReplayVerify,
	})
	if err != nil {
		var digestErr *bundle.DigestMismatchError
		var replayErr *bundle.ReplayRejectedError
		switch {
		case errors.As(err, &digestErr):
			return WrapExitError(ExitFailure, "bundle rejected", err)
		case errors.As(err, &replayErr):
			return WrapExitError(ExitFailure, "bundle rejected", err)
		case store.IsRunExists(err):
			return WrapExitError(ExitFailure, "run already exists", err)
		}
		return WrapExitError(ExitCommandError, "import failed", err)
	}

	f := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	if opts.Format == "json" {
		return f.JSON(result)
	}
	fmt.Fprintf(f.Writer, "Imported run %s (digest %s)\n", result.RunID, result.Digest)
	if result.Remap {
		fmt.Fprintf(f.Writer, "  remapped from %s\n", b.Run.RunID)
	}
	return nil
}

// readBundle reads the bundle file, or stdin for "-".
func readBundle(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}
