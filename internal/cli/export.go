package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/relay/internal/bundle"
	"github.com/roach88/relay/internal/store"
)

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	Database     string
	RunID        string
	Output       string
	NoProvenance bool
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a run as a portable bundle",
		Long: `Export a run and its event log as a canonical JSON bundle.

The bundle is byte-stable: exporting the same run twice produces
identical bytes. By default it carries a provenance block whose digest
covers the run header and every event.

Examples:
  relay export --db ./relay.db --run 0190b5a2-...
  relay export --db ./relay.db --run 0190b5a2-... --out run.bundle.json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run to export (required)")
	_ = cmd.MarkFlagRequired("run")
	cmd.Flags().StringVar(&opts.Output, "out", "", "write bundle to file instead of stdout")
	cmd.Flags().BoolVar(&opts.NoProvenance, "no-provenance", false, "omit the provenance block")

	return cmd
}

func runExport(opts *ExportOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	b, err := bundle.Export(ctx, st, opts.RunID, !opts.NoProvenance)
	if err != nil {
		if store.IsRunNotFound(err) {
			return NewExitError(ExitCommandError, fmt.Sprintf("run not found: %s", opts.RunID))
		}
		return WrapExitError(ExitCommandError, "export failed", err)
	}

	data, err := bundle.Encode(b)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to encode bundle", err)
	}

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, data, 0o644); err != nil {
			return WrapExitError(ExitCommandError, "failed to write bundle", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Exported run %s to %s (%d bytes)\n",
			opts.RunID, opts.Output, len(data))
		return nil
	}

	// Bundles are canonical JSON; stdout gets the raw bytes with a
	// trailing newline for shell friendliness.
	fmt.Fprintf(cmd.OutOrStdout(), "%s\n", data)
	return nil
}
