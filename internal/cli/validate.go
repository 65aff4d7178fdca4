package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/relay/internal/schema"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <request.json>",
		Short: "Validate a run request without executing it",
		Long: `Validate a run request against the request schema.

Checks structure, modes, capability names, and step id uniqueness.
Pass "-" to read the request from stdin.

Exit codes:
  0 - request is valid
  1 - request is invalid
  2 - command error (unreadable file)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *ValidateOptions, requestPath string, cmd *cobra.Command) error {
	data, err := readRequest(requestPath, cmd.InOrStdin())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read request", err)
	}

	f := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if err := schema.ValidateRequest(data); err != nil {
		if outErr := f.Error("INVALID_REQUEST", err.Error(), nil); outErr != nil {
			return WrapExitError(ExitCommandError, "failed to write output", outErr)
		}
		return NewExitError(ExitFailure, "request is invalid")
	}

	if opts.Format == "json" {
		return f.Success(map[string]any{"valid": true})
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Request is valid.")
	return nil
}
