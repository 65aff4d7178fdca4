package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/relay/internal/adapter"
)

// AdaptersOptions holds flags for the adapters command.
type AdaptersOptions struct {
	*RootOptions
}

// AdaptersResult is the JSON shape of the adapter listing.
type AdaptersResult struct {
	Default  string         `json:"default"`
	Adapters []adapter.Info `json:"adapters"`
}

// NewAdaptersCommand creates the adapters command.
func NewAdaptersCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AdaptersOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "adapters",
		Short: "List configured adapters and their capabilities",
		Long: `List the adapters the current configuration registers.

Without --config, only the built-in null adapter is available.

Examples:
  relay adapters --config relay.yaml
  relay adapters --config relay.yaml --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdapters(opts, cmd)
		},
	}

	return cmd
}

func runAdapters(opts *AdaptersOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	registry, err := cfg.BuildRegistry()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build adapter registry", err)
	}

	defaultID := ""
	if def, err := registry.GetDefault(); err == nil {
		defaultID = def.ID()
	}
	infos := registry.ListAdapters()

	f := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	if opts.Format == "json" {
		return f.JSON(AdaptersResult{Default: defaultID, Adapters: infos})
	}

	for _, info := range infos {
		marker := " "
		if info.ID == defaultID {
			marker = "*"
		}
		fmt.Fprintf(f.Writer, "%s %-24s %-11s %s\n",
			marker, info.ID, info.Kind, strings.Join(info.Capabilities, ","))
	}
	return nil
}
