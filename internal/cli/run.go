package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/relay/internal/config"
	"github.com/roach88/relay/internal/router"
	"github.com/roach88/relay/internal/schema"
	"github.com/roach88/relay/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
}

// runRequest is the wire form of a run request file: the router
// request plus the optional db_path the request may pin.
type runRequest struct {
	router.Request
	DBPath string `json:"db_path,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <request.json>",
		Short: "Execute a run request",
		Long: `Execute a run request against the event store.

The request file declares the goal, mode, plan, policy, and adapter
dispatch. Pass "-" to read the request from stdin. The database path
comes from --db, then the request's db_path, then the config file.

Exit codes:
  0 - run completed
  1 - run failed (policy denial, capability mismatch, adapter errors)
  2 - command error (invalid request, database failure, bugs)

Examples:
  relay run request.json --db ./relay.db
  cat request.json | relay run - --db ./relay.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")

	return cmd
}

func runRun(opts *RunOptions, requestPath string, cmd *cobra.Command) error {
	logLevel := slog.LevelWarn
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel,
	}))

	data, err := readRequest(requestPath, cmd.InOrStdin())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read request", err)
	}
	if err := schema.ValidateRequest(data); err != nil {
		return WrapExitError(ExitCommandError, "invalid request", err)
	}

	var req runRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return WrapExitError(ExitCommandError, "failed to decode request", err)
	}

	cfg, err := loadConfig(opts.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if req.Policy == nil {
		req.Policy = cfg.Policy
	}

	dbPath := opts.Database
	if dbPath == "" {
		dbPath = req.DBPath
	}
	if dbPath == "" {
		dbPath = cfg.DBPath
	}
	if dbPath == "" {
		dbPath = "relay.db"
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	registry, err := cfg.BuildRegistry()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build adapter registry", err)
	}

	rt, err := router.New(st,
		router.WithRegistry(registry),
		router.WithLogger(logger),
	)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build router", err)
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	resp, err := rt.Run(ctx, req.Request)
	if err != nil {
		return WrapExitError(ExitCommandError, "run hit a bug", err)
	}

	f := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	if opts.Format == "json" {
		if err := f.JSON(resp); err != nil {
			return WrapExitError(ExitCommandError, "failed to encode response", err)
		}
	} else {
		printRunText(f.Writer, resp)
	}

	if resp.Error != nil {
		return NewExitError(ExitFailure, fmt.Sprintf("run failed: %s", resp.Error.ErrorCode))
	}
	return nil
}

func printRunText(w io.Writer, resp *router.Response) {
	fmt.Fprintf(w, "Run %s %s (%s)\n", resp.Run.RunID, resp.Run.Status, resp.Run.Mode)
	if resp.Dispatch != nil {
		fmt.Fprintf(w, "  adapter: %s [%s] selected by %s\n",
			resp.Dispatch.AdapterID, resp.Dispatch.AdapterKind, resp.Dispatch.SelectionSource)
	}
	fmt.Fprintf(w, "  steps: %d total, %d ok, %d error\n",
		resp.Summary.StepsTotal, resp.Summary.StepsOK, resp.Summary.StepsError)
	for _, r := range resp.Results {
		line := fmt.Sprintf("    %s: %s", r.StepID, r.Status)
		if r.Simulated {
			line += " (simulated)"
		}
		if r.ErrorCode != "" {
			line += " " + r.ErrorCode
		}
		fmt.Fprintln(w, line)
	}
	if resp.Error != nil {
		fmt.Fprintf(w, "  error: %s\n", resp.Error.ErrorCode)
	}
	if resp.Provenance != nil {
		fmt.Fprintf(w, "  digest: %s\n", resp.Provenance.Digest)
	}
}

// readRequest reads the request file, or stdin for "-".
func readRequest(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

// loadConfig loads the config file when one is given, returning an
// empty config otherwise.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return &config.Config{}, nil
	}
	return config.Load(path)
}
