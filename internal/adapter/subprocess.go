package adapter

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/roach88/relay/internal/event"
	"github.com/roach88/relay/internal/relayerr"
)

const defaultSubprocessTimeout = 30 * time.Second

// Subprocess shells out to an external tool binary.
//
// Each call runs `<base_cmd...> call <tool> <method> --json-args-file
// <path>` where <path> is a mode-0600 temp file holding the canonical
// JSON args. Stdout must be a single JSON object on exit 0. Stderr and
// argument values pass through redaction before appearing in error
// details.
type Subprocess struct {
	id      string
	baseCmd []string
	timeout time.Duration
	cwd     string
	env     map[string]string
}

// SubprocessOption configures a Subprocess adapter.
type SubprocessOption func(*Subprocess)

// WithAdapterID overrides the derived adapter id.
func WithAdapterID(id string) SubprocessOption {
	return func(s *Subprocess) { s.id = id }
}

// WithCallTimeout sets the per-call deadline. Zero keeps the default.
func WithCallTimeout(d time.Duration) SubprocessOption {
	return func(s *Subprocess) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithWorkDir sets the working directory for spawned processes.
func WithWorkDir(dir string) SubprocessOption {
	return func(s *Subprocess) { s.cwd = dir }
}

// WithEnv sets extra environment variables for spawned processes,
// merged over the parent environment.
func WithEnv(env map[string]string) SubprocessOption {
	return func(s *Subprocess) { s.env = env }
}

// NewSubprocess creates a subprocess adapter for the given base
// command. The adapter id defaults to "subprocess:<name>-<hash>" so
// that the same base command always yields the same id.
func NewSubprocess(baseCmd []string, opts ...SubprocessOption) (*Subprocess, error) {
	if len(baseCmd) == 0 {
		return nil, fmt.Errorf("base command must not be empty")
	}
	s := &Subprocess{
		baseCmd: append([]string(nil), baseCmd...),
		timeout: defaultSubprocessTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.id == "" {
		s.id = deriveSubprocessID(s.baseCmd)
	}
	return s, nil
}

func deriveSubprocessID(baseCmd []string) string {
	sum := sha256.Sum256([]byte(strings.Join(baseCmd, "\x00")))
	name := filepath.Base(baseCmd[0])
	return fmt.Sprintf("subprocess:%s-%s", name, hex.EncodeToString(sum[:4]))
}

func (s *Subprocess) ID() string   { return s.id }
func (s *Subprocess) Kind() string { return "subprocess" }

func (s *Subprocess) Capabilities() CapabilitySet {
	return NewCapabilitySet(CapApply, CapTimeout, CapExternal)
}

// Call spawns the tool process and parses its stdout as JSON.
func (s *Subprocess) Call(ctx context.Context, tool, method string, args map[string]any) (map[string]any, error) {
	if err := s.checkCwd(); err != nil {
		return nil, err
	}

	argsFile, cleanup, err := s.writeArgsFile(args)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	argv := make([]string, 0, len(s.baseCmd)+4)
	argv = append(argv, s.baseCmd[1:]...)
	argv = append(argv, "call", tool, method, "--json-args-file", argsFile)

	cmd := exec.CommandContext(callCtx, s.baseCmd[0], argv...)
	cmd.Dir = s.cwd
	cmd.Env = s.buildEnv()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if callCtx.Err() == context.DeadlineExceeded {
		return nil, relayerr.Operationalf(relayerr.CodeTimeout,
			"tool call timed out after %s", s.timeout).
			WithDetail("tool", tool).
			WithDetail("method", method).
			WithDetail("timeout_s", s.timeout.Seconds())
	}
	if runErr != nil {
		return nil, s.classifyRunError(runErr, tool, method, stderr.String())
	}

	result, err := event.DecodeJSON(stdout.Bytes())
	if err != nil {
		return nil, relayerr.NewOperational(relayerr.CodeInvalidJSONOutput,
			"tool output is not valid JSON").
			WithDetail("tool", tool).
			WithDetail("method", method).
			WithDetail("stdout_prefix", RedactText(prefix(stdout.String(), 256)))
	}
	return result, nil
}

func (s *Subprocess) checkCwd() error {
	if s.cwd == "" {
		return nil
	}
	info, err := os.Stat(s.cwd)
	if errors.Is(err, os.ErrNotExist) {
		return relayerr.Operationalf(relayerr.CodeCwdNotFound,
			"working directory does not exist: %s", s.cwd)
	}
	if err != nil {
		return relayerr.Operationalf(relayerr.CodeCwdNotFound,
			"working directory not accessible: %s", s.cwd).
			WithDetail("cause", err.Error())
	}
	if !info.IsDir() {
		return relayerr.Operationalf(relayerr.CodeCwdNotDirectory,
			"working directory is not a directory: %s", s.cwd)
	}
	return nil
}

// writeArgsFile writes args as canonical JSON to a private temp file.
// The returned cleanup removes the file on every exit path.
func (s *Subprocess) writeArgsFile(args map[string]any) (string, func(), error) {
	data, err := event.MarshalCanonical(args)
	if err != nil {
		return "", nil, relayerr.NewBug(fmt.Sprintf("args not JSON-serializable: %v", err))
	}

	f, err := os.CreateTemp("", "relay-args-*.json")
	if err != nil {
		return "", nil, fmt.Errorf("create args file: %w", err)
	}
	path := f.Name()
	cleanup := func() { os.Remove(path) }

	if err := f.Chmod(0o600); err != nil {
		f.Close()
		cleanup()
		return "", nil, fmt.Errorf("chmod args file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		cleanup()
		return "", nil, fmt.Errorf("write args file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("close args file: %w", err)
	}
	return path, cleanup, nil
}

func (s *Subprocess) buildEnv() []string {
	if len(s.env) == 0 {
		return nil
	}
	env := os.Environ()
	for k, v := range s.env {
		env = append(env, k+"="+v)
	}
	return env
}

func (s *Subprocess) classifyRunError(runErr error, tool, method, stderr string) error {
	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		return relayerr.Operationalf(relayerr.CodeNonzeroExit,
			"tool exited with code %d", exitErr.ExitCode()).
			WithDetail("tool", tool).
			WithDetail("method", method).
			WithDetail("exit_code", exitErr.ExitCode()).
			WithDetail("stderr", RedactText(prefix(stderr, 1024)))
	}
	if errors.Is(runErr, exec.ErrNotFound) {
		return relayerr.Operationalf(relayerr.CodeCommandNotFound,
			"command not found: %s", s.baseCmd[0])
	}
	if errors.Is(runErr, os.ErrPermission) {
		return relayerr.Operationalf(relayerr.CodePermissionDenied,
			"permission denied executing: %s", s.baseCmd[0])
	}
	return relayerr.Operationalf(relayerr.CodeNonzeroExit,
		"tool invocation failed: %v", runErr).
		WithDetail("tool", tool).
		WithDetail("method", method)
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
