// Package execx runs the external tools the entrypoint orchestrates.
// Every phase talks to its collaborators (database CLI, pack builder,
// certificate tool) through the Runner interface so tests can substitute
// fakes and no orchestration logic touches os/exec directly.
package execx

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"git.home.luguber.info/inful/courseboot/internal/foundation"
	"git.home.luguber.info/inful/courseboot/internal/logfields"
)

// Spec describes one external command invocation.
type Spec struct {
	// Argv is the full command line; Argv[0] is resolved via PATH.
	Argv []string
	// Dir is the working directory; empty means inherit.
	Dir string
	// Env entries are appended to the inherited environment.
	Env []string
	// Stdout/Stderr receive streamed output for Run; nil means the
	// orchestrator's own stdio.
	Stdout io.Writer
	Stderr io.Writer
	// Timeout caps the invocation; zero means no per-command limit.
	Timeout time.Duration
}

// Command returns the display form of the invocation.
func (s Spec) Command() string { return strings.Join(s.Argv, " ") }

// Runner abstracts external command execution.
type Runner interface {
	// Run executes the command, streaming output.
	Run(ctx context.Context, spec Spec) error
	// Output executes the command and captures trimmed stdout.
	Output(ctx context.Context, spec Spec) (string, error)
}

// ExecRunner is the os/exec-backed Runner.
type ExecRunner struct {
	logger *slog.Logger
}

// NewRunner creates an ExecRunner. A nil logger falls back to slog.Default.
func NewRunner(logger *slog.Logger) *ExecRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecRunner{logger: logger}
}

// Run executes the command, streaming output to the spec's sinks.
func (r *ExecRunner) Run(ctx context.Context, spec Spec) error {
	cmd, cancel, err := r.prepare(ctx, spec)
	if err != nil {
		return err
	}
	defer cancel()

	cmd.Stdout = spec.Stdout
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	cmd.Stderr = spec.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	start := time.Now()
	r.logger.Debug("Running external command", logfields.Command(spec.Command()))
	runErr := cmd.Run()
	duration := time.Since(start)
	if runErr != nil {
		return commandError(spec, runErr)
	}
	r.logger.Debug("External command finished",
		logfields.Command(spec.Argv[0]),
		logfields.DurationMS(float64(duration.Milliseconds())))
	return nil
}

// Output executes the command and returns its trimmed stdout. Stderr is
// captured and attached to the error on failure.
func (r *ExecRunner) Output(ctx context.Context, spec Spec) (string, error) {
	cmd, cancel, err := r.prepare(ctx, spec)
	if err != nil {
		return "", err
	}
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Debug("Running external command", logfields.Command(spec.Command()))
	if runErr := cmd.Run(); runErr != nil {
		return "", commandErrorWithStderr(spec, runErr, stderr.String())
	}
	return strings.TrimSpace(stdout.String()), nil
}

func (r *ExecRunner) prepare(ctx context.Context, spec Spec) (*exec.Cmd, context.CancelFunc, error) {
	if len(spec.Argv) == 0 {
		return nil, nil, foundation.InternalError("empty command argv").
			WithComponent("execx").
			Build()
	}

	path, err := exec.LookPath(spec.Argv[0])
	if err != nil {
		return nil, nil, foundation.ExternalError("command not found").
			WithComponent("execx").
			WithCause(err).
			WithContext(foundation.Fields{"command": spec.Argv[0]}).
			Build()
	}

	cancel := context.CancelFunc(func() {})
	if spec.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, spec.Timeout)
	}

	// #nosec G204 -- path is from exec.LookPath over an operator-configured argv, not request input
	cmd := exec.CommandContext(ctx, path, spec.Argv[1:]...)
	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}
	return cmd, cancel, nil
}

func commandError(spec Spec, err error) error {
	return commandErrorWithStderr(spec, err, "")
}

func commandErrorWithStderr(spec Spec, err error, stderr string) error {
	fields := foundation.Fields{"command": spec.Command()}
	if code, ok := exitCode(err); ok {
		fields["exit_code"] = code
	}
	if s := strings.TrimSpace(stderr); s != "" {
		fields["stderr"] = s
	}
	return foundation.ExternalError("external command failed").
		WithComponent("execx").
		WithCause(err).
		WithContext(fields).
		Build()
}

// exitCode extracts the process exit status when the error carries one.
func exitCode(err error) (int, bool) {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), true
	}
	return 0, false
}

// ExitCode reports the exit status attached to a classified command error.
func ExitCode(err error) (int, bool) {
	var classified *foundation.ClassifiedError
	if !foundation.AsClassified(err, &classified) {
		return 0, false
	}
	code, ok := classified.Context["exit_code"].(int)
	return code, ok
}
