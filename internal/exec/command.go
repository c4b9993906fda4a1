// Package exec provides abstractions for executing external commands.
package exec

//go:generate mockgen -source=command.go -destination=command_mock.go -package=exec

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// CommandResult contains the result of a command execution.
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int

	// Err is set when the command could not run or exited non-zero.
	Err error
}

// Success reports whether the command ran and exited zero.
func (r *CommandResult) Success() bool {
	return r.Err == nil && r.ExitCode == 0
}

// Failed is the negation of Success.
func (r *CommandResult) Failed() bool {
	return !r.Success()
}

// OutputLines returns the non-empty stdout lines followed by the non-empty stderr lines.
func (r *CommandResult) OutputLines() []string {
	var lines []string

	for _, stream := range []string{r.Stdout, r.Stderr} {
		for line := range strings.SplitSeq(stream, "\n") {
			if line = strings.TrimRight(line, "\r"); strings.TrimSpace(line) != "" {
				lines = append(lines, line)
			}
		}
	}

	return lines
}

// CommandRunner executes external commands with output capture.
type CommandRunner interface {
	// Run executes a command bound to ctx.
	Run(ctx context.Context, name string, args ...string) *CommandResult

	// RunWithTimeout executes a command with a specific timeout.
	RunWithTimeout(timeout time.Duration, name string, args ...string) *CommandResult
}

type commandRunner struct {
	defaultTimeout time.Duration
}

// NewCommandRunner creates a CommandRunner. A positive defaultTimeout bounds
// every Run whose context has no deadline of its own.
func NewCommandRunner(defaultTimeout time.Duration) CommandRunner {
	return &commandRunner{
		defaultTimeout: defaultTimeout,
	}
}

func (r *commandRunner) Run(ctx context.Context, name string, args ...string) *CommandResult {
	if _, ok := ctx.Deadline(); !ok && r.defaultTimeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, r.defaultTimeout)
		defer cancel()
	}

	//nolint:gosec // name is the provisioned patch tool or a resolved PATH binary
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	result := &CommandResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	var exitErr *exec.ExitError

	switch {
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
		result.Err = errors.Wrapf(err, "%s exited with code %d", name, result.ExitCode)
	case err != nil:
		result.ExitCode = -1
		result.Err = errors.Wrapf(err, "executing %s", name)
	}

	return result
}

func (r *commandRunner) RunWithTimeout(timeout time.Duration, name string, args ...string) *CommandResult {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	return r.Run(ctx, name, args...)
}
