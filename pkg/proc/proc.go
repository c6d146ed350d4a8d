// Package proc runs external tools (the archive merger, the patch tool,
// apkeep) and reports exit status and captured output as one result.
//
// A non-zero exit is not an error at this layer: callers inspect
// [Result.ExitCode] and turn it into a domain error carrying the output.
// Run only returns an error when the process could not be started or the
// context was cancelled.
package proc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Command describes a subprocess invocation.
type Command struct {
	Name string
	Args []string
	Dir  string // working directory, empty for the current one
}

// String renders the command line for logs.
func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Result is the outcome of a finished process.
type Result struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
	Duration time.Duration
}

// OK reports whether the process exited with status zero.
func (r Result) OK() bool { return r.ExitCode == 0 }

// Output returns stdout followed by stderr, trimmed.
func (r Result) Output() string {
	return strings.TrimSpace(string(r.Stdout) + "\n" + string(r.Stderr))
}

// Runner executes commands.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// RunnerFunc adapts a function to [Runner].
type RunnerFunc func(ctx context.Context, cmd Command) (Result, error)

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, cmd Command) (Result, error) { return f(ctx, cmd) }

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	Logger *log.Logger
}

// NewExecRunner returns a runner that logs invocations at debug level.
func NewExecRunner(logger *log.Logger) *ExecRunner {
	return &ExecRunner{Logger: logger}
}

// Run starts cmd and waits for it to exit.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) (Result, error) {
	if cmd.Name == "" {
		return Result{}, errors.New("proc: empty command name")
	}
	if r.Logger != nil {
		r.Logger.Debug("exec", "cmd", cmd.String())
	}

	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	start := time.Now()
	err := c.Run()
	res := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes(), Duration: time.Since(start)}

	if ctx.Err() != nil {
		return res, fmt.Errorf("%s cancelled: %w", cmd.Name, ctx.Err())
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return res, fmt.Errorf("start %s: %w", cmd.Name, err)
	}
	return res, nil
}

var _ Runner = (*ExecRunner)(nil)
