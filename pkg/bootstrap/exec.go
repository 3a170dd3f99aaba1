package bootstrap

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
	"strconv"
	"strings"

	derrors "github.com/oneconcern/voteview/pkg/errors"
)

// Runner abstracts command execution for the exec backend
type Runner interface {
	Run(ctx context.Context, stdout io.Writer, name string, args ...string) (stderr []byte, exitCode int, err error)
}

// ExecRunner executes commands on the local host
type ExecRunner struct{}

// Run a command, streaming its stdout to the given writer (may be nil)
func (ExecRunner) Run(ctx context.Context, stdout io.Writer, name string, args ...string) ([]byte, int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stdout = stdout
	if stdout != nil {
		cmd.Stderr = io.MultiWriter(&stderr, stdout)
	} else {
		cmd.Stderr = &stderr
	}

	err := cmd.Run()
	if err == nil {
		return stderr.Bytes(), 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return stderr.Bytes(), exitErr.ExitCode(), err
	}

	exitCode := 1
	var execErr *exec.Error
	if errors.As(err, &execErr) {
		exitCode = 127
	}
	return stderr.Bytes(), exitCode, err
}

// ExecCloner clones repositories with the git binary
type ExecCloner struct {
	runner Runner
	binary string
	output io.Writer
}

// ExecOption configures an ExecCloner
type ExecOption func(*ExecCloner)

// ExecRunnerWith substitutes the command runner
func ExecRunnerWith(r Runner) ExecOption {
	return func(c *ExecCloner) {
		if r != nil {
			c.runner = r
		}
	}
}

// ExecBinary sets the git executable. Defaults to "git" looked up on the PATH.
func ExecBinary(name string) ExecOption {
	return func(c *ExecCloner) {
		if name != "" {
			c.binary = name
		}
	}
}

// ExecOutput forwards git output to w
func ExecOutput(w io.Writer) ExecOption {
	return func(c *ExecCloner) {
		c.output = w
	}
}

// NewExecCloner builds a Cloner running git clone
func NewExecCloner(opts ...ExecOption) *ExecCloner {
	c := &ExecCloner{
		runner: ExecRunner{},
		binary: "git",
	}
	for _, apply := range opts {
		apply(c)
	}
	return c
}

func (c *ExecCloner) String() string {
	return string(BackendExec)
}

// Clone the checkout into target
func (c *ExecCloner) Clone(ctx context.Context, checkout Checkout, target string) error {
	stderr, code, err := c.runner.Run(ctx, c.output, c.binary, cloneArgs(checkout, target)...)
	if err == nil {
		return nil
	}
	msg := strings.TrimSpace(string(stderr))
	if msg == "" {
		msg = "no output"
	}
	return derrors.Errorf("%s exited with status %d: %s", c.binary, code, msg).Wrap(err)
}

func cloneArgs(checkout Checkout, target string) []string {
	args := []string{"clone"}
	if branch := strings.TrimPrefix(strings.TrimPrefix(checkout.Branch, "refs/heads/"), "refs/tags/"); branch != "" {
		args = append(args, "--branch", branch)
	}
	if checkout.Depth > 0 {
		args = append(args, "--depth", strconv.Itoa(checkout.Depth))
	}
	return append(args, "--", checkout.URL, target)
}
