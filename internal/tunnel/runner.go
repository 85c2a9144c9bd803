package tunnel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// DefaultTool is the command that brings WireGuard configurations up and down.
const DefaultTool = "wg-quick"

// Action is the verb passed to the tool.
type Action string

const (
	Up   Action = "up"
	Down Action = "down"
)

// Runner invokes the external tool for one configuration.
type Runner interface {
	Run(ctx context.Context, action Action, name string) error
}

// CommandError reports that the tool exited unsuccessfully.
// HasCode is false when the process was terminated by a signal.
type CommandError struct {
	Tool    string
	Action  Action
	Name    string
	Code    int
	HasCode bool
}

func (e *CommandError) Error() string {
	if !e.HasCode {
		return fmt.Sprintf("%s %s %s terminated without status code", e.Tool, e.Action, e.Name)
	}
	return fmt.Sprintf("%s %s %s failed with status code %d", e.Tool, e.Action, e.Name, e.Code)
}

// ExecRunner runs the tool as a child process and waits for it to exit.
// The child shares the caller's stdout and stderr unless overridden.
type ExecRunner struct {
	Tool   string
	Stdout io.Writer
	Stderr io.Writer
}

func (r ExecRunner) Run(ctx context.Context, action Action, name string) error {
	tool := r.Tool
	if tool == "" {
		tool = DefaultTool
	}
	// #nosec G204 -- tool and name are operator supplied
	cmd := exec.CommandContext(ctx, tool, string(action), name)
	cmd.Stdin = os.Stdin
	cmd.Stdout = valOr(r.Stdout, os.Stdout)
	cmd.Stderr = valOr(r.Stderr, os.Stderr)

	err := cmd.Run()
	if err == nil {
		return nil
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		code := ee.ExitCode()
		return &CommandError{Tool: tool, Action: action, Name: name, Code: code, HasCode: code >= 0}
	}
	return fmt.Errorf("run %s %s %s: %w", tool, action, name, err)
}

// MockRunner prints the command line it would run and always succeeds.
type MockRunner struct {
	Tool string
	Out  io.Writer
}

func (r MockRunner) Run(_ context.Context, action Action, name string) error {
	tool := r.Tool
	if tool == "" {
		tool = DefaultTool
	}
	_, err := fmt.Fprintf(valOr(r.Out, os.Stdout), "%s %s %s\n", tool, action, name)
	return err
}

func valOr(w io.Writer, def io.Writer) io.Writer {
	if w == nil {
		return def
	}
	return w
}
