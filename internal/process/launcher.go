// Package process launches workload processes and joins them.
// Launcher and Handle are the seam that lets trial tests run without real binaries.
package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"

	"tracebench/pkg/benchtypes"
)

// Command describes one process to launch.
type Command struct {
	Role   benchtypes.Role
	Path   string
	Args   []string
	Env    []string // Full child environment; the orchestrator's own environment is never inherited implicitly
	Dir    string
	Stdout io.Writer
	Stderr io.Writer
}

// String renders the command line as a shell would accept it.
func (c Command) String() string {
	return shellquote.Join(append([]string{c.Path}, c.Args...)...)
}

// Handle is a started process.
type Handle interface {
	// Wait blocks until the process terminates and reports how it ended.
	// It is safe to call only once.
	Wait() benchtypes.ExitStatus
}

// Launcher starts processes.
type Launcher interface {
	Start(ctx context.Context, cmd Command) (Handle, error)
}

// ExecLauncher starts real OS processes with os/exec.
// Cancelling the context passed to Start kills the process.
type ExecLauncher struct {
	now func() time.Time
}

// NewExecLauncher creates a launcher backed by os/exec.
func NewExecLauncher() *ExecLauncher {
	return &ExecLauncher{now: time.Now}
}

// Start launches cmd and returns immediately.
func (l *ExecLauncher) Start(ctx context.Context, cmd Command) (Handle, error) {
	c := exec.CommandContext(ctx, cmd.Path, cmd.Args...)
	c.Env = cmd.Env
	c.Dir = cmd.Dir
	c.Stdout = cmd.Stdout
	c.Stderr = cmd.Stderr
	c.WaitDelay = 5 * time.Second

	started := l.now()
	if err := c.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", cmd.Role, err)
	}
	return &execHandle{cmd: c, role: cmd.Role, started: started, now: l.now}, nil
}

type execHandle struct {
	cmd     *exec.Cmd
	role    benchtypes.Role
	started time.Time
	now     func() time.Time
}

func (h *execHandle) Wait() benchtypes.ExitStatus {
	err := h.cmd.Wait()
	status := benchtypes.ExitStatus{
		Role:      h.role,
		StartedAt: h.started,
		EndedAt:   h.now(),
	}
	if err == nil {
		return status
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		status.Code = exitErr.ExitCode()
		status.Err = fmt.Errorf("%s exited with code %d", h.role, status.Code)
		return status
	}
	status.Code = -1
	status.Err = fmt.Errorf("%s: %w", h.role, err)
	return status
}

// LaunchFailure builds the status of a process that never started.
func LaunchFailure(role benchtypes.Role, err error, at time.Time) benchtypes.ExitStatus {
	return benchtypes.ExitStatus{Role: role, Code: -1, Err: err, EndedAt: at}
}

// CommandRunner runs short-lived helper commands and returns their combined output.
type CommandRunner interface {
	Output(ctx context.Context, dir, name string, args ...string) (string, error)
}

// ExecRunner runs helper commands with os/exec.
type ExecRunner struct{}

// Output runs name with args in dir. The returned output is trimmed; on a
// non-zero exit both the output and an error are returned.
func (ExecRunner) Output(ctx context.Context, dir, name string, args ...string) (string, error) {
	c := exec.CommandContext(ctx, name, args...)
	c.Dir = dir
	out, err := c.CombinedOutput()
	trimmed := strings.TrimSpace(string(out))
	if err != nil {
		return trimmed, fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return trimmed, nil
}
