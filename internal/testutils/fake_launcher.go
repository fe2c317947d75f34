package testutils

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"tracebench/internal/process"
	"tracebench/pkg/benchtypes"
)

// ProcessBehavior scripts how a fake process ends.
type ProcessBehavior struct {
	ExitCode    int
	Delay       time.Duration // Time before the process exits
	StartErr    error         // Returned by Start instead of a handle
	WriteResult bool          // Write a small JSON file at the --logfile path, resolved against Dir, on exit
}

// FakeLauncher records launches and plays back scripted behaviors.
// Behavior, when set, picks the behavior per command; otherwise every process
// exits zero immediately and writes its result file.
type FakeLauncher struct {
	Timeline *Timeline
	Behavior func(cmd process.Command) ProcessBehavior
	Now      func() time.Time

	mu       sync.Mutex
	launches []process.Command
}

// NewFakeLauncher creates a launcher recording into timeline.
func NewFakeLauncher(timeline *Timeline) *FakeLauncher {
	return &FakeLauncher{Timeline: timeline, Now: time.Now}
}

// Launches returns every command passed to Start.
func (l *FakeLauncher) Launches() []process.Command {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]process.Command(nil), l.launches...)
}

// Start implements process.Launcher.
func (l *FakeLauncher) Start(ctx context.Context, cmd process.Command) (process.Handle, error) {
	behavior := ProcessBehavior{WriteResult: true}
	if l.Behavior != nil {
		behavior = l.Behavior(cmd)
	}

	l.mu.Lock()
	l.launches = append(l.launches, cmd)
	l.mu.Unlock()

	trial := TrialOf(cmd)
	if behavior.StartErr != nil {
		l.Timeline.Record("launch-failed %s %s", cmd.Role, trial)
		return nil, behavior.StartErr
	}
	l.Timeline.Record("launch %s %s", cmd.Role, trial)

	return &fakeHandle{
		ctx:      ctx,
		cmd:      cmd,
		trial:    trial,
		behavior: behavior,
		timeline: l.Timeline,
		now:      l.Now,
		started:  l.Now(),
	}, nil
}

type fakeHandle struct {
	ctx      context.Context
	cmd      process.Command
	trial    string
	behavior ProcessBehavior
	timeline *Timeline
	now      func() time.Time
	started  time.Time
}

func (h *fakeHandle) Wait() benchtypes.ExitStatus {
	code := h.behavior.ExitCode
	if h.behavior.Delay > 0 {
		select {
		case <-time.After(h.behavior.Delay):
		case <-h.ctx.Done():
			code = -1
		}
	}

	// Like the real workload, a result file that cannot be written fails the process.
	if h.behavior.WriteResult && code == 0 {
		if path := LogfileOf(h.cmd); path != "" {
			if !filepath.IsAbs(path) && h.cmd.Dir != "" {
				path = filepath.Join(h.cmd.Dir, path)
			}
			if err := os.WriteFile(path, []byte(`{"raw_latencies": [0.1, 0.2]}`), 0644); err != nil {
				code = 7
			}
		}
	}

	h.timeline.Record("exit %s %s", h.cmd.Role, h.trial)
	status := benchtypes.ExitStatus{
		Role:      h.cmd.Role,
		Code:      code,
		StartedAt: h.started,
		EndedAt:   h.now(),
	}
	if code != 0 {
		status.Err = fmt.Errorf("%s exited with code %d", h.cmd.Role, code)
	}
	return status
}

// LogfileOf returns the --logfile argument of a workload command.
func LogfileOf(cmd process.Command) string {
	for i, arg := range cmd.Args {
		if arg == "--logfile" && i+1 < len(cmd.Args) {
			return cmd.Args[i+1]
		}
	}
	return ""
}

// TrialOf returns the trial basename a workload command belongs to.
func TrialOf(cmd process.Command) string {
	name := filepath.Base(LogfileOf(cmd))
	name = strings.TrimSuffix(name, "_p")
	return strings.TrimSuffix(name, "_s")
}
