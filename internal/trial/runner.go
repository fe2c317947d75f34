// Package trial runs one publisher/subscriber pair, wrapped in a recording
// session when the trial is traced.
package trial

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"tracebench/internal/config"
	"tracebench/internal/logger"
	"tracebench/internal/process"
	"tracebench/internal/tracing"
	"tracebench/internal/workload"
	"tracebench/pkg/benchtypes"
)

// ProcessError reports a trial where at least one process failed to launch
// or exited non-zero. It never aborts the run.
type ProcessError struct {
	Trial      string
	Publisher  benchtypes.ExitStatus
	Subscriber benchtypes.ExitStatus
}

func (e *ProcessError) Error() string {
	var problems []string
	for _, s := range []benchtypes.ExitStatus{e.Publisher, e.Subscriber} {
		switch {
		case s.Err != nil:
			problems = append(problems, s.Err.Error())
		case s.Code != 0:
			problems = append(problems, fmt.Sprintf("%s exited with code %d", s.Role, s.Code))
		}
	}
	return fmt.Sprintf("trial %s: %s", e.Trial, strings.Join(problems, "; "))
}

// SessionController opens and closes the recording session of a trial.
type SessionController interface {
	Start(ctx context.Context, trial string) (*tracing.Session, error)
	Stop(ctx context.Context, trial string) error
}

// Runner executes single trials. It holds no state between trials.
type Runner struct {
	cfg       *config.ExperimentConfig
	outputDir string
	envs      map[benchtypes.Mode]*workload.Environment
	launcher  process.Launcher
	sessions  SessionController
	stdout    io.Writer
	stderr    io.Writer
	now       func() time.Time
	log       *log.Logger
}

// NewRunner creates a runner writing results into outputDir. envs must hold
// an environment for every mode that will be run.
func NewRunner(cfg *config.ExperimentConfig, outputDir string, envs map[benchtypes.Mode]*workload.Environment, launcher process.Launcher, sessions SessionController) *Runner {
	return &Runner{
		cfg:       cfg,
		outputDir: outputDir,
		envs:      envs,
		launcher:  launcher,
		sessions:  sessions,
		stdout:    io.Discard,
		stderr:    io.Discard,
		now:       time.Now,
		log:       logger.NewStyledLogger("trial"),
	}
}

// SetOutput forwards the workload processes' stdout and stderr. Both
// processes of a pair write to the same writers.
func (r *Runner) SetOutput(stdout, stderr io.Writer) {
	r.stdout, r.stderr = process.SharedOutput(stdout, stderr)
}

// SetClock replaces the clock used for result timestamps.
func (r *Runner) SetClock(now func() time.Time) {
	r.now = now
}

// Run executes spec and blocks until both processes have terminated.
//
// The returned error is fatal to the run: a missing environment, a session
// that could not start, or cancellation of ctx. Process failures are reported
// in the result's Err instead, and a session that could not be stopped marks
// the result Suspect.
func (r *Runner) Run(ctx context.Context, spec benchtypes.TrialSpec) (*benchtypes.TrialResult, error) {
	env, ok := r.envs[spec.Mode]
	if !ok {
		return nil, fmt.Errorf("no %s environment resolved for trial %s", spec.Mode, spec)
	}

	name := spec.Basename()
	result := &benchtypes.TrialResult{
		Spec:           spec,
		PublisherFile:  filepath.Join(r.outputDir, spec.ResultFile(benchtypes.RolePublisher)),
		SubscriberFile: filepath.Join(r.outputDir, spec.ResultFile(benchtypes.RoleSubscriber)),
		StartedAt:      r.now(),
	}
	r.log.Info("Trial starting", "trial", name, "mode", spec.Mode, "size", spec.MessageType(), "freq", spec.Frequency)

	if spec.Mode.Traced() {
		session, err := r.sessions.Start(ctx, name)
		if err != nil {
			result.EndedAt = r.now()
			return result, err
		}
		result.TraceDir = session.OutputDir
	}

	result.Publisher, result.Subscriber = r.runPair(ctx, spec, env)

	if spec.Mode.Traced() {
		// The session is closed even when the run is being interrupted.
		if err := r.sessions.Stop(context.WithoutCancel(ctx), name); err != nil {
			result.Suspect = true
			result.SuspectReason = err.Error()
			r.log.Warn("Trace may be incomplete", "trial", name, "error", err)
		}
	}
	result.EndedAt = r.now()

	if !result.Succeeded() {
		result.Err = &ProcessError{Trial: name, Publisher: result.Publisher, Subscriber: result.Subscriber}
		r.log.Error("Trial failed", "trial", name, "error", result.Err)
	} else {
		r.log.Info("Trial complete", "trial", name, "elapsed", result.Duration().Round(time.Millisecond))
	}

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("trial %s interrupted: %w", name, err)
	}
	return result, nil
}

// runPair starts the publisher then the subscriber and joins both. If the
// subscriber cannot start, the publisher is cancelled and reaped so no
// process outlives its trial.
func (r *Runner) runPair(ctx context.Context, spec benchtypes.TrialSpec, env *workload.Environment) (benchtypes.ExitStatus, benchtypes.ExitStatus) {
	pairCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	pubCmd := workload.Invocation(r.cfg, env, spec, benchtypes.RolePublisher, r.outputDir, r.stdout, r.stderr)
	subCmd := workload.Invocation(r.cfg, env, spec, benchtypes.RoleSubscriber, r.outputDir, r.stdout, r.stderr)
	r.log.Debug("Launching pair", "trial", spec.Basename(), "publisher", pubCmd.String())

	pub, err := r.launcher.Start(pairCtx, pubCmd)
	if err != nil {
		return process.LaunchFailure(benchtypes.RolePublisher, err, r.now()),
			process.LaunchFailure(benchtypes.RoleSubscriber, errors.New("subscriber not started: publisher failed to launch"), r.now())
	}

	sub, err := r.launcher.Start(pairCtx, subCmd)
	if err != nil {
		cancel()
		pubStatus := pub.Wait()
		return pubStatus, process.LaunchFailure(benchtypes.RoleSubscriber, err, r.now())
	}

	return process.WaitBoth(pub, sub)
}
