// Package experiment wires one complete run: preconditions, environment
// resolution, run metadata, then the trial matrix.
package experiment

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"tracebench/internal/config"
	"tracebench/internal/host"
	"tracebench/internal/logger"
	"tracebench/internal/matrix"
	"tracebench/internal/metadata"
	"tracebench/internal/precondition"
	"tracebench/internal/process"
	"tracebench/internal/tracing"
	"tracebench/internal/trial"
	"tracebench/internal/workload"
	"tracebench/pkg/benchtypes"
)

// DirLayout is the time format of experiment directory names.
const DirLayout = "20060102-150405"

// Options carries everything a run depends on. Nothing is read from the
// process environment except through BaseEnv.
type Options struct {
	Config      *config.ExperimentConfig
	Host        host.StateProvider
	Launcher    process.Launcher
	Commands    process.CommandRunner // Runs the revision export command
	Tracing     tracing.Backend
	BaseEnv     []string // Environment the workload processes start from
	CommandLine []string
	Stdout      io.Writer
	Stderr      io.Writer
	Now         func() time.Time
}

// Report is the outcome of Run.
type Report struct {
	OutputDir string
	Summary   *matrix.Summary
}

// Run executes a full experiment. Nothing is written to disk until the
// preconditions hold and every environment has resolved.
func Run(ctx context.Context, opts Options) (*Report, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}
	if opts.Stderr == nil {
		opts.Stderr = io.Discard
	}
	cfg := opts.Config
	log := logger.NewStyledLogger("experiment")

	if err := precondition.NewValidator(opts.Host).Validate(ctx, cfg.Realtime); err != nil {
		return nil, err
	}
	if !cfg.Realtime {
		log.Warn("Realtime disabled: host preconditions skipped, latencies are not comparable to realtime runs")
	}

	resolver := workload.NewResolver(cfg, opts.BaseEnv)
	middlewareConfig, err := resolver.MiddlewareConfigPath()
	if err != nil {
		return nil, err
	}
	envs, err := resolver.ResolveAll()
	if err != nil {
		return nil, err
	}

	if err := opts.Tracing.Probe(ctx); err != nil {
		return nil, &config.SetupError{
			What: "tracing backend",
			Path: cfg.Tracing.Command,
			Hint: "install lttng-tools and make sure the session daemon can be started",
			Err:  err,
		}
	}

	started := opts.Now()
	// Workloads run with the experiment directory as working directory, so
	// the --logfile paths handed to them must not be relative.
	outputDir, err := filepath.Abs(filepath.Join(cfg.OutputRoot, "exp-"+started.Format(DirLayout)))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve experiment directory: %w", err)
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create experiment directory: %w", err)
	}
	log.Info("Experiment directory", "path", outputDir)
	report := &Report{OutputDir: outputDir}

	recorder := metadata.NewRecorder(outputDir, opts.Stdout)
	if err := recordProvenance(ctx, opts, recorder, envs, middlewareConfig, started); err != nil {
		return report, err
	}

	sessions := tracing.NewController(opts.Tracing, outputDir, tracing.ChannelConfig{
		Name:          cfg.Tracing.Channel,
		SubbufCount:   cfg.Tracing.SubbufCount,
		SubbufSize:    cfg.Tracing.SubbufSize,
		SwitchTimerUS: cfg.Tracing.SwitchTimerUS,
	}, cfg.Tracing.Events)

	runner := trial.NewRunner(cfg, outputDir, envs, opts.Launcher, sessions)
	runner.SetOutput(opts.Stdout, opts.Stderr)
	runner.SetClock(opts.Now)

	summary, err := matrix.NewDriver(cfg, runner, recorder).RunFullExperiment(ctx, cfg.ExperimentID)
	report.Summary = summary
	matrix.LogSummary(log, summary)
	return report, err
}

// recordProvenance writes the snapshot, then each workspace's dependency
// revisions and the middleware configuration file.
func recordProvenance(ctx context.Context, opts Options, recorder *metadata.Recorder, envs map[benchtypes.Mode]*workload.Environment, middlewareConfig string, started time.Time) error {
	cfg := opts.Config
	log := logger.NewStyledLogger("experiment")

	snapshot := metadata.Collect(ctx, cfg, opts.Host, opts.CommandLine, started)
	if err := recorder.Write(snapshot); err != nil {
		return err
	}

	for _, mode := range benchtypes.Modes() {
		env := envs[mode]
		title := fmt.Sprintf("%s dependency revisions (%s)", mode, env.Workspace)
		revisions, err := workload.ExportRevisions(ctx, opts.Commands, env, cfg.DepsExportCommand)
		if err != nil {
			log.Warn("Dependency revisions unavailable", "mode", mode, "error", err)
			revisions = "unavailable (" + err.Error() + ")"
		}
		if err := recorder.AppendSection(title, []byte(revisions)); err != nil {
			return err
		}
	}

	if middlewareConfig == "" {
		return nil
	}
	data, err := os.ReadFile(middlewareConfig)
	if err != nil {
		return &config.SetupError{What: "middleware configuration", Path: middlewareConfig, Err: err}
	}
	return recorder.AppendSection(fmt.Sprintf("middleware configuration (%s)", middlewareConfig), data)
}
