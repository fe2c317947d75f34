// Package matrix enumerates the trial matrix and drives it sequentially.
package matrix

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hashicorp/go-multierror"

	"tracebench/internal/config"
	"tracebench/internal/logger"
	"tracebench/pkg/benchtypes"
)

// Enumerate lists every trial of experiment id in execution order: message
// sizes outermost, then frequencies, then the untraced trial before the
// traced one.
func Enumerate(cfg *config.ExperimentConfig, id int) []benchtypes.TrialSpec {
	specs := make([]benchtypes.TrialSpec, 0, cfg.TrialCount())
	for _, size := range cfg.MessageSizes {
		for _, freq := range cfg.Frequencies {
			for _, mode := range benchtypes.Modes() {
				specs = append(specs, benchtypes.TrialSpec{
					ExperimentID: id,
					Mode:         mode,
					MessageSize:  size,
					Frequency:    freq,
				})
			}
		}
	}
	return specs
}

// TrialRunner runs one trial. A returned error aborts the matrix.
type TrialRunner interface {
	Run(ctx context.Context, spec benchtypes.TrialSpec) (*benchtypes.TrialResult, error)
}

// SuspectRecorder notes trials whose trace may be incomplete.
type SuspectRecorder interface {
	MarkSuspect(trial, reason string) error
}

// Summary is the outcome of a matrix run.
type Summary struct {
	Planned   int
	Completed int
	Failed    int
	Suspect   int
	Results   []*benchtypes.TrialResult
	Errors    *multierror.Error // Per-trial failures, in trial order
	Elapsed   time.Duration
}

// Err returns the aggregated per-trial failures, or nil.
func (s *Summary) Err() error {
	return s.Errors.ErrorOrNil()
}

// Driver runs the matrix one trial at a time.
type Driver struct {
	cfg      *config.ExperimentConfig
	runner   TrialRunner
	recorder SuspectRecorder
	now      func() time.Time
	log      *log.Logger
}

// NewDriver creates a driver. recorder may be nil.
func NewDriver(cfg *config.ExperimentConfig, runner TrialRunner, recorder SuspectRecorder) *Driver {
	return &Driver{
		cfg:      cfg,
		runner:   runner,
		recorder: recorder,
		now:      time.Now,
		log:      logger.NewStyledLogger("matrix"),
	}
}

// RunFullExperiment runs all 2·|sizes|·|freqs| trials of experiment id.
// Process failures are collected in the summary and the matrix continues;
// a fatal trial error or cancellation of ctx stops it and is returned along
// with the partial summary.
func (d *Driver) RunFullExperiment(ctx context.Context, id int) (*Summary, error) {
	specs := Enumerate(d.cfg, id)
	summary := &Summary{Planned: len(specs)}
	started := d.now()
	defer func() { summary.Elapsed = d.now().Sub(started) }()

	d.log.Info("Running experiment", "experiment", id, "trials", len(specs))

	for i, spec := range specs {
		if err := ctx.Err(); err != nil {
			return summary, fmt.Errorf("experiment interrupted before %s: %w", spec, err)
		}
		d.log.Info(fmt.Sprintf("Trial %d/%d", i+1, len(specs)), "trial", spec.Basename())

		result, err := d.runner.Run(ctx, spec)
		if result != nil {
			summary.Results = append(summary.Results, result)
			d.account(summary, result)
		}
		if err != nil {
			return summary, err
		}
		summary.Completed++
	}
	return summary, nil
}

func (d *Driver) account(summary *Summary, result *benchtypes.TrialResult) {
	if result.Err != nil {
		summary.Failed++
		summary.Errors = multierror.Append(summary.Errors, result.Err)
	}
	if !result.Suspect {
		return
	}
	summary.Suspect++
	if d.recorder == nil {
		return
	}
	if err := d.recorder.MarkSuspect(result.Spec.Basename(), result.SuspectReason); err != nil {
		d.log.Warn("Could not record suspect trial", "trial", result.Spec.Basename(), "error", err)
	}
}

// LogSummary writes the end-of-run summary.
func LogSummary(l *log.Logger, s *Summary) {
	l.Info("Experiment finished",
		"planned", s.Planned,
		"completed", s.Completed,
		"failed", s.Failed,
		"suspect", s.Suspect,
		"elapsed", s.Elapsed.Round(time.Second),
	)
	if s.Errors != nil {
		for _, err := range s.Errors.Errors {
			l.Warn("Trial failure", "error", err)
		}
	}
}
