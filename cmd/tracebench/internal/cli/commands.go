package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tracebench/internal/compare"
	"tracebench/internal/config"
	"tracebench/internal/experiment"
	"tracebench/internal/matrix"
	"tracebench/internal/metadata"
	"tracebench/internal/precondition"
	"tracebench/internal/report"
	"tracebench/internal/tracing"
)

// runExperiment loads the configuration and runs the full matrix. Per-trial
// failures are summarized but do not change the exit status.
func (app *App) runExperiment(cmd *cobra.Command) error {
	cfg, err := config.Load(app.ConfigPath)
	if err != nil {
		return err
	}
	provider, err := app.NewHost()
	if err != nil {
		return fmt.Errorf("failed to read host state: %w", err)
	}

	result, err := experiment.Run(cmd.Context(), experiment.Options{
		Config:      cfg,
		Host:        provider,
		Launcher:    app.Launcher,
		Commands:    app.Commands,
		Tracing:     tracing.NewLTTngBackend(cfg.Tracing.Command, app.Commands),
		BaseEnv:     app.Environ(),
		CommandLine: os.Args,
		Stdout:      app.Stdout,
		Stderr:      app.Stderr,
	})
	if err != nil {
		return err
	}

	printer := report.NewPrinter(app.Stdout)
	summary := result.Summary
	if summary.Failed > 0 {
		printer.Warning(fmt.Sprintf("%d of %d trials failed, their raw results may be missing", summary.Failed, summary.Planned))
	}
	if summary.Suspect > 0 {
		printer.Warning(fmt.Sprintf("%d traces may be incomplete, see %s", summary.Suspect, metadata.FileName))
	}
	printer.Success("Results written to " + result.OutputDir)
	return nil
}

// addCheckCommand adds the host readiness check
func (app *App) addCheckCommand(rootCmd *cobra.Command) {
	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Check that the host is ready for realtime trials",
		Long: `Run the host preconditions a realtime experiment requires (SMT off, receive
buffers, frequency scaling, privileges) without starting any trial.
Exits non-zero and prints the remediation commands when a check fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			provider, err := app.NewHost()
			if err != nil {
				return fmt.Errorf("failed to read host state: %w", err)
			}
			printer := report.NewPrinter(app.Stdout)
			err = precondition.NewValidator(provider).Validate(cmd.Context(), true)
			var perr *precondition.PreconditionError
			if errors.As(err, &perr) {
				printer.Error(perr.Check + ": " + perr.Problem)
				for _, line := range perr.Remediation {
					printer.Command(line)
				}
			}
			if err != nil {
				return err
			}
			printer.Success("Host is ready for realtime trials")
			return nil
		},
	}
	rootCmd.AddCommand(checkCmd)
}

// addPlanCommand adds the trial plan preview
func (app *App) addPlanCommand(rootCmd *cobra.Command) {
	var raw bool
	var width int

	planCmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the trials an experiment would run",
		Long: `Print the trial matrix of the current configuration in execution order,
with the output names each trial will produce. Nothing is launched.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load(app.ConfigPath)
			if err != nil {
				return err
			}

			md := report.PlanMarkdown(cfg, matrix.Enumerate(cfg, cfg.ExperimentID))
			if raw {
				fmt.Fprint(app.Stdout, md)
				return nil
			}
			rendered, err := report.Render(md, width)
			if err != nil {
				return err
			}
			fmt.Fprint(app.Stdout, rendered)
			return nil
		},
	}

	planCmd.Flags().BoolVar(&raw, "raw", false, "Print markdown without terminal rendering")
	planCmd.Flags().IntVar(&width, "width", 100, "Word wrap width")
	rootCmd.AddCommand(planCmd)
}

// addCompareCommand adds the run log diff
func (app *App) addCompareCommand(rootCmd *cobra.Command) {
	compareCmd := &cobra.Command{
		Use:   "compare <run-log-a> <run-log-b>",
		Short: "Show differences between two experiment_params.log files",
		Long: `Compare the run logs of two experiments line by line to spot configuration,
host or dependency drift that makes their results incomparable. Exits non-zero
when the logs differ.`,
		Args: cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			same, err := compare.NewDiffer(app.Stdout).Files(args[0], args[1])
			if err != nil {
				return err
			}
			if !same {
				return compare.ErrDrift
			}
			return nil
		},
	}
	rootCmd.AddCommand(compareCmd)
}
