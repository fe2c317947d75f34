// Package cli provides command-line interface setup for tracebench.
package cli

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"tracebench/internal/config"
	"tracebench/internal/host"
	"tracebench/internal/logger"
	"tracebench/internal/process"
)

// App represents the tracebench CLI application. The host, launcher and
// command runner are fields so tests can substitute fakes.
type App struct {
	ConfigPath string
	LogLevel   string
	LogFile    string

	Stdout   io.Writer
	Stderr   io.Writer
	NewHost  func() (host.StateProvider, error)
	Launcher process.Launcher
	Commands process.CommandRunner
	Environ  func() []string
}

// NewApp creates a new tracebench CLI application
func NewApp() *App {
	return &App{
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		NewHost: func() (host.StateProvider, error) {
			return host.NewDefaultSystemProvider()
		},
		Launcher: process.NewExecLauncher(),
		Commands: process.ExecRunner{},
		Environ:  os.Environ,
	}
}

// CreateRootCommand creates and configures the root command
func (app *App) CreateRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "tracebench",
		Short: "Measure the latency overhead of tracing on a pub/sub workload",
		Long: `tracebench runs a publisher/subscriber latency benchmark twice for every
message size and publish rate: once against an untraced build and once against
an instrumented build recorded by LTTng. Raw results, traces and the run
metadata land in a new exp-<timestamp> directory.

With no subcommand the full experiment is run.`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return logger.Configure(app.LogLevel, app.LogFile)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.runExperiment(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&app.ConfigPath, "config", "c", "", "Configuration file (default ./"+config.DefaultConfigName+".yaml if present)")
	rootCmd.PersistentFlags().StringVar(&app.LogLevel, "log-level", "", "Set log level (debug|info|warn|error) [default: info]")
	rootCmd.PersistentFlags().StringVar(&app.LogFile, "log-file", "", "Write logs to file instead of stderr")

	rootCmd.SetOut(app.Stdout)
	rootCmd.SetErr(app.Stderr)

	app.addCheckCommand(rootCmd)
	app.addPlanCommand(rootCmd)
	app.addCompareCommand(rootCmd)
	app.addVersionCommand(rootCmd)

	return rootCmd
}
