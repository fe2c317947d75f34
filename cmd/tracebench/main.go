// Package main provides the tracebench CLI, which measures the latency cost
// of tracing instrumentation on a publish/subscribe workload.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"tracebench/cmd/tracebench/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := cli.NewApp()
	rootCmd := app.CreateRootCommand()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
