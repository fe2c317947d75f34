// Package report renders the trial plan and run summaries for the terminal.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"tracebench/internal/config"
	"tracebench/internal/logger"
	"tracebench/pkg/benchtypes"
)

// PlanMarkdown describes the trials of an experiment as a markdown document.
func PlanMarkdown(cfg *config.ExperimentConfig, specs []benchtypes.TrialSpec) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Experiment %d\n\n", cfg.ExperimentID)
	fmt.Fprintf(&b, "- **Trials:** %d\n", len(specs))
	fmt.Fprintf(&b, "- **Middleware:** `%s`\n", cfg.Middleware)
	fmt.Fprintf(&b, "- **Realtime:** %t\n", cfg.Realtime)
	if opts := cfg.RTLaunchOptions(); len(opts) > 0 {
		fmt.Fprintf(&b, "- **RT launch options:** `%s`\n", strings.Join(opts, " "))
	}
	perTrial := time.Duration(cfg.RuntimeMax) * time.Second
	fmt.Fprintf(&b, "- **Upper bound:** %s (%s per trial)\n\n", perTrial*time.Duration(len(specs)), perTrial)

	b.WriteString("| # | Trial | Mode | Message | Rate | Trace |\n")
	b.WriteString("|---|---|---|---|---|---|\n")
	for i, s := range specs {
		trace := "-"
		if s.Mode.Traced() {
			trace = s.TraceDir()
		}
		fmt.Fprintf(&b, "| %d | `%s` | %s | %s | %d Hz | %s |\n", i+1, s.Basename(), s.Mode, s.MessageType(), s.Frequency, trace)
	}
	return b.String()
}

// Render turns markdown into terminal output. Without color support the
// markdown is rendered with the plain "notty" style.
func Render(markdown string, width int) (string, error) {
	style := glamour.WithAutoStyle()
	if lipgloss.ColorProfile() == termenv.Ascii {
		style = glamour.WithStandardStyle("notty")
	}

	renderer, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
	if err != nil {
		return "", fmt.Errorf("failed to create markdown renderer: %w", err)
	}

	rendered, err := renderer.Render(markdown)
	if err != nil {
		logger.Debug("Falling back to raw markdown", "error", err)
		return markdown, nil
	}
	return rendered, nil
}
