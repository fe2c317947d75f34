package report

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracebench/internal/config"
	"tracebench/pkg/benchtypes"
)

func TestPlanMarkdown(t *testing.T) {
	cfg := config.NewConfig()
	cfg.RuntimeMax = 60
	specs := []benchtypes.TrialSpec{
		{ExperimentID: 1, Mode: benchtypes.ModeUntraced, MessageSize: 1, Frequency: 100},
		{ExperimentID: 1, Mode: benchtypes.ModeTraced, MessageSize: 1, Frequency: 100},
	}

	md := PlanMarkdown(cfg, specs)

	assert.Contains(t, md, "# Experiment 1")
	assert.Contains(t, md, "- **Trials:** 2")
	assert.Contains(t, md, "`--use-rt-prio 98 --use-rt-cpus 4`")
	assert.Contains(t, md, "- **Upper bound:** 2m0s (1m0s per trial)")
	assert.Contains(t, md, "| 1 | `1-base_Array1k_100hz` | untraced | Array1k | 100 Hz | - |")
	assert.Contains(t, md, "| 2 | `1-trace_Array1k_100hz` | traced | Array1k | 100 Hz | trace-1-trace_Array1k_100hz |")
}

func TestPlanMarkdown_NoRealtime(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Realtime = false

	md := PlanMarkdown(cfg, nil)
	assert.NotContains(t, md, "RT launch options")
	assert.Contains(t, md, "- **Realtime:** false")
}

func TestRender(t *testing.T) {
	out, err := Render("# Plan\n\n| a | b |\n|---|---|\n| 1 | 2 |\n", 80)
	require.NoError(t, err)
	assert.Contains(t, out, "Plan")
	assert.True(t, strings.Contains(out, "1") && strings.Contains(out, "2"))
}
