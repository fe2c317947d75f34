package metadata

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracebench/internal/config"
	"tracebench/internal/host"
	"tracebench/internal/version"
)

var startedAt = time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)

func TestCollect(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Frequencies = []int{100, 500}

	s := Collect(context.Background(), cfg, host.ReadyProvider(), []string{"tracebench", "--config", "my bench.yaml"}, startedAt)

	assert.Equal(t, "bench", s.Host)
	assert.Equal(t, "SCHED_OTHER", s.SchedulingPolicy)
	assert.Equal(t, []float64{3000, 3000}, s.CPUFrequencies)
	assert.Equal(t, "67108864", s.RmemMax)
	assert.Equal(t, host.ServiceDisabled, s.GovernorService)
	assert.Equal(t, "--use-rt-prio 98 --use-rt-cpus 4", s.RTLaunchOptions)
	assert.Equal(t, "tracebench --config 'my bench.yaml'", s.CommandLine)
	assert.True(t, s.Privileged)
	assert.Same(t, cfg, s.Config)
}

func TestCollect_UnreadableHostFacts(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Realtime = false
	provider := &host.StaticProvider{Err: errors.New("permission denied")}

	s := Collect(context.Background(), cfg, provider, nil, startedAt)

	assert.Equal(t, "unavailable (permission denied)", s.Host)
	assert.Equal(t, "unavailable (permission denied)", s.RmemMax)
	assert.Equal(t, "unavailable (permission denied)", s.GovernorService)
	assert.Empty(t, s.CPUFrequencies)
	assert.Equal(t, "none", s.RTLaunchOptions)
}

func TestRecorder_WriteAndAppend(t *testing.T) {
	dir := t.TempDir()
	var echo bytes.Buffer
	r := NewRecorder(dir, &echo)

	cfg := config.NewConfig()
	cfg.Frequencies = []int{100, 500}
	require.NoError(t, r.Write(Collect(context.Background(), cfg, host.ReadyProvider(), []string{"tracebench"}, startedAt)))
	require.NoError(t, r.MarkSuspect("1-trace_Array1k_100hz", "stop failed"))
	require.NoError(t, r.AppendSection("untraced dependency revisions", []byte("repositories:\n  rclcpp: {}")))

	data, err := os.ReadFile(r.Path())
	require.NoError(t, err)
	text := string(data)

	assert.Contains(t, text, "frequencies: [100, 500]")
	assert.Contains(t, text, "message_sizes: [1, 32, 64, 256]")
	assert.Contains(t, text, "suspect: 1-trace_Array1k_100hz (stop failed)\n")
	assert.True(t, strings.HasSuffix(text, "# --- untraced dependency revisions ---\nrepositories:\n  rclcpp: {}\n"))
	assert.Equal(t, text, echo.String())
}

func TestReadSnapshot(t *testing.T) {
	dir := t.TempDir()
	r := NewRecorder(dir, nil)

	cfg := config.NewConfig()
	cfg.MessageSizes = []int{64}
	require.NoError(t, r.Write(Collect(context.Background(), cfg, host.ReadyProvider(), []string{"tracebench"}, startedAt)))
	require.NoError(t, r.MarkSuspect("1-trace_Array64k_100hz", "destroy failed"))
	require.NoError(t, r.AppendSection("middleware configuration", []byte("<CycloneDDS/>\n")))

	s, err := ReadSnapshot(r.Path())
	require.NoError(t, err)
	assert.Equal(t, []int{64}, s.Config.MessageSizes)
	assert.Equal(t, config.DefaultFrequencies, s.Config.Frequencies)
	assert.True(t, s.StartedAt.Equal(startedAt))
	assert.Equal(t, "bench", s.Host)
}

func TestCollect_BuildInfo(t *testing.T) {
	originalCommit, originalDate := version.GitCommit, version.BuildDate
	t.Cleanup(func() { version.GitCommit, version.BuildDate = originalCommit, originalDate })

	tests := []struct {
		name        string
		commit      string
		date        string
		development bool
		buildTime   *time.Time
	}{
		{name: "development build", commit: "unknown", date: "unknown", development: true},
		{
			name:      "release build",
			commit:    "abc1234",
			date:      "2026-01-02T15:04:05Z",
			buildTime: &startedAt,
		},
		{name: "unparseable build date", commit: "abc1234", date: "last tuesday"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version.GitCommit, version.BuildDate = tt.commit, tt.date
			dir := t.TempDir()
			r := NewRecorder(dir, nil)
			require.NoError(t, r.Write(Collect(context.Background(), config.NewConfig(), host.ReadyProvider(), nil, startedAt)))

			s, err := ReadSnapshot(r.Path())
			require.NoError(t, err)
			assert.Equal(t, tt.commit, s.Build.Commit)
			assert.Equal(t, tt.date, s.Build.Date)
			assert.Equal(t, tt.development, s.Build.Development)
			if tt.buildTime == nil {
				assert.Nil(t, s.Build.Time)
			} else {
				require.NotNil(t, s.Build.Time)
				assert.True(t, s.Build.Time.Equal(*tt.buildTime))
			}
		})
	}
}

func TestRecorder_AppendWithoutWrite(t *testing.T) {
	r := NewRecorder(t.TempDir(), nil)
	assert.Error(t, r.MarkSuspect("x", "y"))
}
