package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, []int{100, 500, 1000, 2000}, cfg.Frequencies)
	assert.Equal(t, []int{1, 32, 64, 256}, cfg.MessageSizes)
	assert.Equal(t, 3610, cfg.RuntimeMax)
	assert.Equal(t, 10, cfg.RuntimeIgnore)
	assert.True(t, cfg.Realtime)
	assert.Equal(t, 32, cfg.TrialCount())
	require.NoError(t, cfg.Validate())
}

func TestNewConfig_DefaultsAreNotShared(t *testing.T) {
	cfg := NewConfig()
	cfg.Frequencies[0] = 7

	assert.Equal(t, 100, DefaultFrequencies[0])
}

func TestExperimentConfig_RTLaunchOptions(t *testing.T) {
	cfg := NewConfig()
	cfg.RTPriority = 90
	cfg.RTCPUs = 2
	assert.Equal(t, []string{"--use-rt-prio", "90", "--use-rt-cpus", "2"}, cfg.RTLaunchOptions())

	cfg.Realtime = false
	assert.Empty(t, cfg.RTLaunchOptions())
}

func TestExperimentConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *ExperimentConfig)
		wantErr string
	}{
		{
			name:    "empty frequencies",
			mutate:  func(c *ExperimentConfig) { c.Frequencies = nil },
			wantErr: "frequencies must list at least one value",
		},
		{
			name:    "duplicate message size",
			mutate:  func(c *ExperimentConfig) { c.MessageSizes = []int{1, 32, 1} },
			wantErr: "message_sizes lists 1 more than once",
		},
		{
			name:    "zero frequency",
			mutate:  func(c *ExperimentConfig) { c.Frequencies = []int{0} },
			wantErr: "frequencies must be positive",
		},
		{
			name:    "ignore longer than runtime",
			mutate:  func(c *ExperimentConfig) { c.RuntimeIgnore = c.RuntimeMax },
			wantErr: "runtime_ignore",
		},
		{
			name:    "missing middleware",
			mutate:  func(c *ExperimentConfig) { c.Middleware = " " },
			wantErr: "middleware must not be empty",
		},
		{
			name:    "missing traced workspace",
			mutate:  func(c *ExperimentConfig) { c.Workspaces.Traced = "" },
			wantErr: "workspaces",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bench.yaml")
	content := `frequencies: [100, 500]
message_sizes: [1, 32]
realtime: false
runtime_max: 30
runtime_ignore: 5
workspaces:
  traced: /opt/trace_ws
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []int{100, 500}, cfg.Frequencies)
	assert.Equal(t, []int{1, 32}, cfg.MessageSizes)
	assert.False(t, cfg.Realtime)
	assert.Equal(t, 30, cfg.RuntimeMax)
	assert.Equal(t, "/opt/trace_ws", cfg.Workspaces.Traced)
	assert.Equal(t, DefaultUntracedWorkspace, cfg.Workspaces.Untraced)
	assert.Equal(t, DefaultTracingEvents, cfg.Tracing.Events)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bench.yaml")
	require.NoError(t, os.WriteFile(path, []byte("middleware: rmw_fastrtps_cpp\n"), 0644))

	t.Setenv("TRACEBENCH_MIDDLEWARE", "rmw_cyclonedds_cpp")
	t.Setenv("TRACEBENCH_REALTIME", "false")
	t.Setenv("TRACEBENCH_TRACING_CHANNEL", "chan0")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "rmw_cyclonedds_cpp", cfg.Middleware)
	assert.False(t, cfg.Realtime)
	assert.Equal(t, "chan0", cfg.Tracing.Channel)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	var setupErr *SetupError
	assert.ErrorAs(t, err, &setupErr)
	assert.Equal(t, "configuration file", setupErr.What)
}

func TestLoad_InvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bench.yaml")
	require.NoError(t, os.WriteFile(path, []byte("frequencies: [100, 100]\n"), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestSetupError_Error(t *testing.T) {
	err := &SetupError{What: "middleware config", Path: "/tmp/x.xml", Hint: "create it"}
	assert.Equal(t, "setup: middleware config (/tmp/x.xml)\n  create it", err.Error())
}
