// Package config provides the experiment configuration for tracebench.
// Configuration is assembled once at start from built-in defaults, an optional
// YAML file and TRACEBENCH_* environment variables, and is read-only afterwards.
package config

import (
	"fmt"
	"strconv"
	"strings"
)

// ExperimentConfig holds every parameter of one experiment run.
type ExperimentConfig struct {
	ExperimentID      int              `mapstructure:"experiment_id" yaml:"experiment_id"`
	Frequencies       []int            `mapstructure:"frequencies" yaml:"frequencies,flow"`     // Publish rates in Hz, inner loop order
	MessageSizes      []int            `mapstructure:"message_sizes" yaml:"message_sizes,flow"` // Message sizes in KiB, outer loop order
	RuntimeMax        int              `mapstructure:"runtime_max" yaml:"runtime_max"`          // Max trial runtime in seconds, enforced by the workload
	RuntimeIgnore     int              `mapstructure:"runtime_ignore" yaml:"runtime_ignore"`    // Warm-up seconds discarded by the workload
	Communication     string           `mapstructure:"communication" yaml:"communication"`      // Workload communication profile
	Middleware        string           `mapstructure:"middleware" yaml:"middleware"`            // Middleware implementation (RMW_IMPLEMENTATION)
	MiddlewareConfig  string           `mapstructure:"middleware_config" yaml:"middleware_config"`
	Realtime          bool             `mapstructure:"realtime" yaml:"realtime"`
	RTPriority        int              `mapstructure:"rt_priority" yaml:"rt_priority"`
	RTCPUs            int              `mapstructure:"rt_cpus" yaml:"rt_cpus"` // CPU affinity mask for the workload
	OutputRoot        string           `mapstructure:"output_root" yaml:"output_root"`
	DepsExportCommand string           `mapstructure:"deps_export_command" yaml:"deps_export_command"`
	Workload          WorkloadConfig   `mapstructure:"workload" yaml:"workload"`
	Workspaces        WorkspacesConfig `mapstructure:"workspaces" yaml:"workspaces"`
	Tracing           TracingConfig    `mapstructure:"tracing" yaml:"tracing"`
}

// WorkloadConfig locates the workload executable inside a built workspace.
type WorkloadConfig struct {
	Package    string `mapstructure:"package" yaml:"package"`
	Executable string `mapstructure:"executable" yaml:"executable"`
}

// WorkspacesConfig points at the two prebuilt workload environments.
type WorkspacesConfig struct {
	Untraced string `mapstructure:"untraced" yaml:"untraced"`
	Traced   string `mapstructure:"traced" yaml:"traced"`
	EnvFile  string `mapstructure:"env_file" yaml:"env_file"` // Optional dotenv file, relative to each workspace
}

// TracingConfig describes the recording session opened around traced trials.
type TracingConfig struct {
	Command       string `mapstructure:"command" yaml:"command"`
	Channel       string `mapstructure:"channel" yaml:"channel"`
	Events        string `mapstructure:"events" yaml:"events"`
	SubbufCount   int    `mapstructure:"subbuf_count" yaml:"subbuf_count"`
	SubbufSize    string `mapstructure:"subbuf_size" yaml:"subbuf_size"`
	SwitchTimerUS int    `mapstructure:"switch_timer_us" yaml:"switch_timer_us"`
}

// Default configuration values. The matrix dimensions match what the
// plotting scripts assume when they read an experiment directory.
var (
	DefaultFrequencies  = []int{100, 500, 1000, 2000}
	DefaultMessageSizes = []int{1, 32, 64, 256}
)

// Default scalar configuration values.
const (
	DefaultExperimentID      = 1
	DefaultRuntimeMax        = 60*60 + 10
	DefaultRuntimeIgnore     = 10
	DefaultCommunication     = "ROS2"
	DefaultMiddleware        = "rmw_cyclonedds_cpp"
	DefaultMiddlewareConfig  = "cyclonedds.xml"
	DefaultRealtime          = true
	DefaultRTPriority        = 98
	DefaultRTCPUs            = 4
	DefaultOutputRoot        = "."
	DefaultDepsExportCommand = "vcs export --exact src"
	DefaultWorkloadPackage   = "performance_test"
	DefaultWorkloadExe       = "perf_test"
	DefaultUntracedWorkspace = "base_ws"
	DefaultTracedWorkspace   = "trace_ws"
	DefaultTracingCommand    = "lttng"
	DefaultTracingChannel    = "ros2"
	DefaultTracingEvents     = "ros2:*"
	DefaultSubbufCount       = 8
	DefaultSubbufSize        = "2M"
	DefaultSwitchTimerUS     = 1000000
)

// NewConfig creates a configuration populated with default values.
func NewConfig() *ExperimentConfig {
	return &ExperimentConfig{
		ExperimentID:      DefaultExperimentID,
		Frequencies:       append([]int(nil), DefaultFrequencies...),
		MessageSizes:      append([]int(nil), DefaultMessageSizes...),
		RuntimeMax:        DefaultRuntimeMax,
		RuntimeIgnore:     DefaultRuntimeIgnore,
		Communication:     DefaultCommunication,
		Middleware:        DefaultMiddleware,
		MiddlewareConfig:  DefaultMiddlewareConfig,
		Realtime:          DefaultRealtime,
		RTPriority:        DefaultRTPriority,
		RTCPUs:            DefaultRTCPUs,
		OutputRoot:        DefaultOutputRoot,
		DepsExportCommand: DefaultDepsExportCommand,
		Workload: WorkloadConfig{
			Package:    DefaultWorkloadPackage,
			Executable: DefaultWorkloadExe,
		},
		Workspaces: WorkspacesConfig{
			Untraced: DefaultUntracedWorkspace,
			Traced:   DefaultTracedWorkspace,
		},
		Tracing: TracingConfig{
			Command:       DefaultTracingCommand,
			Channel:       DefaultTracingChannel,
			Events:        DefaultTracingEvents,
			SubbufCount:   DefaultSubbufCount,
			SubbufSize:    DefaultSubbufSize,
			SwitchTimerUS: DefaultSwitchTimerUS,
		},
	}
}

// TrialCount returns the number of trials the matrix will run.
func (c *ExperimentConfig) TrialCount() int {
	return len(c.MessageSizes) * len(c.Frequencies) * 2
}

// RTLaunchOptions returns the workload options that pin it to real-time
// scheduling. It is empty when realtime mode is off.
func (c *ExperimentConfig) RTLaunchOptions() []string {
	if !c.Realtime {
		return nil
	}
	return []string{
		"--use-rt-prio", strconv.Itoa(c.RTPriority),
		"--use-rt-cpus", strconv.Itoa(c.RTCPUs),
	}
}

// Validate checks that the configuration can produce a well-formed matrix.
func (c *ExperimentConfig) Validate() error {
	if c.ExperimentID < 0 {
		return fmt.Errorf("experiment_id must not be negative, got %d", c.ExperimentID)
	}
	if err := validateDimension("frequencies", c.Frequencies); err != nil {
		return err
	}
	if err := validateDimension("message_sizes", c.MessageSizes); err != nil {
		return err
	}
	if c.RuntimeMax <= 0 {
		return fmt.Errorf("runtime_max must be positive, got %d", c.RuntimeMax)
	}
	if c.RuntimeIgnore < 0 || c.RuntimeIgnore >= c.RuntimeMax {
		return fmt.Errorf("runtime_ignore must be in [0, runtime_max), got %d", c.RuntimeIgnore)
	}
	if strings.TrimSpace(c.Communication) == "" {
		return fmt.Errorf("communication must not be empty")
	}
	if strings.TrimSpace(c.Middleware) == "" {
		return fmt.Errorf("middleware must not be empty")
	}
	if c.Workspaces.Untraced == "" || c.Workspaces.Traced == "" {
		return fmt.Errorf("both workspaces.untraced and workspaces.traced must be set")
	}
	if c.Workload.Package == "" || c.Workload.Executable == "" {
		return fmt.Errorf("workload.package and workload.executable must be set")
	}
	if c.Tracing.SubbufCount <= 0 {
		return fmt.Errorf("tracing.subbuf_count must be positive, got %d", c.Tracing.SubbufCount)
	}
	return nil
}

// validateDimension rejects empty, non-positive and duplicate values.
// Duplicates would map two trials onto the same output files.
func validateDimension(name string, values []int) error {
	if len(values) == 0 {
		return fmt.Errorf("%s must list at least one value", name)
	}
	seen := make(map[int]bool, len(values))
	for _, v := range values {
		if v <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, v)
		}
		if seen[v] {
			return fmt.Errorf("%s lists %d more than once", name, v)
		}
		seen[v] = true
	}
	return nil
}
