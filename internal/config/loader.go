package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables that override configuration keys.
const EnvPrefix = "TRACEBENCH"

// DefaultConfigName is the file looked up in the working directory when no
// explicit configuration file is given.
const DefaultConfigName = "tracebench"

// Load builds the experiment configuration. Precedence is
// defaults < config file < TRACEBENCH_* environment variables.
// An empty path means ./tracebench.yaml is read when present.
func Load(path string) (*ExperimentConfig, error) {
	v := viper.New()
	setDefaults(v, NewConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, &SetupError{What: "configuration file", Path: path, Err: err}
		}
	} else {
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, &SetupError{What: "configuration file", Path: DefaultConfigName + ".yaml", Err: err}
			}
		}
	}

	cfg := &ExperimentConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// setDefaults registers every key so that AutomaticEnv overrides reach Unmarshal.
func setDefaults(v *viper.Viper, d *ExperimentConfig) {
	v.SetDefault("experiment_id", d.ExperimentID)
	v.SetDefault("frequencies", d.Frequencies)
	v.SetDefault("message_sizes", d.MessageSizes)
	v.SetDefault("runtime_max", d.RuntimeMax)
	v.SetDefault("runtime_ignore", d.RuntimeIgnore)
	v.SetDefault("communication", d.Communication)
	v.SetDefault("middleware", d.Middleware)
	v.SetDefault("middleware_config", d.MiddlewareConfig)
	v.SetDefault("realtime", d.Realtime)
	v.SetDefault("rt_priority", d.RTPriority)
	v.SetDefault("rt_cpus", d.RTCPUs)
	v.SetDefault("output_root", d.OutputRoot)
	v.SetDefault("deps_export_command", d.DepsExportCommand)
	v.SetDefault("workload.package", d.Workload.Package)
	v.SetDefault("workload.executable", d.Workload.Executable)
	v.SetDefault("workspaces.untraced", d.Workspaces.Untraced)
	v.SetDefault("workspaces.traced", d.Workspaces.Traced)
	v.SetDefault("workspaces.env_file", d.Workspaces.EnvFile)
	v.SetDefault("tracing.command", d.Tracing.Command)
	v.SetDefault("tracing.channel", d.Tracing.Channel)
	v.SetDefault("tracing.events", d.Tracing.Events)
	v.SetDefault("tracing.subbuf_count", d.Tracing.SubbufCount)
	v.SetDefault("tracing.subbuf_size", d.Tracing.SubbufSize)
	v.SetDefault("tracing.switch_timer_us", d.Tracing.SwitchTimerUS)
}
