// Package workload resolves the two prebuilt workload environments and derives
// the publisher and subscriber invocations of the benchmark binary.
package workload

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"

	"tracebench/internal/config"
	"tracebench/pkg/benchtypes"
)

// MiddlewareEnvVar selects the middleware implementation in the workload.
const MiddlewareEnvVar = "RMW_IMPLEMENTATION"

// transportConfig describes how a middleware consumes its configuration file.
type transportConfig struct {
	envVar   string
	prefix   string
	required bool
}

var transportConfigs = map[string]transportConfig{
	"rmw_cyclonedds_cpp": {envVar: "CYCLONEDDS_URI", prefix: "file://", required: true},
	"rmw_fastrtps_cpp":   {envVar: "FASTRTPS_DEFAULT_PROFILES_FILE"},
}

// Environment is one resolved workload build.
type Environment struct {
	Mode      benchtypes.Mode
	Workspace string   // Absolute workspace root
	Binary    string   // Absolute path of the workload executable
	Env       []string // Complete child process environment
}

// Resolver turns configuration into Environments without touching the
// orchestrator's own process environment.
type Resolver struct {
	cfg     *config.ExperimentConfig
	baseEnv []string
}

// NewResolver creates a resolver. baseEnv is the environment children start from,
// normally os.Environ() captured once by the caller.
func NewResolver(cfg *config.ExperimentConfig, baseEnv []string) *Resolver {
	return &Resolver{cfg: cfg, baseEnv: baseEnv}
}

// MiddlewareConfigPath returns the absolute transport configuration path the
// selected middleware reads, or "" when it needs none.
func (r *Resolver) MiddlewareConfigPath() (string, error) {
	tc, ok := transportConfigs[r.cfg.Middleware]
	if !ok || r.cfg.MiddlewareConfig == "" {
		if ok && tc.required {
			return "", &config.SetupError{
				What: "middleware config",
				Hint: fmt.Sprintf("set middleware_config to the %s configuration file", r.cfg.Middleware),
			}
		}
		return "", nil
	}

	path, err := filepath.Abs(r.cfg.MiddlewareConfig)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err != nil {
		if !tc.required && errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", &config.SetupError{
			What: "middleware config",
			Path: path,
			Err:  err,
			Hint: fmt.Sprintf("%s requires a transport configuration file; create it or point middleware_config at one", r.cfg.Middleware),
		}
	}
	return path, nil
}

// Resolve returns the environment for mode. It fails with a SetupError when
// the workspace or its workload binary is missing.
func (r *Resolver) Resolve(mode benchtypes.Mode) (*Environment, error) {
	workspace := r.cfg.Workspaces.Untraced
	if mode.Traced() {
		workspace = r.cfg.Workspaces.Traced
	}
	root, err := filepath.Abs(workspace)
	if err != nil {
		return nil, err
	}

	pkg, exe := r.cfg.Workload.Package, r.cfg.Workload.Executable
	binary := filepath.Join(root, "install", pkg, "lib", pkg, exe)
	if _, err := os.Stat(binary); err != nil {
		return nil, &config.SetupError{
			What: fmt.Sprintf("%s workload binary", mode),
			Path: binary,
			Err:  err,
			Hint: fmt.Sprintf("build %s in %s before running", pkg, root),
		}
	}

	vars := envMap(r.baseEnv)
	if r.cfg.Workspaces.EnvFile != "" {
		envFile := filepath.Join(root, r.cfg.Workspaces.EnvFile)
		extra, err := godotenv.Read(envFile)
		if err != nil {
			return nil, &config.SetupError{What: "workspace env file", Path: envFile, Err: err}
		}
		for k, v := range extra {
			vars[k] = v
		}
	}

	vars["LD_LIBRARY_PATH"] = joinPath(filepath.Join(root, "install", pkg, "lib"), vars["LD_LIBRARY_PATH"])
	vars[MiddlewareEnvVar] = r.cfg.Middleware

	cfgPath, err := r.MiddlewareConfigPath()
	if err != nil {
		return nil, err
	}
	if cfgPath != "" {
		tc := transportConfigs[r.cfg.Middleware]
		vars[tc.envVar] = tc.prefix + cfgPath
	}

	return &Environment{
		Mode:      mode,
		Workspace: root,
		Binary:    binary,
		Env:       envList(vars),
	}, nil
}

// ResolveAll resolves every mode, failing on the first missing environment.
func (r *Resolver) ResolveAll() (map[benchtypes.Mode]*Environment, error) {
	envs := make(map[benchtypes.Mode]*Environment, 2)
	for _, mode := range benchtypes.Modes() {
		env, err := r.Resolve(mode)
		if err != nil {
			return nil, err
		}
		envs[mode] = env
	}
	return envs, nil
}

func envMap(env []string) map[string]string {
	vars := make(map[string]string, len(env))
	for _, kv := range env {
		k, v, ok := strings.Cut(kv, "=")
		if ok {
			vars[k] = v
		}
	}
	return vars
}

// envList renders vars sorted by key so child environments are reproducible.
func envList(vars map[string]string) []string {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, k+"="+vars[k])
	}
	return env
}

func joinPath(first, rest string) string {
	if rest == "" {
		return first
	}
	return first + string(os.PathListSeparator) + rest
}
