package workload

import (
	"io"
	"path/filepath"
	"strconv"

	"tracebench/internal/config"
	"tracebench/internal/process"
	"tracebench/pkg/benchtypes"
)

// Invocation derives the process command for one role of a trial.
// Raw results land in outputDir under the trial's basename plus a role suffix.
func Invocation(cfg *config.ExperimentConfig, env *Environment, spec benchtypes.TrialSpec, role benchtypes.Role, outputDir string, stdout, stderr io.Writer) process.Command {
	pubs, subs := "1", "0"
	if role == benchtypes.RoleSubscriber {
		pubs, subs = "0", "1"
	}

	args := []string{
		"--communication", cfg.Communication,
		"--msg", spec.MessageType(),
		"--rate", strconv.Itoa(spec.Frequency),
		"-p", pubs,
		"-s", subs,
		"--reliable",
		"--max-runtime", strconv.Itoa(cfg.RuntimeMax),
		"--ignore", strconv.Itoa(cfg.RuntimeIgnore),
		"--logfile", filepath.Join(outputDir, spec.ResultFile(role)),
		"--json",
	}
	args = append(args, cfg.RTLaunchOptions()...)

	return process.Command{
		Role:   role,
		Path:   env.Binary,
		Args:   args,
		Env:    env.Env,
		Dir:    outputDir,
		Stdout: stdout,
		Stderr: stderr,
	}
}
