package workload

import (
	"context"
	"fmt"

	"github.com/kballard/go-shellquote"

	"tracebench/internal/process"
)

// ExportRevisions runs the build toolchain's export command inside the
// workspace and returns the exact dependency revision set it prints.
func ExportRevisions(ctx context.Context, runner process.CommandRunner, env *Environment, command string) (string, error) {
	words, err := shellquote.Split(command)
	if err != nil {
		return "", fmt.Errorf("invalid export command %q: %w", command, err)
	}
	if len(words) == 0 {
		return "", fmt.Errorf("export command is empty")
	}

	out, err := runner.Output(ctx, env.Workspace, words[0], words[1:]...)
	if err != nil {
		return out, fmt.Errorf("failed to export %s revisions: %w", env.Mode, err)
	}
	return out, nil
}
