package process

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracebench/pkg/benchtypes"
)

func shCommand(role benchtypes.Role, script string) Command {
	return Command{Role: role, Path: "/bin/sh", Args: []string{"-c", script}}
}

func TestExecLauncher_CleanExit(t *testing.T) {
	var out bytes.Buffer
	cmd := shCommand(benchtypes.RolePublisher, "echo $GREETING")
	cmd.Env = []string{"GREETING=hello"}
	cmd.Stdout = &out

	h, err := NewExecLauncher().Start(context.Background(), cmd)
	require.NoError(t, err)

	status := h.Wait()
	assert.True(t, status.Success())
	assert.Equal(t, benchtypes.RolePublisher, status.Role)
	assert.Equal(t, "hello\n", out.String())
	assert.False(t, status.EndedAt.Before(status.StartedAt))
}

func TestExecLauncher_NonZeroExit(t *testing.T) {
	h, err := NewExecLauncher().Start(context.Background(), shCommand(benchtypes.RoleSubscriber, "exit 3"))
	require.NoError(t, err)

	status := h.Wait()
	assert.False(t, status.Success())
	assert.Equal(t, 3, status.Code)
	assert.EqualError(t, status.Err, "subscriber exited with code 3")
}

func TestExecLauncher_MissingBinary(t *testing.T) {
	_, err := NewExecLauncher().Start(context.Background(), Command{
		Role: benchtypes.RolePublisher,
		Path: filepath.Join(t.TempDir(), "nope"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start publisher")
}

func TestExecLauncher_WorkingDir(t *testing.T) {
	dir := t.TempDir()
	cmd := shCommand(benchtypes.RoleSubscriber, "touch marker")
	cmd.Dir = dir

	h, err := NewExecLauncher().Start(context.Background(), cmd)
	require.NoError(t, err)
	require.True(t, h.Wait().Success())

	_, err = os.Stat(filepath.Join(dir, "marker"))
	assert.NoError(t, err)
}

func TestExecLauncher_ContextCancelKills(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h, err := NewExecLauncher().Start(ctx, shCommand(benchtypes.RolePublisher, "sleep 30"))
	require.NoError(t, err)

	cancel()
	done := make(chan benchtypes.ExitStatus, 1)
	go func() { done <- h.Wait() }()

	select {
	case status := <-done:
		assert.False(t, status.Success())
	case <-time.After(10 * time.Second):
		t.Fatal("process was not killed on cancel")
	}
}

func TestWaitBoth_WaitsForSlowerProcess(t *testing.T) {
	l := NewExecLauncher()
	fast, err := l.Start(context.Background(), shCommand(benchtypes.RolePublisher, "exit 0"))
	require.NoError(t, err)
	slow, err := l.Start(context.Background(), shCommand(benchtypes.RoleSubscriber, "sleep 0.3; exit 1"))
	require.NoError(t, err)

	pub, sub := WaitBoth(fast, slow)

	assert.Equal(t, benchtypes.RolePublisher, pub.Role)
	assert.Equal(t, benchtypes.RoleSubscriber, sub.Role)
	assert.True(t, pub.Success())
	assert.Equal(t, 1, sub.Code)
	assert.False(t, sub.EndedAt.Before(pub.EndedAt))
}

func TestCommand_String(t *testing.T) {
	cmd := Command{Path: "/ws/perf_test", Args: []string{"--msg", "Array1k", "--logfile", "a b"}}
	assert.Equal(t, "/ws/perf_test --msg Array1k --logfile 'a b'", cmd.String())
}

func TestExecRunner_Output(t *testing.T) {
	out, err := ExecRunner{}.Output(context.Background(), "", "/bin/sh", "-c", "echo '  enabled  '")
	require.NoError(t, err)
	assert.Equal(t, "enabled", out)

	out, err = ExecRunner{}.Output(context.Background(), "", "/bin/sh", "-c", "echo disabled; exit 1")
	require.Error(t, err)
	assert.Equal(t, "disabled", out)
}

func TestLaunchFailure(t *testing.T) {
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	status := LaunchFailure(benchtypes.RoleSubscriber, assert.AnError, at)

	assert.False(t, status.Success())
	assert.Equal(t, -1, status.Code)
	assert.True(t, status.StartedAt.IsZero())
	assert.Equal(t, at, status.EndedAt)
}
