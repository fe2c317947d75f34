package host

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedRunner answers systemctl with a canned output and error.
type scriptedRunner struct {
	out   string
	err   error
	calls [][]string
}

func (r *scriptedRunner) Output(_ context.Context, _ string, name string, args ...string) (string, error) {
	r.calls = append(r.calls, append([]string{name}, args...))
	return r.out, r.err
}

type fixture struct {
	proc string
	sys  string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	root := t.TempDir()
	f := fixture{proc: filepath.Join(root, "proc"), sys: filepath.Join(root, "sys")}
	require.NoError(t, os.MkdirAll(f.proc, 0755))
	require.NoError(t, os.MkdirAll(f.sys, 0755))
	return f
}

func (f fixture) write(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func (f fixture) provider(t *testing.T, runner *scriptedRunner) *SystemProvider {
	t.Helper()
	if runner == nil {
		runner = &scriptedRunner{}
	}
	p, err := NewSystemProvider(f.proc, f.sys, runner)
	require.NoError(t, err)
	return p
}

func TestSystemProvider_SMTActive(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    bool
	}{
		{name: "active", content: "1\n", want: true},
		{name: "inactive", content: "0\n", want: false},
		{name: "no control file", content: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.content != "" {
				f.write(t, f.sys, "devices/system/cpu/smt/active", tt.content)
			}

			got, err := f.provider(t, nil).SMTActive()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSystemProvider_ReceiveBufferSizes(t *testing.T) {
	f := newFixture(t)
	f.write(t, f.proc, "sys/net/core/rmem_max", "2147483647\n")
	f.write(t, f.proc, "sys/net/core/rmem_default", "212992\n")

	got, err := f.provider(t, nil).ReceiveBufferSizes()
	require.NoError(t, err)
	assert.Equal(t, BufferSizes{Max: 2147483647, Default: 212992}, got)
}

func TestSystemProvider_ReceiveBufferSizes_Missing(t *testing.T) {
	f := newFixture(t)

	_, err := f.provider(t, nil).ReceiveBufferSizes()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "net.core.rmem_max")
}

func TestSystemProvider_GovernorServiceStatus(t *testing.T) {
	exitErr := exitError(t)

	tests := []struct {
		name    string
		out     string
		err     error
		want    string
		wantErr bool
	}{
		{name: "enabled", out: "enabled", want: ServiceEnabled},
		{name: "disabled exits non-zero", out: "disabled", err: exitErr, want: ServiceDisabled},
		{name: "masked", out: "masked", err: exitErr, want: "masked"},
		{name: "unknown unit", out: "Failed to get unit file state for ondemand.service: No such file or directory", err: exitErr, want: ServiceNotFound},
		{name: "systemctl missing", err: fmt.Errorf("systemctl: %w", exec.ErrNotFound), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &scriptedRunner{out: tt.out, err: tt.err}
			p := newFixture(t).provider(t, runner)

			got, err := p.GovernorServiceStatus(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, [][]string{{"systemctl", "is-enabled", "ondemand"}}, runner.calls)
		})
	}
}

func TestSystemProvider_ScalingGovernorPresent(t *testing.T) {
	f := newFixture(t)
	p := f.provider(t, nil)

	present, err := p.ScalingGovernorPresent()
	require.NoError(t, err)
	assert.False(t, present)

	f.write(t, f.sys, "devices/system/cpu/cpu3/cpufreq/scaling_governor", "performance\n")
	present, err = p.ScalingGovernorPresent()
	require.NoError(t, err)
	assert.True(t, present)
}

func TestSystemProvider_LiveHost(t *testing.T) {
	if _, err := os.Stat("/proc/self/stat"); err != nil {
		t.Skip("no procfs on this host")
	}
	p, err := NewSystemProvider("/proc", "/sys", &scriptedRunner{})
	require.NoError(t, err)

	policy, err := p.SchedulingPolicy()
	require.NoError(t, err)
	assert.Regexp(t, `^SCHED_`, policy)

	kernel, err := p.KernelInfo()
	require.NoError(t, err)
	assert.NotEmpty(t, kernel)

	name, err := p.Hostname()
	require.NoError(t, err)
	assert.NotContains(t, name, ".")
}

func TestNewSystemProvider_BadRoot(t *testing.T) {
	_, err := NewSystemProvider(filepath.Join(t.TempDir(), "missing"), t.TempDir(), &scriptedRunner{})
	assert.Error(t, err)
}

func TestStaticProvider_Err(t *testing.T) {
	p := ReadyProvider()
	p.Err = assert.AnError

	_, err := p.SMTActive()
	assert.ErrorIs(t, err, assert.AnError)
	_, err = p.GovernorServiceStatus(context.Background())
	assert.ErrorIs(t, err, assert.AnError)
}

// exitError produces a real *exec.ExitError the way systemctl would for a disabled unit.
func exitError(t *testing.T) error {
	t.Helper()
	err := exec.Command("/bin/sh", "-c", "exit 1").Run()
	require.Error(t, err)
	return fmt.Errorf("systemctl is-enabled ondemand: %w", err)
}
