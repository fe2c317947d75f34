package host

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/prometheus/procfs"
	"github.com/prometheus/procfs/sysfs"
	"golang.org/x/sys/unix"

	"tracebench/internal/process"
)

// GovernorService is the systemd unit that switches CPUs to the ondemand governor.
const GovernorService = "ondemand"

// Scheduling policy names indexed by the kernel's SCHED_* value.
var schedPolicies = map[uint]string{
	0: "SCHED_OTHER",
	1: "SCHED_FIFO",
	2: "SCHED_RR",
	3: "SCHED_BATCH",
	5: "SCHED_IDLE",
	6: "SCHED_DEADLINE",
}

// SystemProvider reads host state from procfs, sysfs and systemd.
type SystemProvider struct {
	proc    procfs.FS
	sys     sysfs.FS
	sysRoot string
	runner  process.CommandRunner
}

// NewSystemProvider creates a provider over the given proc and sys mount points.
// Tests point these at fixture trees.
func NewSystemProvider(procRoot, sysRoot string, runner process.CommandRunner) (*SystemProvider, error) {
	proc, err := procfs.NewFS(procRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to open procfs at %s: %w", procRoot, err)
	}
	sys, err := sysfs.NewFS(sysRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to open sysfs at %s: %w", sysRoot, err)
	}
	return &SystemProvider{proc: proc, sys: sys, sysRoot: sysRoot, runner: runner}, nil
}

// NewDefaultSystemProvider reads the running machine.
func NewDefaultSystemProvider() (*SystemProvider, error) {
	return NewSystemProvider(procfs.DefaultMountPoint, sysfs.DefaultMountPoint, process.ExecRunner{})
}

// SMTActive reports whether simultaneous multithreading is on.
// Kernels without SMT support have no control file, which counts as inactive.
func (p *SystemProvider) SMTActive() (bool, error) {
	data, err := os.ReadFile(filepath.Join(p.sysRoot, "devices/system/cpu/smt/active"))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read SMT state: %w", err)
	}
	return strings.TrimSpace(string(data)) != "0", nil
}

// ReceiveBufferSizes reads net.core.rmem_max and net.core.rmem_default.
func (p *SystemProvider) ReceiveBufferSizes() (BufferSizes, error) {
	maxVal, err := p.sysctlInt("net.core.rmem_max")
	if err != nil {
		return BufferSizes{}, err
	}
	defVal, err := p.sysctlInt("net.core.rmem_default")
	if err != nil {
		return BufferSizes{}, err
	}
	return BufferSizes{Max: maxVal, Default: defVal}, nil
}

func (p *SystemProvider) sysctlInt(name string) (int64, error) {
	values, err := p.proc.SysctlInts(name)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", name, err)
	}
	if len(values) != 1 {
		return 0, fmt.Errorf("unexpected value count for %s: %d", name, len(values))
	}
	return int64(values[0]), nil
}

// GovernorServiceStatus asks systemd whether the ondemand service is enabled.
// systemctl exits non-zero for disabled and unknown units, so the printed
// state wins over the exit code.
func (p *SystemProvider) GovernorServiceStatus(ctx context.Context) (string, error) {
	out, err := p.runner.Output(ctx, "", "systemctl", "is-enabled", GovernorService)
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return "", fmt.Errorf("failed to query %s service: %w", GovernorService, err)
	}
	state := firstLine(out)
	if state == "" || strings.HasPrefix(state, "Failed to get unit file state") {
		return ServiceNotFound, nil
	}
	return state, nil
}

// ScalingGovernorPresent reports whether any CPU still exposes a cpufreq governor.
func (p *SystemProvider) ScalingGovernorPresent() (bool, error) {
	matches, err := filepath.Glob(filepath.Join(p.sysRoot, "devices/system/cpu/cpu[0-9]*/cpufreq/scaling_governor"))
	if err != nil {
		return false, err
	}
	return len(matches) > 0, nil
}

// Privileged reports whether the process runs as root.
func (p *SystemProvider) Privileged() bool {
	return os.Geteuid() == 0
}

// Hostname returns the short host name.
func (p *SystemProvider) Hostname() (string, error) {
	name, err := os.Hostname()
	if err != nil {
		return "", err
	}
	short, _, _ := strings.Cut(name, ".")
	return short, nil
}

// SchedulingPolicy returns the scheduling policy of the current process.
func (p *SystemProvider) SchedulingPolicy() (string, error) {
	self, err := p.proc.Self()
	if err != nil {
		return "", fmt.Errorf("failed to open own proc entry: %w", err)
	}
	stat, err := self.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to read own stat: %w", err)
	}
	if name, ok := schedPolicies[stat.Policy]; ok {
		return name, nil
	}
	return fmt.Sprintf("SCHED_%d", stat.Policy), nil
}

// CPUFrequenciesMHz returns the current clock of every CPU. It prefers
// cpufreq and falls back to /proc/cpuinfo, which is all that remains once
// frequency scaling has been disabled.
func (p *SystemProvider) CPUFrequenciesMHz() ([]float64, error) {
	if stats, err := p.sys.SystemCpufreq(); err == nil && len(stats) > 0 {
		freqs := make([]float64, 0, len(stats))
		for _, s := range stats {
			switch {
			case s.ScalingCurrentFrequency != nil:
				freqs = append(freqs, float64(*s.ScalingCurrentFrequency)/1000)
			case s.CpuinfoCurrentFrequency != nil:
				freqs = append(freqs, float64(*s.CpuinfoCurrentFrequency)/1000)
			}
		}
		if len(freqs) > 0 {
			return freqs, nil
		}
	}

	cpus, err := p.proc.CPUInfo()
	if err != nil {
		return nil, fmt.Errorf("failed to read cpuinfo: %w", err)
	}
	freqs := make([]float64, 0, len(cpus))
	for _, c := range cpus {
		freqs = append(freqs, c.CPUMHz)
	}
	return freqs, nil
}

// KernelInfo returns the uname -a style platform string.
func (p *SystemProvider) KernelInfo() (string, error) {
	var u unix.Utsname
	if err := unix.Uname(&u); err != nil {
		return "", fmt.Errorf("uname failed: %w", err)
	}
	return strings.Join([]string{
		unix.ByteSliceToString(u.Sysname[:]),
		unix.ByteSliceToString(u.Nodename[:]),
		unix.ByteSliceToString(u.Release[:]),
		unix.ByteSliceToString(u.Version[:]),
		unix.ByteSliceToString(u.Machine[:]),
	}, " "), nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(line)
}
