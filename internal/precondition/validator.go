// Package precondition checks that a host is ready for real-time benchmarking
// before any trial runs.
package precondition

import (
	"context"
	"fmt"
	"strings"

	"tracebench/internal/host"
)

// MinReceiveBuffer is the smallest accepted value for both receive buffer sysctls.
const MinReceiveBuffer int64 = 64 * 1024 * 1024

// Check names, in evaluation order.
const (
	CheckSMT             = "smt"
	CheckReceiveBuffers  = "receive-buffers"
	CheckGovernorService = "governor-service"
	CheckFrequencyScale  = "frequency-scaling"
	CheckPrivilege       = "privilege"
)

// PreconditionError is returned when the host is not ready. Remediation lists
// the commands an operator runs before retrying.
type PreconditionError struct {
	Check       string
	Problem     string
	Remediation []string
	Err         error
}

func (e *PreconditionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "precondition %q failed: %s", e.Check, e.Problem)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if len(e.Remediation) > 0 {
		b.WriteString("\nto fix, run:")
		for _, line := range e.Remediation {
			b.WriteString("\n  ")
			b.WriteString(line)
		}
	}
	return b.String()
}

func (e *PreconditionError) Unwrap() error {
	return e.Err
}

type check struct {
	name string
	run  func(ctx context.Context, p host.StateProvider) *PreconditionError
}

// Validator runs the real-time readiness checks.
type Validator struct {
	host   host.StateProvider
	checks []check
}

// NewValidator creates a validator reading state from provider.
func NewValidator(provider host.StateProvider) *Validator {
	return &Validator{
		host: provider,
		checks: []check{
			{CheckSMT, checkSMT},
			{CheckReceiveBuffers, checkReceiveBuffers},
			{CheckGovernorService, checkGovernorService},
			{CheckFrequencyScale, checkFrequencyScaling},
			{CheckPrivilege, checkPrivilege},
		},
	}
}

// Validate returns nil when realtime is false or every check passes.
// The first failing check stops evaluation.
func (v *Validator) Validate(ctx context.Context, realtime bool) error {
	if !realtime {
		return nil
	}
	for _, c := range v.checks {
		if err := c.run(ctx, v.host); err != nil {
			return err
		}
	}
	return nil
}

func checkSMT(_ context.Context, p host.StateProvider) *PreconditionError {
	active, err := p.SMTActive()
	if err != nil {
		return &PreconditionError{Check: CheckSMT, Problem: "could not read SMT state", Err: err}
	}
	if active {
		return &PreconditionError{
			Check:   CheckSMT,
			Problem: "simultaneous multithreading is active",
			Remediation: []string{
				"echo off | sudo tee /sys/devices/system/cpu/smt/control",
			},
		}
	}
	return nil
}

func checkReceiveBuffers(_ context.Context, p host.StateProvider) *PreconditionError {
	sizes, err := p.ReceiveBufferSizes()
	if err != nil {
		return &PreconditionError{Check: CheckReceiveBuffers, Problem: "could not read receive buffer sizes", Err: err}
	}

	var low []string
	if sizes.Max < MinReceiveBuffer {
		low = append(low, fmt.Sprintf("net.core.rmem_max=%d", sizes.Max))
	}
	if sizes.Default < MinReceiveBuffer {
		low = append(low, fmt.Sprintf("net.core.rmem_default=%d", sizes.Default))
	}
	if len(low) == 0 {
		return nil
	}
	return &PreconditionError{
		Check:   CheckReceiveBuffers,
		Problem: fmt.Sprintf("receive buffers below %d bytes (%s)", MinReceiveBuffer, strings.Join(low, ", ")),
		Remediation: []string{
			fmt.Sprintf("sudo sysctl -w net.core.rmem_max=%d", MinReceiveBuffer),
			fmt.Sprintf("sudo sysctl -w net.core.rmem_default=%d", MinReceiveBuffer),
		},
	}
}

func checkGovernorService(ctx context.Context, p host.StateProvider) *PreconditionError {
	status, err := p.GovernorServiceStatus(ctx)
	if err != nil {
		return &PreconditionError{Check: CheckGovernorService, Problem: "could not query the ondemand service", Err: err}
	}
	// "enabled-runtime" also means the service starts.
	if strings.HasPrefix(status, host.ServiceEnabled) {
		return &PreconditionError{
			Check:   CheckGovernorService,
			Problem: "the ondemand frequency governor service is enabled",
			Remediation: []string{
				"sudo systemctl disable " + host.GovernorService,
				"sudo reboot",
			},
		}
	}
	return nil
}

func checkFrequencyScaling(_ context.Context, p host.StateProvider) *PreconditionError {
	present, err := p.ScalingGovernorPresent()
	if err != nil {
		return &PreconditionError{Check: CheckFrequencyScale, Problem: "could not inspect cpufreq", Err: err}
	}
	if present {
		return &PreconditionError{
			Check:   CheckFrequencyScale,
			Problem: "CPU frequency scaling is still active (cpufreq scaling_governor present)",
			Remediation: []string{
				"disable SpeedStep/EIST in the firmware setup, or add intel_pstate=disable to the kernel command line",
				"sudo reboot",
			},
		}
	}
	return nil
}

func checkPrivilege(_ context.Context, p host.StateProvider) *PreconditionError {
	if p.Privileged() {
		return nil
	}
	return &PreconditionError{
		Check:   CheckPrivilege,
		Problem: "realtime mode needs root privileges",
		Remediation: []string{
			"sudo -E tracebench (-E keeps TRACEBENCH_* and workload environment variables)",
		},
	}
}
