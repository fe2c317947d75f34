// Package host reads the kernel and CPU state that decides whether a machine
// is fit for real-time benchmarking.
package host

import "context"

// BufferSizes holds the two socket receive buffer sysctls.
type BufferSizes struct {
	Max     int64 // net.core.rmem_max
	Default int64 // net.core.rmem_default
}

// Governor service states as reported by systemctl is-enabled.
const (
	ServiceEnabled  = "enabled"
	ServiceDisabled = "disabled"
	ServiceNotFound = "not-found"
)

// StateProvider answers every host question tracebench asks.
// SystemProvider reads the real machine; StaticProvider returns fixed answers.
type StateProvider interface {
	SMTActive() (bool, error)
	ReceiveBufferSizes() (BufferSizes, error)
	GovernorServiceStatus(ctx context.Context) (string, error)
	ScalingGovernorPresent() (bool, error)
	Privileged() bool
	Hostname() (string, error)
	SchedulingPolicy() (string, error)
	CPUFrequenciesMHz() ([]float64, error)
	KernelInfo() (string, error)
}

// StaticProvider returns fixed host state.
type StaticProvider struct {
	SMT             bool
	Buffers         BufferSizes
	GovernorService string
	ScalingGovernor bool
	Root            bool
	Host            string
	Policy          string
	FrequenciesMHz  []float64
	Kernel          string

	// Err, when set, is returned by every fallible query.
	Err error
}

// SMTActive implements StateProvider.
func (p *StaticProvider) SMTActive() (bool, error) { return p.SMT, p.Err }

// ReceiveBufferSizes implements StateProvider.
func (p *StaticProvider) ReceiveBufferSizes() (BufferSizes, error) { return p.Buffers, p.Err }

// GovernorServiceStatus implements StateProvider.
func (p *StaticProvider) GovernorServiceStatus(context.Context) (string, error) {
	return p.GovernorService, p.Err
}

// ScalingGovernorPresent implements StateProvider.
func (p *StaticProvider) ScalingGovernorPresent() (bool, error) { return p.ScalingGovernor, p.Err }

// Privileged implements StateProvider.
func (p *StaticProvider) Privileged() bool { return p.Root }

// Hostname implements StateProvider.
func (p *StaticProvider) Hostname() (string, error) { return p.Host, p.Err }

// SchedulingPolicy implements StateProvider.
func (p *StaticProvider) SchedulingPolicy() (string, error) { return p.Policy, p.Err }

// CPUFrequenciesMHz implements StateProvider.
func (p *StaticProvider) CPUFrequenciesMHz() ([]float64, error) { return p.FrequenciesMHz, p.Err }

// KernelInfo implements StateProvider.
func (p *StaticProvider) KernelInfo() (string, error) { return p.Kernel, p.Err }

// ReadyProvider returns a StaticProvider describing a host that passes every
// real-time precondition.
func ReadyProvider() *StaticProvider {
	return &StaticProvider{
		Buffers:         BufferSizes{Max: 64 << 20, Default: 64 << 20},
		GovernorService: ServiceDisabled,
		Root:            true,
		Host:            "bench",
		Policy:          "SCHED_OTHER",
		FrequenciesMHz:  []float64{3000, 3000},
		Kernel:          "Linux bench 5.15.0-rt x86_64",
	}
}
