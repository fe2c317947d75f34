// Package benchtypes provides the shared type definitions for tracebench trials.
// These types are passed between the matrix driver, the trial runner and the
// process and tracing layers, so they carry no behavior beyond naming.
package benchtypes

import (
	"fmt"
	"time"
)

// Mode selects which build of the workload a trial runs against.
type Mode string

// Supported trial modes.
const (
	ModeUntraced Mode = "untraced" // Workload built without tracing instrumentation
	ModeTraced   Mode = "traced"   // Workload built with tracing instrumentation
)

// Modes returns the modes in the order they run for every matrix cell.
func Modes() []Mode {
	return []Mode{ModeUntraced, ModeTraced}
}

// Label returns the on-disk label used in output file names.
// The plotting scripts downstream of tracebench expect "base" and "trace".
func (m Mode) Label() string {
	switch m {
	case ModeUntraced:
		return "base"
	case ModeTraced:
		return "trace"
	default:
		return string(m)
	}
}

// Traced reports whether a tracing session must wrap trials of this mode.
func (m Mode) Traced() bool {
	return m == ModeTraced
}

// Role identifies one side of the publisher/subscriber pair.
type Role string

// Workload roles.
const (
	RolePublisher  Role = "publisher"
	RoleSubscriber Role = "subscriber"
)

// Suffix returns the file-name suffix for the role's raw result file.
func (r Role) Suffix() string {
	if r == RolePublisher {
		return "p"
	}
	return "s"
}

// TrialSpec is one concrete cell of the experiment matrix.
type TrialSpec struct {
	ExperimentID int  `yaml:"experiment_id"` // Experiment index shared by every trial of a run
	Mode         Mode `yaml:"mode"`          // Instrumentation mode
	MessageSize  int  `yaml:"message_size"`  // Message size identifier in KiB (Array<size>k)
	Frequency    int  `yaml:"frequency"`     // Publish rate in Hz
}

// MessageType returns the workload message type identifier, e.g. "Array32k".
func (s TrialSpec) MessageType() string {
	return fmt.Sprintf("Array%dk", s.MessageSize)
}

// Basename returns the collision-free output name of the trial,
// e.g. "1-base_Array32k_500hz".
func (s TrialSpec) Basename() string {
	return fmt.Sprintf("%d-%s_%s_%dhz", s.ExperimentID, s.Mode.Label(), s.MessageType(), s.Frequency)
}

// ResultFile returns the raw result file name for a role.
func (s TrialSpec) ResultFile(role Role) string {
	return s.Basename() + "_" + role.Suffix()
}

// TraceDir returns the trace artifact directory name for the trial.
func (s TrialSpec) TraceDir() string {
	return "trace-" + s.Basename()
}

// String implements fmt.Stringer.
func (s TrialSpec) String() string {
	return s.Basename()
}

// ExitStatus captures how one workload process ended.
type ExitStatus struct {
	Role      Role
	Code      int       // Exit code, -1 when the process never started or was killed by a signal
	Err       error     // Launch or wait error, nil on a clean zero exit
	StartedAt time.Time // Zero when the process never started
	EndedAt   time.Time
}

// Success reports whether the process started and exited zero.
func (e ExitStatus) Success() bool {
	return e.Err == nil && e.Code == 0
}

// TrialResult is what a single trial leaves behind.
type TrialResult struct {
	Spec           TrialSpec
	PublisherFile  string // Absolute path of the publisher raw result
	SubscriberFile string // Absolute path of the subscriber raw result
	TraceDir       string // Trace artifact directory, empty for untraced trials
	Publisher      ExitStatus
	Subscriber     ExitStatus
	StartedAt      time.Time
	EndedAt        time.Time
	Suspect        bool   // Set when the trace session could not be stopped cleanly
	SuspectReason  string // Human-readable reason for Suspect
	Err            error  // Non-fatal per-trial failure, nil when both processes succeeded
}

// Succeeded reports whether both processes of the trial exited cleanly.
func (r *TrialResult) Succeeded() bool {
	return r.Publisher.Success() && r.Subscriber.Success()
}

// Duration returns the wall-clock time of the trial.
func (r *TrialResult) Duration() time.Duration {
	return r.EndedAt.Sub(r.StartedAt)
}
