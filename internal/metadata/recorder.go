// Package metadata records the provenance of an experiment run in
// experiment_params.log, next to the trial outputs it describes.
package metadata

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
	"gopkg.in/yaml.v3"

	"tracebench/internal/config"
	"tracebench/internal/host"
	"tracebench/internal/version"
)

// FileName is the run log written into every experiment directory.
const FileName = "experiment_params.log"

// Snapshot is the state captured once at the start of a run.
type Snapshot struct {
	Tool             string                   `yaml:"tool"`
	Build            BuildInfo                `yaml:"build"`
	StartedAt        time.Time                `yaml:"started_at"`
	Host             string                   `yaml:"host"`
	SchedulingPolicy string                   `yaml:"scheduling_policy"`
	CPUFrequencies   []float64                `yaml:"cpu_mhz,flow"`
	Kernel           string                   `yaml:"kernel"`
	Privileged       bool                     `yaml:"privileged"`
	Config           *config.ExperimentConfig `yaml:"config"`
	RTLaunchOptions  string                   `yaml:"rt_launch_options"`
	RmemMax          string                   `yaml:"rmem_max"`
	RmemDefault      string                   `yaml:"rmem_default"`
	GovernorService  string                   `yaml:"governor_service"`
	CommandLine      string                   `yaml:"command_line"`
}

// BuildInfo identifies the tracebench binary that produced a run.
type BuildInfo struct {
	Commit      string     `yaml:"commit"`
	Date        string     `yaml:"date"`
	Time        *time.Time `yaml:"time,omitempty"`
	Development bool       `yaml:"development"`
}

func currentBuild() BuildInfo {
	b := BuildInfo{
		Commit:      version.GitCommit,
		Date:        version.BuildDate,
		Development: version.IsDevelopment(),
	}
	if t, err := version.GetBuildTime(); err == nil {
		b.Time = &t
	}
	return b
}

// unavailable renders a host fact that could not be read.
func unavailable(err error) string {
	return "unavailable (" + err.Error() + ")"
}

// Collect gathers a snapshot from cfg and the host.
func Collect(ctx context.Context, cfg *config.ExperimentConfig, provider host.StateProvider, commandLine []string, now time.Time) *Snapshot {
	s := &Snapshot{
		Tool:        "tracebench " + version.GetVersion(),
		Build:       currentBuild(),
		StartedAt:   now,
		Privileged:  provider.Privileged(),
		Config:      cfg,
		CommandLine: shellquote.Join(commandLine...),
	}

	if name, err := provider.Hostname(); err != nil {
		s.Host = unavailable(err)
	} else {
		s.Host = name
	}
	if policy, err := provider.SchedulingPolicy(); err != nil {
		s.SchedulingPolicy = unavailable(err)
	} else {
		s.SchedulingPolicy = policy
	}
	if freqs, err := provider.CPUFrequenciesMHz(); err == nil {
		s.CPUFrequencies = freqs
	}
	if kernel, err := provider.KernelInfo(); err != nil {
		s.Kernel = unavailable(err)
	} else {
		s.Kernel = kernel
	}
	if buffers, err := provider.ReceiveBufferSizes(); err != nil {
		s.RmemMax, s.RmemDefault = unavailable(err), unavailable(err)
	} else {
		s.RmemMax = fmt.Sprint(buffers.Max)
		s.RmemDefault = fmt.Sprint(buffers.Default)
	}
	if status, err := provider.GovernorServiceStatus(ctx); err != nil {
		s.GovernorService = unavailable(err)
	} else {
		s.GovernorService = status
	}

	s.RTLaunchOptions = "none"
	if opts := cfg.RTLaunchOptions(); len(opts) > 0 {
		s.RTLaunchOptions = strings.Join(opts, " ")
	}
	return s
}

// Recorder writes the run log of one experiment directory. Everything it
// writes is echoed to a second writer, normally stdout.
type Recorder struct {
	path string
	echo io.Writer
}

// NewRecorder creates a recorder for outputDir.
func NewRecorder(outputDir string, echo io.Writer) *Recorder {
	if echo == nil {
		echo = io.Discard
	}
	return &Recorder{path: filepath.Join(outputDir, FileName), echo: echo}
}

// Path returns the run log path.
func (r *Recorder) Path() string {
	return r.path
}

// Write creates or overwrites the run log with the snapshot.
func (r *Recorder) Write(s *Snapshot) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode run metadata: %w", err)
	}
	if err := os.WriteFile(r.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", r.path, err)
	}
	_, _ = r.echo.Write(data)
	return nil
}

// AppendSection appends a titled free-form block, e.g. the dependency
// revision set or a transport configuration file, verbatim.
func (r *Recorder) AppendSection(title string, body []byte) error {
	var b strings.Builder
	fmt.Fprintf(&b, "\n# --- %s ---\n", title)
	b.Write(body)
	if len(body) > 0 && body[len(body)-1] != '\n' {
		b.WriteByte('\n')
	}
	return r.append(b.String())
}

// MarkSuspect records that a trial's outputs may be incomplete.
func (r *Recorder) MarkSuspect(trial, reason string) error {
	return r.append(fmt.Sprintf("suspect: %s (%s)\n", trial, reason))
}

func (r *Recorder) append(text string) error {
	f, err := os.OpenFile(r.path, os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", r.path, err)
	}
	defer f.Close()

	if _, err := f.WriteString(text); err != nil {
		return fmt.Errorf("failed to append to %s: %w", r.path, err)
	}
	_, _ = io.WriteString(r.echo, text)
	return nil
}

// ReadSnapshot parses the snapshot at the head of a run log. Appended
// sections are YAML comments or plain lines after the document and are ignored.
func ReadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	head, _, _ := strings.Cut(string(data), "\n# --- ")
	var lines []string
	for _, line := range strings.Split(head, "\n") {
		if strings.HasPrefix(line, "suspect: ") {
			continue
		}
		lines = append(lines, line)
	}

	s := &Snapshot{}
	if err := yaml.Unmarshal([]byte(strings.Join(lines, "\n")), s); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return s, nil
}
