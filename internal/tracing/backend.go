// Package tracing manages the recording session that wraps each traced trial.
package tracing

import (
	"context"
	"strconv"

	"tracebench/internal/process"
	"tracebench/internal/version"
)

// MinLTTngVersion is the oldest lttng release whose channel options are used here.
const MinLTTngVersion = ">= 2.10"

// ChannelConfig is the buffering policy of the single recording channel.
type ChannelConfig struct {
	Name          string
	SubbufCount   int
	SubbufSize    string // Size with unit suffix, e.g. "2M"
	SwitchTimerUS int    // Periodic flush interval in microseconds
}

// Backend is the session-based recording service.
type Backend interface {
	// Probe checks that the backend is installed and reachable.
	Probe(ctx context.Context) error
	Create(ctx context.Context, session, outputDir string) error
	EnableChannel(ctx context.Context, session string, ch ChannelConfig) error
	EnableEvents(ctx context.Context, session, channel, pattern string) error
	Start(ctx context.Context, session string) error
	Stop(ctx context.Context, session string) error
	Destroy(ctx context.Context, session string) error
}

// LTTngBackend drives the lttng command-line client.
type LTTngBackend struct {
	command string
	runner  process.CommandRunner
}

// NewLTTngBackend creates a backend that runs command (normally "lttng").
func NewLTTngBackend(command string, runner process.CommandRunner) *LTTngBackend {
	return &LTTngBackend{command: command, runner: runner}
}

func (b *LTTngBackend) run(ctx context.Context, args ...string) error {
	_, err := b.runner.Output(ctx, "", b.command, args...)
	return err
}

// Probe implements Backend. The client must run and report a supported release.
func (b *LTTngBackend) Probe(ctx context.Context) error {
	out, err := b.runner.Output(ctx, "", b.command, "--version")
	if err != nil {
		return err
	}
	_, err = version.RequireToolVersion(b.command, out, MinLTTngVersion)
	return err
}

// Create implements Backend.
func (b *LTTngBackend) Create(ctx context.Context, session, outputDir string) error {
	return b.run(ctx, "create", session, "--output="+outputDir)
}

// EnableChannel implements Backend. The channel discards events on overflow,
// buffers per process and never runs the monitor timer.
func (b *LTTngBackend) EnableChannel(ctx context.Context, session string, ch ChannelConfig) error {
	return b.run(ctx, "enable-channel",
		"--userspace",
		"--session="+session,
		"--discard",
		"--num-subbuf="+strconv.Itoa(ch.SubbufCount),
		"--subbuf-size="+ch.SubbufSize,
		"--buffers-pid",
		"--switch-timer="+strconv.Itoa(ch.SwitchTimerUS),
		"--monitor-timer=0",
		ch.Name,
	)
}

// EnableEvents implements Backend.
func (b *LTTngBackend) EnableEvents(ctx context.Context, session, channel, pattern string) error {
	return b.run(ctx, "enable-event", "--userspace", "--session="+session, "--channel="+channel, pattern)
}

// Start implements Backend.
func (b *LTTngBackend) Start(ctx context.Context, session string) error {
	return b.run(ctx, "start", session)
}

// Stop implements Backend.
func (b *LTTngBackend) Stop(ctx context.Context, session string) error {
	return b.run(ctx, "stop", session)
}

// Destroy implements Backend.
func (b *LTTngBackend) Destroy(ctx context.Context, session string) error {
	return b.run(ctx, "destroy", session)
}
