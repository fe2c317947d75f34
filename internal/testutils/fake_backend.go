package testutils

import (
	"context"
	"os"
	"sync"

	"tracebench/internal/tracing"
)

// FakeBackend is an in-memory recording backend. Create makes the output
// directory the way the real backend does. FailOn maps an operation name
// ("probe", "create", "enable-channel", "enable-event", "start", "stop",
// "destroy") to the error it returns.
type FakeBackend struct {
	Timeline *Timeline
	FailOn   map[string]error

	mu            sync.Mutex
	calls         []string
	live          map[string]bool
	maxConcurrent int
	channels      []tracing.ChannelConfig
	patterns      []string
}

// NewFakeBackend creates a backend recording into timeline.
func NewFakeBackend(timeline *Timeline) *FakeBackend {
	return &FakeBackend{Timeline: timeline, FailOn: map[string]error{}, live: map[string]bool{}}
}

func (b *FakeBackend) op(name, session string) error {
	b.mu.Lock()
	b.calls = append(b.calls, name)
	b.mu.Unlock()
	b.Timeline.Record("%s %s", name, session)
	return b.FailOn[name]
}

// Calls returns the operation names in call order.
func (b *FakeBackend) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

// LiveSessions returns how many sessions exist right now.
func (b *FakeBackend) LiveSessions() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.live)
}

// MaxConcurrent returns the largest number of sessions that ever existed at once.
func (b *FakeBackend) MaxConcurrent() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.maxConcurrent
}

// Channels returns every channel configuration received.
func (b *FakeBackend) Channels() []tracing.ChannelConfig {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]tracing.ChannelConfig(nil), b.channels...)
}

// Patterns returns every event pattern enabled.
func (b *FakeBackend) Patterns() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.patterns...)
}

// Probe implements tracing.Backend.
func (b *FakeBackend) Probe(context.Context) error {
	return b.op("probe", "-")
}

// Create implements tracing.Backend.
func (b *FakeBackend) Create(_ context.Context, session, outputDir string) error {
	if err := b.op("create", session); err != nil {
		return err
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.live[session] = true
	if len(b.live) > b.maxConcurrent {
		b.maxConcurrent = len(b.live)
	}
	return nil
}

// EnableChannel implements tracing.Backend.
func (b *FakeBackend) EnableChannel(_ context.Context, session string, ch tracing.ChannelConfig) error {
	b.mu.Lock()
	b.channels = append(b.channels, ch)
	b.mu.Unlock()
	return b.op("enable-channel", session)
}

// EnableEvents implements tracing.Backend.
func (b *FakeBackend) EnableEvents(_ context.Context, session, _ string, pattern string) error {
	b.mu.Lock()
	b.patterns = append(b.patterns, pattern)
	b.mu.Unlock()
	return b.op("enable-event", session)
}

// Start implements tracing.Backend.
func (b *FakeBackend) Start(_ context.Context, session string) error {
	return b.op("start", session)
}

// Stop implements tracing.Backend.
func (b *FakeBackend) Stop(_ context.Context, session string) error {
	return b.op("stop", session)
}

// Destroy implements tracing.Backend.
func (b *FakeBackend) Destroy(_ context.Context, session string) error {
	if err := b.op("destroy", session); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.live, session)
	return nil
}
