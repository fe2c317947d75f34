// Package testutils provides deterministic clocks and recording fakes for tracebench tests.
// The fakes stand in for the workload binary and the recording backend so
// trial ordering and session nesting can be asserted without real processes.
package testutils

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// BaseTime is the first instant handed out by a Clock.
var BaseTime = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// Clock hands out strictly increasing times, one second apart.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock creates a clock starting at BaseTime.
func NewClock() *Clock {
	return &Clock{now: BaseTime}
}

// Now returns the next deterministic time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(time.Second)
	return c.now
}

// Timeline is a shared, ordered log of events from every fake.
type Timeline struct {
	mu     sync.Mutex
	events []string
}

// NewTimeline creates an empty timeline.
func NewTimeline() *Timeline {
	return &Timeline{}
}

// Record appends an event.
func (t *Timeline) Record(format string, args ...interface{}) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, fmt.Sprintf(format, args...))
}

// Events returns a copy of the events recorded so far.
func (t *Timeline) Events() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.events...)
}

// Index returns the position of the first event equal to event, or -1.
func (t *Timeline) Index(event string) int {
	for i, e := range t.Events() {
		if e == event {
			return i
		}
	}
	return -1
}

// WithPrefix returns the events starting with prefix, in order.
func (t *Timeline) WithPrefix(prefix string) []string {
	var out []string
	for _, e := range t.Events() {
		if strings.HasPrefix(e, prefix) {
			out = append(out, e)
		}
	}
	return out
}

// SortedFiles returns names sorted, for stable directory listing assertions.
func SortedFiles(names []string) []string {
	out := append([]string(nil), names...)
	sort.Strings(out)
	return out
}
