package tracing

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"tracebench/internal/logger"
)

// SessionError reports a recording backend failure. Op is the failed step.
type SessionError struct {
	Trial   string
	Session string
	Op      string
	Err     error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("tracing session %s for %s: %s failed: %v", e.Session, e.Trial, e.Op, e.Err)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

// Session is an active recording.
type Session struct {
	Trial     string // Trial basename the session belongs to
	Name      string // Unique backend session name
	OutputDir string
}

// Controller opens and closes recording sessions, one at a time.
type Controller struct {
	backend   Backend
	outputDir string
	channel   ChannelConfig
	events    string
	newID     func() string
	active    *Session
	log       *log.Logger
}

// NewController creates a controller writing trace directories under outputDir.
func NewController(backend Backend, outputDir string, channel ChannelConfig, events string) *Controller {
	return &Controller{
		backend:   backend,
		outputDir: outputDir,
		channel:   channel,
		events:    events,
		newID:     func() string { return uuid.NewString()[:8] },
		log:       logger.NewStyledLogger("tracing"),
	}
}

// Active returns the session currently recording, or nil.
func (c *Controller) Active() *Session {
	return c.active
}

// Start creates, configures and starts a session for trial. The trace lands in
// <outputDir>/trace-<trial>. A partially created session is destroyed before
// the error is returned.
func (c *Controller) Start(ctx context.Context, trial string) (*Session, error) {
	if c.active != nil {
		return nil, &SessionError{
			Trial:   trial,
			Session: c.active.Name,
			Op:      "start",
			Err:     fmt.Errorf("session for %s is still active", c.active.Trial),
		}
	}

	s := &Session{
		Trial:     trial,
		Name:      fmt.Sprintf("%s-%s", trial, c.newID()),
		OutputDir: filepath.Join(c.outputDir, "trace-"+trial),
	}

	if err := c.backend.Create(ctx, s.Name, s.OutputDir); err != nil {
		return nil, &SessionError{Trial: trial, Session: s.Name, Op: "create", Err: err}
	}

	steps := []struct {
		op  string
		run func() error
	}{
		{"enable-channel", func() error { return c.backend.EnableChannel(ctx, s.Name, c.channel) }},
		{"enable-event", func() error { return c.backend.EnableEvents(ctx, s.Name, c.channel.Name, c.events) }},
		{"start", func() error { return c.backend.Start(ctx, s.Name) }},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			if derr := c.backend.Destroy(context.WithoutCancel(ctx), s.Name); derr != nil {
				c.log.Warn("Could not destroy half-configured session", "session", s.Name, "error", derr)
			}
			return nil, &SessionError{Trial: trial, Session: s.Name, Op: step.op, Err: err}
		}
	}

	c.active = s
	c.log.Debug("Session recording", "session", s.Name, "output", s.OutputDir)
	return s, nil
}

// Stop stops and destroys the active session of trial. Destroy is attempted
// even if stop fails, and the controller is free for the next trial either way.
func (c *Controller) Stop(ctx context.Context, trial string) error {
	if c.active == nil || c.active.Trial != trial {
		return &SessionError{Trial: trial, Op: "stop", Err: fmt.Errorf("no active session")}
	}
	s := c.active
	c.active = nil

	var result *multierror.Error
	if err := c.backend.Stop(ctx, s.Name); err != nil {
		result = multierror.Append(result, fmt.Errorf("stop: %w", err))
	}
	if err := c.backend.Destroy(ctx, s.Name); err != nil {
		result = multierror.Append(result, fmt.Errorf("destroy: %w", err))
	}
	if err := result.ErrorOrNil(); err != nil {
		return &SessionError{Trial: trial, Session: s.Name, Op: "stop", Err: err}
	}

	c.log.Debug("Session destroyed", "session", s.Name)
	return nil
}
