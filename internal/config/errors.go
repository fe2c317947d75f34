package config

import "fmt"

// SetupError reports a missing or unusable external artifact that the run
// needs before any trial can start.
type SetupError struct {
	What string // Artifact that is missing, e.g. "middleware config"
	Path string
	Hint string // Remediation shown to the operator
	Err  error
}

func (e *SetupError) Error() string {
	msg := fmt.Sprintf("setup: %s", e.What)
	if e.Path != "" {
		msg += fmt.Sprintf(" (%s)", e.Path)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Hint != "" {
		msg += "\n  " + e.Hint
	}
	return msg
}

func (e *SetupError) Unwrap() error {
	return e.Err
}
