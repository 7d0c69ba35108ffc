package codec

import (
	"errors"
	"fmt"
)

var (
	// ErrParse marks a source that is not a valid document of its format
	ErrParse = errors.New("parse error")

	// ErrExecution marks an executable source that failed to run cleanly
	ErrExecution = errors.New("execution failure")
)

// ParseError reports a file that could not be read as its format
type ParseError struct {
	Path   string
	Format string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s fact file %s: %v", e.Format, e.Path, e.Err)
}

// Unwrap exposes both ErrParse and the underlying cause
func (e *ParseError) Unwrap() []error {
	return []error{ErrParse, e.Err}
}

// ExecutionFailure reports an executable that exited non-zero, timed out or
// could not be started
type ExecutionFailure struct {
	Path     string
	ExitCode int
	TimedOut bool
	Err      error
}

func (e *ExecutionFailure) Error() string {
	switch {
	case e.TimedOut:
		return fmt.Sprintf("executable %s timed out: %v", e.Path, e.Err)
	case e.ExitCode > 0:
		return fmt.Sprintf("executable %s exited with status %d", e.Path, e.ExitCode)
	default:
		return fmt.Sprintf("executable %s: %v", e.Path, e.Err)
	}
}

func (e *ExecutionFailure) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrExecution}
	}
	return []error{ErrExecution, e.Err}
}
