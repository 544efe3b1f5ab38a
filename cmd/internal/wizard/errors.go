package wizard

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput    = errors.New("wizard: invalid input")
	ErrSessionNotFound = errors.New("wizard: session not found")
	ErrSessionExpired  = errors.New("wizard: session expired")
	ErrUnauthorized    = errors.New("wizard: actor not authorized")
	ErrFinished        = errors.New("wizard: session finished")
	ErrAborted         = errors.New("wizard: session aborted")
	ErrStaleStep       = errors.New("wizard: step is no longer displayed")
	ErrNotStarted      = errors.New("wizard: no step displayed yet")
)

// RenderError reports a step whose description or surface could not be built.
// The session is aborted when this happens.
type RenderError struct {
	Step  int
	Title string
	Err   error
}

func (e RenderError) Error() string {
	return fmt.Sprintf("wizard: render step %d (%s): %v", e.Step, e.Title, e.Err)
}

func (e RenderError) Unwrap() []error { return []error{ErrAborted, e.Err} }
