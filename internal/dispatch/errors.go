package dispatch

import (
	"errors"
	"fmt"

	"flowmentor/internal/inference"
	"flowmentor/internal/task"
)

var (
	// ErrBusy rejects input while a model call is in flight.
	ErrBusy = errors.New("a request is already in progress")
	// ErrInvalidTransition indicates a status change the cycle does not allow.
	ErrInvalidTransition = errors.New("invalid dispatch transition")
)

// UnknownTaskError is reported for a descriptor whose kind is not recognized.
// The session is left untouched.
type UnknownTaskError struct {
	Kind task.Kind
}

func (e *UnknownTaskError) Error() string {
	return fmt.Sprintf("unknown task %q", e.Kind)
}

// RestrictedPageError is reported when the trigger could not read the page
// because the browser forbids it.
type RestrictedPageError struct {
	Detail string
}

func (e *RestrictedPageError) Error() string {
	if e.Detail != "" {
		return "restricted page: " + e.Detail
	}
	return "restricted page"
}

// Message returns the user-facing text for err.
func Message(err error) string {
	var ie *inference.Error
	var ut *UnknownTaskError
	var rp *RestrictedPageError
	switch {
	case errors.As(err, &ie):
		return ie.UserMessage()
	case errors.As(err, &ut):
		return fmt.Sprintf("FlowMentor does not know how to handle the task %q.", ut.Kind)
	case errors.As(err, &rp):
		return "FlowMentor cannot read this page. Browser settings, extension stores and other protected pages are off limits."
	case errors.Is(err, ErrBusy):
		return "Please wait for the current answer to finish."
	default:
		return "Something went wrong: " + err.Error()
	}
}
