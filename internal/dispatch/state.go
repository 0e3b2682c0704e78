// Package dispatch decides what the panel does next. Step is a pure function
// from the current State and an Event to the next State and the Effects the
// runtime must carry out; it performs no I/O.
package dispatch

import (
	"fmt"

	"flowmentor/internal/conversation"
	"flowmentor/internal/prompts"
	"flowmentor/internal/task"
)

// Status is the dispatch cycle position.
type Status string

const (
	StatusIdle              Status = "idle"
	StatusDispatching       Status = "dispatching"
	StatusAwaitingModel     Status = "awaiting_model"
	StatusAwaitingUserInput Status = "awaiting_user_input"
)

// Phase is the session's conversational mode. It is set explicitly when a
// session starts and never inferred from the number of turns.
type Phase string

const (
	// PhaseFresh: no conversation yet. A typed message starts project bootstrap.
	PhaseFresh Phase = "fresh"
	// PhaseProjectBootstrapping: classifying the stack and requesting the plan.
	PhaseProjectBootstrapping Phase = "project_bootstrapping"
	// PhasePageChat: page context cached, waiting for the first question.
	PhasePageChat Phase = "page_chat"
	// PhaseContinuing: follow-up messages extend the session as is.
	PhaseContinuing Phase = "continuing"
)

// Purpose distinguishes the two kinds of model call.
type Purpose string

const (
	PurposePrimary  Purpose = "primary"
	PurposeClassify Purpose = "classify"
)

// Origin records what started the in-flight call.
type Origin string

const (
	OriginTask Origin = "task"
	OriginChat Origin = "chat"
)

// State is everything the dispatcher remembers between events.
type State struct {
	Status  Status
	Phase   Phase
	Session conversation.Session
	Options prompts.Options

	// Kind is the task that started the current session, empty for chat.
	Kind task.Kind

	// Page context cache for page chat.
	PageText string
	PageKind task.PageKind

	// Stack is the classified project stack of the current session.
	Stack string

	// In-flight call bookkeeping.
	Busy       bool
	Waiting    Purpose
	Origin     Origin
	RollbackTo int
	// Question is the raw first message while bootstrapping.
	Question string

	// Pending is a descriptor that arrived during a call; it is dispatched
	// once the call settles. Later arrivals replace it.
	Pending *task.Descriptor
}

// NewState returns an idle state with an empty session.
func NewState(opts prompts.Options) State {
	return State{
		Status:  StatusIdle,
		Phase:   PhaseFresh,
		Session: conversation.New(),
		Options: opts,
	}
}

// hasPageContext reports whether page text is cached.
func (s State) hasPageContext() bool {
	return s.PageText != ""
}

var allowedTransitions = map[Status]map[Status]struct{}{
	StatusIdle: {
		StatusDispatching: {},
	},
	StatusDispatching: {
		StatusAwaitingModel:     {},
		StatusAwaitingUserInput: {},
		StatusIdle:              {},
	},
	StatusAwaitingModel: {
		StatusIdle:              {},
		StatusAwaitingUserInput: {},
	},
	StatusAwaitingUserInput: {
		StatusDispatching: {},
		StatusIdle:        {},
	},
}

func validateTransition(from, to Status) error {
	if from == to {
		return nil
	}
	allowed, ok := allowedTransitions[from]
	if !ok {
		return fmt.Errorf("%w: unknown source status %q", ErrInvalidTransition, from)
	}
	if _, ok := allowed[to]; !ok {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

func (s *State) moveTo(to Status) error {
	if err := validateTransition(s.Status, to); err != nil {
		return err
	}
	s.Status = to
	return nil
}
