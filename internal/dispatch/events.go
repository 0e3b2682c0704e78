package dispatch

import "flowmentor/internal/task"

// Event is an input to Step.
type Event interface {
	event()
}

// TaskArrived carries a descriptor consumed from the mailbox.
type TaskArrived struct {
	Descriptor task.Descriptor
}

// UserMessage is text typed into the panel.
type UserMessage struct {
	Text string
}

// ModelReplied is the answer to the in-flight Infer.
type ModelReplied struct {
	Text string
}

// ModelFailed reports that the in-flight Infer failed.
type ModelFailed struct {
	Err error
}

// NewProject starts a fresh project conversation.
type NewProject struct{}

// RefreshPage replaces the cached page context. Empty text only clears it.
type RefreshPage struct {
	PageText string
	PageKind task.PageKind
}

// SetLanguage changes the translation target.
type SetLanguage struct {
	Language string
}

func (TaskArrived) event()  {}
func (UserMessage) event()  {}
func (ModelReplied) event() {}
func (ModelFailed) event()  {}
func (NewProject) event()   {}
func (RefreshPage) event()  {}
func (SetLanguage) event()  {}
