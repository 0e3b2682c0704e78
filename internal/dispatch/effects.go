package dispatch

import "flowmentor/internal/conversation"

// Effect is an instruction for the runtime.
type Effect interface {
	effect()
}

// Notice shows a local status line. It is never sent to the model.
type Notice struct {
	Text string
}

// Reply shows a model answer.
type Reply struct {
	Text string
}

// ShowError shows a failure inline as a model-role message.
type ShowError struct {
	Err     error
	Message string
}

// Infer asks the runtime to send Turns and report back with ModelReplied or
// ModelFailed.
type Infer struct {
	Purpose Purpose
	Turns   []conversation.Turn
}

// SaveProjectStack persists the classified stack.
type SaveProjectStack struct {
	Stack string
}

// ForgetProjectStack removes any persisted stack.
type ForgetProjectStack struct{}

// SetBusy enables or disables input controls.
type SetBusy struct {
	Busy bool
}

// DiscardCompose clears text the user was typing.
type DiscardCompose struct{}

// ClearLog empties the visible transcript.
type ClearLog struct{}

// EchoUser shows the user's own message.
type EchoUser struct {
	Text string
}

func (Notice) effect()             {}
func (Reply) effect()              {}
func (ShowError) effect()          {}
func (Infer) effect()              {}
func (SaveProjectStack) effect()   {}
func (ForgetProjectStack) effect() {}
func (SetBusy) effect()            {}
func (DiscardCompose) effect()     {}
func (ClearLog) effect()           {}
func (EchoUser) effect()           {}
