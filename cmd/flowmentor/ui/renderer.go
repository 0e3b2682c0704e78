package ui

import tea "github.com/charmbracelet/bubbletea"

// Sender is satisfied by *tea.Program.
type Sender interface {
	Send(msg tea.Msg)
}

// ProgramRenderer forwards runtime effects to a running program.
type ProgramRenderer struct {
	p Sender
}

func NewProgramRenderer(p Sender) *ProgramRenderer {
	return &ProgramRenderer{p: p}
}

func (r *ProgramRenderer) Notice(html string)    { r.p.Send(noticeMsg(html)) }
func (r *ProgramRenderer) Reply(html string)     { r.p.Send(replyMsg(html)) }
func (r *ProgramRenderer) Error(message string)  { r.p.Send(errorMsg(message)) }
func (r *ProgramRenderer) User(text string)      { r.p.Send(userMsg(text)) }
func (r *ProgramRenderer) Clear()                { r.p.Send(clearMsg{}) }
func (r *ProgramRenderer) SetBusy(busy bool)     { r.p.Send(busyMsg(busy)) }
func (r *ProgramRenderer) DiscardCompose()       { r.p.Send(discardMsg{}) }
func (r *ProgramRenderer) Disable(reason string) { r.p.Send(disableMsg(reason)) }
