package ui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowmentor/internal/dispatch"
	"flowmentor/internal/store"
)

type submitted struct {
	events []dispatch.Event
	err    error
}

func (s *submitted) submit(_ context.Context, ev dispatch.Event) error {
	s.events = append(s.events, ev)
	return s.err
}

func newTestModel(s *submitted) Model {
	m := NewModel(context.Background(), store.ThemeLight, Handlers{Submit: s.submit})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return next.(Model)
}

func typeAndEnter(t *testing.T, m Model, text string) (Model, tea.Cmd) {
	t.Helper()
	m.textarea.SetValue(text)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return next.(Model), cmd
}

func TestParseCommand(t *testing.T) {
	cases := []struct {
		in, cmd, arg string
	}{
		{"hello", "", ""},
		{"/new", "new", ""},
		{"/lang  Hindi ", "lang", "Hindi"},
		{"/LANG Brazilian Portuguese", "lang", "Brazilian Portuguese"},
	}
	for _, c := range cases {
		cmd, arg := parseCommand(c.in)
		assert.Equal(t, c.cmd, cmd, c.in)
		assert.Equal(t, c.arg, arg, c.in)
	}
}

func TestEnterSubmitsMessage(t *testing.T) {
	s := &submitted{}
	m, cmd := typeAndEnter(t, newTestModel(s), "  Build a todo app ")
	require.NotNil(t, cmd)
	assert.Nil(t, cmd())
	require.Len(t, s.events, 1)
	assert.Equal(t, dispatch.UserMessage{Text: "Build a todo app"}, s.events[0])
	assert.Empty(t, m.textarea.Value())
}

func TestSlashCommands(t *testing.T) {
	s := &submitted{}
	m := newTestModel(s)

	m, cmd := typeAndEnter(t, m, "/lang Hindi")
	cmd()
	m, cmd = typeAndEnter(t, m, "/new")
	cmd()
	assert.Equal(t, []dispatch.Event{dispatch.SetLanguage{Language: "Hindi"}, dispatch.NewProject{}}, s.events)

	m, _ = typeAndEnter(t, m, "/bogus")
	assert.Contains(t, m.View(), "Unknown command /bogus")

	_, cmd = typeAndEnter(t, m, "/refresh")
	msg := cmd()
	failed, ok := msg.(failedMsg)
	require.True(t, ok)
	assert.Contains(t, failed.err.Error(), "no browser connection")
}

func TestBusyAndDisabledBlockInput(t *testing.T) {
	s := &submitted{}
	m := newTestModel(s)

	next, _ := m.Update(busyMsg(true))
	m = next.(Model)
	m, cmd := typeAndEnter(t, m, "hello")
	assert.Nil(t, cmd)
	assert.Contains(t, m.View(), "Thinking")

	next, _ = m.Update(busyMsg(false))
	m = next.(Model)
	next, _ = m.Update(disableMsg("configuration error: llm.api_key: API key is missing"))
	m = next.(Model)
	_, cmd = typeAndEnter(t, m, "hello")
	assert.Nil(t, cmd)
	assert.Contains(t, m.View(), "Disabled")
	assert.Empty(t, s.events)
}

func TestTranscriptRendering(t *testing.T) {
	m := newTestModel(&submitted{})
	for _, msg := range []tea.Msg{
		userMsg("what is this?"),
		replyMsg("<p>It is a <strong>goroutine</strong>.</p>"),
		errorMsg("The Gemini API quota was exceeded."),
	} {
		next, _ := m.Update(msg)
		m = next.(Model)
	}
	view := m.View()
	assert.Contains(t, view, "You: what is this?")
	assert.Contains(t, view, "It is a goroutine.")
	assert.NotContains(t, view, "<strong>")
	assert.Contains(t, view, "quota")

	next, _ := m.Update(clearMsg{})
	m = next.(Model)
	assert.NotContains(t, m.View(), "goroutine")
}

func TestSubmitErrorIsShown(t *testing.T) {
	s := &submitted{err: errors.New("runtime stopped")}
	m, cmd := typeAndEnter(t, newTestModel(s), "hi")
	next, _ := m.Update(cmd())
	assert.Contains(t, next.(Model).View(), "runtime stopped")
}

func TestThemeToggle(t *testing.T) {
	m := NewModel(context.Background(), store.ThemeLight, Handlers{
		ToggleTheme: func(context.Context) (store.Theme, error) { return store.ThemeDark, nil },
	})
	assert.False(t, m.styles.Theme.IsDark)
	m, cmd := typeAndEnter(t, m, "/theme")
	next, _ := m.Update(cmd())
	assert.True(t, next.(Model).styles.Theme.IsDark)
}

type recordingSender struct{ msgs []tea.Msg }

func (r *recordingSender) Send(msg tea.Msg) { r.msgs = append(r.msgs, msg) }

func TestProgramRenderer(t *testing.T) {
	rs := &recordingSender{}
	r := NewProgramRenderer(rs)
	r.Notice("n")
	r.SetBusy(true)
	r.Disable("why")
	assert.Equal(t, []tea.Msg{noticeMsg("n"), busyMsg(true), disableMsg("why")}, rs.msgs)
}
