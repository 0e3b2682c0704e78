package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"flowmentor/internal/dispatch"
	"flowmentor/internal/panel"
	"flowmentor/internal/store"
)

// Handlers connect the panel UI to the runtime. Refresh and ToggleTheme may be nil.
type Handlers struct {
	Submit      func(ctx context.Context, ev dispatch.Event) error
	Refresh     func(ctx context.Context) (dispatch.RefreshPage, error)
	ToggleTheme func(ctx context.Context) (store.Theme, error)
}

type entryKind int

const (
	entryUser entryKind = iota
	entryModel
	entryNotice
	entryError
)

type entry struct {
	kind entryKind
	text string
}

// Messages sent by ProgramRenderer.
type (
	noticeMsg  string
	replyMsg   string
	errorMsg   string
	userMsg    string
	clearMsg   struct{}
	busyMsg    bool
	discardMsg struct{}
	disableMsg string
	themeMsg   store.Theme
	failedMsg  struct{ err error }
)

const helpText = "<p>Commands: <strong>/new</strong> starts a new project, <strong>/refresh</strong> reloads the current page, " +
	"<strong>/lang &lt;language&gt;</strong> sets the translation language, <strong>/theme</strong> toggles light and dark, " +
	"<strong>/quit</strong> exits.</p>"

// Model is the bubbletea model for the side panel.
type Model struct {
	ctx      context.Context
	handlers Handlers
	styles   Styles

	textarea textarea.Model
	viewport viewport.Model
	spinner  spinner.Model

	entries  []entry
	busy     bool
	disabled string

	width  int
	height int
	ready  bool
}

// NewModel builds the panel model with the saved theme.
func NewModel(ctx context.Context, theme store.Theme, h Handlers) Model {
	styles := NewStyles(ThemeFor(theme))

	ta := textarea.New()
	ta.Placeholder = "Ask about your project or the page... (Enter to send)"
	ta.ShowLineNumbers = false
	ta.CharLimit = 8000
	ta.SetHeight(3)
	ta.SetWidth(80)
	ta.KeyMap.InsertNewline.SetEnabled(false)
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Spinner

	vp := viewport.New(80, 20)
	vp.SetContent("")

	return Model{
		ctx:      ctx,
		handlers: h,
		styles:   styles,
		textarea: ta,
		viewport: vp,
		spinner:  sp,
		width:    80,
		height:   24,
	}
}

func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			return m.submit()
		}

	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)

	case spinner.TickMsg:
		if m.busy {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case noticeMsg:
		m.add(entryNotice, string(msg))
	case replyMsg:
		m.add(entryModel, string(msg))
	case errorMsg:
		m.add(entryError, string(msg))
	case userMsg:
		m.add(entryUser, string(msg))
	case failedMsg:
		m.add(entryError, msg.err.Error())
	case clearMsg:
		m.entries = nil
		m.refresh()
	case discardMsg:
		m.textarea.Reset()
	case busyMsg:
		m.busy = bool(msg)
		if m.busy {
			m.textarea.Blur()
			return m, m.spinner.Tick
		}
		if m.disabled == "" {
			cmds = append(cmds, m.textarea.Focus())
		}
		return m, tea.Batch(cmds...)
	case disableMsg:
		m.disabled = string(msg)
		m.textarea.Blur()
		return m, nil
	case themeMsg:
		m.styles = NewStyles(ThemeFor(store.Theme(msg)))
		m.spinner.Style = m.styles.Spinner
		m.refresh()
		return m, nil
	}

	if m.disabled == "" && !m.busy {
		var cmd tea.Cmd
		m.textarea, cmd = m.textarea.Update(msg)
		cmds = append(cmds, cmd)
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *Model) resize(w, h int) {
	m.width, m.height = w, h
	const chrome = 1 + 1 + 1 + 3 + 1 // header, divider, status, compose, footer
	vh := h - chrome
	if vh < 3 {
		vh = 3
	}
	if !m.ready {
		m.viewport = viewport.New(w, vh)
		m.ready = true
	} else {
		m.viewport.Width = w
		m.viewport.Height = vh
	}
	m.textarea.SetWidth(w)
	m.refresh()
}

func (m *Model) add(kind entryKind, text string) {
	m.entries = append(m.entries, entry{kind: kind, text: text})
	m.refresh()
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderEntries())
	m.viewport.GotoBottom()
}

func (m Model) renderEntries() string {
	width := m.viewport.Width - 4
	if width < 10 {
		width = 10
	}
	var b strings.Builder
	for i, e := range m.entries {
		if i > 0 {
			b.WriteString("\n\n")
		}
		switch e.kind {
		case entryUser:
			b.WriteString(m.styles.User.Width(width).Render("You: " + e.text))
		case entryModel:
			b.WriteString(m.styles.Model.Width(width).Render(panel.PlainText(e.text)))
		case entryNotice:
			b.WriteString(m.styles.Notice.Width(width).Render(panel.PlainText(e.text)))
		case entryError:
			b.WriteString(m.styles.Error.Width(width).Render(e.text))
		}
	}
	return b.String()
}

// submit turns the compose box into an event. Slash commands are handled here;
// everything else is a chat message.
func (m Model) submit() (tea.Model, tea.Cmd) {
	if m.busy || m.disabled != "" {
		return m, nil
	}
	text := strings.TrimSpace(m.textarea.Value())
	if text == "" {
		return m, nil
	}
	m.textarea.Reset()

	cmd, arg := parseCommand(text)
	switch cmd {
	case "":
		return m, m.send(dispatch.UserMessage{Text: text})
	case "new":
		return m, m.send(dispatch.NewProject{})
	case "lang":
		if arg == "" {
			m.add(entryError, "Usage: /lang <language>")
			return m, nil
		}
		return m, m.send(dispatch.SetLanguage{Language: arg})
	case "refresh":
		return m, m.refreshPage()
	case "theme":
		return m, m.toggleTheme()
	case "help":
		m.add(entryNotice, helpText)
		return m, nil
	case "quit", "exit":
		return m, tea.Quit
	default:
		m.add(entryError, fmt.Sprintf("Unknown command /%s. Type /help for the list.", cmd))
		return m, nil
	}
}

// parseCommand splits "/lang Hindi" into ("lang", "Hindi"). Plain text yields "".
func parseCommand(text string) (string, string) {
	if !strings.HasPrefix(text, "/") {
		return "", ""
	}
	fields := strings.SplitN(strings.TrimPrefix(text, "/"), " ", 2)
	cmd := strings.ToLower(strings.TrimSpace(fields[0]))
	arg := ""
	if len(fields) == 2 {
		arg = strings.TrimSpace(fields[1])
	}
	return cmd, arg
}

func (m Model) send(ev dispatch.Event) tea.Cmd {
	submit := m.handlers.Submit
	ctx := m.ctx
	return func() tea.Msg {
		if submit == nil {
			return nil
		}
		if err := submit(ctx, ev); err != nil {
			return failedMsg{err: err}
		}
		return nil
	}
}

func (m Model) refreshPage() tea.Cmd {
	refresh, submit := m.handlers.Refresh, m.handlers.Submit
	ctx := m.ctx
	return func() tea.Msg {
		if refresh == nil {
			return failedMsg{err: fmt.Errorf("no browser connection to refresh from")}
		}
		ev, err := refresh(ctx)
		if err != nil {
			return failedMsg{err: fmt.Errorf("refresh page: %w", err)}
		}
		if err := submit(ctx, ev); err != nil {
			return failedMsg{err: err}
		}
		return nil
	}
}

func (m Model) toggleTheme() tea.Cmd {
	toggle := m.handlers.ToggleTheme
	ctx := m.ctx
	return func() tea.Msg {
		if toggle == nil {
			return nil
		}
		t, err := toggle(ctx)
		if err != nil {
			return failedMsg{err: fmt.Errorf("toggle theme: %w", err)}
		}
		return themeMsg(t)
	}
}

func (m Model) View() string {
	header := m.styles.Header.Width(m.width).Render("FlowMentor")

	var status string
	switch {
	case m.disabled != "":
		status = m.styles.Error.Render("Disabled: " + m.disabled)
	case m.busy:
		status = m.spinner.View() + m.styles.Footer.Render("Thinking...")
	}

	footer := m.styles.Footer.Render("Enter send · /new · /refresh · /lang <name> · /theme · /help · Esc quit")
	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.viewport.View(),
		m.styles.RenderDivider(m.width),
		status,
		m.textarea.View(),
		footer,
	)
}
