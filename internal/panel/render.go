package panel

import (
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/microcosm-cc/bluemonday"
)

// Renderer displays what the dispatcher decides. Model replies and notices
// arrive as HTML fragments.
type Renderer interface {
	Notice(html string)
	Reply(html string)
	Error(message string)
	User(text string)
	Clear()
	SetBusy(busy bool)
	DiscardCompose()
	Disable(reason string)
}

var (
	blockBreak  = regexp.MustCompile(`(?i)<\s*(br\s*/?|/p|/div|/li|/h[1-6]|/pre|/tr|/ul|/ol)\s*>`)
	listItem    = regexp.MustCompile(`(?i)<\s*li[^>]*>`)
	blankLines  = regexp.MustCompile(`\n{3,}`)
	plainPolicy = bluemonday.StrictPolicy()
)

// PlainText turns a reply fragment into terminal text. Block-level closing
// tags become line breaks, list items become bullets, everything else is
// stripped.
func PlainText(fragment string) string {
	s := blockBreak.ReplaceAllString(fragment, "\n")
	s = listItem.ReplaceAllString(s, "\n• ")
	s = plainPolicy.Sanitize(s)
	s = html.UnescapeString(s)

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	s = strings.Join(lines, "\n")
	s = blankLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// WriterRenderer prints the transcript to a stream. Used by the headless
// panel and the serve command.
type WriterRenderer struct {
	mu  sync.Mutex
	out io.Writer

	user   lipgloss.Style
	model  lipgloss.Style
	notice lipgloss.Style
	err    lipgloss.Style

	disabled string
}

// NewWriterRenderer returns a renderer writing to out.
func NewWriterRenderer(out io.Writer) *WriterRenderer {
	return &WriterRenderer{
		out:    out,
		user:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#0096FF")),
		model:  lipgloss.NewStyle(),
		notice: lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("#6B7280")),
		err:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#EF4444")),
	}
}

func (w *WriterRenderer) write(style lipgloss.Style, prefix, text string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if text == "" {
		return
	}
	fmt.Fprintln(w.out, style.Render(prefix+text))
}

func (w *WriterRenderer) Notice(fragment string) { w.write(w.notice, "", PlainText(fragment)) }
func (w *WriterRenderer) Reply(fragment string)  { w.write(w.model, "", PlainText(fragment)) }
func (w *WriterRenderer) Error(message string)   { w.write(w.err, "! ", message) }
func (w *WriterRenderer) User(text string)       { w.write(w.user, "> ", text) }
func (w *WriterRenderer) Clear()                 { w.write(w.notice, "", "----") }
func (w *WriterRenderer) SetBusy(bool)           {}
func (w *WriterRenderer) DiscardCompose()        {}

// Disable prints reason once; the stream has no controls to lock.
func (w *WriterRenderer) Disable(reason string) {
	w.mu.Lock()
	first := w.disabled == ""
	w.disabled = reason
	w.mu.Unlock()
	if first {
		w.write(w.err, "FlowMentor is disabled: ", reason)
	}
}

// Disabled reports the reason passed to Disable, if any.
func (w *WriterRenderer) Disabled() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.disabled
}
