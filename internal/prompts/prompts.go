// Package prompts renders the text sent to the model for each task kind and
// for the project-bootstrap exchange. Templates are baked into the binary
// from templates.yaml; rendering is a pure function of its inputs.
package prompts

import (
	"bytes"
	_ "embed"
	"fmt"
	"html"
	"strings"
	"text/template"

	"flowmentor/internal/task"

	"github.com/microcosm-cc/bluemonday"
	"gopkg.in/yaml.v3"
)

//go:embed templates.yaml
var templatesYAML []byte

// Template names outside the task kinds.
const (
	nameClassify    = "classify"
	nameProjectPlan = "projectPlan"
)

// DefaultStack is used when classification yields nothing usable.
const DefaultStack = "General"

// Options carry the user preferences that shape prompts.
type Options struct {
	Language          string
	PageContextLimit  int
	HTMLSnapshotLimit int
}

// DefaultOptions matches the extension defaults.
func DefaultOptions() Options {
	return Options{Language: "English", PageContextLimit: 4000, HTMLSnapshotLimit: 5000}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if strings.TrimSpace(o.Language) == "" {
		o.Language = d.Language
	}
	if o.PageContextLimit <= 0 {
		o.PageContextLimit = d.PageContextLimit
	}
	if o.HTMLSnapshotLimit <= 0 {
		o.HTMLSnapshotLimit = d.HTMLSnapshotLimit
	}
	return o
}

// Data is the template input.
type Data struct {
	Selection    string
	PageText     string
	PageHTML     string
	PageKind     string
	Question     string
	Stack        string
	Language     string
	ContextLimit int
	HTMLLimit    int
}

// Prompt is a rendered task prompt. Notice is shown locally before the call
// and never sent.
type Prompt struct {
	Notice string
	Text   string
}

type entry struct {
	Notice string `yaml:"notice"`
	Body   string `yaml:"body"`
}

type compiled struct {
	notice *template.Template
	body   *template.Template
}

var (
	funcs = template.FuncMap{
		"truncate":   truncate,
		"escapeTags": escapeTags,
	}
	templates = mustLoad(templatesYAML)
)

func mustLoad(raw []byte) map[string]compiled {
	var entries map[string]entry
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		panic(fmt.Sprintf("prompts: parse templates.yaml: %v", err))
	}
	out := make(map[string]compiled, len(entries))
	for name, e := range entries {
		c := compiled{
			body: template.Must(template.New(name).Funcs(funcs).Option("missingkey=error").Parse(e.Body)),
		}
		if e.Notice != "" {
			c.notice = template.Must(template.New(name + ".notice").Funcs(funcs).Parse(e.Notice))
		}
		out[name] = c
	}
	return out
}

func render(name string, data Data) (Prompt, error) {
	c, ok := templates[name]
	if !ok {
		return Prompt{}, fmt.Errorf("no prompt template for %q", name)
	}
	var p Prompt
	var buf bytes.Buffer
	if err := c.body.Execute(&buf, data); err != nil {
		return Prompt{}, fmt.Errorf("render %s: %w", name, err)
	}
	p.Text = strings.TrimSpace(buf.String())
	if c.notice != nil {
		buf.Reset()
		if err := c.notice.Execute(&buf, data); err != nil {
			return Prompt{}, fmt.Errorf("render %s notice: %w", name, err)
		}
		p.Notice = buf.String()
	}
	return p, nil
}

func dataFor(d task.Descriptor, o Options) Data {
	o = o.withDefaults()
	return Data{
		Selection:    d.Selection,
		PageText:     d.PageText,
		PageHTML:     d.PageHTML,
		PageKind:     string(d.PageKind),
		Language:     o.Language,
		ContextLimit: o.PageContextLimit,
		HTMLLimit:    o.HTMLSnapshotLimit,
	}
}

// ForTask renders the first-turn prompt for a descriptor. For page chat the
// Text is empty: nothing is sent until the user asks a question.
func ForTask(d task.Descriptor, o Options) (Prompt, error) {
	if !d.Kind.Valid() {
		return Prompt{}, fmt.Errorf("no prompt template for %q", d.Kind)
	}
	p, err := render(string(d.Kind), dataFor(d, o))
	if err != nil {
		return Prompt{}, err
	}
	if d.Kind == task.KindPageChat {
		p.Text = ""
	}
	return p, nil
}

// PageChat renders the first question of a page-chat session with the cached
// page content embedded.
func PageChat(pageText string, kind task.PageKind, question string, o Options) (string, error) {
	data := dataFor(task.Descriptor{PageText: pageText, PageKind: kind}, o)
	data.Question = question
	p, err := render(string(task.KindPageChat), data)
	if err != nil {
		return "", err
	}
	return p.Text, nil
}

// Classify renders the stack-classification prompt for a first project message.
func Classify(userText string) (string, error) {
	p, err := render(nameClassify, Data{Question: userText})
	if err != nil {
		return "", err
	}
	return p.Text, nil
}

// ProjectPlan renders the mentor prompt that replaces the first project message.
func ProjectPlan(stack, userText string) (Prompt, error) {
	return render(nameProjectPlan, Data{Stack: stack, Question: userText})
}

var stripPolicy = bluemonday.StrictPolicy()

// CleanStack turns a classification reply into a stack label: markup
// removed, whitespace trimmed, DefaultStack when nothing is left.
func CleanStack(reply string) string {
	s := strings.TrimSpace(html.UnescapeString(stripPolicy.Sanitize(reply)))
	if s == "" {
		return DefaultStack
	}
	return s
}

// truncate keeps the first n runes and marks the cut with an ellipsis.
func truncate(n int, s string) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func escapeTags(s string) string {
	return strings.ReplaceAll(s, "<", "&lt;")
}
