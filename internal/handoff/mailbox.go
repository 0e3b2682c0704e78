// Package handoff carries a single pending task descriptor from the trigger
// context to the panel context. Writing replaces whatever is pending;
// reading is destructive so a descriptor is dispatched at most once.
package handoff

import (
	"context"

	"flowmentor/internal/logging"
	"flowmentor/internal/task"
)

// Mailbox is a one-slot, last-writer-wins queue.
type Mailbox interface {
	// Write replaces the pending descriptor.
	Write(ctx context.Context, d task.Descriptor) error
	// ReadAndClear removes and returns the pending descriptor, if any.
	ReadAndClear(ctx context.Context) (task.Descriptor, bool, error)
	// Observe returns a channel that receives a value whenever a descriptor
	// may have become pending. The channel is closed when ctx is done.
	Observe(ctx context.Context) (<-chan struct{}, error)
}

// Persisted keys. The names match the extension storage layout so a state
// file can be inspected with the same vocabulary.
const (
	KeyTask           = "task"
	KeyCodeSnippet    = "newCodeSnippet"
	KeyPageQuestion   = "pageQuestion"
	KeyPageContext    = "pageContext"
	KeyPageType       = "pageType"
	KeyPageHTML       = "pageHtml"
	KeyPageError      = "pageError"
	KeyPageRestricted = "pageRestricted"
)

// Keys lists every key a descriptor may occupy.
var Keys = []string{
	KeyTask,
	KeyCodeSnippet,
	KeyPageQuestion,
	KeyPageContext,
	KeyPageType,
	KeyPageHTML,
	KeyPageError,
	KeyPageRestricted,
}

// Discard clears any pending task without dispatching it. Opening the panel
// directly (not from a trigger) starts from a clean slate.
func Discard(ctx context.Context, m Mailbox) error {
	d, ok, err := m.ReadAndClear(ctx)
	if err != nil {
		return err
	}
	if ok {
		logging.Handoff("Discarded pending %s", d.Kind)
	}
	return nil
}

// encode flattens a descriptor into persisted fields. Empty fields are omitted.
// The selection is stored as pageQuestion for ask-about-selection tasks and as
// newCodeSnippet otherwise.
func encode(d task.Descriptor) map[string]string {
	out := map[string]string{KeyTask: string(d.Kind)}
	if d.Selection != "" {
		if d.Kind == task.KindPageContext {
			out[KeyPageQuestion] = d.Selection
		} else {
			out[KeyCodeSnippet] = d.Selection
		}
	}
	if d.PageText != "" {
		out[KeyPageContext] = d.PageText
	}
	if d.PageKind != "" {
		out[KeyPageType] = string(d.PageKind)
	}
	if d.PageHTML != "" {
		out[KeyPageHTML] = d.PageHTML
	}
	if d.PageError != "" {
		out[KeyPageError] = d.PageError
	}
	if d.Restricted {
		out[KeyPageRestricted] = "true"
	}
	return out
}

func decode(fields map[string]string) (task.Descriptor, bool) {
	kind, ok := fields[KeyTask]
	if !ok {
		return task.Descriptor{}, false
	}
	d := task.Descriptor{
		Kind:       task.Kind(kind),
		Selection:  fields[KeyCodeSnippet],
		PageText:   fields[KeyPageContext],
		PageHTML:   fields[KeyPageHTML],
		PageKind:   task.PageKind(fields[KeyPageType]),
		PageError:  fields[KeyPageError],
		Restricted: fields[KeyPageRestricted] == "true",
	}
	if q := fields[KeyPageQuestion]; q != "" {
		d.Selection = q
	}
	return d, true
}

// staleKeys returns descriptor keys not present in fields.
func staleKeys(fields map[string]string) []string {
	var out []string
	for _, k := range Keys {
		if _, ok := fields[k]; !ok {
			out = append(out, k)
		}
	}
	return out
}

func auditWrite(d task.Descriptor) {
	logging.Audit().Log(logging.AuditEvent{
		EventType: logging.AuditTaskWritten,
		Kind:      string(d.Kind),
		Success:   true,
	})
}
