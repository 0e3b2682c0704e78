// Package trigger turns user actions into task descriptors and hands them to
// the panel through the mailbox.
package trigger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"flowmentor/internal/extract"
	"flowmentor/internal/handoff"
	"flowmentor/internal/logging"
	"flowmentor/internal/task"
)

// ErrNoSelection is returned for selection actions fired without a selection.
// Nothing is written.
var ErrNoSelection = errors.New("action needs a text selection")

// Request is one trigger invocation.
type Request struct {
	Action    task.Action
	Tab       extract.Tab
	Selection string
}

// Trigger builds descriptors and writes them to the mailbox.
type Trigger struct {
	mailbox   handoff.Mailbox
	extractor extract.Extractor
}

// New returns a trigger. extractor may be nil for selection-only use; page
// actions then carry the extraction failure text.
func New(mb handoff.Mailbox, ex extract.Extractor) *Trigger {
	return &Trigger{mailbox: mb, extractor: ex}
}

// Fire builds the descriptor for req and writes it. Exactly one Write happens
// unless an error is returned.
func (t *Trigger) Fire(ctx context.Context, req Request) (task.Descriptor, error) {
	d, err := t.Build(ctx, req)
	if err != nil {
		return task.Descriptor{}, err
	}
	if err := t.mailbox.Write(ctx, d); err != nil {
		return task.Descriptor{}, fmt.Errorf("write %s: %w", d.Kind, err)
	}
	logging.Trigger("Fired %s as %s", req.Action, d)
	return d, nil
}

// Build maps req to a descriptor without writing it. A restricted page is not
// an error: the descriptor carries Restricted so the panel can explain it.
func (t *Trigger) Build(ctx context.Context, req Request) (task.Descriptor, error) {
	spec, err := task.LookupAction(req.Action)
	if err != nil {
		return task.Descriptor{}, err
	}
	d := task.Descriptor{Kind: spec.Kind}

	if spec.Requires(task.NeedSelection) {
		sel := strings.TrimSpace(req.Selection)
		if sel == "" {
			sel = t.liveSelection(ctx, req.Tab)
		}
		if sel == "" {
			logging.Get(logging.CategoryTrigger).Debug("Ignoring %s: no selection", req.Action)
			return task.Descriptor{}, ErrNoSelection
		}
		d.Selection = sel
	}

	if spec.Requires(task.NeedPageText) {
		text, err := t.extractText(ctx, req.Tab)
		if restricted(&d, err) {
			return d, nil
		}
		d.PageText = pageValue(text, err, spec.Fallback)
		if spec.Kind != task.KindDebug {
			d.PageKind = task.ClassifyURL(req.Tab.URL)
		}
	}

	if spec.Requires(task.NeedPageHTML) {
		src, err := t.extractHTML(ctx, req.Tab)
		if restricted(&d, err) {
			return d, nil
		}
		d.PageHTML = pageValue(src, err, spec.Fallback)
	}
	return d, nil
}

func (t *Trigger) liveSelection(ctx context.Context, tab extract.Tab) string {
	sr, ok := t.extractor.(extract.SelectionReader)
	if !ok || (tab.ID == "" && tab.URL == "") {
		return ""
	}
	sel, err := sr.ExtractSelection(ctx, tab)
	if err != nil {
		logging.Get(logging.CategoryTrigger).Debug("Live selection unavailable: %v", err)
		return ""
	}
	return strings.TrimSpace(sel)
}

func (t *Trigger) extractText(ctx context.Context, tab extract.Tab) (string, error) {
	if t.extractor == nil {
		return "", errors.New("no page extractor configured")
	}
	return t.extractor.ExtractText(ctx, tab)
}

func (t *Trigger) extractHTML(ctx context.Context, tab extract.Tab) (string, error) {
	if t.extractor == nil {
		return "", errors.New("no page extractor configured")
	}
	return t.extractor.ExtractHTML(ctx, tab)
}

func restricted(d *task.Descriptor, err error) bool {
	if err == nil || !extract.IsRestrictedPage(err) {
		return false
	}
	d.Restricted = true
	d.PageError = err.Error()
	logging.Trigger("Restricted page: %v", err)
	return true
}

func pageValue(v string, err error, fallback string) string {
	if err != nil {
		logging.Get(logging.CategoryTrigger).Warn("Extraction failed: %v", err)
		return extract.FailureText(err)
	}
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
