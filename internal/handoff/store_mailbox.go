package handoff

import (
	"context"
	"fmt"

	"flowmentor/internal/logging"
	"flowmentor/internal/store"
	"flowmentor/internal/task"
)

// StoreMailbox is a cross-process Mailbox over the persisted key-value store.
// The trigger command and the panel open the same database file.
type StoreMailbox struct {
	kv *store.KV
}

// NewStoreMailbox wraps kv.
func NewStoreMailbox(kv *store.KV) *StoreMailbox {
	return &StoreMailbox{kv: kv}
}

// Write stores every field of d in one transaction and removes fields d does
// not carry, so nothing from a superseded descriptor survives.
func (m *StoreMailbox) Write(ctx context.Context, d task.Descriptor) error {
	fields := encode(d)
	if err := m.kv.Update(ctx, fields, staleKeys(fields)); err != nil {
		return fmt.Errorf("write task: %w", err)
	}
	logging.Handoff("Stored task %s", d)
	auditWrite(d)
	return nil
}

// ReadAndClear removes every descriptor key and returns the descriptor they
// formed. Stray fields without a task key are cleared and ignored.
func (m *StoreMailbox) ReadAndClear(ctx context.Context) (task.Descriptor, bool, error) {
	fields, err := m.kv.Take(ctx, Keys...)
	if err != nil {
		return task.Descriptor{}, false, fmt.Errorf("read task: %w", err)
	}
	d, ok := decode(fields)
	if !ok {
		if len(fields) > 0 {
			logging.Get(logging.CategoryHandoff).Warn("Cleared %d task fields with no task key", len(fields))
		}
		return task.Descriptor{}, false, nil
	}
	logging.Handoff("Consumed task %s", d)
	logging.Audit().TaskConsumed(string(d.Kind))
	return d, true, nil
}

// Peek returns the pending descriptor without consuming it.
func (m *StoreMailbox) Peek(ctx context.Context) (task.Descriptor, bool, error) {
	fields, err := m.kv.GetMany(ctx, Keys...)
	if err != nil {
		return task.Descriptor{}, false, fmt.Errorf("peek task: %w", err)
	}
	d, ok := decode(fields)
	return d, ok, nil
}

// Observe watches the database directory and signals after writes settle
// while a task key is present.
func (m *StoreMailbox) Observe(ctx context.Context) (<-chan struct{}, error) {
	w, err := newStoreWatcher(m.kv.Path(), func(ctx context.Context) bool {
		_, ok, err := m.kv.Get(ctx, KeyTask)
		if err != nil {
			logging.Get(logging.CategoryHandoff).Warn("Observe: task check failed: %v", err)
			return false
		}
		return ok
	})
	if err != nil {
		return nil, err
	}
	return w.start(ctx)
}
