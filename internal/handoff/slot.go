package handoff

import (
	"context"
	"sync"

	"flowmentor/internal/logging"
	"flowmentor/internal/task"
)

// Slot is an in-process Mailbox, used when the trigger surface and the
// panel share a process.
type Slot struct {
	mu      sync.Mutex
	pending task.Descriptor
	full    bool
	subs    map[chan struct{}]struct{}
}

// NewSlot returns an empty slot.
func NewSlot() *Slot {
	return &Slot{subs: make(map[chan struct{}]struct{})}
}

// Write replaces the pending descriptor and wakes every observer.
func (s *Slot) Write(ctx context.Context, d task.Descriptor) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.full {
		logging.HandoffDebug("Slot: superseding unconsumed %s with %s", s.pending.Kind, d.Kind)
	}
	s.pending = d
	s.full = true
	for ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	s.mu.Unlock()

	auditWrite(d)
	return nil
}

// ReadAndClear removes and returns the pending descriptor.
func (s *Slot) ReadAndClear(ctx context.Context) (task.Descriptor, bool, error) {
	if err := ctx.Err(); err != nil {
		return task.Descriptor{}, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.full {
		return task.Descriptor{}, false, nil
	}
	d := s.pending
	s.pending = task.Descriptor{}
	s.full = false
	logging.Audit().TaskConsumed(string(d.Kind))
	return d, true, nil
}

// Observe registers a notification channel that lives until ctx is done.
func (s *Slot) Observe(ctx context.Context) (<-chan struct{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ch := make(chan struct{}, 1)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, ch)
		close(ch)
		s.mu.Unlock()
	}()
	return ch, nil
}
