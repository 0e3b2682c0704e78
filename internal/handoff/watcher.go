package handoff

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"flowmentor/internal/logging"

	"github.com/fsnotify/fsnotify"
)

const (
	defaultDebounce = 150 * time.Millisecond
	tickInterval    = 50 * time.Millisecond
)

// storeWatcher turns filesystem activity on the database (and its WAL and
// journal siblings) into debounced pending-task notifications.
type storeWatcher struct {
	watcher  *fsnotify.Watcher
	base     string
	debounce time.Duration
	pending  func(ctx context.Context) bool
}

func newStoreWatcher(dbPath string, pending func(ctx context.Context) bool) (*storeWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	logging.Handoff("Watching store directory: %s", dir)
	return &storeWatcher{
		watcher:  watcher,
		base:     filepath.Base(dbPath),
		debounce: defaultDebounce,
		pending:  pending,
	}, nil
}

// start runs the event loop until ctx is done. The returned channel is closed
// after the watcher has been released.
func (w *storeWatcher) start(ctx context.Context) (<-chan struct{}, error) {
	out := make(chan struct{}, 1)

	// A task written before the panel started observing is still reported.
	if w.pending(ctx) {
		out <- struct{}{}
	}

	go w.run(ctx, out)
	return out, nil
}

func (w *storeWatcher) run(ctx context.Context, out chan struct{}) {
	defer close(out)
	defer func() {
		if err := w.watcher.Close(); err != nil {
			logging.Get(logging.CategoryHandoff).Error("Watcher close: %v", err)
		}
	}()

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	var lastEvent time.Time
	dirty := false

	for {
		select {
		case <-ctx.Done():
			logging.HandoffDebug("Watcher: context done")
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			logging.HandoffDebug("Watcher: %s %s", event.Op, event.Name)
			lastEvent = time.Now()
			dirty = true

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryHandoff).Error("Watcher error: %v", err)

		case <-ticker.C:
			if !dirty || time.Since(lastEvent) < w.debounce {
				continue
			}
			dirty = false
			if !w.pending(ctx) {
				continue
			}
			select {
			case out <- struct{}{}:
			default:
			}
		}
	}
}

func (w *storeWatcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
		return false
	}
	return strings.HasPrefix(filepath.Base(event.Name), w.base)
}
