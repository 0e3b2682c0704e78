package handoff

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"flowmentor/internal/store"
	"flowmentor/internal/task"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func openKV(t *testing.T, path string) *store.KV {
	t.Helper()
	kv, err := store.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })
	return kv
}

func newStoreMailbox(t *testing.T) (*StoreMailbox, *store.KV) {
	t.Helper()
	kv := openKV(t, filepath.Join(t.TempDir(), "state.db"))
	return NewStoreMailbox(kv), kv
}

// sampleDescriptors covers every kind with the fields its trigger produces.
func sampleDescriptors() []task.Descriptor {
	return []task.Descriptor{
		{Kind: task.KindExplain, Selection: "for i := range xs {}"},
		{Kind: task.KindDebug, Selection: "nil pointer", PageText: "stack trace"},
		{Kind: task.KindGetCode, Selection: "a login form"},
		{Kind: task.KindPageContext, Selection: "what is this?", PageText: "article", PageKind: task.PageGeneral},
		{Kind: task.KindTranslate, Selection: "bonjour"},
		{Kind: task.KindPageChat, PageText: "transcript", PageKind: task.PageYouTube},
		{Kind: task.KindAnalyzeTech, PageHTML: "<html><body>hi</body></html>"},
		{Kind: task.KindSummarizePage, PageText: "long page", PageKind: task.PageGeneral},
		{Kind: task.KindFlowchartPage, PageText: "process page", PageKind: task.PageGeneral},
		{Kind: task.KindPageChat, Restricted: true, PageError: "restricted"},
	}
}

func TestStoreMailbox_ConsumingClearsEveryField(t *testing.T) {
	ctx := context.Background()

	for _, d := range sampleDescriptors() {
		t.Run(string(d.Kind), func(t *testing.T) {
			mb, kv := newStoreMailbox(t)

			require.NoError(t, mb.Write(ctx, d))

			got, ok, err := mb.ReadAndClear(ctx)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, d, got)

			left, err := kv.GetMany(ctx, Keys...)
			require.NoError(t, err)
			assert.Empty(t, left)

			_, ok, err = mb.ReadAndClear(ctx)
			require.NoError(t, err)
			assert.False(t, ok, "second read must yield nothing")
		})
	}
}

func TestStoreMailbox_WriteSupersedesWithoutLeakingFields(t *testing.T) {
	ctx := context.Background()
	mb, _ := newStoreMailbox(t)

	require.NoError(t, mb.Write(ctx, task.Descriptor{Kind: task.KindDebug, Selection: "x", PageText: "page"}))
	require.NoError(t, mb.Write(ctx, task.Descriptor{Kind: task.KindTranslate, Selection: "hola"}))

	got, ok, err := mb.ReadAndClear(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, task.Descriptor{Kind: task.KindTranslate, Selection: "hola"}, got)
}

func TestStoreMailbox_StrayFieldsAreClearedAndIgnored(t *testing.T) {
	ctx := context.Background()
	mb, kv := newStoreMailbox(t)

	require.NoError(t, kv.Set(ctx, KeyPageContext, "orphan"))

	_, ok, err := mb.ReadAndClear(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	_, present, err := kv.Get(ctx, KeyPageContext)
	require.NoError(t, err)
	assert.False(t, present)
}

func TestStoreMailbox_PeekDoesNotConsume(t *testing.T) {
	ctx := context.Background()
	mb, _ := newStoreMailbox(t)

	require.NoError(t, mb.Write(ctx, task.Descriptor{Kind: task.KindExplain, Selection: "x"}))

	d, ok, err := mb.Peek(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, task.KindExplain, d.Kind)

	_, ok, err = mb.ReadAndClear(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDiscard(t *testing.T) {
	ctx := context.Background()
	mb, _ := newStoreMailbox(t)

	require.NoError(t, mb.Write(ctx, task.Descriptor{Kind: task.KindExplain, Selection: "x"}))
	require.NoError(t, Discard(ctx, mb))

	_, ok, err := mb.ReadAndClear(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, Discard(ctx, mb), "discarding an empty mailbox is fine")
}

func TestStoreMailbox_ObserveAcrossHandles(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	path := filepath.Join(t.TempDir(), "state.db")

	panelSide := NewStoreMailbox(openKV(t, path))
	triggerSide := NewStoreMailbox(openKV(t, path))

	notes, err := panelSide.Observe(ctx)
	require.NoError(t, err)

	require.NoError(t, triggerSide.Write(context.Background(), task.Descriptor{Kind: task.KindGetCode, Selection: "navbar"}))

	select {
	case <-notes:
	case <-time.After(5 * time.Second):
		t.Fatal("no notification after cross-handle write")
	}

	d, ok, err := panelSide.ReadAndClear(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "navbar", d.Selection)

	cancel()
	for range notes {
	}
}

func TestStoreMailbox_ObserveReportsTaskPendingAtStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	mb, _ := newStoreMailbox(t)

	require.NoError(t, mb.Write(ctx, task.Descriptor{Kind: task.KindExplain, Selection: "x"}))

	notes, err := mb.Observe(ctx)
	require.NoError(t, err)

	select {
	case <-notes:
	case <-time.After(time.Second):
		t.Fatal("pending task not reported")
	}

	cancel()
	for range notes {
	}
}

func TestSlot_LastWriterWins(t *testing.T) {
	ctx := context.Background()
	s := NewSlot()

	require.NoError(t, s.Write(ctx, task.Descriptor{Kind: task.KindTranslate, Selection: "hola"}))
	require.NoError(t, s.Write(ctx, task.Descriptor{Kind: task.KindGetCode, Selection: "navbar"}))

	d, ok, err := s.ReadAndClear(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, task.KindGetCode, d.Kind)

	_, ok, err = s.ReadAndClear(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSlot_ObserveNotifiesAndCloses(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewSlot()

	notes, err := s.Observe(ctx)
	require.NoError(t, err)

	require.NoError(t, s.Write(context.Background(), task.Descriptor{Kind: task.KindExplain}))
	require.NoError(t, s.Write(context.Background(), task.Descriptor{Kind: task.KindDebug}))

	select {
	case <-notes:
	case <-time.After(time.Second):
		t.Fatal("no notification")
	}

	cancel()
	for range notes {
	}
}

func TestSlot_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewSlot()
	assert.Error(t, s.Write(ctx, task.Descriptor{Kind: task.KindExplain}))
	_, err := s.Observe(ctx)
	assert.Error(t, err)
}
