package trigger

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"flowmentor/internal/extract"
	"flowmentor/internal/handoff"
	"flowmentor/internal/task"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExtractor struct {
	text, html, selection string
	err                   error
}

func (f *fakeExtractor) ExtractText(_ context.Context, tab extract.Tab) (string, error) {
	if extract.Restricted(tab.URL) {
		return "", &extract.RestrictedPageError{URL: tab.URL}
	}
	return f.text, f.err
}

func (f *fakeExtractor) ExtractHTML(_ context.Context, tab extract.Tab) (string, error) {
	if extract.Restricted(tab.URL) {
		return "", &extract.RestrictedPageError{URL: tab.URL}
	}
	return f.html, f.err
}

func (f *fakeExtractor) ExtractSelection(context.Context, extract.Tab) (string, error) {
	return f.selection, nil
}

func pending(t *testing.T, slot *handoff.Slot) (task.Descriptor, bool) {
	t.Helper()
	d, ok, err := slot.ReadAndClear(context.Background())
	require.NoError(t, err)
	return d, ok
}

func TestFireFieldMapping(t *testing.T) {
	page := extract.Tab{URL: "https://example.com/docs"}
	video := extract.Tab{URL: "https://www.youtube.com/watch?v=abc"}
	ex := &fakeExtractor{text: "page text", html: "<html></html>"}

	tests := []struct {
		name string
		req  Request
		want task.Descriptor
	}{
		{"explain", Request{Action: task.ActionExplainCode, Selection: " x := 1 "},
			task.Descriptor{Kind: task.KindExplain, Selection: "x := 1"}},
		{"debug has no page kind", Request{Action: task.ActionDebugCode, Tab: page, Selection: "panic"},
			task.Descriptor{Kind: task.KindDebug, Selection: "panic", PageText: "page text"}},
		{"getCode", Request{Action: task.ActionGetCode, Selection: "navbar"},
			task.Descriptor{Kind: task.KindGetCode, Selection: "navbar"}},
		{"ask about selection", Request{Action: task.ActionAskAboutSelection, Tab: video, Selection: "why?"},
			task.Descriptor{Kind: task.KindPageContext, Selection: "why?", PageText: "page text", PageKind: task.PageYouTube}},
		{"translate", Request{Action: task.ActionTranslate, Selection: "hola"},
			task.Descriptor{Kind: task.KindTranslate, Selection: "hola"}},
		{"open chat on youtube", Request{Action: task.ActionOpenChatWithContext, Tab: video},
			task.Descriptor{Kind: task.KindPageChat, PageText: "page text", PageKind: task.PageYouTube}},
		{"analyze tech", Request{Action: task.ActionAnalyzeTech, Tab: page},
			task.Descriptor{Kind: task.KindAnalyzeTech, PageHTML: "<html></html>"}},
		{"summarize", Request{Action: task.ActionSummarizePage, Tab: page},
			task.Descriptor{Kind: task.KindSummarizePage, PageText: "page text", PageKind: task.PageGeneral}},
		{"flowchart", Request{Action: task.ActionFlowchartPage, Tab: page},
			task.Descriptor{Kind: task.KindFlowchartPage, PageText: "page text", PageKind: task.PageGeneral}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slot := handoff.NewSlot()
			got, err := New(slot, ex).Fire(context.Background(), tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			written, ok := pending(t, slot)
			require.True(t, ok)
			assert.Equal(t, tt.want, written)
		})
	}
}

func TestSelectionActionWithoutSelectionIsIgnored(t *testing.T) {
	slot := handoff.NewSlot()
	_, err := New(slot, nil).Fire(context.Background(), Request{Action: task.ActionTranslate, Selection: "  "})
	assert.ErrorIs(t, err, ErrNoSelection)
	_, ok := pending(t, slot)
	assert.False(t, ok, "nothing written")
}

func TestLiveSelectionFallback(t *testing.T) {
	slot := handoff.NewSlot()
	ex := &fakeExtractor{selection: "live text"}
	d, err := New(slot, ex).Fire(context.Background(), Request{
		Action: task.ActionExplainCode,
		Tab:    extract.Tab{ID: "T1", URL: "https://example.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, "live text", d.Selection)
}

func TestRestrictedPageStillWrites(t *testing.T) {
	slot := handoff.NewSlot()
	d, err := New(slot, &fakeExtractor{}).Fire(context.Background(), Request{
		Action: task.ActionSummarizePage,
		Tab:    extract.Tab{URL: "chrome://settings"},
	})
	require.NoError(t, err)
	assert.True(t, d.Restricted)
	assert.Contains(t, d.PageError, "chrome://settings")
	assert.Empty(t, d.PageText)

	written, ok := pending(t, slot)
	require.True(t, ok)
	assert.True(t, written.Restricted)
}

func TestExtractionFailureAndFallbacks(t *testing.T) {
	tab := extract.Tab{URL: "https://example.com"}

	d, err := New(handoff.NewSlot(), &fakeExtractor{err: errors.New("boom")}).
		Build(context.Background(), Request{Action: task.ActionDebugCode, Tab: tab, Selection: "x"})
	require.NoError(t, err)
	assert.Equal(t, "Error retrieving context: boom", d.PageText)

	fallbacks := map[task.Action]string{
		task.ActionDebugCode:           "No page context found.",
		task.ActionAskAboutSelection:   "Could not read page content.",
		task.ActionOpenChatWithContext: "Could not load page content.",
		task.ActionSummarizePage:       "Page has no text content.",
	}
	for action, want := range fallbacks {
		d, err := New(handoff.NewSlot(), &fakeExtractor{text: "  "}).
			Build(context.Background(), Request{Action: action, Tab: tab, Selection: "x"})
		require.NoError(t, err)
		assert.Equal(t, want, d.PageText, action)
	}

	d, err = New(handoff.NewSlot(), nil).Build(context.Background(), Request{Action: task.ActionAnalyzeTech, Tab: tab})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(d.PageHTML, "Error retrieving context: "))
}

func TestUnknownAction(t *testing.T) {
	_, err := New(handoff.NewSlot(), nil).Fire(context.Background(), Request{Action: "summarizeVideo"})
	assert.Error(t, err)
}

func TestServer(t *testing.T) {
	slot := handoff.NewSlot()
	h := NewServer(New(slot, &fakeExtractor{text: "page"}), "127.0.0.1:0").Handler()

	do := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	rec := do(http.MethodPost, "/triggers/explainCode", `{"selection":"x := 1"}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var resp fireResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, task.KindExplain, resp.Kind)
	d, ok := pending(t, slot)
	require.True(t, ok)
	assert.Equal(t, "x := 1", d.Selection)

	rec = do(http.MethodPost, "/triggers/openChatWithContext", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	d, ok = pending(t, slot)
	require.True(t, ok)
	assert.Equal(t, "page", d.PageText)

	rec = do(http.MethodPost, "/triggers/translateFlowMentor", `{}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	_, ok = pending(t, slot)
	assert.False(t, ok)

	rec = do(http.MethodPost, "/triggers/nope", `{}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(http.MethodPost, "/triggers/explainCode", `{bad`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(http.MethodGet, "/actions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var actions []actionView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &actions))
	assert.Len(t, actions, 9)
}
