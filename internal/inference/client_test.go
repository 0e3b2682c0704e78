package inference

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"flowmentor/internal/conversation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGemini struct {
	t        *testing.T
	status   int
	body     string
	delay    time.Duration
	calls    atomic.Int32
	lastBody atomic.Value
}

func (f *fakeGemini) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.calls.Add(1)
	if !strings.HasSuffix(r.URL.Path, "/models/gemini-2.5-flash:generateContent") {
		f.t.Errorf("unexpected path %s", r.URL.Path)
	}
	if r.Header.Get("x-goog-api-key") != "test-key" {
		f.t.Errorf("missing api key header")
	}
	var req map[string]any
	_ = json.NewDecoder(r.Body).Decode(&req)
	f.lastBody.Store(req)

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-r.Context().Done():
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(f.status)
	_, _ = w.Write([]byte(f.body))
}

func newFake(t *testing.T, status int, body string) (*fakeGemini, *GeminiClient) {
	t.Helper()
	f := &fakeGemini{t: t, status: status, body: body}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	cfg := DefaultGeminiConfig("test-key")
	cfg.BaseURL = srv.URL
	cfg.HTTPClient = srv.Client()
	c, err := NewGeminiClient(context.Background(), cfg)
	require.NoError(t, err)
	return f, c
}

func candidateBody(text, finish string) string {
	return `{"candidates":[{"content":{"role":"model","parts":[{"text":` + jsonString(text) + `}]},"finishReason":"` + finish + `"}]}`
}

func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

var hello = []conversation.Turn{{Role: conversation.RoleUser, Text: "hello"}}

func TestSend_ReturnsTrimmedText(t *testing.T) {
	f, c := newFake(t, http.StatusOK, candidateBody("  <p>Hi there</p>\n", "STOP"))

	got, err := c.Send(context.Background(), []conversation.Turn{
		{Role: conversation.RoleUser, Text: "hello"},
		{Role: conversation.RoleModel, Text: "hi"},
		{Role: "system", Text: "dropped"},
		{Role: conversation.RoleUser, Text: "   "},
		{Role: conversation.RoleUser, Text: "again", Display: "shown only"},
	})
	require.NoError(t, err)
	assert.Equal(t, "<p>Hi there</p>", got)
	assert.EqualValues(t, 1, f.calls.Load())

	req := f.lastBody.Load().(map[string]any)
	contents := req["contents"].([]any)
	require.Len(t, contents, 3, "malformed turns are filtered")
	last := contents[2].(map[string]any)
	assert.Equal(t, "user", last["role"])
	parts := last["parts"].([]any)
	assert.Equal(t, "again", parts[0].(map[string]any)["text"], "transmitted text, not display text")
}

func TestSend_NoWellFormedTurns(t *testing.T) {
	f, c := newFake(t, http.StatusOK, candidateBody("x", "STOP"))

	_, err := c.Send(context.Background(), []conversation.Turn{{Role: conversation.RoleUser, Text: " "}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidRequest))
	assert.EqualValues(t, 0, f.calls.Load())
}

func TestSend_Classification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   ErrorKind
	}{
		{"bad key", 400, `{"error":{"code":400,"message":"API key not valid. Please pass a valid API key.","status":"INVALID_ARGUMENT"}}`, KindAuth},
		{"bad request", 400, `{"error":{"code":400,"message":"Invalid JSON payload","status":"INVALID_ARGUMENT"}}`, KindInvalidRequest},
		{"unauthorized", 401, `{"error":{"code":401,"message":"unauthenticated","status":"UNAUTHENTICATED"}}`, KindAuth},
		{"forbidden", 403, `{"error":{"code":403,"message":"denied","status":"PERMISSION_DENIED"}}`, KindQuota},
		{"quota", 429, `{"error":{"code":429,"message":"quota","status":"RESOURCE_EXHAUSTED"}}`, KindQuota},
		{"prompt blocked", 200, `{"promptFeedback":{"blockReason":"SAFETY"}}`, KindSafetyBlocked},
		{"finish safety", 200, candidateBody("", "SAFETY"), KindSafetyBlocked},
		{"rating blocked", 200, `{"candidates":[{"content":{"parts":[{"text":"x"}]},"finishReason":"STOP","safetyRatings":[{"category":"HARM_CATEGORY_HARASSMENT","blocked":true}]}]}`, KindSafetyBlocked},
		{"max tokens empty", 200, candidateBody("", "MAX_TOKENS"), KindIncomplete},
		{"recitation", 200, candidateBody("", "RECITATION"), KindIncomplete},
		{"no candidates", 200, `{"candidates":[]}`, KindEmpty},
		{"empty stop", 200, candidateBody("   ", "STOP"), KindEmpty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, c := newFake(t, tt.status, tt.body)
			_, err := c.Send(context.Background(), hello)
			require.Error(t, err)

			var ie *Error
			require.True(t, errors.As(err, &ie), "got %T", err)
			assert.Equal(t, tt.want, ie.Kind, ie.Error())
			assert.NotEmpty(t, ie.UserMessage())
		})
	}
}

func TestSend_TruncatedAnswerIsStillAnAnswer(t *testing.T) {
	_, c := newFake(t, http.StatusOK, candidateBody("partial answer", "MAX_TOKENS"))
	got, err := c.Send(context.Background(), hello)
	require.NoError(t, err)
	assert.Equal(t, "partial answer", got)
}

func TestSend_TimeoutIsNetwork(t *testing.T) {
	f := &fakeGemini{t: t, status: 200, body: candidateBody("late", "STOP"), delay: 2 * time.Second}
	srv := httptest.NewServer(f)
	defer srv.Close()

	cfg := DefaultGeminiConfig("test-key")
	cfg.BaseURL = srv.URL
	cfg.HTTPClient = srv.Client()
	cfg.Timeout = 50 * time.Millisecond
	c, err := NewGeminiClient(context.Background(), cfg)
	require.NoError(t, err)

	_, err = c.Send(context.Background(), hello)
	require.Error(t, err)
	assert.Equal(t, KindNetwork, KindOf(err))
}

func TestSend_UnreachableIsNetwork(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	cfg := DefaultGeminiConfig("test-key")
	cfg.BaseURL = url
	c, err := NewGeminiClient(context.Background(), cfg)
	require.NoError(t, err)

	_, err = c.Send(context.Background(), hello)
	require.Error(t, err)
	assert.Equal(t, KindNetwork, KindOf(err))
}

func TestUserMessagesAreDistinct(t *testing.T) {
	seen := map[string]ErrorKind{}
	for k := KindInvalidRequest; k <= KindProtocol; k++ {
		msg := (&Error{Kind: k}).UserMessage()
		if prev, dup := seen[msg]; dup {
			t.Errorf("%s and %s share a message", prev, k)
		}
		seen[msg] = k
	}
}

func TestNewGeminiClientRequiresKey(t *testing.T) {
	_, err := NewGeminiClient(context.Background(), DefaultGeminiConfig(" "))
	assert.Error(t, err)
}
