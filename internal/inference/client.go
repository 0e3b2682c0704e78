// Package inference sends a conversation to the hosted model and classifies
// what comes back.
package inference

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"flowmentor/internal/conversation"
	"flowmentor/internal/logging"

	"google.golang.org/genai"
)

// Client sends an ordered list of turns and returns the model's reply text.
// Every error it returns is an *Error.
type Client interface {
	Send(ctx context.Context, turns []conversation.Turn) (string, error)
}

// GeminiConfig holds configuration for the Gemini client.
type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string // empty uses the SDK default endpoint
	Timeout time.Duration
	// HTTPClient overrides the transport. Tests point it at a fake endpoint.
	HTTPClient *http.Client
}

// DefaultGeminiConfig returns the defaults used by the extension.
func DefaultGeminiConfig(apiKey string) GeminiConfig {
	return GeminiConfig{
		APIKey:  apiKey,
		Model:   "gemini-2.5-flash",
		Timeout: 120 * time.Second,
	}
}

// GeminiClient implements Client with the Gemini generateContent API.
type GeminiClient struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewGeminiClient creates a client. It does not contact the API.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultGeminiConfig("").Model
	}

	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiClient{
		client:  client,
		model:   model,
		timeout: cfg.Timeout,
	}, nil
}

// Model returns the configured model name.
func (c *GeminiClient) Model() string {
	return c.model
}

// Send transmits the well-formed turns and returns the reply text, trimmed.
func (c *GeminiClient) Send(ctx context.Context, turns []conversation.Turn) (string, error) {
	contents := toContents(turns)
	if len(contents) == 0 {
		return "", ErrInvalidRequest
	}

	if _, ok := ctx.Deadline(); !ok && c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	logging.InferenceDebug("Gemini request: model=%s turns=%d", c.model, len(contents))
	start := time.Now()

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		ie := classifyTransport(err)
		logging.InferenceError("Gemini request failed after %v: %v", time.Since(start), ie)
		return "", ie
	}

	text, ie := interpret(resp)
	if ie != nil {
		logging.InferenceError("Gemini response rejected: %v", ie)
		return "", ie
	}

	logging.Inference("Gemini reply: %d chars in %v", len(text), time.Since(start))
	return text, nil
}

// toContents drops turns with an unknown role or blank text.
func toContents(turns []conversation.Turn) []*genai.Content {
	out := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		if !t.Role.Valid() || strings.TrimSpace(t.Text) == "" {
			continue
		}
		out = append(out, genai.NewContentFromText(t.Text, genai.Role(t.Role)))
	}
	return out
}

// interpret extracts the answer text or classifies why there is none.
// A truncated answer (MAX_TOKENS with text) is still returned.
func interpret(resp *genai.GenerateContentResponse) (string, *Error) {
	if resp == nil {
		return "", newError(KindProtocol, "nil response", nil)
	}
	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" && fb.BlockReason != genai.BlockedReasonUnspecified {
		return "", newError(KindSafetyBlocked, "prompt blocked: "+string(fb.BlockReason), nil)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return "", newError(KindEmpty, "no candidates", nil)
	}

	cand := resp.Candidates[0]
	if safetyFinish(cand.FinishReason) || anyBlocked(cand.SafetyRatings) {
		return "", newError(KindSafetyBlocked, "finish reason "+string(cand.FinishReason), nil)
	}

	text := strings.TrimSpace(candidateText(cand))
	if text != "" {
		return text, nil
	}

	switch cand.FinishReason {
	case "", genai.FinishReasonStop, genai.FinishReasonUnspecified:
		return "", newError(KindEmpty, "", nil)
	default:
		return "", newError(KindIncomplete, "finish reason "+string(cand.FinishReason), nil)
	}
}

func candidateText(cand *genai.Candidate) string {
	if cand.Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range cand.Content.Parts {
		if p == nil || p.Thought {
			continue
		}
		b.WriteString(p.Text)
	}
	return b.String()
}

func safetyFinish(r genai.FinishReason) bool {
	switch r {
	case genai.FinishReasonSafety, genai.FinishReasonBlocklist, genai.FinishReasonProhibitedContent, genai.FinishReasonSPII:
		return true
	}
	return false
}

func anyBlocked(ratings []*genai.SafetyRating) bool {
	for _, r := range ratings {
		if r != nil && r.Blocked {
			return true
		}
	}
	return false
}
