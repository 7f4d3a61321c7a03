package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

// chatRequest mirrors the wire body langchaingo sends: message content is
// a list of typed parts.
type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"messages"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

func (r chatRequest) text(i int) string {
	var b strings.Builder
	for _, part := range r.Messages[i].Content {
		b.WriteString(part.Text)
	}
	return b.String()
}

func completionServer(t *testing.T, status int, seen *chatRequest, auth *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth != nil {
			*auth = r.Header.Get("Authorization")
		}
		if seen != nil {
			_ = json.NewDecoder(r.Body).Decode(seen)
		}
		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"slow down"}}`))
			return
		}
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "gpt-4-turbo-preview",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "  Use the primary logo.  "}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 120, "completion_tokens": 30, "total_tokens": 150}
		}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func unlimited() *rate.Limiter { return rate.NewLimiter(rate.Inf, 1) }

func TestOpenAI_Complete(t *testing.T) {
	var seen chatRequest
	srv := completionServer(t, http.StatusOK, &seen, nil)

	p, err := NewOpenAI(Config{APIKey: "sk-test", BaseURL: srv.URL}, unlimited(), nil)
	require.NoError(t, err)

	resp, err := p.Complete(context.Background(), Request{
		System: "Answer from the playbook.",
		Messages: []Message{
			{Role: RoleUser, Content: "Which logo?"},
			{Role: RoleAssistant, Content: "The primary one."},
			{Role: RoleUser, Content: "On dark backgrounds?"},
		},
		MaxTokens:   800,
		Temperature: 0.3,
	})
	require.NoError(t, err)

	assert.Equal(t, "Use the primary logo.", resp.Text)
	assert.Equal(t, 120, resp.PromptTokens)
	assert.Equal(t, 30, resp.CompletionTokens)
	assert.Equal(t, 150, resp.TotalTokens())
	assert.Equal(t, DefaultOpenAIModel, resp.Model)

	require.Len(t, seen.Messages, 4)
	assert.Equal(t, "system", seen.Messages[0].Role)
	assert.Equal(t, "Answer from the playbook.", seen.text(0))
	assert.Equal(t, "user", seen.Messages[1].Role)
	assert.Equal(t, "assistant", seen.Messages[2].Role)
	assert.Equal(t, "The primary one.", seen.text(2))
	require.Len(t, seen.Messages[3].Content, 1)
	assert.Equal(t, "text", seen.Messages[3].Content[0].Type)
	assert.Equal(t, "On dark backgrounds?", seen.text(3))
	assert.Equal(t, 800, seen.MaxTokens)
	assert.InDelta(t, 0.3, seen.Temperature, 1e-9)
}

func TestOpenAI_PerRequestKey(t *testing.T) {
	var auth string
	srv := completionServer(t, http.StatusOK, nil, &auth)

	p, err := NewOpenAI(Config{BaseURL: srv.URL}, unlimited(), nil)
	require.NoError(t, err)

	_, err = p.Complete(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = p.Complete(context.Background(), Request{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
		APIKey:   "sk-override",
	})
	require.NoError(t, err)
	assert.Equal(t, "Bearer sk-override", auth)
}

func TestOpenAI_RateLimitedIsTransient(t *testing.T) {
	srv := completionServer(t, http.StatusTooManyRequests, nil, nil)

	p, err := NewOpenAI(Config{APIKey: "sk-test", BaseURL: srv.URL}, unlimited(), nil)
	require.NoError(t, err)

	_, err = p.Complete(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	require.ErrorIs(t, err, ErrCompletionFailed)
	assert.True(t, IsTransient(err))
}

func TestOpenAI_BadRequestIsPermanent(t *testing.T) {
	srv := completionServer(t, http.StatusBadRequest, nil, nil)

	p, err := NewOpenAI(Config{APIKey: "sk-test", BaseURL: srv.URL}, unlimited(), nil)
	require.NoError(t, err)

	_, err = p.Complete(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	require.Error(t, err)
	assert.False(t, IsTransient(err))
}

func TestValidateRequest(t *testing.T) {
	assert.ErrorIs(t, validate(Request{}), ErrInvalidConfig)
	assert.ErrorIs(t, validate(Request{Messages: []Message{{Role: RoleAssistant, Content: "x"}}}), ErrInvalidConfig)
	assert.NoError(t, validate(Request{Messages: []Message{{Role: RoleUser, Content: "x"}}}))
}
