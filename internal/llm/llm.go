// Package llm provides chat-completion clients used to compose answers.
//
// Providers make exactly one attempt per call. Retrying is the caller's
// decision; IsTransient classifies failures for it.
package llm

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	// ErrInvalidConfig indicates invalid provider configuration.
	ErrInvalidConfig = errors.New("invalid llm configuration")

	// ErrEmptyResponse indicates the model returned no text.
	ErrEmptyResponse = errors.New("empty completion")

	// ErrCompletionFailed wraps provider failures.
	ErrCompletionFailed = errors.New("completion failed")
)

// Role is the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one conversation turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request is a single completion call. The last message is the current
// user turn; earlier ones are history.
type Request struct {
	System      string
	Messages    []Message
	MaxTokens   int
	Temperature float64

	// APIKey overrides the configured key for this call only.
	APIKey string
}

// Response is a completion with its token accounting.
type Response struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
	Model            string
}

// TotalTokens returns prompt plus completion tokens.
func (r *Response) TotalTokens() int { return r.PromptTokens + r.CompletionTokens }

// Provider is a chat-completion backend.
type Provider interface {
	Complete(ctx context.Context, req Request) (*Response, error)
	Model() string
	Close() error
}

// Config selects and configures a provider.
type Config struct {
	// Provider is "openai" (default) or "gemini".
	Provider string
	Model    string
	APIKey   string
	// BaseURL overrides the API endpoint. For gemini it may be a URL or
	// a host:port.
	BaseURL string

	// RateLimit is requests per second. Default: 5.
	RateLimit float64
	Burst     int
}

// Default models per provider.
const (
	DefaultOpenAIModel = "gpt-4-turbo-preview"
	DefaultGeminiModel = "gemini-1.5-flash"
)

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Provider == "" {
		c.Provider = "openai"
	}
	if c.Model == "" {
		switch c.Provider {
		case "gemini":
			c.Model = DefaultGeminiModel
		default:
			c.Model = DefaultOpenAIModel
		}
	}
	if c.RateLimit <= 0 {
		c.RateLimit = 5
	}
	if c.Burst <= 0 {
		c.Burst = 2
	}
}

// NewProvider creates the configured provider.
func NewProvider(ctx context.Context, cfg Config, logger *zap.Logger) (Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.ApplyDefaults()
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst)

	switch cfg.Provider {
	case "openai":
		p, err := NewOpenAI(cfg, limiter, logger)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "gemini":
		p, err := NewGemini(ctx, cfg, limiter, logger)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
}

func validate(req Request) error {
	if len(req.Messages) == 0 {
		return fmt.Errorf("%w: request has no messages", ErrInvalidConfig)
	}
	if req.Messages[len(req.Messages)-1].Role != RoleUser {
		return fmt.Errorf("%w: last message must be a user turn", ErrInvalidConfig)
	}
	return nil
}
