package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// OpenAI completes through langchaingo's OpenAI client.
type OpenAI struct {
	llm     *openai.LLM
	model   string
	baseURL string
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewOpenAI creates an OpenAI provider. A missing key is allowed when every
// request carries its own.
func NewOpenAI(cfg Config, limiter *rate.Limiter, logger *zap.Logger) (*OpenAI, error) {
	cfg.ApplyDefaults()
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &OpenAI{model: cfg.Model, baseURL: cfg.BaseURL, limiter: limiter, logger: logger}
	if cfg.APIKey != "" {
		client, err := p.newClient(cfg.APIKey)
		if err != nil {
			return nil, err
		}
		p.llm = client
	} else {
		logger.Warn("openai completion key not configured; requests must supply one")
	}
	return p, nil
}

func (p *OpenAI) newClient(apiKey string) (*openai.LLM, error) {
	opts := []openai.Option{
		openai.WithToken(apiKey),
		openai.WithModel(p.model),
	}
	if p.baseURL != "" {
		opts = append(opts, openai.WithBaseURL(p.baseURL))
	}
	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: creating openai client: %v", ErrInvalidConfig, err)
	}
	return client, nil
}

// Complete sends one chat completion.
func (p *OpenAI) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	client := p.llm
	if req.APIKey != "" {
		c, err := p.newClient(req.APIKey)
		if err != nil {
			return nil, err
		}
		client = c
	}
	if client == nil {
		return nil, fmt.Errorf("%w: no openai API key", ErrInvalidConfig)
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	messages := make([]llms.MessageContent, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, llms.TextParts(schema.ChatMessageTypeSystem, req.System))
	}
	for _, m := range req.Messages {
		role := schema.ChatMessageTypeHuman
		if m.Role == RoleAssistant {
			role = schema.ChatMessageTypeAI
		}
		messages = append(messages, llms.TextParts(role, m.Content))
	}

	opts := []llms.CallOption{llms.WithTemperature(req.Temperature)}
	if req.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(req.MaxTokens))
	}

	resp, err := client.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCompletionFailed, err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	choice := resp.Choices[0]
	text := strings.TrimSpace(choice.Content)
	if text == "" {
		return nil, ErrEmptyResponse
	}

	out := &Response{
		Text:             text,
		PromptTokens:     intInfo(choice.GenerationInfo, "PromptTokens"),
		CompletionTokens: intInfo(choice.GenerationInfo, "CompletionTokens"),
		Model:            p.model,
	}
	p.logger.Debug("openai completion",
		zap.String("model", p.model),
		zap.Int("prompt_tokens", out.PromptTokens),
		zap.Int("completion_tokens", out.CompletionTokens),
	)
	return out, nil
}

func intInfo(info map[string]any, key string) int {
	switch v := info[key].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// Model returns the model name.
func (p *OpenAI) Model() string { return p.model }

// Close is a no-op; the HTTP client holds no resources.
func (p *OpenAI) Close() error { return nil }

var _ Provider = (*OpenAI)(nil)
