package llm

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
)

// Gemini completes through the Gemini API.
type Gemini struct {
	client  *genai.Client
	model   string
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewGemini creates a Gemini provider. Per-request keys are not supported.
func NewGemini(ctx context.Context, cfg Config, limiter *rate.Limiter, logger *zap.Logger) (*Gemini, error) {
	cfg.ApplyDefaults()
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key required", ErrInvalidConfig)
	}
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := genai.NewClient(ctx, geminiClientOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return &Gemini{client: client, model: cfg.Model, limiter: limiter, logger: logger}, nil
}

func geminiClientOptions(cfg Config) []option.ClientOption {
	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if ep := geminiEndpoint(cfg.BaseURL); ep != "" {
		opts = append(opts, option.WithEndpoint(ep))
	}
	return opts
}

// geminiEndpoint turns a base URL into the host:port the gRPC transport
// dials. Bare host:port values pass through.
func geminiEndpoint(base string) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return ""
	}
	u, err := url.Parse(base)
	if err != nil || u.Host == "" {
		return strings.TrimRight(base, "/")
	}
	if u.Port() != "" {
		return u.Host
	}
	port := "443"
	if u.Scheme == "http" {
		port = "80"
	}
	return net.JoinHostPort(u.Hostname(), port)
}

// Complete sends the history as a chat session and the last turn as the
// new message.
func (p *Gemini) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	if req.APIKey != "" {
		p.logger.Debug("ignoring per-request API key for gemini")
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	model := p.client.GenerativeModel(p.model)
	if req.System != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}
	model.SetTemperature(float32(req.Temperature))
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}

	chat := model.StartChat()
	last := len(req.Messages) - 1
	for _, m := range req.Messages[:last] {
		role := "user"
		if m.Role == RoleAssistant {
			role = "model"
		}
		chat.History = append(chat.History, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(m.Content)},
		})
	}

	resp, err := chat.SendMessage(ctx, genai.Text(req.Messages[last].Content))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCompletionFailed, err)
	}

	text := responseText(resp)
	if text == "" {
		return nil, ErrEmptyResponse
	}

	out := &Response{Text: text, Model: p.model}
	if resp.UsageMetadata != nil {
		out.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return out, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	return strings.TrimSpace(sb.String())
}

// Model returns the model name.
func (p *Gemini) Model() string { return p.model }

// Close closes the gRPC client.
func (p *Gemini) Close() error { return p.client.Close() }

var _ Provider = (*Gemini)(nil)
