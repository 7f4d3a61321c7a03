// Package answer turns retrieved playbook passages into grounded answers
// and summaries using a language model.
package answer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/tom2tomtomtom/Playbook/internal/chunker"
	"github.com/tom2tomtomtom/Playbook/internal/index"
	"github.com/tom2tomtomtom/Playbook/internal/llm"
	"github.com/tom2tomtomtom/Playbook/internal/retriever"
)

var tracer = otel.Tracer("playbook.answer")

// ErrGeneration indicates the language model could not produce an answer
// within the retry budget. It is distinct from finding no passages.
var ErrGeneration = errors.New("answer generation failed")

// NoInformationAnswer is returned when retrieval finds nothing.
const NoInformationAnswer = "I couldn't find relevant information in the brand playbook to answer your question."

// Searcher retrieves passages for a question.
type Searcher interface {
	Search(ctx context.Context, req retriever.Request) ([]index.SearchResult, error)
}

// Question is one request to the generator.
type Question struct {
	Text       string
	DocumentID string
	History    []llm.Message

	// APIKey overrides the provider key for this question only.
	APIKey string
}

// Passage is a cited passage in an answer.
type Passage struct {
	Content    string       `json:"content"`
	SourceUnit int          `json:"page_number"`
	Type       chunker.Type `json:"chunk_type"`
	Score      float64      `json:"score"`
}

// Envelope is a generated answer with its evidence.
type Envelope struct {
	Answer     string    `json:"answer"`
	Passages   []Passage `json:"passages"`
	Confidence float64   `json:"confidence"`
	TokensUsed int       `json:"tokens_used"`
	FollowUps  []string  `json:"follow_up_questions"`
}

// Config tunes retrieval, the model call and confidence.
type Config struct {
	TopK           int
	ScoreThreshold float64
	MaxTokens      int
	Temperature    float64

	// HistoryTurns is how many trailing conversation turns are sent.
	HistoryTurns int

	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration

	Weights Weights
}

// DefaultConfig returns the generator defaults.
func DefaultConfig() Config {
	return Config{
		TopK:           7,
		ScoreThreshold: 0.6,
		MaxTokens:      800,
		Temperature:    0.3,
		HistoryTurns:   4,
		MaxAttempts:    3,
		BaseBackoff:    4 * time.Second,
		MaxBackoff:     10 * time.Second,
		Weights:        DefaultWeights(),
	}
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.TopK <= 0 {
		return fmt.Errorf("top_k must be positive, got %d", c.TopK)
	}
	if c.ScoreThreshold < 0 || c.ScoreThreshold > 1 {
		return fmt.Errorf("score_threshold must be in [0,1], got %v", c.ScoreThreshold)
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive, got %d", c.MaxTokens)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1, got %d", c.MaxAttempts)
	}
	if c.HistoryTurns < 0 {
		return fmt.Errorf("history_turns must not be negative")
	}
	return c.Weights.Validate()
}

// Generator answers questions and summarizes playbooks.
type Generator struct {
	searcher Searcher
	provider llm.Provider
	usage    *UsageTracker
	metrics  *Metrics
	config   Config
	logger   *zap.Logger
}

// New creates a Generator. usage may be shared between generators.
func New(searcher Searcher, provider llm.Provider, usage *UsageTracker, cfg Config, logger *zap.Logger) (*Generator, error) {
	if searcher == nil {
		return nil, fmt.Errorf("searcher is required")
	}
	if provider == nil {
		return nil, fmt.Errorf("llm provider is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid answer config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if usage == nil {
		usage = NewUsageTracker(nil)
	}
	return &Generator{
		searcher: searcher,
		provider: provider,
		usage:    usage,
		metrics:  NewMetrics(logger),
		config:   cfg,
		logger:   logger,
	}, nil
}

// Usage returns the generator's usage tracker.
func (g *Generator) Usage() *UsageTracker { return g.usage }

// Answer retrieves passages for q and asks the model for a grounded answer.
// When nothing is retrieved the fixed NoInformationAnswer is returned
// without calling the model.
func (g *Generator) Answer(ctx context.Context, q Question) (*Envelope, error) {
	ctx, span := tracer.Start(ctx, "Generator.Answer")
	defer span.End()
	span.SetAttributes(attribute.String("document.id", q.DocumentID))

	if strings.TrimSpace(q.Text) == "" {
		return nil, fmt.Errorf("question is empty")
	}

	passages, err := g.searcher.Search(ctx, retriever.Request{
		Query:      q.Text,
		DocumentID: q.DocumentID,
		TopK:       g.config.TopK,
		Threshold:  retriever.Threshold(g.config.ScoreThreshold),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("passages", len(passages)))

	if len(passages) == 0 {
		span.SetStatus(codes.Ok, "no passages")
		return &Envelope{
			Answer:    NoInformationAnswer,
			Passages:  []Passage{},
			FollowUps: []string{},
		}, nil
	}

	messages := trimHistory(q.History, g.config.HistoryTurns)
	messages = append(messages, llm.Message{
		Role:    llm.RoleUser,
		Content: fmt.Sprintf(answerUserTemplate, q.Text, BuildContext(passages)),
	})

	resp, err := g.complete(ctx, llm.Request{
		System:      answerSystemPrompt,
		Messages:    messages,
		MaxTokens:   g.config.MaxTokens,
		Temperature: g.config.Temperature,
		APIKey:      q.APIKey,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	body, followUps := ParseFollowUps(resp.Text)
	scores := make([]float64, len(passages))
	for i, p := range passages {
		scores[i] = p.Score
	}
	confidence := Confidence(scores, body, g.config.Weights)
	g.metrics.RecordConfidence(ctx, confidence)

	span.SetAttributes(
		attribute.Float64("confidence", confidence),
		attribute.Int("tokens", resp.TotalTokens()),
	)
	span.SetStatus(codes.Ok, "success")

	return &Envelope{
		Answer:     body,
		Passages:   topPassages(passages, 3),
		Confidence: confidence,
		TokensUsed: resp.TotalTokens(),
		FollowUps:  followUps,
	}, nil
}

// complete calls the model, retrying transient failures with exponential
// backoff. Usage is recorded for the successful call.
func (g *Generator) complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	var lastErr error
	for attempt := 1; attempt <= g.config.MaxAttempts; attempt++ {
		if attempt > 1 {
			backoff := g.backoff(attempt)
			g.logger.Debug("retrying completion",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(lastErr))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %w", ErrGeneration, ctx.Err())
			}
		}

		resp, err := g.provider.Complete(ctx, req)
		if err == nil {
			cost := g.usage.Record(g.provider.Model(), resp.PromptTokens, resp.CompletionTokens)
			g.metrics.RecordUsage(ctx, g.provider.Model(), resp.PromptTokens, resp.CompletionTokens, cost)
			return resp, nil
		}
		lastErr = err
		if !llm.IsTransient(err) {
			break
		}
	}

	g.metrics.RecordError(ctx, g.provider.Model())
	g.logger.Warn("completion failed", zap.String("model", g.provider.Model()), zap.Error(lastErr))
	return nil, fmt.Errorf("%w: %w", ErrGeneration, lastErr)
}

// backoff returns base * 2^(attempt-2), capped, for attempt >= 2.
func (g *Generator) backoff(attempt int) time.Duration {
	d := g.config.BaseBackoff << (attempt - 2)
	if d <= 0 || d > g.config.MaxBackoff {
		return g.config.MaxBackoff
	}
	return d
}

func trimHistory(history []llm.Message, turns int) []llm.Message {
	if len(history) > turns {
		history = history[len(history)-turns:]
	}
	out := make([]llm.Message, 0, len(history)+1)
	for _, m := range history {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		if m.Role != llm.RoleAssistant {
			m.Role = llm.RoleUser
		}
		out = append(out, m)
	}
	return out
}

func topPassages(results []index.SearchResult, n int) []Passage {
	n = min(n, len(results))
	out := make([]Passage, n)
	for i := range n {
		r := results[i]
		out[i] = Passage{
			Content:    r.Content,
			SourceUnit: r.SourceUnit,
			Type:       r.Type,
			Score:      math.Round(r.Score*1000) / 1000,
		}
	}
	return out
}
