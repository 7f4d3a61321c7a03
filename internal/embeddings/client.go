package embeddings

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Client defaults.
const (
	DefaultBatchSize   = 100
	DefaultMaxAttempts = 3
	DefaultBaseBackoff = time.Second
	DefaultMaxBackoff  = 10 * time.Second
	DefaultRateLimit   = 10.0
	DefaultBurst       = 5
)

// ClientConfig tunes batching, retries and rate limiting.
type ClientConfig struct {
	BatchSize   int
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	// RateLimit is requests per second; 0 uses DefaultRateLimit.
	RateLimit float64
	Burst     int
}

// ApplyDefaults fills zero values.
func (c *ClientConfig) ApplyDefaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = DefaultBaseBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = DefaultMaxBackoff
	}
	if c.RateLimit <= 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.Burst <= 0 {
		c.Burst = DefaultBurst
	}
}

// Client batches, rate-limits and retries calls to a Provider. It is the
// only place embedding requests are retried.
type Client struct {
	provider Provider
	cfg      ClientConfig
	limiter  *rate.Limiter
	metrics  *Metrics
	logger   *zap.Logger
}

// NewClient wraps provider. A nil logger disables logging.
func NewClient(provider Provider, cfg ClientConfig, logger *zap.Logger) *Client {
	cfg.ApplyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		provider: provider,
		cfg:      cfg,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst),
		metrics:  NewMetrics(logger),
		logger:   logger,
	}
}

// EmbedDocuments embeds texts in batches of at most BatchSize and returns
// vectors in input order. A batch that exhausts its retries fails the call.
func (c *Client) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += c.cfg.BatchSize {
		end := min(start+c.cfg.BatchSize, len(texts))
		batch := texts[start:end]

		var vectors [][]float32
		err := c.do(ctx, "embed_documents", len(batch), func(ctx context.Context) error {
			v, err := c.provider.EmbedDocuments(ctx, batch)
			if err != nil {
				return err
			}
			if len(v) != len(batch) {
				return fmt.Errorf("%w: got %d vectors for %d texts", ErrEmbeddingFailed, len(v), len(batch))
			}
			vectors = v
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("batch %d-%d of %d: %w", start, end, len(texts), err)
		}
		out = append(out, vectors...)
	}
	return out, nil
}

// EmbedQuery embeds a single search query.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}
	var vector []float32
	err := c.do(ctx, "embed_query", 1, func(ctx context.Context) error {
		v, err := c.provider.EmbedQuery(ctx, text)
		if err != nil {
			return err
		}
		vector = v
		return nil
	})
	return vector, err
}

// Dimension returns the provider's embedding dimension.
func (c *Client) Dimension() int { return c.provider.Dimension() }

// Model returns the provider's model name.
func (c *Client) Model() string { return c.provider.Model() }

// Close closes the provider.
func (c *Client) Close() error { return c.provider.Close() }

func (c *Client) do(ctx context.Context, op string, n int, call func(context.Context) error) error {
	start := time.Now()
	var lastErr error
	defer func() {
		c.metrics.RecordGeneration(ctx, c.provider.Model(), op, time.Since(start), n, lastErr)
	}()

	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			backoff := c.backoff(attempt)
			c.logger.Debug("retrying embedding request",
				zap.String("operation", op),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(lastErr))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				lastErr = ctx.Err()
				return lastErr
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			lastErr = fmt.Errorf("rate limiter: %w", err)
			return lastErr
		}

		lastErr = call(ctx)
		if lastErr == nil {
			return nil
		}
		if !IsTransient(lastErr) {
			return lastErr
		}
	}

	c.logger.Warn("embedding retries exhausted",
		zap.String("operation", op),
		zap.Int("attempts", c.cfg.MaxAttempts),
		zap.Error(lastErr))
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// backoff returns base * 2^(attempt-2), capped, for attempt >= 2.
func (c *Client) backoff(attempt int) time.Duration {
	d := c.cfg.BaseBackoff << (attempt - 2)
	if d <= 0 || d > c.cfg.MaxBackoff {
		return c.cfg.MaxBackoff
	}
	return d
}
