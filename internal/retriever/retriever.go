// Package retriever wraps index search with per-caller defaults and
// optional re-ranking.
package retriever

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/tom2tomtomtom/Playbook/internal/index"
	"github.com/tom2tomtomtom/Playbook/internal/reranker"
)

var tracer = otel.Tracer("playbook.retriever")

// Searcher is the index operation the retriever composes over.
type Searcher interface {
	Search(ctx context.Context, req index.SearchRequest) ([]index.SearchResult, error)
}

// Config holds retrieval defaults.
type Config struct {
	TopK           int
	ScoreThreshold float64

	// RerankDepth multiplies TopK to size the candidate pool handed to the
	// reranker. Default: 3.
	RerankDepth int
}

// ApplyDefaults sets default values for unset fields. A zero threshold is
// kept as is.
func (c *Config) ApplyDefaults() {
	if c.TopK <= 0 {
		c.TopK = index.DefaultTopK
	}
	if c.RerankDepth <= 0 {
		c.RerankDepth = 3
	}
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.ScoreThreshold < 0 || c.ScoreThreshold > 1 {
		return fmt.Errorf("score threshold must be in [0,1], got %v", c.ScoreThreshold)
	}
	return nil
}

// Retriever runs searches with defaults. It holds no per-query state.
type Retriever struct {
	searcher Searcher
	reranker reranker.Reranker
	config   Config
	logger   *zap.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithReranker enables re-ranking.
func WithReranker(r reranker.Reranker) Option {
	return func(rt *Retriever) {
		rt.reranker = r
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(rt *Retriever) {
		if l != nil {
			rt.logger = l
		}
	}
}

// New creates a Retriever.
func New(searcher Searcher, cfg Config, opts ...Option) (*Retriever, error) {
	if searcher == nil {
		return nil, fmt.Errorf("searcher is required")
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &Retriever{searcher: searcher, config: cfg, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Request overrides the retriever defaults for one search. Nil fields use
// the defaults.
type Request struct {
	Query      string
	DocumentID string
	TopK       int
	Threshold  *float64
}

// Threshold returns a pointer for Request.Threshold.
func Threshold(v float64) *float64 { return &v }

// Search returns at most TopK passages scoring at least the threshold.
// With a reranker configured, TopK×RerankDepth candidates are fetched and
// reordered before trimming; reported scores remain similarity scores.
func (r *Retriever) Search(ctx context.Context, req Request) ([]index.SearchResult, error) {
	ctx, span := tracer.Start(ctx, "Retriever.Search")
	defer span.End()

	topK := req.TopK
	if topK <= 0 {
		topK = r.config.TopK
	}
	threshold := r.config.ScoreThreshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}

	fetch := topK
	if r.reranker != nil {
		fetch = topK * r.config.RerankDepth
	}
	span.SetAttributes(
		attribute.Int("top_k", topK),
		attribute.Int("fetch", fetch),
		attribute.Float64("threshold", threshold),
		attribute.Bool("rerank", r.reranker != nil),
	)

	results, err := r.searcher.Search(ctx, index.SearchRequest{
		Query:          req.Query,
		DocumentID:     req.DocumentID,
		TopK:           fetch,
		ScoreThreshold: threshold,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if r.reranker != nil && len(results) > 1 {
		results, err = r.rerank(ctx, req.Query, results, topK)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
	}
	if len(results) > topK {
		results = results[:topK]
	}

	r.logger.Debug("retrieved passages",
		zap.String("document_id", req.DocumentID),
		zap.Int("results", len(results)),
	)
	span.SetAttributes(attribute.Int("results", len(results)))
	span.SetStatus(codes.Ok, "success")
	return results, nil
}

func (r *Retriever) rerank(ctx context.Context, query string, results []index.SearchResult, topK int) ([]index.SearchResult, error) {
	candidates := make([]reranker.Candidate, len(results))
	for i, res := range results {
		candidates[i] = reranker.Candidate{ID: res.ID, Content: res.Content, Score: res.Score}
	}

	ranked, err := r.reranker.Rerank(ctx, query, candidates, topK)
	if err != nil {
		return nil, fmt.Errorf("reranking: %w", err)
	}

	out := make([]index.SearchResult, len(ranked))
	for i, rk := range ranked {
		out[i] = results[rk.OriginalRank]
	}
	return out, nil
}

// Config returns the effective configuration.
func (r *Retriever) Config() Config { return r.config }
