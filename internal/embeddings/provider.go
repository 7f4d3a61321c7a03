package embeddings

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyInput indicates empty or nil input texts.
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("embedding generation failed")
)

// Provider is a single embedding backend.
type Provider interface {
	// EmbedDocuments embeds texts for storage. The result has the same
	// length and order as texts.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	// EmbedQuery embeds a search query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	// Dimension returns the embedding dimension for the current model.
	Dimension() int
	// Model returns the model name reported in statistics.
	Model() string
	// Close releases resources held by the provider.
	Close() error
}

// ProviderConfig holds configuration for creating an embedding provider.
type ProviderConfig struct {
	// Provider is one of "openai", "gemini", "tei" or "fastembed".
	Provider string
	Model    string
	// Dimension overrides the detected model dimension when non-zero.
	Dimension int
	// BaseURL is the API endpoint (openai-compatible or TEI).
	BaseURL string
	APIKey  string
	// CacheDir is the model cache directory (FastEmbed only).
	CacheDir string
}

// NewProvider creates an embedding provider based on the configuration.
func NewProvider(ctx context.Context, cfg ProviderConfig) (Provider, error) {
	dim := cfg.Dimension
	if dim == 0 {
		dim = detectDimensionFromModel(cfg.Model)
	}

	var (
		p   Provider
		err error
	)
	switch cfg.Provider {
	case "openai", "":
		p, err = NewOpenAIProvider(OpenAIConfig{
			Model:     cfg.Model,
			BaseURL:   cfg.BaseURL,
			APIKey:    cfg.APIKey,
			Dimension: dim,
		})
	case "gemini":
		p, err = NewGeminiProvider(ctx, GeminiConfig{
			Model:     cfg.Model,
			APIKey:    cfg.APIKey,
			Dimension: dim,
		})
	case "tei":
		p, err = NewTEIProvider(TEIConfig{
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			APIKey:    cfg.APIKey,
			Dimension: dim,
		})
	case "fastembed":
		p, err = NewFastEmbedProvider(FastEmbedConfig{
			Model:    cfg.Model,
			CacheDir: cfg.CacheDir,
		})
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// knownDimensions covers the hosted models this service is usually pointed at.
var knownDimensions = map[string]int{
	"text-embedding-ada-002": 1536,
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-004":     768,
	"embedding-001":          768,
}

// detectDimensionFromModel returns the embedding dimension for a model name.
// Falls back to 1536 if the model is unknown.
func detectDimensionFromModel(model string) int {
	if dim, ok := knownDimensions[strings.TrimPrefix(model, "models/")]; ok {
		return dim
	}
	if dim, ok := fastEmbedModelDimension(model); ok {
		return dim
	}
	switch {
	case strings.Contains(model, "base"):
		return 768
	case strings.Contains(model, "large"):
		return 1024
	case strings.Contains(model, "small"), strings.Contains(model, "mini"):
		return 384
	default:
		return 1536
	}
}
