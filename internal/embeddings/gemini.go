package embeddings

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// DefaultGeminiModel is used when no Gemini embedding model is configured.
const DefaultGeminiModel = "text-embedding-004"

// GeminiConfig configures the Gemini embedding provider.
type GeminiConfig struct {
	Model     string
	APIKey    string
	Dimension int
}

// GeminiProvider embeds through the Gemini API.
type GeminiProvider struct {
	client    *genai.Client
	model     string
	dimension int
}

// NewGeminiProvider creates a Gemini embedding provider.
func NewGeminiProvider(ctx context.Context, cfg GeminiConfig) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key required", ErrInvalidConfig)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}
	if cfg.Dimension == 0 {
		cfg.Dimension = detectDimensionFromModel(cfg.Model)
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return &GeminiProvider{client: client, model: cfg.Model, dimension: cfg.Dimension}, nil
}

// EmbedDocuments embeds texts with the retrieval-document task type.
func (p *GeminiProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}

	em := p.client.EmbeddingModel(p.model)
	em.TaskType = genai.TaskTypeRetrievalDocument
	batch := em.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(t))
	}

	res, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingFailed, err)
	}
	if len(res.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", ErrEmbeddingFailed, len(res.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(res.Embeddings))
	for i, e := range res.Embeddings {
		if e == nil || len(e.Values) == 0 {
			return nil, fmt.Errorf("%w: empty embedding at position %d", ErrEmbeddingFailed, i)
		}
		vectors[i] = e.Values
	}
	return vectors, nil
}

// EmbedQuery embeds text with the retrieval-query task type.
func (p *GeminiProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}

	em := p.client.EmbeddingModel(p.model)
	em.TaskType = genai.TaskTypeRetrievalQuery
	res, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingFailed, err)
	}
	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("%w: no embedding data received from gemini", ErrEmbeddingFailed)
	}
	return res.Embedding.Values, nil
}

// Dimension returns the embedding dimension for the configured model.
func (p *GeminiProvider) Dimension() int { return p.dimension }

// Model returns the model name.
func (p *GeminiProvider) Model() string { return p.model }

// Close closes the underlying gRPC client.
func (p *GeminiProvider) Close() error { return p.client.Close() }

var _ Provider = (*GeminiProvider)(nil)
