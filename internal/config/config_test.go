package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tom2tomtomtom/Playbook/internal/answer"
)

func defaultConfig(t *testing.T) *Config {
	t.Helper()
	cfg := &Config{}
	applyDefaults(cfg)
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestApplyDefaults(t *testing.T) {
	cfg := defaultConfig(t)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout.Duration())
	assert.Equal(t, "openai", cfg.Embeddings.Provider)
	assert.Equal(t, "text-embedding-ada-002", cfg.Embeddings.Model)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "chromem", cfg.VectorStore.Provider)
	assert.Equal(t, 500, cfg.Chunking.Size)
	assert.Equal(t, 50, cfg.Chunking.Overlap)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.InDelta(t, 0.7, cfg.Retrieval.ScoreThreshold, 1e-9)
	assert.Equal(t, 7, cfg.Answer.TopK)
	assert.Equal(t, answer.DefaultWeights(), cfg.Answer.ConfidenceWeights)
	assert.Equal(t, []string{"pdf", "pptx", "docx"}, cfg.Upload.AllowedExtensions)
	assert.Equal(t, int64(50<<20), cfg.Upload.MaxBytes())
	assert.Equal(t, "playbook", cfg.Telemetry.ServiceName)
	assert.Equal(t, "grpc", cfg.Telemetry.Protocol)
}

func TestApplyDefaults_ProviderModels(t *testing.T) {
	tests := []struct {
		provider string
		model    string
	}{
		{"openai", "text-embedding-ada-002"},
		{"gemini", "text-embedding-004"},
		{"tei", "BAAI/bge-small-en-v1.5"},
		{"fastembed", "BAAI/bge-small-en-v1.5"},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			cfg := &Config{Embeddings: EmbeddingsConfig{Provider: tt.provider}}
			applyDefaults(cfg)
			assert.Equal(t, tt.model, cfg.Embeddings.Model)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
		{"unknown embeddings provider", func(c *Config) { c.Embeddings.Provider = "cohere" }},
		{"gemini embeddings without key", func(c *Config) { c.Embeddings.Provider = "gemini" }},
		{"unknown llm provider", func(c *Config) { c.LLM.Provider = "claude" }},
		{"gemini llm without key", func(c *Config) { c.LLM.Provider = "gemini" }},
		{"unknown vector store", func(c *Config) { c.VectorStore.Provider = "pinecone" }},
		{"overlap not below size", func(c *Config) { c.Chunking.Overlap = c.Chunking.Size }},
		{"negative threshold", func(c *Config) { c.Retrieval.ScoreThreshold = -0.1 }},
		{"answer max tokens", func(c *Config) { c.Answer.MaxTokens = -1 }},
		{"logging format", func(c *Config) { c.Logging.Format = "xml" }},
		{"telemetry without service", func(c *Config) {
			c.Telemetry.Enabled = true
			c.Telemetry.ServiceName = ""
		}},
		{"telemetry protocol", func(c *Config) { c.Telemetry.Protocol = "udp" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig(t)
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}
}

func TestConfig_GeminiWithKey(t *testing.T) {
	cfg := &Config{
		Gemini:     GeminiConfig{APIKey: "g-key"},
		Embeddings: EmbeddingsConfig{Provider: "gemini"},
		LLM:        LLMConfig{Provider: "gemini"},
	}
	applyDefaults(cfg)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "g-key", cfg.EmbeddingProvider().APIKey)
	assert.Equal(t, "g-key", cfg.LLMProvider().APIKey)
}

func TestConfig_OpenAIKeyAndBaseURL(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.OpenAI = OpenAIConfig{APIKey: "sk-test", BaseURL: "http://proxy.local/v1"}

	ep := cfg.EmbeddingProvider()
	assert.Equal(t, "sk-test", ep.APIKey)
	assert.Equal(t, "http://proxy.local/v1", ep.BaseURL)

	lc := cfg.LLMProvider()
	assert.Equal(t, "sk-test", lc.APIKey)
	assert.Equal(t, "http://proxy.local/v1", lc.BaseURL)

	cfg.Embeddings.BaseURL = "http://embed.local/v1"
	assert.Equal(t, "http://embed.local/v1", cfg.EmbeddingProvider().BaseURL)
}

func TestConfig_Conversions(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.VectorStore.Provider = "qdrant"
	cfg.VectorStore.Qdrant = QdrantConfig{Host: "qdrant", Port: 6334, APIKey: "q-key", Backoff: Duration(2 * time.Second)}
	cfg.VectorStore.UpsertBatchSize = 64

	vs := cfg.VectorStoreBackend()
	assert.Equal(t, "qdrant", vs.Provider)
	assert.Equal(t, "q-key", vs.Qdrant.APIKey)
	assert.Equal(t, 2*time.Second, vs.Qdrant.RetryBackoff)
	assert.Equal(t, "./data/vectorstore", vs.Chromem.Path)

	assert.Equal(t, 64, cfg.IndexConfig().UpsertBatchSize)
	assert.Equal(t, "./data/metadata.db", cfg.MetadataStore().Path)
	assert.Equal(t, 3, cfg.RetrieverConfig().RerankDepth)
	assert.Len(t, cfg.ChunkerOptions(), 2)

	ac := cfg.AnswerConfig()
	assert.Equal(t, 800, ac.MaxTokens)
	assert.Equal(t, 4*time.Second, ac.BaseBackoff)
	require.NoError(t, ac.Validate())
}

func TestUploadConfig_Allows(t *testing.T) {
	cfg := &Config{Upload: UploadConfig{AllowedExtensions: []string{".PDF", " docx"}}}
	applyDefaults(cfg)

	assert.True(t, cfg.Upload.Allows(".pdf"))
	assert.True(t, cfg.Upload.Allows("DOCX"))
	assert.False(t, cfg.Upload.Allows(".pptx"))
	assert.False(t, cfg.Upload.Allows(".exe"))
}

func TestServerConfig_Addr(t *testing.T) {
	assert.Equal(t, "127.0.0.1:9000", ServerConfig{Host: "127.0.0.1", Port: 9000}.Addr())
}
