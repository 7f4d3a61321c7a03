// Package config provides configuration loading for playbook.
//
// Configuration is read from an optional YAML file and environment
// variables, layered over defaults. See Load for precedence rules.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/tom2tomtomtom/Playbook/internal/answer"
	"github.com/tom2tomtomtom/Playbook/internal/chunker"
	"github.com/tom2tomtomtom/Playbook/internal/embeddings"
	"github.com/tom2tomtomtom/Playbook/internal/index"
	"github.com/tom2tomtomtom/Playbook/internal/llm"
	"github.com/tom2tomtomtom/Playbook/internal/metadata"
	"github.com/tom2tomtomtom/Playbook/internal/retriever"
	"github.com/tom2tomtomtom/Playbook/internal/vectorstore"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config holds the complete playbook configuration.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	OpenAI      OpenAIConfig      `koanf:"openai"`
	Gemini      GeminiConfig      `koanf:"gemini"`
	Embeddings  EmbeddingsConfig  `koanf:"embeddings"`
	LLM         LLMConfig         `koanf:"llm"`
	VectorStore VectorStoreConfig `koanf:"vectorstore"`
	Metadata    MetadataConfig    `koanf:"metadata"`
	Chunking    ChunkingConfig    `koanf:"chunking"`
	Retrieval   RetrievalConfig   `koanf:"retrieval"`
	Answer      AnswerConfig      `koanf:"answer"`
	Upload      UploadConfig      `koanf:"upload"`
	Logging     LoggingConfig     `koanf:"logging"`
	Telemetry   TelemetryConfig   `koanf:"telemetry"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
	// MetricsPath serves prometheus metrics. Empty disables the endpoint.
	MetricsPath string `koanf:"metrics_path"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// OpenAIConfig holds credentials shared by the OpenAI embedding and chat
// providers.
type OpenAIConfig struct {
	APIKey  Secret `koanf:"api_key"`
	BaseURL string `koanf:"base_url"`
}

// GeminiConfig holds the Gemini API key.
type GeminiConfig struct {
	APIKey Secret `koanf:"api_key"`
}

// EmbeddingsConfig selects the embedding provider and tunes the client.
type EmbeddingsConfig struct {
	Provider  string `koanf:"provider"`
	Model     string `koanf:"model"`
	Dimension int    `koanf:"dimension"`
	// BaseURL overrides openai.base_url for embeddings, or points at TEI.
	BaseURL  string `koanf:"base_url"`
	CacheDir string `koanf:"cache_dir"`

	BatchSize   int      `koanf:"batch_size"`
	MaxAttempts int      `koanf:"max_attempts"`
	BaseBackoff Duration `koanf:"base_backoff"`
	MaxBackoff  Duration `koanf:"max_backoff"`
	RateLimit   float64  `koanf:"rate_limit"`
	Burst       int      `koanf:"burst"`
}

// LLMConfig selects the language-model provider.
type LLMConfig struct {
	Provider  string  `koanf:"provider"`
	Model     string  `koanf:"model"`
	BaseURL   string  `koanf:"base_url"`
	RateLimit float64 `koanf:"rate_limit"`
	Burst     int     `koanf:"burst"`
}

// VectorStoreConfig selects the vector backend.
type VectorStoreConfig struct {
	Provider        string        `koanf:"provider"`
	UpsertBatchSize int           `koanf:"upsert_batch_size"`
	Chromem         ChromemConfig `koanf:"chromem"`
	Qdrant          QdrantConfig  `koanf:"qdrant"`
}

// ChromemConfig configures the embedded backend.
type ChromemConfig struct {
	Path       string `koanf:"path"`
	Compress   bool   `koanf:"compress"`
	Collection string `koanf:"collection"`
}

// QdrantConfig configures the remote backend.
type QdrantConfig struct {
	Host       string   `koanf:"host"`
	Port       int      `koanf:"port"`
	Collection string   `koanf:"collection"`
	UseTLS     bool     `koanf:"use_tls"`
	APIKey     Secret   `koanf:"api_key"`
	MaxRetries int      `koanf:"max_retries"`
	Backoff    Duration `koanf:"retry_backoff"`
}

// MetadataConfig locates the SQLite side-index.
type MetadataConfig struct {
	Path string `koanf:"path"`
}

// ChunkingConfig sizes the word windows.
type ChunkingConfig struct {
	Size    int `koanf:"size"`
	Overlap int `koanf:"overlap"`
}

// RetrievalConfig tunes the retriever.
type RetrievalConfig struct {
	TopK           int     `koanf:"top_k"`
	ScoreThreshold float64 `koanf:"score_threshold"`
	Rerank         bool    `koanf:"rerank"`
	RerankDepth    int     `koanf:"rerank_depth"`
	OverlapWeight  float64 `koanf:"overlap_weight"`
}

// AnswerConfig tunes answer generation.
type AnswerConfig struct {
	TopK              int            `koanf:"top_k"`
	ScoreThreshold    float64        `koanf:"score_threshold"`
	MaxTokens         int            `koanf:"max_tokens"`
	Temperature       float64        `koanf:"temperature"`
	HistoryTurns      int            `koanf:"history_turns"`
	MaxAttempts       int            `koanf:"max_attempts"`
	BaseBackoff       Duration       `koanf:"base_backoff"`
	MaxBackoff        Duration       `koanf:"max_backoff"`
	ConfidenceWeights answer.Weights `koanf:"confidence_weights"`
}

// UploadConfig bounds document uploads.
type UploadConfig struct {
	MaxSizeMB         int64    `koanf:"max_size_mb"`
	AllowedExtensions []string `koanf:"allowed_extensions"`
}

// MaxBytes returns the upload limit in bytes.
func (u UploadConfig) MaxBytes() int64 { return u.MaxSizeMB << 20 }

// Allows reports whether ext (with or without the dot) may be uploaded.
func (u UploadConfig) Allows(ext string) bool {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	return slices.Contains(u.AllowedExtensions, ext)
}

// LoggingConfig is the subset of logging settings exposed to users.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	OTEL   bool   `koanf:"otel"`
}

// TelemetryConfig is the subset of telemetry settings exposed to users.
type TelemetryConfig struct {
	Enabled     bool    `koanf:"enabled"`
	Endpoint    string  `koanf:"endpoint"`
	ServiceName string  `koanf:"service_name"`
	Insecure    bool    `koanf:"insecure"`
	SampleRate  float64 `koanf:"sample_rate"`
	Protocol    string  `koanf:"protocol"` // grpc or http
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}
	if cfg.Server.MetricsPath == "" {
		cfg.Server.MetricsPath = "/metrics"
	}

	if cfg.Embeddings.Provider == "" {
		cfg.Embeddings.Provider = "openai"
	}
	if cfg.Embeddings.Model == "" {
		switch cfg.Embeddings.Provider {
		case "gemini":
			cfg.Embeddings.Model = "text-embedding-004"
		case "tei", "fastembed":
			cfg.Embeddings.Model = "BAAI/bge-small-en-v1.5"
		default:
			cfg.Embeddings.Model = "text-embedding-ada-002"
		}
	}
	if cfg.Embeddings.Provider == "tei" && cfg.Embeddings.BaseURL == "" {
		cfg.Embeddings.BaseURL = "http://localhost:8080"
	}

	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "openai"
	}

	if cfg.VectorStore.Provider == "" {
		cfg.VectorStore.Provider = "chromem"
	}
	if cfg.VectorStore.Chromem.Path == "" {
		cfg.VectorStore.Chromem.Path = "./data/vectorstore"
	}
	if cfg.Metadata.Path == "" {
		cfg.Metadata.Path = "./data/metadata.db"
	}

	if cfg.Chunking.Size == 0 {
		cfg.Chunking.Size = chunker.DefaultSize
	}
	if cfg.Chunking.Overlap == 0 {
		cfg.Chunking.Overlap = chunker.DefaultOverlap
	}

	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = index.DefaultTopK
	}
	if cfg.Retrieval.ScoreThreshold == 0 {
		cfg.Retrieval.ScoreThreshold = index.DefaultScoreThreshold
	}
	if cfg.Retrieval.RerankDepth == 0 {
		cfg.Retrieval.RerankDepth = 3
	}
	if cfg.Retrieval.OverlapWeight == 0 {
		cfg.Retrieval.OverlapWeight = 0.5
	}

	def := answer.DefaultConfig()
	if cfg.Answer.TopK == 0 {
		cfg.Answer.TopK = def.TopK
	}
	if cfg.Answer.ScoreThreshold == 0 {
		cfg.Answer.ScoreThreshold = def.ScoreThreshold
	}
	if cfg.Answer.MaxTokens == 0 {
		cfg.Answer.MaxTokens = def.MaxTokens
	}
	if cfg.Answer.Temperature == 0 {
		cfg.Answer.Temperature = def.Temperature
	}
	if cfg.Answer.HistoryTurns == 0 {
		cfg.Answer.HistoryTurns = def.HistoryTurns
	}
	if cfg.Answer.MaxAttempts == 0 {
		cfg.Answer.MaxAttempts = def.MaxAttempts
	}
	if cfg.Answer.BaseBackoff == 0 {
		cfg.Answer.BaseBackoff = Duration(def.BaseBackoff)
	}
	if cfg.Answer.MaxBackoff == 0 {
		cfg.Answer.MaxBackoff = Duration(def.MaxBackoff)
	}
	if cfg.Answer.ConfidenceWeights == (answer.Weights{}) {
		cfg.Answer.ConfidenceWeights = def.Weights
	}

	if cfg.Upload.MaxSizeMB == 0 {
		cfg.Upload.MaxSizeMB = 50
	}
	if len(cfg.Upload.AllowedExtensions) == 0 {
		cfg.Upload.AllowedExtensions = []string{"pdf", "pptx", "docx"}
	}
	for i, ext := range cfg.Upload.AllowedExtensions {
		cfg.Upload.AllowedExtensions[i] = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "playbook"
	}
	if cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Endpoint = "localhost:4317"
	}
	if cfg.Telemetry.SampleRate == 0 {
		cfg.Telemetry.SampleRate = 1.0
	}
	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = "grpc"
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server port %d (must be 1-65535)", ErrInvalid, c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("%w: shutdown timeout must be positive", ErrInvalid)
	}

	switch c.Embeddings.Provider {
	case "openai", "tei", "fastembed":
	case "gemini":
		if !c.Gemini.APIKey.IsSet() {
			return fmt.Errorf("%w: gemini.api_key is required for gemini embeddings", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown embeddings provider %q", ErrInvalid, c.Embeddings.Provider)
	}
	switch c.LLM.Provider {
	case "openai":
	case "gemini":
		if !c.Gemini.APIKey.IsSet() {
			return fmt.Errorf("%w: gemini.api_key is required for the gemini language model", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown llm provider %q", ErrInvalid, c.LLM.Provider)
	}
	switch c.VectorStore.Provider {
	case "chromem", "qdrant":
	default:
		return fmt.Errorf("%w: unknown vector store provider %q", ErrInvalid, c.VectorStore.Provider)
	}

	if c.Chunking.Size <= 0 || c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("%w: chunking overlap %d must be in [0, size %d)", ErrInvalid, c.Chunking.Overlap, c.Chunking.Size)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("%w: retrieval.top_k must be positive", ErrInvalid)
	}
	if c.Retrieval.ScoreThreshold < 0 || c.Retrieval.ScoreThreshold > 1 {
		return fmt.Errorf("%w: retrieval.score_threshold must be in [0,1]", ErrInvalid)
	}
	if err := c.AnswerConfig().Validate(); err != nil {
		return fmt.Errorf("%w: answer: %v", ErrInvalid, err)
	}
	if c.Upload.MaxSizeMB < 0 {
		return fmt.Errorf("%w: upload.max_size_mb must not be negative", ErrInvalid)
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("%w: logging format %q (want json or console)", ErrInvalid, c.Logging.Format)
	}
	if c.Telemetry.Enabled && c.Telemetry.ServiceName == "" {
		return fmt.Errorf("%w: service name required when telemetry is enabled", ErrInvalid)
	}
	if c.Telemetry.Protocol != "grpc" && c.Telemetry.Protocol != "http" {
		return fmt.Errorf("%w: telemetry protocol %q (want grpc or http)", ErrInvalid, c.Telemetry.Protocol)
	}
	return nil
}

// EmbeddingProvider returns the provider configuration with the matching
// API key resolved.
func (c *Config) EmbeddingProvider() embeddings.ProviderConfig {
	pc := embeddings.ProviderConfig{
		Provider:  c.Embeddings.Provider,
		Model:     c.Embeddings.Model,
		Dimension: c.Embeddings.Dimension,
		BaseURL:   c.Embeddings.BaseURL,
		CacheDir:  c.Embeddings.CacheDir,
	}
	switch c.Embeddings.Provider {
	case "openai":
		pc.APIKey = c.OpenAI.APIKey.Value()
		if pc.BaseURL == "" {
			pc.BaseURL = c.OpenAI.BaseURL
		}
	case "gemini":
		pc.APIKey = c.Gemini.APIKey.Value()
	}
	return pc
}

// EmbeddingClient returns batching, retry and rate-limit settings.
func (c *Config) EmbeddingClient() embeddings.ClientConfig {
	return embeddings.ClientConfig{
		BatchSize:   c.Embeddings.BatchSize,
		MaxAttempts: c.Embeddings.MaxAttempts,
		BaseBackoff: c.Embeddings.BaseBackoff.Duration(),
		MaxBackoff:  c.Embeddings.MaxBackoff.Duration(),
		RateLimit:   c.Embeddings.RateLimit,
		Burst:       c.Embeddings.Burst,
	}
}

// LLMProvider returns the language-model configuration.
func (c *Config) LLMProvider() llm.Config {
	lc := llm.Config{
		Provider:  c.LLM.Provider,
		Model:     c.LLM.Model,
		BaseURL:   c.LLM.BaseURL,
		RateLimit: c.LLM.RateLimit,
		Burst:     c.LLM.Burst,
	}
	switch c.LLM.Provider {
	case "gemini":
		lc.APIKey = c.Gemini.APIKey.Value()
	default:
		lc.APIKey = c.OpenAI.APIKey.Value()
		if lc.BaseURL == "" {
			lc.BaseURL = c.OpenAI.BaseURL
		}
	}
	return lc
}

// VectorStoreBackend returns the backend configuration. Vector sizes are
// filled in by vectorstore.NewStore from the embedding dimension.
func (c *Config) VectorStoreBackend() vectorstore.Config {
	return vectorstore.Config{
		Provider: c.VectorStore.Provider,
		Chromem: vectorstore.ChromemConfig{
			Path:       c.VectorStore.Chromem.Path,
			Compress:   c.VectorStore.Chromem.Compress,
			Collection: c.VectorStore.Chromem.Collection,
		},
		Qdrant: vectorstore.QdrantConfig{
			Host:         c.VectorStore.Qdrant.Host,
			Port:         c.VectorStore.Qdrant.Port,
			Collection:   c.VectorStore.Qdrant.Collection,
			UseTLS:       c.VectorStore.Qdrant.UseTLS,
			APIKey:       c.VectorStore.Qdrant.APIKey.Value(),
			MaxRetries:   c.VectorStore.Qdrant.MaxRetries,
			RetryBackoff: c.VectorStore.Qdrant.Backoff.Duration(),
		},
	}
}

// MetadataStore returns the side-index configuration.
func (c *Config) MetadataStore() metadata.Config {
	return metadata.Config{Path: c.Metadata.Path}
}

// IndexConfig returns the index store configuration.
func (c *Config) IndexConfig() index.Config {
	return index.Config{UpsertBatchSize: c.VectorStore.UpsertBatchSize}
}

// ChunkerOptions returns splitter options for the configured window.
func (c *Config) ChunkerOptions() []chunker.Option {
	return []chunker.Option{
		chunker.WithSize(c.Chunking.Size),
		chunker.WithOverlap(c.Chunking.Overlap),
	}
}

// RetrieverConfig returns the retriever configuration.
func (c *Config) RetrieverConfig() retriever.Config {
	return retriever.Config{
		TopK:           c.Retrieval.TopK,
		ScoreThreshold: c.Retrieval.ScoreThreshold,
		RerankDepth:    c.Retrieval.RerankDepth,
	}
}

// AnswerConfig returns the answer generator configuration.
func (c *Config) AnswerConfig() answer.Config {
	return answer.Config{
		TopK:           c.Answer.TopK,
		ScoreThreshold: c.Answer.ScoreThreshold,
		MaxTokens:      c.Answer.MaxTokens,
		Temperature:    c.Answer.Temperature,
		HistoryTurns:   c.Answer.HistoryTurns,
		MaxAttempts:    c.Answer.MaxAttempts,
		BaseBackoff:    c.Answer.BaseBackoff.Duration(),
		MaxBackoff:     c.Answer.MaxBackoff.Duration(),
		Weights:        c.Answer.ConfidenceWeights,
	}
}
