// Package index stores embedded passages for brand playbooks and answers
// filtered similarity searches over them.
//
// Vectors live in a vectorstore.Store; a metadata.Store side-index holds one
// record per document so that listing never scans passage vectors.
package index

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/tom2tomtomtom/Playbook/internal/metadata"
	"github.com/tom2tomtomtom/Playbook/internal/vectorstore"
)

var tracer = otel.Tracer("playbook.index")

var (
	// ErrIngestion indicates a document could not be fully indexed.
	ErrIngestion = errors.New("ingestion failed")

	// ErrEmptyDocument indicates a document produced no chunks. It is always
	// joined with ErrIngestion.
	ErrEmptyDocument = errors.New("document has no indexable content")

	// ErrRetrieval indicates the similarity search backend failed. An empty
	// result is not an error.
	ErrRetrieval = errors.New("retrieval failed")

	// ErrInvalidPage indicates listing parameters out of range.
	ErrInvalidPage = errors.New("invalid page parameters")
)

// Metadata keys stored with every passage.
const (
	KeyDocumentID = "document_id"
	KeySourceUnit = "page_number"
	KeyChunkType  = "chunk_type"
	KeyChunkIndex = "chunk_index"
	KeyFilename   = "filename"
)

// Search defaults.
const (
	DefaultTopK           = 5
	DefaultScoreThreshold = 0.7
	MaxPageSize           = 100
)

// DocumentRecord is the per-document side-index entry.
type DocumentRecord = metadata.Record

// Embedder produces vectors for passages and queries.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Model() string
}

// Config holds index tuning.
type Config struct {
	// UpsertBatchSize bounds records per backend write. Default: 100.
	UpsertBatchSize int
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.UpsertBatchSize <= 0 {
		c.UpsertBatchSize = 100
	}
}

// Index combines the embedder, the vector backend and the metadata side-index.
type Index struct {
	embedder Embedder
	store    vectorstore.Store
	meta     metadata.Store
	config   Config
	logger   *zap.Logger
}

// New creates an Index.
func New(embedder Embedder, store vectorstore.Store, meta metadata.Store, cfg Config, logger *zap.Logger) (*Index, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if store == nil {
		return nil, fmt.Errorf("vector store is required")
	}
	if meta == nil {
		return nil, fmt.Errorf("metadata store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.ApplyDefaults()

	return &Index{
		embedder: embedder,
		store:    store,
		meta:     meta,
		config:   cfg,
		logger:   logger,
	}, nil
}

// Statistics describes the live state of the index. TotalDocuments counts
// ready documents only; failed ingestions stay listed until deleted and are
// reported in FailedDocuments.
type Statistics struct {
	TotalChunks     int    `json:"total_chunks"`
	IndexedChunks   int    `json:"indexed_chunks"`
	TotalDocuments  int    `json:"total_documents"`
	FailedDocuments int    `json:"failed_documents"`
	EmbeddingModel  string `json:"embedding_model"`
}

// Statistics counts passages and documents. Nothing is cached.
// TotalChunks comes from the vector backend, IndexedChunks from the chunk
// counts recorded for ready documents; they differ only while an ingestion
// is in flight or after a cleanup failed.
func (x *Index) Statistics(ctx context.Context) (*Statistics, error) {
	chunks, err := x.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: counting passages: %w", ErrRetrieval, err)
	}
	indexed, err := x.meta.CountChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting indexed chunks: %w", err)
	}
	ready, err := x.meta.CountStatus(ctx, metadata.StatusReady)
	if err != nil {
		return nil, fmt.Errorf("counting documents: %w", err)
	}
	failed, err := x.meta.CountStatus(ctx, metadata.StatusFailed)
	if err != nil {
		return nil, fmt.Errorf("counting failed documents: %w", err)
	}
	return &Statistics{
		TotalChunks:     chunks,
		IndexedChunks:   indexed,
		TotalDocuments:  ready,
		FailedDocuments: failed,
		EmbeddingModel:  x.embedder.Model(),
	}, nil
}

// Health reports whether the vector backend is reachable.
func (x *Index) Health(ctx context.Context) error {
	return x.store.Health(ctx)
}
