package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var chromemTracer = otel.Tracer("playbook.vectorstore.chromem")

// errNoEmbedder guards against chromem embedding text on its own; every
// record and query arrives with a precomputed vector.
var errNoEmbedder = errors.New("chromem: embedding must be precomputed")

// ChromemConfig holds configuration for the embedded chromem-go database.
type ChromemConfig struct {
	// Path is the directory for persistent storage. Empty keeps data in memory.
	Path string

	// Compress enables gzip compression for stored data.
	Compress bool

	// Collection defaults to "brand_playbooks".
	Collection string

	VectorSize int
}

// ApplyDefaults sets default values for unset fields.
func (c *ChromemConfig) ApplyDefaults() {
	if c.Collection == "" {
		c.Collection = "brand_playbooks"
	}
}

// Validate validates the configuration.
func (c *ChromemConfig) Validate() error {
	if c.VectorSize <= 0 {
		return fmt.Errorf("%w: vector size must be positive", ErrInvalidConfig)
	}
	return ValidateCollectionName(c.Collection)
}

// ChromemStore implements Store with chromem-go, an embedded pure-Go
// vector database persisted to gob files. Similarity is cosine.
type ChromemStore struct {
	db         *chromem.DB
	collection *chromem.Collection
	config     ChromemConfig
	logger     *zap.Logger

	// chromem rejects nResults greater than the collection size, so count
	// and query must observe the same state.
	mu sync.RWMutex
}

// NewChromemStore opens (or creates) the configured collection.
func NewChromemStore(config ChromemConfig, logger *zap.Logger) (*ChromemStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	var db *chromem.DB
	if config.Path == "" {
		db = chromem.NewDB()
	} else {
		path, err := expandPath(config.Path)
		if err != nil {
			return nil, fmt.Errorf("expanding path: %w", err)
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", path, err)
		}
		db, err = chromem.NewPersistentDB(path, config.Compress)
		if err != nil {
			return nil, fmt.Errorf("%w: opening chromem DB: %v", ErrConnectionFailed, err)
		}
		config.Path = path
	}

	// Must pass an embedding function: chromem falls back to OpenAI when nil.
	collection, err := db.GetOrCreateCollection(config.Collection, nil, refuseEmbedding)
	if err != nil {
		return nil, fmt.Errorf("getting/creating collection %s: %w", config.Collection, err)
	}

	logger.Info("chromem store initialized",
		zap.String("path", config.Path),
		zap.Bool("compress", config.Compress),
		zap.Int("vector_size", config.VectorSize),
		zap.String("collection", config.Collection),
		zap.Int("documents", collection.Count()),
	)

	return &ChromemStore{
		db:         db,
		collection: collection,
		config:     config,
		logger:     logger,
	}, nil
}

func refuseEmbedding(context.Context, string) ([]float32, error) {
	return nil, errNoEmbedder
}

func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// Upsert writes records. chromem replaces documents with an existing ID.
func (s *ChromemStore) Upsert(ctx context.Context, records []Record) error {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Upsert")
	defer span.End()
	span.SetAttributes(attribute.Int("record_count", len(records)))

	if err := validateRecords(records, s.config.VectorSize); err != nil {
		span.RecordError(err)
		return err
	}

	docs := make([]chromem.Document, len(records))
	for i, r := range records {
		docs[i] = chromem.Document{
			ID:        r.ID,
			Content:   r.Content,
			Metadata:  r.Metadata,
			Embedding: r.Embedding,
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.collection.AddDocuments(ctx, docs, 1); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("adding documents: %w", err)
	}

	span.SetStatus(codes.Ok, "success")
	s.logger.Debug("upserted records to chromem",
		zap.String("collection", s.config.Collection),
		zap.Int("count", len(records)),
	)
	return nil
}

// Query returns up to k nearest records. k is capped at the collection size.
func (s *ChromemStore) Query(ctx context.Context, embedding []float32, k int, where map[string]string) ([]Match, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Query")
	defer span.End()
	span.SetAttributes(attribute.Int("k", k), attribute.Int("filter_count", len(where)))

	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if len(embedding) != s.config.VectorSize {
		return nil, fmt.Errorf("%w: query has %d values, want %d", ErrDimensionMismatch, len(embedding), s.config.VectorSize)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	count := s.collection.Count()
	if count == 0 {
		return []Match{}, nil
	}
	k = min(k, count)

	results, err := s.collection.QueryEmbedding(ctx, embedding, k, where, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying collection %s: %w", s.config.Collection, err)
	}

	matches := make([]Match, len(results))
	for i, r := range results {
		matches[i] = Match{
			ID:       r.ID,
			Content:  r.Content,
			Metadata: r.Metadata,
			Distance: 1 - r.Similarity,
		}
	}

	span.SetAttributes(attribute.Int("results_count", len(matches)))
	span.SetStatus(codes.Ok, "success")
	return matches, nil
}

// Delete removes every record matching where.
func (s *ChromemStore) Delete(ctx context.Context, where map[string]string) error {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Delete")
	defer span.End()

	if len(where) == 0 {
		return fmt.Errorf("%w: delete requires a filter", ErrInvalidConfig)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.collection.Delete(ctx, where, nil); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("deleting from collection %s: %w", s.config.Collection, err)
	}
	span.SetStatus(codes.Ok, "success")
	return nil
}

// Count returns the number of stored records.
func (s *ChromemStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collection.Count(), nil
}

// Health always succeeds for the embedded store.
func (s *ChromemStore) Health(_ context.Context) error { return nil }

// Close is a no-op; chromem persists on every write.
func (s *ChromemStore) Close() error {
	s.logger.Info("chromem store closed")
	return nil
}

var _ Store = (*ChromemStore)(nil)
