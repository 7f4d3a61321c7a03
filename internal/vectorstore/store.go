// Package vectorstore persists passage vectors and answers filtered
// nearest-neighbour queries. Embeddings are computed by the caller; stores
// never call an embedding model.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

var (
	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyRecords indicates an upsert with nothing to write.
	ErrEmptyRecords = errors.New("empty or nil records")

	// ErrConnectionFailed indicates the backend could not be reached.
	ErrConnectionFailed = errors.New("failed to connect to vector store")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")

	// ErrDimensionMismatch indicates a vector of the wrong length.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Record is one passage to persist.
type Record struct {
	ID        string
	Content   string
	Embedding []float32
	// Metadata values are strings so every backend can filter on them.
	Metadata map[string]string
}

// Match is a query hit. Distance is cosine distance in [0, 2].
type Match struct {
	ID       string
	Content  string
	Metadata map[string]string
	Distance float32
}

// Store is the vector backend used by the index.
//
// Where filters are exact-match on metadata keys and are ANDed together.
type Store interface {
	// Upsert writes records, replacing any with the same ID.
	Upsert(ctx context.Context, records []Record) error

	// Query returns up to k nearest records to embedding, closest first.
	// An empty store or a filter that matches nothing yields no matches.
	Query(ctx context.Context, embedding []float32, k int, where map[string]string) ([]Match, error)

	// Delete removes every record matching where. Matching nothing is not
	// an error. An empty filter is rejected.
	Delete(ctx context.Context, where map[string]string) error

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)

	// Health reports whether the backend is reachable.
	Health(ctx context.Context) error

	Close() error
}

var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// ValidateCollectionName validates a collection name against ^[a-z0-9_]{1,64}$.
func ValidateCollectionName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: collection name cannot be empty", ErrInvalidCollectionName)
	}
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: collection name must match pattern ^[a-z0-9_]{1,64}$, got %q", ErrInvalidCollectionName, name)
	}
	return nil
}

func validateRecords(records []Record, dim int) error {
	if len(records) == 0 {
		return ErrEmptyRecords
	}
	for i, r := range records {
		if r.ID == "" {
			return fmt.Errorf("%w: record %d has no id", ErrInvalidConfig, i)
		}
		if len(r.Embedding) != dim {
			return fmt.Errorf("%w: record %d has %d values, want %d", ErrDimensionMismatch, i, len(r.Embedding), dim)
		}
	}
	return nil
}
