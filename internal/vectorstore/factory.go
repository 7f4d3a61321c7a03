package vectorstore

import (
	"fmt"

	"go.uber.org/zap"
)

// Config selects and configures a backend.
type Config struct {
	// Provider is "chromem" (default) or "qdrant".
	Provider string
	Chromem  ChromemConfig
	Qdrant   QdrantConfig
}

// NewStore creates the configured backend. dimension is the embedding
// model's vector size and overrides any size in the backend config.
func NewStore(cfg Config, dimension int, logger *zap.Logger) (Store, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive, got %d", ErrInvalidConfig, dimension)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.Provider {
	case "chromem", "":
		c := cfg.Chromem
		c.VectorSize = dimension
		s, err := NewChromemStore(c, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "qdrant":
		q := cfg.Qdrant
		q.VectorSize = uint64(dimension)
		s, err := NewQdrantStore(q, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: unknown vector store provider %q", ErrInvalidConfig, cfg.Provider)
	}
}
