package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var qdrantTracer = otel.Tracer("playbook.vectorstore.qdrant")

// Payload keys reserved by the store.
const (
	payloadContent = "content"
	payloadID      = "record_id"
)

// ErrCircuitOpen is returned while the circuit breaker rejects calls.
var ErrCircuitOpen = errors.New("qdrant circuit breaker open")

// QdrantConfig holds configuration for the Qdrant gRPC client.
type QdrantConfig struct {
	// Host defaults to "localhost".
	Host string

	// Port is the gRPC port (6334), not the REST port.
	Port int

	// Collection defaults to "brand_playbooks".
	Collection string

	VectorSize uint64
	UseTLS     bool
	APIKey     string

	// MaxRetries bounds retries of transient gRPC failures inside a single
	// store call. Default: 3.
	MaxRetries int

	// RetryBackoff is the initial backoff, doubled per retry. Default: 1s.
	RetryBackoff time.Duration

	// MaxMessageSize is the gRPC message cap in bytes. Default: 50MB.
	MaxMessageSize int

	// CircuitBreakerThreshold is the number of consecutive failures that
	// opens the circuit for CircuitBreakerCooldown. Default: 5.
	CircuitBreakerThreshold int
	CircuitBreakerCooldown  time.Duration
}

// ApplyDefaults sets default values for unset fields.
func (c *QdrantConfig) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.Collection == "" {
		c.Collection = "brand_playbooks"
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = time.Second
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 50 * 1024 * 1024
	}
	if c.CircuitBreakerThreshold == 0 {
		c.CircuitBreakerThreshold = 5
	}
	if c.CircuitBreakerCooldown == 0 {
		c.CircuitBreakerCooldown = 30 * time.Second
	}
}

// Validate validates the configuration.
func (c QdrantConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host required", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port: %d", ErrInvalidConfig, c.Port)
	}
	if c.VectorSize == 0 {
		return fmt.Errorf("%w: vector size required", ErrInvalidConfig)
	}
	return ValidateCollectionName(c.Collection)
}

// IsTransientError reports whether a gRPC error is worth retrying.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	switch st.Code() {
	case grpccodes.Unavailable, grpccodes.DeadlineExceeded, grpccodes.Aborted, grpccodes.ResourceExhausted:
		return true
	default:
		return false
	}
}

// QdrantStore implements Store over Qdrant's native gRPC API with cosine
// distance. Point IDs must be UUIDs.
type QdrantStore struct {
	client *qdrant.Client
	config QdrantConfig
	logger *zap.Logger

	breaker struct {
		mu       sync.Mutex
		failures int
		lastFail time.Time
	}
}

// NewQdrantStore connects, health-checks and ensures the collection exists.
func NewQdrantStore(config QdrantConfig, logger *zap.Logger) (*QdrantStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if !config.UseTLS {
		logger.Warn("qdrant gRPC using plaintext (TLS disabled)", zap.String("host", config.Host))
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   config.Host,
		Port:   config.Port,
		APIKey: config.APIKey,
		UseTLS: config.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(config.MaxMessageSize),
				grpc.MaxCallSendMsgSize(config.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	s := &QdrantStore{client: client, config: config, logger: logger}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.Health(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	if err := s.ensureCollection(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}

	logger.Info("qdrant store initialized",
		zap.String("host", config.Host),
		zap.Int("port", config.Port),
		zap.String("collection", config.Collection),
		zap.Uint64("vector_size", config.VectorSize),
	)
	return s, nil
}

func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	var exists bool
	err := s.retryOperation(ctx, "collection_exists", func() error {
		ok, err := s.client.CollectionExists(ctx, s.config.Collection)
		exists = ok
		return err
	})
	if err != nil {
		return fmt.Errorf("checking collection %s: %w", s.config.Collection, err)
	}
	if exists {
		return nil
	}

	err = s.retryOperation(ctx, "create_collection", func() error {
		return s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: s.config.Collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     s.config.VectorSize,
				Distance: qdrant.Distance_Cosine,
			}),
		})
	})
	if err != nil {
		return fmt.Errorf("creating collection %s: %w", s.config.Collection, err)
	}

	// Filtered search and delete go through document_id.
	_, err = s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: s.config.Collection,
		FieldName:      "document_id",
		FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
	})
	if err != nil {
		s.logger.Warn("failed to create document_id payload index", zap.Error(err))
	}
	return nil
}

// Upsert writes records as points with a string payload.
func (s *QdrantStore) Upsert(ctx context.Context, records []Record) error {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.Upsert")
	defer span.End()
	span.SetAttributes(attribute.Int("record_count", len(records)))

	if err := validateRecords(records, int(s.config.VectorSize)); err != nil {
		span.RecordError(err)
		return err
	}

	points := make([]*qdrant.PointStruct, len(records))
	for i, r := range records {
		if _, err := uuid.Parse(r.ID); err != nil {
			return fmt.Errorf("%w: record id %q is not a UUID", ErrInvalidConfig, r.ID)
		}
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(r.ID),
			Vectors: qdrant.NewVectors(r.Embedding...),
			Payload: toPayload(r),
		}
	}

	err := s.retryOperation(ctx, "upsert", func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.config.Collection,
			Wait:           qdrant.PtrOf(true),
			Points:         points,
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("upserting points to collection %s: %w", s.config.Collection, err)
	}
	span.SetStatus(codes.Ok, "success")
	return nil
}

// Query returns up to k nearest points. Qdrant reports cosine similarity,
// converted here to distance.
func (s *QdrantStore) Query(ctx context.Context, embedding []float32, k int, where map[string]string) ([]Match, error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.Query")
	defer span.End()
	span.SetAttributes(attribute.Int("k", k), attribute.Int("filter_count", len(where)))

	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if len(embedding) != int(s.config.VectorSize) {
		return nil, fmt.Errorf("%w: query has %d values, want %d", ErrDimensionMismatch, len(embedding), s.config.VectorSize)
	}

	var points []*qdrant.ScoredPoint
	err := s.retryOperation(ctx, "query", func() error {
		res, err := s.client.Query(ctx, &qdrant.QueryPoints{
			CollectionName: s.config.Collection,
			Query:          qdrant.NewQuery(embedding...),
			Limit:          qdrant.PtrOf(uint64(k)),
			WithPayload:    qdrant.NewWithPayload(true),
			Filter:         buildFilter(where),
		})
		points = res
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying collection %s: %w", s.config.Collection, err)
	}

	matches := make([]Match, 0, len(points))
	for _, p := range points {
		matches = append(matches, fromScoredPoint(p))
	}
	span.SetAttributes(attribute.Int("results_count", len(matches)))
	span.SetStatus(codes.Ok, "success")
	return matches, nil
}

// Delete removes every point matching where.
func (s *QdrantStore) Delete(ctx context.Context, where map[string]string) error {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.Delete")
	defer span.End()

	filter := buildFilter(where)
	if filter == nil {
		return fmt.Errorf("%w: delete requires a filter", ErrInvalidConfig)
	}

	err := s.retryOperation(ctx, "delete", func() error {
		_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
			CollectionName: s.config.Collection,
			Wait:           qdrant.PtrOf(true),
			Points:         qdrant.NewPointsSelectorFilter(filter),
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("deleting from collection %s: %w", s.config.Collection, err)
	}
	span.SetStatus(codes.Ok, "success")
	return nil
}

// Count returns the exact number of points in the collection.
func (s *QdrantStore) Count(ctx context.Context) (int, error) {
	var n uint64
	err := s.retryOperation(ctx, "count", func() error {
		c, err := s.client.Count(ctx, &qdrant.CountPoints{
			CollectionName: s.config.Collection,
			Exact:          qdrant.PtrOf(true),
		})
		n = c
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("counting collection %s: %w", s.config.Collection, err)
	}
	return int(n), nil
}

// Health performs a Qdrant health check.
func (s *QdrantStore) Health(ctx context.Context) error {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.Health")
	defer span.End()

	if _, err := s.client.HealthCheck(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%w: health check: %v", ErrConnectionFailed, err)
	}
	span.SetStatus(codes.Ok, "healthy")
	return nil
}

// Close closes the gRPC connection.
func (s *QdrantStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// retryOperation retries transient gRPC failures with exponential backoff.
func (s *QdrantStore) retryOperation(ctx context.Context, name string, op func() error) error {
	if s.isCircuitOpen() {
		return fmt.Errorf("%s: %w", name, ErrCircuitOpen)
	}

	backoff := s.config.RetryBackoff
	for attempt := 0; ; attempt++ {
		err := op()
		if err == nil {
			s.resetCircuitBreaker()
			return nil
		}
		if !IsTransientError(err) {
			return fmt.Errorf("%s failed (permanent): %w", name, err)
		}
		s.recordFailure()

		if attempt == s.config.MaxRetries || s.isCircuitOpen() {
			return fmt.Errorf("%s failed after %d retries: %w", name, attempt, err)
		}

		s.logger.Debug("retrying qdrant operation",
			zap.String("operation", name),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s canceled: %w", name, ctx.Err())
		case <-time.After(backoff):
			backoff *= 2
		}
	}
}

func (s *QdrantStore) recordFailure() {
	s.breaker.mu.Lock()
	defer s.breaker.mu.Unlock()
	s.breaker.failures++
	s.breaker.lastFail = time.Now()
}

func (s *QdrantStore) resetCircuitBreaker() {
	s.breaker.mu.Lock()
	defer s.breaker.mu.Unlock()
	s.breaker.failures = 0
}

func (s *QdrantStore) isCircuitOpen() bool {
	s.breaker.mu.Lock()
	defer s.breaker.mu.Unlock()

	if s.breaker.failures < s.config.CircuitBreakerThreshold {
		return false
	}
	if time.Since(s.breaker.lastFail) > s.config.CircuitBreakerCooldown {
		s.breaker.failures = 0
		return false
	}
	return true
}

func buildFilter(where map[string]string) *qdrant.Filter {
	if len(where) == 0 {
		return nil
	}
	conditions := make([]*qdrant.Condition, 0, len(where))
	for k, v := range where {
		conditions = append(conditions, qdrant.NewMatch(k, v))
	}
	return &qdrant.Filter{Must: conditions}
}

func toPayload(r Record) map[string]*qdrant.Value {
	payload := make(map[string]*qdrant.Value, len(r.Metadata)+2)
	for k, v := range r.Metadata {
		payload[k] = qdrant.NewValueString(v)
	}
	payload[payloadContent] = qdrant.NewValueString(r.Content)
	payload[payloadID] = qdrant.NewValueString(r.ID)
	return payload
}

func fromScoredPoint(p *qdrant.ScoredPoint) Match {
	m := Match{
		Metadata: make(map[string]string, len(p.GetPayload())),
		Distance: 1 - p.GetScore(),
	}
	if id := p.GetId(); id != nil {
		m.ID = id.GetUuid()
	}
	for k, v := range p.GetPayload() {
		s, ok := v.GetKind().(*qdrant.Value_StringValue)
		if !ok {
			continue
		}
		switch k {
		case payloadContent:
			m.Content = s.StringValue
		case payloadID:
			m.ID = s.StringValue
		default:
			m.Metadata[k] = s.StringValue
		}
	}
	return m
}

var _ Store = (*QdrantStore)(nil)
