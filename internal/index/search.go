package index

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/tom2tomtomtom/Playbook/internal/chunker"
	"github.com/tom2tomtomtom/Playbook/internal/vectorstore"
)

// SearchRequest describes a similarity search.
type SearchRequest struct {
	Query string

	// DocumentID restricts the search to one document when set.
	DocumentID string

	// TopK bounds the number of results. Zero means DefaultTopK.
	TopK int

	// ScoreThreshold is the minimum similarity kept, in [0,1]. It is used
	// as given, so zero keeps everything.
	ScoreThreshold float64
}

// NewSearchRequest returns a request with the default topK and threshold.
func NewSearchRequest(query string) SearchRequest {
	return SearchRequest{Query: query, TopK: DefaultTopK, ScoreThreshold: DefaultScoreThreshold}
}

// SearchResult is a passage scored against one query.
type SearchResult struct {
	ID         string            `json:"id"`
	DocumentID string            `json:"document_id"`
	Content    string            `json:"content"`
	SourceUnit int               `json:"page_number"`
	Type       chunker.Type      `json:"chunk_type"`
	Score      float64           `json:"score"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Search embeds the query once, over-fetches 2×TopK candidates, and
// returns at most TopK results scoring at least ScoreThreshold, best
// first. Nothing clearing the threshold yields an empty slice.
func (x *Index) Search(ctx context.Context, req SearchRequest) ([]SearchResult, error) {
	ctx, span := tracer.Start(ctx, "Index.Search")
	defer span.End()

	if req.TopK <= 0 {
		req.TopK = DefaultTopK
	}
	span.SetAttributes(
		attribute.Int("top_k", req.TopK),
		attribute.Float64("score_threshold", req.ScoreThreshold),
		attribute.String("document.id", req.DocumentID),
	)

	vec, err := x.embedder.EmbedQuery(ctx, req.Query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: embedding query: %w", ErrRetrieval, err)
	}

	var where map[string]string
	if req.DocumentID != "" {
		where = map[string]string{KeyDocumentID: req.DocumentID}
	}

	matches, err := x.store.Query(ctx, vec, 2*req.TopK, where)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: querying vector store: %w", ErrRetrieval, err)
	}

	results := make([]SearchResult, 0, len(matches))
	for _, m := range matches {
		score := Similarity(m.Distance)
		if score < req.ScoreThreshold {
			continue
		}
		results = append(results, toResult(m, score))
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > req.TopK {
		results = results[:req.TopK]
	}

	span.SetAttributes(
		attribute.Int("candidates", len(matches)),
		attribute.Int("results", len(results)),
	)
	span.SetStatus(codes.Ok, "success")
	return results, nil
}

// Similarity converts cosine distance to a score clamped to [0,1].
func Similarity(distance float32) float64 {
	s := 1 - float64(distance)
	switch {
	case s < 0:
		return 0
	case s > 1:
		return 1
	default:
		return s
	}
}

func toResult(m vectorstore.Match, score float64) SearchResult {
	unit, err := strconv.Atoi(m.Metadata[KeySourceUnit])
	if err != nil || unit < 1 {
		unit = 1
	}
	return SearchResult{
		ID:         m.ID,
		DocumentID: m.Metadata[KeyDocumentID],
		Content:    m.Content,
		SourceUnit: unit,
		Type:       chunker.Type(m.Metadata[KeyChunkType]),
		Score:      score,
		Metadata:   m.Metadata,
	}
}
