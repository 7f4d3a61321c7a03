// Package reranker reorders retrieved passages by blending their vector
// similarity with how many of the question's terms they contain.
package reranker

import (
	"context"
	"errors"
)

// ErrNilContext is returned when a nil context is passed to Rerank.
var ErrNilContext = errors.New("context cannot be nil")

// Candidate is a passage as returned by similarity search.
type Candidate struct {
	ID      string
	Content string
	// Score is the similarity score in [0,1].
	Score float64
}

// Ranked is a candidate with its reranking scores.
type Ranked struct {
	Candidate
	// Overlap is the fraction of query terms present in the content.
	Overlap float64
	// Combined is the blended score results are ordered by.
	Combined float64
	// OriginalRank is the 0-based position in the input.
	OriginalRank int
}

// Reranker reorders candidates for a query and returns at most topK of
// them, best first. A topK of zero keeps every candidate.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []Candidate, topK int) ([]Ranked, error)
}
