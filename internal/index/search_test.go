package index

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tom2tomtomtom/Playbook/internal/chunker"
	"github.com/tom2tomtomtom/Playbook/internal/vectorstore"
)

func TestSearch_ThresholdAndTopK(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.idx.AddDocument(ctx, "doc-1", chunks(1, guideline...), info("a.pdf"))
	require.NoError(t, err)
	_, err = f.idx.AddDocument(ctx, "doc-2", chunks(3,
		"logo clear space rules",
		"logo minimum size",
		"logo colour variants",
		"photo style guide",
	), info("b.pdf"))
	require.NoError(t, err)

	thresholds := []float64{0, 0.3, 0.6, 0.7, 0.95, 1}
	for _, threshold := range thresholds {
		for _, k := range []int{1, 2, 5, 20} {
			results, err := f.idx.Search(ctx, SearchRequest{Query: "logo", TopK: k, ScoreThreshold: threshold})
			require.NoError(t, err)
			assert.LessOrEqual(t, len(results), k)
			for i, r := range results {
				assert.GreaterOrEqual(t, r.Score, threshold)
				assert.LessOrEqual(t, r.Score, 1.0)
				if i > 0 {
					assert.GreaterOrEqual(t, results[i-1].Score, r.Score)
				}
			}
		}
	}
}

func TestSearch_BestMatchFirst(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.idx.AddDocument(ctx, "doc-1", chunks(4, guideline...), info("a.pdf"))
	require.NoError(t, err)

	results, err := f.idx.Search(ctx, NewSearchRequest("What is our mission?"))
	require.NoError(t, err)
	require.NotEmpty(t, results)

	top := results[0]
	assert.Equal(t, "Our mission is to make travel simple", top.Content)
	assert.InDelta(t, 1.0, top.Score, 1e-5)
	assert.Equal(t, 4, top.SourceUnit)
	assert.Equal(t, chunker.TypeSlideContent, top.Type)
	assert.Equal(t, "doc-1", top.DocumentID)
}

func TestSearch_NothingAboveThreshold(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.idx.AddDocument(ctx, "doc-1", chunks(1, guideline...), info("a.pdf"))
	require.NoError(t, err)

	results, err := f.idx.Search(ctx, NewSearchRequest("grid systems"))
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestSearch_EmptyCorpus(t *testing.T) {
	f := newFixture(t, nil)

	results, err := f.idx.Search(context.Background(), NewSearchRequest("logo"))
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_DocumentFilter(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.idx.AddDocument(ctx, "doc-1", chunks(1, "logo on dark backgrounds"), info("a.pdf"))
	require.NoError(t, err)
	_, err = f.idx.AddDocument(ctx, "doc-2", chunks(1, "logo on light backgrounds"), info("b.pdf"))
	require.NoError(t, err)

	results, err := f.idx.Search(ctx, SearchRequest{Query: "logo", DocumentID: "doc-2", TopK: 5, ScoreThreshold: 0.5})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc-2", results[0].DocumentID)
}

func TestDeleteDocument_LeavesNoTraces(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.idx.AddDocument(ctx, "doc-1", chunks(1, guideline...), info("a.pdf"))
	require.NoError(t, err)
	_, err = f.idx.AddDocument(ctx, "doc-2", chunks(1, "logo usage"), info("b.pdf"))
	require.NoError(t, err)

	require.NoError(t, f.idx.DeleteDocument(ctx, "doc-1"))
	require.NoError(t, f.idx.DeleteDocument(ctx, "doc-1"))
	require.NoError(t, f.idx.DeleteDocument(ctx, "never-existed"))

	results, err := f.idx.Search(ctx, SearchRequest{Query: "logo", TopK: 10})
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, "doc-1", r.DocumentID)
	}

	filtered, err := f.idx.Search(ctx, SearchRequest{Query: "mission", DocumentID: "doc-1", TopK: 10})
	require.NoError(t, err)
	assert.Empty(t, filtered)

	list, err := f.idx.ListDocuments(ctx, 1, 100)
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "doc-2", list.Items[0].ID)
}

func TestSearch_Failures(t *testing.T) {
	t.Run("embedding", func(t *testing.T) {
		f := newFixture(t, nil)
		f.embedder.err = errors.New("rate limited")

		_, err := f.idx.Search(context.Background(), NewSearchRequest("logo"))
		assert.ErrorIs(t, err, ErrRetrieval)
	})

	t.Run("backend", func(t *testing.T) {
		f := newFixture(t, func(s vectorstore.Store) vectorstore.Store {
			return &flakyStore{Store: s, upsertsBeforeFail: -1, queryErr: errors.New("connection refused")}
		})

		_, err := f.idx.Search(context.Background(), NewSearchRequest("logo"))
		assert.ErrorIs(t, err, ErrRetrieval)
	})
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		distance float32
		want     float64
	}{
		{0, 1},
		{0.25, 0.75},
		{1, 0},
		{1.6, 0},
		{-0.1, 1},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, Similarity(tt.distance), 1e-6, "distance %v", tt.distance)
	}
}
