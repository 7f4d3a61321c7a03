package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestChromem(t *testing.T, path string) *ChromemStore {
	t.Helper()
	store, err := NewChromemStore(ChromemConfig{Path: path, VectorSize: 3}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seed(t *testing.T, s Store) {
	t.Helper()
	err := s.Upsert(context.Background(), []Record{
		{ID: "a1", Content: "logo usage", Embedding: []float32{1, 0, 0}, Metadata: map[string]string{"document_id": "a"}},
		{ID: "a2", Content: "colour palette", Embedding: []float32{0, 1, 0}, Metadata: map[string]string{"document_id": "a"}},
		{ID: "b1", Content: "tone of voice", Embedding: []float32{0.9, 0.1, 0}, Metadata: map[string]string{"document_id": "b"}},
	})
	require.NoError(t, err)
}

func TestChromemStore_QueryOrdersByDistance(t *testing.T) {
	s := newTestChromem(t, "")
	seed(t, s)

	matches, err := s.Query(context.Background(), []float32{1, 0, 0}, 3, nil)
	require.NoError(t, err)
	require.Len(t, matches, 3)

	assert.Equal(t, "a1", matches[0].ID)
	assert.Equal(t, "b1", matches[1].ID)
	assert.Equal(t, "a2", matches[2].ID)
	assert.InDelta(t, 0, matches[0].Distance, 1e-5)
	assert.InDelta(t, 1, matches[2].Distance, 1e-5)
	assert.Equal(t, "logo usage", matches[0].Content)
	assert.Equal(t, "a", matches[0].Metadata["document_id"])
}

func TestChromemStore_QueryCapsK(t *testing.T) {
	s := newTestChromem(t, "")
	seed(t, s)

	matches, err := s.Query(context.Background(), []float32{1, 0, 0}, 50, nil)
	require.NoError(t, err)
	assert.Len(t, matches, 3)
}

func TestChromemStore_QueryFilter(t *testing.T) {
	s := newTestChromem(t, "")
	seed(t, s)

	matches, err := s.Query(context.Background(), []float32{1, 0, 0}, 3, map[string]string{"document_id": "b"})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "b1", matches[0].ID)

	matches, err = s.Query(context.Background(), []float32{1, 0, 0}, 3, map[string]string{"document_id": "missing"})
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestChromemStore_QueryEmpty(t *testing.T) {
	s := newTestChromem(t, "")

	matches, err := s.Query(context.Background(), []float32{1, 0, 0}, 5, nil)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestChromemStore_DimensionMismatch(t *testing.T) {
	s := newTestChromem(t, "")

	err := s.Upsert(context.Background(), []Record{{ID: "x", Embedding: []float32{1, 0}}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = s.Query(context.Background(), []float32{1}, 1, nil)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestChromemStore_UpsertValidation(t *testing.T) {
	s := newTestChromem(t, "")

	assert.ErrorIs(t, s.Upsert(context.Background(), nil), ErrEmptyRecords)
	assert.ErrorIs(t, s.Upsert(context.Background(), []Record{{Embedding: []float32{1, 0, 0}}}), ErrInvalidConfig)
}

func TestChromemStore_UpsertReplaces(t *testing.T) {
	s := newTestChromem(t, "")
	seed(t, s)

	err := s.Upsert(context.Background(), []Record{
		{ID: "a1", Content: "logo usage v2", Embedding: []float32{1, 0, 0}, Metadata: map[string]string{"document_id": "a"}},
	})
	require.NoError(t, err)

	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	matches, err := s.Query(context.Background(), []float32{1, 0, 0}, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, "logo usage v2", matches[0].Content)
}

func TestChromemStore_Delete(t *testing.T) {
	s := newTestChromem(t, "")
	seed(t, s)
	ctx := context.Background()

	require.NoError(t, s.Delete(ctx, map[string]string{"document_id": "a"}))
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Deleting again matches nothing.
	require.NoError(t, s.Delete(ctx, map[string]string{"document_id": "a"}))

	assert.ErrorIs(t, s.Delete(ctx, nil), ErrInvalidConfig)
}

func TestChromemStore_Persistence(t *testing.T) {
	dir := t.TempDir()

	s := newTestChromem(t, dir)
	seed(t, s)
	require.NoError(t, s.Close())

	reopened := newTestChromem(t, dir)
	n, err := reopened.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestNewChromemStore_InvalidConfig(t *testing.T) {
	_, err := NewChromemStore(ChromemConfig{VectorSize: 0}, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewChromemStore(ChromemConfig{VectorSize: 3, Collection: "Bad-Name"}, nil)
	assert.ErrorIs(t, err, ErrInvalidCollectionName)
}

func TestNewStore(t *testing.T) {
	s, err := NewStore(Config{}, 3, zap.NewNop())
	require.NoError(t, err)
	_, ok := s.(*ChromemStore)
	assert.True(t, ok)

	_, err = NewStore(Config{}, 0, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewStore(Config{Provider: "pinecone"}, 3, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestValidateCollectionName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"default", "brand_playbooks", false},
		{"digits", "pb_2024", false},
		{"empty", "", true},
		{"uppercase", "Brand", true},
		{"dash", "brand-playbooks", true},
		{"too long", string(make([]byte, 65)), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCollectionName(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidCollectionName)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
