package metadata

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(Config{Path: filepath.Join(t.TempDir(), "metadata.db")}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func record(id string, created time.Time) Record {
	return Record{
		ID:         id,
		Filename:   id + ".pdf",
		FileType:   "pdf",
		FileSize:   2048,
		UploadedBy: "anonymous",
		CreatedAt:  created,
	}
}

func TestSQLiteStore_PutGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.Put(ctx, record("doc-1", created)))

	got, err := s.Get(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "doc-1.pdf", got.Filename)
	assert.Equal(t, int64(2048), got.FileSize)
	assert.Equal(t, StatusIngesting, got.Status)
	assert.True(t, created.Equal(got.CreatedAt))

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_PutValidation(t *testing.T) {
	s := newTestStore(t)

	err := s.Put(context.Background(), Record{ID: "x"})
	assert.ErrorIs(t, err, ErrInvalidRecord)
}

func TestSQLiteStore_ListOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	// Same timestamp for c and d: insertion order breaks the tie.
	require.NoError(t, s.Put(ctx, record("b", base.Add(time.Hour))))
	require.NoError(t, s.Put(ctx, record("a", base)))
	require.NoError(t, s.Put(ctx, record("c", base.Add(2*time.Hour))))
	require.NoError(t, s.Put(ctx, record("d", base.Add(2*time.Hour))))

	all, err := s.List(ctx, 0, 10)
	require.NoError(t, err)
	ids := make([]string, len(all))
	for i, r := range all {
		ids[i] = r.ID
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids)

	page, err := s.List(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "c", page[0].ID)

	empty, err := s.List(ctx, 10, 2)
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = s.List(ctx, 0, 0)
	assert.Error(t, err)
}

func TestSQLiteStore_SetStatusAndCountChunks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := range 3 {
		require.NoError(t, s.Put(ctx, record(fmt.Sprintf("doc-%d", i), time.Now())))
	}
	require.NoError(t, s.SetStatus(ctx, "doc-0", StatusReady, 12))
	require.NoError(t, s.SetStatus(ctx, "doc-1", StatusReady, 8))
	require.NoError(t, s.SetStatus(ctx, "doc-2", StatusFailed, 5))

	n, err := s.CountChunks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, n)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	ready, err := s.CountStatus(ctx, StatusReady)
	require.NoError(t, err)
	assert.Equal(t, 2, ready)
	failed, err := s.CountStatus(ctx, StatusFailed)
	require.NoError(t, err)
	assert.Equal(t, 1, failed)
	ingesting, err := s.CountStatus(ctx, StatusIngesting)
	require.NoError(t, err)
	assert.Zero(t, ingesting)

	err = s.SetStatus(ctx, "missing", StatusReady, 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_DeleteIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, record("doc-1", time.Now())))
	require.NoError(t, s.Delete(ctx, "doc-1"))
	require.NoError(t, s.Delete(ctx, "doc-1"))

	_, err := s.Get(ctx, "doc-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "metadata.db")
	ctx := context.Background()

	s, err := Open(Config{Path: path}, nil)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, record("doc-1", time.Now())))
	require.NoError(t, s.Close())

	// Migrations are not re-applied.
	s, err = Open(Config{Path: path}, nil)
	require.NoError(t, err)
	defer s.Close()

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestOpen_InMemory(t *testing.T) {
	s, err := Open(Config{Path: ":memory:"}, nil)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Put(context.Background(), record("doc-1", time.Now())))
	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
