package embeddings

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider returns one-hot-ish vectors and can fail scripted calls.
type fakeProvider struct {
	mu        sync.Mutex
	calls     [][]string
	failures  []error
	dimension int
	short     bool
}

func (f *fakeProvider) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, texts)
	if len(f.failures) > 0 {
		err := f.failures[0]
		f.failures = f.failures[1:]
		if err != nil {
			return nil, err
		}
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	if f.short {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (f *fakeProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	v, err := f.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return v[0], nil
}

func (f *fakeProvider) Dimension() int { return f.dimension }
func (f *fakeProvider) Model() string  { return "fake-model" }
func (f *fakeProvider) Close() error   { return nil }

func fastConfig() ClientConfig {
	return ClientConfig{
		BatchSize:   DefaultBatchSize,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  5 * time.Millisecond,
		RateLimit:   1000,
		Burst:       100,
	}
}

func TestClient_BatchesInOrder(t *testing.T) {
	p := &fakeProvider{dimension: 2}
	c := NewClient(p, fastConfig(), nil)

	texts := make([]string, 250)
	for i := range texts {
		texts[i] = fmt.Sprintf("%0*d", i%7+1, i)
	}

	vectors, err := c.EmbedDocuments(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vectors, 250)

	require.Len(t, p.calls, 3)
	assert.Len(t, p.calls[0], 100)
	assert.Len(t, p.calls[1], 100)
	assert.Len(t, p.calls[2], 50)

	for i, v := range vectors {
		assert.Equal(t, float32(len(texts[i])), v[0], "vector %d out of order", i)
	}
}

func TestClient_RetriesTransient(t *testing.T) {
	p := &fakeProvider{failures: []error{
		&StatusError{Code: 429, Body: "slow down"},
		&StatusError{Code: 503, Body: "unavailable"},
	}}
	c := NewClient(p, fastConfig(), nil)

	vectors, err := c.EmbedDocuments(context.Background(), []string{"a", "bb"})
	require.NoError(t, err)
	assert.Len(t, vectors, 2)
	assert.Len(t, p.calls, 3)
}

func TestClient_GivesUpAfterMaxAttempts(t *testing.T) {
	transient := &StatusError{Code: 500}
	p := &fakeProvider{failures: []error{transient, transient, transient, transient}}
	c := NewClient(p, fastConfig(), nil)

	_, err := c.EmbedDocuments(context.Background(), []string{"a"})
	require.Error(t, err)
	var se *StatusError
	assert.ErrorAs(t, err, &se)
	assert.Len(t, p.calls, DefaultMaxAttempts)
}

func TestClient_NoRetryOnPermanentError(t *testing.T) {
	permanent := fmt.Errorf("%w: %w", ErrEmbeddingFailed, &StatusError{Code: 401, Body: "bad key"})
	p := &fakeProvider{failures: []error{permanent}}
	c := NewClient(p, fastConfig(), nil)

	_, err := c.EmbedDocuments(context.Background(), []string{"a"})
	require.ErrorIs(t, err, ErrEmbeddingFailed)
	assert.Len(t, p.calls, 1)
}

func TestClient_FailedSecondBatchFailsCall(t *testing.T) {
	cfg := fastConfig()
	cfg.BatchSize = 2
	cfg.MaxAttempts = 1
	p := &fakeProvider{failures: []error{nil, errors.New("boom")}}
	c := NewClient(p, cfg, nil)

	_, err := c.EmbedDocuments(context.Background(), []string{"a", "b", "c", "d", "e"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch 2-4 of 5")
}

func TestClient_CountMismatch(t *testing.T) {
	p := &fakeProvider{short: true}
	c := NewClient(p, fastConfig(), nil)

	_, err := c.EmbedDocuments(context.Background(), []string{"a", "b"})
	assert.ErrorIs(t, err, ErrEmbeddingFailed)
}

func TestClient_EmptyInput(t *testing.T) {
	c := NewClient(&fakeProvider{}, fastConfig(), nil)

	_, err := c.EmbedDocuments(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyInput)
	_, err = c.EmbedQuery(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestClient_CancelledDuringBackoff(t *testing.T) {
	cfg := fastConfig()
	cfg.BaseBackoff = time.Hour
	cfg.MaxBackoff = time.Hour
	p := &fakeProvider{failures: []error{&StatusError{Code: 503}}}
	c := NewClient(p, cfg, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.EmbedQuery(ctx, "hello")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_Backoff(t *testing.T) {
	c := NewClient(&fakeProvider{}, ClientConfig{BaseBackoff: time.Second, MaxBackoff: 3 * time.Second}, nil)
	assert.Equal(t, time.Second, c.backoff(2))
	assert.Equal(t, 2*time.Second, c.backoff(3))
	assert.Equal(t, 3*time.Second, c.backoff(4))
}

func TestClient_Delegates(t *testing.T) {
	c := NewClient(&fakeProvider{dimension: 1536}, ClientConfig{}, nil)
	assert.Equal(t, 1536, c.Dimension())
	assert.Equal(t, "fake-model", c.Model())
	assert.NoError(t, c.Close())
}
