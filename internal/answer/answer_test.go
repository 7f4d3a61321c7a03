package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tom2tomtomtom/Playbook/internal/chunker"
	"github.com/tom2tomtomtom/Playbook/internal/index"
	"github.com/tom2tomtomtom/Playbook/internal/llm"
	"github.com/tom2tomtomtom/Playbook/internal/retriever"
)

type fakeSearcher struct {
	results []index.SearchResult
	err     error
	last    retriever.Request
}

func (f *fakeSearcher) Search(_ context.Context, req retriever.Request) ([]index.SearchResult, error) {
	f.last = req
	return f.results, f.err
}

// scriptedProvider returns errs in order, then resp.
type scriptedProvider struct {
	mu    sync.Mutex
	errs  []error
	resp  llm.Response
	calls int
	reqs  []llm.Request
}

func (p *scriptedProvider) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.reqs = append(p.reqs, req)
	if len(p.errs) > 0 {
		err := p.errs[0]
		p.errs = p.errs[1:]
		return nil, err
	}
	r := p.resp
	return &r, nil
}

func (p *scriptedProvider) Model() string { return "gpt-4-turbo-preview" }
func (p *scriptedProvider) Close() error  { return nil }

func testConfig() Config {
	c := DefaultConfig()
	c.BaseBackoff = time.Millisecond
	c.MaxBackoff = 2 * time.Millisecond
	return c
}

func newGenerator(t *testing.T, s Searcher, p llm.Provider) *Generator {
	t.Helper()
	g, err := New(s, p, nil, testConfig(), nil)
	require.NoError(t, err)
	return g
}

func passages() []index.SearchResult {
	return []index.SearchResult{
		{Content: "The primary logo sits top left.", SourceUnit: 3, Type: chunker.TypeSlideContent, Score: 0.91234},
		{Content: "Logo", SourceUnit: 3, Type: chunker.TypeTitle, Score: 0.85},
		{Content: "Minimum logo size is 24px.", SourceUnit: 5, Type: chunker.TypeSlideContent, Score: 0.7777},
		{Content: "Clear space equals the cap height.", SourceUnit: 1, Type: chunker.TypePDFText, Score: 0.65},
	}
}

var completion = `Place the primary logo top left and keep clear space equal to the cap height.

**Follow-up questions:**
- What is the minimum logo size?
- Can the logo be recoloured?
- Where should the logo go on slides?
- One too many?`

func TestAnswer_EmptyCorpus(t *testing.T) {
	provider := &scriptedProvider{}
	g := newGenerator(t, &fakeSearcher{}, provider)

	env, err := g.Answer(context.Background(), Question{Text: "What colour is the logo?"})
	require.NoError(t, err)

	assert.Equal(t, NoInformationAnswer, env.Answer)
	assert.Zero(t, env.Confidence)
	assert.Zero(t, env.TokensUsed)
	assert.Empty(t, env.Passages)
	assert.Empty(t, env.FollowUps)
	assert.Zero(t, provider.calls)
	assert.Zero(t, g.Usage().Snapshot().Requests)
}

func TestAnswer(t *testing.T) {
	searcher := &fakeSearcher{results: passages()}
	provider := &scriptedProvider{resp: llm.Response{Text: completion, PromptTokens: 900, CompletionTokens: 100}}
	g := newGenerator(t, searcher, provider)

	env, err := g.Answer(context.Background(), Question{
		Text:       "Where does the logo go?",
		DocumentID: "doc-1",
		APIKey:     "sk-user",
	})
	require.NoError(t, err)

	assert.Equal(t, "Place the primary logo top left and keep clear space equal to the cap height.", env.Answer)
	assert.Equal(t, []string{
		"What is the minimum logo size?",
		"Can the logo be recoloured?",
		"Where should the logo go on slides?",
	}, env.FollowUps)
	assert.Equal(t, 1000, env.TokensUsed)

	require.Len(t, env.Passages, 3)
	assert.Equal(t, 0.912, env.Passages[0].Score)
	assert.Equal(t, 0.778, env.Passages[2].Score)
	assert.Equal(t, 3, env.Passages[0].SourceUnit)

	assert.GreaterOrEqual(t, env.Confidence, 0.0)
	assert.LessOrEqual(t, env.Confidence, 1.0)

	// Retrieval used the generator defaults.
	assert.Equal(t, 7, searcher.last.TopK)
	require.NotNil(t, searcher.last.Threshold)
	assert.Equal(t, 0.6, *searcher.last.Threshold)
	assert.Equal(t, "doc-1", searcher.last.DocumentID)

	require.Len(t, provider.reqs, 1)
	req := provider.reqs[0]
	assert.Equal(t, 800, req.MaxTokens)
	assert.Equal(t, 0.3, req.Temperature)
	assert.Equal(t, "sk-user", req.APIKey)
	assert.Contains(t, req.Messages[0].Content, "Where does the logo go?")
	assert.Contains(t, req.Messages[0].Content, "--- Page 1 ---")

	usage := g.Usage().Snapshot()
	assert.Equal(t, int64(1), usage.Requests)
	assert.Equal(t, int64(1000), usage.TotalTokens)
	// 900 × $0.01/1K + 100 × $0.03/1K
	assert.InDelta(t, 0.012, usage.EstimatedCostUSD, 1e-9)
}

func TestAnswer_History(t *testing.T) {
	provider := &scriptedProvider{resp: llm.Response{Text: "ok"}}
	g := newGenerator(t, &fakeSearcher{results: passages()}, provider)

	var history []llm.Message
	for i := range 6 {
		role := llm.RoleUser
		if i%2 == 1 {
			role = llm.RoleAssistant
		}
		history = append(history, llm.Message{Role: role, Content: fmt.Sprintf("turn %d", i)})
	}

	_, err := g.Answer(context.Background(), Question{Text: "And the font?", History: history})
	require.NoError(t, err)

	msgs := provider.reqs[0].Messages
	require.Len(t, msgs, 5)
	assert.Equal(t, "turn 2", msgs[0].Content)
	assert.Equal(t, "turn 5", msgs[3].Content)
	assert.Equal(t, llm.RoleUser, msgs[4].Role)
	assert.Contains(t, msgs[4].Content, "And the font?")
}

func TestAnswer_RetriesTransient(t *testing.T) {
	provider := &scriptedProvider{
		errs: []error{
			errors.New("API returned unexpected status code: 503"),
			errors.New("API returned unexpected status code: 429"),
		},
		resp: llm.Response{Text: "answer"},
	}
	g := newGenerator(t, &fakeSearcher{results: passages()}, provider)

	env, err := g.Answer(context.Background(), Question{Text: "q"})
	require.NoError(t, err)
	assert.Equal(t, "answer", env.Answer)
	assert.Equal(t, 3, provider.calls)
}

func TestAnswer_RetriesExhausted(t *testing.T) {
	transient := errors.New("API returned unexpected status code: 502")
	provider := &scriptedProvider{errs: []error{transient, transient, transient, transient}}
	g := newGenerator(t, &fakeSearcher{results: passages()}, provider)

	_, err := g.Answer(context.Background(), Question{Text: "q"})
	require.ErrorIs(t, err, ErrGeneration)
	assert.Equal(t, 3, provider.calls)
	assert.Zero(t, g.Usage().Snapshot().Requests)
}

func TestAnswer_PermanentFailure(t *testing.T) {
	provider := &scriptedProvider{errs: []error{errors.New("API returned unexpected status code: 401")}}
	g := newGenerator(t, &fakeSearcher{results: passages()}, provider)

	_, err := g.Answer(context.Background(), Question{Text: "q"})
	require.ErrorIs(t, err, ErrGeneration)
	assert.Equal(t, 1, provider.calls)
}

func TestAnswer_RetrievalError(t *testing.T) {
	provider := &scriptedProvider{}
	g := newGenerator(t, &fakeSearcher{err: fmt.Errorf("%w: backend down", index.ErrRetrieval)}, provider)

	_, err := g.Answer(context.Background(), Question{Text: "q"})
	require.ErrorIs(t, err, index.ErrRetrieval)
	assert.NotErrorIs(t, err, ErrGeneration)
	assert.Zero(t, provider.calls)
}

func TestAnswer_EmptyQuestion(t *testing.T) {
	g := newGenerator(t, &fakeSearcher{}, &scriptedProvider{})
	_, err := g.Answer(context.Background(), Question{Text: "  "})
	assert.Error(t, err)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, &scriptedProvider{}, nil, DefaultConfig(), nil)
	assert.Error(t, err)

	cfg := DefaultConfig()
	cfg.Weights.Mean = -1
	_, err = New(&fakeSearcher{}, &scriptedProvider{}, nil, cfg, nil)
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.ScoreThreshold = 2
	_, err = New(&fakeSearcher{}, &scriptedProvider{}, nil, cfg, nil)
	assert.Error(t, err)
}

func TestBuildContext_GroupsByUnit(t *testing.T) {
	ctx := BuildContext(passages())

	p1 := strings.Index(ctx, "--- Page 1 ---")
	p3 := strings.Index(ctx, "--- Page 3 ---")
	p5 := strings.Index(ctx, "--- Page 5 ---")
	require.True(t, p1 >= 0 && p3 > p1 && p5 > p3, ctx)

	// Within page 3, retrieval order is kept.
	first := strings.Index(ctx, "The primary logo sits top left.")
	second := strings.Index(ctx, "[title | relevance 0.85]")
	assert.True(t, p3 < first && first < second && second < p5)

	assert.Contains(t, ctx, "[slide_content | relevance 0.91]")
	assert.Equal(t, 1, strings.Count(ctx, "--- Page 3 ---"))
}

func TestSummarize(t *testing.T) {
	searcher := &fakeSearcher{results: passages()}
	provider := &scriptedProvider{resp: llm.Response{Text: "1. Mission ...", PromptTokens: 50, CompletionTokens: 20}}
	g := newGenerator(t, searcher, provider)

	s, err := g.Summarize(context.Background(), "doc-1")
	require.NoError(t, err)

	assert.Equal(t, "1. Mission ...", s.Summary)
	assert.Equal(t, []string{"slide_content", "title", "pdf_text"}, s.KeySections)
	assert.Equal(t, 70, s.TokensUsed)

	assert.Equal(t, 10, searcher.last.TopK)
	require.NotNil(t, searcher.last.Threshold)
	assert.Zero(t, *searcher.last.Threshold)
	assert.Equal(t, "overview mission values visual identity", searcher.last.Query)
}

func TestSummarize_NoContent(t *testing.T) {
	provider := &scriptedProvider{}
	g := newGenerator(t, &fakeSearcher{}, provider)

	s, err := g.Summarize(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, NoContentSummary, s.Summary)
	assert.Empty(t, s.KeySections)
	assert.Zero(t, provider.calls)

	_, err = g.Summarize(context.Background(), "")
	assert.Error(t, err)
}
