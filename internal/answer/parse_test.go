package answer

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseFollowUps(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantBody  string
		wantFollo []string
	}{
		{
			name:      "no marker",
			raw:       "Use Brand Sans for headlines.",
			wantBody:  "Use Brand Sans for headlines.",
			wantFollo: []string{},
		},
		{
			name:      "dash bullets",
			raw:       "Body.\n\nFollow-up questions:\n- One?\n- Two?",
			wantBody:  "Body.",
			wantFollo: []string{"One?", "Two?"},
		},
		{
			name:      "case and spacing variants",
			raw:       "Body.\n### FOLLOW UP QUESTIONS\n* One?\n• Two?\n1. Three?",
			wantBody:  "Body.",
			wantFollo: []string{"One?", "Two?", "Three?"},
		},
		{
			name:      "numbered with parens",
			raw:       "Body.\nSuggested follow-up questions:\n1) One?\n2) Two?",
			wantBody:  "Body.\nSuggested",
			wantFollo: []string{"One?", "Two?"},
		},
		{
			name:      "capped at three",
			raw:       "Body.\nFollow-up questions:\n- a\n- b\n- c\n- d",
			wantBody:  "Body.",
			wantFollo: []string{"a", "b", "c"},
		},
		{
			name:      "marker without bullets",
			raw:       "Body.\nFollow-up questions: none today.",
			wantBody:  "Body.",
			wantFollo: []string{},
		},
		{
			name:      "bold questions",
			raw:       "Body.\n**Follow-up questions:**\n- **What about icons?**",
			wantBody:  "Body.",
			wantFollo: []string{"What about icons?"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, follow := ParseFollowUps(tt.raw)
			assert.Equal(t, tt.wantBody, body)
			assert.Equal(t, tt.wantFollo, follow)
		})
	}
}

func TestConfidence(t *testing.T) {
	w := DefaultWeights()

	assert.Zero(t, Confidence(nil, "a long answer", w))

	// mean(0.9, 0.85, 0.7)=0.8167; strong=2 → 0.667; 50 words → 0.5
	answer := strings.Repeat("word ", 50)
	got := Confidence([]float64{0.9, 0.85, 0.7, 0.65}, answer, w)
	assert.InDelta(t, 0.5*0.81667+0.3*(2.0/3)+0.2*0.5, got, 1e-4)

	assert.InDelta(t, 1.0, Confidence([]float64{1, 1, 1}, strings.Repeat("w ", 200), w), 1e-9)
}

func TestConfidence_Bounds(t *testing.T) {
	weights := []Weights{DefaultWeights(), {Mean: 1, High: 1, Length: 1}, {}}
	scoreSets := [][]float64{{0}, {1}, {0.2, 0.1}, {1, 1, 1, 1, 1}, {0.81, 0.82, 0.83, 0.84}}
	answers := []string{"", "short", strings.Repeat("x ", 500)}

	for _, w := range weights {
		for _, s := range scoreSets {
			for _, a := range answers {
				c := Confidence(s, a, w)
				assert.GreaterOrEqual(t, c, 0.0)
				assert.LessOrEqual(t, c, 1.0)
			}
		}
	}
}

func TestUsageTracker(t *testing.T) {
	u := NewUsageTracker(nil)

	cost := u.Record("gpt-4-turbo-preview", 1000, 1000)
	assert.Equal(t, int64(40_000), cost)

	// Dated snapshot resolves to the longest matching prefix.
	assert.Equal(t, int64(750), u.Record("gpt-4o-mini-2024-07-18", 1000, 1000))

	assert.Zero(t, u.Record("unknown-model", 1000, 1000))

	s := u.Snapshot()
	assert.Equal(t, int64(3), s.Requests)
	assert.Equal(t, int64(3000), s.PromptTokens)
	assert.Equal(t, int64(6000), s.TotalTokens)
	assert.InDelta(t, 0.04075, s.EstimatedCostUSD, 1e-9)
}

func TestUsageTracker_Concurrent(t *testing.T) {
	u := NewUsageTracker(map[string]Rate{"m": {Prompt: 1000, Completion: 1000}})

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 20 {
				u.Record("m", 10, 5)
			}
		}()
	}
	wg.Wait()

	s := u.Snapshot()
	assert.Equal(t, int64(1000), s.Requests)
	assert.Equal(t, int64(10_000), s.PromptTokens)
	assert.Equal(t, int64(5_000), s.CompletionTokens)
	assert.InDelta(t, 0.015, s.EstimatedCostUSD, 1e-9)
}
