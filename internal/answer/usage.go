package answer

import (
	"strings"
	"sync/atomic"
)

// Rate is a model price in micro-dollars per 1K tokens.
type Rate struct {
	Prompt     int64
	Completion int64
}

// DefaultRates prices the models this service is normally configured with.
var DefaultRates = map[string]Rate{
	"gpt-4-turbo-preview": {Prompt: 10_000, Completion: 30_000},
	"gpt-4-turbo":         {Prompt: 10_000, Completion: 30_000},
	"gpt-4":               {Prompt: 30_000, Completion: 60_000},
	"gpt-4o":              {Prompt: 5_000, Completion: 15_000},
	"gpt-4o-mini":         {Prompt: 150, Completion: 600},
	"gpt-3.5-turbo":       {Prompt: 500, Completion: 1_500},
	"gemini-1.5-pro":      {Prompt: 1_250, Completion: 5_000},
	"gemini-1.5-flash":    {Prompt: 75, Completion: 300},
}

// UsageTracker accumulates token usage and estimated cost across all
// generators sharing it. It is safe for concurrent use.
type UsageTracker struct {
	rates map[string]Rate

	prompt     atomic.Int64
	completion atomic.Int64
	requests   atomic.Int64
	costMicros atomic.Int64
}

// NewUsageTracker creates a tracker. A nil rate table uses DefaultRates.
func NewUsageTracker(rates map[string]Rate) *UsageTracker {
	if rates == nil {
		rates = DefaultRates
	}
	return &UsageTracker{rates: rates}
}

// Record adds one completion and returns its cost in micro-dollars.
// Models missing from the rate table cost nothing.
func (u *UsageTracker) Record(model string, promptTokens, completionTokens int) int64 {
	rate := u.rate(model)
	cost := (int64(promptTokens)*rate.Prompt + int64(completionTokens)*rate.Completion + 500) / 1000

	u.prompt.Add(int64(promptTokens))
	u.completion.Add(int64(completionTokens))
	u.requests.Add(1)
	u.costMicros.Add(cost)
	return cost
}

// rate matches exact names first, then the longest known prefix, so that
// dated snapshots such as "gpt-4o-2024-08-06" resolve.
func (u *UsageTracker) rate(model string) Rate {
	if r, ok := u.rates[model]; ok {
		return r
	}
	best := ""
	for name := range u.rates {
		if strings.HasPrefix(model, name) && len(name) > len(best) {
			best = name
		}
	}
	return u.rates[best]
}

// Usage is a point-in-time view of a tracker.
type Usage struct {
	PromptTokens     int64   `json:"prompt_tokens"`
	CompletionTokens int64   `json:"completion_tokens"`
	TotalTokens      int64   `json:"total_tokens"`
	Requests         int64   `json:"requests"`
	EstimatedCostUSD float64 `json:"estimated_cost_usd"`
}

// Snapshot reads the counters.
func (u *UsageTracker) Snapshot() Usage {
	p, c := u.prompt.Load(), u.completion.Load()
	return Usage{
		PromptTokens:     p,
		CompletionTokens: c,
		TotalTokens:      p + c,
		Requests:         u.requests.Load(),
		EstimatedCostUSD: float64(u.costMicros.Load()) / 1e6,
	}
}
