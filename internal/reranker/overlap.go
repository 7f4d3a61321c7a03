package reranker

import (
	"context"
	"sort"
	"strings"
	"unicode"
)

// DefaultOverlapWeight gives term overlap and similarity equal say.
const DefaultOverlapWeight = 0.5

// TermOverlap scores each candidate as
// (1-w)·similarity + w·overlap, where overlap is the share of distinct
// query terms found in the candidate.
type TermOverlap struct {
	weight float64
}

// Option configures a TermOverlap reranker.
type Option func(*TermOverlap)

// WithOverlapWeight sets w, clamped to [0,1].
func WithOverlapWeight(w float64) Option {
	return func(r *TermOverlap) {
		r.weight = min(max(w, 0), 1)
	}
}

// NewTermOverlap creates a TermOverlap reranker.
func NewTermOverlap(opts ...Option) *TermOverlap {
	r := &TermOverlap{weight: DefaultOverlapWeight}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Weight returns the overlap weight.
func (r *TermOverlap) Weight() float64 { return r.weight }

// Rerank implements Reranker. A query with no usable terms keeps the
// similarity order.
func (r *TermOverlap) Rerank(ctx context.Context, query string, candidates []Candidate, topK int) ([]Ranked, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if topK <= 0 || topK > len(candidates) {
		topK = len(candidates)
	}
	if len(candidates) == 0 {
		return []Ranked{}, nil
	}

	terms := uniqueTerms(query)
	ranked := make([]Ranked, len(candidates))
	for i, c := range candidates {
		overlap := 0.0
		combined := c.Score
		if len(terms) > 0 {
			overlap = termOverlap(terms, tokenize(c.Content))
			combined = (1-r.weight)*c.Score + r.weight*overlap
		}
		ranked[i] = Ranked{
			Candidate:    c,
			Overlap:      overlap,
			Combined:     combined,
			OriginalRank: i,
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Combined > ranked[j].Combined
	})
	return ranked[:topK], nil
}

var stopwords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`
		the a an and or but in on at to for of with by from as is was are be
		been being have has had do does did will would could should may might
		can this that these those you he she it we they what which who when
		where why how our your its their about into than then there here use
		used using please tell`) {
		stopwords[w] = struct{}{}
	}
}

// tokenize lowercases text, splits on anything that is not a letter or
// digit, and drops stopwords and tokens shorter than three runes.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, stop := stopwords[f]; stop || len([]rune(f)) < 3 {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

func uniqueTerms(text string) []string {
	seen := make(map[string]struct{})
	var terms []string
	for _, t := range tokenize(text) {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		terms = append(terms, t)
	}
	return terms
}

// termOverlap returns the fraction of terms present in tokens.
func termOverlap(terms, tokens []string) float64 {
	if len(terms) == 0 {
		return 0
	}
	present := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		present[t] = struct{}{}
	}
	hits := 0
	for _, t := range terms {
		if _, ok := present[t]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(terms))
}

var _ Reranker = (*TermOverlap)(nil)
