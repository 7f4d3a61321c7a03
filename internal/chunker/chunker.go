// Package chunker splits extracted document text into overlapping,
// word-bounded chunks tagged with their source page or slide.
package chunker

import (
	"errors"
	"fmt"
	"strings"
)

// Default window parameters, in words.
const (
	DefaultSize    = 500
	DefaultOverlap = 50
)

// ErrInvalidOptions is returned when window parameters cannot produce forward progress.
var ErrInvalidOptions = errors.New("invalid chunker options")

// Type classifies where a chunk's text came from.
type Type string

const (
	TypeText             Type = "text"
	TypeTitle            Type = "title"
	TypeTable            Type = "table"
	TypeSlideContent     Type = "slide_content"
	TypeImageDescription Type = "image_description"
	TypeWordText         Type = "word_text"
	TypePDFText          Type = "pdf_text"
)

// Valid reports whether t is a known chunk type.
func (t Type) Valid() bool {
	switch t {
	case TypeText, TypeTitle, TypeTable, TypeSlideContent,
		TypeImageDescription, TypeWordText, TypePDFText:
		return true
	}
	return false
}

// Metadata keys written by the splitter.
const (
	MetaChunkIndex = "chunk_index"
	MetaWordCount  = "word_count"
	MetaStartWord  = "start_word"
	MetaEndWord    = "end_word"
	MetaRows       = "rows"
	MetaColumns    = "columns"
	MetaStyle      = "style"
)

// Chunk is a bounded span of document text prepared for independent retrieval.
type Chunk struct {
	Content    string         `json:"content"`
	SourceUnit int            `json:"source_unit"`
	Type       Type           `json:"chunk_type"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Splitter holds the sliding-window parameters.
type Splitter struct {
	size    int
	overlap int
}

// Option configures a Splitter.
type Option func(*Splitter)

// WithSize sets the window size in words.
func WithSize(words int) Option {
	return func(s *Splitter) {
		s.size = words
	}
}

// WithOverlap sets how many words consecutive windows share.
func WithOverlap(words int) Option {
	return func(s *Splitter) {
		s.overlap = words
	}
}

// NewSplitter creates a Splitter. Size must be positive and overlap must be
// in [0, size).
func NewSplitter(opts ...Option) (*Splitter, error) {
	s := &Splitter{size: DefaultSize, overlap: DefaultOverlap}
	for _, opt := range opts {
		opt(s)
	}
	if s.size < 1 {
		return nil, fmt.Errorf("%w: size must be positive, got %d", ErrInvalidOptions, s.size)
	}
	if s.overlap < 0 || s.overlap >= s.size {
		return nil, fmt.Errorf("%w: overlap %d must be in [0, %d)", ErrInvalidOptions, s.overlap, s.size)
	}
	return s, nil
}

// Size returns the window size in words.
func (s *Splitter) Size() int { return s.size }

// Overlap returns the window overlap in words.
func (s *Splitter) Overlap() int { return s.overlap }

// Chunk splits text into word windows. Whitespace runs are collapsed first.
// Empty or whitespace-only text yields no chunks.
func (s *Splitter) Chunk(text string, sourceUnit int, typ Type) []Chunk {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if sourceUnit < 1 {
		sourceUnit = 1
	}

	if len(words) <= s.size {
		return []Chunk{newWindow(words, 0, len(words), 0, sourceUnit, typ)}
	}

	step := s.size - s.overlap
	chunks := make([]Chunk, 0, len(words)/step+1)
	for start, idx := 0, 0; start < len(words); start, idx = start+step, idx+1 {
		end := start + s.size
		if end >= len(words) {
			// The last window always ends on the final word.
			chunks = append(chunks, newWindow(words, start, len(words), idx, sourceUnit, typ))
			break
		}
		chunks = append(chunks, newWindow(words, start, end, idx, sourceUnit, typ))
	}
	return chunks
}

func newWindow(words []string, start, end, idx, sourceUnit int, typ Type) Chunk {
	return Chunk{
		Content:    strings.Join(words[start:end], " "),
		SourceUnit: sourceUnit,
		Type:       typ,
		Metadata: map[string]any{
			MetaChunkIndex: idx,
			MetaWordCount:  end - start,
			MetaStartWord:  start,
			MetaEndWord:    end,
		},
	}
}

// Normalize collapses whitespace runs to single spaces and trims the ends.
func Normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
