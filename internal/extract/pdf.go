package extract

import (
	"context"
	"fmt"
	"io"

	"github.com/tmc/langchaingo/documentloaders"

	"github.com/tom2tomtomtom/Playbook/internal/chunker"
)

func readPDF(ctx context.Context, r io.ReaderAt, size int64) (doc *Document, err error) {
	// The underlying PDF parser panics on some malformed inputs.
	defer func() {
		if p := recover(); p != nil {
			doc, err = nil, fmt.Errorf("%w: pdf: %v", ErrCorruptDocument, p)
		}
	}()

	pages, err := documentloaders.NewPDF(r, size).Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: pdf: %v", ErrCorruptDocument, err)
	}

	doc = &Document{}
	for i, p := range pages {
		num := i + 1
		if n, ok := p.Metadata["page"].(int); ok && n > 0 {
			num = n
		}
		doc.Units = append(doc.Units, Unit{
			Text:   p.PageContent,
			Number: num,
			Kind:   chunker.TypePDFText,
		})
	}
	return doc, nil
}
