// Package extract turns uploaded PDF, PPTX and DOCX files into ordered text
// units and table grids for the chunker.
package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/tom2tomtomtom/Playbook/internal/chunker"
)

var (
	// ErrUnsupportedFormat is returned for file types with no reader.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrCorruptDocument is returned when a supported file cannot be parsed.
	ErrCorruptDocument = errors.New("corrupt document")
)

// Format identifies a supported document type.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatPPTX Format = "pptx"
	FormatDOCX Format = "docx"
)

// UnsupportedFormatError carries the rejected extension.
type UnsupportedFormatError struct {
	Ext string
}

func (e *UnsupportedFormatError) Error() string {
	if e.Ext == "" {
		return ErrUnsupportedFormat.Error() + ": file has no extension"
	}
	return fmt.Sprintf("%s: %s", ErrUnsupportedFormat, e.Ext)
}

func (e *UnsupportedFormatError) Unwrap() error { return ErrUnsupportedFormat }

// Unit is one piece of prose with its page or slide number.
type Unit struct {
	Text   string
	Number int
	Kind   chunker.Type
	Style  string
}

// Table is a fully materialized row-major grid.
type Table struct {
	Number int
	Rows   [][]string
}

// Document is the output of extraction: prose units and tables in reading order.
type Document struct {
	Filename string
	Format   Format
	Units    []Unit
	Tables   []Table
}

// Empty reports whether extraction produced no text at all.
func (d *Document) Empty() bool {
	for _, u := range d.Units {
		if strings.TrimSpace(u.Text) != "" {
			return false
		}
	}
	for _, t := range d.Tables {
		for _, row := range t.Rows {
			for _, cell := range row {
				if strings.TrimSpace(cell) != "" {
					return false
				}
			}
		}
	}
	return true
}

// DetectFormat maps a filename to a Format by extension.
func DetectFormat(filename string) (Format, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	switch ext {
	case "pdf":
		return FormatPDF, nil
	case "pptx":
		return FormatPPTX, nil
	case "docx":
		return FormatDOCX, nil
	default:
		return "", &UnsupportedFormatError{Ext: ext}
	}
}

// Read extracts a document from r, dispatching on the filename extension.
func Read(ctx context.Context, filename string, r io.ReaderAt, size int64) (*Document, error) {
	format, err := DetectFormat(filename)
	if err != nil {
		return nil, err
	}

	var doc *Document
	switch format {
	case FormatPDF:
		doc, err = readPDF(ctx, r, size)
	case FormatPPTX:
		doc, err = readPPTX(r, size)
	case FormatDOCX:
		doc, err = readDOCX(r, size)
	}
	if err != nil {
		return nil, err
	}
	doc.Filename = filename
	doc.Format = format
	return doc, nil
}

// Chunks runs every unit and table of doc through the splitter. Chunk
// indexes are renumbered across the whole document.
func Chunks(doc *Document, s *chunker.Splitter) []chunker.Chunk {
	var out []chunker.Chunk
	for _, u := range doc.Units {
		for _, c := range s.Chunk(u.Text, u.Number, u.Kind) {
			if u.Style != "" {
				c.Metadata[chunker.MetaStyle] = u.Style
			}
			out = append(out, c)
		}
	}
	for _, t := range doc.Tables {
		if c := chunker.Table(t.Rows, t.Number); c != nil {
			out = append(out, *c)
		}
	}
	for i := range out {
		out[i].Metadata[chunker.MetaChunkIndex] = i
	}
	return out
}
