package chunker

import "strings"

// Table renders a row-major grid as a single markdown table chunk. Tables are
// never word-windowed so row and column relationships survive retrieval.
// A grid with no non-empty cells yields nil.
func Table(grid [][]string, sourceUnit int) *Chunk {
	cols := 0
	nonEmpty := false
	for _, row := range grid {
		if len(row) > cols {
			cols = len(row)
		}
		for _, cell := range row {
			if strings.TrimSpace(cell) != "" {
				nonEmpty = true
			}
		}
	}
	if !nonEmpty || cols == 0 {
		return nil
	}
	if sourceUnit < 1 {
		sourceUnit = 1
	}

	var b strings.Builder
	for i, row := range grid {
		writeRow(&b, row, cols)
		if i == 0 {
			b.WriteString("|")
			for c := 0; c < cols; c++ {
				b.WriteString(" --- |")
			}
			b.WriteString("\n")
		}
	}

	return &Chunk{
		Content:    strings.TrimRight(b.String(), "\n"),
		SourceUnit: sourceUnit,
		Type:       TypeTable,
		Metadata: map[string]any{
			MetaRows:    len(grid),
			MetaColumns: cols,
		},
	}
}

func writeRow(b *strings.Builder, row []string, cols int) {
	b.WriteString("|")
	for c := 0; c < cols; c++ {
		cell := ""
		if c < len(row) {
			// Pipes inside a cell would break the grid.
			cell = strings.ReplaceAll(Normalize(row[c]), "|", "/")
		}
		b.WriteString(" ")
		b.WriteString(cell)
		b.WriteString(" |")
	}
	b.WriteString("\n")
}
