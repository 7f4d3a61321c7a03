package extract

import (
	"io"
	"strings"

	"github.com/tom2tomtomtom/Playbook/internal/chunker"
)

type docxDocument struct {
	Body struct {
		Paragraphs []textPara  `xml:"p"`
		Tables     []docxTable `xml:"tbl"`
	} `xml:"body"`
}

type docxTable struct {
	Rows []struct {
		Cells []struct {
			Paragraphs []textPara `xml:"p"`
		} `xml:"tc"`
	} `xml:"tr"`
}

// Word documents have no page semantics; everything is unit 1.
const docxUnit = 1

func readDOCX(r io.ReaderAt, size int64) (*Document, error) {
	zr, err := openZip(r, size)
	if err != nil {
		return nil, err
	}

	doc := &Document{}
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		var body docxDocument
		if err := readPart(f, &body); err != nil {
			return nil, err
		}

		// Consecutive body paragraphs are merged into one unit until a
		// heading starts a new one, so the word window sees prose runs.
		var buf []string
		flush := func() {
			if len(buf) > 0 {
				doc.Units = append(doc.Units, Unit{Text: strings.Join(buf, "\n"), Number: docxUnit, Kind: chunker.TypeWordText})
				buf = nil
			}
		}
		for _, p := range body.Body.Paragraphs {
			text := p.text()
			if text == "" {
				continue
			}
			if isHeadingStyle(p.Style.Val) {
				flush()
				doc.Units = append(doc.Units, Unit{Text: text, Number: docxUnit, Kind: chunker.TypeTitle, Style: p.Style.Val})
				continue
			}
			buf = append(buf, text)
		}
		flush()

		for _, t := range body.Body.Tables {
			grid := make([][]string, 0, len(t.Rows))
			for _, row := range t.Rows {
				cells := make([]string, 0, len(row.Cells))
				for _, c := range row.Cells {
					cells = append(cells, joinParas(c.Paragraphs))
				}
				grid = append(grid, cells)
			}
			doc.Tables = append(doc.Tables, Table{Number: docxUnit, Rows: grid})
		}
		return doc, nil
	}
	return nil, ErrCorruptDocument
}

func isHeadingStyle(style string) bool {
	s := strings.ToLower(style)
	return s == "title" || s == "subtitle" || strings.HasPrefix(s, "heading")
}
