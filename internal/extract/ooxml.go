package extract

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// maxPartSize bounds how much of a single zip member is read into memory.
const maxPartSize = 32 << 20

func openZip(r io.ReaderAt, size int64) (*zip.Reader, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptDocument, err)
	}
	return zr, nil
}

func readPart(f *zip.File, v any) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", ErrCorruptDocument, f.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxPartSize))
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", ErrCorruptDocument, f.Name, err)
	}
	if err := xml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: parse %s: %v", ErrCorruptDocument, f.Name, err)
	}
	return nil
}

// textRun is shared by WordprocessingML (w:r/w:t) and DrawingML (a:r/a:t).
type textRun struct {
	Text []string `xml:"t"`
}

type textPara struct {
	Style struct {
		Val string `xml:"val,attr"`
	} `xml:"pPr>pStyle"`
	Runs []textRun `xml:"r"`
}

func (p textPara) text() string {
	var b strings.Builder
	for _, r := range p.Runs {
		for _, t := range r.Text {
			b.WriteString(t)
		}
	}
	return strings.TrimSpace(b.String())
}

func joinParas(paras []textPara) string {
	parts := make([]string, 0, len(paras))
	for _, p := range paras {
		if t := p.text(); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}
