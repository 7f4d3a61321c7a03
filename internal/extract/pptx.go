package extract

import (
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/tom2tomtomtom/Playbook/internal/chunker"
)

var slidePartPattern = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

type pptxSlide struct {
	Tree shapeTree `xml:"cSld>spTree"`
}

type shapeTree struct {
	Shapes []struct {
		Placeholder struct {
			Type string `xml:"type,attr"`
		} `xml:"nvSpPr>nvPr>ph"`
		Paragraphs []textPara `xml:"txBody>p"`
	} `xml:"sp"`
	Frames []struct {
		Rows []struct {
			Cells []struct {
				Paragraphs []textPara `xml:"txBody>p"`
			} `xml:"tc"`
		} `xml:"graphic>graphicData>tbl>tr"`
	} `xml:"graphicFrame"`
	Pictures []struct {
		Props struct {
			Descr string `xml:"descr,attr"`
		} `xml:"nvPicPr>cNvPr"`
	} `xml:"pic"`
	Groups []shapeTree `xml:"grpSp"`
}

func readPPTX(r io.ReaderAt, size int64) (*Document, error) {
	zr, err := openZip(r, size)
	if err != nil {
		return nil, err
	}

	type slidePart struct {
		num  int
		tree shapeTree
	}
	var slides []slidePart
	for _, f := range zr.File {
		m := slidePartPattern.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		num, _ := strconv.Atoi(m[1])
		var s pptxSlide
		if err := readPart(f, &s); err != nil {
			return nil, err
		}
		slides = append(slides, slidePart{num: num, tree: s.Tree})
	}
	if len(slides) == 0 {
		return nil, ErrCorruptDocument
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	doc := &Document{}
	for _, s := range slides {
		var body []string
		collectSlide(doc, s.num, s.tree, &body)
		if len(body) > 0 {
			doc.Units = append(doc.Units, Unit{Text: strings.Join(body, "\n"), Number: s.num, Kind: chunker.TypeSlideContent})
		}
	}
	return doc, nil
}

// collectSlide appends titles, pictures and tables directly to doc and
// gathers body text into body so one slide yields one content unit.
func collectSlide(doc *Document, num int, tree shapeTree, body *[]string) {
	for _, sp := range tree.Shapes {
		text := joinParas(sp.Paragraphs)
		if text == "" {
			continue
		}
		switch sp.Placeholder.Type {
		case "title", "ctrTitle":
			doc.Units = append(doc.Units, Unit{Text: text, Number: num, Kind: chunker.TypeTitle})
		default:
			*body = append(*body, text)
		}
	}
	for _, pic := range tree.Pictures {
		if d := strings.TrimSpace(pic.Props.Descr); d != "" {
			doc.Units = append(doc.Units, Unit{Text: d, Number: num, Kind: chunker.TypeImageDescription})
		}
	}
	for _, fr := range tree.Frames {
		if len(fr.Rows) == 0 {
			continue
		}
		grid := make([][]string, 0, len(fr.Rows))
		for _, row := range fr.Rows {
			cells := make([]string, 0, len(row.Cells))
			for _, c := range row.Cells {
				cells = append(cells, joinParas(c.Paragraphs))
			}
			grid = append(grid, cells)
		}
		doc.Tables = append(doc.Tables, Table{Number: num, Rows: grid})
	}
	for _, g := range tree.Groups {
		collectSlide(doc, num, g, body)
	}
}
