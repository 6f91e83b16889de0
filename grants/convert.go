// Copyright 2025 The GrantMap Authors
// SPDX-License-Identifier: Apache-2.0

package grants

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Converter turns a PDF into a Document.
type Converter interface {
	Convert(ctx context.Context, path string) (*Document, error)
}

// headerMarker identifies the header line of the awards table.
const headerMarker = "Название"

const (
	// glyphs closer than this (in font sizes) are on the same line
	lineTolerance = 0.4
	// a horizontal gap wider than this (in font sizes) separates cells
	cellGap = 1.5
	// a horizontal gap wider than this (in font sizes) separates words
	wordGap = 0.2
	// a vertical gap wider than this (in font sizes) separates paragraphs
	paragraphGap = 1.6
)

var pageNumberRegex = regexp.MustCompile(`^\s*-?\s*\d{1,3}\s*-?\s*$`)

// glyph is a positioned run of text as reported by the PDF content stream.
type glyph struct {
	X, Y, W  float64
	FontSize float64
	S        string
}

// line is a set of glyphs sharing a baseline, sorted by X.
type line struct {
	y        float64
	fontSize float64
	glyphs   []glyph
}

// segment is a horizontally contiguous part of a line.
type segment struct {
	x    float64
	text string
}

// PDFConverter lays out PDF text into paragraphs and tables. Lines before the
// first header line are paragraphs. The header line fixes the column
// boundaries; every following line is assigned to columns by position. A
// line with text in the first column starts a row, other lines extend the
// cells of the current row, joined by a space. Each page holding table lines
// starts a new table, so a row broken by a page boundary shows up as a row
// with an empty first cell whose texts start with a space.
type PDFConverter struct{}

// Convert reads the PDF at path.
func (PDFConverter) Convert(ctx context.Context, path string) (*Document, error) {
	f, r, err := pdf.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	var pages [][]glyph

	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}

		texts := p.Content().Text

		glyphs := make([]glyph, 0, len(texts))
		for _, t := range texts {
			glyphs = append(glyphs, glyph{X: t.X, Y: t.Y, W: t.W, FontSize: t.FontSize, S: t.S})
		}

		pages = append(pages, glyphs)
	}

	doc := layout(pages)
	doc.Source = Stem(path)

	return doc, nil
}

// Stem returns the file name of path without its extension.
func Stem(path string) string {
	base := filepath.Base(path)

	return strings.TrimSuffix(base, filepath.Ext(base))
}

func fontSize(g glyph) float64 {
	if g.FontSize <= 0 {
		return 10
	}

	return g.FontSize
}

// groupLines groups glyphs by baseline, top to bottom.
func groupLines(glyphs []glyph) []line {
	var lines []line

	for _, g := range glyphs {
		if g.S == "" {
			continue
		}

		placed := false

		for i := range lines {
			if math.Abs(lines[i].y-g.Y) < lineTolerance*lines[i].fontSize {
				lines[i].glyphs = append(lines[i].glyphs, g)
				placed = true

				break
			}
		}

		if !placed {
			lines = append(lines, line{y: g.Y, fontSize: fontSize(g), glyphs: []glyph{g}})
		}
	}

	// PDF coordinates grow upwards
	slices.SortStableFunc(lines, func(a, b line) int {
		switch {
		case a.y > b.y:
			return -1
		case a.y < b.y:
			return 1
		default:
			return 0
		}
	})

	for i := range lines {
		slices.SortStableFunc(lines[i].glyphs, func(a, b glyph) int {
			switch {
			case a.X < b.X:
				return -1
			case a.X > b.X:
				return 1
			default:
				return 0
			}
		})
	}

	return lines
}

// segments splits a line where the horizontal gap exceeds cellGap.
func (l line) segments() []segment {
	var (
		ret []segment
		sb  strings.Builder
		end float64
	)

	flush := func() {
		if s := strings.TrimSpace(sb.String()); s != "" {
			ret[len(ret)-1].text = s
		} else {
			ret = ret[:len(ret)-1]
		}

		sb.Reset()
	}

	for i, g := range l.glyphs {
		gap := g.X - end
		size := fontSize(g)

		switch {
		case i == 0:
			ret = append(ret, segment{x: g.X})
		case gap > cellGap*size:
			flush()

			ret = append(ret, segment{x: g.X})
		case gap > wordGap*size && !strings.HasSuffix(sb.String(), " ") && !strings.HasPrefix(g.S, " "):
			sb.WriteByte(' ')
		}

		sb.WriteString(g.S)

		end = max(end, g.X+g.W)
	}

	if len(ret) > 0 {
		flush()
	}

	return ret
}

func (l line) text() string {
	parts := make([]string, 0, len(l.glyphs))
	for _, s := range l.segments() {
		parts = append(parts, s.text)
	}

	return strings.Join(parts, " ")
}

// column returns the index of the column holding x.
func column(starts []float64, x, tolerance float64) int {
	col := 0

	for i, start := range starts {
		if x+tolerance >= start {
			col = i
		}
	}

	return col
}

func layout(pages [][]glyph) *Document {
	doc := &Document{}

	var (
		columns   []float64
		paragraph []string
		lastY     float64
		lastSize  float64
	)

	flushParagraph := func() {
		if len(paragraph) > 0 {
			doc.Paragraphs = append(doc.Paragraphs, strings.Join(paragraph, " "))
			paragraph = nil
		}
	}

	for _, glyphs := range pages {
		var table *Table

		for _, l := range groupLines(glyphs) {
			segments := l.segments()
			if len(segments) == 0 {
				continue
			}

			if len(segments) == 1 && pageNumberRegex.MatchString(segments[0].text) {
				continue
			}

			if strings.Contains(l.text(), headerMarker) {
				flushParagraph()

				columns = columns[:0]

				header := make([]string, 0, len(segments))
				for _, s := range segments {
					columns = append(columns, s.x)
					header = append(header, s.text)
				}

				doc.Tables = append(doc.Tables, Table{Rows: [][]string{header}})
				table = &doc.Tables[len(doc.Tables)-1]

				continue
			}

			if len(columns) == 0 {
				if len(paragraph) > 0 && lastY-l.y > paragraphGap*lastSize {
					flushParagraph()
				}

				paragraph = append(paragraph, l.text())
				lastY, lastSize = l.y, l.fontSize

				continue
			}

			if table == nil {
				doc.Tables = append(doc.Tables, Table{})
				table = &doc.Tables[len(doc.Tables)-1]
			}

			cells := make([]string, len(columns))
			for _, s := range segments {
				i := column(columns, s.x, l.fontSize)
				if cells[i] != "" {
					cells[i] += " "
				}

				cells[i] += s.text
			}

			headerOnly := len(table.Rows) == 1 && isHeader(table)

			switch {
			case cells[0] != "":
				// a line with text in the first column starts a row
				table.Rows = append(table.Rows, cells)
			case len(table.Rows) == 0:
				// continuation of the last row of the previous page
				table.Rows = append(table.Rows, softWrap(cells))
			case headerOnly && (len(doc.Tables) == 1 || !slices.Equal(table.Rows[0], doc.Tables[0].Rows[0])):
				// wrapped header text
				extend(table.Rows[0], cells, " ")
			case headerOnly:
				table.Rows = append(table.Rows, softWrap(cells))
			default:
				// wrapped cell text
				extend(table.Rows[len(table.Rows)-1], cells, " ")
			}
		}
	}

	flushParagraph()

	return doc
}

// softWrap marks the cells continued from the previous page. The page break
// is a soft wrap, so the continued texts start with a space.
func softWrap(cells []string) []string {
	for i, c := range cells {
		if c != "" {
			cells[i] = " " + c
		}
	}

	return cells
}

func extend(row, cells []string, sep string) {
	for i, c := range cells {
		switch {
		case c == "":
		case row[i] == "":
			row[i] = c
		default:
			row[i] += sep + c
		}
	}
}

// isHeader reports whether the only row of t is a header line.
func isHeader(t *Table) bool {
	return len(t.Rows) == 1 && slices.ContainsFunc(t.Rows[0], func(s string) bool {
		return strings.Contains(s, headerMarker)
	})
}
