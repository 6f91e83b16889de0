// Copyright 2025 The GrantMap Authors
// SPDX-License-Identifier: Apache-2.0

package grants

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

// words lays out each word of a line as one glyph run, 6 points per rune.
func words(x, y float64, texts ...string) []glyph {
	var ret []glyph

	for _, s := range texts {
		w := float64(len([]rune(s))) * 6
		ret = append(ret, glyph{X: x, Y: y, W: w, FontSize: 10, S: s})
		x += w + 3
	}

	return ret
}

// row places the cells at the given column starts.
func row(y float64, columns []float64, cells ...string) []glyph {
	var ret []glyph

	for i, c := range cells {
		if c != "" {
			ret = append(ret, words(columns[i], y, c)...)
		}
	}

	return ret
}

func TestLayout(t *testing.T) {
	columns := []float64{50, 100, 300}

	page1 := words(200, 800, "ПРИКАЗ")
	page1 = append(page1, words(50, 770, "Об", "итогах", "конкурса", "2023")...)
	page1 = append(page1, words(50, 758, "«Мегагранты»")...)
	page1 = append(page1, row(700, columns, "№", "Название проекта", "Российская")...)
	page1 = append(page1, row(688, columns, "", "", "организация")...)
	page1 = append(page1, row(660, columns, "1", "Квантовые", "Институт")...)
	page1 = append(page1, row(648, columns, "", "сенсоры", "Х")...)
	page1 = append(page1, row(620, columns, "2", "Мерзлота", "ИМЗ")...)
	page1 = append(page1, words(300, 40, "1")...)

	page2 := row(800, columns, "№", "Название проекта", "Российская")
	page2 = append(page2, row(788, columns, "", "", "организация")...)
	page2 = append(page2, row(760, columns, "", "Якутии", "")...)
	page2 = append(page2, row(740, columns, "3", "Лед", "ААНИИ")...)

	doc := layout([][]glyph{page1, page2})

	expected := &Document{
		Paragraphs: []string{
			"ПРИКАЗ",
			"Об итогах конкурса 2023 «Мегагранты»",
		},
		Tables: []Table{
			{Rows: [][]string{
				{"№", "Название проекта", "Российская организация"},
				{"1", "Квантовые сенсоры", "Институт Х"},
				{"2", "Мерзлота", "ИМЗ"},
			}},
			{Rows: [][]string{
				{"№", "Название проекта", "Российская организация"},
				{"", " Якутии", ""},
				{"3", "Лед", "ААНИИ"},
			}},
		},
	}

	if diff := cmp.Diff(expected, doc); diff != "" {
		t.Errorf("layout() mismatch (-want +got):\n%s", diff)
	}
}

func TestLayout_PageWithoutHeader(t *testing.T) {
	columns := []float64{50, 100, 300}

	page1 := words(50, 800, "ПРИКАЗ")
	page1 = append(page1, words(50, 770, "Конкурс", "«Гранты»")...)
	page1 = append(page1, row(700, columns, "№", "Название", "Организация")...)
	page1 = append(page1, row(660, columns, "1", "Начало", "Институт")...)

	page2 := row(800, columns, "", "конец", "")

	doc := layout([][]glyph{page1, page2})

	assert.Len(t, doc.Tables, 2)
	assert.Equal(t, [][]string{{"", " конец", ""}}, doc.Tables[1].Rows)
}

func TestLineSegments(t *testing.T) {
	l := line{y: 100, fontSize: 10, glyphs: []glyph{
		{X: 10, W: 6, FontSize: 10, S: "А"},
		{X: 16, W: 6, FontSize: 10, S: "О"},
		{X: 25, W: 30, FontSize: 10, S: "Завод"},
		{X: 200, W: 6, FontSize: 10, S: "1"},
	}}

	segments := l.segments()
	assert.Equal(t, []segment{{x: 10, text: "АО Завод"}, {x: 200, text: "1"}}, segments)
	assert.Equal(t, "АО Завод 1", l.text())
}

func TestStem(t *testing.T) {
	assert.Equal(t, "2023-1", Stem("projects/2023-1.pdf"))
	assert.Equal(t, "a.b", Stem("a.b.pdf"))
}
