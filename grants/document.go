// Copyright 2025 The GrantMap Authors
// SPDX-License-Identifier: Apache-2.0

package grants

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/grantmap/grantmap/utils/htmlutils"
)

// Document is a converted grant-award document: its paragraphs and tables in
// reading order.
type Document struct {
	// Source is the stem of the PDF the document was converted from.
	Source     string
	Paragraphs []string
	Tables     []Table
}

// Table is a list of rows; rows may have different lengths.
type Table struct {
	Rows [][]string
}

func element(a atom.Atom) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
}

func text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

// appendLines appends s to n, mapping newlines to <br>.
func appendLines(n *html.Node, s string) {
	for i, line := range strings.Split(s, "\n") {
		if i > 0 {
			n.AppendChild(element(atom.Br))
		}

		if line != "" {
			n.AppendChild(text(line))
		}
	}
}

// WriteHTML renders doc as a standalone UTF-8 HTML document.
func WriteHTML(w io.Writer, doc *Document) error {
	meta := element(atom.Meta)
	meta.Attr = []html.Attribute{{Key: "charset", Val: "utf-8"}}

	title := element(atom.Title)
	title.AppendChild(text(doc.Source))

	head := element(atom.Head)
	head.AppendChild(meta)
	head.AppendChild(title)

	body := element(atom.Body)

	for _, p := range doc.Paragraphs {
		pn := element(atom.P)
		appendLines(pn, p)
		body.AppendChild(pn)
	}

	for _, t := range doc.Tables {
		tbody := element(atom.Tbody)

		for _, row := range t.Rows {
			tr := element(atom.Tr)

			for _, cell := range row {
				td := element(atom.Td)
				appendLines(td, cell)
				tr.AppendChild(td)
			}

			tbody.AppendChild(tr)
		}

		table := element(atom.Table)
		table.AppendChild(tbody)
		body.AppendChild(table)
	}

	root := element(atom.Html)
	root.Attr = []html.Attribute{{Key: "lang", Val: "ru"}}
	root.AppendChild(head)
	root.AppendChild(body)

	doctype := &html.Node{Type: html.DoctypeNode, Data: "html"}
	docNode := &html.Node{Type: html.DocumentNode}
	docNode.AppendChild(doctype)
	docNode.AppendChild(root)

	if err := html.Render(w, docNode); err != nil {
		return fmt.Errorf("rendering document: %w", err)
	}

	return nil
}

// ReadHTML parses a document written by WriteHTML. Paragraphs and tables are
// taken from the direct children of <body>.
func ReadHTML(r io.Reader, source string) (*Document, error) {
	n, err := htmlutils.AsNode(r)
	if err != nil {
		return nil, err
	}

	body := htmlutils.Body(n)
	if body == nil {
		return nil, fmt.Errorf("%w: no body", ErrMalformedDocument)
	}

	doc := &Document{Source: source}

	for child := body.FirstChild; child != nil; child = child.NextSibling {
		if child.Type != html.ElementNode {
			continue
		}

		switch child.DataAtom {
		case atom.P:
			sb := strings.Builder{}
			if err := htmlutils.Node2string(child, &sb); err != nil {
				return nil, fmt.Errorf("paragraph %d: %w", len(doc.Paragraphs), err)
			}

			doc.Paragraphs = append(doc.Paragraphs, sb.String())
		case atom.Table:
			doc.Tables = append(doc.Tables, readTable(child))
		}
	}

	return doc, nil
}

func readTable(n *html.Node) Table {
	var t Table

	// rows may hang from the table itself or from its sections
	containers := append([]*html.Node{n}, htmlutils.Children(n, "thead")...)
	containers = append(containers, htmlutils.Children(n, "tbody")...)

	for _, c := range containers {
		for _, tr := range htmlutils.Children(c, "tr") {
			var row []string

			for cell := tr.FirstChild; cell != nil; cell = cell.NextSibling {
				if cell.Type == html.ElementNode && (cell.DataAtom == atom.Td || cell.DataAtom == atom.Th) {
					row = append(row, htmlutils.CellText(cell))
				}
			}

			t.Rows = append(t.Rows, row)
		}
	}

	return t
}
