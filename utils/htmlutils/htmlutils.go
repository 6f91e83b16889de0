// Copyright 2025 The GrantMap Authors
// SPDX-License-Identifier: Apache-2.0

// Package htmlutils provides utility functions for working with HTML.
package htmlutils

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// Node2string appends the trimmed text nodes under n to sb, separated by a
// single space.
func Node2string(n *html.Node, sb *strings.Builder) (err error) {
	if n.Type == html.TextNode {
		tmp := strings.TrimSpace(n.Data)

		// converted documents are always written as UTF-8, so a
		// REPLACEMENT CHARACTER (U+FFFD) means we are reading
		// them with the wrong charset
		if idx := strings.IndexRune(tmp, utf8.RuneError); idx != -1 {
			err = fmt.Errorf("charset missmatch found: `%s'", tmp)
		}

		tmp = strings.ReplaceAll(tmp, "\n", " ")

		if err == nil && len(tmp) > 0 {
			if sb.Len() != 0 {
				sb.WriteByte(' ')
			}

			sb.WriteString(tmp)
		}
	} else {
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			err = Node2string(child, sb)
			if err != nil {
				break
			}
		}
	}

	return err
}

// CellText returns the text under n verbatim, with <br> elements mapped to
// newlines. Unlike Node2string it neither trims nor joins, so wrapped cell
// text survives the round trip.
func CellText(n *html.Node) string {
	sb := strings.Builder{}
	cellText(n, &sb)

	return sb.String()
}

func cellText(n *html.Node, sb *strings.Builder) {
	switch {
	case n.Type == html.TextNode:
		sb.WriteString(n.Data)
	case n.Type == html.ElementNode && strings.EqualFold("br", n.Data):
		sb.WriteByte('\n')
	default:
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			cellText(child, sb)
		}
	}
}

// Children returns the direct element children of n named tag.
func Children(n *html.Node, tag string) []*html.Node {
	var ret []*html.Node

	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.ElementNode && strings.EqualFold(tag, child.Data) {
			ret = append(ret, child)
		}
	}

	return ret
}

// AsNode parses an io.Reader as an HTML node, honoring the charset declared
// in the document.
func AsNode(r io.Reader) (*html.Node, error) {
	rr, err := charset.NewReader(r, "text/html")
	if err != nil {
		return nil, fmt.Errorf("detecting charset: %w", err)
	}

	n, err := html.Parse(rr)
	if nil != err {
		return nil, fmt.Errorf("parsing body as HTML: %w", err)
	}

	return n, nil
}

// Body returns the <body> element of a parsed document, or nil.
func Body(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && strings.EqualFold("body", n.Data) {
		return n
	}

	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if b := Body(child); b != nil {
			return b
		}
	}

	return nil
}
