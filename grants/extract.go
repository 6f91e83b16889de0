// Copyright 2025 The GrantMap Authors
// SPDX-License-Identifier: Apache-2.0

package grants

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// introParagraph is the index of the paragraph announcing the competition.
const introParagraph = 1

const grantNameOpenQuote, grantNameEndQuote = "«", "»"

var (
	yearRegex         = regexp.MustCompile(`20\d{2}`)
	projectNameRegex  = regexp.MustCompile(`Название`)
	organizationRegex = regexp.MustCompile(`Российская организация|Организация`)
)

// ColumnLayout locates the fields in a table row.
type ColumnLayout struct {
	ProjectName  int
	Organization int
}

// DetectColumns finds the layout in a header row. The last matching cell wins.
func DetectColumns(header []string) (ColumnLayout, error) {
	layout := ColumnLayout{ProjectName: -1, Organization: -1}

	for i, cell := range header {
		if projectNameRegex.MatchString(cell) {
			layout.ProjectName = i
		} else if organizationRegex.MatchString(cell) {
			layout.Organization = i
		}
	}

	var missing []string
	if layout.ProjectName == -1 {
		missing = append(missing, "project name")
	}

	if layout.Organization == -1 {
		missing = append(missing, "organization")
	}

	if len(missing) > 0 {
		return layout, fmt.Errorf("%w: no %s column in %q", ErrUnrecognizedColumns, strings.Join(missing, " or "), header)
	}

	return layout, nil
}

// Extractor builds grant records from converted documents.
type Extractor struct {
	normalizer *Normalizer
	resolver   Resolver
}

// NewExtractor creates an extractor. A nil resolver leaves records without
// coordinates.
func NewExtractor(normalizer *Normalizer, resolver Resolver) *Extractor {
	if normalizer == nil {
		normalizer = NewNormalizer()
	}

	if resolver == nil {
		resolver = Unresolved
	}

	return &Extractor{normalizer: normalizer, resolver: resolver}
}

// grantHeading returns the year (nil when absent) and the grant name of the
// introductory paragraph.
func grantHeading(doc *Document) (*int, string, error) {
	if len(doc.Paragraphs) <= introParagraph {
		return nil, "", fmt.Errorf("%w: %d paragraphs", ErrMalformedDocument, len(doc.Paragraphs))
	}

	intro := doc.Paragraphs[introParagraph]

	var year *int

	if s := yearRegex.FindString(intro); s != "" {
		y, err := strconv.Atoi(s)
		if err != nil {
			return nil, "", fmt.Errorf("parsing year %q: %w", s, err)
		}

		year = &y
	}

	start := strings.Index(intro, grantNameOpenQuote)
	if start == -1 {
		return nil, "", fmt.Errorf("%w: no grant name in %q", ErrMalformedDocument, intro)
	}

	name := intro[start+len(grantNameOpenQuote):]
	if end := strings.Index(name, grantNameEndQuote); end != -1 {
		name = name[:end]
	}

	return year, name, nil
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}

	return strings.ReplaceAll(row[i], "\n", "")
}

// Extract returns the records of doc. The header row of the first table is
// never a record, nor are the rows repeating it in later tables. A row whose
// first cell is empty continues the previous one: its texts are appended to
// the previous record, which is replaced by the merged one.
func (e *Extractor) Extract(ctx context.Context, doc *Document) ([]*GrantRecord, error) {
	year, grantName, err := grantHeading(doc)
	if err != nil {
		return nil, err
	}

	if len(doc.Tables) == 0 || len(doc.Tables[0].Rows) == 0 {
		return nil, fmt.Errorf("%w: no tables", ErrUnrecognizedColumns)
	}

	header := doc.Tables[0].Rows[0]

	layout, err := DetectColumns(header)
	if err != nil {
		return nil, err
	}

	var records []*GrantRecord

	for _, table := range doc.Tables {
		for _, row := range table.Rows {
			if slices.Equal(row, header) {
				continue
			}

			projectName := cell(row, layout.ProjectName)
			organization := cell(row, layout.Organization)

			if len(records) > 0 && (len(row) == 0 || row[0] == "") {
				last := records[len(records)-1]
				projectName = last.ProjectName + projectName
				organization = last.Organization + organization
				records = records[:len(records)-1]
			}

			shortName := e.normalizer.Normalize(organization)

			point, err := e.resolver.Resolve(ctx, shortName)
			if err != nil {
				return nil, fmt.Errorf("resolving %q: %w", shortName, err)
			}

			records = append(records, &GrantRecord{
				ProjectName:           projectName,
				GrantName:             grantName,
				Year:                  year,
				Organization:          organization,
				OrganizationShortName: shortName,
				Point:                 point,
				Source:                doc.Source,
			})
		}
	}

	return records, nil
}
