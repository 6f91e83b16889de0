// Copyright 2025 The GrantMap Authors
// SPDX-License-Identifier: Apache-2.0

package grants

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/grantmap/grantmap/spatial"
)

// GrantQuery filters grant records. Zero fields do not filter.
type GrantQuery struct {
	Year *int
	// Organization matches case-insensitively against the raw and the short
	// names.
	Organization string
	// Near keeps the records within RadiusMeters of the point.
	Near         *spatial.Point
	RadiusMeters float64
	Limit        int
}

// Match reports whether r satisfies q, ignoring Limit.
func (q *GrantQuery) Match(r *GrantRecord) bool {
	if q.Year != nil && (r.Year == nil || *r.Year != *q.Year) {
		return false
	}

	if q.Organization != "" {
		needle := strings.ToLower(q.Organization)
		if !strings.Contains(strings.ToLower(r.Organization), needle) &&
			!strings.Contains(strings.ToLower(r.OrganizationShortName), needle) {
			return false
		}
	}

	if q.Near != nil && (r.Point == nil || q.Near.HaversineDistance(r.Point) > q.RadiusMeters) {
		return false
	}

	return true
}

// CellCount is the number of geocoded records in an H3 cell.
type CellCount struct {
	Cell  string `json:"cell"`
	Count int    `json:"count"`
}

func cellID(c uint64) string {
	return strconv.FormatUint(c, 16)
}

func validResolution(res int) error {
	if res < 1 || res > spatial.MaxH3Resolution {
		return fmt.Errorf("resolution %d out of range [1, %d]", res, spatial.MaxH3Resolution)
	}

	return nil
}

func sortCells(cells []CellCount) {
	slices.SortFunc(cells, func(a, b CellCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}

		return strings.Compare(a.Cell, b.Cell)
	})
}

// GrantSource serves records to the map API.
type GrantSource interface {
	Grants(ctx context.Context, q GrantQuery) ([]*GrantRecord, error)
	Cells(ctx context.Context, res int) ([]CellCount, error)
}

// Grants filters the in-memory records.
func (ds *Dataset) Grants(_ context.Context, q GrantQuery) ([]*GrantRecord, error) {
	var ret []*GrantRecord

	for _, r := range ds.Records {
		if q.Limit > 0 && len(ret) == q.Limit {
			break
		}

		if q.Match(r) {
			ret = append(ret, r)
		}
	}

	return ret, nil
}

// Cells counts the geocoded records per H3 cell at resolution res.
func (ds *Dataset) Cells(_ context.Context, res int) ([]CellCount, error) {
	if err := validResolution(res); err != nil {
		return nil, err
	}

	counts := make(map[string]int)

	for _, r := range ds.Records {
		if r.Point == nil {
			continue
		}

		cells, err := r.Point.H3Cells()
		if err != nil {
			return nil, err
		}

		counts[cellID(cells[res-1])]++
	}

	ret := make([]CellCount, 0, len(counts))
	for cell, n := range counts {
		ret = append(ret, CellCount{Cell: cell, Count: n})
	}

	sortCells(ret)

	return ret, nil
}
