// Copyright 2025 The GrantMap Authors
// SPDX-License-Identifier: Apache-2.0

package grants

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// ExportSheet is the name of the worksheet holding the dataset.
const ExportSheet = "grants"

func newWorkbook(records []*GrantRecord) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName(f.GetSheetName(0), ExportSheet); err != nil {
		return nil, closeOnError(f, fmt.Errorf("naming sheet: %w", err))
	}

	for i, h := range DatasetColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(ExportSheet, cell, h); err != nil {
			return nil, closeOnError(f, err)
		}
	}

	for i, rec := range records {
		r := i + 2
		values := []any{rec.ProjectName, rec.GrantName, nil, rec.Organization, rec.OrganizationShortName, nil, nil}

		if rec.Year != nil {
			values[2] = *rec.Year
		}

		if rec.Point != nil {
			values[5], values[6] = rec.Point.Lat, rec.Point.Lon
		}

		for col, v := range values {
			if v == nil {
				continue
			}

			cell, _ := excelize.CoordinatesToCellName(col+1, r)
			if err := f.SetCellValue(ExportSheet, cell, v); err != nil {
				return nil, closeOnError(f, fmt.Errorf("row %d: %w", r, err))
			}
		}
	}

	if err := f.SetPanes(ExportSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return nil, closeOnError(f, err)
	}

	return f, nil
}

func closeOnError(f *excelize.File, err error) error {
	if cerr := f.Close(); cerr != nil {
		return fmt.Errorf("%w (closing workbook: %v)", err, cerr)
	}

	return err
}

// ExportXLSX writes the records as a spreadsheet with the dataset columns.
func ExportXLSX(w io.Writer, records []*GrantRecord) error {
	f, err := newWorkbook(records)
	if err != nil {
		return fmt.Errorf("building workbook: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}

	return nil
}
