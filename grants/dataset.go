// Copyright 2025 The GrantMap Authors
// SPDX-License-Identifier: Apache-2.0

package grants

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/grantmap/grantmap/spatial"
)

// DatasetColumns is the CSV header of the dataset, in order.
var DatasetColumns = []string{
	"project_name",
	"grant_name",
	"year",
	"organization",
	"organization_short_name",
	"lat",
	"lon",
}

// Dataset is the whole CSV dataset held in memory.
type Dataset struct {
	path    string
	Records []*GrantRecord
}

// LoadDataset reads the dataset at path. A missing file is an empty dataset.
func LoadDataset(path string) (*Dataset, error) {
	ds := &Dataset{path: path}

	f, err := os.Open(filepath.Clean(path))
	if errors.Is(err, os.ErrNotExist) {
		return ds, nil
	} else if err != nil {
		return nil, fmt.Errorf("opening dataset: %w", err)
	}
	defer f.Close()

	ds.Records, err = ReadRecords(f)
	if err != nil {
		return nil, fmt.Errorf("reading dataset %s: %w", path, err)
	}

	return ds, nil
}

// Prepend adds records before the existing ones, so the latest documents come
// first.
func (ds *Dataset) Prepend(records []*GrantRecord) {
	ds.Records = append(records[:len(records):len(records)], ds.Records...)
}

// Save rewrites the whole dataset. The file is replaced atomically.
func (ds *Dataset) Save() (err error) {
	dir := filepath.Dir(ds.path)

	f, err := os.CreateTemp(dir, "."+filepath.Base(ds.path)+"-*")
	if err != nil {
		return fmt.Errorf("creating dataset: %w", err)
	}

	defer func() {
		if err != nil {
			err = errors.Join(err, os.Remove(f.Name()))
		}
	}()

	if err := WriteRecords(f, ds.Records); err != nil {
		return errors.Join(err, f.Close())
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("closing dataset: %w", err)
	}

	if err := os.Rename(f.Name(), ds.path); err != nil {
		return fmt.Errorf("replacing dataset: %w", err)
	}

	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WriteRecords writes the header and records as CSV.
func WriteRecords(w io.Writer, records []*GrantRecord) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(DatasetColumns); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for _, r := range records {
		row := []string{r.ProjectName, r.GrantName, "", r.Organization, r.OrganizationShortName, "", ""}

		if r.Year != nil {
			row[2] = strconv.Itoa(*r.Year)
		}

		if r.Point != nil {
			row[5] = formatFloat(r.Point.Lat)
			row[6] = formatFloat(r.Point.Lon)
		}

		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing record: %w", err)
		}
	}

	cw.Flush()

	if err := cw.Error(); err != nil {
		return fmt.Errorf("writing records: %w", err)
	}

	return nil
}

// ReadRecords parses a CSV dataset. Columns are located by name; unknown
// columns are ignored.
func ReadRecords(r io.Reader) ([]*GrantRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimPrefix(strings.TrimSpace(name), "\ufeff")] = i
	}

	for _, name := range DatasetColumns {
		if _, ok := index[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}

	var records []*GrantRecord

	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return nil, err
		}

		get := func(name string) string {
			if i := index[name]; i < len(row) {
				return row[i]
			}

			return ""
		}

		rec := &GrantRecord{
			ProjectName:           get("project_name"),
			GrantName:             get("grant_name"),
			Organization:          get("organization"),
			OrganizationShortName: get("organization_short_name"),
		}

		if s := strings.TrimSpace(get("year")); s != "" {
			// pandas writes integer columns with gaps as floats
			y, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: year %q: %w", line, s, err)
			}

			year := int(y)
			rec.Year = &year
		}

		lat, lon := strings.TrimSpace(get("lat")), strings.TrimSpace(get("lon"))
		if lat != "" && lon != "" {
			rec.Point, err = parsePoint(lat, lon)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
		}

		records = append(records, rec)
	}

	return records, nil
}

func parsePoint(lat, lon string) (*spatial.Point, error) {
	y, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return nil, fmt.Errorf("lat %q: %w", lat, err)
	}

	x, err := strconv.ParseFloat(lon, 64)
	if err != nil {
		return nil, fmt.Errorf("lon %q: %w", lon, err)
	}

	return spatial.NewPoint(y, x)
}
