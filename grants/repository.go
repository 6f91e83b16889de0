// Copyright 2025 The GrantMap Authors
// SPDX-License-Identifier: Apache-2.0

package grants

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/grantmap/grantmap/spatial"
)

// GrantRepository mirrors the dataset into a database.
type GrantRepository interface {
	GrantSource
	// CreateSchema creates the database schema.
	CreateSchema(ctx context.Context) error
	// SaveGrants replaces the records of a source document.
	SaveGrants(ctx context.Context, source string, records []*GrantRecord) error
	// ExtractedDocuments returns the sources that have records.
	ExtractedDocuments(ctx context.Context) (map[string]bool, error)
}

type sqlGrantRepository struct {
	db *sql.DB
}

// NewSQLGrantRepository returns a repository over a DuckDB connection.
func NewSQLGrantRepository(db *sql.DB) GrantRepository {
	return &sqlGrantRepository{db: db}
}

func (r *sqlGrantRepository) CreateSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS grants (
			doc_source VARCHAR NOT NULL,
			record_id INTEGER NOT NULL,
			project_name VARCHAR,
			grant_name VARCHAR,
			year USMALLINT,
			organization VARCHAR,
			organization_short_name VARCHAR,
			lat DOUBLE,
			lon DOUBLE,
			h3_res1 UBIGINT,
			h3_res2 UBIGINT,
			h3_res3 UBIGINT,
			h3_res4 UBIGINT,
			h3_res5 UBIGINT,
			h3_res6 UBIGINT,
			h3_res7 UBIGINT,
			h3_res8 UBIGINT
		);
	`)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	return nil
}

func (r *sqlGrantRepository) ExtractedDocuments(ctx context.Context) (map[string]bool, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT DISTINCT doc_source FROM grants")
	if err != nil {
		return nil, fmt.Errorf("querying existing documents: %w", err)
	}
	defer rows.Close()

	ret := make(map[string]bool)

	for rows.Next() {
		var source string
		if err := rows.Scan(&source); err != nil {
			return nil, fmt.Errorf("scanning existing document: %w", err)
		}

		ret[source] = true
	}

	return ret, rows.Err()
}

func nve(v string) any {
	if v == "" {
		return nil
	}

	return v
}

func (r *sqlGrantRepository) SaveGrants(ctx context.Context, source string, records []*GrantRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction for %s: %w", source, err)
	}

	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			log.Error().Err(err).Str("source", source).Msg("failed to rollback transaction")
		}
	}()

	if _, err := tx.ExecContext(ctx, "DELETE FROM grants WHERE doc_source = ?", source); err != nil {
		return fmt.Errorf("deleting records for %s: %w", source, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO grants (
			doc_source, record_id, project_name, grant_name, year,
			organization, organization_short_name, lat, lon,
			h3_res1, h3_res2, h3_res3, h3_res4, h3_res5, h3_res6, h3_res7, h3_res8
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for i, record := range records {
		var year, lat, lon any
		if record.Year != nil {
			year = *record.Year
		}

		cells := make([]any, spatial.MaxH3Resolution)

		if record.Point != nil {
			lat, lon = record.Point.Lat, record.Point.Lon

			h3Cells, err := record.Point.H3Cells()
			if err != nil {
				return fmt.Errorf("record %d of %s: %w", i, source, err)
			}

			for j, c := range h3Cells {
				cells[j] = c
			}
		}

		args := []any{
			source,
			i,
			record.ProjectName,
			record.GrantName,
			year,
			nve(record.Organization),
			nve(record.OrganizationShortName),
			lat,
			lon,
		}

		if _, err := stmt.ExecContext(ctx, append(args, cells...)...); err != nil {
			return fmt.Errorf("inserting record for %s: %w", source, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing %s: %w", source, err)
	}

	return nil
}

// bounding box of a circle, used to narrow the scan before the exact distance.
func boundingBox(p *spatial.Point, radius float64) (minLat, maxLat, minLon, maxLon float64) {
	const metersPerDegree = 111_320.0

	dLat := radius / metersPerDegree
	dLon := 180.0

	if c := math.Cos(p.Lat * math.Pi / 180); c > 1e-6 {
		dLon = min(radius/(metersPerDegree*c), 180)
	}

	return p.Lat - dLat, p.Lat + dLat, p.Lon - dLon, p.Lon + dLon
}

func (r *sqlGrantRepository) Grants(ctx context.Context, q GrantQuery) ([]*GrantRecord, error) {
	query := `
		SELECT doc_source, project_name, grant_name, year, organization,
		       organization_short_name, lat, lon
		FROM grants
		WHERE 1 = 1`

	var args []any

	if q.Year != nil {
		query += " AND year = ?"

		args = append(args, *q.Year)
	}

	if q.Organization != "" {
		query += " AND (lower(organization) LIKE ? OR lower(organization_short_name) LIKE ?)"

		pattern := "%" + strings.ToLower(q.Organization) + "%"
		args = append(args, pattern, pattern)
	}

	if q.Near != nil {
		minLat, maxLat, minLon, maxLon := boundingBox(q.Near, q.RadiusMeters)
		query += " AND lat BETWEEN ? AND ? AND lon BETWEEN ? AND ?"

		args = append(args, minLat, maxLat, minLon, maxLon)
	}

	query += " ORDER BY doc_source DESC, record_id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying grants: %w", err)
	}
	defer rows.Close()

	var ret []*GrantRecord

	for rows.Next() {
		var (
			rec                GrantRecord
			year               sql.NullInt32
			org, short         sql.NullString
			project, grantName sql.NullString
			lat, lon           sql.NullFloat64
		)

		if err := rows.Scan(&rec.Source, &project, &grantName, &year, &org, &short, &lat, &lon); err != nil {
			return nil, fmt.Errorf("scanning grant: %w", err)
		}

		rec.ProjectName, rec.GrantName = project.String, grantName.String
		rec.Organization, rec.OrganizationShortName = org.String, short.String

		if year.Valid {
			y := int(year.Int32)
			rec.Year = &y
		}

		if lat.Valid && lon.Valid {
			rec.Point = &spatial.Point{Lat: lat.Float64, Lon: lon.Float64}
		}

		// the bounding box is only a prefilter
		if q.Near != nil && !q.Match(&rec) {
			continue
		}

		ret = append(ret, &rec)

		if q.Limit > 0 && len(ret) == q.Limit {
			break
		}
	}

	return ret, rows.Err()
}

func (r *sqlGrantRepository) Cells(ctx context.Context, res int) ([]CellCount, error) {
	if err := validResolution(res); err != nil {
		return nil, err
	}

	// res is validated, so the column name is safe to format
	column := fmt.Sprintf("h3_res%d", res)

	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(
		"SELECT %[1]s, count(*) FROM grants WHERE %[1]s IS NOT NULL GROUP BY %[1]s", column))
	if err != nil {
		return nil, fmt.Errorf("querying cells: %w", err)
	}
	defer rows.Close()

	var ret []CellCount

	for rows.Next() {
		var (
			cell  uint64
			count int
		)

		if err := rows.Scan(&cell, &count); err != nil {
			return nil, fmt.Errorf("scanning cell: %w", err)
		}

		ret = append(ret, CellCount{Cell: cellID(cell), Count: count})
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	sortCells(ret)

	return ret, nil
}
