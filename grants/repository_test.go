// Copyright 2025 The GrantMap Authors
// SPDX-License-Identifier: Apache-2.0

package grants

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grantmap/grantmap/spatial"
)

var (
	moscow = &spatial.Point{Lat: 55.7558, Lon: 37.6173}
	spb    = &spatial.Point{Lat: 59.9343, Lon: 30.3351}
)

func sampleRecords() []*GrantRecord {
	return []*GrantRecord{
		{ProjectName: "П1", GrantName: "Г", Year: intPtr(2023), Organization: "ООО «Ромашка»", OrganizationShortName: "Ромашка", Point: moscow},
		{ProjectName: "П2", GrantName: "Г", Year: intPtr(2022), Organization: "Институт Х", OrganizationShortName: "Институт Х", Point: spb},
		{ProjectName: "П3", GrantName: "Г", Organization: "Завод", OrganizationShortName: "Завод"},
	}
}

func setupTestRepository(t *testing.T) GrantRepository {
	t.Helper()

	db, err := sql.Open("duckdb", "")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := NewSQLGrantRepository(db)
	require.NoError(t, repo.CreateSchema(context.Background()))

	return repo
}

func TestSQLGrantRepository_SaveGrants(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepository(t)

	require.NoError(t, repo.SaveGrants(ctx, "2023-1", sampleRecords()))

	// saving a source again replaces its records
	require.NoError(t, repo.SaveGrants(ctx, "2023-1", sampleRecords()[:2]))
	require.NoError(t, repo.SaveGrants(ctx, "2022-7", sampleRecords()[2:]))

	docs, err := repo.ExtractedDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"2023-1": true, "2022-7": true}, docs)

	all, err := repo.Grants(ctx, GrantQuery{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "2023-1", all[0].Source)
	assert.Equal(t, "П1", all[0].ProjectName)
	assert.Equal(t, 2023, *all[0].Year)
	assert.Equal(t, moscow, all[0].Point)
	assert.Nil(t, all[2].Year)
	assert.Nil(t, all[2].Point)
}

func TestSQLGrantRepository_Query(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepository(t)
	require.NoError(t, repo.SaveGrants(ctx, "2023-1", sampleRecords()))

	got, err := repo.Grants(ctx, GrantQuery{Year: intPtr(2022)})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "П2", got[0].ProjectName)

	got, err = repo.Grants(ctx, GrantQuery{Organization: "ромашка"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "П1", got[0].ProjectName)

	got, err = repo.Grants(ctx, GrantQuery{Near: &spatial.Point{Lat: 55.75, Lon: 37.62}, RadiusMeters: 10_000})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "П1", got[0].ProjectName)

	got, err = repo.Grants(ctx, GrantQuery{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestSQLGrantRepository_CellsMatchDataset(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepository(t)
	require.NoError(t, repo.SaveGrants(ctx, "a", sampleRecords()))
	require.NoError(t, repo.SaveGrants(ctx, "b", sampleRecords()[:1]))

	ds := &Dataset{Records: append(sampleRecords(), sampleRecords()[:1]...)}

	for res := 1; res <= spatial.MaxH3Resolution; res++ {
		fromDB, err := repo.Cells(ctx, res)
		require.NoError(t, err)

		fromCSV, err := ds.Cells(ctx, res)
		require.NoError(t, err)

		assert.Equal(t, fromCSV, fromDB, "resolution %d", res)

		// coarse cells may hold both cities
		if res >= 3 {
			require.Len(t, fromDB, 2)
			assert.Equal(t, 2, fromDB[0].Count)
		}
	}

	_, err := repo.Cells(ctx, 0)
	require.Error(t, err)
}
