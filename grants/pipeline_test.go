// Copyright 2025 The GrantMap Authors
// SPDX-License-Identifier: Apache-2.0

package grants

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grantmap/grantmap/spatial"
)

// fakeConverter serves canned documents keyed by stem.
type fakeConverter struct {
	docs  map[string]*Document
	calls []string
}

func (c *fakeConverter) Convert(_ context.Context, path string) (*Document, error) {
	stem := Stem(path)
	c.calls = append(c.calls, stem)

	doc, ok := c.docs[stem]
	if !ok {
		return nil, errors.New("broken pdf")
	}

	return doc, nil
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o644))
}

type pipelineTest struct {
	options   *Options
	converter *fakeConverter
	resolver  *countingResolver
}

func setupPipelineTest(t *testing.T, stems ...string) *pipelineTest {
	t.Helper()

	root := t.TempDir()
	options := &Options{
		PDFDir:  filepath.Join(root, "pdf"),
		DocsDir: filepath.Join(root, "docs"),
		Output:  filepath.Join(root, "grants.csv"),
	}
	require.NoError(t, os.MkdirAll(options.PDFDir, 0o755))
	require.NoError(t, os.MkdirAll(options.DocsDir, 0o755))

	for _, stem := range stems {
		touch(t, filepath.Join(options.PDFDir, stem+".pdf"))
	}

	return &pipelineTest{
		options:   options,
		converter: &fakeConverter{docs: map[string]*Document{}},
		resolver: &countingResolver{points: map[string]*spatial.Point{
			"Ромашка": {Lat: 55.75, Lon: 37.61},
		}},
	}
}

func (pt *pipelineTest) pipeline() *Pipeline {
	return NewPipeline(pt.options, pt.converter, NewExtractor(nil, pt.resolver), nil)
}

func simpleDocument(projects ...string) *Document {
	rows := [][]string{header}
	for _, p := range projects {
		rows = append(rows, []string{"1", p, "Иванов И.И.", "Общество с ограниченной ответственностью «Ромашка»"})
	}

	return grantDocument(Table{Rows: rows})
}

func projectNames(records []*GrantRecord) []string {
	var ret []string
	for _, r := range records {
		ret = append(ret, r.ProjectName)
	}

	return ret
}

func TestPipeline_Update(t *testing.T) {
	ctx := context.Background()
	pt := setupPipelineTest(t, "2022-1")
	pt.converter.docs["2022-1"] = simpleDocument("Старый")

	p := pt.pipeline()
	require.NoError(t, p.Update(ctx))
	assert.Equal(t, Metrics{
		ConvertMetrics: ConvertMetrics{Converted: 1},
		ExtractMetrics: ExtractMetrics{NewRecords: 1, Geocoded: 1, SuccessfulDocs: 1},
	}, p.Metrics)

	// a new PDF arrives; only it is converted and its records go first
	touch(t, filepath.Join(pt.options.PDFDir, "2023-1.pdf"))
	pt.converter.docs["2023-1"] = simpleDocument("Новый 1", "Новый 2")
	pt.converter.calls = nil

	p = pt.pipeline()
	require.NoError(t, p.Update(ctx))
	assert.Equal(t, []string{"2023-1"}, pt.converter.calls)

	ds, err := LoadDataset(pt.options.Output)
	require.NoError(t, err)
	assert.Equal(t, []string{"Новый 1", "Новый 2", "Старый"}, projectNames(ds.Records))

	stored, err := p.Store().ExistingDocuments()
	require.NoError(t, err)
	assert.Equal(t, []string{"2022-1", "2023-1"}, stored)

	// nothing new: no conversion, dataset unchanged
	pt.converter.calls = nil
	require.NoError(t, pt.pipeline().Update(ctx))
	assert.Empty(t, pt.converter.calls)

	ds, err = LoadDataset(pt.options.Output)
	require.NoError(t, err)
	assert.Len(t, ds.Records, 3)
}

func TestPipeline_SkipsMalformedAndUnrecognized(t *testing.T) {
	pt := setupPipelineTest(t, "a", "b", "c")
	pt.converter.docs["a"] = &Document{Paragraphs: []string{"ПРИКАЗ"}}
	pt.converter.docs["b"] = grantDocument(Table{Rows: [][]string{{"№", "Руководитель"}}})
	pt.converter.docs["c"] = simpleDocument("Проект")

	p := pt.pipeline()
	require.NoError(t, p.Update(context.Background()))
	assert.Equal(t, 2, p.Metrics.SkippedDocs)
	assert.Equal(t, 1, p.Metrics.SuccessfulDocs)

	// skipped documents are stored anyway so they are not retried
	stored, err := p.Store().ExistingDocuments()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, stored)
}

func TestPipeline_AbortOnUnrecognizedColumns(t *testing.T) {
	pt := setupPipelineTest(t, "b")
	pt.options.ColumnPolicy = ColumnPolicyAbort
	pt.converter.docs["b"] = grantDocument(Table{Rows: [][]string{{"№", "Руководитель"}}})

	p := pt.pipeline()
	err := p.Update(context.Background())
	require.ErrorIs(t, err, ErrUnrecognizedColumns)

	// nothing persisted, the next run starts over
	_, statErr := os.Stat(pt.options.Output)
	assert.True(t, os.IsNotExist(statErr))

	stored, err := p.Store().ExistingDocuments()
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestPipeline_ConversionErrorKeepsOthers(t *testing.T) {
	pt := setupPipelineTest(t, "broken", "good")
	pt.converter.docs["good"] = simpleDocument("Проект")

	p := pt.pipeline()
	err := p.Update(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
	assert.Equal(t, 1, p.Metrics.ConvertErrors)

	ds, err := LoadDataset(pt.options.Output)
	require.NoError(t, err)
	assert.Len(t, ds.Records, 1)

	exists, err := p.Store().Exists("broken")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestPipeline_DryRun(t *testing.T) {
	pt := setupPipelineTest(t, "2023-1")
	pt.options.DryRun = true
	pt.converter.docs["2023-1"] = simpleDocument("Проект")

	p := pt.pipeline()
	require.NoError(t, p.Update(context.Background()))
	assert.Equal(t, 1, p.Metrics.NewRecords)

	_, err := os.Stat(pt.options.Output)
	assert.True(t, os.IsNotExist(err))
}

func TestPipeline_Rebuild(t *testing.T) {
	ctx := context.Background()
	pt := setupPipelineTest(t, "2022-1")
	pt.converter.docs["2022-1"] = simpleDocument("Старый")
	require.NoError(t, pt.pipeline().Update(ctx))

	touch(t, filepath.Join(pt.options.PDFDir, "2023-1.pdf"))
	pt.converter.docs["2023-1"] = simpleDocument("Новый")
	pt.options.Rebuild = true

	p := pt.pipeline()
	require.NoError(t, p.Update(ctx))
	assert.Equal(t, 2, p.Metrics.SuccessfulDocs)

	ds, err := LoadDataset(pt.options.Output)
	require.NoError(t, err)
	assert.Equal(t, []string{"Новый", "Старый"}, projectNames(ds.Records))
}

func TestPipeline_MirrorsToRepository(t *testing.T) {
	ctx := context.Background()
	pt := setupPipelineTest(t, "2023-1")
	pt.converter.docs["2023-1"] = simpleDocument("П1", "П2")

	repo := setupTestRepository(t)
	p := NewPipeline(pt.options, pt.converter, NewExtractor(nil, pt.resolver), repo)
	require.NoError(t, p.Update(ctx))

	docs, err := repo.ExtractedDocuments(ctx)
	require.NoError(t, err)
	assert.True(t, docs["2023-1"])

	records, err := repo.Grants(ctx, GrantQuery{})
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestParseColumnPolicy(t *testing.T) {
	p, err := ParseColumnPolicy("abort")
	require.NoError(t, err)
	assert.Equal(t, ColumnPolicyAbort, p)

	_, err = ParseColumnPolicy("ignore")
	assert.Error(t, err)
}

// failingRepository fails every mirror write.
type failingRepository struct {
	GrantRepository
}

func (failingRepository) SaveGrants(context.Context, string, []*GrantRecord) error {
	return errors.New("duckdb down")
}

func TestPipeline_MirrorFailureDoesNotDuplicate(t *testing.T) {
	ctx := context.Background()
	pt := setupPipelineTest(t, "a")
	pt.converter.docs["a"] = simpleDocument("Проект")

	p := NewPipeline(pt.options, pt.converter, NewExtractor(nil, pt.resolver), failingRepository{})
	err := p.Update(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duckdb down")

	// the dataset and the document store are consistent despite the mirror
	require.NoError(t, pt.pipeline().Update(ctx))
	assert.Equal(t, []string{"a"}, pt.converter.calls)

	ds, err := LoadDataset(pt.options.Output)
	require.NoError(t, err)
	assert.Len(t, ds.Records, 1)
}
