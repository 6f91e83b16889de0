// Copyright 2025 The GrantMap Authors
// SPDX-License-Identifier: Apache-2.0

package grants

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
)

// ColumnPolicy decides what happens to a document whose columns are not
// recognized.
type ColumnPolicy string

const (
	// ColumnPolicySkip skips the document.
	ColumnPolicySkip ColumnPolicy = "skip"
	// ColumnPolicyAbort aborts the run.
	ColumnPolicyAbort ColumnPolicy = "abort"
)

// ParseColumnPolicy validates a policy name.
func ParseColumnPolicy(s string) (ColumnPolicy, error) {
	switch p := ColumnPolicy(s); p {
	case ColumnPolicySkip, ColumnPolicyAbort:
		return p, nil
	default:
		return "", fmt.Errorf("unknown column policy %q (want %s or %s)", s, ColumnPolicySkip, ColumnPolicyAbort)
	}
}

// Options configures the pipeline.
type Options struct {
	// PDFDir holds the grant-award PDFs.
	PDFDir string

	// DocsDir holds the converted documents.
	DocsDir string

	// Output is the CSV dataset.
	Output string

	// ColumnPolicy for documents with unrecognized columns.
	ColumnPolicy ColumnPolicy

	// Rebuild extracts every stored document again and replaces the dataset
	// instead of adding to it.
	Rebuild bool

	// Dry run, don't persist any change
	DryRun bool
}

// ConvertMetrics tracks the conversion phase.
type ConvertMetrics struct {
	Converted     int
	ConvertErrors int
}

// Merge combines two ConvertMetrics.
func (m *ConvertMetrics) Merge(o *ConvertMetrics) *ConvertMetrics {
	m.Converted += o.Converted
	m.ConvertErrors += o.ConvertErrors

	return m
}

// ExtractMetrics tracks the extraction phase.
type ExtractMetrics struct {
	NewRecords     int
	Geocoded       int
	SuccessfulDocs int
	SkippedDocs    int
}

// Merge combines two ExtractMetrics.
func (m *ExtractMetrics) Merge(o *ExtractMetrics) *ExtractMetrics {
	m.NewRecords += o.NewRecords
	m.Geocoded += o.Geocoded
	m.SuccessfulDocs += o.SuccessfulDocs
	m.SkippedDocs += o.SkippedDocs

	return m
}

// Metrics collected during Update.
type Metrics struct {
	ConvertMetrics
	ExtractMetrics
}

// Merge combines the metrics from another Metrics instance into this one.
func (m *Metrics) Merge(other *Metrics) *Metrics {
	if other == nil {
		return m
	}

	m.ConvertMetrics.Merge(&other.ConvertMetrics)
	m.ExtractMetrics.Merge(&other.ExtractMetrics)

	return m
}

// Pipeline converts new PDFs, extracts their records and appends them to the
// dataset.
type Pipeline struct {
	options   *Options
	converter Converter
	store     *FileStore
	extractor *Extractor
	repo      GrantRepository
	Metrics   Metrics
}

// NewPipeline creates a pipeline. repo is optional.
func NewPipeline(options *Options, converter Converter, extractor *Extractor, repo GrantRepository) *Pipeline {
	if options == nil {
		options = &Options{}
	}

	if options.ColumnPolicy == "" {
		options.ColumnPolicy = ColumnPolicySkip
	}

	if converter == nil {
		converter = PDFConverter{}
	}

	return &Pipeline{
		options:   options,
		converter: converter,
		store:     NewFileStore(options.DocsDir),
		extractor: extractor,
		repo:      repo,
	}
}

// Store returns the document store.
func (p *Pipeline) Store() *FileStore {
	return p.store
}

// convertPending converts the PDFs without a stored document. Failed
// conversions are logged and reported in the returned error; the converted
// documents are returned either way.
func (p *Pipeline) convertPending(ctx context.Context) ([]*Document, error) {
	pending, err := p.store.PendingPDFs(p.options.PDFDir)
	if err != nil {
		return nil, err
	}

	if len(pending) == 0 {
		log.Info().Msg("Nothing to convert")

		return nil, nil
	}

	n := len(pending)

	var (
		docs []*Document
		errs []error
	)

	for i, path := range pending {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		log.Info().Msgf("[%d/%d] Converting %s", i+1, n, path)

		doc, err := p.converter.Convert(ctx, path)
		if err != nil {
			p.Metrics.ConvertErrors++

			errs = append(errs, fmt.Errorf("converting %s: %w", path, err))
			log.Error().Err(err).Msgf("[%d/%d] Conversion failed", i+1, n)

			continue
		}

		doc.Source = Stem(path)
		docs = append(docs, doc)
		p.Metrics.Converted++
	}

	log.Info().Msgf(
		"Conversion phase completed - %d successful, %d failed",
		p.Metrics.Converted,
		p.Metrics.ConvertErrors,
	)

	return docs, errors.Join(errs...)
}

// storedDocuments loads every stored document except the ones in skip.
func (p *Pipeline) storedDocuments(skip []*Document) ([]*Document, error) {
	stems, err := p.store.ExistingDocuments()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(skip))
	for _, d := range skip {
		seen[d.Source] = true
	}

	var docs []*Document

	for _, stem := range stems {
		if seen[stem] {
			continue
		}

		doc, err := p.store.GetDocument(stem)
		if err != nil {
			return nil, err
		}

		docs = append(docs, doc)
	}

	return docs, nil
}

// extractDocument returns the records of doc. A nil slice and a nil error
// mean the document was skipped.
func (p *Pipeline) extractDocument(ctx context.Context, doc *Document) ([]*GrantRecord, *ExtractMetrics, error) {
	records, err := p.extractor.Extract(ctx, doc)

	switch {
	case errors.Is(err, ErrMalformedDocument):
		log.Warn().Err(err).Str("document", doc.Source).Msg("Skipping malformed document")

		return nil, &ExtractMetrics{SkippedDocs: 1}, nil
	case errors.Is(err, ErrUnrecognizedColumns) && p.options.ColumnPolicy == ColumnPolicySkip:
		log.Warn().Err(err).Str("document", doc.Source).Msg("Skipping document")

		return nil, &ExtractMetrics{SkippedDocs: 1}, nil
	case err != nil:
		return nil, nil, fmt.Errorf("extracting %s: %w", doc.Source, err)
	}

	metrics := &ExtractMetrics{NewRecords: len(records), SuccessfulDocs: 1}

	for _, r := range records {
		if r.Point != nil {
			metrics.Geocoded++
		}
	}

	return records, metrics, nil
}

type extraction struct {
	doc     *Document
	records []*GrantRecord
}

func (p *Pipeline) extractDocuments(ctx context.Context, docs []*Document) ([]extraction, error) {
	n := len(docs)

	var bar *progressbar.ProgressBar
	if n > 0 && isatty.IsTerminal(os.Stderr.Fd()) {
		bar = progressbar.NewOptions(n,
			progressbar.OptionSetDescription("Extracting"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	ret := make([]extraction, 0, n)

	for i, doc := range docs {
		records, metrics, err := p.extractDocument(ctx, doc)
		if err != nil {
			return nil, err
		}

		p.Metrics.ExtractMetrics.Merge(metrics)
		ret = append(ret, extraction{doc: doc, records: records})

		if bar == nil {
			log.Info().Msgf("[%d/%d] Extracted %s - %d records", i+1, n, doc.Source, len(records))
		} else if err := bar.Add(1); err != nil {
			log.Debug().Err(err).Msg("updating progress bar")
		}
	}

	log.Info().Msgf(
		"Extraction phase complete - %d new records, %d geocoded, from %d documents, %d successful and %d skipped.",
		p.Metrics.NewRecords,
		p.Metrics.Geocoded,
		p.Metrics.SuccessfulDocs+p.Metrics.SkippedDocs,
		p.Metrics.SuccessfulDocs,
		p.Metrics.SkippedDocs,
	)

	return ret, nil
}

// Update runs the pipeline: convert the new PDFs, extract their records, add
// them to the dataset, store the converted documents and mirror the records
// into the repository. Documents are stored only once the dataset holding
// their records is written, so an aborted run is repeated in full by the next
// one. The mirror is secondary: its failures are reported after the documents
// are stored.
func (p *Pipeline) Update(ctx context.Context) error {
	ds, err := LoadDataset(p.options.Output)
	if err != nil {
		return err
	}

	log.Info().Str("dataset", p.options.Output).Int("records", len(ds.Records)).Msg("Updating dataset")

	converted, convertErr := p.convertPending(ctx)
	if convertErr != nil && len(converted) == 0 {
		return convertErr
	}

	docs := converted

	if p.options.Rebuild {
		stored, err := p.storedDocuments(converted)
		if err != nil {
			return fmt.Errorf("loading stored documents: %w", err)
		}

		docs = append(stored, converted...)
		ds.Records = nil
	}

	extractions, err := p.extractDocuments(ctx, docs)
	if err != nil {
		return errors.Join(err, convertErr)
	}

	for _, e := range extractions {
		ds.Prepend(e.records)
	}

	if p.options.DryRun {
		log.Info().Int("records", len(ds.Records)).Msg("Dry run, nothing saved")

		return convertErr
	}

	if err := ds.Save(); err != nil {
		return errors.Join(fmt.Errorf("saving dataset: %w", err), convertErr)
	}

	log.Info().Str("dataset", p.options.Output).Int("records", len(ds.Records)).Msg("Dataset saved")

	// the dataset holds the records now, so every converted document is stored
	// even if one of them fails
	var storeErrs []error

	for _, doc := range converted {
		if err := p.store.SaveDocument(doc); err != nil {
			storeErrs = append(storeErrs, fmt.Errorf("storing %s: %w", doc.Source, err))
		}
	}

	if len(storeErrs) > 0 {
		return errors.Join(convertErr, errors.Join(storeErrs...))
	}

	if p.repo == nil {
		return convertErr
	}

	var mirrorErrs []error

	for _, e := range extractions {
		if e.records == nil {
			continue
		}

		if err := p.repo.SaveGrants(ctx, e.doc.Source, e.records); err != nil {
			mirrorErrs = append(mirrorErrs, fmt.Errorf("mirroring %s: %w", e.doc.Source, err))
		}
	}

	if len(mirrorErrs) > 0 {
		log.Warn().Msg("The database mirror is behind the dataset, update --rebuild fills it again")
	}

	return errors.Join(convertErr, errors.Join(mirrorErrs...))
}
