// Copyright 2025 The GrantMap Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"

	_ "github.com/duckdb/duckdb-go/v2" // register duckdb driver
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/grantmap/grantmap/grants"
)

var (
	updateOptions = &grants.Options{}
	columnPolicy  string
)

// openRepository opens the DuckDB mirror. It returns a nil repository when
// no database was requested.
func openRepository(ctx context.Context) (grants.GrantRepository, func(), error) {
	if duckdbPath == "" {
		return nil, func() {}, nil
	}

	db, err := sql.Open("duckdb", duckdbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}

	closeDB := func() {
		if err := db.Close(); err != nil {
			log.Error().Err(err).Msg("closing database")
		}
	}

	repo := grants.NewSQLGrantRepository(db)
	if err := repo.CreateSchema(ctx); err != nil {
		closeDB()

		return nil, nil, err
	}

	return repo, closeDB, nil
}

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Converts new PDFs and adds their grants to the dataset",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		policy, err := grants.ParseColumnPolicy(columnPolicy)
		if err != nil {
			return err
		}

		updateOptions.ColumnPolicy = policy
		updateOptions.Output = datasetPath

		resolver, metrics, err := geoOptions.newResolver(ctx)
		if err != nil {
			return err
		}

		repo, closeRepo, err := openRepository(ctx)
		if err != nil {
			return err
		}
		defer closeRepo()

		p := grants.NewPipeline(
			updateOptions,
			grants.PDFConverter{},
			grants.NewExtractor(grants.NewNormalizer(), resolver),
			repo,
		)
		err = p.Update(ctx)

		log.Info().Msgf(
			"Total metrics - %d converted, %d conversion errors, %d new records (%d geocoded) from %d documents, %d skipped",
			p.Metrics.Converted,
			p.Metrics.ConvertErrors,
			p.Metrics.NewRecords,
			p.Metrics.Geocoded,
			p.Metrics.SuccessfulDocs,
			p.Metrics.SkippedDocs,
		)
		logResolverMetrics(metrics)
		logGeocodingHint(err)

		return err
	},
}

func init() {
	rootCmd.AddCommand(updateCmd)
	updateCmd.Flags().StringVar(
		&updateOptions.PDFDir,
		"pdf-dir",
		"projects",
		"Directory with the grant-award PDFs",
	)
	updateCmd.Flags().StringVar(
		&updateOptions.DocsDir,
		"docs-dir",
		"processed_project",
		"Directory with the converted documents",
	)
	updateCmd.Flags().StringVar(
		&columnPolicy,
		"column-policy",
		string(grants.ColumnPolicySkip),
		"What to do with documents whose columns are not recognized: skip or abort",
	)
	updateCmd.Flags().BoolVar(
		&updateOptions.Rebuild,
		"rebuild",
		false,
		"Extract every stored document again and replace the dataset",
	)
	updateCmd.Flags().BoolVar(
		&updateOptions.DryRun,
		"dry-run",
		false,
		"Don't persist any change",
	)
	addGeocodingFlags(updateCmd)
}
