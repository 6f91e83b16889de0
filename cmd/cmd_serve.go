// Copyright 2025 The GrantMap Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/grantmap/grantmap/grants"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Runs the read-only map API (local only)",
	Long: `Serves the dataset over HTTP for map clients:

  GET /api/grants          records as JSON (year, organization, lat, lon, radius, limit)
  GET /api/grants.geojson  geocoded records as a GeoJSON FeatureCollection
  GET /api/cells?res=5     H3 cells with their number of records

The CSV dataset is served unless --duckdb names a database filled by update.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		var source grants.GrantSource

		repo, closeRepo, err := openRepository(cmd.Context())
		if err != nil {
			return err
		}
		defer closeRepo()

		if repo != nil {
			source = repo
			log.Info().Str("database", duckdbPath).Msg("Serving DuckDB mirror")
		} else {
			ds, err := grants.LoadDataset(datasetPath)
			if err != nil {
				return err
			}

			source = ds
			log.Info().Str("dataset", datasetPath).Int("records", len(ds.Records)).Msg("Serving dataset")
		}

		log.Info().Msgf("Open http://%s/api/grants in your browser", serveAddr)

		return grants.NewServer(source).Run(serveAddr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "localhost:8080", "Listen address")
}
