// Copyright 2025 The GrantMap Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// timeFormat of the log timestamps.
const timeFormat = "2006-01-02 15:04:05"

func init() {
	zerolog.TimeFieldFormat = timeFormat
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: timeFormat})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

var (
	verbose     bool
	datasetPath string
	duckdbPath  string
)

var rootCmd = &cobra.Command{
	Use:   "grantmap",
	Short: "geocoded dataset of research grant awards",
	Long: `
grantmap converts grant-award orders published as PDF into a CSV dataset of
funded projects, resolving every recipient organization to coordinates.
`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		if verbose {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		}

		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}

		return nil
	},
}

var Version = "dev"

func Execute(version string) {
	Version = version

	err := rootCmd.Execute()
	if err != nil {
		log.Error().Err(err).Msg("grantmap failed")
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(
		&datasetPath,
		"output",
		"grants.csv",
		"CSV dataset",
	)
	rootCmd.PersistentFlags().StringVar(
		&duckdbPath,
		"duckdb",
		"",
		"DuckDB database mirroring the dataset, disabled when empty",
	)
}
