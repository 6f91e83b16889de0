// Copyright 2025 The GrantMap Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/grantmap/grantmap/grants"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Exports the dataset to other formats",
}

var exportXLSXCmd = &cobra.Command{
	Use:   "xlsx [file]",
	Short: "Writes the dataset as an Excel workbook",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) (err error) {
		out := "grants.xlsx"
		if len(args) > 0 {
			out = args[0]
		}

		ds, err := grants.LoadDataset(datasetPath)
		if err != nil {
			return err
		}

		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("creating %s: %w", out, err)
		}

		defer func() {
			if cerr := f.Close(); err == nil {
				err = cerr
			}
		}()

		if err := grants.ExportXLSX(f, ds.Records); err != nil {
			return err
		}

		log.Info().Str("file", out).Int("records", len(ds.Records)).Msg("Dataset exported")

		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.AddCommand(exportXLSXCmd)
}
