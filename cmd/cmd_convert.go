// Copyright 2025 The GrantMap Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/grantmap/grantmap/grants"
)

var convertOutput string

var convertCmd = &cobra.Command{
	Use:   "convert <pdf>",
	Short: "Converts a PDF and prints the resulting document as HTML",
	Long: `Converts a grant-award PDF with the same layout analysis used by update and
writes the document as HTML, without touching the document store. Useful to
check how a new PDF will be read.

Examples:
  grantmap convert projects/2023-1.pdf > 2023-1.html
  grantmap convert -o 2023-1.html projects/2023-1.pdf`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		doc, err := grants.PDFConverter{}.Convert(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		var w io.Writer = os.Stdout

		if convertOutput != "" {
			f, err := os.Create(convertOutput)
			if err != nil {
				return fmt.Errorf("creating %s: %w", convertOutput, err)
			}

			defer func() {
				if cerr := f.Close(); err == nil {
					err = cerr
				}
			}()

			w = f
		}

		bw := bufio.NewWriter(w)
		if err := grants.WriteHTML(bw, doc); err != nil {
			return err
		}

		return bw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(convertCmd)
	convertCmd.Flags().StringVarP(&convertOutput, "out", "o", "", "Write to a file instead of stdout")
}
