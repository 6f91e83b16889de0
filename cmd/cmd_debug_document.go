// Copyright 2025 The GrantMap Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/grantmap/grantmap/grants"
)

var debugDocumentGeocode bool

// readDocument loads a PDF, a stored .html.gz document or plain HTML.
func readDocument(cmd *cobra.Command, args []string) (*grants.Document, error) {
	if len(args) == 0 {
		if isTerminal(os.Stdin) {
			fmt.Fprintln(os.Stderr, "Reading from stdin. Paste HTML and press Ctrl+D to finish.")
		}

		return grants.ReadHTML(os.Stdin, "stdin")
	}

	path := args[0]
	lower := strings.ToLower(path)

	if strings.HasSuffix(lower, ".pdf") {
		return grants.PDFConverter{}.Convert(cmd.Context(), path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	var r io.Reader = f

	source := filepath.Base(path)

	if strings.HasSuffix(lower, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", path, err)
		}
		defer gz.Close()

		r = gz
		source = strings.TrimSuffix(source, ".html.gz")
	}

	return grants.ReadHTML(r, source)
}

var debugDocumentCmd = &cobra.Command{
	Use:   "document [file]",
	Short: "Reads a grant-award document and prints its records as JSON.",
	Long: `Reads a document from a file or from stdin and prints the grant records
extracted from it as JSON. The file may be a PDF, a stored .html.gz document
or plain HTML. Organizations are geocoded only with --geocode.

Examples:
  grantmap debug document projects/2023-1.pdf
  grantmap debug document --geocode processed_project/2023-1.html.gz
  cat 2023-1.html | grantmap debug document`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := readDocument(cmd, args)
		if err != nil {
			return err
		}

		var resolver grants.Resolver = grants.Unresolved

		if debugDocumentGeocode {
			if resolver, _, err = geoOptions.newResolver(cmd.Context()); err != nil {
				return err
			}
		}

		records, err := grants.NewExtractor(grants.NewNormalizer(), resolver).Extract(cmd.Context(), doc)
		if err != nil {
			return fmt.Errorf("extracting document: %w", err)
		}

		return printJSON(records)
	},
}

func init() {
	debugDocumentCmd.Flags().BoolVar(&debugDocumentGeocode, "geocode", false, "Resolve the organizations")
}
