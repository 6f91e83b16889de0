// Copyright 2025 The GrantMap Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/grantmap/grantmap/grants"
	"github.com/grantmap/grantmap/spatial"
)

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func printJSON(v any) error {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling json: %w", err)
	}

	fmt.Println(string(output))

	return nil
}

var debugCmd = &cobra.Command{
	Use:   "debug",
	Short: "Dev tools",
}

var debugNormalizeCmd = &cobra.Command{
	Use:   "normalize",
	Short: "Prints the short name of each organization read from stdin",
	Long: `Reads one organization name per line and prints it followed by the short
name used for geocoding.

$ echo 'ОБЩЕСТВО С ОГРАНИЧЕННОЙ ОТВЕТСТВЕННОСТЬЮ «РОМАШКА»' | grantmap debug normalize
ОБЩЕСТВО С ОГРАНИЧЕННОЙ ОТВЕТСТВЕННОСТЬЮ «РОМАШКА»	Ромашка
	`,
	Args: cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		input := os.Stdin
		if isTerminal(input) {
			fmt.Fprintln(os.Stderr, "Enter organization names, one per line…")
		}

		normalizer := grants.NewNormalizer()
		scanner := bufio.NewScanner(input)

		for scanner.Scan() {
			name := scanner.Text()
			fmt.Printf("%s\t%s\n", name, normalizer.Normalize(name))
		}

		if err := scanner.Err(); err != nil {
			return fmt.Errorf("reading input: %w", err)
		}

		return nil
	},
}

var debugGeocodeRaw bool

var debugGeocodeCmd = &cobra.Command{
	Use:   "geocode <name>",
	Short: "Resolves an organization name and prints the result as JSON",
	Long: `Resolves an organization name the way update does: the primary geocoder
first, Wikipedia when it has no match. With --raw the name is used as is,
otherwise it is normalized first.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		name := strings.Join(args, " ")

		if !debugGeocodeRaw {
			name = grants.NewNormalizer().Normalize(name)
		}

		_, resolver, err := geoOptions.newResolver(ctx)
		if err != nil {
			return err
		}

		if resolver == nil {
			return errNoGeocoder
		}

		point, err := resolver.Resolve(ctx, name)
		if err != nil {
			logGeocodingHint(err)

			return err
		}

		return printJSON(struct {
			Query      string         `json:"query"`
			Resolved   bool           `json:"resolved"`
			ByFallback bool           `json:"by_fallback"`
			Point      *spatial.Point `json:"point,omitempty"`
		}{
			Query:      name,
			Resolved:   point != nil,
			ByFallback: resolver.ResolvedByFallback > 0,
			Point:      point,
		})
	},
}

func init() {
	rootCmd.AddCommand(debugCmd)
	debugCmd.AddCommand(debugNormalizeCmd)
	debugCmd.AddCommand(debugGeocodeCmd)
	debugCmd.AddCommand(debugDocumentCmd)
	debugGeocodeCmd.Flags().BoolVar(&debugGeocodeRaw, "raw", false, "Don't normalize the name")
	addGeocodingFlags(debugGeocodeCmd)
	addGeocodingFlags(debugDocumentCmd)
}
