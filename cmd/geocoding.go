// Copyright 2025 The GrantMap Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/grantmap/grantmap/geocode"
	"github.com/grantmap/grantmap/grants"
	"github.com/grantmap/grantmap/utils/httputils"
)

const (
	providerAuto      = "auto"
	providerNominatim = "nominatim"
	providerGoogle    = "google"
	providerNone      = "none"
)

type geocodingOptions struct {
	Provider          string
	Language          string
	Candidates        int
	RequestsPerSecond float64
	HTTPTimeout       time.Duration
	EnableHTTPTrace   bool
	EnableBodyTrace   bool
}

var geoOptions = &geocodingOptions{}

func addGeocodingFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(
		&geoOptions.Provider,
		"geocoder",
		providerAuto,
		"Primary geocoder: auto, nominatim, google or none",
	)
	cmd.Flags().StringVar(
		&geoOptions.Language,
		"language",
		geocode.DefaultLanguage,
		"Language of the geocoder results and of the Wikipedia fallback",
	)
	cmd.Flags().IntVar(
		&geoOptions.Candidates,
		"wikipedia-candidates",
		geocode.EncyclopediaCandidates,
		"Search results tried for coordinates in the Wikipedia fallback",
	)
	cmd.Flags().Float64Var(
		&geoOptions.RequestsPerSecond,
		"nominatim-rps",
		1,
		"Nominatim requests per second, zero disables the limiter",
	)
	cmd.Flags().DurationVar(
		&geoOptions.HTTPTimeout,
		"http-timeout",
		0,
		"HTTP client timeout, zero means none",
	)
	cmd.Flags().BoolVar(
		&geoOptions.EnableHTTPTrace,
		"trace-http",
		false,
		"Display HTTP requests-responses",
	)
	cmd.Flags().BoolVar(
		&geoOptions.EnableBodyTrace,
		"trace-http-body",
		false,
		"Display HTTP requests-responses bodies",
	)
}

func userAgent() string {
	if ua := os.Getenv("GRANTMAP_USER_AGENT"); ua != "" {
		return ua
	}

	return fmt.Sprintf("grantmap/%s (+https://github.com/grantmap/grantmap)", Version)
}

func googleAPIKey(ctx context.Context) (string, error) {
	if key := os.Getenv("GOOGLE_MAPS_API_KEY"); key != "" {
		return key, nil
	}

	log.Info().Msg("GOOGLE_MAPS_API_KEY is not set. Attempting to retrieve via ADC...")

	key, err := geocode.APIKeyFromADC(ctx, os.Getenv("GOOGLE_CLOUD_PROJECT"))
	if err != nil {
		return "", fmt.Errorf("GOOGLE_MAPS_API_KEY is not set and ADC failed: %w", err)
	}

	log.Info().Msg("Retrieved Google Maps API Key via ADC")

	return key, nil
}

// newGeocoder builds the primary geocoder, nil for the "none" provider.
func (o *geocodingOptions) newGeocoder(ctx context.Context) (geocode.Geocoder, error) {
	client := httputils.NewClient(o.clientOptions())

	provider := o.Provider
	if provider == providerAuto {
		provider = providerNominatim
		if os.Getenv("GOOGLE_MAPS_API_KEY") != "" {
			provider = providerGoogle
		}
	}

	switch provider {
	case providerNominatim:
		return geocode.NewNominatimGeocoder(client, geocode.NominatimOptions{
			BaseURL:           os.Getenv("GRANTMAP_NOMINATIM_URL"),
			Language:          o.Language,
			RequestsPerSecond: o.RequestsPerSecond,
		}), nil
	case providerGoogle:
		key, err := googleAPIKey(ctx)
		if err != nil {
			return nil, err
		}

		return geocode.NewGoogleMapsGeocoder(client, geocode.GoogleMapsOptions{
			APIKey:   key,
			Language: o.Language,
		}), nil
	case providerNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown geocoder %q", o.Provider)
	}
}

func (o *geocodingOptions) clientOptions() httputils.ClientOptions {
	options := httputils.ClientOptions{
		UserAgent: userAgent(),
		Timeout:   o.HTTPTimeout,
		TraceBody: o.EnableBodyTrace,
	}

	if o.EnableHTTPTrace || o.EnableBodyTrace {
		options.TraceWriter = os.Stderr
	}

	return options
}

// newResolver wires the primary geocoder and the Wikipedia fallback.
func (o *geocodingOptions) newResolver(ctx context.Context) (grants.Resolver, *geocode.Resolver, error) {
	geocoder, err := o.newGeocoder(ctx)
	if err != nil {
		return nil, nil, err
	}

	if geocoder == nil {
		return grants.Unresolved, nil, nil
	}

	wiki := geocode.NewWikipedia(httputils.NewClient(o.clientOptions()), geocode.WikipediaOptions{
		Language: o.Language,
		BaseURL:  os.Getenv("GRANTMAP_WIKIPEDIA_URL"),
	})

	resolver := geocode.NewResolver(geocoder, wiki, geocode.ResolverOptions{Candidates: o.Candidates})

	return resolver, resolver, nil
}

func logResolverMetrics(r *geocode.Resolver) {
	if r == nil {
		return
	}

	log.Info().Msgf(
		"Geocoding metrics - %d geocoder calls, %d cache hits, %d Wikipedia lookups, %d resolved by Wikipedia, %d unresolved",
		r.PrimaryCalls,
		r.Hits,
		r.FallbackLookups,
		r.ResolvedByFallback,
		r.Unresolved,
	)
}

// geocodingHint suggests a remedy for a geocoding error that aborted a run.
func geocodingHint(err error) string {
	switch {
	case err == nil:
		return ""
	case geocode.IsRateLimitError(err):
		return "The geocoding service is rate limiting requests, retry later or with a lower --nominatim-rps"
	case geocode.IsQuotaExceededError(err):
		return "The geocoding quota is exhausted or the key was denied, check GOOGLE_MAPS_API_KEY or the ADC project (GOOGLE_CLOUD_PROJECT)"
	case geocode.IsTimeoutError(err):
		return "A geocoding request timed out, retry with a larger --http-timeout"
	case geocode.IsNotFoundError(err):
		return "A geocoding endpoint was not found, check GRANTMAP_NOMINATIM_URL and GRANTMAP_WIKIPEDIA_URL"
	default:
		return ""
	}
}

func logGeocodingHint(err error) {
	if hint := geocodingHint(err); hint != "" {
		log.Warn().Msg(hint)
	}
}

var errNoGeocoder = errors.New("no geocoder configured")
