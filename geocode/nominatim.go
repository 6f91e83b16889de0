// Copyright 2025 The GrantMap Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/time/rate"
)

// DefaultNominatimURL is the public OpenStreetMap instance.
const DefaultNominatimURL = "https://nominatim.openstreetmap.org"

// NominatimGeocoder queries the OpenStreetMap Nominatim search API.
type NominatimGeocoder struct {
	baseURL    string
	language   string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NominatimOptions configures NewNominatimGeocoder.
type NominatimOptions struct {
	// BaseURL of the instance, defaults to DefaultNominatimURL.
	BaseURL string
	// Language sent as accept-language, e.g. "ru".
	Language string
	// RequestsPerSecond spaces the requests. The public instance allows
	// one per second; zero or negative disables the limiter.
	RequestsPerSecond float64
}

// NewNominatimGeocoder creates a new Nominatim geocoder.
func NewNominatimGeocoder(httpClient *http.Client, options NominatimOptions) *NominatimGeocoder {
	baseURL := options.BaseURL
	if baseURL == "" {
		baseURL = DefaultNominatimURL
	}

	var limiter *rate.Limiter
	if options.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(options.RequestsPerSecond), 1)
	}

	return &NominatimGeocoder{
		baseURL:    strings.TrimRight(baseURL, "/"),
		language:   options.Language,
		httpClient: httpClient,
		limiter:    limiter,
	}
}

type nominatimPlace struct {
	Lat         string  `json:"lat"`
	Lon         string  `json:"lon"`
	DisplayName string  `json:"display_name"`
	Importance  float64 `json:"importance"`
}

func (g *NominatimGeocoder) Geocode(ctx context.Context, query string) (*GeocodingResult, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for nominatim rate limiter: %w", err)
		}
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "jsonv2")
	params.Set("limit", "1")

	if g.language != "" {
		params.Set("accept-language", g.language)
	}

	reqURL := g.baseURL + "/search?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building nominatim request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, &GeocodingError{
			Type:    ErrorTypeNetworkError,
			Message: "nominatim request failed",
			Err:     err,
		}
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, ClassifyHTTPError(resp.StatusCode, "nominatim")
	}

	var places []nominatimPlace
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return nil, fmt.Errorf("decoding nominatim response: %w", err)
	}

	if len(places) == 0 {
		return nil, noMatch("nominatim", query)
	}

	place := places[0]

	lat, err := strconv.ParseFloat(place.Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("nominatim latitude %q: %w", place.Lat, err)
	}

	lon, err := strconv.ParseFloat(place.Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("nominatim longitude %q: %w", place.Lon, err)
	}

	confidence := "low"

	switch {
	case place.Importance >= 0.6:
		confidence = "high"
	case place.Importance >= 0.3:
		confidence = "medium"
	}

	return &GeocodingResult{
		Latitude:    lat,
		Longitude:   lon,
		Confidence:  confidence,
		Provider:    "nominatim",
		DisplayName: place.DisplayName,
	}, nil
}
