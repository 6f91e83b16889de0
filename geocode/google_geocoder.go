// Copyright 2025 The GrantMap Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// DefaultGoogleMapsURL is the Google Maps Geocoding API endpoint.
const DefaultGoogleMapsURL = "https://maps.googleapis.com/maps/api/geocode/json"

// GoogleMapsGeocoder uses Google Maps Geocoding API.
type GoogleMapsGeocoder struct {
	apiKey     string
	endpoint   string
	language   string
	region     string
	httpClient *http.Client
}

// GoogleMapsOptions configures NewGoogleMapsGeocoder.
type GoogleMapsOptions struct {
	APIKey string
	// Endpoint defaults to DefaultGoogleMapsURL.
	Endpoint string
	// Language of the formatted addresses, e.g. "ru".
	Language string
	// Region biases the results, e.g. "ru".
	Region string
}

// NewGoogleMapsGeocoder creates a new Google Maps geocoder.
func NewGoogleMapsGeocoder(httpClient *http.Client, options GoogleMapsOptions) *GoogleMapsGeocoder {
	endpoint := options.Endpoint
	if endpoint == "" {
		endpoint = DefaultGoogleMapsURL
	}

	return &GoogleMapsGeocoder{
		apiKey:     options.APIKey,
		endpoint:   endpoint,
		language:   options.Language,
		region:     options.Region,
		httpClient: httpClient,
	}
}

type googleMapsResponse struct {
	Results []struct {
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
			LocationType string `json:"location_type"` // ROOFTOP, RANGE_INTERPOLATED, GEOMETRIC_CENTER, APPROXIMATE
		} `json:"geometry"`
		FormattedAddress string `json:"formatted_address"`
	} `json:"results"`
	Status       string `json:"status"` // OK, ZERO_RESULTS, etc.
	ErrorMessage string `json:"error_message"`
}

func (g *GoogleMapsGeocoder) Geocode(ctx context.Context, query string) (*GeocodingResult, error) {
	params := url.Values{}
	params.Set("address", query)
	params.Set("key", g.apiKey)

	if g.language != "" {
		params.Set("language", g.language)
	}

	if g.region != "" {
		params.Set("region", g.region)
	}

	reqURL := g.endpoint + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building google maps request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, &GeocodingError{
			Type:    ErrorTypeNetworkError,
			Message: "geocoding request failed",
			Err:     err,
		}
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, ClassifyHTTPError(resp.StatusCode, "google maps")
	}

	var gmResp googleMapsResponse
	if err := json.NewDecoder(resp.Body).Decode(&gmResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	switch gmResp.Status {
	case "OK":
	case "ZERO_RESULTS":
		return nil, noMatch("google maps", query)
	case "OVER_QUERY_LIMIT", "OVER_DAILY_LIMIT":
		return nil, &GeocodingError{
			Type:    ErrorTypeQuotaExceeded,
			Message: "google maps status: " + gmResp.Status,
		}
	case "REQUEST_DENIED", "INVALID_REQUEST":
		return nil, &GeocodingError{
			Type:    ErrorTypeInvalidRequest,
			Message: strings.TrimSpace("google maps status: " + gmResp.Status + " " + gmResp.ErrorMessage),
		}
	default:
		return nil, fmt.Errorf("google maps status: %s", gmResp.Status)
	}

	if len(gmResp.Results) == 0 {
		return nil, noMatch("google maps", query)
	}

	result := gmResp.Results[0]

	confidence := "low"

	switch result.Geometry.LocationType {
	case "ROOFTOP", "RANGE_INTERPOLATED":
		confidence = "high"
	case "GEOMETRIC_CENTER":
		confidence = "medium"
	case "APPROXIMATE":
		confidence = "low"
	}

	return &GeocodingResult{
		Latitude:    result.Geometry.Location.Lat,
		Longitude:   result.Geometry.Location.Lng,
		Confidence:  confidence,
		Provider:    "google_maps",
		DisplayName: result.FormattedAddress,
	}, nil
}
