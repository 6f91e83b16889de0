// Copyright 2025 The GrantMap Authors
// SPDX-License-Identifier: Apache-2.0

// Package geocode resolves organization names to coordinates.
package geocode

import "context"

// GeocodingResult represents a geocoding result from any provider.
type GeocodingResult struct {
	Latitude    float64
	Longitude   float64
	Confidence  string // high, medium, low
	Provider    string
	DisplayName string
}

// Geocoder is the primary map-geocoding collaborator. Implementations return
// the first candidate for a free-text query, or an error wrapping ErrNoMatch
// when the service has no candidate.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (*GeocodingResult, error)
}
