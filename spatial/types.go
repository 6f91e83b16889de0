// Copyright 2025 The GrantMap Authors
//
// SPDX-License-Identifier: Apache-2.0
package spatial

import (
	"fmt"
	"math"

	"github.com/uber/h3-go/v4"
)

const earthRadius = 6371e3 // meters

// MaxH3Resolution is the finest H3 resolution stored for each point.
const MaxH3Resolution = 8

// Point represents a geographical point with latitude and longitude.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// NewPoint validates the coordinates and returns a point.
func NewPoint(lat, lon float64) (*Point, error) {
	if math.IsNaN(lat) || math.IsNaN(lon) || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return nil, fmt.Errorf("spatial: coordinates out of range: %f, %f", lat, lon)
	}

	return &Point{Lat: lat, Lon: lon}, nil
}

// String returns a string representation of the Point.
func (p Point) String() string {
	return fmt.Sprintf("POINT(%f %f)", p.Lon, p.Lat)
}

// HaversineDistance calculates the distance between two points on Earth in meters.
func (p *Point) HaversineDistance(other *Point) float64 {
	lat1 := p.Lat * math.Pi / 180
	lat2 := other.Lat * math.Pi / 180
	dLat := (other.Lat - p.Lat) * math.Pi / 180
	dLon := (other.Lon - p.Lon) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadius * c
}

// H3Cells returns the H3 cell of the point for resolutions 1 to MaxH3Resolution.
// The cell for resolution r is at index r-1.
func (p *Point) H3Cells() ([MaxH3Resolution]uint64, error) {
	var cells [MaxH3Resolution]uint64

	latLng := h3.NewLatLng(p.Lat, p.Lon)
	for res := 1; res <= MaxH3Resolution; res++ {
		cell, err := h3.LatLngToCell(latLng, res)
		if err != nil {
			return cells, fmt.Errorf("error converting to h3 cell at res %d: %w", res, err)
		}

		cells[res-1] = uint64(cell)
	}

	return cells, nil
}
