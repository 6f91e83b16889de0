// Copyright 2025 The GrantMap Authors
// SPDX-License-Identifier: Apache-2.0

package grants

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/grantmap/grantmap/spatial"
)

const (
	defaultRadius     = 10_000.0
	defaultResolution = 5
)

// Server is a read-only HTTP API over the grants.
type Server struct {
	source GrantSource
}

// NewServer creates a server reading from source.
func NewServer(source GrantSource) *Server {
	return &Server{source: source}
}

// Router returns the gin engine with all the routes.
func (s *Server) Router() *gin.Engine {
	r := gin.Default()

	r.GET("/api/health", s.health)
	r.GET("/api/grants", s.listGrants)
	r.GET("/api/grants.geojson", s.grantsGeoJSON)
	r.GET("/api/cells", s.listCells)

	return r
}

// Run serves on addr until the listener fails.
func (s *Server) Run(addr string) error {
	return s.Router().Run(addr)
}

func (s *Server) health(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func parseFloatParam(ctx *gin.Context, name string) (float64, bool, error) {
	v := ctx.Query(name)
	if v == "" {
		return 0, false, nil
	}

	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false, fmt.Errorf("invalid %s parameter", name)
	}

	return f, true, nil
}

func parseGrantQuery(ctx *gin.Context) (GrantQuery, error) {
	q := GrantQuery{Organization: ctx.Query("organization")}

	if v := ctx.Query("year"); v != "" {
		year, err := strconv.Atoi(v)
		if err != nil {
			return q, errors.New("invalid year parameter")
		}

		q.Year = &year
	}

	if v := ctx.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			return q, errors.New("invalid limit parameter")
		}

		q.Limit = limit
	}

	lat, hasLat, err := parseFloatParam(ctx, "lat")
	if err != nil {
		return q, err
	}

	lon, hasLon, err := parseFloatParam(ctx, "lon")
	if err != nil {
		return q, err
	}

	if hasLat != hasLon {
		return q, errors.New("lat and lon go together")
	}

	if hasLat {
		q.Near, err = spatial.NewPoint(lat, lon)
		if err != nil {
			return q, err
		}

		q.RadiusMeters = defaultRadius

		radius, ok, err := parseFloatParam(ctx, "radius")
		if err != nil {
			return q, err
		}

		if ok {
			q.RadiusMeters = radius
		}
	}

	return q, nil
}

func (s *Server) grants(ctx *gin.Context) ([]*GrantRecord, bool) {
	q, err := parseGrantQuery(ctx)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return nil, false
	}

	records, err := s.source.Grants(ctx.Request.Context(), q)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return nil, false
	}

	return records, true
}

func (s *Server) listGrants(ctx *gin.Context) {
	records, ok := s.grants(ctx)
	if !ok {
		return
	}

	if records == nil {
		records = []*GrantRecord{}
	}

	ctx.JSON(http.StatusOK, gin.H{
		"count":  len(records),
		"grants": records,
	})
}

type geoJSONGeometry struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

type geoJSONFeature struct {
	Type       string          `json:"type"`
	Geometry   geoJSONGeometry `json:"geometry"`
	Properties *GrantRecord    `json:"properties"`
}

type geoJSONFeatureCollection struct {
	Type     string           `json:"type"`
	Features []geoJSONFeature `json:"features"`
}

func (s *Server) grantsGeoJSON(ctx *gin.Context) {
	records, ok := s.grants(ctx)
	if !ok {
		return
	}

	fc := geoJSONFeatureCollection{Type: "FeatureCollection", Features: []geoJSONFeature{}}

	for _, r := range records {
		if r.Point == nil {
			continue
		}

		fc.Features = append(fc.Features, geoJSONFeature{
			Type: "Feature",
			Geometry: geoJSONGeometry{
				Type:        "Point",
				Coordinates: [2]float64{r.Point.Lon, r.Point.Lat},
			},
			Properties: r,
		})
	}

	ctx.Header("Content-Type", "application/geo+json")
	ctx.JSON(http.StatusOK, fc)
}

func (s *Server) listCells(ctx *gin.Context) {
	res := defaultResolution

	if v := ctx.Query("res"); v != "" {
		var err error

		res, err = strconv.Atoi(v)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid res parameter"})

			return
		}
	}

	if err := validResolution(res); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	cells, err := s.source.Cells(ctx.Request.Context(), res)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	if cells == nil {
		cells = []CellCount{}
	}

	ctx.JSON(http.StatusOK, gin.H{"resolution": res, "cells": cells})
}
