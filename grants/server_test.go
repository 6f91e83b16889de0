// Copyright 2025 The GrantMap Authors
// SPDX-License-Identifier: Apache-2.0

package grants

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupServerTest(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	return NewServer(&Dataset{Records: sampleRecords()}).Router()
}

func get(t *testing.T, router *gin.Engine, url string) *httptest.ResponseRecorder {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	return w
}

func TestServer_ListGrants(t *testing.T) {
	router := setupServerTest(t)

	w := get(t, router, "/api/grants?year=2023")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Count  int            `json:"count"`
		Grants []*GrantRecord `json:"grants"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, "Ромашка", resp.Grants[0].OrganizationShortName)
	assert.Equal(t, moscow, resp.Grants[0].Point)

	w = get(t, router, "/api/grants?lat=59.93&lon=30.33&radius=2000")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, "П2", resp.Grants[0].ProjectName)

	w = get(t, router, "/api/grants?organization=nothing")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"count":0,"grants":[]}`, w.Body.String())
}

func TestServer_BadRequests(t *testing.T) {
	router := setupServerTest(t)

	for _, url := range []string{
		"/api/grants?year=abc",
		"/api/grants?lat=55",
		"/api/grants?lat=95&lon=0",
		"/api/grants?limit=-1",
		"/api/cells?res=0",
		"/api/cells?res=x",
	} {
		w := get(t, router, url)
		assert.Equal(t, http.StatusBadRequest, w.Code, url)
		assert.Contains(t, w.Body.String(), "error", url)
	}
}

func TestServer_GeoJSON(t *testing.T) {
	router := setupServerTest(t)

	w := get(t, router, "/api/grants.geojson")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/geo+json", w.Header().Get("Content-Type"))

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Geometry struct {
				Type        string     `json:"type"`
				Coordinates [2]float64 `json:"coordinates"`
			} `json:"geometry"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 2, "records without coordinates are left out")
	assert.Equal(t, [2]float64{moscow.Lon, moscow.Lat}, fc.Features[0].Geometry.Coordinates)
	assert.Equal(t, "П1", fc.Features[0].Properties["project_name"])
}

func TestServer_Cells(t *testing.T) {
	router := setupServerTest(t)

	w := get(t, router, "/api/cells?res=7")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Resolution int         `json:"resolution"`
		Cells      []CellCount `json:"cells"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 7, resp.Resolution)
	assert.Len(t, resp.Cells, 2)

	w = get(t, router, "/api/health")
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}
