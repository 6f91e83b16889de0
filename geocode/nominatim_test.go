// Copyright 2025 The GrantMap Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNominatimGeocoder(t *testing.T) {
	var gotQuery, gotLang, gotFormat string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)

		gotQuery = r.URL.Query().Get("q")
		gotLang = r.URL.Query().Get("accept-language")
		gotFormat = r.URL.Query().Get("format")

		w.Header().Set("Content-Type", "application/json")

		if gotQuery == "nowhere" {
			_, _ = w.Write([]byte(`[]`))

			return
		}

		_, _ = w.Write([]byte(`[{"lat":"55.7033","lon":"37.5302","display_name":"МГУ, Москва","importance":0.71}]`))
	}))
	defer srv.Close()

	g := NewNominatimGeocoder(srv.Client(), NominatimOptions{BaseURL: srv.URL + "/", Language: "ru"})

	res, err := g.Geocode(context.Background(), "МГУ")
	require.NoError(t, err)
	assert.Equal(t, "МГУ", gotQuery)
	assert.Equal(t, "ru", gotLang)
	assert.Equal(t, "jsonv2", gotFormat)
	assert.InDelta(t, 55.7033, res.Latitude, 1e-9)
	assert.InDelta(t, 37.5302, res.Longitude, 1e-9)
	assert.Equal(t, "high", res.Confidence)
	assert.Equal(t, "nominatim", res.Provider)

	_, err = g.Geocode(context.Background(), "nowhere")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoMatch))
}

func TestNominatimGeocoder_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	g := NewNominatimGeocoder(srv.Client(), NominatimOptions{BaseURL: srv.URL})

	_, err := g.Geocode(context.Background(), "МГУ")
	require.Error(t, err)
	assert.True(t, IsRateLimitError(err))
	assert.False(t, errors.Is(err, ErrNoMatch))
}

func TestNominatimGeocoder_LimiterHonorsContext(t *testing.T) {
	g := NewNominatimGeocoder(http.DefaultClient, NominatimOptions{BaseURL: "http://127.0.0.1:1", RequestsPerSecond: 0.001})

	// drain the single token
	require.True(t, g.limiter.Allow())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Geocode(ctx, "МГУ")
	require.Error(t, err)
}
