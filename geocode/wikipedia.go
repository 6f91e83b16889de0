// Copyright 2025 The GrantMap Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/grantmap/grantmap/spatial"
)

var (
	// ErrPageNotFound is returned when the title does not name a page.
	ErrPageNotFound = errors.New("page not found")
	// ErrDisambiguation is returned for disambiguation pages.
	ErrDisambiguation = errors.New("disambiguation page")
	// ErrNoCoordinates is returned when the page carries no primary coordinates.
	ErrNoCoordinates = errors.New("page has no coordinates")
)

// Encyclopedia is the fallback source: a full text search over page titles and
// the coordinates of a page.
type Encyclopedia interface {
	Search(ctx context.Context, query string, limit int) ([]string, error)
	Coordinates(ctx context.Context, title string) (*spatial.Point, error)
}

// WikipediaOptions configures NewWikipedia.
type WikipediaOptions struct {
	// Language selects the wiki, e.g. "ru" for ru.wikipedia.org.
	Language string
	// BaseURL overrides the api.php endpoint derived from Language.
	BaseURL string
}

// Wikipedia talks to the MediaWiki action API.
type Wikipedia struct {
	endpoint   string
	httpClient *http.Client
}

// NewWikipedia creates a MediaWiki client.
func NewWikipedia(httpClient *http.Client, options WikipediaOptions) *Wikipedia {
	endpoint := options.BaseURL
	if endpoint == "" {
		lang := options.Language
		if lang == "" {
			lang = DefaultLanguage
		}

		endpoint = fmt.Sprintf("https://%s.wikipedia.org/w/api.php", lang)
	}

	return &Wikipedia{
		endpoint:   endpoint,
		httpClient: httpClient,
	}
}

func (w *Wikipedia) get(ctx context.Context, params url.Values, v any) error {
	params.Set("action", "query")
	params.Set("format", "json")
	params.Set("formatversion", "2")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("building wikipedia request: %w", err)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return &GeocodingError{
			Type:    ErrorTypeNetworkError,
			Message: "wikipedia request failed",
			Err:     err,
		}
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ClassifyHTTPError(resp.StatusCode, "wikipedia")
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding wikipedia response: %w", err)
	}

	return nil
}

type apiError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

func (e *apiError) err() error {
	if e == nil {
		return nil
	}

	return fmt.Errorf("wikipedia api error %s: %s", e.Code, e.Info)
}

// Search returns up to limit page titles ranked by relevance.
func (w *Wikipedia) Search(ctx context.Context, query string, limit int) ([]string, error) {
	params := url.Values{}
	params.Set("list", "search")
	params.Set("srsearch", query)
	params.Set("srlimit", strconv.Itoa(limit))
	params.Set("srprop", "")

	var resp struct {
		Error *apiError `json:"error"`
		Query struct {
			Search []struct {
				Title string `json:"title"`
			} `json:"search"`
		} `json:"query"`
	}

	if err := w.get(ctx, params, &resp); err != nil {
		return nil, err
	}

	if err := resp.Error.err(); err != nil {
		return nil, err
	}

	titles := make([]string, 0, len(resp.Query.Search))
	for _, hit := range resp.Query.Search {
		titles = append(titles, hit.Title)
	}

	return titles, nil
}

// Coordinates returns the primary coordinates of the page named title,
// following redirects.
func (w *Wikipedia) Coordinates(ctx context.Context, title string) (*spatial.Point, error) {
	params := url.Values{}
	params.Set("titles", title)
	params.Set("prop", "coordinates|pageprops")
	params.Set("ppprop", "disambiguation")
	params.Set("redirects", "1")

	var resp struct {
		Error *apiError `json:"error"`
		Query struct {
			Pages []struct {
				Title       string `json:"title"`
				Missing     bool   `json:"missing"`
				Invalid     bool   `json:"invalid"`
				Coordinates []struct {
					Lat     float64 `json:"lat"`
					Lon     float64 `json:"lon"`
					Primary bool    `json:"primary"`
				} `json:"coordinates"`
				PageProps map[string]string `json:"pageprops"`
			} `json:"pages"`
		} `json:"query"`
	}

	if err := w.get(ctx, params, &resp); err != nil {
		return nil, err
	}

	if err := resp.Error.err(); err != nil {
		return nil, err
	}

	if len(resp.Query.Pages) == 0 {
		return nil, fmt.Errorf("%q: %w", title, ErrPageNotFound)
	}

	page := resp.Query.Pages[0]

	switch {
	case page.Missing || page.Invalid:
		return nil, fmt.Errorf("%q: %w", title, ErrPageNotFound)
	case hasKey(page.PageProps, "disambiguation"):
		return nil, fmt.Errorf("%q: %w", title, ErrDisambiguation)
	case len(page.Coordinates) == 0:
		return nil, fmt.Errorf("%q: %w", title, ErrNoCoordinates)
	}

	coord := page.Coordinates[0]

	for _, c := range page.Coordinates {
		if c.Primary {
			coord = c

			break
		}
	}

	p, err := spatial.NewPoint(coord.Lat, coord.Lon)
	if err != nil {
		return nil, fmt.Errorf("%q: %w", strings.TrimSpace(page.Title), err)
	}

	return p, nil
}

func hasKey(m map[string]string, key string) bool {
	_, ok := m[key]

	return ok
}
