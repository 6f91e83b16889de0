// Copyright 2025 The GrantMap Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/grantmap/grantmap/spatial"
)

// DefaultLanguage of the encyclopedia and of the geocoder answers.
const DefaultLanguage = "ru"

// EncyclopediaCandidates is how many search hits are tried for coordinates.
const EncyclopediaCandidates = 5

// ResolverOptions configures NewResolver.
type ResolverOptions struct {
	// Candidates overrides EncyclopediaCandidates when positive.
	Candidates int
}

// Resolver maps organization short names to coordinates. It asks the primary
// geocoder first and falls back to the encyclopedia only when the geocoder
// had no match. Results, including "unresolved", are memoized for the
// lifetime of the instance.
type Resolver struct {
	geocoder     Geocoder
	encyclopedia Encyclopedia
	candidates   int

	cache map[string]*spatial.Point

	// Metrics
	Hits               int
	PrimaryCalls       int
	FallbackLookups    int
	ResolvedByFallback int
	Unresolved         int
}

// NewResolver creates a resolver with an empty cache.
func NewResolver(geocoder Geocoder, encyclopedia Encyclopedia, options ResolverOptions) *Resolver {
	candidates := options.Candidates
	if candidates <= 0 {
		candidates = EncyclopediaCandidates
	}

	return &Resolver{
		geocoder:     geocoder,
		encyclopedia: encyclopedia,
		candidates:   candidates,
		cache:        make(map[string]*spatial.Point),
	}
}

// Resolve returns the coordinates of name, or nil when neither source knows
// it. Errors other than the documented "no result" conditions are returned
// and not cached.
func (r *Resolver) Resolve(ctx context.Context, name string) (*spatial.Point, error) {
	if name == "" {
		return nil, nil
	}

	if p, ok := r.cache[name]; ok {
		r.Hits++

		return p, nil
	}

	p, err := r.resolve(ctx, name)
	if err != nil {
		return nil, err
	}

	if p == nil {
		r.Unresolved++
	}

	r.cache[name] = p

	return p, nil
}

func (r *Resolver) resolve(ctx context.Context, name string) (*spatial.Point, error) {
	r.PrimaryCalls++

	result, err := r.geocoder.Geocode(ctx, name)
	if err == nil {
		log.Debug().
			Str("name", name).
			Str("provider", result.Provider).
			Str("confidence", result.Confidence).
			Str("match", result.DisplayName).
			Msg("geocoded")

		p, err := spatial.NewPoint(result.Latitude, result.Longitude)
		if err != nil {
			return nil, fmt.Errorf("geocoding %q: %w", name, err)
		}

		return p, nil
	}

	if !errors.Is(err, ErrNoMatch) {
		return nil, fmt.Errorf("geocoding %q: %w", name, err)
	}

	if r.encyclopedia == nil {
		return nil, nil
	}

	r.FallbackLookups++

	titles, err := r.encyclopedia.Search(ctx, name, r.candidates)
	if err != nil {
		return nil, fmt.Errorf("searching encyclopedia for %q: %w", name, err)
	}

	for _, title := range titles {
		p, err := r.encyclopedia.Coordinates(ctx, title)

		switch {
		case err == nil:
			r.ResolvedByFallback++

			log.Debug().Str("name", name).Str("page", title).Msg("resolved through encyclopedia")

			return p, nil
		case errors.Is(err, ErrPageNotFound), errors.Is(err, ErrDisambiguation), errors.Is(err, ErrNoCoordinates):
			continue
		default:
			return nil, fmt.Errorf("encyclopedia page %q: %w", title, err)
		}
	}

	log.Debug().Str("name", name).Str("candidates", strings.Join(titles, "|")).Msg("unresolved")

	return nil, nil
}
