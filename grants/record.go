// Copyright 2025 The GrantMap Authors
// SPDX-License-Identifier: Apache-2.0

// Package grants turns grant-award documents into a geocoded dataset.
package grants

import (
	"context"
	"errors"

	"github.com/grantmap/grantmap/spatial"
)

var (
	// ErrMalformedDocument marks a document without the introductory
	// paragraph or the grant name. Such documents are skipped.
	ErrMalformedDocument = errors.New("malformed document")

	// ErrUnrecognizedColumns marks a document whose header lacks the project
	// name or organization column.
	ErrUnrecognizedColumns = errors.New("unrecognized columns")
)

// GrantRecord is one row of the dataset.
type GrantRecord struct {
	ProjectName           string         `json:"project_name"`
	GrantName             string         `json:"grant_name"`
	Year                  *int           `json:"year,omitempty"`
	Organization          string         `json:"organization"`
	OrganizationShortName string         `json:"organization_short_name"`
	Point                 *spatial.Point `json:"point,omitempty"`

	// Source is the stem of the document the record came from. It is not part
	// of the CSV dataset.
	Source string `json:"-"`
}

// Resolver maps an organization short name to coordinates; nil means
// unresolved.
type Resolver interface {
	Resolve(ctx context.Context, name string) (*spatial.Point, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, name string) (*spatial.Point, error)

func (f ResolverFunc) Resolve(ctx context.Context, name string) (*spatial.Point, error) {
	return f(ctx, name)
}

// Unresolved is a Resolver that never finds coordinates.
var Unresolved = ResolverFunc(func(context.Context, string) (*spatial.Point, error) {
	return nil, nil
})
