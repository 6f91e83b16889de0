// Copyright 2025 The GrantMap Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

type errorCheckTestCase struct {
	name string
	err  error
	want bool
}

func runErrorCheckTest(t *testing.T, tests []errorCheckTestCase, checkFunc func(error) bool) {
	t.Helper()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := checkFunc(tt.err); got != tt.want {
				t.Errorf("checkFunc() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsRateLimitError(t *testing.T) {
	runErrorCheckTest(t, []errorCheckTestCase{
		{"rate limit error type", &GeocodingError{Type: ErrorTypeRateLimit, Message: "slow down"}, true},
		{"message contains too many requests", errors.New("too many requests"), true},
		{"message contains 429", errors.New("nominatim returned status 429"), true},
		{"other error type", &GeocodingError{Type: ErrorTypeNotFound, Message: "not found"}, false},
		{"unrelated error", errors.New("some other error"), false},
	}, IsRateLimitError)
}

func TestIsQuotaExceededError(t *testing.T) {
	runErrorCheckTest(t, []errorCheckTestCase{
		{"quota error type", &GeocodingError{Type: ErrorTypeQuotaExceeded, Message: "quota"}, true},
		{"google status", errors.New("status OVER_QUERY_LIMIT"), true},
		{"unrelated error", errors.New("boom"), false},
	}, IsQuotaExceededError)
}

func TestIsTimeoutError(t *testing.T) {
	runErrorCheckTest(t, []errorCheckTestCase{
		{"timeout error type", &GeocodingError{Type: ErrorTypeTimeout, Message: "slow"}, true},
		{"deadline", fmt.Errorf("request: %w", errors.New("context deadline exceeded")), true},
		{"unrelated error", errors.New("boom"), false},
	}, IsTimeoutError)
}

func TestIsNotFoundError(t *testing.T) {
	runErrorCheckTest(t, []errorCheckTestCase{
		{"no match", noMatch("nominatim", "x"), true},
		{"wrapped no match", fmt.Errorf("geocoding: %w", ErrNoMatch), true},
		{"network", &GeocodingError{Type: ErrorTypeNetworkError, Message: "down"}, false},
	}, IsNotFoundError)
}

func TestNoMatchUnwrapsToSentinel(t *testing.T) {
	err := fmt.Errorf("resolving: %w", noMatch("google maps", "Ромашка"))

	if !errors.Is(err, ErrNoMatch) {
		t.Errorf("expected ErrNoMatch in chain: %v", err)
	}
}

func TestClassifyHTTPError(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorType
	}{
		{http.StatusTooManyRequests, ErrorTypeRateLimit},
		{http.StatusForbidden, ErrorTypeQuotaExceeded},
		{http.StatusBadRequest, ErrorTypeInvalidRequest},
		{http.StatusNotFound, ErrorTypeNotFound},
		{http.StatusBadGateway, ErrorTypeNetworkError},
		{http.StatusTeapot, ErrorTypeUnknown},
	}

	for _, tt := range tests {
		err := ClassifyHTTPError(tt.status, "test")
		if err.Type != tt.want {
			t.Errorf("status %d: got type %d, want %d", tt.status, err.Type, tt.want)
		}

		// a missing endpoint is a configuration problem, not an empty answer
		if errors.Is(err, ErrNoMatch) {
			t.Errorf("status %d must not be a no match", tt.status)
		}
	}
}
