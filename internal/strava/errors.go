// Stridemap - Fitness Activity Maps
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stridemap

package strava

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthorized means the access token was rejected (HTTP 401).
	// Callers drop the session and send the user back through login.
	ErrUnauthorized = errors.New("strava: unauthorized")

	// ErrNotFound means the activity or stream does not exist or is private.
	ErrNotFound = errors.New("strava: not found")

	// ErrRateLimited means Strava returned HTTP 429.
	ErrRateLimited = errors.New("strava: rate limited")
)

// maxErrorBody caps how much of an error response is kept.
const maxErrorBody = 512

// APIError is a non-2xx response from the Strava API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("strava api returned status %d: %s", e.StatusCode, e.Body)
}

// Is maps status codes onto the package sentinels so callers can use errors.Is.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrRateLimited:
		return e.StatusCode == http.StatusTooManyRequests
	}
	return false
}

// resultLabel classifies err for the strava_requests_total metric.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	default:
		return "error"
	}
}
