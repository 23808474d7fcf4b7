// Stridemap - Fitness Activity Maps
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stridemap

package strava

import (
	"context"
	"errors"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/stridemap/internal/activity"
	"github.com/tomtom215/stridemap/internal/breaker"
)

var _ API = (*CircuitBreakerClient)(nil)

// CircuitBreakerClient guards Client with a circuit breaker named "strava-api".
// 401 and 404 answers are the caller's problem, not Strava's, and 429 means
// Strava is healthy but the app is over budget. None of them count towards
// opening the circuit.
type CircuitBreakerClient struct {
	client *Client
	cb     *breaker.Breaker
}

// NewCircuitBreakerClient wraps client.
func NewCircuitBreakerClient(client *Client) *CircuitBreakerClient {
	return &CircuitBreakerClient{
		client: client,
		cb: breaker.New(breaker.Settings{
			Name:         "strava-api",
			IsSuccessful: isBreakerSuccess,
		}),
	}
}

func isBreakerSuccess(err error) bool {
	return err == nil ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, context.Canceled)
}

// State returns the breaker state.
func (cbc *CircuitBreakerClient) State() gobreaker.State {
	return cbc.cb.State()
}

func (cbc *CircuitBreakerClient) GetAthlete(ctx context.Context, accessToken string) (*Athlete, error) {
	result, err := cbc.cb.Execute(func() (interface{}, error) {
		return cbc.client.GetAthlete(ctx, accessToken)
	})
	if err != nil {
		return nil, err
	}
	athlete, ok := result.(*Athlete)
	if !ok {
		return nil, errors.New("circuit breaker: unexpected result type for GetAthlete")
	}
	return athlete, nil
}

func (cbc *CircuitBreakerClient) ListActivities(ctx context.Context, accessToken string) ([]activity.Activity, error) {
	result, err := cbc.cb.Execute(func() (interface{}, error) {
		return cbc.client.ListActivities(ctx, accessToken)
	})
	if err != nil {
		return nil, err
	}
	list, ok := result.([]activity.Activity)
	if !ok {
		return nil, errors.New("circuit breaker: unexpected result type for ListActivities")
	}
	return list, nil
}

func (cbc *CircuitBreakerClient) GetStreams(ctx context.Context, accessToken string, activityID int64, resolution string) (*Streams, error) {
	result, err := cbc.cb.Execute(func() (interface{}, error) {
		return cbc.client.GetStreams(ctx, accessToken, activityID, resolution)
	})
	if err != nil {
		return nil, err
	}
	streams, ok := result.(*Streams)
	if !ok {
		return nil, errors.New("circuit breaker: unexpected result type for GetStreams")
	}
	return streams, nil
}
