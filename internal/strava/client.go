// Stridemap - Fitness Activity Maps
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stridemap

/*
Package strava is a small client for the Strava v3 REST API.

It covers the three calls the app needs:
  - GetAthlete: the authenticated athlete's profile
  - ListActivities: every activity, following pagination
  - GetStreams: latlng, altitude, distance and time samples for one activity

All outbound calls share one token-bucket limiter sized from
strava.requests_per_minute. CircuitBreakerClient wraps Client with a
gobreaker breaker; both satisfy API.

API Reference: https://developers.strava.com/docs/reference/
*/
package strava

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/stridemap/internal/activity"
	"github.com/tomtom215/stridemap/internal/metrics"
)

// API is implemented by Client and CircuitBreakerClient.
type API interface {
	GetAthlete(ctx context.Context, accessToken string) (*Athlete, error)
	ListActivities(ctx context.Context, accessToken string) ([]activity.Activity, error)
	GetStreams(ctx context.Context, accessToken string, activityID int64, resolution string) (*Streams, error)
}

var _ API = (*Client)(nil)

const (
	// perPage is the maximum page size Strava accepts.
	perPage = 200

	// maxPages bounds pagination at 10,000 activities.
	maxPages = 50
)

// Config configures a Client.
type Config struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerMinute int
	HTTPClient        *http.Client
}

// Client calls the Strava REST API on behalf of a user token.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient builds a Client. A nil HTTPClient gets one with cfg.Timeout.
func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 60
	}
	burst := rpm / 6
	if burst < 1 {
		burst = 1
	}

	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), burst),
	}
}

// Athlete is the subset of the athlete profile shown in the page header.
type Athlete struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
	City      string `json:"city"`
	Country   string `json:"country"`
	Profile   string `json:"profile_medium"`
}

// DisplayName returns "First Last", falling back to the username.
func (a Athlete) DisplayName() string {
	name := strings.TrimSpace(a.FirstName + " " + a.LastName)
	if name == "" {
		return a.Username
	}
	return name
}

// SummaryActivity is one element of GET /athlete/activities.
type SummaryActivity struct {
	ID             int64   `json:"id"`
	Name           string  `json:"name"`
	Type           string  `json:"type"`
	SportType      string  `json:"sport_type"`
	StartDateLocal string  `json:"start_date_local"`
	MovingTime     int64   `json:"moving_time"` // seconds
	Distance       float64 `json:"distance"`
	AverageSpeed   float64 `json:"average_speed"`
	MaxSpeed       float64 `json:"max_speed"`
}

// Activity converts the wire record to the table model.
func (s SummaryActivity) Activity() (activity.Activity, error) {
	start, err := activity.ParseStartDate(s.StartDateLocal)
	if err != nil {
		return activity.Activity{}, fmt.Errorf("activity %d: %w", s.ID, err)
	}
	kind := s.Type
	if kind == "" {
		kind = s.SportType
	}
	return activity.Activity{
		ID:             s.ID,
		Name:           s.Name,
		Type:           kind,
		StartDateLocal: start,
		MovingTime:     time.Duration(s.MovingTime) * time.Second,
		Distance:       s.Distance,
		AverageSpeed:   s.AverageSpeed,
		MaxSpeed:       s.MaxSpeed,
	}, nil
}

// GetAthlete returns the profile of the token's owner.
func (c *Client) GetAthlete(ctx context.Context, accessToken string) (*Athlete, error) {
	var athlete Athlete
	if err := c.getJSON(ctx, "get_athlete", accessToken, "/athlete", nil, &athlete); err != nil {
		return nil, fmt.Errorf("get athlete: %w", err)
	}
	return &athlete, nil
}

// ListActivities returns every activity in API order (newest first),
// following pagination until an empty or short page.
func (c *Client) ListActivities(ctx context.Context, accessToken string) ([]activity.Activity, error) {
	var out []activity.Activity

	for page := 1; page <= maxPages; page++ {
		query := url.Values{}
		query.Set("page", strconv.Itoa(page))
		query.Set("per_page", strconv.Itoa(perPage))

		var batch []SummaryActivity
		if err := c.getJSON(ctx, "list_activities", accessToken, "/athlete/activities", query, &batch); err != nil {
			return nil, fmt.Errorf("list activities page %d: %w", page, err)
		}

		for _, s := range batch {
			a, err := s.Activity()
			if err != nil {
				return nil, err
			}
			out = append(out, a)
		}

		if len(batch) < perPage {
			break
		}
	}

	return out, nil
}

// getJSON performs an authenticated GET and decodes a 200 body into result.
func (c *Client) getJSON(ctx context.Context, operation, accessToken, path string, query url.Values, result interface{}) (err error) {
	start := time.Now()
	defer func() {
		metrics.RecordUpstreamCall(operation, resultLabel(err), time.Since(start))
	}()

	waitStart := time.Now()
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	metrics.UpstreamThrottleWait.Observe(time.Since(waitStart).Seconds())

	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
