// Stridemap - Fitness Activity Maps
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stridemap

// Package elevation calls the external chart service that draws an
// activity's elevation profile.
package elevation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/stridemap/internal/breaker"
	"github.com/tomtom215/stridemap/internal/mapview"
)

// maxChartBytes bounds the image read from the service.
const maxChartBytes = 10 << 20

// ErrUnsupportedChart is returned when the service answers with something
// other than a PNG, JPEG or SVG image.
var ErrUnsupportedChart = errors.New("unsupported chart content type")

var chartExtensions = map[string]string{
	"image/png":     "png",
	"image/jpeg":    "jpg",
	"image/svg+xml": "svg",
}

// Chart is a rendered elevation chart.
type Chart struct {
	Data        []byte
	ContentType string
}

// Ext returns the file extension for the chart's content type.
func (c *Chart) Ext() string {
	return chartExtensions[c.ContentType]
}

// ContentTypeForExt maps a stored chart's extension back to its media type.
func ContentTypeForExt(ext string) string {
	for ct, e := range chartExtensions {
		if e == ext {
			return ct
		}
	}
	return ""
}

// Extensions lists the extensions a stored chart may have.
func Extensions() []string {
	return []string{"png", "jpg", "svg"}
}

// Config configures the chart service client.
type Config struct {
	URL        string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client posts profiles to the chart service through a circuit breaker.
type Client struct {
	url        string
	httpClient *http.Client
	cb         *breaker.Breaker
}

// NewClient creates a chart service client.
func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 20 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		url:        cfg.URL,
		httpClient: httpClient,
		cb: breaker.New(breaker.Settings{
			Name:        "elevation-service",
			MinRequests: 5,
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled)
			},
		}),
	}
}

type chartRequest struct {
	Title    string    `json:"title"`
	Distance []float64 `json:"distance"`
	Altitude []float64 `json:"altitude"`
}

// Render asks the service to draw profile.
func (c *Client) Render(ctx context.Context, title string, profile mapview.Profile) (*Chart, error) {
	result, err := c.cb.Execute(func() (interface{}, error) {
		return c.render(ctx, title, profile)
	})
	if err != nil {
		return nil, err
	}
	chart, ok := result.(*Chart)
	if !ok {
		return nil, errors.New("circuit breaker: unexpected result type for Render")
	}
	return chart, nil
}

func (c *Client) render(ctx context.Context, title string, profile mapview.Profile) (*Chart, error) {
	body, err := json.Marshal(chartRequest{
		Title:    title,
		Distance: profile.Distance,
		Altitude: profile.Altitude,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal profile: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "image/png, image/svg+xml, image/jpeg")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("chart service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || chartExtensions[mediaType] == "" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedChart, resp.Header.Get("Content-Type"))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxChartBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read chart: %w", err)
	}
	if len(data) > maxChartBytes {
		return nil, fmt.Errorf("chart larger than %d bytes", maxChartBytes)
	}

	return &Chart{Data: data, ContentType: mediaType}, nil
}
