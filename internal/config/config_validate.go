// Stridemap - Fitness Activity Maps
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stridemap

package config

import (
	"fmt"
	"net/url"
	"time"
)

const (
	minRateLimitRequests = 1
	maxRateLimitRequests = 100000
	minRateLimitWindow   = time.Second
	maxRateLimitWindow   = time.Hour

	minSecretKeyLength = 32
)

var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validLogFormats = map[string]bool{
	"json":    true,
	"console": true,
}

var validSessionStores = map[string]bool{
	"memory": true,
	"badger": true,
	"redis":  true,
}

var validStreamResolutions = map[string]bool{
	"low":    true,
	"medium": true,
	"high":   true,
}

// Validate checks the configuration for missing or out-of-range values.
// Error messages name the environment variable to fix.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateStrava(); err != nil {
		return err
	}
	if err := c.validateMaps(); err != nil {
		return err
	}
	if err := c.validateElevation(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	if err := c.validateSecurity(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if _, err := url.ParseRequestURI(c.Server.BaseURL); err != nil {
		return fmt.Errorf("BASE_URL must be an absolute URL: %w", err)
	}
	return nil
}

func (c *Config) validateStrava() error {
	if c.Strava.ClientID == "" {
		return fmt.Errorf("STRAVA_CLIENT_ID is required")
	}
	if c.Strava.ClientSecret == "" {
		return fmt.Errorf("STRAVA_CLIENT_SECRET is required")
	}
	if c.Strava.RequestsPerMinute < 1 {
		return fmt.Errorf("STRAVA_REQUESTS_PER_MINUTE must be at least 1")
	}
	return nil
}

func (c *Config) validateMaps() error {
	if c.Maps.Dir == "" {
		return fmt.Errorf("MAPS_DIR is required")
	}
	if c.Maps.TileURL == "" {
		return fmt.Errorf("MAPS_TILE_URL is required")
	}
	if c.Maps.ZoomStart < 1 || c.Maps.ZoomStart > 20 {
		return fmt.Errorf("MAPS_ZOOM_START must be between 1 and 20")
	}
	if !validStreamResolutions[c.Maps.StreamResolution] {
		return fmt.Errorf("MAPS_STREAM_RESOLUTION must be one of: low, medium, high")
	}
	return nil
}

func (c *Config) validateElevation() error {
	if c.Elevation.Enabled && c.Elevation.URL == "" {
		return fmt.Errorf("ELEVATION_URL is required when ELEVATION_ENABLED=true")
	}
	return nil
}

func (c *Config) validateCache() error {
	if c.Cache.ActivitiesTTL <= 0 {
		return fmt.Errorf("CACHE_ACTIVITIES_TTL must be positive")
	}
	if c.Cache.ActivityTTL <= 0 {
		return fmt.Errorf("CACHE_ACTIVITY_TTL must be positive")
	}
	return nil
}

func (c *Config) validateSecurity() error {
	if !validSessionStores[c.Security.SessionStore] {
		return fmt.Errorf("SESSION_STORE must be one of: memory, badger, redis")
	}
	if c.Security.SessionStore == "redis" && c.Security.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR is required when SESSION_STORE=redis")
	}
	if c.IsProduction() && len(c.Security.SecretKey) < minSecretKeyLength {
		return fmt.Errorf("SECRET_KEY must be at least %d characters in production", minSecretKeyLength)
	}
	return c.validateRateLimits()
}

func (c *Config) validateRateLimits() error {
	if c.Security.RateLimitDisabled {
		return nil
	}
	if c.Security.RateLimitReqs < minRateLimitRequests || c.Security.RateLimitReqs > maxRateLimitRequests {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be between %d and %d", minRateLimitRequests, maxRateLimitRequests)
	}
	if c.Security.RateLimitWindow < minRateLimitWindow || c.Security.RateLimitWindow > maxRateLimitWindow {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be between %v and %v", minRateLimitWindow, maxRateLimitWindow)
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "" && !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}
