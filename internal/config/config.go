// Stridemap - Fitness Activity Maps
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stridemap

// Package config loads Stridemap configuration from defaults, an optional
// YAML file and environment variables, in that order of precedence.
//
// See LoadWithKoanf for the layering rules and envTransformFunc for the
// accepted environment variable names.
package config

import (
	"strings"
	"time"
)

// Config is the full server configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Strava    StravaConfig    `koanf:"strava"`
	Maps      MapsConfig      `koanf:"maps"`
	Elevation ElevationConfig `koanf:"elevation"`
	Share     ShareConfig     `koanf:"share"`
	Storage   StorageConfig   `koanf:"storage"`
	Cache     CacheConfig     `koanf:"cache"`
	Security  SecurityConfig  `koanf:"security"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port    int           `koanf:"port"`
	Host    string        `koanf:"host"`
	Timeout time.Duration `koanf:"timeout"`
	// BaseURL is the externally visible origin, used to build the OAuth
	// redirect and share links.
	BaseURL     string `koanf:"base_url"`
	Environment string `koanf:"environment"` // development, staging, production
}

// StravaConfig holds the OAuth application and API settings.
type StravaConfig struct {
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`
	// RedirectURL defaults to BaseURL + "/auth" when empty.
	RedirectURL string        `koanf:"redirect_url"`
	AuthURL     string        `koanf:"auth_url"`
	TokenURL    string        `koanf:"token_url"`
	APIURL      string        `koanf:"api_url"`
	Scopes      []string      `koanf:"scopes"`
	Timeout     time.Duration `koanf:"timeout"`
	// RequestsPerMinute caps outbound API calls across all users.
	RequestsPerMinute int `koanf:"requests_per_minute"`
}

// MapsConfig controls map artifact rendering.
type MapsConfig struct {
	Dir              string `koanf:"dir"`
	TileURL          string `koanf:"tile_url"`
	TileAttribution  string `koanf:"tile_attribution"`
	ZoomStart        int    `koanf:"zoom_start"`
	StreamResolution string `koanf:"stream_resolution"` // low, medium, high
}

// ElevationConfig points at the elevation chart rendering service.
type ElevationConfig struct {
	Enabled bool          `koanf:"enabled"`
	URL     string        `koanf:"url"`
	Timeout time.Duration `koanf:"timeout"`
}

// ShareConfig controls publishing map artifacts behind signed links.
type ShareConfig struct {
	Enabled bool          `koanf:"enabled"`
	LinkTTL time.Duration `koanf:"link_ttl"`
}

// StorageConfig locates the embedded BadgerDB used for shared maps and,
// when session_store=badger, for sessions.
type StorageConfig struct {
	Path string `koanf:"path"`
}

// CacheConfig holds TTLs for the per-user response caches.
type CacheConfig struct {
	ActivitiesTTL   time.Duration `koanf:"activities_ttl"`
	ActivityTTL     time.Duration `koanf:"activity_ttl"`
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
}

// SecurityConfig holds session, cookie and rate limit settings.
type SecurityConfig struct {
	// SecretKey seeds the share-link signing key.
	SecretKey      string        `koanf:"secret_key"`
	SessionTimeout time.Duration `koanf:"session_timeout"`
	// SessionStore is one of memory, badger, redis.
	SessionStore  string `koanf:"session_store"`
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`
	CookieSecure  bool   `koanf:"cookie_secure"`

	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// LoggingConfig mirrors logging.Config for the parts that are configurable.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Load reads configuration using the koanf layering.
func Load() (*Config, error) {
	return LoadWithKoanf()
}

// IsProduction reports whether ENVIRONMENT names a production deployment.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Server.Environment)
	return env == "production" || env == "prod"
}

// OAuthRedirectURL returns the configured redirect or the /auth route under BaseURL.
func (c *Config) OAuthRedirectURL() string {
	if c.Strava.RedirectURL != "" {
		return c.Strava.RedirectURL
	}
	return strings.TrimRight(c.Server.BaseURL, "/") + "/auth"
}
