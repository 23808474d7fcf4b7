// Stridemap - Fitness Activity Maps
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stridemap

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/stridemap/config.yaml",
	"/etc/stridemap/config.yml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

// Kartverket topographic tiles, as used by the first version of the app.
const (
	DefaultTileURL         = "http://opencache.statkart.no/gatekeeper/gk/gk.open_gmaps?layers=topo4&zoom={z}&x={x}&y={y}"
	DefaultTileAttribution = `<a href="http://www.kartverket.no/">Kartverket</a>`
)

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8282,
			Host:        "0.0.0.0",
			Timeout:     30 * time.Second,
			BaseURL:     "http://localhost:8282",
			Environment: "development",
		},
		Strava: StravaConfig{
			AuthURL:           "https://www.strava.com/oauth/authorize",
			TokenURL:          "https://www.strava.com/oauth/token",
			APIURL:            "https://www.strava.com/api/v3",
			Scopes:            []string{"read", "activity:read_all"},
			Timeout:           30 * time.Second,
			RequestsPerMinute: 60,
		},
		Maps: MapsConfig{
			Dir:              "./data/maps",
			TileURL:          DefaultTileURL,
			TileAttribution:  DefaultTileAttribution,
			ZoomStart:        12,
			StreamResolution: "medium",
		},
		Elevation: ElevationConfig{
			Enabled: false,
			Timeout: 20 * time.Second,
		},
		Share: ShareConfig{
			Enabled: true,
			LinkTTL: 7 * 24 * time.Hour,
		},
		Storage: StorageConfig{
			Path: "./data/store",
		},
		Cache: CacheConfig{
			ActivitiesTTL:   15 * time.Minute,
			ActivityTTL:     time.Hour,
			CleanupInterval: 5 * time.Minute,
		},
		Security: SecurityConfig{
			SessionTimeout:    24 * time.Hour,
			SessionStore:      "memory",
			RedisAddr:         "localhost:6379",
			RateLimitReqs:     100,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
			CORSOrigins:       []string{},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf builds the configuration from three layers:
//
//  1. struct defaults
//  2. the YAML file named by CONFIG_PATH, or the first of DefaultConfigPaths
//  3. environment variables listed in envTransformFunc
//
// The result is validated before it is returned.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths arrive from the environment as comma-separated strings.
var sliceConfigPaths = []string{
	"strava.scopes",
	"security.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps lower-cased environment variable names to config paths.
// Variables not listed here are ignored.
var envMappings = map[string]string{
	"http_port":    "server.port",
	"http_host":    "server.host",
	"http_timeout": "server.timeout",
	"base_url":     "server.base_url",
	"environment":  "server.environment",

	"strava_client_id":           "strava.client_id",
	"strava_client_secret":       "strava.client_secret",
	"strava_redirect_url":        "strava.redirect_url",
	"strava_auth_url":            "strava.auth_url",
	"strava_token_url":           "strava.token_url",
	"strava_api_url":             "strava.api_url",
	"strava_scopes":              "strava.scopes",
	"strava_timeout":             "strava.timeout",
	"strava_requests_per_minute": "strava.requests_per_minute",

	"maps_dir":               "maps.dir",
	"maps_tile_url":          "maps.tile_url",
	"maps_tile_attribution":  "maps.tile_attribution",
	"maps_zoom_start":        "maps.zoom_start",
	"maps_stream_resolution": "maps.stream_resolution",

	"elevation_enabled": "elevation.enabled",
	"elevation_url":     "elevation.url",
	"elevation_timeout": "elevation.timeout",

	"share_enabled":  "share.enabled",
	"share_link_ttl": "share.link_ttl",

	"storage_path": "storage.path",

	"cache_activities_ttl":   "cache.activities_ttl",
	"cache_activity_ttl":     "cache.activity_ttl",
	"cache_cleanup_interval": "cache.cleanup_interval",

	"secret_key":          "security.secret_key",
	"session_timeout":     "security.session_timeout",
	"session_store":       "security.session_store",
	"redis_addr":          "security.redis_addr",
	"redis_password":      "security.redis_password",
	"redis_db":            "security.redis_db",
	"cookie_secure":       "security.cookie_secure",
	"rate_limit_requests": "security.rate_limit_reqs",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",
	"cors_origins":        "security.cors_origins",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps an environment variable name to its config path.
// STRAVA_CLIENT_ID becomes strava.client_id; unknown names map to "" and are skipped.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
