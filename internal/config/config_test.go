// Stridemap - Fitness Activity Maps
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stridemap

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// setupTestEnv replaces the process environment for the duration of a test.
func setupTestEnv(t *testing.T, envVars map[string]string) func() {
	t.Helper()

	original := os.Environ()
	os.Clearenv()
	for k, v := range envVars {
		if err := os.Setenv(k, v); err != nil {
			t.Fatalf("failed to set %s: %v", k, err)
		}
	}

	return func() {
		os.Clearenv()
		for _, kv := range original {
			if k, v, ok := strings.Cut(kv, "="); ok {
				os.Setenv(k, v)
			}
		}
	}
}

func assertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func assertError(t *testing.T, err error, contains string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error containing %q, got nil", contains)
	}
	if !strings.Contains(err.Error(), contains) {
		t.Fatalf("expected error containing %q, got %q", contains, err.Error())
	}
}

func minimalEnv() map[string]string {
	return map[string]string{
		"STRAVA_CLIENT_ID":     "12345",
		"STRAVA_CLIENT_SECRET": "shh",
		"CONFIG_PATH":          "/nonexistent/config.yaml",
	}
}

// chdirTemp keeps DefaultConfigPaths from picking up a stray config.yaml.
func chdirTemp(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	assertNoError(t, err)
	assertNoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { os.Chdir(wd) })
}

func TestLoad_Defaults(t *testing.T) {
	chdirTemp(t)
	cleanup := setupTestEnv(t, minimalEnv())
	defer cleanup()

	cfg, err := Load()
	assertNoError(t, err)

	if cfg.Server.Port != 8282 {
		t.Errorf("Server.Port = %d, want 8282", cfg.Server.Port)
	}
	if cfg.Strava.ClientID != "12345" {
		t.Errorf("Strava.ClientID = %q, want 12345", cfg.Strava.ClientID)
	}
	if got := strings.Join(cfg.Strava.Scopes, ","); got != "read,activity:read_all" {
		t.Errorf("Strava.Scopes = %q", got)
	}
	if cfg.Maps.ZoomStart != 12 {
		t.Errorf("Maps.ZoomStart = %d, want 12", cfg.Maps.ZoomStart)
	}
	if cfg.Maps.TileURL != DefaultTileURL {
		t.Errorf("Maps.TileURL = %q", cfg.Maps.TileURL)
	}
	if cfg.Cache.ActivitiesTTL != 15*time.Minute {
		t.Errorf("Cache.ActivitiesTTL = %v, want 15m", cfg.Cache.ActivitiesTTL)
	}
	if cfg.Cache.ActivityTTL != time.Hour {
		t.Errorf("Cache.ActivityTTL = %v, want 1h", cfg.Cache.ActivityTTL)
	}
	if cfg.Security.SessionStore != "memory" {
		t.Errorf("Security.SessionStore = %q, want memory", cfg.Security.SessionStore)
	}
	if cfg.OAuthRedirectURL() != "http://localhost:8282/auth" {
		t.Errorf("OAuthRedirectURL() = %q", cfg.OAuthRedirectURL())
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	chdirTemp(t)
	env := minimalEnv()
	env["HTTP_PORT"] = "9000"
	env["STRAVA_SCOPES"] = "read, activity:read ,"
	env["CORS_ORIGINS"] = "https://a.example,https://b.example"
	env["CACHE_ACTIVITIES_TTL"] = "2m"
	env["SESSION_STORE"] = "badger"
	env["LOG_LEVEL"] = "debug"
	env["MAPS_DIR"] = "/var/lib/stridemap/maps"
	cleanup := setupTestEnv(t, env)
	defer cleanup()

	cfg, err := Load()
	assertNoError(t, err)

	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if len(cfg.Strava.Scopes) != 2 || cfg.Strava.Scopes[1] != "activity:read" {
		t.Errorf("Strava.Scopes = %v", cfg.Strava.Scopes)
	}
	if len(cfg.Security.CORSOrigins) != 2 {
		t.Errorf("Security.CORSOrigins = %v", cfg.Security.CORSOrigins)
	}
	if cfg.Cache.ActivitiesTTL != 2*time.Minute {
		t.Errorf("Cache.ActivitiesTTL = %v", cfg.Cache.ActivitiesTTL)
	}
	if cfg.Security.SessionStore != "badger" {
		t.Errorf("Security.SessionStore = %q", cfg.Security.SessionStore)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q", cfg.Logging.Level)
	}
	if cfg.Maps.Dir != "/var/lib/stridemap/maps" {
		t.Errorf("Maps.Dir = %q", cfg.Maps.Dir)
	}
}

func TestLoad_YAMLFileThenEnv(t *testing.T) {
	chdirTemp(t)
	path := filepath.Join(t.TempDir(), "stridemap.yaml")
	yaml := `
server:
  port: 7000
  base_url: https://maps.example.org
maps:
  zoom_start: 10
`
	assertNoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	env := minimalEnv()
	env["CONFIG_PATH"] = path
	env["HTTP_PORT"] = "7100"
	cleanup := setupTestEnv(t, env)
	defer cleanup()

	cfg, err := Load()
	assertNoError(t, err)

	if cfg.Server.Port != 7100 {
		t.Errorf("env should win over file: port = %d", cfg.Server.Port)
	}
	if cfg.Maps.ZoomStart != 10 {
		t.Errorf("Maps.ZoomStart = %d, want 10", cfg.Maps.ZoomStart)
	}
	if cfg.OAuthRedirectURL() != "https://maps.example.org/auth" {
		t.Errorf("OAuthRedirectURL() = %q", cfg.OAuthRedirectURL())
	}
}

func TestLoad_MissingCredentials(t *testing.T) {
	chdirTemp(t)
	cleanup := setupTestEnv(t, map[string]string{"CONFIG_PATH": "/nonexistent"})
	defer cleanup()

	_, err := Load()
	assertError(t, err, "STRAVA_CLIENT_ID")
}

func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Strava.ClientID = "1"
	cfg.Strava.ClientSecret = "s"
	return cfg
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"no secret", func(c *Config) { c.Strava.ClientSecret = "" }, "STRAVA_CLIENT_SECRET"},
		{"port zero", func(c *Config) { c.Server.Port = 0 }, "HTTP_PORT"},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }, "HTTP_PORT"},
		{"relative base url", func(c *Config) { c.Server.BaseURL = "localhost" }, "BASE_URL"},
		{"unknown session store", func(c *Config) { c.Security.SessionStore = "etcd" }, "SESSION_STORE"},
		{"production short secret", func(c *Config) {
			c.Server.Environment = "production"
			c.Security.SecretKey = "short"
		}, "SECRET_KEY"},
		{"production long secret", func(c *Config) {
			c.Server.Environment = "production"
			c.Security.SecretKey = strings.Repeat("k", 32)
		}, ""},
		{"zero activities ttl", func(c *Config) { c.Cache.ActivitiesTTL = 0 }, "CACHE_ACTIVITIES_TTL"},
		{"negative activity ttl", func(c *Config) { c.Cache.ActivityTTL = -time.Second }, "CACHE_ACTIVITY_TTL"},
		{"rate limit too low", func(c *Config) { c.Security.RateLimitReqs = 0 }, "RATE_LIMIT_REQUESTS"},
		{"rate limit window too long", func(c *Config) { c.Security.RateLimitWindow = 2 * time.Hour }, "RATE_LIMIT_WINDOW"},
		{"rate limit disabled skips bounds", func(c *Config) {
			c.Security.RateLimitDisabled = true
			c.Security.RateLimitReqs = 0
		}, ""},
		{"elevation without url", func(c *Config) { c.Elevation.Enabled = true }, "ELEVATION_URL"},
		{"bad stream resolution", func(c *Config) { c.Maps.StreamResolution = "ultra" }, "MAPS_STREAM_RESOLUTION"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "LOG_LEVEL"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "LOG_FORMAT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assertNoError(t, err)
				return
			}
			assertError(t, err, tt.wantErr)
		})
	}
}

func TestEnvTransformFunc(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"STRAVA_CLIENT_ID": "strava.client_id",
		"HTTP_PORT":        "server.port",
		"SECRET_KEY":       "security.secret_key",
		"PATH":             "",
		"HOME":             "",
	}
	for in, want := range tests {
		if got := envTransformFunc(in); got != want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsProduction(t *testing.T) {
	t.Parallel()

	for env, want := range map[string]bool{"production": true, "PROD": true, "development": false, "": false} {
		cfg := &Config{Server: ServerConfig{Environment: env}}
		if got := cfg.IsProduction(); got != want {
			t.Errorf("IsProduction(%q) = %v, want %v", env, got, want)
		}
	}
}
