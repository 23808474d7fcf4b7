// Stridemap - Fitness Activity Maps
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stridemap

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"

	"github.com/tomtom215/stridemap/internal/api"
	"github.com/tomtom215/stridemap/internal/auth"
	"github.com/tomtom215/stridemap/internal/authz"
	"github.com/tomtom215/stridemap/internal/cache"
	"github.com/tomtom215/stridemap/internal/config"
	"github.com/tomtom215/stridemap/internal/elevation"
	"github.com/tomtom215/stridemap/internal/logging"
	"github.com/tomtom215/stridemap/internal/mapstore"
	"github.com/tomtom215/stridemap/internal/mapview"
	"github.com/tomtom215/stridemap/internal/share"
	"github.com/tomtom215/stridemap/internal/strava"
	"github.com/tomtom215/stridemap/internal/supervisor"
	"github.com/tomtom215/stridemap/internal/supervisor/services"
)

func main() {
	// A missing .env is normal outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.Warn().Err(err).Msg("Failed to read .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	logging.Info().
		Str("base_url", cfg.Server.BaseURL).
		Str("environment", cfg.Server.Environment).
		Str("session_store", cfg.Security.SessionStore).
		Bool("elevation", cfg.Elevation.Enabled).
		Bool("share", cfg.Share.Enabled).
		Msg("Starting Stridemap")

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("Stridemap exited with error")
	}
	logging.Info().Msg("Application stopped gracefully")
}

//nolint:gocyclo // sequential wiring
func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := openStorage(cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing storage")
		}
	}()

	factory, err := auth.NewSessionStoreFactory(ctx, auth.SessionStoreConfig{
		Type:          auth.SessionStoreType(cfg.Security.SessionStore),
		DB:            db,
		RedisAddr:     cfg.Security.RedisAddr,
		RedisPassword: cfg.Security.RedisPassword,
		RedisDB:       cfg.Security.RedisDB,
	})
	if err != nil {
		return fmt.Errorf("session store: %w", err)
	}
	defer func() {
		if err := factory.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing session store")
		}
	}()

	sessionCfg := auth.DefaultSessionMiddlewareConfig()
	sessionCfg.SessionTTL = cfg.Security.SessionTimeout
	sessionCfg.CookieSecure = cfg.Security.CookieSecure || cfg.IsProduction()
	sessions := auth.NewSessionMiddleware(factory.Store(), sessionCfg)

	stravaClient := strava.NewCircuitBreakerClient(strava.NewClient(strava.Config{
		BaseURL:           cfg.Strava.APIURL,
		Timeout:           cfg.Strava.Timeout,
		RequestsPerMinute: cfg.Strava.RequestsPerMinute,
	}))

	oauth := auth.NewStravaOAuth(auth.StravaOAuthConfig{
		ClientID:     cfg.Strava.ClientID,
		ClientSecret: cfg.Strava.ClientSecret,
		RedirectURL:  cfg.OAuthRedirectURL(),
		AuthURL:      cfg.Strava.AuthURL,
		TokenURL:     cfg.Strava.TokenURL,
		Scopes:       cfg.Strava.Scopes,
		HTTPClient:   &http.Client{Timeout: cfg.Strava.Timeout},
	}, nil)

	maps, err := mapstore.New(cfg.Maps.Dir)
	if err != nil {
		return fmt.Errorf("map store: %w", err)
	}
	logging.Info().Str("dir", maps.Root()).Msg("Map store ready")

	activitiesCache := cache.New("activities", cfg.Cache.ActivitiesTTL)
	activityCache := cache.New("activity", cfg.Cache.ActivityTTL)

	deps := api.Dependencies{
		Strava:   stravaClient,
		OAuth:    oauth,
		Sessions: sessions,
		Maps:     maps,
		Renderer: mapview.Renderer{
			TileURL:     cfg.Maps.TileURL,
			Attribution: cfg.Maps.TileAttribution,
			Zoom:        cfg.Maps.ZoomStart,
		},
		ActivitiesCache:  activitiesCache,
		ActivityCache:    activityCache,
		StreamResolution: cfg.Maps.StreamResolution,
		SessionTTL:       cfg.Security.SessionTimeout,
	}

	if cfg.Elevation.Enabled {
		deps.Elevation = elevation.NewClient(elevation.Config{
			URL:     cfg.Elevation.URL,
			Timeout: cfg.Elevation.Timeout,
		})
		logging.Info().Str("url", cfg.Elevation.URL).Msg("Elevation charts enabled")
	}

	if cfg.Share.Enabled {
		if cfg.Security.SecretKey == "" {
			logging.Warn().Msg("SECRET_KEY is not set; share links will not survive a restart")
		}
		signer, err := share.NewSigner(cfg.Security.SecretKey)
		if err != nil {
			return fmt.Errorf("share signer: %w", err)
		}
		deps.Share = share.NewService(share.NewBadgerObjectStore(db), signer, cfg.Share.LinkTTL, cfg.Server.BaseURL)
	}

	enforcer, err := authz.NewEnforcer(authz.DefaultEnforcerConfig())
	if err != nil {
		return fmt.Errorf("authorization policy: %w", err)
	}
	defer enforcer.Close()

	middleware := api.NewChiMiddleware(&api.ChiMiddlewareConfig{
		CORSAllowedOrigins: cfg.Security.CORSOrigins,
		RateLimitRequests:  cfg.Security.RateLimitReqs,
		RateLimitWindow:    cfg.Security.RateLimitWindow,
		RateLimitDisabled:  cfg.Security.RateLimitDisabled,
	})
	router := api.NewRouter(api.NewHandler(deps), sessions, enforcer, middleware)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.SetupChi(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		// Map rendering waits on Strava; allow twice the upstream timeout.
		WriteTimeout: 2 * cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		return fmt.Errorf("supervisor tree: %w", err)
	}

	sweep := &services.SessionSweep{
		Sessions: factory.Store(),
		Maps:     maps,
		States:   oauth.States(),
	}
	tree.AddMaintenanceService(services.NewJanitorService("session-janitor", cfg.Cache.CleanupInterval, sweep.Run))
	tree.AddMaintenanceService(services.NewJanitorService("cache-janitor", cfg.Cache.CleanupInterval, services.CacheSweep(activitiesCache, activityCache)))
	tree.AddMaintenanceService(services.NewJanitorService("storage-gc", 10*time.Minute, services.BadgerGCSweep(db, 0.5)))

	tree.AddAPIService(services.NewWebService(server, services.DefaultDrainTimeout))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
		err = <-errCh
	case err = <-errCh:
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree error")
	}

	if unstopped, _ := tree.UnstoppedServiceReport(); len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}
	return nil
}

func openStorage(path string) (*badger.DB, error) {
	if err := os.MkdirAll(path, 0o750); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	opts := badger.DefaultOptions(path).
		WithLogger(nil).
		WithNumVersionsToKeep(1)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open storage at %s: %w", path, err)
	}
	return db, nil
}
