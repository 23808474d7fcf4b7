// Stridemap - Fitness Activity Maps
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stridemap

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/tomtom215/stridemap/internal/auth"
	"github.com/tomtom215/stridemap/internal/breaker"
	"github.com/tomtom215/stridemap/internal/cache"
	"github.com/tomtom215/stridemap/internal/elevation"
	"github.com/tomtom215/stridemap/internal/logging"
	"github.com/tomtom215/stridemap/internal/mapstore"
	"github.com/tomtom215/stridemap/internal/mapview"
	"github.com/tomtom215/stridemap/internal/share"
	"github.com/tomtom215/stridemap/internal/strava"
)

// ChartRenderer draws elevation charts. *elevation.Client implements it.
type ChartRenderer interface {
	Render(ctx context.Context, title string, profile mapview.Profile) (*elevation.Chart, error)
}

// Dependencies are the components the handlers use. Elevation and Share
// are optional; a nil value disables the feature.
type Dependencies struct {
	Strava   strava.API
	OAuth    *auth.StravaOAuth
	Sessions *auth.SessionMiddleware
	Maps     *mapstore.Store
	Renderer mapview.Renderer

	// ActivitiesCache holds each user's activity list, ActivityCache the
	// activity page models.
	ActivitiesCache *cache.Cache
	ActivityCache   *cache.Cache

	Elevation ChartRenderer
	Share     *share.Service

	// StreamResolution is passed to the streams endpoint.
	StreamResolution string

	// SessionTTL is the lifetime of a new login session.
	SessionTTL time.Duration
}

// Handler serves the Stridemap pages.
//
// Handler methods are split across files:
//   - handlers_auth.go: /, /login, /auth, /logout
//   - handlers_activities.go: /activities, /activities.xlsx
//   - handlers_activity.go: /activity and the map pipeline
//   - handlers_maps.go: artifacts, GPX, share links
//   - handlers_health.go: /healthz
type Handler struct {
	deps Dependencies
}

// NewHandler creates the page handlers.
func NewHandler(deps Dependencies) *Handler {
	if deps.StreamResolution == "" {
		deps.StreamResolution = "medium"
	}
	if deps.SessionTTL <= 0 {
		deps.SessionTTL = 24 * time.Hour
	}
	return &Handler{deps: deps}
}

// accessToken returns a usable Strava access token for s, refreshing and
// saving it when it has expired.
func (h *Handler) accessToken(ctx context.Context, s *auth.Session) (string, error) {
	tok, refreshed, err := h.deps.OAuth.FreshToken(ctx, s.Token)
	if err != nil {
		return "", err
	}
	if refreshed {
		s.Token = tok
		_, err = h.deps.Sessions.Modify(ctx, s.ID, func(stored *auth.Session) {
			stored.Token = tok
		})
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("Failed to save refreshed token")
		} else {
			logging.Ctx(ctx).Debug().Str("user_id", s.UserID).Msg("Access token refreshed")
		}
	}
	return tok.AccessToken, nil
}

// upstreamFailed turns a Strava or token error into a response. A rejected
// or unrefreshable token ends the session and sends the user to /login.
func (h *Handler) upstreamFailed(w http.ResponseWriter, r *http.Request, s *auth.Session, err error) {
	ctx := r.Context()

	switch {
	case errors.Is(err, strava.ErrUnauthorized), errors.Is(err, auth.ErrRefreshFailed):
		logging.Ctx(ctx).Warn().Err(err).Str("user_id", s.UserID).Msg("Strava rejected the session token")
		h.endSession(w, r, s, "unauthorized")
		http.Redirect(w, r, "/login", http.StatusFound)
	case errors.Is(err, strava.ErrNotFound):
		renderError(w, r, http.StatusNotFound, "That activity was not found.")
	case errors.Is(err, strava.ErrRateLimited), breaker.IsRejected(err):
		logging.Ctx(ctx).Warn().Err(err).Msg("Strava unavailable")
		renderError(w, r, http.StatusServiceUnavailable, "Strava is busy right now. Try again in a few minutes.")
	case errors.Is(err, context.Canceled):
		logging.Ctx(ctx).Debug().Msg("Client went away during upstream call")
	default:
		logging.Ctx(ctx).Error().Err(err).Msg("Strava request failed")
		renderError(w, r, http.StatusBadGateway, "Could not reach Strava.")
	}
}

// endSession destroys s and everything kept on its behalf. Cleanup failures
// are logged and otherwise ignored.
func (h *Handler) endSession(w http.ResponseWriter, r *http.Request, s *auth.Session, reason string) {
	ctx := r.Context()
	log := logging.Ctx(ctx)

	if err := h.deps.Sessions.DestroySession(ctx, w, s.ID, reason); err != nil {
		log.Warn().Err(err).Msg("Failed to delete session")
	}
	if err := h.deps.Maps.RemoveUser(s.UserID); err != nil {
		log.Warn().Err(err).Str("user_id", s.UserID).Msg("Failed to remove map directory")
	}

	prefix := cache.UserPrefix(s.UserID)
	h.deps.ActivitiesCache.DeletePrefix(prefix)
	h.deps.ActivityCache.DeletePrefix(prefix)
}
