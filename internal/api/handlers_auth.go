// Stridemap - Fitness Activity Maps
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stridemap

package api

import (
	"errors"
	"net/http"

	"github.com/tomtom215/stridemap/internal/auth"
	"github.com/tomtom215/stridemap/internal/logging"
)

// Index sends logged-in users to their activities and everyone else to /login.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	if auth.SessionFromContext(r.Context()) == nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	http.Redirect(w, r, "/activities", http.StatusFound)
}

// Login renders the page with the Strava authorization link.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	authURL, err := h.deps.OAuth.AuthorizationURL(r.Context())
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to build authorization URL")
		renderError(w, r, http.StatusInternalServerError, "Login is unavailable right now.")
		return
	}

	data := newPageData(r)
	data.AuthURL = authURL
	render(w, r, http.StatusOK, pageLogin, data)
}

// Auth is the OAuth callback. It trades the code for a token, loads the
// athlete and starts a fresh session. Every failure ends at /login.
func (h *Handler) Auth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logging.Ctx(ctx)
	q := r.URL.Query()

	if providerErr := q.Get("error"); providerErr != "" {
		log.Info().Str("error", providerErr).Msg("Authorization declined at Strava")
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	token, err := h.deps.OAuth.Exchange(ctx, q.Get("code"), q.Get("state"))
	if err != nil {
		if errors.Is(err, auth.ErrInvalidState) {
			log.Warn().Msg("OAuth callback with unknown or expired state")
		} else {
			log.Error().Err(err).Msg("Token exchange failed")
		}
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	athlete, err := h.deps.Strava.GetAthlete(ctx, token.AccessToken)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load athlete profile")
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	session := auth.NewSession(*athlete, token, h.deps.SessionTTL)
	if err := h.deps.Sessions.CreateSession(ctx, w, r, session); err != nil {
		log.Error().Err(err).Msg("Failed to create session")
		renderError(w, r, http.StatusInternalServerError, "Could not start a session.")
		return
	}

	log.Info().
		Int64("athlete_id", athlete.ID).
		Str("user_id", session.UserID).
		Str("session", logging.SanitizeSessionID(session.ID)).
		Msg("Login completed")
	http.Redirect(w, r, "/", http.StatusFound)
}

// Logout ends the session and removes the user's map directory.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if s := auth.SessionFromContext(r.Context()); s != nil {
		h.endSession(w, r, s, "logout")
		logging.Ctx(r.Context()).Info().Str("user_id", s.UserID).Msg("Logged out")
	} else {
		h.deps.Sessions.ClearSessionCookie(w)
	}
	http.Redirect(w, r, "/", http.StatusFound)
}
