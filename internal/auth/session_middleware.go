// Stridemap - Fitness Activity Maps
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stridemap

package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/tomtom215/stridemap/internal/logging"
	"github.com/tomtom215/stridemap/internal/metrics"
)

// SessionMiddlewareConfig holds configuration for the session middleware.
type SessionMiddlewareConfig struct {
	CookieName string

	SessionTTL time.Duration

	// SlidingSession extends the expiry on every authenticated request.
	SlidingSession bool

	CookiePath     string
	CookieDomain   string
	CookieSecure   bool
	CookieHTTPOnly bool
	CookieSameSite http.SameSite
}

// DefaultSessionMiddlewareConfig returns sensible defaults.
func DefaultSessionMiddlewareConfig() *SessionMiddlewareConfig {
	return &SessionMiddlewareConfig{
		CookieName:     "stridemap_session",
		SessionTTL:     24 * time.Hour,
		SlidingSession: true,
		CookiePath:     "/",
		CookieSecure:   true,
		CookieHTTPOnly: true,
		CookieSameSite: http.SameSiteLaxMode,
	}
}

// SessionMiddleware loads sessions from the cookie and manages their lifecycle.
type SessionMiddleware struct {
	store  SessionStore
	config *SessionMiddlewareConfig
}

// NewSessionMiddleware creates a new session middleware.
func NewSessionMiddleware(store SessionStore, config *SessionMiddlewareConfig) *SessionMiddleware {
	if config == nil {
		config = DefaultSessionMiddlewareConfig()
	}
	return &SessionMiddleware{store: store, config: config}
}

// Store returns the underlying session store.
func (m *SessionMiddleware) Store() SessionStore {
	return m.store
}

// Authenticate puts the cookie's session into the request context when it
// is valid. Requests without a usable session continue anonymously; the
// authorization layer decides whether that is allowed.
func (m *SessionMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID := m.extractSessionID(r)
		if sessionID == "" {
			next.ServeHTTP(w, r)
			return
		}

		session, err := m.store.Get(r.Context(), sessionID)
		if err != nil {
			if !errors.Is(err, ErrSessionNotFound) && !errors.Is(err, ErrSessionExpired) {
				logging.Ctx(r.Context()).Error().Err(err).Msg("Session lookup error")
			}
			next.ServeHTTP(w, r)
			return
		}

		if m.config.SlidingSession {
			newExpiry := time.Now().Add(m.config.SessionTTL)
			if err := m.store.Touch(r.Context(), sessionID, newExpiry); err != nil {
				logging.Ctx(r.Context()).Warn().Err(err).Msg("Failed to touch session")
			} else {
				session.ExpiresAt = newExpiry
			}
		}

		next.ServeHTTP(w, r.WithContext(ContextWithSession(r.Context(), session)))
	})
}

func (m *SessionMiddleware) extractSessionID(r *http.Request) string {
	cookie, err := r.Cookie(m.config.CookieName)
	if err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return ""
}

// SetSessionCookie sets the session cookie on the response.
func (m *SessionMiddleware) SetSessionCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.config.CookieName,
		Value:    sessionID,
		Path:     m.config.CookiePath,
		Domain:   m.config.CookieDomain,
		MaxAge:   int(m.config.SessionTTL.Seconds()),
		Secure:   m.config.CookieSecure,
		HttpOnly: m.config.CookieHTTPOnly,
		SameSite: m.config.CookieSameSite,
	})
}

// ClearSessionCookie clears the session cookie.
func (m *SessionMiddleware) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.config.CookieName,
		Value:    "",
		Path:     m.config.CookiePath,
		Domain:   m.config.CookieDomain,
		MaxAge:   -1,
		Secure:   m.config.CookieSecure,
		HttpOnly: m.config.CookieHTTPOnly,
		SameSite: m.config.CookieSameSite,
	})
}

// CreateSession stores session, deleting the request's previous session
// first so a pre-login cookie can never be promoted.
func (m *SessionMiddleware) CreateSession(ctx context.Context, w http.ResponseWriter, r *http.Request, session *Session) error {
	if oldID := m.extractSessionID(r); oldID != "" {
		//nolint:errcheck // best effort
		m.store.Delete(ctx, oldID)
	}

	session.ExpiresAt = time.Now().Add(m.config.SessionTTL)
	if err := m.store.Create(ctx, session); err != nil {
		return err
	}

	metrics.SessionsCreated.Inc()
	m.SetSessionCookie(w, session.ID)
	return nil
}

// Modify changes one stored session atomically. Handlers use it instead of
// writing back their request copy, which would drop changes made by
// requests running at the same time.
func (m *SessionMiddleware) Modify(ctx context.Context, sessionID string, fn func(*Session)) (*Session, error) {
	return m.store.Modify(ctx, sessionID, fn)
}

// DestroySession deletes the session and clears the cookie.
func (m *SessionMiddleware) DestroySession(ctx context.Context, w http.ResponseWriter, sessionID, reason string) error {
	m.ClearSessionCookie(w)
	if err := m.store.Delete(ctx, sessionID); err != nil {
		return err
	}
	metrics.SessionsDestroyed.WithLabelValues(reason).Inc()
	return nil
}
