// Stridemap - Fitness Activity Maps
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stridemap

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/stridemap/internal/auth"
	"github.com/tomtom215/stridemap/internal/authz"
	"github.com/tomtom215/stridemap/internal/middleware"
)

// chiMiddleware adapts http.HandlerFunc middleware to Chi's func(http.Handler) http.Handler.
func chiMiddleware(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}

// Router wires handlers to routes.
type Router struct {
	handler       *Handler
	sessions      *auth.SessionMiddleware
	authorizer    *authz.Middleware
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a router. Refused anonymous requests are sent to
// /login, or get a JSON 401 for write endpoints.
func NewRouter(handler *Handler, sessions *auth.SessionMiddleware, enforcer *authz.Enforcer, mw *ChiMiddleware) *Router {
	authorizer := authz.NewMiddleware(enforcer)
	authorizer.Unauthenticated = func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			NewResponseWriter(w, r).Unauthorized("Log in first")
			return
		}
		http.Redirect(w, r, "/login", http.StatusFound)
	}
	authorizer.Forbidden = func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			NewResponseWriter(w, r).Forbidden("Not allowed")
			return
		}
		renderError(w, r, http.StatusForbidden, "You are not allowed to view this page.")
	}

	if mw == nil {
		mw = NewChiMiddleware(nil)
	}

	return &Router{
		handler:       handler,
		sessions:      sessions,
		authorizer:    authorizer,
		chiMiddleware: mw,
	}
}

// SetupChi builds the HTTP handler.
//
// Every route sits behind the session loader and the route policy, so a
// path missing from the policy is refused rather than exposed.
func (router *Router) SetupChi() http.Handler {
	h := router.handler
	r := chi.NewRouter()

	r.Use(chiMiddleware(middleware.RequestID))
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS())
	r.Use(SecurityHeaders())
	r.Use(chiMiddleware(middleware.PrometheusMetrics))
	r.Use(router.chiMiddleware.RateLimit())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		renderError(w, r, http.StatusNotFound, "Page not found.")
	})

	r.Group(func(r chi.Router) {
		r.Use(router.sessions.Authenticate)
		r.Use(router.authorizer.Authorize)

		r.Get("/healthz", h.Healthz)
		r.Method(http.MethodGet, "/metrics", promhttp.Handler())

		r.Group(func(r chi.Router) {
			r.Use(chiMiddleware(middleware.Compression))

			r.Get("/", h.Index)
			r.With(router.chiMiddleware.RateLimitLogin()).Get("/login", h.Login)
			r.With(router.chiMiddleware.RateLimitAuth()).Get("/auth", h.Auth)
			r.Get("/logout", h.Logout)

			r.Get("/activities", h.Activities)
			r.Get("/activities.xlsx", h.ActivitiesXLSX)
			r.Get("/activity", h.Activity)
			r.Get("/activity/{id}.gpx", h.GPX)

			r.Get("/maps/{id}.html", h.Map)
			r.Get("/maps/{id}/elevation", h.Elevation)
			r.With(router.chiMiddleware.RateLimitShare()).Post("/maps/{id}/share", h.Share)

			r.Get("/s/{token}", h.SharedMap)
		})
	})

	return r
}
