// Stridemap - Fitness Activity Maps
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stridemap

package authz

import (
	"net/http"

	"github.com/tomtom215/stridemap/internal/auth"
	"github.com/tomtom215/stridemap/internal/logging"
)

// DenyFunc writes the response for a refused request.
type DenyFunc func(w http.ResponseWriter, r *http.Request)

// Middleware gates routes with the Enforcer.
type Middleware struct {
	enforcer *Enforcer

	// Unauthenticated handles anonymous requests the policy refuses.
	Unauthenticated DenyFunc

	// Forbidden handles logged-in requests the policy refuses.
	Forbidden DenyFunc
}

// NewMiddleware creates a new authorization middleware. Without custom
// handlers, refusals are plain 401 and 403 responses.
func NewMiddleware(enforcer *Enforcer) *Middleware {
	return &Middleware{
		enforcer: enforcer,
		Unauthenticated: func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
		},
		Forbidden: func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "Forbidden", http.StatusForbidden)
		},
	}
}

// RoleFor returns the policy role of the request.
func RoleFor(r *http.Request) string {
	if auth.SessionFromContext(r.Context()) != nil {
		return RoleAthlete
	}
	return RoleAnonymous
}

// Authorize checks the request path against the policy using the action
// implied by the method. It must run after auth.SessionMiddleware.Authenticate.
func (m *Middleware) Authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role := RoleFor(r)

		allowed, err := m.enforcer.Enforce(role, r.URL.Path, methodToAction(r.Method))
		if err != nil {
			logging.Ctx(r.Context()).Error().Err(err).Msg("Authorization error")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		if !allowed {
			if role == RoleAnonymous {
				m.Unauthenticated(w, r)
			} else {
				m.Forbidden(w, r)
			}
			return
		}

		next.ServeHTTP(w, r)
	})
}

func methodToAction(method string) string {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return ActionWrite
	default:
		return ActionRead
	}
}
