// Stridemap - Fitness Activity Maps
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stridemap

package api

import (
	"bytes"
	"context"
	"net/http"
	"slices"

	"github.com/tomtom215/stridemap/internal/activity"
	"github.com/tomtom215/stridemap/internal/auth"
	"github.com/tomtom215/stridemap/internal/cache"
	"github.com/tomtom215/stridemap/internal/export"
	"github.com/tomtom215/stridemap/internal/logging"
	"github.com/tomtom215/stridemap/internal/validation"
)

// activities returns the user's activity list in API order, from the
// per-user cache when possible. Callers must not modify the result.
func (h *Handler) activities(ctx context.Context, s *auth.Session, token string) ([]activity.Activity, error) {
	key := cache.UserKey(s.UserID, "activities")
	if cached, ok := h.deps.ActivitiesCache.Get(key); ok {
		if list, ok := cached.([]activity.Activity); ok {
			return list, nil
		}
	}

	list, err := h.deps.Strava.ListActivities(ctx, token)
	if err != nil {
		return nil, err
	}
	h.deps.ActivitiesCache.Set(key, list)
	return list, nil
}

// sortColumn returns the ?sort= column, or "" when absent or unknown.
func sortColumn(r *http.Request) string {
	col := r.URL.Query().Get("sort")
	if col == "" || !validation.ValidVar(col, "activity_column") {
		return ""
	}
	return col
}

// Activities renders the activity table. A known ?sort= column sorts the
// table; clicking the same column again flips the direction.
func (h *Handler) Activities(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s := auth.SessionFromContext(ctx)

	token, err := h.accessToken(ctx, s)
	if err != nil {
		h.upstreamFailed(w, r, s, err)
		return
	}

	list, err := h.activities(ctx, s, token)
	if err != nil {
		h.upstreamFailed(w, r, s, err)
		return
	}

	col := sortColumn(r)
	if col != "" {
		ascending := activity.NextAscending(r.Referer(), col, s.Ascending)
		_, err = h.deps.Sessions.Modify(ctx, s.ID, func(stored *auth.Session) {
			ascending = activity.NextAscending(r.Referer(), col, stored.Ascending)
			stored.Ascending = ascending
		})
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("Failed to save sort direction")
		}
		s.Ascending = ascending
		list = slices.Clone(list)
		activity.Sort(list, col, s.Ascending)
	}

	data := newPageData(r)
	data.Activities = list
	data.Sort = col
	render(w, r, http.StatusOK, pageActivities, data)
}

// ActivitiesXLSX downloads the activity table as a spreadsheet. A ?sort=
// column applies the session's current direction without flipping it.
func (h *Handler) ActivitiesXLSX(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s := auth.SessionFromContext(ctx)

	token, err := h.accessToken(ctx, s)
	if err != nil {
		h.upstreamFailed(w, r, s, err)
		return
	}

	list, err := h.activities(ctx, s, token)
	if err != nil {
		h.upstreamFailed(w, r, s, err)
		return
	}

	if col := sortColumn(r); col != "" {
		list = slices.Clone(list)
		activity.Sort(list, col, s.Ascending)
	}

	var buf bytes.Buffer
	if err := export.WriteActivities(&buf, list); err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("Failed to build spreadsheet")
		renderError(w, r, http.StatusInternalServerError, "Could not build the spreadsheet.")
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="activities.xlsx"`)
	w.Header().Set("Cache-Control", "no-store")
	//nolint:errcheck // client went away
	buf.WriteTo(w)
}
