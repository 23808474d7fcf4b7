// Stridemap - Fitness Activity Maps
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stridemap

package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/tomtom215/stridemap/internal/activity"
	"github.com/tomtom215/stridemap/internal/auth"
	"github.com/tomtom215/stridemap/internal/cache"
	"github.com/tomtom215/stridemap/internal/logging"
	"github.com/tomtom215/stridemap/internal/mapview"
	"github.com/tomtom215/stridemap/internal/metrics"
	"github.com/tomtom215/stridemap/internal/strava"
	"github.com/tomtom215/stridemap/internal/validation"
)

func parseActivityID(raw string) (int64, bool) {
	if !validation.ValidVar(raw, "required,numeric_id") {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	return id, err == nil
}

func findActivity(list []activity.Activity, id int64) activity.Activity {
	for _, a := range list {
		if a.ID == id {
			return a
		}
	}
	return activity.Activity{ID: id, Name: fmt.Sprintf("Activity %d", id)}
}

// Activity renders the page for ?id=, or for the first activity of the list
// when no id is given. The map artifact is regenerated unless a cached view
// exists and its artifact is still on disk.
func (h *Handler) Activity(w http.ResponseWriter, r *http.Request) {
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

	var id int64
	if raw := r.URL.Query().Get("id"); raw != "" {
		var ok bool
		if id, ok = parseActivityID(raw); !ok {
			renderError(w, r, http.StatusBadRequest, "Invalid activity id.")
			return
		}
	} else {
		if len(list) == 0 {
			renderError(w, r, http.StatusNotFound, "You have no activities yet.")
			return
		}
		id = list[0].ID
	}

	key := cache.GenerateKey(s.UserID, "activity", id)
	if cached, ok := h.deps.ActivityCache.Get(key); ok && s.HasMap(id) && h.deps.Maps.HasMap(s.UserID, id) {
		if view, ok := cached.(*activityView); ok {
			h.renderActivity(w, r, view)
			return
		}
	}

	view, err := h.buildActivityView(ctx, s, token, findActivity(list, id))
	switch {
	case err == nil:
	case errors.Is(err, mapview.ErrEmptyTrack):
		renderError(w, r, http.StatusUnprocessableEntity, "This activity has no GPS track to draw.")
		return
	case errors.Is(err, errMapWrite):
		logging.Ctx(ctx).Error().Err(err).Int64("activity_id", id).Msg("Failed to write map")
		renderError(w, r, http.StatusInternalServerError, "Could not draw the map.")
		return
	default:
		h.upstreamFailed(w, r, s, err)
		return
	}

	h.deps.ActivityCache.Set(key, view)
	h.renderActivity(w, r, view)
}

func (h *Handler) renderActivity(w http.ResponseWriter, r *http.Request, view *activityView) {
	data := newPageData(r)
	data.View = view
	render(w, r, http.StatusOK, pageActivity, data)
}

var errMapWrite = errors.New("write map artifact")

// buildActivityView fetches the streams, writes the map and, when enabled,
// the elevation chart. The activity id is added to the session only after
// the map file is in place.
func (h *Handler) buildActivityView(ctx context.Context, s *auth.Session, token string, a activity.Activity) (*activityView, error) {
	streams, err := h.deps.Strava.GetStreams(ctx, token, a.ID, h.deps.StreamResolution)
	if err != nil {
		return nil, err
	}
	if len(streams.LatLng) == 0 {
		return nil, mapview.ErrEmptyTrack
	}

	start := time.Now()
	err = h.deps.Maps.WriteMap(s.UserID, a.ID, func(w io.Writer) error {
		return h.deps.Renderer.Render(w, a.Name, streams.LatLng)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errMapWrite, err)
	}
	metrics.RecordMapRendered("map", time.Since(start))

	s.AddMap(a.ID)
	_, err = h.deps.Sessions.Modify(ctx, s.ID, func(stored *auth.Session) {
		stored.AddMap(a.ID)
	})
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Failed to record map in session")
	}

	view := &activityView{
		Activity: a,
		MapURL:   fmt.Sprintf("/maps/%d.html", a.ID),
		GPXURL:   fmt.Sprintf("/activity/%d.gpx", a.ID),
	}
	if h.deps.Share != nil {
		view.ShareURL = fmt.Sprintf("/maps/%d/share", a.ID)
	}
	if h.renderElevation(ctx, s, a, streams) {
		view.ElevationURL = fmt.Sprintf("/maps/%d/elevation", a.ID)
	}
	return view, nil
}

// renderElevation stores the elevation chart for a. Any failure is logged
// and the page goes without a chart.
func (h *Handler) renderElevation(ctx context.Context, s *auth.Session, a activity.Activity, streams *strava.Streams) bool {
	if h.deps.Elevation == nil {
		return false
	}

	profile, ok := mapview.ElevationProfile(streams.LatLng, streams.Distance, streams.Altitude)
	if !ok {
		return false
	}

	log := logging.Ctx(ctx).With().Int64("activity_id", a.ID).Logger()

	chart, err := h.deps.Elevation.Render(ctx, a.Name, profile)
	if err != nil {
		log.Warn().Err(err).Msg("Elevation chart unavailable")
		return false
	}
	if err := h.deps.Maps.WriteElevation(s.UserID, a.ID, chart.Ext(), chart.Data); err != nil {
		log.Error().Err(err).Msg("Failed to store elevation chart")
		return false
	}

	metrics.RecordMapRendered("elevation", 0)
	return true
}
