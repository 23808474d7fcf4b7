// Stridemap - Fitness Activity Maps
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stridemap

package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/stridemap/internal/auth"
	"github.com/tomtom215/stridemap/internal/elevation"
	"github.com/tomtom215/stridemap/internal/logging"
	"github.com/tomtom215/stridemap/internal/mapview"
	"github.com/tomtom215/stridemap/internal/share"
)

const mapContentType = "text/html; charset=utf-8"

// ownedMapID returns the {id} route parameter when the session generated
// that map.
func ownedMapID(r *http.Request, s *auth.Session) (int64, bool) {
	id, ok := parseActivityID(chi.URLParam(r, "id"))
	if !ok || !s.HasMap(id) {
		return 0, false
	}
	return id, true
}

// Map serves a generated map artifact. Maps the session did not generate
// send the user to /login.
func (h *Handler) Map(w http.ResponseWriter, r *http.Request) {
	s := auth.SessionFromContext(r.Context())
	id, ok := ownedMapID(r, s)
	if !ok {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	path, err := h.deps.Maps.MapPath(s.UserID, id)
	if err != nil || !h.deps.Maps.HasMap(s.UserID, id) {
		renderError(w, r, http.StatusNotFound, "This map is no longer available. Open the activity again to redraw it.")
		return
	}

	w.Header().Set("Content-Type", mapContentType)
	w.Header().Set("Cache-Control", "private, no-cache")
	http.ServeFile(w, r, path)
}

// Elevation serves the elevation chart stored next to a map.
func (h *Handler) Elevation(w http.ResponseWriter, r *http.Request) {
	s := auth.SessionFromContext(r.Context())
	id, ok := ownedMapID(r, s)
	if !ok {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	path, ext, err := h.deps.Maps.ElevationPath(s.UserID, id, elevation.Extensions())
	if err != nil {
		http.NotFound(w, r)
		return
	}

	// Charts come from a third-party service and may be SVG; never let one
	// run script on this origin.
	w.Header().Set("Content-Security-Policy", "sandbox")
	w.Header().Set("Content-Type", elevation.ContentTypeForExt(ext))
	w.Header().Set("Cache-Control", "private, no-cache")
	http.ServeFile(w, r, path)
}

// GPX streams the activity track as a GPX 1.1 file.
func (h *Handler) GPX(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s := auth.SessionFromContext(ctx)

	id, ok := parseActivityID(chi.URLParam(r, "id"))
	if !ok {
		renderError(w, r, http.StatusBadRequest, "Invalid activity id.")
		return
	}

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
	a := findActivity(list, id)

	streams, err := h.deps.Strava.GetStreams(ctx, token, id, h.deps.StreamResolution)
	if err != nil {
		h.upstreamFailed(w, r, s, err)
		return
	}

	var buf bytes.Buffer
	err = mapview.WriteGPX(&buf, mapview.Track{
		Name:     a.Name,
		Type:     a.Type,
		Start:    a.StartDateLocal,
		LatLng:   streams.LatLng,
		Altitude: streams.Altitude,
		Time:     streams.Time,
	})
	if errors.Is(err, mapview.ErrEmptyTrack) {
		renderError(w, r, http.StatusUnprocessableEntity, "This activity has no GPS track.")
		return
	}
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Int64("activity_id", id).Msg("Failed to write GPX")
		renderError(w, r, http.StatusInternalServerError, "Could not build the GPX file.")
		return
	}

	w.Header().Set("Content-Type", "application/gpx+xml")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%d.gpx"`, id))
	//nolint:errcheck // client went away
	buf.WriteTo(w)
}

// Share uploads a generated map and answers with a public link.
func (h *Handler) Share(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rw := NewResponseWriter(w, r)

	if h.deps.Share == nil {
		rw.NotFound("Sharing is disabled")
		return
	}

	s := auth.SessionFromContext(ctx)
	id, ok := ownedMapID(r, s)
	if !ok {
		rw.NotFound("Unknown map")
		return
	}

	path, err := h.deps.Maps.MapPath(s.UserID, id)
	if err != nil {
		rw.NotFound("Unknown map")
		return
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		rw.NotFound("Map is no longer available")
		return
	}
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("Failed to read map for sharing")
		rw.InternalError("Could not read the map")
		return
	}

	link, err := h.deps.Share.Publish(ctx, s.UserID, id, mapContentType, data)
	if err != nil {
		rw.ExternalServiceError("share", err)
		return
	}
	rw.Created(link)
}

// SharedMap resolves a public share link. Bad or expired links are 404.
func (h *Handler) SharedMap(w http.ResponseWriter, r *http.Request) {
	if h.deps.Share == nil {
		http.NotFound(w, r)
		return
	}

	obj, err := h.deps.Share.Resolve(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		if !errors.Is(err, share.ErrLinkInvalid) {
			logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to resolve share link")
		}
		renderError(w, r, http.StatusNotFound, "This link is invalid or has expired.")
		return
	}

	w.Header().Set("Content-Type", obj.ContentType)
	w.Header().Set("Cache-Control", "public, max-age=300")
	//nolint:errcheck // client went away
	w.Write(obj.Data)
}
