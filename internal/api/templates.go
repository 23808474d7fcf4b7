// Stridemap - Fitness Activity Maps
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stridemap

package api

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/tomtom215/stridemap/internal/activity"
	"github.com/tomtom215/stridemap/internal/auth"
	"github.com/tomtom215/stridemap/internal/logging"
	"github.com/tomtom215/stridemap/internal/strava"
)

//go:embed templates/*.html
var templateFS embed.FS

var templateFuncs = template.FuncMap{
	"speed_to_pace": activity.SpeedToPace,
	"get_date":      activity.FormatDate,
	"get_time":      activity.FormatClock,
	"moving_time":   activity.FormatMovingTime,
	"km":            activity.FormatKilometers,
}

// Page names.
const (
	pageLogin      = "login"
	pageActivities = "activities"
	pageActivity   = "activity"
	pageError      = "error"
)

// pages holds one template set per page, each parsed with the shared layout.
var pages = mustParsePages(pageLogin, pageActivities, pageActivity, pageError)

func mustParsePages(names ...string) map[string]*template.Template {
	out := make(map[string]*template.Template, len(names))
	for _, name := range names {
		out[name] = template.Must(template.New(name).Funcs(templateFuncs).ParseFS(templateFS,
			"templates/layout.html",
			"templates/"+name+".html",
		))
	}
	return out
}

// pageData is passed to every page template.
type pageData struct {
	Athlete *strava.Athlete

	AuthURL string

	Activities []activity.Activity
	Sort       string

	View *activityView

	Message   string
	RequestID string
}

// activityView is the cached model of the activity page.
type activityView struct {
	Activity     activity.Activity
	MapURL       string
	ElevationURL string
	GPXURL       string
	ShareURL     string
}

func newPageData(r *http.Request) pageData {
	var data pageData
	if s := auth.SessionFromContext(r.Context()); s != nil {
		athlete := s.Athlete
		data.Athlete = &athlete
	}
	return data
}

// render executes a page into a buffer first so template errors never
// produce half-written responses.
func render(w http.ResponseWriter, r *http.Request, status int, name string, data pageData) {
	tmpl, ok := pages[name]
	if !ok {
		logging.Ctx(r.Context()).Error().Str("page", name).Msg("Unknown page template")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Str("page", name).Msg("Failed to render page")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	//nolint:errcheck // client went away
	buf.WriteTo(w)
}

// renderError shows the error page with a user-facing message.
func renderError(w http.ResponseWriter, r *http.Request, status int, format string, args ...interface{}) {
	data := newPageData(r)
	data.Message = fmt.Sprintf(format, args...)
	data.RequestID = logging.RequestIDFromContext(r.Context())
	render(w, r, status, pageError, data)
}
