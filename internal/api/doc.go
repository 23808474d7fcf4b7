// Stridemap - Fitness Activity Maps
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stridemap

/*
Package api serves the Stridemap web pages.

Routes:

	GET  /                     redirect to /activities or /login
	GET  /login                Strava authorization link
	GET  /auth                 OAuth callback
	GET  /logout               end session, remove the user's maps
	GET  /activities           activity table, ?sort=<column>
	GET  /activities.xlsx      activity table as a spreadsheet
	GET  /activity             activity page with map, ?id=<activity id>
	GET  /activity/{id}.gpx    GPX track
	GET  /maps/{id}.html       map artifact
	GET  /maps/{id}/elevation  elevation chart
	POST /maps/{id}/share      publish a map, JSON envelope with the link
	GET  /s/{token}            shared map, public
	GET  /healthz              liveness
	GET  /metrics              Prometheus metrics

Pages are html/template documents embedded from templates/. The only JSON
endpoints are /healthz and the share upload, which uses the APIResponse
envelope.

Access is decided by the authz route policy. Anonymous requests to
protected pages are redirected to /login. Whether a particular map belongs
to the session is checked by the handlers against the session's map list.
*/
package api
