// Stridemap - Fitness Activity Maps
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stridemap

/*
Package main is the entry point for the Stridemap server.

Stridemap lets an athlete log in with Strava, browse their activities in a
sortable table and open any activity as an interactive map on topographic
tiles. Maps can be exported as GPX, the list as a spreadsheet, and a map can
be published behind a signed link.

# Application Architecture

	RootSupervisor ("stridemap")
	├── MaintenanceSupervisor ("maintenance-layer")
	│   ├── session-janitor  (expired sessions, orphaned map dirs, OAuth states)
	│   ├── cache-janitor    (expired cache entries)
	│   └── storage-gc       (BadgerDB value log)
	└── APISupervisor ("api-layer")
	    └── http-server

Startup order:

 1. .env file (optional, godotenv)
 2. Configuration: koanf with defaults, YAML file and environment
 3. Logging: zerolog, JSON or console
 4. Storage: BadgerDB at STORAGE_PATH, shared by sessions and share links
 5. Session store: memory, badger or redis
 6. Strava client behind a circuit breaker, OAuth flow
 7. Map store, caches, optional elevation chart client and share service
 8. Casbin route policy and the chi router
 9. Supervisor tree

# Configuration

	STRAVA_CLIENT_ID=12345             # required
	STRAVA_CLIENT_SECRET=...           # required
	BASE_URL=https://maps.example.org  # public origin; /auth is the OAuth redirect
	HTTP_PORT=8282
	SECRET_KEY=<32+ chars>             # required in production, signs share links
	SESSION_STORE=memory               # memory, badger or redis
	MAPS_DIR=./data/maps
	STORAGE_PATH=./data/store
	LOG_LEVEL=info
	LOG_FORMAT=json

See internal/config for the full list.

# Signal Handling

SIGINT and SIGTERM cancel the root context. The HTTP server drains for up
to ten seconds, then BadgerDB and the session store are closed.
*/
package main
