// Stridemap - Fitness Activity Maps
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stridemap

// Package services holds the suture.Service implementations run by the
// supervisor tree: the web server (WebService) and the periodic janitors.
//
// The janitors depend on small interfaces (SessionSource, MapPruner,
// StateSource, ExpiringCache) rather than on the auth, mapstore and cache
// packages, so those packages can be faked in tests.
package services
