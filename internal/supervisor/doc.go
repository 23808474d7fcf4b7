// Stridemap - Fitness Activity Maps
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stridemap

/*
Package supervisor runs Stridemap's long-lived services under suture v4.

The tree is split so that background cleanup cannot take the web server down:

	RootSupervisor ("stridemap")
	├── MaintenanceSupervisor ("maintenance-layer")
	│   ├── JanitorService "session-janitor"
	│   ├── JanitorService "cache-janitor"
	│   └── JanitorService "storage-gc"
	└── APISupervisor ("api-layer")
	    └── WebService "http-server"

Crashed services restart with suture's backoff. Supervisor events are
logged through sutureslog, which main wires to the zerolog-backed slog
handler from the logging package.

# Usage

	tree, err := supervisor.NewSupervisorTree(slogger, supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddAPIService(services.NewWebService(server, services.DefaultDrainTimeout))
	tree.AddMaintenanceService(services.NewJanitorService("cache-janitor", time.Minute, sweep.Run))

	errCh := tree.ServeBackground(ctx)
	<-ctx.Done()
	<-errCh

Services live in the services subpackage.
*/
package supervisor
