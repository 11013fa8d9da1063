// Engagement - Interaction Recording and Aggregate Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagement

/*
Package supervisor runs the long-lived services of the engagement server
under a suture v4 supervisor tree.

The tree separates services into three layers so that a crash in one does not
take the others down:

	RootSupervisor ("engagement")
	├── DataSupervisor ("data-layer")
	│   └── BadgerGCService (durable store only)
	├── MaintenanceSupervisor ("maintenance-layer")
	│   └── Reconciler (if RECONCILE_ENABLED)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

Supervisor events (service panics, restarts, backoff) are logged through
sutureslog, which adapts them to the slog logger built by the logging
package.
*/
package supervisor
