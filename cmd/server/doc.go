// Engagement - Interaction Recording and Aggregate Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagement

/*
Package main is the entry point for the engagement server.

The server records likes, saves, reposts, comments and views against content
items, keeps a per-item aggregate block current under optimistic concurrency,
and answers owner-scoped overview and breakdown queries over HTTP.

# Application Architecture

Long-running components run under a Suture v4 supervisor tree:

	RootSupervisor ("engagement")
	├── DataSupervisor ("data-layer")
	│   └── Badger value log GC
	├── MaintenanceSupervisor ("maintenance-layer")
	│   └── Reconciler (aggregate sweep, RECONCILE_ENABLED)
	└── APISupervisor ("api-layer")
	    └── HTTP Server

Component initialization order:

 1. Configuration: Koanf v2 with environment variables and config files
 2. Logging: zerolog with JSON/console output modes
 3. Content store: BadgerDB (on disk or in memory)
 4. Anomaly log: DuckDB table, or a bounded in-memory ring
 5. Event bus: NATS JetStream or in-process gochannel (optional)
 6. Identity directory: profile service client with cache and breaker
 7. Recorder, reconciler and analytics engine
 8. Authentication: JWT bearer tokens or trusted gateway header
 9. HTTP Server: Chi router with middleware stack

# Configuration

Configuration is loaded via Koanf v2 with layered sources (highest priority wins):

	Priority: Environment variables > Config file > Defaults

Core environment variables:

	HTTP_PORT=8080
	LOG_LEVEL=info               # trace, debug, info, warn, error
	LOG_FORMAT=json              # json or console

	AUTH_MODE=jwt                # jwt or header
	JWT_SECRET=<32+ chars>
	ADMIN_USERS=alice,bob

	BADGER_PATH=/data/engagement/badger
	ANOMALY_DB_PATH=/data/engagement/anomalies.duckdb

	EVENTS_ENABLED=true
	EVENTS_TRANSPORT=nats        # nats or memory
	NATS_EMBEDDED=true

	IDENTITY_URL=http://profiles:8080/v1/users/batch

The config file is read from CONFIG_PATH, ./config.yaml or
/etc/engagement/config.yaml.

# Graceful Shutdown

SIGINT and SIGTERM cancel the root context. The supervisor stops the API
layer first, the HTTP server drains in-flight requests within
SHUTDOWN_TIMEOUT, and the deferred closes then flush the event bus, the
anomaly database and Badger.
*/
package main
