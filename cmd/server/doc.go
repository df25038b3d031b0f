// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

/*
Package main is the entry point for the Cartographus live-event server.

Cartographus hosts multi-tenant live events: audiences join an event's
WebSocket socket as a viewer, moderator, speaker, or reports role, chat,
ask and moderate questions, vote on live polls, and watch a periodically
recomputed reports dashboard, all realized over the components listed in
internal/gateway's package doc.

# Application Architecture

The server runs under Suture v4 process supervision, the same three-layer
shape the media-analytics build of this binary used:

	RootSupervisor ("cartographus")
	├── DataSupervisor ("data-layer")
	│   └── (reserved for future durable-writeback background jobs)
	├── MessagingSupervisor ("messaging-layer")
	│   └── snapshot.Publisher's periodic recompute tick
	└── APISupervisor ("api-layer")
	    └── HTTP/WebSocket server (chi router, /ws upgrade)

Component initialization order:

 1. Configuration: Koanf v2, env vars over an optional YAML file over defaults
 2. Logging: zerolog, JSON or console
 3. Hot store: embedded Badger (presence, throttling, live polls)
 4. Durable store: Postgres pool + schema (events, chat, questions, polls,
    roles, session analytics)
 5. Sessions and authorization: cookie/bearer sessions, Casbin-backed RBAC
 6. Domain services: presence tracker, validator, Q&A and poll pipelines,
    the event-scoped broadcast hub (optionally bridged across instances
    over NATS), registration/capacity gating
 7. Gateway: the single /ws upgrade handler tying the above together
 8. Reports snapshot publisher, wired back into the gateway after both
    exist (internal/gateway.Gateway.SetSnapshot)
 9. Supervisor tree: the snapshot publisher and HTTP server as supervised
    services

# Configuration

Configuration is loaded via Koanf v2 with layered sources (highest
priority wins): environment variables > config file > built-in defaults.
See internal/config for the full set of koanf-tagged fields; the
CONFIG_PATH environment variable (or config.yaml in the working
directory) selects the file layer.

# Build Tags

	go build ./cmd/server                 # single-instance, no cross-instance bridge
	go build -tags nats ./cmd/server      # enable the NATS broadcast bridge

# Signal Handling

The server handles graceful shutdown on SIGINT and SIGTERM:

 1. Cancels the root context, which stops accepting new HTTP connections
 2. Waits for in-flight requests up to the server's shutdown timeout
 3. Stops the snapshot publisher's tick loop
 4. Closes the durable pool and hot store
 5. Reports any services that failed to stop within their deadline

# See Also

  - internal/config: configuration management
  - internal/supervisor: process supervision
  - internal/gateway: the WebSocket entry point and per-socket lifecycle
  - internal/api: HTTP routing
  - internal/snapshot: reports dashboard computation
*/
package main
