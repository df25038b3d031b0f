// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

/*
Package config loads and validates the event server's configuration.

# Configuration Sources

Settings are layered, lowest priority first, via github.com/knadh/koanf/v2:

  - Built-in defaults (defaultConfig in koanf.go)
  - An optional YAML file (config.yaml, or the path named by CONFIG_PATH)
  - Environment variables (highest priority, mapped via envTransformFunc)

# Configuration Structure

  - ServerConfig: HTTP/WebSocket listener (host, port, timeout)
  - SecurityConfig: session cookie, session store backend, rate limits,
    CORS, and the embedded CasbinConfig for internal/authz
  - LoggingConfig: zerolog level/format/caller
  - DatabaseConfig: the durable Postgres pool (internal/store)
  - HotStoreConfig: the embedded Badger instance (internal/hotstore)
  - PresenceConfig: the sliding-window liveness tracker's window and
    writeback interval
  - ValidatorConfig: the inbound message validator's limits
  - SnapshotConfig: the derived-view publisher's cadence and cache TTL
  - NATSConfig: the optional cross-instance broadcast bridge, built under
    the "nats" tag
  - WriteBehindConfig: internal/store's async durable-write queue

# Usage

	cfg, err := config.LoadWithKoanf()
	if err != nil {
	    log.Fatal().Err(err).Msg("failed to load configuration")
	}

# Validation

Config.Validate() is called automatically by LoadWithKoanf and checks
required fields, numeric ranges, and cross-field constraints (e.g.
wildcard CORS origins are rejected once ENVIRONMENT=production).

# Thread Safety

A *Config is immutable after LoadWithKoanf returns, so it is safe to share
across goroutines without synchronization.
*/
package config
