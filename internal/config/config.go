// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package config loads and validates the event server's configuration:
// env vars layered over an optional YAML file layered over built-in
// defaults, via github.com/knadh/koanf/v2.
package config

import "time"

// Config is the top-level configuration for the event server process.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Security    SecurityConfig    `koanf:"security"`
	Logging     LoggingConfig     `koanf:"logging"`
	Database    DatabaseConfig    `koanf:"database"`
	HotStore    HotStoreConfig    `koanf:"hotstore"`
	Presence    PresenceConfig    `koanf:"presence"`
	Validator   ValidatorConfig   `koanf:"validator"`
	Snapshot    SnapshotConfig    `koanf:"snapshot"`
	NATS        NATSConfig        `koanf:"nats"`
	WriteBehind WriteBehindConfig `koanf:"writebehind"`
}

// ServerConfig holds HTTP/WebSocket listener settings.
type ServerConfig struct {
	Port        int           `koanf:"port"`
	Host        string        `koanf:"host"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"`
}

// SecurityConfig holds session/cookie/authorization and rate-limit settings.
type SecurityConfig struct {
	CookieName     string        `koanf:"cookie_name"`
	CookieSecure   bool          `koanf:"cookie_secure"`
	SessionTimeout time.Duration `koanf:"session_timeout"`

	// SessionStore selects "memory" or "badger" for internal/auth's
	// SessionStoreFactory.
	SessionStore     string `koanf:"session_store"`
	SessionStorePath string `koanf:"session_store_path"`

	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`

	CORSOrigins    []string `koanf:"cors_origins"`
	TrustedProxies []string `koanf:"trusted_proxies"`

	// BearerSecret enables stateless JWT bearer authentication for
	// service-to-service callers (internal/auth.BearerManager) when
	// non-empty. Empty (the default) leaves cookie sessions as the only
	// auth path.
	BearerSecret string        `koanf:"bearer_secret"`
	BearerTTL    time.Duration `koanf:"bearer_ttl"`

	Casbin CasbinConfig `koanf:"casbin"`
}

// CasbinConfig controls internal/authz.Enforcer's model/policy sources.
// Both paths default to empty, which makes the enforcer fall back to its
// embedded model.conf/policy.csv.
type CasbinConfig struct {
	ModelPath      string        `koanf:"model_path"`
	PolicyPath     string        `koanf:"policy_path"`
	DefaultRole    string        `koanf:"default_role"`
	AutoReload     bool          `koanf:"auto_reload"`
	ReloadInterval time.Duration `koanf:"reload_interval"`
	CacheEnabled   bool          `koanf:"cache_enabled"`
	CacheTTL       time.Duration `koanf:"cache_ttl"`
}

// LoggingConfig controls internal/logging's zerolog setup.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// DatabaseConfig configures the durable Postgres pool (internal/store).
type DatabaseConfig struct {
	DSN            string        `koanf:"dsn"`
	MaxConns       int32         `koanf:"max_conns"`
	ConnectTimeout time.Duration `koanf:"connect_timeout"`
}

// HotStoreConfig configures the embedded Badger instance (internal/hotstore)
// backing presence, the validator's throttle keys, and live poll state.
// Sessions live in a separate store (SecurityConfig.SessionStore).
type HotStoreConfig struct {
	// Dir is the Badger data directory. Empty means in-memory, used by
	// every package's test suite and by single-instance deployments with
	// no restart-durability requirement.
	Dir string `koanf:"dir"`
}

// PresenceConfig configures internal/presence's sliding-window liveness
// tracking.
type PresenceConfig struct {
	// ActiveWindow is W, the sliding window a user counts as "live" within.
	ActiveWindow time.Duration `koanf:"active_window"`
	// WritebackInterval is T, the minimum gap between durable last-seen
	// writebacks for the same (event, user).
	WritebackInterval time.Duration `koanf:"writeback_interval"`
}

// ValidatorConfig configures internal/validator's three checks: max
// length, throttle window, and duplicate-storm detection.
type ValidatorConfig struct {
	MaxMessageLength   int           `koanf:"max_message_length"`
	ThrottleWindow     time.Duration `koanf:"throttle_window"`
	DuplicateWindow    time.Duration `koanf:"duplicate_window"`
	DuplicateThreshold int64         `koanf:"duplicate_threshold"`
}

// SnapshotConfig configures internal/snapshot's periodic recompute cadence
// and cache TTL.
type SnapshotConfig struct {
	Interval    time.Duration `koanf:"interval"`
	CacheTTL    time.Duration `koanf:"cache_ttl"`
	ChartWindow time.Duration `koanf:"chart_window"`
	ChartBucket time.Duration `koanf:"chart_bucket"`
}

// NATSConfig configures the optional cross-instance broadcast bridge
// (internal/broadcast's nats_bridge.go, built under the "nats" tag).
type NATSConfig struct {
	Enabled bool   `koanf:"enabled"`
	URL     string `koanf:"url"`
	// EmbeddedServer and StoreDir are validated but not yet backed by an
	// in-process broker; the bridge always dials URL as an external
	// server. Set for forward compatibility with an embedded deployment.
	EmbeddedServer bool   `koanf:"embedded_server"`
	StoreDir       string `koanf:"store_dir"`
}

// WriteBehindConfig configures internal/store.WriteBehindQueue.
type WriteBehindConfig struct {
	Workers    int           `koanf:"workers"`
	MaxRetries int           `koanf:"max_retries"`
	RetryDelay time.Duration `koanf:"retry_delay"`
}
