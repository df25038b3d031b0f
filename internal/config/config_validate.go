// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package config

import (
	"fmt"
	"strings"
	"time"
)

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateSecurity(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateHotStore(); err != nil {
		return err
	}
	if err := c.validatePresence(); err != nil {
		return err
	}
	if err := c.validateValidator(); err != nil {
		return err
	}
	if err := c.validateSnapshot(); err != nil {
		return err
	}
	if err := c.validateNATS(); err != nil {
		return err
	}
	return c.validateWriteBehind()
}

// validateServer validates HTTP/WebSocket listener configuration.
func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if c.Server.Host == "" {
		return fmt.Errorf("HTTP_HOST is required")
	}
	return nil
}

// validateSecurity validates session, rate-limit, and CORS configuration.
func (c *Config) validateSecurity() error {
	if err := c.validateSessionStore(); err != nil {
		return err
	}
	if err := c.validateSessionTimeout(); err != nil {
		return err
	}
	if err := c.validateCORS(); err != nil {
		return err
	}
	return c.validateRateLimits()
}

// validSessionStores defines the allowed internal/auth.SessionStoreFactory backends.
var validSessionStores = map[string]bool{
	"memory": true,
	"badger": true,
}

// validateSessionStore checks the session store backend and, for the
// durable backend, that a data directory was given.
func (c *Config) validateSessionStore() error {
	if !validSessionStores[c.Security.SessionStore] {
		return fmt.Errorf("SESSION_STORE must be one of: memory, badger")
	}
	if c.Security.SessionStore == "badger" && c.Security.SessionStorePath == "" {
		return fmt.Errorf("SESSION_STORE_PATH is required when SESSION_STORE=badger")
	}
	return nil
}

// validateSessionTimeout rejects a non-positive session TTL.
func (c *Config) validateSessionTimeout() error {
	if c.Security.SessionTimeout <= 0 {
		return fmt.Errorf("SESSION_TIMEOUT must be positive")
	}
	return nil
}

// validateCORS rejects wildcard CORS origins in production, where any
// origin would otherwise be able to ride an audience member's session
// cookie.
func (c *Config) validateCORS() error {
	if c.hasWildcardCORS() && c.IsProduction() {
		return fmt.Errorf("CORS_ORIGINS=* (wildcard) is not allowed in production. " +
			"Set specific origins: CORS_ORIGINS=https://yourdomain.com,https://app.yourdomain.com " +
			"or use ENVIRONMENT=development for testing purposes")
	}
	return nil
}

// hasWildcardCORS checks if CORS is configured with wildcard origins.
func (c *Config) hasWildcardCORS() bool {
	for _, origin := range c.Security.CORSOrigins {
		if origin == "*" {
			return true
		}
	}
	return false
}

// ShouldWarnAboutCORS returns true if CORS configuration has security
// concerns that should be logged at startup even though they don't fail
// validation outright (e.g. wildcard origins in development).
func (c *Config) ShouldWarnAboutCORS() bool {
	return c.hasWildcardCORS() && !c.IsProduction()
}

// Rate limit bounds.
const (
	minRateLimitRequests = 1
	maxRateLimitRequests = 100000
	minRateLimitWindow   = time.Second
	maxRateLimitWindow   = time.Hour
)

// validateRateLimits validates rate limiting configuration bounds.
func (c *Config) validateRateLimits() error {
	if c.Security.RateLimitDisabled {
		return nil
	}
	if c.Security.RateLimitReqs < minRateLimitRequests || c.Security.RateLimitReqs > maxRateLimitRequests {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be between %d and %d", minRateLimitRequests, maxRateLimitRequests)
	}
	if c.Security.RateLimitWindow < minRateLimitWindow || c.Security.RateLimitWindow > maxRateLimitWindow {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be between %v and %v", minRateLimitWindow, maxRateLimitWindow)
	}
	return nil
}

// IsProduction returns true if the application is running in production mode.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Server.Environment)
	return env == "production" || env == "prod"
}

// IsDevelopment returns true if the application is running in development mode.
func (c *Config) IsDevelopment() bool {
	env := strings.ToLower(c.Server.Environment)
	return env == "" || env == "development" || env == "dev"
}

// validLogLevels defines the allowed zerolog levels.
var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validLogFormats defines the allowed log output formats.
var validLogFormats = map[string]bool{
	"json":    true,
	"console": true,
}

// validateLogging validates logging configuration.
func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "" && !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}

// validateDatabase validates the durable Postgres pool configuration.
func (c *Config) validateDatabase() error {
	if c.Database.DSN == "" {
		return fmt.Errorf("DATABASE_DSN is required")
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("DATABASE_MAX_CONNS must be at least 1")
	}
	if c.Database.ConnectTimeout <= 0 {
		return fmt.Errorf("DATABASE_CONNECT_TIMEOUT must be positive")
	}
	return nil
}

// validateHotStore validates the embedded Badger instance configuration.
// An empty directory is valid: it means an in-memory store, used by tests
// and by deployments with no restart-durability requirement.
func (c *Config) validateHotStore() error {
	return nil
}

// validatePresence validates the sliding-window liveness tracker's bounds.
func (c *Config) validatePresence() error {
	if c.Presence.ActiveWindow <= 0 {
		return fmt.Errorf("PRESENCE_ACTIVE_WINDOW must be positive")
	}
	if c.Presence.WritebackInterval <= 0 {
		return fmt.Errorf("PRESENCE_WRITEBACK_INTERVAL must be positive")
	}
	return nil
}

// validateValidator validates the inbound message validator's bounds.
func (c *Config) validateValidator() error {
	if c.Validator.MaxMessageLength < 1 {
		return fmt.Errorf("VALIDATOR_MAX_MESSAGE_LENGTH must be at least 1")
	}
	if c.Validator.ThrottleWindow <= 0 {
		return fmt.Errorf("VALIDATOR_THROTTLE_WINDOW must be positive")
	}
	if c.Validator.DuplicateWindow <= 0 {
		return fmt.Errorf("VALIDATOR_DUPLICATE_WINDOW must be positive")
	}
	if c.Validator.DuplicateThreshold < 1 {
		return fmt.Errorf("VALIDATOR_DUPLICATE_THRESHOLD must be at least 1")
	}
	return nil
}

// validateSnapshot validates the derived-view publisher's cadence.
func (c *Config) validateSnapshot() error {
	if c.Snapshot.Interval <= 0 {
		return fmt.Errorf("SNAPSHOT_INTERVAL must be positive")
	}
	if c.Snapshot.CacheTTL <= 0 {
		return fmt.Errorf("SNAPSHOT_CACHE_TTL must be positive")
	}
	if c.Snapshot.ChartWindow <= 0 {
		return fmt.Errorf("SNAPSHOT_CHART_WINDOW must be positive")
	}
	if c.Snapshot.ChartBucket <= 0 || c.Snapshot.ChartBucket > c.Snapshot.ChartWindow {
		return fmt.Errorf("SNAPSHOT_CHART_BUCKET must be positive and no larger than SNAPSHOT_CHART_WINDOW")
	}
	return nil
}

// validateNATS validates the optional cross-instance broadcast bridge
// configuration (only if enabled).
func (c *Config) validateNATS() error {
	if !c.NATS.Enabled {
		return nil
	}
	if err := validateNATSURL(c.NATS.URL); err != nil {
		return fmt.Errorf("NATS_URL is invalid: %w", err)
	}
	if c.NATS.EmbeddedServer && c.NATS.StoreDir == "" {
		return fmt.Errorf("NATS_STORE_DIR is required when NATS_EMBEDDED=true")
	}
	return nil
}

// validateWriteBehind validates the durable store's write-behind queue.
func (c *Config) validateWriteBehind() error {
	if c.WriteBehind.Workers < 1 {
		return fmt.Errorf("WRITEBEHIND_WORKERS must be at least 1")
	}
	if c.WriteBehind.MaxRetries < 0 {
		return fmt.Errorf("WRITEBEHIND_MAX_RETRIES must be non-negative")
	}
	if c.WriteBehind.RetryDelay <= 0 {
		return fmt.Errorf("WRITEBEHIND_RETRY_DELAY must be positive")
	}
	return nil
}
