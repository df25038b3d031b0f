// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package metrics exposes the cross-cutting Prometheus instrumentation
// shared by the gateway, broadcast, validator, poll, and snapshot
// packages: connected-socket gauges per broadcast role, a broadcast send
// counter, a validator-rejection counter, a poll-vote counter, and the
// snapshot publisher's per-event compute-duration histogram.
//
// Package-local concerns (session lifecycle, authorization decisions) keep
// their own metrics.go next to the code that records them, following
// internal/auth/metrics.go and internal/authz/metrics.go; this package is
// for instrumentation shared across more than one package's domain.
package metrics
