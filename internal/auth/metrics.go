// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package auth

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Session lifecycle metrics.

var (
	// SessionsCreated counts sessions created, split by provider
	// ("anon", "login", "promoted").
	SessionsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_sessions_created_total",
			Help: "Total number of sessions created",
		},
		[]string{"provider"},
	)

	// SessionsTerminated counts sessions removed from the store.
	// Labels:
	//   - reason: "logout", "expired", "gc"
	SessionsTerminated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_sessions_terminated_total",
			Help: "Total number of sessions terminated",
		},
		[]string{"reason"},
	)

	// ActiveSessions tracks the current number of non-expired sessions.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "auth_active_sessions",
			Help: "Current number of active sessions",
		},
	)

	// AuthFailures counts rejected authentication attempts by reason.
	// Labels:
	//   - reason: "no_credentials", "invalid_credentials", "expired", "store_unavailable",
	//     "invalid_bearer", "expired_bearer"
	AuthFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_failures_total",
			Help: "Total number of rejected authentication attempts",
		},
		[]string{"reason"},
	)
)

// RecordSessionCreated records a new session creation.
func RecordSessionCreated(provider string) {
	SessionsCreated.WithLabelValues(provider).Inc()
	ActiveSessions.Inc()
}

// RecordSessionTerminated records a session termination.
func RecordSessionTerminated(reason string) {
	SessionsTerminated.WithLabelValues(reason).Inc()
	ActiveSessions.Dec()
}

// RecordAuthFailure records a rejected authentication attempt.
func RecordAuthFailure(reason string) {
	AuthFailures.WithLabelValues(reason).Inc()
}

// SetActiveSessions sets the active session gauge directly, used after a
// bulk reconciliation against the session store (e.g. startup scan).
func SetActiveSessions(count int) {
	ActiveSessions.Set(float64(count))
}
