// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Connected sockets, per event-scoped broadcast role (C6/C7).

var (
	// ConnectedSockets is the current number of open WebSocket connections
	// registered under a given broadcast role, one gauge per role summed
	// across all events.
	ConnectedSockets = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gateway_connected_sockets",
			Help: "Current number of open WebSocket connections by broadcast role",
		},
		[]string{"role"},
	)

	// BroadcastsTotal counts fan-out sends by envelope type.
	BroadcastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcast_sends_total",
			Help: "Total number of envelopes fanned out by the broadcast hub",
		},
		[]string{"envelope_type"},
	)

	// ValidatorRejectionsTotal counts inbound chat/Q&A messages rejected by
	// internal/validator, split by the rule that rejected them.
	ValidatorRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "validator_rejections_total",
			Help: "Total number of messages rejected by the validator",
		},
		[]string{"kind", "reason"},
	)

	// PollVotesTotal counts accepted poll votes per event.
	PollVotesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poll_votes_total",
			Help: "Total number of accepted poll votes",
		},
		[]string{"event_id"},
	)

	// SnapshotComputeDuration tracks how long a single event's derived-view
	// bundle recompute takes, the periodic tick's per-event cost.
	SnapshotComputeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "snapshot_compute_duration_seconds",
			Help:    "Duration of a single event's snapshot bundle recompute",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// RecordSocketConnected increments the connected-socket gauge for role.
func RecordSocketConnected(role string) {
	ConnectedSockets.WithLabelValues(role).Inc()
}

// RecordSocketDisconnected decrements the connected-socket gauge for role.
func RecordSocketDisconnected(role string) {
	ConnectedSockets.WithLabelValues(role).Dec()
}

// RecordBroadcast records one envelope fan-out of the given type.
func RecordBroadcast(envelopeType string) {
	BroadcastsTotal.WithLabelValues(envelopeType).Inc()
}

// RecordValidatorRejection records one message rejected for reason (kind is
// "chat" or "qa"; reason is "length", "throttle", or "duplicate").
func RecordValidatorRejection(kind, reason string) {
	ValidatorRejectionsTotal.WithLabelValues(kind, reason).Inc()
}

// RecordPollVote records one accepted vote for eventID.
func RecordPollVote(eventID string) {
	PollVotesTotal.WithLabelValues(eventID).Inc()
}

// RecordSnapshotCompute records one bundle recompute's wall-clock duration.
func RecordSnapshotCompute(d time.Duration) {
	SnapshotComputeDuration.Observe(d.Seconds())
}
