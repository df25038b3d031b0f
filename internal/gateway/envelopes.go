// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package gateway

// ChatEnvelope is the outbound `chat` frame.
type ChatEnvelope struct {
	Type      string `json:"type"`
	User      string `json:"user"`
	UserID    string `json:"user_id,omitempty"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// EventClosedEnvelope mirrors `event_closed`, sent by kick_all ahead of
// closing every socket bound to the event.
type EventClosedEnvelope struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ForceLogoutEnvelope mirrors `force_logout`, sent to a single socket
// whose session was revoked mid-connection.
type ForceLogoutEnvelope struct {
	Type   string `json:"type"`
	UserID string `json:"user_id"`
}

// ErrorEnvelope mirrors `error`, a rejected-message notice delivered to
// the sending socket alone (never broadcast).
type ErrorEnvelope struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func newErrorEnvelope(message string) ErrorEnvelope {
	return ErrorEnvelope{Type: "error", Message: message}
}
