// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package models

import "time"

// ChatMessage is one line of an event's chat log. A per-event ring of the
// most recent N (default 100) lives in the hot cache for fast replay on
// join; every message is additionally written through to durable history.
type ChatMessage struct {
	ID        string    `json:"id"`
	EventID   string    `json:"event_id"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user"`
	Text      string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
