// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/cartographus/internal/auth"
)

// Handler bundles the request handlers the router dispatches to. It holds
// no state of its own beyond the session store the /api/ping heartbeat
// needs to resolve the caller's cookie.
type Handler struct {
	sessions auth.SessionStore
}

// NewHandler constructs a Handler.
func NewHandler(sessions auth.SessionStore) *Handler {
	return &Handler{sessions: sessions}
}

// Health answers a liveness probe; this process has no external
// dependency to check synchronously (the hot store and the database pool
// are asked on their own health endpoints in front of them, not here).
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}

// Ping is a session-authenticated HTTP heartbeat fallback for a client
// whose socket connection has dropped.
// Unlike internal/auth.Middleware.Authenticate, a missing or expired
// session fails closed with 401 rather than silently issuing a fresh
// anonymous session — the caller needs to know its session is gone so it
// can re-authenticate before reconnecting the socket.
func (h *Handler) Ping(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	cookie, err := r.Cookie(auth.SessionCookieName)
	if err != nil {
		writePingError(w, http.StatusUnauthorized, "session_expired")
		return
	}
	if _, err := h.sessions.Get(r.Context(), cookie.Value); err != nil {
		writePingError(w, http.StatusUnauthorized, "session_expired")
		return
	}

	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}

func writePingError(w http.ResponseWriter, status int, reason string) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": reason})
}
