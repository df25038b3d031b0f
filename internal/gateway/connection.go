// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package gateway

import (
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/cartographus/internal/auth"
	"github.com/tomtom215/cartographus/internal/broadcast"
	"github.com/tomtom215/cartographus/internal/logging"
)

// Timing and framing constants for the readPump/writePump pair, generalized
// from one global hub to the per-(event, role) broadcast.Hub the rest of
// this module uses.
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024
)

// connIDCounter assigns each Connection a unique, monotonically
// increasing id, the same determinism technique as
// internal/broadcast.subscriberIDCounter.
var connIDCounter atomic.Uint64

// Connection is one upgraded socket bound to an event and a resolved
// broadcast role. It fans two sources of outbound traffic into the same
// websocket: its internal/broadcast.Subscription (role-wide fan-out) and
// direct, a channel for replies meant for this socket alone (the initial
// poll_start resync, rejected-message error envelopes, force_logout).
type Connection struct {
	id      uint64
	conn    *websocket.Conn
	sub     *broadcast.Subscription
	direct  chan []byte
	subject *auth.AuthSubject
	eventID string
	role    string // broadcast role group: viewer/moderator/speaker/reports
}

func newConnection(conn *websocket.Conn, sub *broadcast.Subscription, subject *auth.AuthSubject, eventID, role string) *Connection {
	return &Connection{
		id:      connIDCounter.Add(1),
		conn:    conn,
		sub:     sub,
		direct:  make(chan []byte, 16),
		subject: subject,
		eventID: eventID,
		role:    role,
	}
}

// sendDirect enqueues payload for this socket alone, dropping it rather
// than blocking the caller if the direct channel is saturated — a
// misbehaving client should not stall the dispatcher.
func (c *Connection) sendDirect(payload []byte) {
	select {
	case c.direct <- payload:
	default:
		logging.Warn().Str("event_id", c.eventID).Uint64("conn_id", c.id).Msg("direct send channel full, dropping message")
	}
}

// readPump pumps inbound frames to handle until the connection closes,
// errors, or handle reports the session is no longer valid.
func (c *Connection) readPump(handle func(raw []byte) bool) {
	defer func() {
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("gateway: failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Error().Err(err).Uint64("conn_id", c.id).Msg("unexpected websocket close error")
			}
			return
		}
		if !handle(raw) {
			return
		}
	}
}

// writePump drains both sub.Messages (role broadcast fan-out) and direct
// (targeted replies) to the socket, and keeps the connection alive with
// periodic pings.
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.sub.Messages:
			if !c.write(ok, payload) {
				return
			}
		case payload := <-c.direct:
			if !c.write(true, payload) {
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Connection) write(ok bool, payload []byte) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		logging.Error().Err(err).Msg("gateway: failed to set write deadline")
		return false
	}
	if !ok {
		_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
		return false
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return false
	}
	return true
}
