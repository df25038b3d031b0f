// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

//go:build nats

package broadcast

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"

	"github.com/tomtom215/cartographus/internal/logging"
)

// wireEnvelope is the cross-instance transport frame published to
// broadcast.event.{event_id}: the target roles plus the already-marshaled
// application payload, so a receiving instance never has to know the
// envelope's concrete Go type.
type wireEnvelope struct {
	Roles   []string        `json:"roles"`
	Payload json.RawMessage `json:"payload"`
}

func subject(eventID string) string {
	return "broadcast.event." + eventID
}

// NATSBridge publishes local broadcasts to NATS and, in turn, delivers
// messages published by other instances into the local Hub. Uses
// nats.go directly rather than a router/outbox stack on top of
// JetStream: this fabric only needs best-effort fan-out, not ordering
// or dedup guarantees for a durable log.
type NATSBridge struct {
	conn *nats.Conn
	hub  *Hub
	sub  *nats.Subscription
}

// NewNATSBridge connects to url and wires hub as the local delivery
// target for messages other instances publish.
func NewNATSBridge(url string, hub *Hub) (*NATSBridge, error) {
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logging.Warn().Err(err).Msg("nats broadcast bridge disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logging.Info().Str("url", nc.ConnectedUrl()).Msg("nats broadcast bridge reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	b := &NATSBridge{conn: conn, hub: hub}
	sub, err := conn.Subscribe("broadcast.event.*", b.handle)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("subscribe broadcast.event.*: %w", err)
	}
	b.sub = sub
	return b, nil
}

// Publish sends payload (already-marshaled application JSON) to every
// other instance subscribed to eventID's subject.
func (b *NATSBridge) Publish(eventID string, roles []string, payload []byte) error {
	wire, err := json.Marshal(wireEnvelope{Roles: roles, Payload: payload})
	if err != nil {
		return err
	}
	return b.conn.Publish(subject(eventID), wire)
}

// handle is the NATS message callback: decode, extract the event id from
// the subject, and fan out locally only.
func (b *NATSBridge) handle(msg *nats.Msg) {
	const prefix = "broadcast.event."
	eventID := msg.Subject
	if len(eventID) > len(prefix) {
		eventID = eventID[len(prefix):]
	}

	var wire wireEnvelope
	if err := json.Unmarshal(msg.Data, &wire); err != nil {
		logging.Warn().Err(err).Msg("failed to unmarshal broadcast bridge message")
		return
	}
	b.hub.DeliverFromBridge(eventID, wire.Roles, wire.Payload)
}

// Close unsubscribes and closes the NATS connection.
func (b *NATSBridge) Close() error {
	if b.sub != nil {
		_ = b.sub.Unsubscribe()
	}
	b.conn.Close()
	return nil
}
