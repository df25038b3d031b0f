// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package broadcast is the event-scoped fan-out fabric: per-(event, role)
// subscriber registries with deterministic ordered delivery and
// drop-on-full backpressure, bridged across instances over NATS.
// Generalized from a single global client set to one registry per
// (event_id, role) pair.
package broadcast

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/goccy/go-json"

	"github.com/tomtom215/cartographus/internal/logging"
	"github.com/tomtom215/cartographus/internal/metrics"
)

// subscriberIDCounter generates unique, monotonically increasing ids so
// subscribers can be sorted for deterministic delivery order.
var subscriberIDCounter atomic.Uint64

// Subscription is a single socket's registration under one (event, role)
// pair. The gateway reads Messages and forwards each payload over its
// websocket connection; Unsubscribe must be called on disconnect.
type Subscription struct {
	id       uint64
	eventID  string
	role     string
	Messages chan []byte
}

// bridge is the subset of a cross-instance transport Hub needs, kept
// local so the in-process registry has no hard NATS dependency — unit
// tests construct a Hub with bridge == nil and get pure local fan-out.
type bridge interface {
	Publish(eventID string, roles []string, payload []byte) error
}

// Hub owns every event's per-role subscriber registries. One Hub is
// shared process-wide; the registries themselves are guarded by a
// single, lightweight mutex.
type Hub struct {
	mu     sync.Mutex
	byRole map[string]map[string]map[uint64]*Subscription // eventID -> role -> id -> sub
	br     bridge
}

// New constructs a Hub. br may be nil for a single-instance deployment
// with no cross-instance transport.
func New(br bridge) *Hub {
	return &Hub{byRole: make(map[string]map[string]map[uint64]*Subscription), br: br}
}

// SetBridge wires br as the cross-instance transport after construction,
// for callers that cannot build the bridge before the Hub exists (a
// NATSBridge needs an already-constructed Hub to deliver into). Not
// safe to call concurrently with Broadcast; callers wire it once during
// startup before any subscriber connects, matching gateway.Gateway's
// SetSnapshot.
func (h *Hub) SetBridge(br bridge) {
	h.br = br
}

// Subscribe registers a new subscriber under (eventID, role) and returns
// its Subscription. The caller is responsible for draining Messages and
// calling Unsubscribe exactly once.
func (h *Hub) Subscribe(eventID, role string) *Subscription {
	sub := &Subscription{
		id:       subscriberIDCounter.Add(1),
		eventID:  eventID,
		role:     role,
		Messages: make(chan []byte, 256),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	roles, ok := h.byRole[eventID]
	if !ok {
		roles = make(map[string]map[uint64]*Subscription)
		h.byRole[eventID] = roles
	}
	subs, ok := roles[role]
	if !ok {
		subs = make(map[uint64]*Subscription)
		roles[role] = subs
	}
	subs[sub.id] = sub
	return sub
}

// Unsubscribe removes sub from its registry and closes its channel.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.byRole[sub.eventID][sub.role]; ok {
		if _, present := subs[sub.id]; present {
			delete(subs, sub.id)
			close(sub.Messages)
		}
	}
}

// Broadcast marshals envelope once and fans it out to every subscriber
// registered under any of roles for eventID, in deterministic
// (subscriber-id-ascending) order per role, then (if a bridge is wired)
// publishes the same payload for other instances to deliver to their own
// local subscribers. Local delivery never loops back through the bridge:
// a received bridge message is only ever fanned out locally, never
// re-published.
func (h *Hub) Broadcast(ctx context.Context, eventID string, roles []string, envelope any) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	metrics.RecordBroadcast(fmt.Sprintf("%T", envelope))
	h.broadcastLocal(eventID, roles, payload)
	if h.br != nil {
		if err := h.br.Publish(eventID, roles, payload); err != nil {
			logging.Warn().Err(err).Str("event_id", eventID).Msg("cross-instance broadcast publish failed")
		}
	}
	return nil
}

// broadcastLocal delivers payload to this instance's subscribers only.
// A subscriber registered under more than one of roles (never happens in
// practice — a socket holds exactly one role — but guarded anyway) is
// delivered to once.
func (h *Hub) broadcastLocal(eventID string, roles []string, payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	roleSets, ok := h.byRole[eventID]
	if !ok {
		return
	}

	delivered := make(map[uint64]bool)
	var stale []*Subscription
	for _, role := range roles {
		subs, ok := roleSets[role]
		if !ok {
			continue
		}
		ids := make([]uint64, 0, len(subs))
		for id := range subs {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		for _, id := range ids {
			if delivered[id] {
				continue
			}
			delivered[id] = true
			sub := subs[id]
			select {
			case sub.Messages <- payload:
			default:
				logging.Warn().Str("event_id", eventID).Str("role", role).Msg("subscriber channel full, dropping message")
				stale = append(stale, sub)
			}
		}
	}

	for _, sub := range stale {
		if subs, ok := roleSets[sub.role]; ok {
			if _, present := subs[sub.id]; present {
				delete(subs, sub.id)
				close(sub.Messages)
			}
		}
	}
}

// CountForEvent returns the number of subscribers currently registered
// across every role for eventID, used by the snapshot publisher's
// engagement views.
func (h *Hub) CountForEvent(eventID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	total := 0
	for _, subs := range h.byRole[eventID] {
		total += len(subs)
	}
	return total
}

// DeliverFromBridge fans payload out to this instance's local
// subscribers only, called by the NATS bridge when another instance
// published eventID/roles. It never re-publishes.
func (h *Hub) DeliverFromBridge(eventID string, roles []string, payload []byte) {
	h.broadcastLocal(eventID, roles, payload)
}
