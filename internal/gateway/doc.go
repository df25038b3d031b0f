// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package gateway is the socket front door: it upgrades /ws, resolves the
// connecting principal's effective role for the event, registers the
// connection with internal/broadcast, and dispatches inbound frames to
// internal/qa, internal/poll, and internal/presence, generalized from a
// single-room hub/client pair to a per-(event, role) world.
package gateway
