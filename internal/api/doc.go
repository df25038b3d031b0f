// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package api exposes the small HTTP surface around the socket gateway:
// the /ws upgrade route, a session-authenticated /api/ping heartbeat
// fallback for clients whose socket dropped, and a health check, plus the
// Prometheus /metrics endpoint. Routing uses a chi-based Router whose
// Setup method builds the mux.
package api
