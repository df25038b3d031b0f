// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

//go:build !nats

package broadcast

import "fmt"

// NATSBridge is a stub for non-NATS builds. A single-instance
// deployment runs with a nil bridge and never constructs one.
type NATSBridge struct{}

// NewNATSBridge always fails in non-NATS builds.
func NewNATSBridge(_ string, _ *Hub) (*NATSBridge, error) {
	return nil, fmt.Errorf("NATS support not enabled (build with -tags nats)")
}

// Publish is a no-op stub.
func (b *NATSBridge) Publish(_ string, _ []string, _ []byte) error { return nil }

// Close is a no-op stub.
func (b *NATSBridge) Close() error { return nil }
