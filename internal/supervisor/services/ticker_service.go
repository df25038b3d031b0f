// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package services

import (
	"context"
)

// Runnable is satisfied by any long-lived loop that exits when ctx is
// canceled, e.g. internal/snapshot's periodic recompute loop. Depending
// on the interface rather than a concrete type keeps this package free
// of an import on internal/snapshot.
type Runnable interface {
	Serve(ctx context.Context) error
}

// TickerService wraps a Runnable as a supervised messaging-tier service,
// a thin adapter that hands a run loop to the suture tree.
//
// Example usage:
//
//	pub := snapshot.New(cfg, gw, presence, qa, sessions, hub)
//	svc := services.NewTickerService(pub, "snapshot-publisher")
//	tree.AddMessagingService(svc)
type TickerService struct {
	runnable Runnable
	name     string
}

// NewTickerService creates a new supervised wrapper around runnable,
// identified as name in logs and suture's service reports.
func NewTickerService(runnable Runnable, name string) *TickerService {
	return &TickerService{runnable: runnable, name: name}
}

// Serve implements suture.Service by delegating to the wrapped Runnable.
func (s *TickerService) Serve(ctx context.Context) error {
	return s.runnable.Serve(ctx)
}

// String implements fmt.Stringer for logging.
func (s *TickerService) String() string {
	return s.name
}
