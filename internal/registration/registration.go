// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package registration checks whether a viewer may join an event: the
// event's registration window (for RESTRICTED events) and its attendee
// capacity. Supplemented from original_source/app/services/events_service.py.
// An unset RegistrationMode is never guessed as OPEN or RESTRICTED; it
// reports a KindConfig error instead.
package registration

import (
	"context"
	"time"

	"github.com/tomtom215/cartographus/internal/apperr"
	"github.com/tomtom215/cartographus/internal/models"
)

// AttendeeCounter reports how many distinct users are currently counted
// against an event's capacity. Implemented by internal/presence.Tracker's
// LiveCount (concurrently-connected viewers) in the deployment this
// package ships with; a deployment that counts capacity against durable
// registration records instead can supply any other implementation.
type AttendeeCounter interface {
	LiveCount(ctx context.Context, eventID string) (int, error)
}

// Service checks an event's registration window and capacity before the
// gateway admits a new socket.
type Service struct {
	attendees AttendeeCounter
}

// New constructs a Service. attendees may be nil, in which case
// CheckCapacity always passes (a deployment with no capacity counter
// wired cannot enforce a cap).
func New(attendees AttendeeCounter) *Service {
	return &Service{attendees: attendees}
}

// CheckWindow validates e's registration configuration against now.
//
//   - An unset RegistrationMode is always a KindConfig error: operators
//     must explicitly choose OPEN or RESTRICTED, there is no default.
//   - OPEN events always pass.
//   - RESTRICTED events must fall within [RegistrationOpensAt,
//     RegistrationClosesAt]; either bound may be nil, meaning unbounded
//     on that side.
func (s *Service) CheckWindow(e *models.Event, now time.Time) error {
	const op = "registration.check_window"

	switch e.RegistrationMode {
	case models.RegistrationModeUnset:
		return apperr.Config(op, apperr.ErrRegistrationModeUnset)
	case models.RegistrationModeOpen:
		return nil
	case models.RegistrationModeRestricted:
		if e.RegistrationOpensAt != nil && now.Before(*e.RegistrationOpensAt) {
			return apperr.State(op, apperr.ErrRegistrationWindowClosed)
		}
		if e.RegistrationClosesAt != nil && now.After(*e.RegistrationClosesAt) {
			return apperr.State(op, apperr.ErrRegistrationWindowClosed)
		}
		return nil
	default:
		return apperr.Config(op, apperr.ErrRegistrationModeUnset)
	}
}

// CheckCapacity reports apperr.ErrCapacityExceeded if e.Capacity is set
// and already met by the attendee counter's current count. A nil
// Capacity means unlimited and always passes; a nil attendee counter
// (no AttendeeCounter wired at construction) also always passes.
func (s *Service) CheckCapacity(ctx context.Context, e *models.Event) error {
	const op = "registration.check_capacity"

	if e.Capacity == nil || s.attendees == nil {
		return nil
	}
	count, err := s.attendees.LiveCount(ctx, e.ID)
	if err != nil {
		return apperr.TransientStore(op, err)
	}
	if count >= *e.Capacity {
		return apperr.State(op, apperr.ErrCapacityExceeded)
	}
	return nil
}
