// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package gateway

import (
	"context"
	"errors"

	"github.com/tomtom215/cartographus/internal/auth"
	"github.com/tomtom215/cartographus/internal/authz"
	"github.com/tomtom215/cartographus/internal/models"
	"github.com/tomtom215/cartographus/internal/store"
)

// Broadcast role groups. Kept distinct from internal/models' platform-wide
// RoleViewer/RoleStaff/RoleSuperadmin and from internal/models.EventStaff's
// admin/moderator/speaker grant roles: these four name the role a socket
// is registered under in internal/broadcast, the ?role= query parameter
// value and the {viewer, moderator, speaker, reports} registry set.
const (
	RoleViewer    = "viewer"
	RoleModerator = "moderator"
	RoleSpeaker   = "speaker"
	RoleReports   = "reports"
)

// ErrEventMissing means a non-viewer role was requested with no resolved
// event_id, closing the socket with 4002/event_missing.
var ErrEventMissing = errors.New("event id required for non-viewer role")

// ErrRoleForbidden means the subject's authority does not cover the
// requested role, closing the socket with 4003/role_forbidden.
var ErrRoleForbidden = errors.New("role not authorized for this subject")

// RoleResolver computes a connecting socket's effective broadcast role
// via a precedence chain: superadmin outranks an EventStaff grant, which
// outranks a per-event viewer promotion, which outranks the viewer
// default.
type RoleResolver struct {
	authz      *authz.Service
	staff      store.EventStaffRepository
	eventRoles store.EventRoleRepository
}

// NewRoleResolver constructs a RoleResolver. staff and eventRoles may be
// nil in a deployment with no durable store wired (every non-viewer role
// request from a non-superadmin then fails closed with ErrRoleForbidden).
func NewRoleResolver(authzSvc *authz.Service, staff store.EventStaffRepository, eventRoles store.EventRoleRepository) *RoleResolver {
	return &RoleResolver{authz: authzSvc, staff: staff, eventRoles: eventRoles}
}

// Resolve validates requestedRole against subject's authority for eventID
// and returns the broadcast role group to register the socket under.
// requestedRole defaults to RoleViewer when empty.
func (r *RoleResolver) Resolve(ctx context.Context, subject *auth.AuthSubject, eventID, requestedRole string) (string, error) {
	if requestedRole == "" {
		requestedRole = RoleViewer
	}
	if requestedRole == RoleViewer {
		return RoleViewer, nil
	}
	if eventID == "" {
		return "", ErrEventMissing
	}

	isSuperadmin, err := r.authz.IsSuperadmin(ctx, subject)
	if err != nil {
		return "", err
	}
	if isSuperadmin {
		return requestedRole, nil
	}

	staffRole, err := r.getStaffRole(ctx, eventID, subject.ID)
	if err != nil {
		return "", err
	}
	eventRole, err := r.getEventRole(ctx, eventID, subject.ID)
	if err != nil {
		return "", err
	}

	switch requestedRole {
	case RoleModerator:
		if staffRole == models.EventStaffRoleAdmin || staffRole == models.EventStaffRoleModerator || eventRole == RoleModerator {
			return RoleModerator, nil
		}
	case RoleSpeaker:
		if staffRole == models.EventStaffRoleAdmin || staffRole == models.EventStaffRoleSpeaker || eventRole == RoleSpeaker {
			return RoleSpeaker, nil
		}
	case RoleReports:
		if staffRole == models.EventStaffRoleAdmin {
			return RoleReports, nil
		}
	default:
		return "", ErrRoleForbidden
	}
	return "", ErrRoleForbidden
}

func (r *RoleResolver) getStaffRole(ctx context.Context, eventID, userID string) (string, error) {
	if r.staff == nil || userID == "" {
		return "", nil
	}
	return r.staff.GetRole(ctx, eventID, userID)
}

func (r *RoleResolver) getEventRole(ctx context.Context, eventID, userID string) (string, error) {
	if r.eventRoles == nil || userID == "" {
		return "", nil
	}
	return r.eventRoles.GetEventRole(ctx, eventID, userID)
}
