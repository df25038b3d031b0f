// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package models

import "time"

// RegistrationMode controls whether anonymous viewers may join an event
// directly or must first register through a restricted flow. Grounded on
// original_source/app/services/events_service.py, which the distillation
// dropped registration handling from.
type RegistrationMode string

const (
	// RegistrationModeUnset means the event has not configured a
	// registration mode. internal/registration treats this as a
	// ConfigError rather than defaulting to either mode.
	RegistrationModeUnset RegistrationMode = ""

	// RegistrationModeOpen allows any viewer to join without pre-registration.
	RegistrationModeOpen RegistrationMode = "OPEN"

	// RegistrationModeRestricted requires a viewer to hold a registration
	// record (created out of band) before a session may be issued.
	RegistrationModeRestricted RegistrationMode = "RESTRICTED"
)

// EventStatus is an Event's lifecycle stage. Transitions are monotonic
// except PUBLISHED<->CLOSED, which may toggle.
type EventStatus string

const (
	EventStatusDraft     EventStatus = "DRAFT"
	EventStatusPublished EventStatus = "PUBLISHED"
	EventStatusClosed    EventStatus = "CLOSED"
)

// RegistrationField describes one field of an event's registration form,
// e.g. {"name": "company", "label": "Company", "required": true}.
type RegistrationField struct {
	Name     string `json:"name"`
	Label    string `json:"label"`
	Required bool   `json:"required"`
}

// Event is a single live session: a talk, stream, or conference track that
// owns its own chat log, Q&A queue, polls, and presence set.
type Event struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	Slug             string           `json:"slug"`
	MediaURL         string           `json:"media_url,omitempty"`
	Status           EventStatus      `json:"status"`
	RegistrationMode RegistrationMode `json:"registration_mode"`

	// RegistrationOpensAt/ClosesAt bound the window a RESTRICTED event
	// accepts new registrations in; nil means unbounded on that side.
	RegistrationOpensAt  *time.Time `json:"registration_opens_at,omitempty"`
	RegistrationClosesAt *time.Time `json:"registration_closes_at,omitempty"`

	// AccessOpenAt is when viewers may start connecting sockets, which may
	// precede StartsAt (a "doors open" lobby period).
	AccessOpenAt *time.Time `json:"access_open_at,omitempty"`

	// Capacity caps concurrent registered attendees; nil means unlimited.
	Capacity *int `json:"capacity,omitempty"`

	Timezone string `json:"timezone,omitempty"`

	RegistrationSchema         []RegistrationField `json:"registration_schema,omitempty"`
	RegistrationSuccessMessage string              `json:"registration_success_message,omitempty"`

	StartsAt  *time.Time `json:"starts_at,omitempty"`
	EndsAt    *time.Time `json:"ends_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`

	// DeletedAt marks a soft-deleted event; a non-nil value excludes it
	// from slug-uniqueness checks and all public listings.
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// IsDeleted reports whether the event has been soft-deleted.
func (e *Event) IsDeleted() bool {
	return e.DeletedAt != nil
}

// IsAccessOpen reports whether viewers may currently connect sockets.
func (e *Event) IsAccessOpen(now time.Time) bool {
	if e.Status == EventStatusClosed || e.IsDeleted() {
		return false
	}
	if e.AccessOpenAt == nil {
		return true
	}
	return !now.Before(*e.AccessOpenAt)
}

// EventStaff maps (user, event) to one of the per-event authority roles.
// It is the authoritative source of per-event authority ahead of a
// platform-wide role, per the superadmin -> EventStaff -> per-event
// promotion -> viewer precedence chain.
type EventStaff struct {
	EventID   string    `json:"event_id"`
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"` // admin, moderator, speaker
	GrantedBy string    `json:"granted_by,omitempty"`
	GrantedAt time.Time `json:"granted_at"`
}

// EventStaff role constants, distinct from the platform-wide RoleViewer /
// RoleStaff / RoleSuperadmin constants in rbac.go: these name the specific
// per-event authority a staff member was granted.
const (
	EventStaffRoleAdmin     = "admin"
	EventStaffRoleModerator = "moderator"
	EventStaffRoleSpeaker   = "speaker"
)
