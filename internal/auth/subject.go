// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package auth

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// AuthMode represents how a request presents its identity.
type AuthMode string

const (
	// AuthModeAnon marks an unauthenticated viewer issued an ephemeral
	// session on first connect. No credentials are required.
	AuthModeAnon AuthMode = "anon"

	// AuthModeCookie marks a request carrying the opaque session cookie
	// issued at login (event staff and promoted viewers).
	AuthModeCookie AuthMode = "cookie"

	// AuthModeBearer marks a request carrying a signed JWT in its
	// Authorization header, the stateless path for service-to-service
	// callers that cannot hold a session cookie.
	AuthModeBearer AuthMode = "bearer"
)

// ParseAuthMode converts a string to AuthMode.
func ParseAuthMode(s string) (AuthMode, error) {
	switch s {
	case "anon", "":
		return AuthModeAnon, nil
	case "cookie":
		return AuthModeCookie, nil
	case "bearer":
		return AuthModeBearer, nil
	default:
		return "", errors.New("invalid auth mode: " + s)
	}
}

// String returns the string representation of AuthMode.
func (m AuthMode) String() string {
	return string(m)
}

// Standard authentication errors
var (
	// ErrNoCredentials indicates no session cookie was presented.
	ErrNoCredentials = errors.New("no credentials provided")

	// ErrInvalidCredentials indicates the session token does not resolve.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrExpiredCredentials indicates the session has expired.
	ErrExpiredCredentials = errors.New("credentials expired")

	// ErrAuthenticatorUnavailable indicates the session store is unreachable.
	ErrAuthenticatorUnavailable = errors.New("authenticator unavailable")
)

// Authenticator defines the interface for resolving a request's identity.
type Authenticator interface {
	// Authenticate extracts and validates credentials from the request.
	// Returns AuthSubject on success, error on failure.
	Authenticate(ctx context.Context, r *http.Request) (*AuthSubject, error)

	// Name returns the authenticator's name for logging.
	Name() string
}

// AuthSubject represents an authenticated or anonymous participant attached
// to the request context by Middleware.Authenticate.
type AuthSubject struct {
	// ID is the user's stable identifier (empty for anonymous viewers,
	// who are identified only by SessionID).
	ID string `json:"id,omitempty"`

	// Username is the display name shown in chat and Q&A attribution.
	Username string `json:"username"`

	// Email identifies event staff accounts; empty for viewers.
	Email string `json:"email,omitempty"`

	// Roles are the subject's global roles (e.g. "superadmin"). Per-event
	// roles (event staff, promoted viewer) are resolved separately by
	// internal/authz using EventID.
	Roles []string `json:"roles,omitempty"`

	// EventID scopes this subject to the event its session belongs to.
	EventID string `json:"event_id,omitempty"`

	// AuthMethod indicates how the subject was authenticated.
	AuthMethod AuthMode `json:"auth_method"`

	// IssuedAt is when the session was created.
	IssuedAt int64 `json:"issued_at,omitempty"`

	// ExpiresAt is when the session expires, 0 if it does not expire.
	ExpiresAt int64 `json:"expires_at,omitempty"`

	// SessionID is the opaque session token's identifier.
	SessionID string `json:"session_id"`

	// Metadata carries provider-specific extras (e.g. a registration
	// source) that don't warrant their own field.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// HasRole checks if the subject has a specific global role.
func (s *AuthSubject) HasRole(role string) bool {
	if role == "" {
		return false
	}
	for _, r := range s.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAnyRole checks if the subject has any of the specified global roles.
func (s *AuthSubject) HasAnyRole(roles ...string) bool {
	if len(roles) == 0 {
		return false
	}
	for _, role := range roles {
		if s.HasRole(role) {
			return true
		}
	}
	return false
}

// IsExpired checks if the authentication has expired.
func (s *AuthSubject) IsExpired() bool {
	if s.ExpiresAt == 0 {
		return false
	}
	return time.Now().Unix() > s.ExpiresAt
}

// IsAnonymous reports whether the subject is an unregistered viewer.
func (s *AuthSubject) IsAnonymous() bool {
	return s.AuthMethod == AuthModeAnon
}
