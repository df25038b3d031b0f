// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package apperr defines the typed error taxonomy shared by the socket
// gateway, the Q&A and poll pipelines, and the durable store: AuthError,
// ValidationError, StateError, TransientStoreError, and DurableStoreError.
// Each carries enough context for a handler to pick the right socket close
// code or HTTP status without string-matching error messages.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for dispatch to the right response path
// (socket close code, error envelope, or silent log-and-continue).
type Kind string

const (
	// KindAuth means no/expired session or forbidden role. Always
	// terminal to the current socket or HTTP request.
	KindAuth Kind = "auth"

	// KindValidation means a rejected inbound message: length, throttle,
	// duplicate storm, invalid payload, or an unknown question/poll id.
	KindValidation Kind = "validation"

	// KindState means an operation violated a state machine invariant:
	// closing a non-existent live poll, voting on a closed poll,
	// transitioning a question not in the required state.
	KindState Kind = "state"

	// KindTransientStore means the hot store (Badger) was unreachable.
	// Callers degrade gracefully rather than fail the whole request.
	KindTransientStore Kind = "transient_store"

	// KindDurableStore means a write-behind write (chat history,
	// analytics) failed. It is logged but never unwinds a live broadcast.
	KindDurableStore Kind = "durable_store"

	// KindConfig means an operation depends on an event attribute the
	// operator never set (e.g. an unset RegistrationMode). Always
	// surfaced rather than defaulted to a guessed behavior.
	KindConfig Kind = "config"
)

// Error is the concrete type behind every sentinel and wrapped error this
// package produces. Op names the failing operation for logging; Kind
// drives response dispatch; Err is the underlying cause, if any.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error sharing this error's Kind, so
// errors.Is on two *Error values compares their kinds. To test an error
// against a Kind, use IsKind.
func (e *Error) Is(target error) bool {
	var te *Error
	if errors.As(target, &te) {
		return e.Kind == te.Kind
	}
	return false
}

// New constructs an *Error for the given kind and operation, optionally
// wrapping an underlying cause.
func New(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Err: cause}
}

// Auth wraps cause as a KindAuth error; cause may be nil.
func Auth(op string, cause error) *Error {
	return New(KindAuth, op, cause)
}

// Validation wraps cause as a KindValidation error.
func Validation(op string, cause error) *Error {
	return New(KindValidation, op, cause)
}

// State wraps cause as a KindState error.
func State(op string, cause error) *Error {
	return New(KindState, op, cause)
}

// TransientStore wraps cause as a KindTransientStore error.
func TransientStore(op string, cause error) *Error {
	return New(KindTransientStore, op, cause)
}

// DurableStore wraps cause as a KindDurableStore error.
func DurableStore(op string, cause error) *Error {
	return New(KindDurableStore, op, cause)
}

// Config wraps cause as a KindConfig error.
func Config(op string, cause error) *Error {
	return New(KindConfig, op, cause)
}

// KindOf extracts the Kind from err if it (or something it wraps) is an
// *Error, and reports whether one was found.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// IsKind reports whether err's Kind matches kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// Sentinel errors for the specific, commonly-checked conditions named in
// the state machine and validation invariants. Wrap these with the
// constructors above (e.g. apperr.Validation("qa.add", apperr.ErrUnknownQuestion))
// to attach an operation name while keeping errors.Is working against the
// sentinel itself.
var (
	// ErrNoSession means the request or socket carries no valid session.
	ErrNoSession = errors.New("no session")

	// ErrSessionExpired means the session token exists but has expired.
	ErrSessionExpired = errors.New("session expired")

	// ErrForbiddenRole means the subject's role does not permit the action.
	ErrForbiddenRole = errors.New("forbidden role")

	// ErrMessageTooLong means a chat/Q&A message exceeded the length cap.
	ErrMessageTooLong = errors.New("message too long")

	// ErrThrottled means the sender exceeded the per-user send rate.
	ErrThrottled = errors.New("sender throttled")

	// ErrDuplicateStorm means the fingerprint of this message matched too
	// many recent messages within the duplicate-storm window.
	ErrDuplicateStorm = errors.New("duplicate message storm detected")

	// ErrInvalidPayload means the inbound envelope failed schema validation.
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrUnknownQuestion means the referenced question id does not exist.
	ErrUnknownQuestion = errors.New("unknown question")

	// ErrUnknownPoll means the referenced poll id does not exist.
	ErrUnknownPoll = errors.New("unknown poll")

	// ErrInvalidTransition means a state transition was attempted from a
	// state that does not permit it.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrPollClosed means a vote was cast after the poll's auto-close fired.
	ErrPollClosed = errors.New("poll is closed")

	// ErrAlreadyVoted means the voter already has a recorded ballot for
	// this poll (first-voter-wins).
	ErrAlreadyVoted = errors.New("already voted")

	// ErrHotStoreUnavailable means the Badger-backed hot store did not
	// respond within its request timeout.
	ErrHotStoreUnavailable = errors.New("hot store unavailable")

	// ErrDurableWriteFailed means a write-behind write to the durable
	// store failed after retries.
	ErrDurableWriteFailed = errors.New("durable write failed")

	// ErrEventNotFound means the referenced event id or slug has no row,
	// or the matching row is soft-deleted.
	ErrEventNotFound = errors.New("event not found")

	// ErrSlugTaken means an insert or rename collided with another
	// non-deleted event's slug.
	ErrSlugTaken = errors.New("event slug already in use")

	// ErrRegistrationModeUnset means an event's RegistrationMode was
	// never configured. internal/registration treats this as a
	// KindConfig error rather than defaulting to OPEN or RESTRICTED.
	ErrRegistrationModeUnset = errors.New("registration mode not configured")

	// ErrRegistrationWindowClosed means a RESTRICTED event was joined
	// outside its RegistrationOpensAt/RegistrationClosesAt window.
	ErrRegistrationWindowClosed = errors.New("registration window closed")

	// ErrCapacityExceeded means an event's Capacity is already met by
	// currently registered attendees.
	ErrCapacityExceeded = errors.New("event capacity exceeded")
)
