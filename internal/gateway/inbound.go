// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package gateway

import (
	"errors"

	govalidator "github.com/go-playground/validator/v10"

	"github.com/tomtom215/cartographus/internal/apperr"
)

// structValidate checks inbound frame struct tags (required fields,
// UUID shape, numeric bounds) before a frame's fields ever reach the
// domain layer. It is distinct from internal/validator, which checks
// message content against throttle/duplicate/length policy — this one
// only rejects structurally malformed frames.
var structValidate = govalidator.New()

// Inbound frame types, the discriminator values carried by every
// WebSocket frame a connected socket may send.
const (
	typeChat               = "chat"
	typeAsk                = "ask"
	typeApprove            = "approve"
	typeReject             = "reject"
	typeRead               = "read"
	typeReturnToModerator  = "return_to_moderator"
	typePing               = "ping"
	typePollStart          = "poll_start"
	typePollVote           = "poll_vote"
	typePollClose          = "poll_close"
)

// frameEnvelope extracts just the discriminator field shared by every
// inbound frame.
type frameEnvelope struct {
	Type string `json:"type"`
}

type chatFrame struct {
	Message string `json:"message" validate:"required"`
}

type askFrame struct {
	Question   string `json:"question" validate:"required"`
	ManualUser string `json:"manual_user" validate:"omitempty,max=64"`
}

// idFrame covers approve/reject/read/return_to_moderator, all of which
// only carry the target question's id. Question ids are UUID strings in
// this implementation, not the original's auto-increment integers.
type idFrame struct {
	ID string `json:"id" validate:"required,uuid"`
}

type pollStartFrame struct {
	PollID          string   `json:"poll_id" validate:"omitempty,uuid"`
	Question        string   `json:"question"`
	Options         []string `json:"options" validate:"omitempty,dive,required"`
	DurationMinutes int      `json:"duration_minutes" validate:"gte=0"`
}

type pollVoteFrame struct {
	OptionIndex int `json:"option_index" validate:"gte=0"`
}

// validateFrame runs struct-tag validation on an already-unmarshaled
// frame. json.Unmarshal alone accepts a chatFrame with an empty Message
// or an idFrame with a non-UUID id; this catches those before they
// reach the domain layer.
func validateFrame(frame any) error {
	if err := structValidate.Struct(frame); err != nil {
		return apperr.ErrInvalidPayload
	}
	return nil
}

// userMessage maps a validator/qa/poll rejection to the text shown to the
// sender in an ErrorEnvelope, falling back to the error's own message for
// anything not named explicitly.
func userMessage(err error) string {
	switch {
	case errors.Is(err, apperr.ErrMessageTooLong):
		return "message too long"
	case errors.Is(err, apperr.ErrThrottled):
		return "sending too fast"
	case errors.Is(err, apperr.ErrDuplicateStorm):
		return "spam masivo"
	case errors.Is(err, apperr.ErrInvalidPayload):
		return "invalid message"
	case errors.Is(err, apperr.ErrUnknownQuestion):
		return "unknown question"
	case errors.Is(err, apperr.ErrUnknownPoll):
		return "no active poll"
	case errors.Is(err, apperr.ErrInvalidTransition):
		return "poll already live"
	case errors.Is(err, apperr.ErrPollClosed):
		return "poll is closed"
	case errors.Is(err, apperr.ErrAlreadyVoted):
		return "already voted"
	case errors.Is(err, apperr.ErrForbiddenRole):
		return "not authorized"
	default:
		return err.Error()
	}
}
