// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package models

import "time"

// User is the durable profile a session/subject resolves to: the account
// that owns block flags and carries into reporting history once a viewer's
// live session ends. Grounded on
// original_source/app/services/users_service.py's users table
// (chat_blocked/qa_blocked/banned) joined against session_analytics in
// original_source/app/services/analytics_service.py.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`

	// ChatBlocked/QABlocked/Banned gate the three moderation actions on
	// User: a chat- or Q&A-blocked user may still connect and view but
	// has their sends rejected; a banned user is refused a session
	// outright.
	ChatBlocked bool `json:"chat_blocked"`
	QABlocked   bool `json:"qa_blocked"`
	Banned      bool `json:"banned"`

	CreatedAt time.Time `json:"created_at"`
}

// UserFlag names one of the three independently togglable moderation
// flags on User, mirroring users_service.py's update_user_status
// valid_fields list.
type UserFlag string

const (
	UserFlagChatBlocked UserFlag = "chat_blocked"
	UserFlagQABlocked   UserFlag = "qa_blocked"
	UserFlagBanned      UserFlag = "banned"
)

// IsValidUserFlag reports whether flag names one of the three recognized
// moderation flags.
func IsValidUserFlag(flag UserFlag) bool {
	switch flag {
	case UserFlagChatBlocked, UserFlagQABlocked, UserFlagBanned:
		return true
	default:
		return false
	}
}
