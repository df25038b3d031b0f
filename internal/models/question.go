// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package models

import "time"

// QuestionStatus is the state of a question in the Q&A pipeline.
type QuestionStatus string

const (
	QuestionStatusPending  QuestionStatus = "pending"
	QuestionStatusApproved QuestionStatus = "approved"
	QuestionStatusRead     QuestionStatus = "read"
)

// Question is a single audience-submitted question moving through the
// pending -> approved -> read state machine. A rejected question is
// deleted outright rather than tombstoned, matching
// original_source/app/services/questions_service.py's reject_question.
type Question struct {
	ID               string         `json:"id"`
	EventID          string         `json:"event_id"`
	AuthorUserID     string         `json:"author_user_id,omitempty"`
	ManualAuthorName string         `json:"manual_author_name,omitempty"`
	Text             string         `json:"text"`
	Status           QuestionStatus `json:"status"`
	CreatedAt        time.Time      `json:"created_at"`
}

// AuthorDisplayName returns the name to attribute the question to: the
// manual override used for bulk-imported questions when no author account
// is present, else the registered author's user id.
func (q *Question) AuthorDisplayName() string {
	if q.ManualAuthorName != "" {
		return q.ManualAuthorName
	}
	return q.AuthorUserID
}
