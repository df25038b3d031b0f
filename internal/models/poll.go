// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package models

import "time"

// PollStatus is the lifecycle stage of a poll definition.
type PollStatus string

const (
	PollStatusDraft     PollStatus = "draft"
	PollStatusPublished PollStatus = "published"
	PollStatusClosed    PollStatus = "closed"
)

// Poll is a durable poll definition: a question with at least two ordered
// option labels. At most one poll per event may be live at a time; the
// live vote-counting state itself lives in the hot store, not here (see
// LivePoll).
type Poll struct {
	ID        string     `json:"id"`
	EventID   string     `json:"event_id"`
	Question  string     `json:"question"`
	Options   []string   `json:"options"`
	Status    PollStatus `json:"status"`
	CloseAt   *time.Time `json:"close_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// LivePoll is the derived, ephemeral object representing the currently
// launched poll for one event. It holds the running vote-counts vector and
// the set of voter ids; it is reconstructed from the hot store's
// poll:live:{event_id} key, never persisted directly.
type LivePoll struct {
	PollID    string         `json:"poll_id"`
	EventID   string         `json:"event_id"`
	Question  string         `json:"question"`
	Options   []string       `json:"options"`
	CloseAt   *time.Time     `json:"close_at,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	Counts    []int64        `json:"counts"`
	Voters    map[string]int `json:"-"` // user_id -> option_index, not serialized to clients
}

// TotalVotes sums the per-option counts.
func (lp *LivePoll) TotalVotes() int64 {
	var total int64
	for _, c := range lp.Counts {
		total += c
	}
	return total
}

// IsExpired reports whether the poll's auto-close deadline has passed.
func (lp *LivePoll) IsExpired(now time.Time) bool {
	return lp.CloseAt != nil && now.After(*lp.CloseAt)
}

// Vote is a single durable ballot: at most one per (poll_id, user_id),
// enforced by the store's first-voter-wins insert.
type Vote struct {
	PollID      string    `json:"poll_id"`
	EventID     string    `json:"event_id"`
	UserID      string    `json:"user_id"`
	OptionIndex int       `json:"option_index"`
	CastAt      time.Time `json:"cast_at"`
}

// PollResultOption is one row of a closed poll's final tally, used by the
// reporting read-model (internal/poll.Results), grounded on
// original_source/app/services/poll_service.py's get_poll_results.
type PollResultOption struct {
	OptionIndex int    `json:"option_index"`
	Option      string `json:"option"`
	Votes       int64  `json:"votes"`
}

// PollResults is the full tally for one poll.
type PollResults struct {
	PollID     string              `json:"poll_id"`
	Question   string              `json:"question"`
	Results    []PollResultOption  `json:"results"`
	TotalVotes int64               `json:"total_votes"`
}
