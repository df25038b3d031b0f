// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package presence tracks which viewers are currently connected to a live
// event, and throttles how often a live ping is persisted to the durable
// store for reporting history.
package presence

import (
	"context"
	"strconv"
	"time"

	"github.com/tomtom215/cartographus/internal/cache"
	"github.com/tomtom215/cartographus/internal/hotstore"
)

// DefaultActiveWindow is how long a user stays "connected" without a ping
// before being evicted from the activity set, matching the reference
// implementation's DEFAULT_ACTIVE_WINDOW_SECONDS (bumped from the
// original 300s default to be tolerant of slow networks).
const DefaultActiveWindow = 600 * time.Second

// DefaultWritebackInterval bounds how often a single user's ping is
// persisted to the durable store, matching PING_MYSQL_INTERVAL_SECONDS.
const DefaultWritebackInterval = 60 * time.Second

func activityKey(eventID string) string {
	return "activity:" + eventID
}

func writebackThrottleKey(eventID, userID string) string {
	return "ping:mysql_ts:" + eventID + ":" + userID
}

// Writer persists a ping for user/event to the durable store (analytics
// writeback). Implemented by internal/store.SessionAnalyticsRepository;
// kept as an interface here so presence has no direct dependency on
// internal/store.
type Writer interface {
	RecordPing(ctx context.Context, eventID, userID string) error
}

// LiveDetail is one row of ListLiveDetails' joined view: a currently
// connected viewer plus the durable-store attributes list_live's hot-store
// ids alone can't answer.
type LiveDetail struct {
	UserID       string
	Name         string
	StartTime    time.Time
	LastPing     time.Time
	TotalMinutes int64
	ChatBlocked  bool
	QABlocked    bool
	Banned       bool
}

// DetailsSource resolves the durable half of ListLiveDetails for a set of
// currently-live user ids. Implemented by
// internal/store.SessionAnalyticsRepository.
type DetailsSource interface {
	ListActiveSessions(ctx context.Context, eventID string, userIDs []string) ([]*DetailRow, error)
}

// DetailRow mirrors internal/store.ParticipantDetail's shape without
// presence importing internal/store directly.
type DetailRow struct {
	UserID       string
	Name         string
	StartTime    time.Time
	TotalMinutes int64
	ChatBlocked  bool
	QABlocked    bool
	Banned       bool
}

// Tracker marks live viewers in the hot store and periodically persists a
// history row via Writer, same two-tier model the reference implementation
// uses: Redis-equivalent presence on every ping, durable write throttled.
type Tracker struct {
	store   *hotstore.Store
	writer  Writer
	details DetailsSource

	activeWindow      time.Duration
	writebackInterval time.Duration

	// liveWatchers tracks, per event, the active-participant series the
	// snapshot publisher's engagement chart reports: one bucket counter
	// keyed by event id rather than a single global counter, since each
	// event's chart is independent.
	liveWatchers *cache.SlidingWindowStore
}

// New constructs a Tracker. writer may be nil, in which case pings are
// tracked live but never written back durably (useful for tests or a
// reports-less deployment).
func New(store *hotstore.Store, writer Writer) *Tracker {
	return &Tracker{
		store:             store,
		writer:            writer,
		activeWindow:      DefaultActiveWindow,
		writebackInterval: DefaultWritebackInterval,
		liveWatchers:      cache.NewSlidingWindowStore(5*time.Minute, 10, 0),
	}
}

// WithDetailsSource attaches the durable-store lookup ListLiveDetails needs.
// Returns the same Tracker for chaining at construction time.
func (t *Tracker) WithDetailsSource(details DetailsSource) *Tracker {
	t.details = details
	return t
}

// MarkLive records that userID is viewing eventID right now: refreshes the
// activity sorted set and evicts stale entries older than the active
// window, same as the reference implementation's ensure_session_analytics.
func (t *Tracker) MarkLive(ctx context.Context, eventID, userID string) error {
	return t.recordPing(ctx, eventID, userID)
}

// RecordPing refreshes presence for userID on eventID and, if enough time
// has elapsed since the last durable writeback for this user, persists a
// history row via Writer.
func (t *Tracker) RecordPing(ctx context.Context, eventID, userID string) error {
	if err := t.recordPing(ctx, eventID, userID); err != nil {
		return err
	}
	t.liveWatchers.Increment(eventID)

	if t.writer == nil {
		return nil
	}

	now := time.Now().Unix()
	throttleKey := writebackThrottleKey(eventID, userID)
	wrote, err := t.store.SetNX(ctx, throttleKey, []byte(strconv.FormatInt(now, 10)), t.writebackInterval)
	if err != nil || !wrote {
		return nil // either a transient store issue or writeback already happened recently; not fatal
	}
	return t.writer.RecordPing(ctx, eventID, userID)
}

func (t *Tracker) recordPing(ctx context.Context, eventID, userID string) error {
	now := time.Now().Unix()
	if err := t.store.ZAdd(ctx, activityKey(eventID), userID, now); err != nil {
		return err
	}
	_, err := t.store.ZRemRangeByScore(ctx, activityKey(eventID), 0, now-int64(t.activeWindow.Seconds()))
	return err
}

// MarkInactive removes userID from eventID's activity set, called on
// socket close so the viewer no longer counts as connected, mirroring the
// reference implementation's mark_session_inactive (zrem + throttle-key
// delete).
func (t *Tracker) MarkInactive(ctx context.Context, eventID, userID string) error {
	if err := t.store.ZRem(ctx, activityKey(eventID), userID); err != nil {
		return err
	}
	return t.store.Delete(ctx, writebackThrottleKey(eventID, userID))
}

// LiveCount returns how many distinct users are currently active for
// eventID (within the active window).
func (t *Tracker) LiveCount(ctx context.Context, eventID string) (int, error) {
	now := time.Now().Unix()
	if _, err := t.store.ZRemRangeByScore(ctx, activityKey(eventID), 0, now-int64(t.activeWindow.Seconds())); err != nil {
		return 0, err
	}
	return t.store.ZCard(ctx, activityKey(eventID))
}

// ListLive returns the user IDs currently active for eventID.
func (t *Tracker) ListLive(ctx context.Context, eventID string) ([]string, error) {
	now := time.Now().Unix()
	members, err := t.store.ZRange(ctx, activityKey(eventID), now-int64(t.activeWindow.Seconds()), now)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.Value)
	}
	return ids, nil
}

// ActiveParticipantSeries returns the per-bucket active-participant counts
// for eventID, oldest to newest, feeding the snapshot publisher's
// engagement chart. Empty if no ping has been recorded for this event yet.
func (t *Tracker) ActiveParticipantSeries(eventID string) []int64 {
	return t.liveWatchers.BucketCounts(eventID)
}

// ListLiveDetails joins list_live with durable user rows to return
// {user_id, name, start_time, last_ping, total_minutes, block flags},
// already filtered to plain viewers (ListActiveSessions excludes staff),
// matching the reports dashboard's "Active sessions" source. Returns an
// empty slice with no error if no DetailsSource was attached.
func (t *Tracker) ListLiveDetails(ctx context.Context, eventID string) ([]*LiveDetail, error) {
	if t.details == nil {
		return nil, nil
	}
	now := time.Now().Unix()
	members, err := t.store.ZRange(ctx, activityKey(eventID), now-int64(t.activeWindow.Seconds()), now)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, nil
	}

	lastPing := make(map[string]time.Time, len(members))
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.Value)
		lastPing[m.Value] = time.Unix(m.Score, 0)
	}

	rows, err := t.details.ListActiveSessions(ctx, eventID, ids)
	if err != nil {
		return nil, err
	}
	out := make([]*LiveDetail, 0, len(rows))
	for _, row := range rows {
		out = append(out, &LiveDetail{
			UserID:       row.UserID,
			Name:         row.Name,
			StartTime:    row.StartTime,
			LastPing:     lastPing[row.UserID],
			TotalMinutes: row.TotalMinutes,
			ChatBlocked:  row.ChatBlocked,
			QABlocked:    row.QABlocked,
			Banned:       row.Banned,
		})
	}
	return out, nil
}
