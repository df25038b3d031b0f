// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/tomtom215/cartographus/internal/presence"
)

// ParticipantDetail is one row of the durable half of
// internal/presence.Tracker.ListLiveDetails' join: everything list_live's
// hot-store ids alone can't answer (name, session start, accumulated
// minutes, moderation flags). Grounded on
// original_source/app/services/analytics_service.py's
// session_analytics/users join used by get_active_sessions.
type ParticipantDetail struct {
	UserID       string
	Name         string
	StartTime    time.Time
	TotalMinutes int64
	ChatBlocked  bool
	QABlocked    bool
	Banned       bool
}

// SessionAnalyticsRepository persists the reporting-history side of a
// viewer's presence: when their session started and how many
// writeback-interval ticks (approximately minutes) it has accumulated.
// Implements internal/presence.Writer.
type SessionAnalyticsRepository interface {
	// RecordPing upserts a session_analytics row for (eventID, userID),
	// inserting start_time=now on first ping and otherwise advancing
	// last_ping and incrementing total_minutes by one, mirroring
	// record_ping's "UPDATE, and if no row existed, INSERT then UPDATE"
	// idiom.
	RecordPing(ctx context.Context, eventID, userID string) error

	// ListActiveSessions returns participant details for every userID
	// present in userIDs that is a plain viewer (not platform staff and
	// not per-event staff), newest-ping first — the "Active sessions"
	// report view's exact filter.
	ListActiveSessions(ctx context.Context, eventID string, userIDs []string) ([]*ParticipantDetail, error)

	// CountDistinctUsers returns how many distinct viewers have ever
	// pinged eventID, platform/per-event staff excluded, matching the
	// reference implementation's list_registered_users row count — the
	// reports dashboard's "total_registered_users" metric.
	CountDistinctUsers(ctx context.Context, eventID string) (int, error)

	// SumTotalMinutes returns the sum of total_minutes across every
	// session_analytics row for eventID, staff excluded — the reports
	// dashboard's "total_minutes_consumed" metric.
	SumTotalMinutes(ctx context.Context, eventID string) (int64, error)
}

type pgxSessionAnalyticsRepository struct {
	pool *Pool
}

// NewSessionAnalyticsRepository returns a SessionAnalyticsRepository backed
// by pool.
func NewSessionAnalyticsRepository(pool *Pool) SessionAnalyticsRepository {
	return &pgxSessionAnalyticsRepository{pool: pool}
}

func (r *pgxSessionAnalyticsRepository) RecordPing(ctx context.Context, eventID, userID string) error {
	_, err := withBreaker(ctx, r.pool, "session_analytics.RecordPing", func(ctx context.Context) (struct{}, error) {
		tag, err := r.pool.Raw().Exec(ctx,
			`UPDATE session_analytics SET last_ping = now(), total_minutes = total_minutes + 1
			 WHERE user_id = $1 AND event_id = $2`, userID, eventID)
		if err != nil {
			return struct{}{}, err
		}
		if tag.RowsAffected() > 0 {
			return struct{}{}, nil
		}
		_, err = r.pool.Raw().Exec(ctx,
			`INSERT INTO session_analytics (user_id, event_id, start_time, last_ping, total_minutes)
			 VALUES ($1, $2, now(), now(), 1)
			 ON CONFLICT (user_id, event_id) DO UPDATE
			   SET last_ping = now(), total_minutes = session_analytics.total_minutes + 1`,
			userID, eventID)
		return struct{}{}, err
	})
	return err
}

func (r *pgxSessionAnalyticsRepository) ListActiveSessions(ctx context.Context, eventID string, userIDs []string) ([]*ParticipantDetail, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	return withBreaker(ctx, r.pool, "session_analytics.ListActiveSessions", func(ctx context.Context) ([]*ParticipantDetail, error) {
		rows, err := r.pool.Raw().Query(ctx,
			`SELECT sa.user_id, u.name, sa.start_time, sa.total_minutes, u.chat_blocked, u.qa_blocked, u.banned
			 FROM session_analytics sa
			 JOIN users u ON u.id = sa.user_id
			 WHERE sa.event_id = $1
			   AND sa.user_id = ANY($2)
			   AND sa.user_id NOT IN (SELECT user_id FROM event_staff WHERE event_id = $1)
			 ORDER BY sa.last_ping DESC`,
			eventID, userIDs)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		return scanParticipantDetails(rows)
	})
}

func (r *pgxSessionAnalyticsRepository) CountDistinctUsers(ctx context.Context, eventID string) (int, error) {
	return withBreaker(ctx, r.pool, "session_analytics.CountDistinctUsers", func(ctx context.Context) (int, error) {
		var count int
		err := r.pool.Raw().QueryRow(ctx,
			`SELECT count(DISTINCT sa.user_id)
			 FROM session_analytics sa
			 WHERE sa.event_id = $1
			   AND sa.user_id NOT IN (SELECT user_id FROM event_staff WHERE event_id = $1)`,
			eventID).Scan(&count)
		return count, err
	})
}

func (r *pgxSessionAnalyticsRepository) SumTotalMinutes(ctx context.Context, eventID string) (int64, error) {
	return withBreaker(ctx, r.pool, "session_analytics.SumTotalMinutes", func(ctx context.Context) (int64, error) {
		var total int64
		err := r.pool.Raw().QueryRow(ctx,
			`SELECT coalesce(sum(sa.total_minutes), 0)
			 FROM session_analytics sa
			 WHERE sa.event_id = $1
			   AND sa.user_id NOT IN (SELECT user_id FROM event_staff WHERE event_id = $1)`,
			eventID).Scan(&total)
		return total, err
	})
}

func scanParticipantDetails(rows pgx.Rows) ([]*ParticipantDetail, error) {
	var out []*ParticipantDetail
	for rows.Next() {
		d := &ParticipantDetail{}
		if err := rows.Scan(&d.UserID, &d.Name, &d.StartTime, &d.TotalMinutes, &d.ChatBlocked, &d.QABlocked, &d.Banned); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// detailsSourceAdapter narrows a SessionAnalyticsRepository to the
// presence.DetailsSource shape presence.Tracker.WithDetailsSource expects,
// without presence importing this package.
type detailsSourceAdapter struct {
	repo SessionAnalyticsRepository
}

// AsPresenceDetailsSource wraps repo so it satisfies presence.DetailsSource.
func AsPresenceDetailsSource(repo SessionAnalyticsRepository) presence.DetailsSource {
	return detailsSourceAdapter{repo: repo}
}

func (a detailsSourceAdapter) ListActiveSessions(ctx context.Context, eventID string, userIDs []string) ([]*presence.DetailRow, error) {
	rows, err := a.repo.ListActiveSessions(ctx, eventID, userIDs)
	if err != nil {
		return nil, err
	}
	out := make([]*presence.DetailRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, &presence.DetailRow{
			UserID:       r.UserID,
			Name:         r.Name,
			StartTime:    r.StartTime,
			TotalMinutes: r.TotalMinutes,
			ChatBlocked:  r.ChatBlocked,
			QABlocked:    r.QABlocked,
			Banned:       r.Banned,
		})
	}
	return out, nil
}
