// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/cartographus/internal/apperr"
	"github.com/tomtom215/cartographus/internal/models"
)

// PollRepository persists poll definitions, the individual-vote audit
// trail, and the final per-option tally, grounded on
// original_source/app/services/poll_service.py. Live vote counting itself
// happens in internal/hotstore (Badger); this is the durable side each
// vote and lifecycle transition write behind to.
type PollRepository interface {
	// Create inserts a new poll definition (draft by default).
	Create(ctx context.Context, p *models.Poll) (*models.Poll, error)

	// GetByID fetches a poll definition by id, scoped to eventID.
	GetByID(ctx context.Context, eventID, pollID string) (*models.Poll, error)

	// List returns every poll defined for an event, newest first.
	List(ctx context.Context, eventID string) ([]*models.Poll, error)

	// UpdateStatus transitions a poll's durable status field
	// (draft -> published -> closed).
	UpdateStatus(ctx context.Context, pollID string, status models.PollStatus) error

	// UpdateContent rewrites a draft poll's question/options.
	UpdateContent(ctx context.Context, pollID, question string, options []string) error

	// RecordVote durably inserts a single ballot. Violating the
	// (poll_id, user_id) uniqueness constraint means the voter already
	// cast a ballot; the hot store's atomic check is the real gate, this
	// is the audit trail, so a duplicate here is swallowed rather than
	// surfaced (best-effort persistence, matching poll_service.py's
	// "INSERT IGNORE" semantics).
	RecordVote(ctx context.Context, v *models.Vote) error

	// FlushResults persists the final per-option tally for a closed poll.
	FlushResults(ctx context.Context, pollID string, counts []int64) error

	// GetResults returns the closed-poll reporting read-model.
	GetResults(ctx context.Context, pollID string) (*models.PollResults, error)
}

type pgxPollRepository struct {
	pool *Pool
}

// NewPollRepository returns a PollRepository backed by pool.
func NewPollRepository(pool *Pool) PollRepository {
	return &pgxPollRepository{pool: pool}
}

func (r *pgxPollRepository) Create(ctx context.Context, p *models.Poll) (*models.Poll, error) {
	return withBreaker(ctx, r.pool, "poll.Create", func(ctx context.Context) (*models.Poll, error) {
		optionsJSON, err := json.Marshal(p.Options)
		if err != nil {
			return nil, apperr.Validation("poll.Create", err)
		}
		status := p.Status
		if status == "" {
			status = models.PollStatusDraft
		}
		row := r.pool.Raw().QueryRow(ctx,
			`INSERT INTO polls (id, event_id, question, options, status, close_at, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, now())
			 RETURNING id, event_id, question, options, status, close_at, created_at`,
			p.ID, p.EventID, p.Question, optionsJSON, status, p.CloseAt)
		return scanPoll(row)
	})
}

func (r *pgxPollRepository) GetByID(ctx context.Context, eventID, pollID string) (*models.Poll, error) {
	return withBreaker(ctx, r.pool, "poll.GetByID", func(ctx context.Context) (*models.Poll, error) {
		row := r.pool.Raw().QueryRow(ctx,
			`SELECT id, event_id, question, options, status, close_at, created_at
			 FROM polls WHERE id = $1 AND event_id = $2`,
			pollID, eventID)
		p, err := scanPoll(row)
		if err != nil {
			if err == pgx.ErrNoRows {
				return nil, apperr.Validation("poll.GetByID", apperr.ErrUnknownPoll)
			}
			return nil, err
		}
		return p, nil
	})
}

func (r *pgxPollRepository) List(ctx context.Context, eventID string) ([]*models.Poll, error) {
	return withBreaker(ctx, r.pool, "poll.List", func(ctx context.Context) ([]*models.Poll, error) {
		rows, err := r.pool.Raw().Query(ctx,
			`SELECT id, event_id, question, options, status, close_at, created_at
			 FROM polls WHERE event_id = $1 ORDER BY created_at DESC`,
			eventID)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		var out []*models.Poll
		for rows.Next() {
			p := &models.Poll{}
			var optionsJSON []byte
			if err := rows.Scan(&p.ID, &p.EventID, &p.Question, &optionsJSON, &p.Status, &p.CloseAt, &p.CreatedAt); err != nil {
				return nil, err
			}
			if err := json.Unmarshal(optionsJSON, &p.Options); err != nil {
				return nil, apperr.Validation("poll.List", err)
			}
			out = append(out, p)
		}
		return out, rows.Err()
	})
}

func (r *pgxPollRepository) UpdateStatus(ctx context.Context, pollID string, status models.PollStatus) error {
	_, err := withBreaker(ctx, r.pool, "poll.UpdateStatus", func(ctx context.Context) (struct{}, error) {
		_, err := r.pool.Raw().Exec(ctx, `UPDATE polls SET status = $1 WHERE id = $2`, status, pollID)
		return struct{}{}, err
	})
	return err
}

func (r *pgxPollRepository) UpdateContent(ctx context.Context, pollID, question string, options []string) error {
	_, err := withBreaker(ctx, r.pool, "poll.UpdateContent", func(ctx context.Context) (struct{}, error) {
		optionsJSON, err := json.Marshal(options)
		if err != nil {
			return struct{}{}, apperr.Validation("poll.UpdateContent", err)
		}
		_, err = r.pool.Raw().Exec(ctx,
			`UPDATE polls SET question = $1, options = $2 WHERE id = $3`,
			question, optionsJSON, pollID)
		return struct{}{}, err
	})
	return err
}

func (r *pgxPollRepository) RecordVote(ctx context.Context, v *models.Vote) error {
	_, err := withBreaker(ctx, r.pool, "poll.RecordVote", func(ctx context.Context) (struct{}, error) {
		_, err := r.pool.Raw().Exec(ctx,
			`INSERT INTO poll_votes (poll_id, event_id, user_id, option_index, cast_at)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (poll_id, user_id) DO NOTHING`,
			v.PollID, v.EventID, v.UserID, v.OptionIndex, v.CastAt)
		return struct{}{}, err
	})
	return err
}

func (r *pgxPollRepository) FlushResults(ctx context.Context, pollID string, counts []int64) error {
	_, err := withBreaker(ctx, r.pool, "poll.FlushResults", func(ctx context.Context) (struct{}, error) {
		tx, err := r.pool.Raw().Begin(ctx)
		if err != nil {
			return struct{}{}, err
		}
		defer tx.Rollback(ctx) //nolint:errcheck // no-op once committed

		for optIdx, votes := range counts {
			if _, err := tx.Exec(ctx,
				`INSERT INTO poll_results (poll_id, option_index, votes) VALUES ($1, $2, $3)`,
				pollID, optIdx, votes); err != nil {
				return struct{}{}, err
			}
		}
		if _, err := tx.Exec(ctx, `UPDATE polls SET status = $1 WHERE id = $2`, models.PollStatusClosed, pollID); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, tx.Commit(ctx)
	})
	return err
}

func (r *pgxPollRepository) GetResults(ctx context.Context, pollID string) (*models.PollResults, error) {
	return withBreaker(ctx, r.pool, "poll.GetResults", func(ctx context.Context) (*models.PollResults, error) {
		var question string
		var optionsJSON []byte
		if err := r.pool.Raw().QueryRow(ctx, `SELECT question, options FROM polls WHERE id = $1`, pollID).
			Scan(&question, &optionsJSON); err != nil {
			if err == pgx.ErrNoRows {
				return nil, apperr.Validation("poll.GetResults", apperr.ErrUnknownPoll)
			}
			return nil, err
		}
		var options []string
		if err := json.Unmarshal(optionsJSON, &options); err != nil {
			return nil, apperr.Validation("poll.GetResults", err)
		}

		rows, err := r.pool.Raw().Query(ctx,
			`SELECT option_index, votes FROM poll_results WHERE poll_id = $1 ORDER BY option_index ASC`, pollID)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		results := &models.PollResults{PollID: pollID, Question: question}
		for rows.Next() {
			var idx int
			var votes int64
			if err := rows.Scan(&idx, &votes); err != nil {
				return nil, err
			}
			label := ""
			if idx < len(options) {
				label = options[idx]
			}
			results.Results = append(results.Results, models.PollResultOption{OptionIndex: idx, Option: label, Votes: votes})
			results.TotalVotes += votes
		}
		return results, rows.Err()
	})
}

func scanPoll(row pgx.Row) (*models.Poll, error) {
	p := &models.Poll{}
	var optionsJSON []byte
	if err := row.Scan(&p.ID, &p.EventID, &p.Question, &optionsJSON, &p.Status, &p.CloseAt, &p.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(optionsJSON, &p.Options); err != nil {
		return nil, apperr.Validation("poll.scan", err)
	}
	return p, nil
}
