// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package store

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/tomtom215/cartographus/internal/apperr"
	"github.com/tomtom215/cartographus/internal/models"
)

// QuestionRepository persists the Q&A pipeline's question rows and backs
// every transition (add/approve/reject/return-to-pending/mark-read) with a
// durable write, grounded on
// original_source/app/services/questions_service.py.
type QuestionRepository interface {
	// List returns up to limit questions for eventID, optionally filtered
	// by status, newest first.
	List(ctx context.Context, eventID string, status models.QuestionStatus, limit int) ([]*models.Question, error)

	// ListPendingAndApproved returns up to limit rows per bucket,
	// grouped by status, mirroring list_pending_and_approved's three
	// parallel status-filtered queries.
	ListPendingAndApproved(ctx context.Context, eventID string, limit int) (pending, approved, read []*models.Question, err error)

	// Add inserts a new pending question. Either authorUserID or
	// manualAuthorName should be set (manualAuthorName for bulk-imported
	// questions with no backing account).
	Add(ctx context.Context, q *models.Question) (*models.Question, error)

	// Approve transitions a pending question to approved and returns the
	// updated row.
	Approve(ctx context.Context, eventID, questionID string) (*models.Question, error)

	// Reject deletes a pending question outright; it is not tombstoned.
	Reject(ctx context.Context, eventID, questionID string) error

	// ReturnToPending transitions an approved question back to pending.
	ReturnToPending(ctx context.Context, eventID, questionID string) (*models.Question, error)

	// MarkRead transitions an approved question to read and returns the
	// updated row so callers can broadcast its content.
	MarkRead(ctx context.Context, eventID, questionID string) (*models.Question, error)

	// CountByStatus returns the exact row count per status for eventID's
	// questions, mirroring the reference implementation's GROUP BY status
	// query behind its question_status report view. Rejected questions are
	// deleted outright rather than tombstoned (see Reject), so the
	// "rejected" bucket is always zero here — the same behavior the
	// reference implementation's own delete-on-reject produces.
	CountByStatus(ctx context.Context, eventID string) (pending, approved, read int, err error)
}

type pgxQuestionRepository struct {
	pool *Pool
}

// NewQuestionRepository returns a QuestionRepository backed by pool.
func NewQuestionRepository(pool *Pool) QuestionRepository {
	return &pgxQuestionRepository{pool: pool}
}

func (r *pgxQuestionRepository) List(ctx context.Context, eventID string, status models.QuestionStatus, limit int) ([]*models.Question, error) {
	return withBreaker(ctx, r.pool, "question.List", func(ctx context.Context) ([]*models.Question, error) {
		const baseQuery = `SELECT id, event_id, author_user_id, manual_author_name, text, status, created_at
			FROM questions WHERE event_id = $1`
		query := baseQuery
		args := []any{eventID}
		if status != "" {
			query += " AND status = $2 ORDER BY created_at DESC LIMIT $3"
			args = append(args, status, limit)
		} else {
			query += " ORDER BY created_at DESC LIMIT $2"
			args = append(args, limit)
		}

		rows, err := r.pool.Raw().Query(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		return scanQuestions(rows)
	})
}

func (r *pgxQuestionRepository) ListPendingAndApproved(ctx context.Context, eventID string, limit int) ([]*models.Question, []*models.Question, []*models.Question, error) {
	type buckets struct {
		pending, approved, read []*models.Question
	}
	result, err := withBreaker(ctx, r.pool, "question.ListPendingAndApproved", func(ctx context.Context) (buckets, error) {
		var b buckets
		for status, dst := range map[models.QuestionStatus]*[]*models.Question{
			models.QuestionStatusPending:  &b.pending,
			models.QuestionStatusApproved: &b.approved,
			models.QuestionStatusRead:     &b.read,
		} {
			rows, err := r.pool.Raw().Query(ctx,
				`SELECT id, event_id, author_user_id, manual_author_name, text, status, created_at
				 FROM questions WHERE event_id = $1 AND status = $2
				 ORDER BY created_at DESC LIMIT $3`,
				eventID, status, limit)
			if err != nil {
				return b, err
			}
			qs, err := scanQuestions(rows)
			rows.Close()
			if err != nil {
				return b, err
			}
			*dst = qs
		}
		return b, nil
	})
	return result.pending, result.approved, result.read, err
}

func (r *pgxQuestionRepository) Add(ctx context.Context, q *models.Question) (*models.Question, error) {
	return withBreaker(ctx, r.pool, "question.Add", func(ctx context.Context) (*models.Question, error) {
		row := r.pool.Raw().QueryRow(ctx,
			`INSERT INTO questions (id, event_id, author_user_id, manual_author_name, text, status, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, now())
			 RETURNING id, event_id, author_user_id, manual_author_name, text, status, created_at`,
			q.ID, q.EventID, q.AuthorUserID, q.ManualAuthorName, q.Text, models.QuestionStatusPending)
		return scanQuestion(row)
	})
}

func (r *pgxQuestionRepository) Approve(ctx context.Context, eventID, questionID string) (*models.Question, error) {
	return r.transition(ctx, "question.Approve", eventID, questionID, models.QuestionStatusPending, models.QuestionStatusApproved)
}

func (r *pgxQuestionRepository) ReturnToPending(ctx context.Context, eventID, questionID string) (*models.Question, error) {
	return r.transition(ctx, "question.ReturnToPending", eventID, questionID, models.QuestionStatusApproved, models.QuestionStatusPending)
}

func (r *pgxQuestionRepository) transition(ctx context.Context, op, eventID, questionID string, from, to models.QuestionStatus) (*models.Question, error) {
	return withBreaker(ctx, r.pool, op, func(ctx context.Context) (*models.Question, error) {
		row := r.pool.Raw().QueryRow(ctx,
			`UPDATE questions SET status = $1 WHERE id = $2 AND event_id = $3 AND status = $4
			 RETURNING id, event_id, author_user_id, manual_author_name, text, status, created_at`,
			to, questionID, eventID, from)
		q, err := scanQuestion(row)
		if err != nil {
			if err == pgx.ErrNoRows {
				return nil, apperr.State(op, apperr.ErrInvalidTransition)
			}
			return nil, err
		}
		return q, nil
	})
}

func (r *pgxQuestionRepository) Reject(ctx context.Context, eventID, questionID string) error {
	_, err := withBreaker(ctx, r.pool, "question.Reject", func(ctx context.Context) (struct{}, error) {
		_, err := r.pool.Raw().Exec(ctx, `DELETE FROM questions WHERE id = $1 AND event_id = $2`, questionID, eventID)
		return struct{}{}, err
	})
	return err
}

func (r *pgxQuestionRepository) MarkRead(ctx context.Context, eventID, questionID string) (*models.Question, error) {
	return r.transition(ctx, "question.MarkRead", eventID, questionID, models.QuestionStatusApproved, models.QuestionStatusRead)
}

func (r *pgxQuestionRepository) CountByStatus(ctx context.Context, eventID string) (pending, approved, read int, err error) {
	type counts struct{ pending, approved, read int }
	result, err := withBreaker(ctx, r.pool, "question.CountByStatus", func(ctx context.Context) (counts, error) {
		var c counts
		rows, err := r.pool.Raw().Query(ctx,
			`SELECT status, count(*) FROM questions WHERE event_id = $1 GROUP BY status`, eventID)
		if err != nil {
			return c, err
		}
		defer rows.Close()
		for rows.Next() {
			var status models.QuestionStatus
			var n int
			if err := rows.Scan(&status, &n); err != nil {
				return c, err
			}
			switch status {
			case models.QuestionStatusPending:
				c.pending = n
			case models.QuestionStatusApproved:
				c.approved = n
			case models.QuestionStatusRead:
				c.read = n
			}
		}
		return c, rows.Err()
	})
	return result.pending, result.approved, result.read, err
}

func scanQuestion(row pgx.Row) (*models.Question, error) {
	q := &models.Question{}
	if err := row.Scan(&q.ID, &q.EventID, &q.AuthorUserID, &q.ManualAuthorName, &q.Text, &q.Status, &q.CreatedAt); err != nil {
		return nil, err
	}
	return q, nil
}

func scanQuestions(rows pgx.Rows) ([]*models.Question, error) {
	var out []*models.Question
	for rows.Next() {
		q := &models.Question{}
		if err := rows.Scan(&q.ID, &q.EventID, &q.AuthorUserID, &q.ManualAuthorName, &q.Text, &q.Status, &q.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}
