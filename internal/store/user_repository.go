// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/tomtom215/cartographus/internal/apperr"
	"github.com/tomtom215/cartographus/internal/models"
)

// UserRepository persists account profiles and their moderation flags.
// Grounded on original_source/app/services/users_service.py's
// get_user_status/update_user_status pair.
type UserRepository interface {
	// GetOrCreate returns the user row for id, inserting a bare row (name
	// defaulting to id) on first sight — sessions are created from cookie
	// identity before any profile exists, mirroring
	// ensure_session_analytics' insert-if-absent behavior for the session
	// side of the same join.
	GetOrCreate(ctx context.Context, id, name string) (*models.User, error)

	// GetStatus returns just the three moderation flags, the read path
	// internal/gateway checks before admitting a chat/Q&A send.
	GetStatus(ctx context.Context, id string) (*models.User, error)

	// SetFlag toggles one moderation flag. Returns apperr.Validation if
	// flag is not one of the three recognized flags.
	SetFlag(ctx context.Context, id string, flag models.UserFlag, value bool) error
}

type pgxUserRepository struct {
	pool *Pool
}

// NewUserRepository returns a UserRepository backed by pool.
func NewUserRepository(pool *Pool) UserRepository {
	return &pgxUserRepository{pool: pool}
}

func (r *pgxUserRepository) GetOrCreate(ctx context.Context, id, name string) (*models.User, error) {
	return withBreaker(ctx, r.pool, "user.GetOrCreate", func(ctx context.Context) (*models.User, error) {
		row := r.pool.Raw().QueryRow(ctx,
			`INSERT INTO users (id, name) VALUES ($1, $2)
			 ON CONFLICT (id) DO UPDATE SET id = users.id
			 RETURNING id, name, email, chat_blocked, qa_blocked, banned, created_at`,
			id, name)
		return scanUser(row)
	})
}

func (r *pgxUserRepository) GetStatus(ctx context.Context, id string) (*models.User, error) {
	return withBreaker(ctx, r.pool, "user.GetStatus", func(ctx context.Context) (*models.User, error) {
		row := r.pool.Raw().QueryRow(ctx,
			`SELECT id, name, email, chat_blocked, qa_blocked, banned, created_at FROM users WHERE id = $1`, id)
		u, err := scanUser(row)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperr.State("user.GetStatus", apperr.ErrEventNotFound)
			}
			return nil, err
		}
		return u, nil
	})
}

func (r *pgxUserRepository) SetFlag(ctx context.Context, id string, flag models.UserFlag, value bool) error {
	if !models.IsValidUserFlag(flag) {
		return apperr.Validation("user.SetFlag", fmt.Errorf("unrecognized user flag %q", flag))
	}
	_, err := withBreaker(ctx, r.pool, "user.SetFlag", func(ctx context.Context) (struct{}, error) {
		_, err := r.pool.Raw().Exec(ctx,
			fmt.Sprintf(`UPDATE users SET %s = $1 WHERE id = $2`, string(flag)), value, id)
		return struct{}{}, err
	})
	return err
}

func scanUser(row pgx.Row) (*models.User, error) {
	u := &models.User{}
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.ChatBlocked, &u.QABlocked, &u.Banned, &u.CreatedAt); err != nil {
		return nil, err
	}
	return u, nil
}
