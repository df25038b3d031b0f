// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/tomtom215/cartographus/internal/models"
)

// EventStaffRepository persists per-event staff grants (admin/moderator/
// speaker), the authoritative source of per-event authority ahead of a
// platform-wide role in the superadmin -> EventStaff -> per-event
// promotion -> viewer precedence chain described in models.EventStaff.
type EventStaffRepository interface {
	// GetRole returns the staff role granted to userID on eventID, or ""
	// with no error if the user holds no grant for that event.
	GetRole(ctx context.Context, eventID, userID string) (string, error)

	// List returns every staff grant for eventID.
	List(ctx context.Context, eventID string) ([]*models.EventStaff, error)

	// Grant upserts a staff grant, replacing any existing role for the
	// same (event, user) pair.
	Grant(ctx context.Context, s *models.EventStaff) (*models.EventStaff, error)

	// Revoke removes a staff grant. A no-op if none existed.
	Revoke(ctx context.Context, eventID, userID string) error
}

type pgxEventStaffRepository struct {
	pool *Pool
}

// NewEventStaffRepository returns an EventStaffRepository backed by pool.
func NewEventStaffRepository(pool *Pool) EventStaffRepository {
	return &pgxEventStaffRepository{pool: pool}
}

func (r *pgxEventStaffRepository) GetRole(ctx context.Context, eventID, userID string) (string, error) {
	return withBreaker(ctx, r.pool, "event_staff.GetRole", func(ctx context.Context) (string, error) {
		var role string
		err := r.pool.Raw().QueryRow(ctx,
			`SELECT role FROM event_staff WHERE event_id = $1 AND user_id = $2`,
			eventID, userID).Scan(&role)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return "", nil
			}
			return "", err
		}
		return role, nil
	})
}

func (r *pgxEventStaffRepository) List(ctx context.Context, eventID string) ([]*models.EventStaff, error) {
	return withBreaker(ctx, r.pool, "event_staff.List", func(ctx context.Context) ([]*models.EventStaff, error) {
		rows, err := r.pool.Raw().Query(ctx,
			`SELECT event_id, user_id, role, granted_by, granted_at FROM event_staff WHERE event_id = $1
			 ORDER BY granted_at ASC`, eventID)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		var out []*models.EventStaff
		for rows.Next() {
			s := &models.EventStaff{}
			if err := rows.Scan(&s.EventID, &s.UserID, &s.Role, &s.GrantedBy, &s.GrantedAt); err != nil {
				return nil, err
			}
			out = append(out, s)
		}
		return out, rows.Err()
	})
}

func (r *pgxEventStaffRepository) Grant(ctx context.Context, s *models.EventStaff) (*models.EventStaff, error) {
	return withBreaker(ctx, r.pool, "event_staff.Grant", func(ctx context.Context) (*models.EventStaff, error) {
		row := r.pool.Raw().QueryRow(ctx,
			`INSERT INTO event_staff (event_id, user_id, role, granted_by, granted_at)
			 VALUES ($1, $2, $3, $4, now())
			 ON CONFLICT (event_id, user_id) DO UPDATE SET role = $3, granted_by = $4, granted_at = now()
			 RETURNING event_id, user_id, role, granted_by, granted_at`,
			s.EventID, s.UserID, s.Role, s.GrantedBy)
		out := &models.EventStaff{}
		if err := row.Scan(&out.EventID, &out.UserID, &out.Role, &out.GrantedBy, &out.GrantedAt); err != nil {
			return nil, err
		}
		return out, nil
	})
}

func (r *pgxEventStaffRepository) Revoke(ctx context.Context, eventID, userID string) error {
	_, err := withBreaker(ctx, r.pool, "event_staff.Revoke", func(ctx context.Context) (struct{}, error) {
		_, err := r.pool.Raw().Exec(ctx,
			`DELETE FROM event_staff WHERE event_id = $1 AND user_id = $2`, eventID, userID)
		return struct{}{}, err
	})
	return err
}
