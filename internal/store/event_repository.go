// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package store

import (
	"context"
	"errors"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tomtom215/cartographus/internal/apperr"
	"github.com/tomtom215/cartographus/internal/models"
)

// postgresUniqueViolation is the SQLSTATE Postgres returns for a unique
// index conflict, used here to turn a slug collision into apperr.ErrSlugTaken
// instead of a bare driver error.
const postgresUniqueViolation = "23505"

// EventRepository persists events: their lifecycle status, registration
// window, and soft-delete state. Grounded on question_repository.go's
// withBreaker/Raw()/scan-helper shape, the only repository pattern this
// package already had before events existed as a first-class row.
type EventRepository interface {
	// GetByID returns the event, or apperr.ErrEventNotFound if it does not
	// exist or is soft-deleted.
	GetByID(ctx context.Context, id string) (*models.Event, error)

	// GetBySlug returns the event, or apperr.ErrEventNotFound if no
	// non-deleted event carries that slug.
	GetBySlug(ctx context.Context, slug string) (*models.Event, error)

	// Create inserts a new event in DRAFT status. Returns
	// apperr.ErrSlugTaken if slug collides with a non-deleted event.
	Create(ctx context.Context, e *models.Event) (*models.Event, error)

	// UpdateStatus transitions an event's status and returns the updated
	// row.
	UpdateStatus(ctx context.Context, id string, status models.EventStatus) (*models.Event, error)

	// SoftDelete marks an event deleted, freeing its slug for reuse.
	SoftDelete(ctx context.Context, id string) error
}

type pgxEventRepository struct {
	pool *Pool
}

// NewEventRepository returns an EventRepository backed by pool.
func NewEventRepository(pool *Pool) EventRepository {
	return &pgxEventRepository{pool: pool}
}

const eventColumns = `id, name, slug, media_url, status, registration_mode,
	registration_opens_at, registration_closes_at, access_open_at, capacity,
	timezone, registration_schema, registration_success_message,
	starts_at, ends_at, created_at, deleted_at`

func (r *pgxEventRepository) GetByID(ctx context.Context, id string) (*models.Event, error) {
	return withBreaker(ctx, r.pool, "event.GetByID", func(ctx context.Context) (*models.Event, error) {
		row := r.pool.Raw().QueryRow(ctx,
			`SELECT `+eventColumns+` FROM events WHERE id = $1 AND deleted_at IS NULL`, id)
		e, err := scanEvent(row)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperr.State("event.GetByID", apperr.ErrEventNotFound)
			}
			return nil, err
		}
		return e, nil
	})
}

func (r *pgxEventRepository) GetBySlug(ctx context.Context, slug string) (*models.Event, error) {
	return withBreaker(ctx, r.pool, "event.GetBySlug", func(ctx context.Context) (*models.Event, error) {
		row := r.pool.Raw().QueryRow(ctx,
			`SELECT `+eventColumns+` FROM events WHERE slug = $1 AND deleted_at IS NULL`, slug)
		e, err := scanEvent(row)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperr.State("event.GetBySlug", apperr.ErrEventNotFound)
			}
			return nil, err
		}
		return e, nil
	})
}

func (r *pgxEventRepository) Create(ctx context.Context, e *models.Event) (*models.Event, error) {
	return withBreaker(ctx, r.pool, "event.Create", func(ctx context.Context) (*models.Event, error) {
		schemaJSON, err := json.Marshal(e.RegistrationSchema)
		if err != nil {
			return nil, err
		}
		status := e.Status
		if status == "" {
			status = models.EventStatusDraft
		}
		row := r.pool.Raw().QueryRow(ctx,
			`INSERT INTO events (id, name, slug, media_url, status, registration_mode,
				registration_opens_at, registration_closes_at, access_open_at, capacity,
				timezone, registration_schema, registration_success_message,
				starts_at, ends_at, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, now())
			 RETURNING `+eventColumns,
			e.ID, e.Name, e.Slug, e.MediaURL, status, e.RegistrationMode,
			e.RegistrationOpensAt, e.RegistrationClosesAt, e.AccessOpenAt, e.Capacity,
			e.Timezone, schemaJSON, e.RegistrationSuccessMessage,
			e.StartsAt, e.EndsAt)
		created, err := scanEvent(row)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == postgresUniqueViolation {
				return nil, apperr.State("event.Create", apperr.ErrSlugTaken)
			}
			return nil, err
		}
		return created, nil
	})
}

func (r *pgxEventRepository) UpdateStatus(ctx context.Context, id string, status models.EventStatus) (*models.Event, error) {
	return withBreaker(ctx, r.pool, "event.UpdateStatus", func(ctx context.Context) (*models.Event, error) {
		row := r.pool.Raw().QueryRow(ctx,
			`UPDATE events SET status = $1 WHERE id = $2 AND deleted_at IS NULL
			 RETURNING `+eventColumns,
			status, id)
		e, err := scanEvent(row)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperr.State("event.UpdateStatus", apperr.ErrEventNotFound)
			}
			return nil, err
		}
		return e, nil
	})
}

func (r *pgxEventRepository) SoftDelete(ctx context.Context, id string) error {
	_, err := withBreaker(ctx, r.pool, "event.SoftDelete", func(ctx context.Context) (struct{}, error) {
		tag, err := r.pool.Raw().Exec(ctx,
			`UPDATE events SET deleted_at = now() WHERE id = $1 AND deleted_at IS NULL`, id)
		if err != nil {
			return struct{}{}, err
		}
		if tag.RowsAffected() == 0 {
			return struct{}{}, apperr.State("event.SoftDelete", apperr.ErrEventNotFound)
		}
		return struct{}{}, nil
	})
	return err
}

func scanEvent(row pgx.Row) (*models.Event, error) {
	e := &models.Event{}
	var schemaJSON []byte
	if err := row.Scan(
		&e.ID, &e.Name, &e.Slug, &e.MediaURL, &e.Status, &e.RegistrationMode,
		&e.RegistrationOpensAt, &e.RegistrationClosesAt, &e.AccessOpenAt, &e.Capacity,
		&e.Timezone, &schemaJSON, &e.RegistrationSuccessMessage,
		&e.StartsAt, &e.EndsAt, &e.CreatedAt, &e.DeletedAt,
	); err != nil {
		return nil, err
	}
	if len(schemaJSON) > 0 {
		if err := json.Unmarshal(schemaJSON, &e.RegistrationSchema); err != nil {
			return nil, err
		}
	}
	return e, nil
}
