// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package store

import (
	"context"

	"github.com/tomtom215/cartographus/internal/models"
)

// ChatRepository persists the durable side of an event's chat log.
// The hot path (last-N ring for fast replay on join) lives in
// internal/hotstore; every accepted message still lands here too,
// grounded on original_source/app/services/chat_service.py.
type ChatRepository interface {
	// ListRecent returns up to limit messages for eventID, oldest first
	// (matching list_recent_chats' reversed ordering for display).
	ListRecent(ctx context.Context, eventID string, limit int) ([]*models.ChatMessage, error)

	// Add durably persists a single chat message. Called from the
	// WriteBehindQueue, not inline on the hot broadcast path.
	Add(ctx context.Context, msg *models.ChatMessage) error
}

type pgxChatRepository struct {
	pool *Pool
}

// NewChatRepository returns a ChatRepository backed by pool.
func NewChatRepository(pool *Pool) ChatRepository {
	return &pgxChatRepository{pool: pool}
}

func (r *pgxChatRepository) ListRecent(ctx context.Context, eventID string, limit int) ([]*models.ChatMessage, error) {
	return withBreaker(ctx, r.pool, "chat.ListRecent", func(ctx context.Context) ([]*models.ChatMessage, error) {
		rows, err := r.pool.Raw().Query(ctx,
			`SELECT id, event_id, user_id, user_name, text, created_at
			 FROM chat_messages
			 WHERE event_id = $1
			 ORDER BY created_at DESC LIMIT $2`,
			eventID, limit)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		var out []*models.ChatMessage
		for rows.Next() {
			m := &models.ChatMessage{}
			if err := rows.Scan(&m.ID, &m.EventID, &m.UserID, &m.UserName, &m.Text, &m.CreatedAt); err != nil {
				return nil, err
			}
			out = append(out, m)
		}
		if err := rows.Err(); err != nil {
			return nil, err
		}

		// Reverse to oldest-first, matching list_recent_chats' display order.
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
		return out, nil
	})
}

func (r *pgxChatRepository) Add(ctx context.Context, msg *models.ChatMessage) error {
	_, err := withBreaker(ctx, r.pool, "chat.Add", func(ctx context.Context) (struct{}, error) {
		_, err := r.pool.Raw().Exec(ctx,
			`INSERT INTO chat_messages (id, event_id, user_id, user_name, text, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
			msg.ID, msg.EventID, msg.UserID, msg.UserName, msg.Text, msg.CreatedAt)
		return struct{}{}, err
	})
	return err
}
