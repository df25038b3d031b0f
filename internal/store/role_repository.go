// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/tomtom215/cartographus/internal/authz"
	"github.com/tomtom215/cartographus/internal/models"
)

// EventRoleRepository resolves a user's per-event role promotion — a
// UserRole row with EventID set, scoping a viewer's elevated role (e.g. a
// guest speaker) to a single event rather than the whole platform. This
// is the third link in the gateway's
// superadmin -> EventStaff -> per-event promotion -> viewer precedence
// chain; EventStaff grants (internal/store.EventStaffRepository) rank
// above it, so callers check EventStaff first.
type EventRoleRepository interface {
	// GetEventRole returns the active, non-expired role userID holds
	// scoped to eventID, or "" with no error if they hold none.
	GetEventRole(ctx context.Context, eventID, userID string) (string, error)
}

// NewEventRoleRepository returns an EventRoleRepository backed by pool,
// sharing the same user_roles table as NewRoleRepository's platform-wide
// RoleProvider.
func NewEventRoleRepository(pool *Pool) EventRoleRepository {
	return &roleRepository{pool: pool}
}

// roleRepository is the concrete internal/authz.RoleProvider backing
// authz.Service with durable persistence instead of the package's test
// mock. Role rows are stored per (user_id, event_id) so a user can hold a
// platform-wide role (empty event_id) alongside per-event promotions.
type roleRepository struct {
	pool *Pool
}

// NewRoleRepository returns an authz.RoleProvider backed by pool.
func NewRoleRepository(pool *Pool) authz.RoleProvider {
	return &roleRepository{pool: pool}
}

func (r *roleRepository) GetUserRole(ctx context.Context, userID string) (*models.UserRole, error) {
	// A missing row is a normal outcome here, not an infrastructure
	// failure, so it is resolved to nil (success, for breaker purposes)
	// inside the closure and only translated to the package sentinel
	// afterward — a ErrRoleNotFound must never trip the circuit breaker
	// on an otherwise healthy database.
	ur, err := withBreaker(ctx, r.pool, "role.GetUserRole", func(ctx context.Context) (*models.UserRole, error) {
		row := r.pool.Raw().QueryRow(ctx,
			`SELECT id, user_id, username, role, event_id, assigned_by, assigned_at, expires_at, is_active, metadata
			 FROM user_roles WHERE user_id = $1 AND event_id = '' AND is_active
			 ORDER BY assigned_at DESC LIMIT 1`,
			userID)
		found, err := scanUserRole(row)
		if err != nil {
			if err == pgx.ErrNoRows {
				return nil, nil
			}
			return nil, err
		}
		return found, nil
	})
	if err != nil {
		return nil, err
	}
	if ur == nil {
		return nil, authz.ErrRoleNotFound
	}
	return ur, nil
}

// GetEffectiveRole returns the highest-privilege active role a user holds,
// defaulting to RoleViewer rather than erroring when no row exists — the
// "not found" case is a legitimate default, not a failure.
func (r *roleRepository) GetEffectiveRole(ctx context.Context, userID string) (string, error) {
	return withBreaker(ctx, r.pool, "role.GetEffectiveRole", func(ctx context.Context) (string, error) {
		rows, err := r.pool.Raw().Query(ctx,
			`SELECT role FROM user_roles WHERE user_id = $1 AND is_active
			 AND (expires_at IS NULL OR expires_at > now())`,
			userID)
		if err != nil {
			return "", err
		}
		defer rows.Close()

		best := models.RoleViewer
		for rows.Next() {
			var role string
			if err := rows.Scan(&role); err != nil {
				return "", err
			}
			if rolePrivilege(role) > rolePrivilege(best) {
				best = role
			}
		}
		return best, rows.Err()
	})
}

func rolePrivilege(role string) int {
	switch role {
	case models.RoleSuperadmin:
		return 2
	case models.RoleStaff:
		return 1
	default:
		return 0
	}
}

func (r *roleRepository) SetUserRole(ctx context.Context, role *models.UserRole, actorID, actorUsername, reason string) (*models.UserRole, error) {
	result, err := withBreaker(ctx, r.pool, "role.SetUserRole", func(ctx context.Context) (*models.UserRole, error) {
		tx, err := r.pool.Raw().Begin(ctx)
		if err != nil {
			return nil, err
		}
		defer tx.Rollback(ctx) //nolint:errcheck // no-op once committed

		var oldRole string
		_ = tx.QueryRow(ctx,
			`SELECT role FROM user_roles WHERE user_id = $1 AND event_id = $2 AND is_active`,
			role.UserID, role.EventID).Scan(&oldRole)

		row := tx.QueryRow(ctx,
			`INSERT INTO user_roles (user_id, username, role, event_id, assigned_by, assigned_at, expires_at, is_active, metadata)
			 VALUES ($1, $2, $3, $4, $5, now(), $6, true, $7)
			 ON CONFLICT (user_id, event_id) DO UPDATE SET
			   role = EXCLUDED.role, assigned_by = EXCLUDED.assigned_by,
			   assigned_at = EXCLUDED.assigned_at, expires_at = EXCLUDED.expires_at,
			   is_active = true, metadata = EXCLUDED.metadata
			 RETURNING id, user_id, username, role, event_id, assigned_by, assigned_at, expires_at, is_active, metadata`,
			role.UserID, role.Username, role.Role, role.EventID, actorID, role.ExpiresAt, role.Metadata)
		ur, err := scanUserRole(row)
		if err != nil {
			return nil, err
		}

		entry := models.NewRoleAuditEntry(actorID, actorUsername, models.AuditActionAssign, role.UserID, role.Username)
		entry.OldRole = oldRole
		entry.NewRole = role.Role
		entry.Reason = reason
		if _, err := tx.Exec(ctx,
			`INSERT INTO role_audit_entries (id, timestamp, actor_id, actor_username, action, target_user_id, target_username, old_role, new_role, reason)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			entry.ID, entry.Timestamp, entry.ActorID, entry.ActorUsername, entry.Action,
			entry.TargetUserID, entry.TargetUsername, entry.OldRole, entry.NewRole, entry.Reason); err != nil {
			return nil, err
		}

		return ur, tx.Commit(ctx)
	})
	return result, err
}

func (r *roleRepository) DeleteUserRole(ctx context.Context, userID, actorID, actorUsername, reason string) error {
	_, err := withBreaker(ctx, r.pool, "role.DeleteUserRole", func(ctx context.Context) (struct{}, error) {
		tx, err := r.pool.Raw().Begin(ctx)
		if err != nil {
			return struct{}{}, err
		}
		defer tx.Rollback(ctx) //nolint:errcheck // no-op once committed

		var oldRole, username string
		err = tx.QueryRow(ctx,
			`SELECT role, username FROM user_roles WHERE user_id = $1 AND event_id = '' AND is_active`,
			userID).Scan(&oldRole, &username)
		if err != nil && err != pgx.ErrNoRows {
			return struct{}{}, err
		}

		if _, err := tx.Exec(ctx,
			`UPDATE user_roles SET is_active = false WHERE user_id = $1 AND event_id = ''`, userID); err != nil {
			return struct{}{}, err
		}

		entry := models.NewRoleAuditEntry(actorID, actorUsername, models.AuditActionRevoke, userID, username)
		entry.OldRole = oldRole
		entry.Reason = reason
		if _, err := tx.Exec(ctx,
			`INSERT INTO role_audit_entries (id, timestamp, actor_id, actor_username, action, target_user_id, target_username, old_role, new_role, reason)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			entry.ID, entry.Timestamp, entry.ActorID, entry.ActorUsername, entry.Action,
			entry.TargetUserID, entry.TargetUsername, entry.OldRole, entry.NewRole, entry.Reason); err != nil {
			return struct{}{}, err
		}

		return struct{}{}, tx.Commit(ctx)
	})
	return err
}

func (r *roleRepository) AuditRoleChange(ctx context.Context, entry *models.RoleAuditEntry) error {
	_, err := withBreaker(ctx, r.pool, "role.AuditRoleChange", func(ctx context.Context) (struct{}, error) {
		_, err := r.pool.Raw().Exec(ctx,
			`INSERT INTO role_audit_entries (id, timestamp, actor_id, actor_username, action, target_user_id, target_username, old_role, new_role, reason, ip_address, user_agent, session_id)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			entry.ID, entry.Timestamp, entry.ActorID, entry.ActorUsername, entry.Action,
			entry.TargetUserID, entry.TargetUsername, entry.OldRole, entry.NewRole, entry.Reason,
			entry.IPAddress, entry.UserAgent, entry.SessionID)
		return struct{}{}, err
	})
	return err
}

func (r *roleRepository) IsUserSuperadmin(ctx context.Context, userID string) (bool, error) {
	return withBreaker(ctx, r.pool, "role.IsUserSuperadmin", func(ctx context.Context) (bool, error) {
		var count int
		err := r.pool.Raw().QueryRow(ctx,
			`SELECT count(*) FROM user_roles WHERE user_id = $1 AND role = $2 AND is_active
			 AND (expires_at IS NULL OR expires_at > now())`,
			userID, models.RoleSuperadmin).Scan(&count)
		if err != nil {
			return false, err
		}
		return count > 0, nil
	})
}

func (r *roleRepository) GetEventRole(ctx context.Context, eventID, userID string) (string, error) {
	return withBreaker(ctx, r.pool, "role.GetEventRole", func(ctx context.Context) (string, error) {
		var role string
		err := r.pool.Raw().QueryRow(ctx,
			`SELECT role FROM user_roles WHERE user_id = $1 AND event_id = $2 AND is_active
			 AND (expires_at IS NULL OR expires_at > now())
			 ORDER BY assigned_at DESC LIMIT 1`,
			userID, eventID).Scan(&role)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return "", nil
			}
			return "", err
		}
		return role, nil
	})
}

func scanUserRole(row pgx.Row) (*models.UserRole, error) {
	ur := &models.UserRole{}
	if err := row.Scan(&ur.ID, &ur.UserID, &ur.Username, &ur.Role, &ur.EventID, &ur.AssignedBy,
		&ur.AssignedAt, &ur.ExpiresAt, &ur.IsActive, &ur.Metadata); err != nil {
		return nil, err
	}
	return ur, nil
}
