// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package store

import "context"

// schema is applied once at startup (or by the integration test suite) to
// bring a fresh database up to the shape every repository in this package
// expects. There is no migration ladder yet: the schema is small enough
// that a single idempotent DDL statement set is simpler than chasing
// golang-migrate's versioned-file machinery for a handful of tables.
const schema = `
CREATE TABLE IF NOT EXISTS events (
	id                           text PRIMARY KEY,
	name                         text NOT NULL,
	slug                         text NOT NULL,
	media_url                    text NOT NULL DEFAULT '',
	status                       text NOT NULL,
	registration_mode            text NOT NULL DEFAULT '',
	registration_opens_at        timestamptz,
	registration_closes_at       timestamptz,
	access_open_at               timestamptz,
	capacity                     int,
	timezone                     text NOT NULL DEFAULT '',
	registration_schema          jsonb,
	registration_success_message text NOT NULL DEFAULT '',
	starts_at                    timestamptz,
	ends_at                      timestamptz,
	created_at                   timestamptz NOT NULL DEFAULT now(),
	deleted_at                   timestamptz
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_events_slug_not_deleted ON events (slug) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS users (
	id           text PRIMARY KEY,
	name         text NOT NULL,
	email        text NOT NULL DEFAULT '',
	chat_blocked boolean NOT NULL DEFAULT false,
	qa_blocked   boolean NOT NULL DEFAULT false,
	banned       boolean NOT NULL DEFAULT false,
	created_at   timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS session_analytics (
	user_id       text NOT NULL,
	event_id      text NOT NULL,
	start_time    timestamptz NOT NULL DEFAULT now(),
	last_ping     timestamptz NOT NULL DEFAULT now(),
	total_minutes bigint NOT NULL DEFAULT 0,
	PRIMARY KEY (user_id, event_id)
);
CREATE INDEX IF NOT EXISTS idx_session_analytics_event_ping ON session_analytics (event_id, last_ping DESC);

CREATE TABLE IF NOT EXISTS event_staff (
	event_id   text NOT NULL,
	user_id    text NOT NULL,
	role       text NOT NULL,
	granted_by text NOT NULL DEFAULT '',
	granted_at timestamptz NOT NULL DEFAULT now(),
	PRIMARY KEY (event_id, user_id)
);

CREATE TABLE IF NOT EXISTS questions (
	id                 text PRIMARY KEY,
	event_id           text NOT NULL,
	author_user_id     text NOT NULL DEFAULT '',
	manual_author_name text NOT NULL DEFAULT '',
	text               text NOT NULL,
	status             text NOT NULL,
	created_at         timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_questions_event_status ON questions (event_id, status, created_at DESC);

CREATE TABLE IF NOT EXISTS chat_messages (
	id         text PRIMARY KEY,
	event_id   text NOT NULL,
	user_id    text NOT NULL,
	user_name  text NOT NULL,
	text       text NOT NULL,
	created_at timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_chat_event_created ON chat_messages (event_id, created_at DESC);

CREATE TABLE IF NOT EXISTS polls (
	id         text PRIMARY KEY,
	event_id   text NOT NULL,
	question   text NOT NULL,
	options    jsonb NOT NULL,
	status     text NOT NULL,
	close_at   timestamptz,
	created_at timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_polls_event ON polls (event_id, created_at DESC);

CREATE TABLE IF NOT EXISTS poll_votes (
	poll_id      text NOT NULL,
	event_id     text NOT NULL,
	user_id      text NOT NULL,
	option_index int NOT NULL,
	cast_at      timestamptz NOT NULL DEFAULT now(),
	PRIMARY KEY (poll_id, user_id)
);

CREATE TABLE IF NOT EXISTS poll_results (
	poll_id      text NOT NULL,
	option_index int NOT NULL,
	votes        bigint NOT NULL,
	PRIMARY KEY (poll_id, option_index)
);

CREATE TABLE IF NOT EXISTS user_roles (
	id          bigserial PRIMARY KEY,
	user_id     text NOT NULL,
	username    text NOT NULL DEFAULT '',
	role        text NOT NULL,
	event_id    text NOT NULL DEFAULT '',
	assigned_by text NOT NULL DEFAULT '',
	assigned_at timestamptz NOT NULL DEFAULT now(),
	expires_at  timestamptz,
	is_active   boolean NOT NULL DEFAULT true,
	metadata    text,
	UNIQUE (user_id, event_id)
);

CREATE TABLE IF NOT EXISTS role_audit_entries (
	id              uuid PRIMARY KEY,
	timestamp       timestamptz NOT NULL,
	actor_id        text NOT NULL,
	actor_username  text NOT NULL DEFAULT '',
	action          text NOT NULL,
	target_user_id  text NOT NULL,
	target_username text NOT NULL DEFAULT '',
	old_role        text NOT NULL DEFAULT '',
	new_role        text NOT NULL DEFAULT '',
	reason          text NOT NULL DEFAULT '',
	ip_address      text NOT NULL DEFAULT '',
	user_agent      text NOT NULL DEFAULT '',
	session_id      text NOT NULL DEFAULT ''
);
`

// ApplySchema creates every table this package's repositories depend on, if
// they do not already exist. Safe to call on every process start.
func ApplySchema(ctx context.Context, pool *Pool) error {
	_, err := pool.Raw().Exec(ctx, schema)
	return err
}
