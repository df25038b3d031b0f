// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package store is the durable relational persistence layer: questions,
// chat history, vote audit, per-event role assignments, and the
// analytics writeback path, all backed by PostgreSQL via
// github.com/jackc/pgx/v5. The hot, low-latency path (sessions, presence,
// live poll counts, throttle keys) lives in internal/hotstore instead;
// store is the "eventually, durably" side of every write.
//
// Writes that do not need to complete before a socket gets its response
// (chat history, analytics rows) go through the WriteBehindQueue rather
// than blocking the caller on a round trip to Postgres.
package store
