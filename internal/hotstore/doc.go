// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package hotstore is the shared low-latency shared-state abstraction used
// by presence, validator, and poll: an opaque TTL-aware key/value
// store, a sorted-set emulation (score-prefixed keys plus a range scan), a
// set-if-absent primitive, and an atomic read-modify-write transaction.
//
// It is backed by an embedded dgraph-io/badger/v4 instance rather than a
// separate Redis process, following the same embedded-KV idiom
// internal/auth's BadgerSessionStore already uses for durable session
// storage. Every round trip is wrapped in a circuit breaker so a run of
// store errors degrades callers to their in-memory fallback instead of
// cascading into socket-handling goroutines.
package hotstore
