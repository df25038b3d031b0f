// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

/*
Package models defines the data structures shared across the live-event
platform: events and their registration rules, per-event staff and
session principals, Q&A questions, polls and their derived live state,
and chat messages. It is the single source of truth for the shapes
internal/store persists and internal/broadcast serializes onto the wire.

Key Components:

  - Event: a scheduled broadcast with registration/access rules
  - EventStaff: the authoritative per-event role assignment
  - Question: one row of the Q&A pending/approved/read state machine
  - Poll / LivePoll / Vote: poll lifecycle and hot-side tally state
  - ChatMessage: one persisted chat line

See Also:

  - internal/store: repositories persisting these models
  - internal/qa, internal/poll, internal/presence: the state machines
    that mutate them
  - internal/broadcast: the fan-out fabric that serializes them onto
    outbound envelopes
*/
package models
