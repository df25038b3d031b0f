// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

/*
Package cache provides thread-safe in-memory caching with TTL support,
plus a sliding-window counter for sliding-time-window metrics.

# Overview

Two independent building blocks:

  - Cache: a simple TTL-expiring key/value store. Used by the snapshot
    publisher to memoize a per-event derived-view bundle for a short
    window (default 5s) so bursty triggers don't recompute on every
    mutation.
  - SlidingWindowCounter: a bucketed counter over a rolling time window.
    Used to derive engagement chart series (active participants, chat
    count, question count) without a database query per tick.

# Usage Example

	c := cache.New(5 * time.Second)
	c.Set("snapshot:event:42", bundle)
	if cached, ok := c.Get("snapshot:event:42"); ok {
	    bundle := cached.(Bundle)
	}

	counter := cache.NewSlidingWindowCounter(60*time.Minute, 12)
	counter.IncrementOne()
	total := counter.Count()

# Thread Safety

Both types are safe for concurrent use via sync.Mutex/sync.RWMutex.
*/
package cache
