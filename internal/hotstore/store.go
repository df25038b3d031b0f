// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package hotstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/cartographus/internal/apperr"
)

// Config controls the embedded Badger instance backing the store.
type Config struct {
	// Dir is the Badger data directory. Empty means in-memory-only
	// (badger.DefaultOptions("").WithInMemory(true)), the mode every
	// package-level _test.go file in this module uses.
	Dir string
}

// DefaultConfig returns an in-memory configuration, suitable for tests and
// for a single-instance deployment that does not need durability across
// restarts (the durable side of this domain lives in internal/store).
func DefaultConfig() Config {
	return Config{Dir: ""}
}

// Store is the shared hot-path key/value store: TTL-aware KV, a sorted-set
// emulation over score-prefixed keys, set-if-absent, and atomic
// transactions, all wrapped in a circuit breaker so a run of Badger errors
// degrades callers rather than cascading.
type Store struct {
	db      *badger.DB
	breaker *gobreaker.CircuitBreaker[any]
}

// Open opens (or creates) the Badger instance described by cfg.
func Open(cfg Config) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Dir).WithLogger(nil)
	if cfg.Dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	breaker := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "hot-store",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Store{db: db, breaker: breaker}, nil
}

// Close releases the underlying Badger instance.
func (s *Store) Close() error {
	return s.db.Close()
}

func withBreaker[T any](s *Store, op string, fn func() (T, error)) (T, error) {
	var zero T
	result, err := s.breaker.Execute(func() (any, error) {
		v, ferr := fn()
		if ferr != nil {
			return zero, ferr
		}
		return v, nil
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return zero, err
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, apperr.TransientStore(op, apperr.ErrHotStoreUnavailable)
		}
		return zero, apperr.TransientStore(op, err)
	}
	return result.(T), nil
}

// Get returns the raw value stored at key, or badger.ErrKeyNotFound.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	return withBreaker(s, "hotstore.Get", func() ([]byte, error) {
		var out []byte
		err := s.db.View(func(txn *badger.Txn) error {
			item, err := txn.Get([]byte(key))
			if err != nil {
				return err
			}
			return item.Value(func(val []byte) error {
				out = append([]byte(nil), val...)
				return nil
			})
		})
		return out, err
	})
}

// Set writes value at key with an optional TTL (zero means no expiry).
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := withBreaker(s, "hotstore.Set", func() (struct{}, error) {
		return struct{}{}, s.db.Update(func(txn *badger.Txn) error {
			entry := badger.NewEntry([]byte(key), value)
			if ttl > 0 {
				entry = entry.WithTTL(ttl)
			}
			return txn.SetEntry(entry)
		})
	})
	return err
}

// SetNX is the Go analogue of Redis SETNX: it writes value at key only if
// key does not already hold a live value, returning true if the write
// happened. Used for per-user send throttles and duplicate-storm
// fingerprints, which must never be a client-side check-then-act.
func (s *Store) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	return withBreaker(s, "hotstore.SetNX", func() (bool, error) {
		var wrote bool
		err := s.db.Update(func(txn *badger.Txn) error {
			_, err := txn.Get([]byte(key))
			if err == nil {
				return nil // already present; wrote stays false
			}
			if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			entry := badger.NewEntry([]byte(key), value)
			if ttl > 0 {
				entry = entry.WithTTL(ttl)
			}
			if err := txn.SetEntry(entry); err != nil {
				return err
			}
			wrote = true
			return nil
		})
		return wrote, err
	})
}

// Delete removes key. Deleting an absent key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := withBreaker(s, "hotstore.Delete", func() (struct{}, error) {
		return struct{}{}, s.db.Update(func(txn *badger.Txn) error {
			err := txn.Delete([]byte(key))
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		})
	})
	return err
}

// IncrExpire atomically increments the integer counter at key and, on the
// first increment, sets ttl. Used for the validator's duplicate-storm
// fingerprint counter (INCR+EXPIRE semantics from the Python reference
// implementation's message_validation_service).
func (s *Store) IncrExpire(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	return withBreaker(s, "hotstore.IncrExpire", func() (int64, error) {
		var next int64
		err := s.db.Update(func(txn *badger.Txn) error {
			item, err := txn.Get([]byte(key))
			var cur int64
			switch {
			case err == nil:
				if verr := item.Value(func(val []byte) error {
					cur, err = strconv.ParseInt(string(val), 10, 64)
					return err
				}); verr != nil {
					return verr
				}
			case errors.Is(err, badger.ErrKeyNotFound):
				cur = 0
			default:
				return err
			}
			next = cur + 1
			entry := badger.NewEntry([]byte(key), []byte(strconv.FormatInt(next, 10)))
			if cur == 0 && ttl > 0 {
				entry = entry.WithTTL(ttl)
			}
			return txn.SetEntry(entry)
		})
		return next, err
	})
}

// Update runs fn inside a single Badger transaction, committing on success
// and aborting on error. This is the atomic read-modify-write primitive
// vote casting and throttle checks need: the whole check-then-act
// sequence happens behind one ACID boundary, the Go analogue of a Redis
// Lua script.
func (s *Store) Update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	_, err := withBreaker(s, "hotstore.Update", func() (struct{}, error) {
		return struct{}{}, s.db.Update(fn)
	})
	return err
}

// View runs fn inside a single read-only Badger transaction.
func (s *Store) View(ctx context.Context, fn func(txn *badger.Txn) error) error {
	_, err := withBreaker(s, "hotstore.View", func() (struct{}, error) {
		return struct{}{}, s.db.View(fn)
	})
	return err
}

// --- sorted-set emulation -------------------------------------------------
//
// A sorted set member is stored under key "{setKey}\x00{scorePadded}\x00{member}"
// so that a prefix scan over "{setKey}\x00" yields entries in score order.
// Score is formatted as a fixed-width, zero-padded decimal so lexicographic
// byte order matches numeric order for non-negative scores such as unix
// timestamps.

const scoreWidth = 20 // enough digits for any unix timestamp, zero-padded

func scoreKey(setKey, member string, score int64) []byte {
	return []byte(fmt.Sprintf("%s\x00%0*d\x00%s", setKey, scoreWidth, score, member))
}

func setPrefix(setKey string) []byte {
	return []byte(setKey + "\x00")
}

// ZAdd adds or updates member in the sorted set named setKey with the given
// score. A prior entry for member at a different score is removed first, so
// a member has at most one score (matches Redis ZADD semantics).
func (s *Store) ZAdd(ctx context.Context, setKey, member string, score int64) error {
	_, err := withBreaker(s, "hotstore.ZAdd", func() (struct{}, error) {
		return struct{}{}, s.db.Update(func(txn *badger.Txn) error {
			if err := removeMember(txn, setKey, member); err != nil {
				return err
			}
			return txn.Set(scoreKey(setKey, member, score), []byte{})
		})
	})
	return err
}

// ZRem removes member from the sorted set named setKey regardless of its
// current score.
func (s *Store) ZRem(ctx context.Context, setKey, member string) error {
	_, err := withBreaker(s, "hotstore.ZRem", func() (struct{}, error) {
		return struct{}{}, s.db.Update(func(txn *badger.Txn) error {
			return removeMember(txn, setKey, member)
		})
	})
	return err
}

func removeMember(txn *badger.Txn, setKey, member string) error {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	prefix := setPrefix(setKey)
	suffix := []byte("\x00" + member)
	var stale [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		k := it.Item().KeyCopy(nil)
		if strings.HasSuffix(string(k), string(suffix)) {
			stale = append(stale, k)
		}
	}
	for _, k := range stale {
		if err := txn.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

// ZRemRangeByScore removes every member of setKey whose score falls in
// [min, max] inclusive. Used by presence to evict stale pings older than
// the activity window.
func (s *Store) ZRemRangeByScore(ctx context.Context, setKey string, min, max int64) (int, error) {
	return withBreaker(s, "hotstore.ZRemRangeByScore", func() (int, error) {
		removed := 0
		err := s.db.Update(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.PrefetchValues = false
			it := txn.NewIterator(opts)
			defer it.Close()

			prefix := setPrefix(setKey)
			var stale [][]byte
			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				k := it.Item().KeyCopy(nil)
				score, ok := parseScore(k, setKey)
				if !ok {
					continue
				}
				if score >= min && score <= max {
					stale = append(stale, k)
				}
			}
			for _, k := range stale {
				if err := txn.Delete(k); err != nil {
					return err
				}
				removed++
			}
			return nil
		})
		return removed, err
	})
}

// Member is one (member, score) pair returned by ZRange.
type Member struct {
	Value string
	Score int64
}

// ZRange returns every member of setKey with score in [min, max], ordered
// by ascending score.
func (s *Store) ZRange(ctx context.Context, setKey string, min, max int64) ([]Member, error) {
	return withBreaker(s, "hotstore.ZRange", func() ([]Member, error) {
		var members []Member
		err := s.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.PrefetchValues = false
			it := txn.NewIterator(opts)
			defer it.Close()

			prefix := setPrefix(setKey)
			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				k := it.Item().KeyCopy(nil)
				score, ok := parseScore(k, setKey)
				if !ok {
					continue
				}
				if score < min || score > max {
					continue
				}
				parts := strings.SplitN(string(k), "\x00", 3)
				if len(parts) != 3 {
					continue
				}
				members = append(members, Member{Value: parts[2], Score: score})
			}
			return nil
		})
		sort.Slice(members, func(i, j int) bool { return members[i].Score < members[j].Score })
		return members, err
	})
}

// ZCard returns the number of members currently in setKey.
func (s *Store) ZCard(ctx context.Context, setKey string) (int, error) {
	return withBreaker(s, "hotstore.ZCard", func() (int, error) {
		count := 0
		err := s.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.PrefetchValues = false
			it := txn.NewIterator(opts)
			defer it.Close()

			prefix := setPrefix(setKey)
			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				count++
			}
			return nil
		})
		return count, err
	})
}

func parseScore(key []byte, setKey string) (int64, bool) {
	s := string(key)
	prefix := setKey + "\x00"
	if !strings.HasPrefix(s, prefix) {
		return 0, false
	}
	rest := s[len(prefix):]
	if len(rest) < scoreWidth {
		return 0, false
	}
	score, err := strconv.ParseInt(rest[:scoreWidth], 10, 64)
	if err != nil {
		return 0, false
	}
	return score, true
}
