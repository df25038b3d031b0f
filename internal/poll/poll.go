// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package poll runs the live-poll engine: launch, atomic single-vote,
// timed auto-close, and the final results read-model. The live
// descriptor, per-option counts, and voter set all live in the hot
// store; internal/store.PollRepository is the durable side each launch
// and close writes behind to.
package poll

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/cartographus/internal/apperr"
	"github.com/tomtom215/cartographus/internal/hotstore"
	"github.com/tomtom215/cartographus/internal/metrics"
	"github.com/tomtom215/cartographus/internal/models"
	"github.com/tomtom215/cartographus/internal/store"
)

// Broadcaster fans an envelope out to every socket registered under the
// given roles for eventID. Declared locally, same reasoning as
// internal/qa.Broadcaster: this package stays agnostic of the concrete
// broadcast Hub.
type Broadcaster interface {
	Broadcast(ctx context.Context, eventID string, roles []string, envelope any) error
}

// allRoles is the full broadcast registry set: poll state has no
// restricted audience, so launch/vote/close fan out to every role,
// including reports dashboards.
var allRoles = []string{"viewer", "moderator", "speaker", "reports"}

func liveKey(eventID string) string        { return "poll:live:" + eventID }
func votersSetKey(pollID string) string    { return "poll:voted:" + pollID }
func countKey(pollID string, i int) string { return fmt.Sprintf("poll:votes:%s:counts:%d", pollID, i) }

// liveDescriptor is the JSON blob stored at poll:live:{event_id}, matching
// original_source/app/services/poll_service.py's start_poll payload.
type liveDescriptor struct {
	PollID    string     `json:"poll_id"`
	EventID   string     `json:"event_id"`
	Question  string     `json:"question"`
	Options   []string   `json:"options"`
	CloseAt   *time.Time `json:"close_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// StartEnvelope is the outbound `poll_start` frame.
type StartEnvelope struct {
	Type string      `json:"type"`
	Poll pollPayload `json:"poll"`
}

type pollPayload struct {
	PollID   string     `json:"poll_id"`
	Question string     `json:"question"`
	Options  []string   `json:"options"`
	CloseAt  *time.Time `json:"close_at,omitempty"`
}

// ResultsEnvelope mirrors the shared shape of `poll_update_results` and
// the `final_results` payload inside `poll_end`.
type ResultsEnvelope struct {
	Type       string        `json:"type"`
	PollID     string        `json:"poll_id"`
	Results    map[int]int64 `json:"results"`
	TotalVotes int64         `json:"total_votes"`
}

// Engine coordinates the hot-store live state, the durable repository,
// and the per-event auto-close timer table.
type Engine struct {
	hot         *hotstore.Store
	polls       store.PollRepository
	broadcaster Broadcaster

	mu     sync.Mutex
	timers map[string]*time.Timer // eventID -> pending auto-close timer
}

// New constructs an Engine.
func New(hot *hotstore.Store, polls store.PollRepository, broadcaster Broadcaster) *Engine {
	return &Engine{
		hot:         hot,
		polls:       polls,
		broadcaster: broadcaster,
		timers:      make(map[string]*time.Timer),
	}
}

// Launch promotes a draft/published poll to live: installs the
// live:{event_id} descriptor, zeroes the counts, and schedules an
// auto-close timer when durationMinutes is set. Fails if a live poll
// already exists for the event.
func (e *Engine) Launch(ctx context.Context, eventID, pollID string, durationMinutes int) (*models.Poll, error) {
	if _, err := e.hot.Get(ctx, liveKey(eventID)); err == nil {
		return nil, apperr.State("poll.Launch", apperr.ErrInvalidTransition)
	} else if err != badger.ErrKeyNotFound {
		return nil, err
	}

	p, err := e.polls.GetByID(ctx, eventID, pollID)
	if err != nil {
		return nil, err
	}

	var closeAt *time.Time
	if durationMinutes > 0 {
		t := time.Now().Add(time.Duration(durationMinutes) * time.Minute)
		closeAt = &t
	}

	for i := range p.Options {
		if err := e.hot.Set(ctx, countKey(p.ID, i), []byte("0"), 0); err != nil {
			return nil, err
		}
	}

	desc := liveDescriptor{
		PollID: p.ID, EventID: eventID, Question: p.Question, Options: p.Options,
		CloseAt: closeAt, CreatedAt: time.Now(),
	}
	blob, err := json.Marshal(desc)
	if err != nil {
		return nil, apperr.Validation("poll.Launch", err)
	}
	if err := e.hot.Set(ctx, liveKey(eventID), blob, 0); err != nil {
		return nil, err
	}
	if err := e.polls.UpdateStatus(ctx, p.ID, models.PollStatusPublished); err != nil {
		return nil, apperr.DurableStore("poll.Launch", err)
	}
	p.Status = models.PollStatusPublished
	p.CloseAt = closeAt

	e.scheduleAutoClose(eventID, p.ID, closeAt)
	e.emit(ctx, eventID, allRoles, StartEnvelope{
		Type: "poll_start",
		Poll: pollPayload{PollID: p.ID, Question: p.Question, Options: p.Options, CloseAt: closeAt},
	})
	return p, nil
}

// StartAdHoc creates and immediately launches a poll from a raw
// question/options pair, the socket gateway's `poll_start` path when the
// caller sends question+options rather than a pre-created poll_id.
func (e *Engine) StartAdHoc(ctx context.Context, eventID, question string, options []string, durationMinutes int) (*models.Poll, error) {
	p, err := e.polls.Create(ctx, &models.Poll{ID: uuid.NewString(), EventID: eventID, Question: question, Options: options})
	if err != nil {
		return nil, err
	}
	return e.Launch(ctx, eventID, p.ID, durationMinutes)
}

// SendLiveState resends the event's current poll_start envelope to one
// reconnecting socket. Returns (false, nil) when no poll is currently live.
func (e *Engine) SendLiveState(ctx context.Context, eventID string, send func(envelope any) error) (bool, error) {
	desc, ok, err := e.loadLive(ctx, eventID)
	if err != nil || !ok {
		return false, err
	}
	return true, send(StartEnvelope{
		Type: "poll_start",
		Poll: pollPayload{PollID: desc.PollID, Question: desc.Question, Options: desc.Options, CloseAt: desc.CloseAt},
	})
}

// Vote casts a single ballot, guarded by an atomic check-then-increment
// run inside one Badger transaction so concurrent votes by the same user
// can never double-count.
func (e *Engine) Vote(ctx context.Context, eventID, userID string, optionIndex int) (*ResultsEnvelope, error) {
	desc, ok, err := e.loadLive(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.State("poll.Vote", apperr.ErrUnknownPoll)
	}
	if optionIndex < 0 || optionIndex >= len(desc.Options) {
		return nil, apperr.Validation("poll.Vote", apperr.ErrInvalidPayload)
	}
	if desc.CloseAt != nil && time.Now().After(*desc.CloseAt) {
		return nil, apperr.State("poll.Vote", apperr.ErrPollClosed)
	}

	accepted := false
	err = e.hot.Update(ctx, func(txn *badger.Txn) error {
		voterKey := []byte(votersSetKey(desc.PollID) + "\x00" + userID)
		if _, getErr := txn.Get(voterKey); getErr == nil {
			return nil // already voted; accepted stays false
		} else if getErr != badger.ErrKeyNotFound {
			return getErr
		}
		if err := txn.Set(voterKey, []byte{}); err != nil {
			return err
		}

		ck := []byte(countKey(desc.PollID, optionIndex))
		var cur int64
		item, getErr := txn.Get(ck)
		switch {
		case getErr == nil:
			if verr := item.Value(func(val []byte) error {
				_, scanErr := fmt.Sscanf(string(val), "%d", &cur)
				return scanErr
			}); verr != nil {
				return verr
			}
		case getErr == badger.ErrKeyNotFound:
			cur = 0
		default:
			return getErr
		}
		if err := txn.Set(ck, []byte(fmt.Sprintf("%d", cur+1))); err != nil {
			return err
		}
		accepted = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !accepted {
		return nil, apperr.State("poll.Vote", apperr.ErrAlreadyVoted)
	}

	// Best-effort durable audit row; the hot store's atomic voters set
	// above is the real gate against double-counting.
	_ = e.polls.RecordVote(ctx, &models.Vote{PollID: desc.PollID, EventID: eventID, UserID: userID, OptionIndex: optionIndex, CastAt: time.Now()})
	metrics.RecordPollVote(eventID)

	results, err := e.readCounts(ctx, desc.PollID, len(desc.Options))
	if err != nil {
		return nil, err
	}
	envelope := &ResultsEnvelope{Type: "poll_update_results", PollID: desc.PollID, Results: results.counts, TotalVotes: results.total}
	e.emit(ctx, eventID, allRoles, envelope)
	return envelope, nil
}

// Close snapshots the live poll's counts to the durable store, marks it
// closed, tears down the hot-store descriptor/counts/voters, and
// broadcasts poll_end. Cancels any pending auto-close timer for the
// event: replacing or cancelling a scheduled poll always cancels the
// prior timer.
func (e *Engine) Close(ctx context.Context, eventID string) (*ResultsEnvelope, error) {
	desc, ok, err := e.loadLive(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.State("poll.Close", apperr.ErrUnknownPoll)
	}
	e.cancelAutoClose(eventID)
	return e.close(ctx, eventID, desc)
}

func (e *Engine) close(ctx context.Context, eventID string, desc *liveDescriptor) (*ResultsEnvelope, error) {
	results, err := e.readCounts(ctx, desc.PollID, len(desc.Options))
	if err != nil {
		return nil, err
	}

	counts := make([]int64, len(desc.Options))
	for idx, c := range results.counts {
		if idx >= 0 && idx < len(counts) {
			counts[idx] = c
		}
	}
	if err := e.polls.FlushResults(ctx, desc.PollID, counts); err != nil {
		return nil, apperr.DurableStore("poll.Close", err)
	}

	_ = e.hot.Delete(ctx, liveKey(eventID))
	for i := range desc.Options {
		_ = e.hot.Delete(ctx, countKey(desc.PollID, i))
	}
	e.clearVoters(ctx, desc.PollID)

	envelope := &ResultsEnvelope{Type: "poll_end", PollID: desc.PollID, Results: results.counts, TotalVotes: results.total}
	e.emit(ctx, eventID, allRoles, envelope)
	return envelope, nil
}

// GetResults returns the closed-poll reporting read-model, the
// get_poll_results supplement from poll_service.py.
func (e *Engine) GetResults(ctx context.Context, pollID string) (*models.PollResults, error) {
	return e.polls.GetResults(ctx, pollID)
}

func (e *Engine) loadLive(ctx context.Context, eventID string) (*liveDescriptor, bool, error) {
	blob, err := e.hot.Get(ctx, liveKey(eventID))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, false, nil
		}
		return nil, false, err
	}
	var desc liveDescriptor
	if err := json.Unmarshal(blob, &desc); err != nil {
		return nil, false, apperr.Validation("poll.loadLive", err)
	}
	return &desc, true, nil
}

type countResults struct {
	counts map[int]int64
	total  int64
}

func (e *Engine) readCounts(ctx context.Context, pollID string, numOptions int) (countResults, error) {
	out := countResults{counts: make(map[int]int64, numOptions)}
	for i := 0; i < numOptions; i++ {
		blob, err := e.hot.Get(ctx, countKey(pollID, i))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				out.counts[i] = 0
				continue
			}
			return out, err
		}
		var v int64
		if _, err := fmt.Sscanf(string(blob), "%d", &v); err != nil {
			return out, apperr.Validation("poll.readCounts", err)
		}
		out.counts[i] = v
		out.total += v
	}
	return out, nil
}

func (e *Engine) clearVoters(ctx context.Context, pollID string) {
	_ = e.hot.Update(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(votersSetKey(pollID) + "\x00")
		var stale [][]byte
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			stale = append(stale, it.Item().KeyCopy(nil))
		}
		for _, k := range stale {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// scheduleAutoClose arms a per-event close timer, replacing (and
// cancelling) any timer already armed for the event. A nil closeAt arms
// nothing.
func (e *Engine) scheduleAutoClose(eventID, pollID string, closeAt *time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if prior, ok := e.timers[eventID]; ok {
		prior.Stop()
		delete(e.timers, eventID)
	}
	if closeAt == nil {
		return
	}
	delay := time.Until(*closeAt)
	if delay < 0 {
		delay = 0
	}
	e.timers[eventID] = time.AfterFunc(delay, func() {
		e.fireAutoClose(eventID, pollID)
	})
}

func (e *Engine) cancelAutoClose(eventID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if t, ok := e.timers[eventID]; ok {
		t.Stop()
		delete(e.timers, eventID)
	}
}

// fireAutoClose runs when a scheduled timer expires. It only closes the
// poll if the live descriptor still references the same poll_id a
// manual close or a replacement launch may have already superseded it:
// if the poll has been manually closed or replaced, the timer does
// nothing.
func (e *Engine) fireAutoClose(eventID, pollID string) {
	e.mu.Lock()
	delete(e.timers, eventID)
	e.mu.Unlock()

	ctx := context.Background()
	desc, ok, err := e.loadLive(ctx, eventID)
	if err != nil || !ok || desc.PollID != pollID {
		return
	}
	_, _ = e.close(ctx, eventID, desc)
}

func (e *Engine) emit(ctx context.Context, eventID string, roles []string, envelope any) {
	if e.broadcaster == nil {
		return
	}
	_ = e.broadcaster.Broadcast(ctx, eventID, roles, envelope)
}
