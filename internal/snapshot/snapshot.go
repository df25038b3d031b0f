// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package snapshot computes the reports dashboard's derived views —
// active sessions, metrics, and engagement charts — and broadcasts them
// to the reports (and, for active sessions, moderator) role group. It
// runs both on a periodic tick and on explicit triggers from the
// chat/Q&A/poll/presence components.
package snapshot

import (
	"context"
	"time"

	"github.com/tomtom215/cartographus/internal/cache"
	"github.com/tomtom215/cartographus/internal/logging"
	"github.com/tomtom215/cartographus/internal/metrics"
	"github.com/tomtom215/cartographus/internal/presence"
)

// Broadcast role groups snapshot envelopes are routed to, mirroring
// internal/gateway's RoleModerator/RoleReports string values without
// importing that package (which would create an import cycle, since
// Gateway depends on this package's Publisher through the locally
// declared Snapshotter interface).
const (
	roleModerator = "moderator"
	roleReports   = "reports"
)

// Config tunes the publisher's tick cadence, result memoization, and
// chart window, all defaulted in DefaultConfig.
type Config struct {
	TickInterval time.Duration
	CacheTTL     time.Duration
	ChartWindow  time.Duration
	ChartBuckets int
}

// DefaultConfig returns sensible defaults: a 5s tick, a 5s
// result-memoization TTL, and a 60-minute chart window in 5-minute
// buckets (12 buckets).
func DefaultConfig() Config {
	return Config{
		TickInterval: 5 * time.Second,
		CacheTTL:     5 * time.Second,
		ChartWindow:  60 * time.Minute,
		ChartBuckets: 12,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.TickInterval <= 0 {
		c.TickInterval = d.TickInterval
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = d.CacheTTL
	}
	if c.ChartWindow <= 0 {
		c.ChartWindow = d.ChartWindow
	}
	if c.ChartBuckets <= 0 {
		c.ChartBuckets = d.ChartBuckets
	}
	return c
}

// PresenceSource is the subset of internal/presence.Tracker the publisher
// needs: the live session join for "Active sessions", the live count for
// "Metrics", and the active-participant chart series.
type PresenceSource interface {
	LiveCount(ctx context.Context, eventID string) (int, error)
	ListLiveDetails(ctx context.Context, eventID string) ([]*presence.LiveDetail, error)
	ActiveParticipantSeries(eventID string) []int64
}

// QuestionSource is the subset of internal/qa.Pipeline the publisher
// needs for the "Question status" view.
type QuestionSource interface {
	CountByStatus(ctx context.Context, eventID string) (pending, approved, read int, err error)
}

// RegisteredUserSource resolves the durable registered-viewer metrics.
// Implemented by internal/store.SessionAnalyticsRepository.
type RegisteredUserSource interface {
	CountDistinctUsers(ctx context.Context, eventID string) (int, error)
	SumTotalMinutes(ctx context.Context, eventID string) (int64, error)
}

// Broadcaster fans an envelope out to every socket registered under roles
// for eventID. Same shape as internal/qa.Broadcaster and
// internal/poll.Broadcaster, so this package has no direct dependency on
// internal/broadcast's concrete Hub type.
type Broadcaster interface {
	Broadcast(ctx context.Context, eventID string, roles []string, envelope any) error
}

// Registry derives which events currently have at least one registered
// socket on this instance, so the periodic tick never enumerates every
// event globally. Implemented by internal/gateway.Gateway.
type Registry interface {
	RegisteredEvents() []string
}

// Publisher computes and broadcasts the derived views: active session
// counts, moderator/reports metrics, and retention chart series.
type Publisher struct {
	cfg Config

	registry    Registry
	presence    PresenceSource
	questions   QuestionSource
	registered  RegisteredUserSource
	broadcaster Broadcaster

	results *cache.Cache

	chatSeries     *cache.SlidingWindowStore
	questionSeries *cache.SlidingWindowStore
	retentionSum   *cache.SlidingWindowStore
	retentionTicks *cache.SlidingWindowStore
}

// New constructs a Publisher. Any dependency may be nil, in which case
// the view(s) it backs degrade to their zero value rather than failing
// the whole snapshot — a misconfigured deployment loses one dashboard
// panel, not the reports socket.
func New(cfg Config, registry Registry, presenceSrc PresenceSource, questions QuestionSource, registered RegisteredUserSource, broadcaster Broadcaster) *Publisher {
	cfg = cfg.withDefaults()
	return &Publisher{
		cfg:            cfg,
		registry:       registry,
		presence:       presenceSrc,
		questions:      questions,
		registered:     registered,
		broadcaster:    broadcaster,
		results:        cache.New(cfg.CacheTTL),
		chatSeries:     cache.NewSlidingWindowStore(cfg.ChartWindow, cfg.ChartBuckets, 0),
		questionSeries: cache.NewSlidingWindowStore(cfg.ChartWindow, cfg.ChartBuckets, 0),
		retentionSum:   cache.NewSlidingWindowStore(cfg.ChartWindow, cfg.ChartBuckets, 0),
		retentionTicks: cache.NewSlidingWindowStore(cfg.ChartWindow, cfg.ChartBuckets, 0),
	}
}

// RecordChat feeds the engagement chart's chat-count series. Called by
// internal/gateway.Gateway.handleChat the moment a chat message is
// persisted.
func (p *Publisher) RecordChat(eventID string) {
	p.chatSeries.Increment(eventID)
}

// RecordQuestion feeds the engagement chart's question-count series.
// Called by internal/gateway.Gateway.handleAsk the moment a question is
// added.
func (p *Publisher) RecordQuestion(eventID string) {
	p.questionSeries.Increment(eventID)
}

// TriggerRefresh implements internal/gateway.Snapshotter: an explicit,
// out-of-band recompute request from a state change (join, leave,
// approve, vote close, ...). Runs asynchronously since snapshot
// computation is a suspension point the caller's reactor task should not
// block on.
func (p *Publisher) TriggerRefresh(eventID string) {
	go p.refreshAndBroadcast(context.Background(), eventID, false)
}

// Serve runs the periodic tick loop until ctx is canceled, implementing
// the services.Runnable interface services.TickerService wraps.
func (p *Publisher) Serve(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

// tick recomputes every event with at least one registered socket on
// this instance; it never enumerates events with no live sockets.
func (p *Publisher) tick(ctx context.Context) {
	if p.registry == nil {
		return
	}
	for _, eventID := range p.registry.RegisteredEvents() {
		p.refreshAndBroadcast(ctx, eventID, true)
	}
}

// bundle is the full memoized result for one event: the three outbound
// envelopes, cached together so a burst of triggers within CacheTTL
// re-broadcasts the same computed bundle instead of recomputing it.
type bundle struct {
	sessions ActiveSessionsEnvelope
	metrics  ReportsMetricsEnvelope
	charts   ReportsChartsEnvelope
}

func (p *Publisher) refreshAndBroadcast(ctx context.Context, eventID string, sampleRetention bool) {
	if sampleRetention {
		p.sampleRetention(ctx, eventID)
	}

	b, err := p.computeBundle(ctx, eventID)
	if err != nil {
		logging.Warn().Err(err).Str("event_id", eventID).Msg("snapshot: compute failed")
		return
	}
	if p.broadcaster == nil {
		return
	}
	_ = p.broadcaster.Broadcast(ctx, eventID, []string{roleReports, roleModerator}, b.sessions)
	_ = p.broadcaster.Broadcast(ctx, eventID, []string{roleReports}, b.metrics)
	_ = p.broadcaster.Broadcast(ctx, eventID, []string{roleReports}, b.charts)
}

func (p *Publisher) computeBundle(ctx context.Context, eventID string) (bundle, error) {
	cacheKey := cache.GenerateKey("snapshot.bundle", eventID)
	if cached, ok := p.results.Get(cacheKey); ok {
		return cached.(bundle), nil
	}

	start := time.Now()
	b := bundle{
		sessions: p.activeSessionsEnvelope(ctx, eventID),
		metrics:  p.metricsEnvelope(ctx, eventID),
		charts:   p.chartsEnvelope(eventID),
	}
	metrics.RecordSnapshotCompute(time.Since(start))
	p.results.Set(cacheKey, b)
	return b, nil
}

func (p *Publisher) activeSessionsEnvelope(ctx context.Context, eventID string) ActiveSessionsEnvelope {
	env := ActiveSessionsEnvelope{Type: "active_sessions"}
	if p.presence == nil {
		return env
	}
	details, err := p.presence.ListLiveDetails(ctx, eventID)
	if err != nil {
		logging.Warn().Err(err).Str("event_id", eventID).Msg("snapshot: list live details failed")
		return env
	}
	env.Sessions = make([]SessionView, 0, len(details))
	for _, d := range details {
		env.Sessions = append(env.Sessions, SessionView{
			UserID:         d.UserID,
			Name:           d.Name,
			StartTime:      d.StartTime.Format(time.RFC3339),
			LastPing:       d.LastPing.Format(time.RFC3339),
			SessionMinutes: d.TotalMinutes,
			ChatBlocked:    d.ChatBlocked,
			QABlocked:      d.QABlocked,
			Banned:         d.Banned,
		})
	}
	return env
}

func (p *Publisher) metricsEnvelope(ctx context.Context, eventID string) ReportsMetricsEnvelope {
	env := ReportsMetricsEnvelope{Type: "reports_metrics"}
	if p.presence != nil {
		if live, err := p.presence.LiveCount(ctx, eventID); err == nil {
			env.LiveWatchersCount = live
		} else {
			logging.Warn().Err(err).Str("event_id", eventID).Msg("snapshot: live count failed")
		}
	}
	if p.registered != nil {
		if count, err := p.registered.CountDistinctUsers(ctx, eventID); err == nil {
			env.TotalRegisteredUsers = count
		} else {
			logging.Warn().Err(err).Str("event_id", eventID).Msg("snapshot: count distinct users failed")
		}
		if minutes, err := p.registered.SumTotalMinutes(ctx, eventID); err == nil {
			env.TotalMinutesConsumed = minutes
		} else {
			logging.Warn().Err(err).Str("event_id", eventID).Msg("snapshot: sum total minutes failed")
		}
	}
	return env
}

// sampleRetention records one tick's worth of "avg session minutes"
// toward the retention series: the sum of currently-live viewers' total
// minutes and a sample count, later divided bucket-by-bucket in
// chartsEnvelope. Only sampled on the periodic tick, not on explicit
// triggers, so the series reflects a steady cadence rather than being
// skewed by bursty chat/Q&A activity — grounded on
// original_source/app/services/analytics_service.py's AVG(total_minutes)
// GROUP BY bucket query, reshaped for an in-memory sliding window.
func (p *Publisher) sampleRetention(ctx context.Context, eventID string) {
	if p.presence == nil {
		return
	}
	details, err := p.presence.ListLiveDetails(ctx, eventID)
	if err != nil || len(details) == 0 {
		return
	}
	var sum int64
	for _, d := range details {
		sum += d.TotalMinutes
	}
	p.retentionSum.IncrementBy(eventID, sum)
	p.retentionTicks.Increment(eventID)
}

func (p *Publisher) chartsEnvelope(eventID string) ReportsChartsEnvelope {
	labels := bucketLabels(p.cfg.ChartWindow, p.cfg.ChartBuckets)

	pending, approved, read := 0, 0, 0
	if p.questions != nil {
		var err error
		pending, approved, read, err = p.questions.CountByStatus(context.Background(), eventID)
		if err != nil {
			logging.Warn().Err(err).Str("event_id", eventID).Msg("snapshot: count by status failed")
		}
	}

	var activeSeries []int64
	if p.presence != nil {
		activeSeries = p.presence.ActiveParticipantSeries(eventID)
	}

	return ReportsChartsEnvelope{
		Type:               "reports_charts",
		ActiveParticipants: Series{Labels: labels, Series: padSeries(activeSeries, p.cfg.ChartBuckets)},
		Engagement: EngagementSeries{
			Labels:    labels,
			Chat:      padSeries(p.chatSeries.BucketCounts(eventID), p.cfg.ChartBuckets),
			Questions: padSeries(p.questionSeries.BucketCounts(eventID), p.cfg.ChartBuckets),
		},
		QuestionStatus: Series{
			Labels: []string{"pending", "approved", "rejected", "read"},
			// Rejected questions are deleted outright rather than
			// tombstoned (internal/store.QuestionRepository.Reject), the
			// same behavior the reference implementation's own
			// delete-on-reject produces, so this bucket is always zero.
			Series: []int64{int64(pending), int64(approved), 0, int64(read)},
		},
		Retention: Series{Labels: labels, Series: p.retentionSeries(eventID)},
	}
}

func (p *Publisher) retentionSeries(eventID string) []int64 {
	sums := p.retentionSum.BucketCounts(eventID)
	ticks := p.retentionTicks.BucketCounts(eventID)
	out := make([]int64, p.cfg.ChartBuckets)
	for i := 0; i < p.cfg.ChartBuckets && i < len(sums) && i < len(ticks); i++ {
		if ticks[i] > 0 {
			out[i] = sums[i] / ticks[i]
		}
	}
	return out
}

// padSeries normalizes series to exactly n entries, oldest to newest,
// since a key with no counter yet (BucketCounts returning nil) still
// needs a zero-filled series for the chart's label alignment.
func padSeries(series []int64, n int) []int64 {
	out := make([]int64, n)
	copy(out, series)
	return out
}

// bucketLabels returns n labels spaced window/n apart, oldest to newest,
// each the clock time its bucket ends at — the reference
// implementation's _build_time_labels shape.
func bucketLabels(window time.Duration, n int) []string {
	if n <= 0 {
		return nil
	}
	bucketSize := window / time.Duration(n)
	now := time.Now()
	labels := make([]string, n)
	for i := 0; i < n; i++ {
		t := now.Add(-window + time.Duration(i+1)*bucketSize)
		labels[i] = t.Format("15:04")
	}
	return labels
}
