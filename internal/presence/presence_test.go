// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package presence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/cartographus/internal/hotstore"
)

type recordingWriter struct {
	calls []string
}

func (w *recordingWriter) RecordPing(ctx context.Context, eventID, userID string) error {
	w.calls = append(w.calls, eventID+":"+userID)
	return nil
}

func newTestTracker(t *testing.T, writer Writer) *Tracker {
	t.Helper()
	store, err := hotstore.Open(hotstore.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return New(store, writer)
}

func TestTracker_MarkLiveThenListLive(t *testing.T) {
	tr := newTestTracker(t, nil)
	ctx := context.Background()

	require.NoError(t, tr.MarkLive(ctx, "evt-1", "user-a"))
	require.NoError(t, tr.MarkLive(ctx, "evt-1", "user-b"))

	users, err := tr.ListLive(ctx, "evt-1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"user-a", "user-b"}, users)

	count, err := tr.LiveCount(ctx, "evt-1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestTracker_MarkInactiveRemovesUser(t *testing.T) {
	tr := newTestTracker(t, nil)
	ctx := context.Background()

	require.NoError(t, tr.MarkLive(ctx, "evt-1", "user-a"))
	require.NoError(t, tr.MarkInactive(ctx, "evt-1", "user-a"))

	count, err := tr.LiveCount(ctx, "evt-1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestTracker_RecordPingWritesBackOncePerInterval(t *testing.T) {
	writer := &recordingWriter{}
	tr := newTestTracker(t, writer)
	ctx := context.Background()

	require.NoError(t, tr.RecordPing(ctx, "evt-1", "user-a"))
	require.NoError(t, tr.RecordPing(ctx, "evt-1", "user-a"))

	assert.Len(t, writer.calls, 1)
}

func TestTracker_RecordPingWithNilWriterDoesNotPanic(t *testing.T) {
	tr := newTestTracker(t, nil)
	require.NoError(t, tr.RecordPing(context.Background(), "evt-1", "user-a"))
}

type stubDetailsSource struct {
	rows map[string]*DetailRow
}

func (s *stubDetailsSource) ListActiveSessions(ctx context.Context, eventID string, userIDs []string) ([]*DetailRow, error) {
	var out []*DetailRow
	for _, id := range userIDs {
		if row, ok := s.rows[id]; ok {
			out = append(out, row)
		}
	}
	return out, nil
}

func TestTracker_ListLiveDetailsWithNoSourceReturnsNil(t *testing.T) {
	tr := newTestTracker(t, nil)
	details, err := tr.ListLiveDetails(context.Background(), "evt-1")
	require.NoError(t, err)
	assert.Nil(t, details)
}

func TestTracker_ListLiveDetailsJoinsHotAndDurable(t *testing.T) {
	source := &stubDetailsSource{rows: map[string]*DetailRow{
		"user-a": {UserID: "user-a", Name: "Alice", TotalMinutes: 5},
	}}
	tr := newTestTracker(t, nil).WithDetailsSource(source)
	ctx := context.Background()

	require.NoError(t, tr.MarkLive(ctx, "evt-1", "user-a"))

	details, err := tr.ListLiveDetails(ctx, "evt-1")
	require.NoError(t, err)
	require.Len(t, details, 1)
	assert.Equal(t, "Alice", details[0].Name)
	assert.Equal(t, int64(5), details[0].TotalMinutes)
	assert.WithinDuration(t, time.Now(), details[0].LastPing, 5*time.Second)
}
