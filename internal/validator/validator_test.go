// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package validator

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/cartographus/internal/apperr"
	"github.com/tomtom215/cartographus/internal/hotstore"
)

func newTestValidator(t *testing.T) *Validator {
	t.Helper()
	store, err := hotstore.Open(hotstore.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return New(store)
}

func TestValidator_RejectsTooLong(t *testing.T) {
	v := newTestValidator(t)
	err := v.Check(context.Background(), KindChat, "evt-1", "user-1", strings.Repeat("a", MessageMaxLength+1))
	require.ErrorIs(t, err, apperr.ErrMessageTooLong)
}

func TestValidator_ThrottlesSecondMessage(t *testing.T) {
	v := newTestValidator(t)
	ctx := context.Background()

	require.NoError(t, v.Check(ctx, KindChat, "evt-1", "user-1", "hello"))
	err := v.Check(ctx, KindChat, "evt-1", "user-1", "hello again")
	require.ErrorIs(t, err, apperr.ErrThrottled)
}

func TestValidator_DifferentUsersNotThrottledTogether(t *testing.T) {
	v := newTestValidator(t)
	ctx := context.Background()

	require.NoError(t, v.Check(ctx, KindChat, "evt-1", "user-1", "hello"))
	require.NoError(t, v.Check(ctx, KindChat, "evt-1", "user-2", "hello"))
}

func TestValidator_DuplicateStormDetection(t *testing.T) {
	v := newTestValidator(t)
	ctx := context.Background()

	// Distinct userIDs so the per-user throttle never interferes with the
	// content-keyed duplicate counter: the first DuplicateThreshold (500)
	// occurrences of the same message are accepted, and only the 501st
	// onward is rejected.
	for i := 0; i < DuplicateThreshold; i++ {
		userID := fmt.Sprintf("user-spam-%d", i)
		require.NoError(t, v.Check(ctx, KindChat, "evt-storm", userID, "SAME MESSAGE"))
	}
	err := v.Check(ctx, KindChat, "evt-storm", "user-final", "same   MESSAGE")
	require.ErrorIs(t, err, apperr.ErrDuplicateStorm)
}

func TestNormalize_StripsDiacriticsAndCollapsesWhitespace(t *testing.T) {
	assert.Equal(t, "hola como estas", normalize("  Hóla   Cómo  Estás "))
}
