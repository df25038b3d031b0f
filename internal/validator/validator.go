// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package validator checks inbound chat and Q&A messages against the
// length, per-user throttle, and duplicate-storm-fingerprint rules, backed
// by internal/hotstore for the throttle and duplicate-counter keys. When
// the hot store is unreachable it degrades to an in-memory rate limiter
// rather than rejecting every message outright.
package validator

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode"

	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/time/rate"

	"github.com/tomtom215/cartographus/internal/apperr"
	"github.com/tomtom215/cartographus/internal/hotstore"
	"github.com/tomtom215/cartographus/internal/metrics"
)

// Kind distinguishes chat from Q&A messages; each gets its own throttle
// and duplicate-fingerprint key namespace, mirroring the Python reference
// implementation's `message_type` parameter.
type Kind string

const (
	KindChat Kind = "chat"
	KindQA   Kind = "qa"
)

const (
	MessageMaxLength       = 200
	ThrottleWindow         = 3 * time.Second
	DuplicateWindow        = 20 * time.Second
	DuplicateThreshold     = 500
	fallbackLimiterRate    = rate.Limit(1.0 / 3.0) // one message per throttle window
	fallbackLimiterBurst   = 1
)

var whitespaceRE = regexp.MustCompile(`\s+`)

// Validator enforces length, throttle, and duplicate-storm rules for a
// single sender/event/message-kind triple.
type Validator struct {
	store *hotstore.Store

	mu       sync.Mutex
	fallback map[string]*rate.Limiter
}

// New constructs a Validator backed by store.
func New(store *hotstore.Store) *Validator {
	return &Validator{
		store:    store,
		fallback: make(map[string]*rate.Limiter),
	}
}

// Check validates text for a sender in the context of event/kind. It
// returns a *apperr.Error (KindValidation) wrapping the specific sentinel
// (ErrMessageTooLong, ErrThrottled, ErrDuplicateStorm) on rejection.
func (v *Validator) Check(ctx context.Context, kind Kind, eventID, userID, text string) error {
	const op = "validator.Check"

	if len(text) > MessageMaxLength {
		metrics.RecordValidatorRejection(string(kind), "length")
		return apperr.Validation(op, apperr.ErrMessageTooLong)
	}

	throttleKey := fmt.Sprintf("throttle:%s:%s:%s", kind, eventID, userID)
	allowed, err := v.store.SetNX(ctx, throttleKey, []byte("1"), ThrottleWindow)
	if apperr.IsKind(err, apperr.KindTransientStore) {
		if !v.fallbackAllow(throttleKey) {
			metrics.RecordValidatorRejection(string(kind), "throttle")
			return apperr.Validation(op, apperr.ErrThrottled)
		}
	} else if err != nil {
		return err
	} else if !allowed {
		metrics.RecordValidatorRejection(string(kind), "throttle")
		return apperr.Validation(op, apperr.ErrThrottled)
	}

	normalized := normalize(text)
	if normalized == "" {
		return nil
	}
	sum := sha1.Sum([]byte(normalized))
	fingerprint := hex.EncodeToString(sum[:])
	duplicateKey := fmt.Sprintf("duplicate:%s:%s:%s", kind, eventID, fingerprint)

	count, err := v.store.IncrExpire(ctx, duplicateKey, DuplicateWindow)
	if apperr.IsKind(err, apperr.KindTransientStore) {
		// No durable duplicate counter available; length/throttle checks
		// already ran, so let the message through rather than block chat
		// entirely on a hot-store outage.
		return nil
	}
	if err != nil {
		return err
	}
	if count > DuplicateThreshold {
		metrics.RecordValidatorRejection(string(kind), "duplicate")
		return apperr.Validation(op, apperr.ErrDuplicateStorm)
	}
	return nil
}

// fallbackAllow is the in-memory degrade path used only when the hot store
// itself reported KindTransientStore — it never substitutes for SetNX on a
// healthy store. It is a temporary degrade, not a permanent throttle
// replacement.
func (v *Validator) fallbackAllow(key string) bool {
	v.mu.Lock()
	limiter, ok := v.fallback[key]
	if !ok {
		limiter = rate.NewLimiter(fallbackLimiterRate, fallbackLimiterBurst)
		v.fallback[key] = limiter
	}
	v.mu.Unlock()
	return limiter.Allow()
}

// normalize lower-cases, strips diacritics via NFD decomposition + Mn-rune
// removal, and collapses whitespace — the Go equivalent of the Python
// reference implementation's `_normalize_text`.
func normalize(text string) string {
	lower := strings.ToLower(text)
	t := transform.Chain(norm.NFD, transform.RemoveFunc(isMn), norm.NFC)
	stripped, _, err := transform.String(t, lower)
	if err != nil {
		stripped = lower
	}
	collapsed := whitespaceRE.ReplaceAllString(stripped, " ")
	return strings.TrimSpace(collapsed)
}

func isMn(r rune) bool {
	return unicode.Is(unicode.Mn, r)
}
