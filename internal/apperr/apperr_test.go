// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package apperr

import (
	"errors"
	"testing"
)

func TestErrorMessage(t *testing.T) {
	e := Validation("qa.add", ErrUnknownQuestion)
	want := "qa.add: validation: unknown question"
	if e.Error() != want {
		t.Errorf("Error() = %q, want %q", e.Error(), want)
	}
}

func TestErrorMessageNoCause(t *testing.T) {
	e := New(KindAuth, "gateway.open", nil)
	want := "gateway.open: auth"
	if e.Error() != want {
		t.Errorf("Error() = %q, want %q", e.Error(), want)
	}
}

func TestUnwrap(t *testing.T) {
	e := State("poll.vote", ErrPollClosed)
	if !errors.Is(e, ErrPollClosed) {
		t.Error("errors.Is() = false, want true for wrapped sentinel")
	}
}

func TestKindOf(t *testing.T) {
	e := TransientStore("session.get", ErrHotStoreUnavailable)
	kind, ok := KindOf(e)
	if !ok {
		t.Fatal("KindOf() ok = false, want true")
	}
	if kind != KindTransientStore {
		t.Errorf("KindOf() = %v, want %v", kind, KindTransientStore)
	}
}

func TestKindOf_NotAppErr(t *testing.T) {
	_, ok := KindOf(errors.New("plain error"))
	if ok {
		t.Error("KindOf() ok = true, want false for a non-apperr error")
	}
}

func TestIsKind(t *testing.T) {
	e := DurableStore("chat.writeback", ErrDurableWriteFailed)
	if !IsKind(e, KindDurableStore) {
		t.Error("IsKind() = false, want true")
	}
	if IsKind(e, KindAuth) {
		t.Error("IsKind() = true, want false for mismatched kind")
	}
}

func TestIs_ComparesKind(t *testing.T) {
	a := Validation("chat.send", ErrMessageTooLong)
	b := Validation("qa.add", ErrUnknownQuestion)
	if !errors.Is(a, b) {
		t.Error("errors.Is() = false, want true for same-kind *Error values")
	}

	c := Auth("gateway.open", ErrNoSession)
	if errors.Is(a, c) {
		t.Error("errors.Is() = true, want false for different-kind *Error values")
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		kind Kind
	}{
		{"Auth", Auth("op", nil), KindAuth},
		{"Validation", Validation("op", nil), KindValidation},
		{"State", State("op", nil), KindState},
		{"TransientStore", TransientStore("op", nil), KindTransientStore},
		{"DurableStore", DurableStore("op", nil), KindDurableStore},
		{"Config", Config("op", nil), KindConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", tt.err.Kind, tt.kind)
			}
		})
	}
}
