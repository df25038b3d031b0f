// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package auth

import (
	"testing"
	"time"
)

func TestNewBearerManager_RejectsEmptySecret(t *testing.T) {
	if _, err := NewBearerManager("", time.Hour); err == nil {
		t.Error("expected error for empty secret")
	}
}

func TestBearerManager_GenerateAndValidateRoundTrip(t *testing.T) {
	bm, err := NewBearerManager("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewBearerManager: %v", err)
	}

	subject := &AuthSubject{
		ID:       "user-1",
		Username: "Alice",
		Roles:    []string{"moderator"},
		EventID:  "evt-1",
	}

	token, err := bm.GenerateToken(subject)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	got, err := bm.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}

	if got.ID != subject.ID || got.Username != subject.Username || got.EventID != subject.EventID {
		t.Errorf("ValidateToken returned %+v, want fields matching %+v", got, subject)
	}
	if got.AuthMethod != AuthModeBearer {
		t.Errorf("AuthMethod = %q, want %q", got.AuthMethod, AuthModeBearer)
	}
	if len(got.Roles) != 1 || got.Roles[0] != "moderator" {
		t.Errorf("Roles = %v, want [moderator]", got.Roles)
	}
}

func TestBearerManager_ValidateToken_RejectsWrongSecret(t *testing.T) {
	bm, _ := NewBearerManager("secret-a", time.Hour)
	other, _ := NewBearerManager("secret-b", time.Hour)

	token, err := bm.GenerateToken(&AuthSubject{ID: "u1"})
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	if _, err := other.ValidateToken(token); err == nil {
		t.Error("expected validation to fail with mismatched secret")
	}
}

func TestBearerManager_ValidateToken_RejectsExpired(t *testing.T) {
	bm, _ := NewBearerManager("secret", time.Millisecond)

	token, err := bm.GenerateToken(&AuthSubject{ID: "u1"})
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	// jwt.ParseWithClaims itself enforces exp, so ValidateToken returns an
	// error directly rather than a subject whose IsExpired reports true.
	if _, err := bm.ValidateToken(token); err == nil {
		t.Error("expected validation to fail for an expired token")
	}
}

func TestBearerManager_ValidateToken_RejectsGarbage(t *testing.T) {
	bm, _ := NewBearerManager("secret", time.Hour)
	if _, err := bm.ValidateToken("not.a.token"); err == nil {
		t.Error("expected error for malformed token")
	}
}
