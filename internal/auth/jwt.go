// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the bearer token's payload: enough of an AuthSubject to
// reconstruct it without a session-store round trip, for the
// service-to-service callers BearerManager exists for (a reports
// exporter, an internal dashboard poller) rather than a browser socket.
type Claims struct {
	UserID   string   `json:"uid"`
	Username string   `json:"username"`
	Roles    []string `json:"roles,omitempty"`
	EventID  string   `json:"event_id,omitempty"`
	jwt.RegisteredClaims
}

// BearerManager issues and validates signed bearer tokens, the optional
// stateless alternative to a cookie-backed Session for callers that
// cannot hold a cookie jar. Carries the richer AuthSubject shape this
// domain's role precedence chain needs, rather than a bare
// username/role pair.
type BearerManager struct {
	secret []byte
	ttl    time.Duration
}

// NewBearerManager constructs a BearerManager. secret must be non-empty;
// the caller (main.go) only constructs one when an operator has opted
// into bearer mode by setting a secret, leaving cookie sessions as the
// only auth path otherwise.
func NewBearerManager(secret string, ttl time.Duration) (*BearerManager, error) {
	if secret == "" {
		return nil, fmt.Errorf("bearer secret must not be empty")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &BearerManager{secret: []byte(secret), ttl: ttl}, nil
}

// GenerateToken signs a bearer token carrying subject's identity.
func (m *BearerManager) GenerateToken(subject *AuthSubject) (string, error) {
	claims := &Claims{
		UserID:   subject.ID,
		Username: subject.Username,
		Roles:    subject.Roles,
		EventID:  subject.EventID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign bearer token: %w", err)
	}
	return signed, nil
}

// ValidateToken verifies tokenString's signature and expiry and
// reconstructs the AuthSubject it carries.
func (m *BearerManager) ValidateToken(tokenString string) (*AuthSubject, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse bearer token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid bearer token claims")
	}

	subject := &AuthSubject{
		ID:         claims.UserID,
		Username:   claims.Username,
		Roles:      claims.Roles,
		EventID:    claims.EventID,
		AuthMethod: AuthModeBearer,
	}
	if claims.IssuedAt != nil {
		subject.IssuedAt = claims.IssuedAt.Unix()
	}
	if claims.ExpiresAt != nil {
		subject.ExpiresAt = claims.ExpiresAt.Unix()
	}
	return subject, nil
}
