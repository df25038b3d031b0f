// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/cartographus/internal/apperr"
	"github.com/tomtom215/cartographus/internal/auth"
	"github.com/tomtom215/cartographus/internal/authz"
	"github.com/tomtom215/cartographus/internal/broadcast"
	"github.com/tomtom215/cartographus/internal/hotstore"
	"github.com/tomtom215/cartographus/internal/models"
	"github.com/tomtom215/cartographus/internal/poll"
	"github.com/tomtom215/cartographus/internal/presence"
	"github.com/tomtom215/cartographus/internal/qa"
	"github.com/tomtom215/cartographus/internal/validator"
)

// fakeQuestions is an in-memory stand-in for store.QuestionRepository.
type fakeQuestions struct {
	mu   sync.Mutex
	rows map[string]*models.Question
}

func newFakeQuestions() *fakeQuestions {
	return &fakeQuestions{rows: make(map[string]*models.Question)}
}

func (f *fakeQuestions) List(ctx context.Context, eventID string, status models.QuestionStatus, limit int) ([]*models.Question, error) {
	return nil, nil
}

func (f *fakeQuestions) ListPendingAndApproved(ctx context.Context, eventID string, limit int) (pending, approved, read []*models.Question, err error) {
	return nil, nil, nil, nil
}

func (f *fakeQuestions) Add(ctx context.Context, q *models.Question) (*models.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *q
	cp.Status = models.QuestionStatusPending
	cp.CreatedAt = time.Now()
	f.rows[cp.ID] = &cp
	return &cp, nil
}

func (f *fakeQuestions) transition(eventID, questionID string, to models.QuestionStatus) (*models.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.rows[questionID]
	if !ok || q.EventID != eventID {
		return nil, apperr.ErrUnknownQuestion
	}
	q.Status = to
	return q, nil
}

func (f *fakeQuestions) Approve(ctx context.Context, eventID, questionID string) (*models.Question, error) {
	return f.transition(eventID, questionID, models.QuestionStatusApproved)
}

func (f *fakeQuestions) Reject(ctx context.Context, eventID, questionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, questionID)
	return nil
}

func (f *fakeQuestions) MarkRead(ctx context.Context, eventID, questionID string) (*models.Question, error) {
	return f.transition(eventID, questionID, models.QuestionStatusRead)
}

func (f *fakeQuestions) ReturnToPending(ctx context.Context, eventID, questionID string) (*models.Question, error) {
	return f.transition(eventID, questionID, models.QuestionStatusPending)
}

func (f *fakeQuestions) CountByStatus(ctx context.Context, eventID string) (pending, approved, read int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, q := range f.rows {
		if q.EventID != eventID {
			continue
		}
		switch q.Status {
		case models.QuestionStatusPending:
			pending++
		case models.QuestionStatusApproved:
			approved++
		case models.QuestionStatusRead:
			read++
		}
	}
	return pending, approved, read, nil
}

// fakePolls is an in-memory stand-in for store.PollRepository.
type fakePolls struct{}

func (f *fakePolls) Create(ctx context.Context, p *models.Poll) (*models.Poll, error) {
	cp := *p
	return &cp, nil
}
func (f *fakePolls) GetByID(ctx context.Context, eventID, pollID string) (*models.Poll, error) {
	return nil, apperr.ErrUnknownPoll
}
func (f *fakePolls) List(ctx context.Context, eventID string) ([]*models.Poll, error) { return nil, nil }
func (f *fakePolls) UpdateStatus(ctx context.Context, pollID string, status models.PollStatus) error {
	return nil
}
func (f *fakePolls) UpdateContent(ctx context.Context, pollID, question string, options []string) error {
	return nil
}

// fakeStaff grants no one anything; tests that need staff authority set
// rows directly.
type fakeStaff struct {
	mu    sync.Mutex
	grant map[string]string // eventID|userID -> role
}

func newFakeStaff() *fakeStaff { return &fakeStaff{grant: make(map[string]string)} }

func (f *fakeStaff) set(eventID, userID, role string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.grant[eventID+"|"+userID] = role
}

func (f *fakeStaff) GetRole(ctx context.Context, eventID, userID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.grant[eventID+"|"+userID], nil
}
func (f *fakeStaff) List(ctx context.Context, eventID string) ([]*models.EventStaff, error) {
	return nil, nil
}
func (f *fakeStaff) Grant(ctx context.Context, s *models.EventStaff) (*models.EventStaff, error) {
	return s, nil
}
func (f *fakeStaff) Revoke(ctx context.Context, eventID, userID string) error { return nil }

// fakeEventRoles always reports no per-event promotion; exercising that
// path specifically is RoleResolver's unit-level concern.
type fakeEventRoles struct{}

func (fakeEventRoles) GetEventRole(ctx context.Context, eventID, userID string) (string, error) {
	return "", nil
}

func newTestAuthz(t *testing.T) *authz.Service {
	t.Helper()
	enforcer, err := authz.NewEnforcer(context.Background(), nil)
	require.NoError(t, err)
	svc, err := authz.NewService(enforcer, &noopRoleProvider{}, &authz.ServiceConfig{
		DefaultRole: models.RoleViewer,
	})
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	return svc
}

// noopRoleProvider backs authz.Service in tests that never need a
// platform-wide role lookup to succeed.
type noopRoleProvider struct{}

func (noopRoleProvider) GetUserRole(ctx context.Context, userID string) (*models.UserRole, error) {
	return nil, authz.ErrRoleNotFound
}
func (noopRoleProvider) GetEffectiveRole(ctx context.Context, userID string) (string, error) {
	return models.RoleViewer, nil
}
func (noopRoleProvider) SetUserRole(ctx context.Context, role *models.UserRole, actorID, actorUsername, reason string) (*models.UserRole, error) {
	return role, nil
}
func (noopRoleProvider) DeleteUserRole(ctx context.Context, userID, actorID, actorUsername, reason string) error {
	return nil
}
func (noopRoleProvider) AuditRoleChange(ctx context.Context, entry *models.RoleAuditEntry) error {
	return nil
}
func (noopRoleProvider) IsUserSuperadmin(ctx context.Context, userID string) (bool, error) {
	return false, nil
}

type fixture struct {
	gw       *Gateway
	sessions auth.SessionStore
	staff    *fakeStaff
	server   *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	hot, err := hotstore.Open(hotstore.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = hot.Close() })

	hub := broadcast.New(nil)
	sessions := auth.NewMemorySessionStore()
	staff := newFakeStaff()
	roles := NewRoleResolver(newTestAuthz(t), staff, fakeEventRoles{})
	presenceT := presence.New(hot, nil)
	qaP := qa.New(newFakeQuestions(), hub)
	pollE := poll.New(hot, &fakePolls{}, hub)
	valid := validator.New(hot)

	gw := New(Config{
		Sessions:    sessions,
		CORSOrigins: []string{"*"},
		Roles:       roles,
		Hub:         hub,
		Presence:    presenceT,
		QA:          qaP,
		Poll:        pollE,
		Validator:   valid,
	})

	server := httptest.NewServer(http.HandlerFunc(gw.ServeWS))
	t.Cleanup(server.Close)

	return &fixture{gw: gw, sessions: sessions, staff: staff, server: server}
}

func (fx *fixture) newSession(t *testing.T, subject *auth.AuthSubject) *http.Cookie {
	t.Helper()
	session := auth.NewSession(subject, time.Hour)
	require.NoError(t, fx.sessions.Create(context.Background(), session))
	return &http.Cookie{Name: auth.SessionCookieName, Value: session.ID}
}

func (fx *fixture) dial(t *testing.T, cookie *http.Cookie, query string) (*websocket.Conn, *http.Response) {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(fx.server.URL, "http") + "/ws"
	if query != "" {
		wsURL += "?" + query
	}
	header := http.Header{}
	if cookie != nil {
		header.Set("Cookie", cookie.String())
	}
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	return conn, resp
}

func readOne(t *testing.T, conn *websocket.Conn, timeout time.Duration) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(timeout)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestServeWS_NoSessionCookieCloses4001(t *testing.T) {
	fx := newFixture(t)
	conn, _ := fx.dial(t, nil, "")
	require.NotNil(t, conn)
	defer conn.Close()

	_, _, err := conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, 4001, closeErr.Code)
	assert.Equal(t, "session_missing", closeErr.Text)
}

func TestServeWS_NonViewerRoleWithoutGrantCloses4003(t *testing.T) {
	fx := newFixture(t)
	cookie := fx.newSession(t, &auth.AuthSubject{ID: "user-1", Username: "Alice", AuthMethod: auth.AuthModeCookie})
	conn, _ := fx.dial(t, cookie, "event_id=evt-1&role=moderator")
	require.NotNil(t, conn)
	defer conn.Close()

	_, _, err := conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, 4003, closeErr.Code)
	assert.Equal(t, "role_forbidden", closeErr.Text)
}

func TestServeWS_NonViewerRoleWithoutEventIDCloses4002(t *testing.T) {
	fx := newFixture(t)
	cookie := fx.newSession(t, &auth.AuthSubject{ID: "user-1", AuthMethod: auth.AuthModeCookie})
	conn, _ := fx.dial(t, cookie, "role=moderator")
	require.NotNil(t, conn)
	defer conn.Close()

	_, _, err := conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, 4002, closeErr.Code)
}

func TestServeWS_StaffGrantUnlocksModeratorRole(t *testing.T) {
	fx := newFixture(t)
	fx.staff.set("evt-1", "user-1", models.EventStaffRoleModerator)
	cookie := fx.newSession(t, &auth.AuthSubject{ID: "user-1", Username: "Mod", AuthMethod: auth.AuthModeCookie})

	conn, _ := fx.dial(t, cookie, "event_id=evt-1&role=moderator")
	require.NotNil(t, conn)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ask", "question": "what time is it"}))
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "approve", "id": "does-not-exist"}))

	msg := readOne(t, conn, 2*time.Second)
	assert.Equal(t, "error", msg["type"])
}

func TestServeWS_ChatBroadcastsToAllRoles(t *testing.T) {
	fx := newFixture(t)
	viewerCookie := fx.newSession(t, &auth.AuthSubject{SessionID: "sess-viewer", AuthMethod: auth.AuthModeAnon})
	senderCookie := fx.newSession(t, &auth.AuthSubject{ID: "user-2", Username: "Bob", AuthMethod: auth.AuthModeCookie})

	viewer, _ := fx.dial(t, viewerCookie, "event_id=evt-1")
	require.NotNil(t, viewer)
	defer viewer.Close()
	sender, _ := fx.dial(t, senderCookie, "event_id=evt-1")
	require.NotNil(t, sender)
	defer sender.Close()

	require.NoError(t, sender.WriteJSON(map[string]string{"type": "chat", "message": "hello everyone"}))

	msg := readOne(t, viewer, 2*time.Second)
	assert.Equal(t, "chat", msg["type"])
	assert.Equal(t, "Bob", msg["user"])
	assert.Equal(t, "hello everyone", msg["message"])
}

func TestServeWS_ViewerCannotApprove(t *testing.T) {
	fx := newFixture(t)
	cookie := fx.newSession(t, &auth.AuthSubject{ID: "user-3", AuthMethod: auth.AuthModeCookie})
	conn, _ := fx.dial(t, cookie, "event_id=evt-1")
	require.NotNil(t, conn)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "approve", "id": "q-1"}))

	msg := readOne(t, conn, 2*time.Second)
	assert.Equal(t, "error", msg["type"])
	assert.Equal(t, "not authorized", msg["message"])
}

func TestRoleResolver_SuperadminOutranksEverything(t *testing.T) {
	svc := newTestAuthz(t)
	staff := newFakeStaff()
	resolver := NewRoleResolver(svc, staff, fakeEventRoles{})

	subject := &auth.AuthSubject{ID: "root", Roles: []string{models.RoleSuperadmin}}
	role, err := resolver.Resolve(context.Background(), subject, "evt-1", "reports")
	require.NoError(t, err)
	assert.Equal(t, RoleReports, role)
}

func TestRoleResolver_ViewerDefaultsWithNoEventID(t *testing.T) {
	svc := newTestAuthz(t)
	resolver := NewRoleResolver(svc, nil, nil)
	role, err := resolver.Resolve(context.Background(), &auth.AuthSubject{}, "", "")
	require.NoError(t, err)
	assert.Equal(t, RoleViewer, role)
}

func TestRoleResolver_EventStaffAdminGrantsSpeaker(t *testing.T) {
	svc := newTestAuthz(t)
	staff := newFakeStaff()
	staff.set("evt-1", "user-9", models.EventStaffRoleAdmin)
	resolver := NewRoleResolver(svc, staff, fakeEventRoles{})

	role, err := resolver.Resolve(context.Background(), &auth.AuthSubject{ID: "user-9"}, "evt-1", "speaker")
	require.NoError(t, err)
	assert.Equal(t, RoleSpeaker, role)
}

func TestRoleResolver_UnknownRoleForbidden(t *testing.T) {
	svc := newTestAuthz(t)
	resolver := NewRoleResolver(svc, nil, nil)
	_, err := resolver.Resolve(context.Background(), &auth.AuthSubject{ID: "user-9"}, "evt-1", "wizard")
	assert.ErrorIs(t, err, ErrRoleForbidden)
}

func TestUserMessage_MapsKnownSentinels(t *testing.T) {
	assert.Equal(t, "spam masivo", userMessage(apperr.ErrDuplicateStorm))
	assert.Equal(t, "message too long", userMessage(apperr.ErrMessageTooLong))
	assert.Equal(t, "no active poll", userMessage(apperr.ErrUnknownPoll))
}
