// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package gateway

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/cartographus/internal/apperr"
	"github.com/tomtom215/cartographus/internal/auth"
	"github.com/tomtom215/cartographus/internal/broadcast"
	"github.com/tomtom215/cartographus/internal/logging"
	"github.com/tomtom215/cartographus/internal/metrics"
	"github.com/tomtom215/cartographus/internal/models"
	"github.com/tomtom215/cartographus/internal/poll"
	"github.com/tomtom215/cartographus/internal/presence"
	"github.com/tomtom215/cartographus/internal/qa"
	"github.com/tomtom215/cartographus/internal/registration"
	"github.com/tomtom215/cartographus/internal/store"
	"github.com/tomtom215/cartographus/internal/validator"
)

// allRoles is the full broadcast registry set, used by chat's "fan out to
// everyone" rule.
var allRoles = []string{RoleViewer, RoleModerator, RoleSpeaker, RoleReports}

// Snapshotter requests an out-of-band derived-view recompute for an
// event. Declared locally so this package has no hard dependency on the
// concrete internal/snapshot publisher; nil is a valid no-op dependency.
type Snapshotter interface {
	TriggerRefresh(eventID string)

	// RecordChat and RecordQuestion feed the engagement chart's chat/question
	// count series at the moment those events are created, since neither
	// internal/qa.Pipeline nor internal/broadcast.Hub track creation rates.
	RecordChat(eventID string)
	RecordQuestion(eventID string)
}

// Gateway wires session resolution, role precedence, the broadcast hub,
// and the Q&A/poll/presence/validator components into the single /ws
// upgrade endpoint.
type Gateway struct {
	sessions    auth.SessionStore
	corsOrigins []string
	roles       *RoleResolver
	hub         *broadcast.Hub
	presenceT   *presence.Tracker
	qaP         *qa.Pipeline
	pollE       *poll.Engine
	valid       *validator.Validator
	chat        store.ChatRepository
	writeBehind *store.WriteBehindQueue
	snapshot    Snapshotter
	events      store.EventRepository
	registerSvc *registration.Service
	upgrader    websocket.Upgrader

	mu      sync.Mutex
	byEvent map[string]map[uint64]*Connection
}

// Config bundles Gateway's dependencies. Snapshot may be nil (no reports
// publisher wired). Events and Registration may also be nil together,
// which skips the registration-window/capacity check entirely (a
// deployment with no events table configured admits every viewer, same
// as before internal/registration existed).
type Config struct {
	Sessions     auth.SessionStore
	CORSOrigins  []string
	Roles        *RoleResolver
	Hub          *broadcast.Hub
	Presence     *presence.Tracker
	QA           *qa.Pipeline
	Poll         *poll.Engine
	Validator    *validator.Validator
	Chat         store.ChatRepository
	WriteBehind  *store.WriteBehindQueue
	Snapshot     Snapshotter
	Events       store.EventRepository
	Registration *registration.Service
}

// New constructs a Gateway from cfg.
func New(cfg Config) *Gateway {
	g := &Gateway{
		sessions:    cfg.Sessions,
		corsOrigins: cfg.CORSOrigins,
		roles:       cfg.Roles,
		hub:         cfg.Hub,
		presenceT:   cfg.Presence,
		qaP:         cfg.QA,
		pollE:       cfg.Poll,
		valid:       cfg.Validator,
		chat:        cfg.Chat,
		writeBehind: cfg.WriteBehind,
		snapshot:    cfg.Snapshot,
		events:      cfg.Events,
		registerSvc: cfg.Registration,
		byEvent:     make(map[string]map[uint64]*Connection),
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     g.checkOrigin,
	}
	return g
}

func (g *Gateway) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range g.corsOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

type socketAuthError struct {
	reason string
}

func (e *socketAuthError) Error() string { return e.reason }

// resolveSubject reads the session cookie directly (rather than through
// internal/auth.Middleware.Authenticate, which silently issues a fresh
// anonymous session on any failure) because a socket must fail closed
// with a specific close code instead of being handed a brand new
// identity.
func (g *Gateway) resolveSubject(r *http.Request) (*auth.AuthSubject, error) {
	cookie, err := r.Cookie(auth.SessionCookieName)
	if err != nil {
		return nil, &socketAuthError{"session_missing"}
	}
	session, err := g.sessions.Get(r.Context(), cookie.Value)
	if err != nil {
		if errors.Is(err, auth.ErrSessionExpired) {
			return nil, &socketAuthError{"session_expired"}
		}
		return nil, &socketAuthError{"session_invalid"}
	}
	return session.ToAuthSubject(), nil
}

// checkRegistration resolves eventID and runs internal/registration's
// window and capacity checks, reporting the close code and reason to use
// if the viewer should be turned away. ok is true when the join may
// proceed. Degrades open (ok=true) if no EventRepository/Service is
// wired, if the event cannot be found, or if the capacity counter itself
// is unreachable — a missing dependency or a down hot store should not
// itself lock every viewer out.
func (g *Gateway) checkRegistration(ctx context.Context, eventID string) (closeCode int, reason string, ok bool) {
	if g.events == nil || g.registerSvc == nil {
		return 0, "", true
	}
	event, err := g.events.GetByID(ctx, eventID)
	if err != nil {
		logging.Warn().Err(err).Str("event_id", eventID).Msg("gateway: registration check could not resolve event")
		return 0, "", true
	}
	if err := g.registerSvc.CheckWindow(event, time.Now()); err != nil {
		if apperr.IsKind(err, apperr.KindConfig) {
			return 4004, "registration_misconfigured", false
		}
		return 4004, "registration_closed", false
	}
	if err := g.registerSvc.CheckCapacity(ctx, event); err != nil {
		if apperr.IsKind(err, apperr.KindTransientStore) {
			logging.Warn().Err(err).Str("event_id", eventID).Msg("gateway: capacity check degraded open")
			return 0, "", true
		}
		return 4005, "capacity_exceeded", false
	}
	return 0, "", true
}

// ServeWS upgrades the request and runs the connection's full lifecycle:
// auth, role resolution, registration, dispatch, and teardown.
func (g *Gateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("gateway: websocket upgrade failed")
		return
	}

	subject, err := g.resolveSubject(r)
	if err != nil {
		var sae *socketAuthError
		errors.As(err, &sae)
		closeWithCode(conn, 4001, sae.reason)
		return
	}

	eventID := r.URL.Query().Get("event_id")
	if eventID == "" {
		eventID = subject.EventID
	}
	requestedRole := r.URL.Query().Get("role")

	role, err := g.roles.Resolve(r.Context(), subject, eventID, requestedRole)
	if err != nil {
		switch {
		case errors.Is(err, ErrEventMissing):
			closeWithCode(conn, 4002, "event_missing")
		case errors.Is(err, ErrRoleForbidden):
			closeWithCode(conn, 4003, "role_forbidden")
		default:
			logging.Ctx(r.Context()).Error().Err(err).Msg("gateway: role resolution failed")
			closeWithCode(conn, 4003, "role_forbidden")
		}
		return
	}

	if role == RoleViewer && eventID != "" {
		if closeCode, reason, ok := g.checkRegistration(r.Context(), eventID); !ok {
			closeWithCode(conn, closeCode, reason)
			return
		}
	}

	sub := g.hub.Subscribe(eventID, role)
	c := newConnection(conn, sub, subject, eventID, role)
	userID := subjectKey(subject)

	g.register(c)
	if role == RoleViewer {
		if err := g.presenceT.MarkLive(r.Context(), eventID, userID); err != nil {
			logging.Ctx(r.Context()).Warn().Err(err).Msg("gateway: mark_live failed")
		}
	}

	go c.writePump()
	g.sendInitialPollState(r.Context(), c)
	g.triggerSnapshot(eventID)

	c.readPump(func(raw []byte) bool {
		return g.dispatch(r.Context(), c, raw)
	})

	g.unregister(c)
	g.hub.Unsubscribe(sub)
	if role == RoleViewer {
		if err := g.presenceT.MarkInactive(context.Background(), eventID, userID); err != nil {
			logging.Warn().Err(err).Msg("gateway: mark_inactive failed")
		}
	}
	g.triggerSnapshot(eventID)
}

func (g *Gateway) register(c *Connection) {
	g.mu.Lock()
	defer g.mu.Unlock()
	set, ok := g.byEvent[c.eventID]
	if !ok {
		set = make(map[uint64]*Connection)
		g.byEvent[c.eventID] = set
	}
	set[c.id] = c
	metrics.RecordSocketConnected(c.role)
}

func (g *Gateway) unregister(c *Connection) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if set, ok := g.byEvent[c.eventID]; ok {
		delete(set, c.id)
		if len(set) == 0 {
			delete(g.byEvent, c.eventID)
		}
	}
	metrics.RecordSocketDisconnected(c.role)
}

// RegisteredEvents returns the ids of every event with at least one
// connection registered on this instance right now. Lets the snapshot
// publisher's periodic tick derive which events to recompute without
// this package depending on internal/snapshot (or vice versa).
func (g *Gateway) RegisteredEvents() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	ids := make([]string, 0, len(g.byEvent))
	for eventID := range g.byEvent {
		ids = append(ids, eventID)
	}
	return ids
}

// SetSnapshot wires the reports publisher after construction, breaking the
// New(Config)/snapshot.New(registry) construction cycle: the publisher's
// Registry is this Gateway, so it can only be built once the Gateway
// already exists.
func (g *Gateway) SetSnapshot(s Snapshotter) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.snapshot = s
}

// KickAll implements kick_all(event_id): broadcasts event_closed to every
// socket bound to eventID, then forcibly closes each one, called when an
// event transitions to CLOSED.
func (g *Gateway) KickAll(ctx context.Context, eventID, message string) {
	_ = g.hub.Broadcast(ctx, eventID, allRoles, EventClosedEnvelope{Type: "event_closed", Message: message})

	g.mu.Lock()
	conns := make([]*Connection, 0, len(g.byEvent[eventID]))
	for _, c := range g.byEvent[eventID] {
		conns = append(conns, c)
	}
	g.mu.Unlock()

	for _, c := range conns {
		_ = c.conn.Close()
	}
}

// ForceLogout closes every socket for userID bound to eventID, used when
// a session is revoked mid-event.
func (g *Gateway) ForceLogout(eventID, userID string) {
	g.mu.Lock()
	var targets []*Connection
	for _, c := range g.byEvent[eventID] {
		if subjectKey(c.subject) == userID {
			targets = append(targets, c)
		}
	}
	g.mu.Unlock()

	for _, c := range targets {
		if payload, err := json.Marshal(ForceLogoutEnvelope{Type: "force_logout", UserID: userID}); err == nil {
			c.sendDirect(payload)
		}
		time.AfterFunc(writeWait, func() { _ = c.conn.Close() })
	}
}

func (g *Gateway) sendInitialPollState(ctx context.Context, c *Connection) {
	sent, err := g.pollE.SendLiveState(ctx, c.eventID, func(envelope any) error {
		payload, err := json.Marshal(envelope)
		if err != nil {
			return err
		}
		c.sendDirect(payload)
		return nil
	})
	if err != nil && !sent {
		logging.Warn().Err(err).Str("event_id", c.eventID).Msg("gateway: failed to resend live poll state")
	}
}

func (g *Gateway) triggerSnapshot(eventID string) {
	if g.snapshot != nil {
		g.snapshot.TriggerRefresh(eventID)
	}
}

// subjectKey returns the identity used to key presence, Q&A authorship,
// and poll voter sets: the durable user id for a registered principal, or
// a session-scoped pseudo-id for an anonymous viewer who has none.
func subjectKey(subject *auth.AuthSubject) string {
	if subject.ID != "" {
		return subject.ID
	}
	return "anon:" + subject.SessionID
}

func subjectDisplayName(subject *auth.AuthSubject) string {
	if subject.Username != "" {
		return subject.Username
	}
	return "Anonymous"
}

func closeWithCode(conn *websocket.Conn, code int, reason string) {
	deadline := time.Now().Add(writeWait)
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, deadline)
	_ = conn.Close()
}

// dispatch decodes and routes one inbound frame. It returns false when
// the connection must stop reading (session revoked mid-connection).
func (g *Gateway) dispatch(ctx context.Context, c *Connection, raw []byte) bool {
	var envelope frameEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		g.reject(c, "invalid message")
		return true
	}

	if !g.sessionStillValid(ctx, c.subject) {
		closeWithCode(c.conn, 4001, "session_expired")
		return false
	}

	switch envelope.Type {
	case typeChat:
		g.handleChat(ctx, c, raw)
	case typeAsk:
		g.handleAsk(ctx, c, raw)
	case typeApprove:
		g.handleQuestionTransition(ctx, c, raw, RoleModerator, g.qaP.Approve)
	case typeReject:
		g.handleReject(ctx, c, raw)
	case typeRead:
		g.handleQuestionTransition(ctx, c, raw, RoleSpeaker, g.qaP.Read)
	case typeReturnToModerator:
		g.handleQuestionTransition(ctx, c, raw, RoleSpeaker, g.qaP.ReturnToPending)
	case typePing:
		g.handlePing(ctx, c)
	case typePollStart:
		g.handlePollStart(ctx, c, raw)
	case typePollVote:
		g.handlePollVote(ctx, c, raw)
	case typePollClose:
		g.handlePollClose(ctx, c)
	default:
		g.reject(c, "unknown message type")
	}
	return true
}

func (g *Gateway) sessionStillValid(ctx context.Context, subject *auth.AuthSubject) bool {
	if subject.SessionID == "" {
		return true
	}
	_, err := g.sessions.Get(ctx, subject.SessionID)
	return err == nil
}

func (g *Gateway) reject(c *Connection, message string) {
	payload, err := json.Marshal(newErrorEnvelope(message))
	if err != nil {
		return
	}
	c.sendDirect(payload)
}

func (g *Gateway) rejectErr(c *Connection, err error) {
	g.reject(c, userMessage(err))
}

func (g *Gateway) handleChat(ctx context.Context, c *Connection, raw []byte) {
	var frame chatFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		g.reject(c, "invalid message")
		return
	}
	if err := validateFrame(&frame); err != nil {
		g.reject(c, "invalid message")
		return
	}
	userID := subjectKey(c.subject)
	if err := g.valid.Check(ctx, validator.KindChat, c.eventID, userID, frame.Message); err != nil {
		g.rejectErr(c, err)
		return
	}

	msg := &models.ChatMessage{
		ID:        uuid.NewString(),
		EventID:   c.eventID,
		UserID:    userID,
		UserName:  subjectDisplayName(c.subject),
		Text:      frame.Message,
		CreatedAt: time.Now(),
	}
	if g.writeBehind != nil && g.chat != nil {
		_ = g.writeBehind.Enqueue(ctx, store.Job{
			Label: "chat.Add",
			Run:   func(ctx context.Context) error { return g.chat.Add(ctx, msg) },
		})
	}

	_ = g.hub.Broadcast(ctx, c.eventID, allRoles, ChatEnvelope{
		Type: "chat", User: msg.UserName, UserID: msg.UserID, Message: msg.Text,
		Timestamp: msg.CreatedAt.Format("15:04"),
	})

	if g.snapshot != nil {
		g.snapshot.RecordChat(c.eventID)
	}
}

func (g *Gateway) handleAsk(ctx context.Context, c *Connection, raw []byte) {
	var frame askFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		g.reject(c, "invalid message")
		return
	}
	if err := validateFrame(&frame); err != nil {
		g.reject(c, "invalid message")
		return
	}
	userID := subjectKey(c.subject)
	if err := g.valid.Check(ctx, validator.KindQA, c.eventID, userID, frame.Question); err != nil {
		g.rejectErr(c, err)
		return
	}
	if _, err := g.qaP.Add(ctx, c.eventID, userID, frame.ManualUser, frame.Question); err != nil {
		g.rejectErr(c, err)
		return
	}

	if g.snapshot != nil {
		g.snapshot.RecordQuestion(c.eventID)
	}
}

func (g *Gateway) handleReject(ctx context.Context, c *Connection, raw []byte) {
	if c.role != RoleModerator {
		g.reject(c, "not authorized")
		return
	}
	var frame idFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		g.reject(c, "invalid message")
		return
	}
	if err := validateFrame(&frame); err != nil {
		g.reject(c, "invalid message")
		return
	}
	if err := g.qaP.Reject(ctx, c.eventID, frame.ID); err != nil {
		g.rejectErr(c, err)
	}
}

// handleQuestionTransition covers approve/read/return_to_moderator, which
// share the same id-only inbound shape and a single required role.
func (g *Gateway) handleQuestionTransition(ctx context.Context, c *Connection, raw []byte, requiredRole string, transition func(ctx context.Context, eventID, questionID string) (*models.Question, error)) {
	if c.role != requiredRole {
		g.reject(c, "not authorized")
		return
	}
	var frame idFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		g.reject(c, "invalid message")
		return
	}
	if err := validateFrame(&frame); err != nil {
		g.reject(c, "invalid message")
		return
	}
	if _, err := transition(ctx, c.eventID, frame.ID); err != nil {
		g.rejectErr(c, err)
	}
}

func (g *Gateway) handlePing(ctx context.Context, c *Connection) {
	if c.role != RoleViewer {
		return
	}
	if err := g.presenceT.RecordPing(ctx, c.eventID, subjectKey(c.subject)); err != nil {
		logging.Warn().Err(err).Str("event_id", c.eventID).Msg("gateway: record_ping failed")
	}
}

func (g *Gateway) handlePollStart(ctx context.Context, c *Connection, raw []byte) {
	if c.role != RoleModerator && c.role != RoleSpeaker {
		g.reject(c, "not authorized")
		return
	}
	var frame pollStartFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		g.reject(c, "invalid message")
		return
	}
	if err := validateFrame(&frame); err != nil {
		g.reject(c, "invalid message")
		return
	}

	var err error
	if frame.PollID != "" {
		_, err = g.pollE.Launch(ctx, c.eventID, frame.PollID, frame.DurationMinutes)
	} else {
		if len(frame.Options) < 2 {
			g.reject(c, "invalid message")
			return
		}
		_, err = g.pollE.StartAdHoc(ctx, c.eventID, frame.Question, frame.Options, frame.DurationMinutes)
	}
	if err != nil {
		g.rejectErr(c, err)
	}
}

func (g *Gateway) handlePollVote(ctx context.Context, c *Connection, raw []byte) {
	var frame pollVoteFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		g.reject(c, "invalid message")
		return
	}
	if err := validateFrame(&frame); err != nil {
		g.reject(c, "invalid message")
		return
	}
	if _, err := g.pollE.Vote(ctx, c.eventID, subjectKey(c.subject), frame.OptionIndex); err != nil {
		g.rejectErr(c, err)
	}
}

func (g *Gateway) handlePollClose(ctx context.Context, c *Connection) {
	if c.role != RoleModerator && c.role != RoleSpeaker {
		g.reject(c, "not authorized")
		return
	}
	if _, err := g.pollE.Close(ctx, c.eventID); err != nil {
		g.rejectErr(c, err)
	}
}
