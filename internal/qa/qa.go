// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package qa drives the question-and-answer state machine: pending ->
// approved -> read, with reject and return-to-pending transitions. Every
// transition persists through internal/store.QuestionRepository and emits
// its outbound envelopes through a Broadcaster: one per transition, two
// for return-to-pending.
package qa

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/cartographus/internal/apperr"
	"github.com/tomtom215/cartographus/internal/models"
	"github.com/tomtom215/cartographus/internal/store"
)

// Roles eligible to receive Q&A envelopes.
const (
	RoleViewer    = "viewer"
	RoleModerator = "moderator"
	RoleSpeaker   = "speaker"
)

// Broadcaster fans an envelope out to every socket registered under the
// given roles for eventID. Defined locally so this package has no direct
// dependency on internal/broadcast's concrete Hub type.
type Broadcaster interface {
	Broadcast(ctx context.Context, eventID string, roles []string, envelope any) error
}

// Pipeline implements the Q&A state machine over a durable
// QuestionRepository and a Broadcaster.
type Pipeline struct {
	questions   store.QuestionRepository
	broadcaster Broadcaster
}

// New constructs a Pipeline.
func New(questions store.QuestionRepository, broadcaster Broadcaster) *Pipeline {
	return &Pipeline{questions: questions, broadcaster: broadcaster}
}

// PendingQuestionEnvelope is the outbound `pending_question` frame (and
// shared shape for approved_question/question_read).
type PendingQuestionEnvelope struct {
	Type      string `json:"type"`
	ID        string `json:"id"`
	User      string `json:"user"`
	Question  string `json:"question"`
	Timestamp string `json:"timestamp"`
}

// RejectedQuestionEnvelope mirrors the id-only `rejected_question`/
// `question_removed` outbound shape.
type RejectedQuestionEnvelope struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

func envelopeOf(kind string, q *models.Question) PendingQuestionEnvelope {
	return PendingQuestionEnvelope{
		Type:      kind,
		ID:        q.ID,
		User:      q.AuthorDisplayName(),
		Question:  q.Text,
		Timestamp: q.CreatedAt.Format("15:04"),
	}
}

// Add inserts a new pending question and fans it out to moderators only.
// Either authorUserID or manualAuthorName should be non-empty; the latter
// is used by bulk-imported questions with no backing account.
func (p *Pipeline) Add(ctx context.Context, eventID, authorUserID, manualAuthorName, text string) (*models.Question, error) {
	q := &models.Question{
		ID:               uuid.NewString(),
		EventID:          eventID,
		AuthorUserID:     authorUserID,
		ManualAuthorName: manualAuthorName,
		Text:             text,
		Status:           models.QuestionStatusPending,
		CreatedAt:        time.Now(),
	}
	created, err := p.questions.Add(ctx, q)
	if err != nil {
		return nil, err
	}
	p.emit(ctx, eventID, []string{RoleModerator}, envelopeOf("pending_question", created))
	return created, nil
}

// ImportBulk adds a batch of questions attributed to manualAuthorNames,
// each funneled through Add so the same guard and routing apply uniformly
// — the moderator bulk-import supplement from
// original_source/app/services/questions_service.py.
func (p *Pipeline) ImportBulk(ctx context.Context, eventID string, manualAuthorNames, texts []string) ([]*models.Question, error) {
	if len(manualAuthorNames) != len(texts) {
		return nil, apperr.Validation("qa.ImportBulk", apperr.ErrInvalidPayload)
	}
	out := make([]*models.Question, 0, len(texts))
	for i, text := range texts {
		q, err := p.Add(ctx, eventID, "", manualAuthorNames[i], text)
		if err != nil {
			return out, err
		}
		out = append(out, q)
	}
	return out, nil
}

// Approve transitions a pending question to approved, requiring moderator
// role (the caller is responsible for enforcing that via internal/authz
// before calling this), and fans the result out to viewer, speaker, and
// moderator.
func (p *Pipeline) Approve(ctx context.Context, eventID, questionID string) (*models.Question, error) {
	q, err := p.questions.Approve(ctx, eventID, questionID)
	if err != nil {
		return nil, err
	}
	p.emit(ctx, eventID, []string{RoleViewer, RoleSpeaker, RoleModerator}, envelopeOf("approved_question", q))
	return q, nil
}

// Reject deletes a pending question outright and notifies moderators.
func (p *Pipeline) Reject(ctx context.Context, eventID, questionID string) error {
	if err := p.questions.Reject(ctx, eventID, questionID); err != nil {
		return err
	}
	p.emit(ctx, eventID, []string{RoleModerator}, RejectedQuestionEnvelope{Type: "rejected_question", ID: questionID})
	return nil
}

// Read transitions an approved question to read and notifies viewer,
// speaker, and moderator.
func (p *Pipeline) Read(ctx context.Context, eventID, questionID string) (*models.Question, error) {
	q, err := p.questions.MarkRead(ctx, eventID, questionID)
	if err != nil {
		return nil, err
	}
	p.emit(ctx, eventID, []string{RoleViewer, RoleSpeaker, RoleModerator}, envelopeOf("question_read", q))
	return q, nil
}

// ReturnToPending transitions an approved question back to pending,
// notifying viewer/speaker/moderator that it was removed from the
// approved queue and then notifying moderators of the re-queued
// question — a two-envelope transition.
func (p *Pipeline) ReturnToPending(ctx context.Context, eventID, questionID string) (*models.Question, error) {
	q, err := p.questions.ReturnToPending(ctx, eventID, questionID)
	if err != nil {
		return nil, err
	}
	p.emit(ctx, eventID, []string{RoleViewer, RoleSpeaker, RoleModerator}, RejectedQuestionEnvelope{Type: "question_removed", ID: questionID})
	p.emit(ctx, eventID, []string{RoleModerator}, envelopeOf("pending_question", q))
	return q, nil
}

// ListPendingAndApproved returns the three status buckets for eventID, used
// to hydrate a reconnecting moderator/speaker socket.
func (p *Pipeline) ListPendingAndApproved(ctx context.Context, eventID string, limit int) (pending, approved, read []*models.Question, err error) {
	return p.questions.ListPendingAndApproved(ctx, eventID, limit)
}

// CountByStatus returns the exact pending/approved/read row counts for
// eventID, the question-status report view's source. Rejected is always
// zero; see store.QuestionRepository.CountByStatus.
func (p *Pipeline) CountByStatus(ctx context.Context, eventID string) (pending, approved, read int, err error) {
	return p.questions.CountByStatus(ctx, eventID)
}

func (p *Pipeline) emit(ctx context.Context, eventID string, roles []string, envelope any) {
	if p.broadcaster == nil {
		return
	}
	_ = p.broadcaster.Broadcast(ctx, eventID, roles, envelope)
}
