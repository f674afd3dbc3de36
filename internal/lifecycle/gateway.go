// Package lifecycle is the single entry point for response mutations. It consults the
// admission evaluator before any write and enforces the response edit policy.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eventforms/backend/internal/admission"
	"github.com/eventforms/backend/internal/models"
	"github.com/eventforms/backend/internal/notify"
	"github.com/eventforms/backend/internal/store"
	"github.com/eventforms/backend/pkg/apperr"
	"github.com/eventforms/backend/pkg/utils"
)

const defaultNotifyTimeout = 30 * time.Second

// DeniedError reports an admission denial. It maps to 403 with State.Reason().
type DeniedError struct {
	State admission.State
}

func (e *DeniedError) Error() string { return e.State.Reason() }

// Unwrap classifies the denial as forbidden for the HTTP layer.
func (e *DeniedError) Unwrap() error { return apperr.Forbidden(e.State.Reason()) }

// EditState is the derived editability of an event's responses.
type EditState string

const (
	Editable EditState = "EDITABLE"
	Locked   EditState = "LOCKED"
)

// EditStateOf derives the edit state from the event's allowResponseEdit flag.
func EditStateOf(ev *models.Event) EditState {
	if ev != nil && ev.AllowResponseEdit {
		return Editable
	}
	return Locked
}

// Actor identifies the caller of a response operation.
type Actor struct {
	Admin     bool
	EditToken string
}

// Submission is a public registration payload.
type Submission struct {
	Participant models.Participant
	Answers     []models.Answer
}

// Receipt is returned for an accepted submission. The edit token is only ever shown here.
type Receipt struct {
	SubmissionID int64  `json:"submissionId"`
	EditToken    string `json:"editToken"`
}

// Gateway mediates every response create, read, update and delete.
type Gateway struct {
	store         store.Store
	eval          *admission.Evaluator
	notifier      notify.Notifier
	notifyTimeout time.Duration
	logger        *zap.Logger
	wg            sync.WaitGroup
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithNotifier sets the confirmation notifier (default: no-op).
func WithNotifier(n notify.Notifier) Option {
	return func(g *Gateway) { g.notifier = n }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(g *Gateway) { g.logger = l }
}

// WithNotifyTimeout bounds each background notification.
func WithNotifyTimeout(d time.Duration) Option {
	return func(g *Gateway) { g.notifyTimeout = d }
}

// NewGateway creates a gateway over st using eval for admission decisions.
func NewGateway(st store.Store, eval *admission.Evaluator, opts ...Option) *Gateway {
	g := &Gateway{store: st, eval: eval, notifyTimeout: defaultNotifyTimeout}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = zap.NewNop()
	}
	if g.notifier == nil {
		g.notifier = notify.Nop{Logger: g.logger}
	}
	if g.eval == nil {
		g.eval = admission.NewEvaluator(nil, nil)
	}
	return g
}

// Wait blocks until in-flight notifications finish.
func (g *Gateway) Wait() {
	g.wg.Wait()
}

func (g *Gateway) loadEvent(ctx context.Context, eventID int64) (*models.Event, error) {
	ev, err := g.store.GetEvent(ctx, eventID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("event")
	}
	if err != nil {
		return nil, fmt.Errorf("load event %d: %w", eventID, err)
	}
	return ev, nil
}

// Submit admits and records a new response. The admission check runs twice: once up
// front for a fast answer, and again inside the store transaction with the locked
// response count so capacity can never be exceeded.
func (g *Gateway) Submit(ctx context.Context, eventID int64, sub Submission) (*Receipt, error) {
	ev, err := g.loadEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if st := g.eval.Evaluate(ev); st != admission.Admitted {
		return nil, &DeniedError{State: st}
	}

	sub.Participant.Normalize()
	answers, err := g.checkAnswers(ctx, eventID, sub.Answers)
	if err != nil {
		return nil, err
	}
	token, err := utils.GenerateToken()
	if err != nil {
		return nil, fmt.Errorf("generate edit token: %w", err)
	}

	resp, err := g.store.CreateResponse(ctx, store.NewResponse{
		EventID:     eventID,
		Participant: sub.Participant,
		Answers:     answers,
		EditToken:   token,
	}, g.admit)
	if err != nil {
		return nil, translate(err, "event")
	}
	g.logger.Info("response submitted", zap.Int64("event_id", eventID), zap.Int64("response_id", resp.ID))

	if ev.EmailConfirmation {
		g.dispatch(notify.Confirmation{Event: *ev, ResponseID: resp.ID, Participant: sub.Participant, EditToken: token})
	}
	return &Receipt{SubmissionID: resp.ID, EditToken: token}, nil
}

// admit is the in-transaction re-check; ev and responses come from the locked row.
func (g *Gateway) admit(ev *models.Event, responses int) error {
	if st := g.eval.EvaluateWithCount(ev, responses); st != admission.Admitted {
		return &DeniedError{State: st}
	}
	return nil
}

func (g *Gateway) dispatch(c notify.Confirmation) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), g.notifyTimeout)
		defer cancel()
		if err := g.notifier.NotifyConfirmation(ctx, c); err != nil {
			g.logger.Warn("confirmation email failed", zap.Error(err),
				zap.Int64("event_id", c.Event.ID), zap.Int64("response_id", c.ResponseID))
		}
	}()
}

// checkAnswers verifies every answer targets a question of the event and every required
// question has a non-blank answer. Answer text is trimmed.
func (g *Gateway) checkAnswers(ctx context.Context, eventID int64, in []models.Answer) ([]models.Answer, error) {
	questions, err := g.store.ListQuestions(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	byID := make(map[int64]models.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	fields := map[string]string{}
	answered := map[int64]bool{}
	out := make([]models.Answer, 0, len(in))
	for i, a := range in {
		if _, ok := byID[a.QuestionID]; !ok {
			fields[fmt.Sprintf("answers[%d].questionId", i)] = "question does not belong to this event"
			continue
		}
		a.AnswerText = strings.TrimSpace(a.AnswerText)
		if a.AnswerText != "" {
			answered[a.QuestionID] = true
		}
		out = append(out, models.Answer{QuestionID: a.QuestionID, AnswerText: a.AnswerText})
	}
	for _, q := range questions {
		if q.IsRequired && !answered[q.ID] {
			fields[fmt.Sprintf("question.%d", q.ID)] = fmt.Sprintf("%q is required", q.QuestionText)
		}
	}
	if len(fields) > 0 {
		return nil, apperr.Validation("invalid answers", fields)
	}
	return out, nil
}

// AuthorizeEdit applies the edit policy: the event must allow response edits, and the
// actor must be an admin or present the response's own edit token.
func (g *Gateway) AuthorizeEdit(ctx context.Context, eventID, responseID int64, actor Actor) (*models.Event, *models.ResponseDetail, error) {
	ev, err := g.loadEvent(ctx, eventID)
	if err != nil {
		return nil, nil, err
	}
	detail, err := g.store.GetResponse(ctx, eventID, responseID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, apperr.NotFound("response")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load response %d: %w", responseID, err)
	}
	if err := editable(ev); err != nil {
		return nil, nil, err
	}
	if !actor.Admin && !utils.TokensEqual(actor.EditToken, detail.EditToken) {
		return nil, nil, apperr.Forbidden("a valid edit token is required")
	}
	return ev, detail, nil
}

// editable is the edit-lock check. The store repeats it inside the write transaction, so
// an edit racing an admin's lock either lands before the lock or is refused.
func editable(ev *models.Event) error {
	if !ev.AllowResponseEdit {
		return apperr.Forbidden("responses to this event cannot be edited")
	}
	return nil
}

// GetResponse returns a response to an authorised actor.
func (g *Gateway) GetResponse(ctx context.Context, eventID, responseID int64, actor Actor) (*models.ResponseDetail, error) {
	_, detail, err := g.AuthorizeEdit(ctx, eventID, responseID, actor)
	return detail, err
}

// UpdateResponse replaces a response's answers and optionally its participant fields.
func (g *Gateway) UpdateResponse(ctx context.Context, eventID, responseID int64, actor Actor, participant *models.Participant, answers []models.Answer) (*models.ResponseDetail, error) {
	if _, _, err := g.AuthorizeEdit(ctx, eventID, responseID, actor); err != nil {
		return nil, err
	}
	checked, err := g.checkAnswers(ctx, eventID, answers)
	if err != nil {
		return nil, err
	}
	if participant != nil {
		participant.Normalize()
	}
	if err := g.store.UpdateResponse(ctx, eventID, responseID, participant, checked, editable); err != nil {
		return nil, translate(err, "response")
	}
	g.logger.Info("response updated", zap.Int64("event_id", eventID), zap.Int64("response_id", responseID), zap.Bool("admin", actor.Admin))
	detail, err := g.store.GetResponse(ctx, eventID, responseID)
	if err != nil {
		return nil, translate(err, "response")
	}
	return detail, nil
}

// DeleteResponse removes a response.
func (g *Gateway) DeleteResponse(ctx context.Context, eventID, responseID int64, actor Actor) error {
	if _, _, err := g.AuthorizeEdit(ctx, eventID, responseID, actor); err != nil {
		return err
	}
	if err := g.store.DeleteResponse(ctx, eventID, responseID, editable); err != nil {
		return translate(err, "response")
	}
	g.logger.Info("response deleted", zap.Int64("event_id", eventID), zap.Int64("response_id", responseID), zap.Bool("admin", actor.Admin))
	return nil
}

func translate(err error, entity string) error {
	var invalid *store.InvalidAnswersError
	switch {
	case errors.Is(err, store.ErrNotFound):
		return apperr.NotFound(entity)
	case errors.As(err, &invalid):
		fields := make(map[string]string, len(invalid.QuestionIDs))
		for _, id := range invalid.QuestionIDs {
			fields[fmt.Sprintf("question.%d", id)] = "question does not belong to this event"
		}
		return apperr.Validation("invalid answers", fields)
	}
	return err
}
