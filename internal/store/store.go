// Package store defines the persistence contracts for events, questions and responses.
package store

import (
	"context"
	"errors"
	"strings"

	"github.com/eventforms/backend/internal/models"
	"github.com/eventforms/backend/pkg/apperr"
)

var (
	// ErrNotFound is returned when an id does not resolve (or does not belong to its parent).
	ErrNotFound error = apperr.NotFound("record")
	// ErrOptionsNotSupported is returned when an option is added to a free-text question.
	ErrOptionsNotSupported error = apperr.Validation("options are only allowed for multiple-choice, dropdown or checkbox questions", nil)
)

// ParticipantPolicy controls how a submission's contact record is resolved.
type ParticipantPolicy string

const (
	// ParticipantPerSubmission inserts a new participant row for every submission.
	ParticipantPerSubmission ParticipantPolicy = "none"
	// ParticipantByEmail reuses the participant with the same (case-insensitive) email.
	ParticipantByEmail ParticipantPolicy = "email"
)

// ParseParticipantPolicy maps a config value onto a policy; empty means per-submission.
func ParseParticipantPolicy(s string) (ParticipantPolicy, error) {
	switch p := ParticipantPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "", ParticipantPerSubmission:
		return ParticipantPerSubmission, nil
	case ParticipantByEmail:
		return p, nil
	}
	return "", errors.New("invalid participant policy " + s)
}

// AdmitFunc decides, inside the insert transaction, whether another response may be
// recorded for ev given the current response count. It returns a non-nil error to deny.
type AdmitFunc func(ev *models.Event, responses int) error

// EditGuard decides, inside the edit transaction and with the event row locked against
// concurrent updates, whether a response of ev may still be changed. It returns a
// non-nil error to deny.
type EditGuard func(ev *models.Event) error

// NewResponse is the input to CreateResponse.
type NewResponse struct {
	EventID     int64
	Participant models.Participant
	Answers     []models.Answer
	EditToken   string
}

// InvalidAnswersError lists answers that reference questions outside the response's event.
type InvalidAnswersError struct {
	QuestionIDs []int64
}

func (e *InvalidAnswersError) Error() string {
	return "answers reference questions that do not belong to this event"
}

// EventStore persists events.
type EventStore interface {
	GetEvent(ctx context.Context, id int64) (*models.Event, error)
	CreateEvent(ctx context.Context, ev *models.Event) error
	UpdateEvent(ctx context.Context, id int64, patch models.EventPatch) (*models.Event, error)
	DeleteEvent(ctx context.Context, id int64) error
	// ListEvents returns events whose status is in statuses, with response counts.
	ListEvents(ctx context.Context, statuses []models.Status) ([]models.EventSummary, error)
	// ReorderEvents assigns sortOrder 1..N following ids, atomically. Duplicate or
	// unknown ids fail with *InvalidOrderError and change nothing.
	ReorderEvents(ctx context.Context, ids []int64) error
}

// InvalidOrderError reports why a reorder request was rejected.
type InvalidOrderError struct {
	Duplicates []int64
	Unknown    []int64
}

func (e *InvalidOrderError) Error() string {
	switch {
	case len(e.Duplicates) > 0:
		return "order contains duplicate event ids"
	case len(e.Unknown) > 0:
		return "order contains unknown event ids"
	}
	return "invalid order"
}

// CheckOrder rejects an empty order or one that repeats an id.
func CheckOrder(ids []int64) error {
	if len(ids) == 0 {
		return &InvalidOrderError{}
	}
	seen := make(map[int64]bool, len(ids))
	var dup []int64
	for _, id := range ids {
		if seen[id] {
			dup = append(dup, id)
		}
		seen[id] = true
	}
	if len(dup) > 0 {
		return &InvalidOrderError{Duplicates: dup}
	}
	return nil
}

// QuestionStore persists questions and their options.
type QuestionStore interface {
	ListQuestions(ctx context.Context, eventID int64) ([]models.Question, error)
	GetQuestion(ctx context.Context, eventID, questionID int64) (*models.Question, error)
	// CreateQuestion inserts q and any options in one transaction; IDs are written back.
	// Options on a free-text question fail with ErrOptionsNotSupported.
	CreateQuestion(ctx context.Context, q *models.Question, options ...*models.Option) error
	UpdateQuestion(ctx context.Context, eventID, questionID int64, patch models.QuestionPatch) (*models.Question, error)
	DeleteQuestion(ctx context.Context, eventID, questionID int64) error

	ListOptions(ctx context.Context, questionID int64) ([]models.Option, error)
	// CreateOption fails with ErrOptionsNotSupported for free-text questions.
	CreateOption(ctx context.Context, opt *models.Option) error
	UpdateOption(ctx context.Context, questionID, optionID int64, label *string, sortOrder *int) (*models.Option, error)
	DeleteOption(ctx context.Context, questionID, optionID int64) error
}

// ResponseStore is the response ledger.
type ResponseStore interface {
	// CreateResponse locks the event, counts its responses, asks admit, and inserts the
	// participant, response and answers in one transaction.
	CreateResponse(ctx context.Context, in NewResponse, admit AdmitFunc) (*models.Response, error)
	GetResponse(ctx context.Context, eventID, responseID int64) (*models.ResponseDetail, error)
	ListResponses(ctx context.Context, eventID int64) ([]models.ResponseDetail, error)
	CountResponses(ctx context.Context, eventID int64) (int, error)
	// UpdateResponse replaces the answers (and participant fields when non-nil) atomically.
	// New participant fields never touch a contact record shared with other responses:
	// the response is moved onto a fresh record instead.
	UpdateResponse(ctx context.Context, eventID, responseID int64, participant *models.Participant, answers []models.Answer, guard EditGuard) error
	DeleteResponse(ctx context.Context, eventID, responseID int64, guard EditGuard) error
}

// Store is the full persistence surface.
type Store interface {
	EventStore
	QuestionStore
	ResponseStore
	Ping(ctx context.Context) error
	Close()
}
