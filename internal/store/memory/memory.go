// Package memory provides an in-process implementation of store.Store used by tests
// and ephemeral deployments (STORE_DRIVER=memory).
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/eventforms/backend/internal/models"
	"github.com/eventforms/backend/internal/store"
)

var _ store.Store = (*Store)(nil)

// Store keeps all entities in maps guarded by one mutex. Every mutating operation
// holds the write lock for its full duration, which makes it a serialisable
// transaction: a response insert's count and insert can never interleave with
// another insert.
type Store struct {
	mu     sync.RWMutex
	policy store.ParticipantPolicy
	now    func() time.Time

	seq          int64
	events       map[int64]models.Event
	questions    map[int64]models.Question
	options      map[int64]models.Option
	participants map[int64]models.Participant
	responses    map[int64]models.Response
	answers      map[int64][]models.Answer
}

// New creates an empty store.
func New(policy store.ParticipantPolicy) *Store {
	if policy == "" {
		policy = store.ParticipantPerSubmission
	}
	return &Store{
		policy:       policy,
		now:          time.Now,
		events:       map[int64]models.Event{},
		questions:    map[int64]models.Question{},
		options:      map[int64]models.Option{},
		participants: map[int64]models.Participant{},
		responses:    map[int64]models.Response{},
		answers:      map[int64][]models.Answer{},
	}
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() {}

func (s *Store) nextID() int64 {
	s.seq++
	return s.seq
}

// ---- events ----

// GetEvent returns a copy of the event.
func (s *Store) GetEvent(_ context.Context, id int64) (*models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ev, ok := s.events[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &ev, nil
}

// CreateEvent assigns the id, the next sortOrder and timestamps.
func (s *Store) CreateEvent(_ context.Context, ev *models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ev.Status == "" {
		ev.Status = models.StatusPrivate
	}
	maxOrder := 0
	for _, e := range s.events {
		if e.SortOrder > maxOrder {
			maxOrder = e.SortOrder
		}
	}
	ev.ID = s.nextID()
	ev.SortOrder = maxOrder + 1
	ev.CreatedAt = s.now()
	ev.UpdatedAt = ev.CreatedAt
	s.events[ev.ID] = *ev
	return nil
}

// UpdateEvent applies the patch and returns the updated event.
func (s *Store) UpdateEvent(_ context.Context, id int64, patch models.EventPatch) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if !patch.Empty() {
		patch.Apply(&ev)
		ev.UpdatedAt = s.now()
		s.events[id] = ev
	}
	return &ev, nil
}

// DeleteEvent removes the event with its questions, options, responses and answers.
func (s *Store) DeleteEvent(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.events, id)
	for qid, q := range s.questions {
		if q.EventID == id {
			s.deleteQuestionLocked(qid)
		}
	}
	for rid, r := range s.responses {
		if r.EventID == id {
			delete(s.responses, rid)
			delete(s.answers, rid)
		}
	}
	return nil
}

// ListEvents returns matching events ordered by id.
func (s *Store) ListEvents(_ context.Context, statuses []models.Status) ([]models.EventSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	allowed := make(map[models.Status]bool, len(statuses))
	for _, st := range statuses {
		allowed[st] = true
	}
	counts := make(map[int64]int)
	for _, r := range s.responses {
		counts[r.EventID]++
	}
	list := make([]models.EventSummary, 0, len(s.events))
	for _, ev := range s.events {
		if !allowed[ev.Status] {
			continue
		}
		list = append(list, models.EventSummary{Event: ev, ResponsesCount: counts[ev.ID]})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

// ReorderEvents validates ids and assigns sortOrder 1..N.
func (s *Store) ReorderEvents(_ context.Context, ids []int64) error {
	if err := store.CheckOrder(ids); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var unknown []int64
	for _, id := range ids {
		if _, ok := s.events[id]; !ok {
			unknown = append(unknown, id)
		}
	}
	if len(unknown) > 0 {
		return &store.InvalidOrderError{Unknown: unknown}
	}
	now := s.now()
	for i, id := range ids {
		ev := s.events[id]
		ev.SortOrder = i + 1
		ev.UpdatedAt = now
		s.events[id] = ev
	}
	return nil
}

// ---- questions ----

// ListQuestions returns the event's questions by sortOrder.
func (s *Store) ListQuestions(_ context.Context, eventID int64) ([]models.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.questionsOfLocked(eventID), nil
}

func (s *Store) questionsOfLocked(eventID int64) []models.Question {
	list := []models.Question{}
	for _, q := range s.questions {
		if q.EventID == eventID {
			list = append(list, q)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].SortOrder != list[j].SortOrder {
			return list[i].SortOrder < list[j].SortOrder
		}
		return list[i].ID < list[j].ID
	})
	return list
}

// GetQuestion returns the question if it belongs to the event.
func (s *Store) GetQuestion(_ context.Context, eventID, questionID int64) (*models.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.questions[questionID]
	if !ok || q.EventID != eventID {
		return nil, store.ErrNotFound
	}
	return &q, nil
}

// CreateQuestion inserts a question and its options; sortOrder 0 means append.
func (s *Store) CreateQuestion(_ context.Context, q *models.Question, options ...*models.Option) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[q.EventID]; !ok {
		return store.ErrNotFound
	}
	if len(options) > 0 && !q.QuestionType.SupportsOptions() {
		return store.ErrOptionsNotSupported
	}
	if q.SortOrder == 0 {
		for _, other := range s.questions {
			if other.EventID == q.EventID && other.SortOrder >= q.SortOrder {
				q.SortOrder = other.SortOrder
			}
		}
		q.SortOrder++
	}
	q.ID = s.nextID()
	q.CreatedAt = s.now()
	s.questions[q.ID] = *q
	for _, opt := range options {
		opt.QuestionID = q.ID
		opt.ID = s.nextID()
		s.options[opt.ID] = *opt
	}
	return nil
}

// UpdateQuestion applies the patch.
func (s *Store) UpdateQuestion(_ context.Context, eventID, questionID int64, patch models.QuestionPatch) (*models.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.questions[questionID]
	if !ok || q.EventID != eventID {
		return nil, store.ErrNotFound
	}
	patch.Apply(&q)
	s.questions[questionID] = q
	return &q, nil
}

// DeleteQuestion removes the question, its options and the answers to it.
func (s *Store) DeleteQuestion(_ context.Context, eventID, questionID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.questions[questionID]
	if !ok || q.EventID != eventID {
		return store.ErrNotFound
	}
	s.deleteQuestionLocked(questionID)
	return nil
}

func (s *Store) deleteQuestionLocked(questionID int64) {
	delete(s.questions, questionID)
	for oid, o := range s.options {
		if o.QuestionID == questionID {
			delete(s.options, oid)
		}
	}
	for rid, list := range s.answers {
		kept := list[:0]
		for _, a := range list {
			if a.QuestionID != questionID {
				kept = append(kept, a)
			}
		}
		s.answers[rid] = kept
	}
}

// ListOptions returns the question's options by sortOrder.
func (s *Store) ListOptions(_ context.Context, questionID int64) ([]models.Option, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := []models.Option{}
	for _, o := range s.options {
		if o.QuestionID == questionID {
			list = append(list, o)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].SortOrder != list[j].SortOrder {
			return list[i].SortOrder < list[j].SortOrder
		}
		return list[i].ID < list[j].ID
	})
	return list, nil
}

// CreateOption inserts an option on a choice-type question.
func (s *Store) CreateOption(_ context.Context, opt *models.Option) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.questions[opt.QuestionID]
	if !ok {
		return store.ErrNotFound
	}
	if !q.QuestionType.SupportsOptions() {
		return store.ErrOptionsNotSupported
	}
	opt.ID = s.nextID()
	s.options[opt.ID] = *opt
	return nil
}

// UpdateOption changes the label and/or sortOrder.
func (s *Store) UpdateOption(_ context.Context, questionID, optionID int64, label *string, sortOrder *int) (*models.Option, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.options[optionID]
	if !ok || o.QuestionID != questionID {
		return nil, store.ErrNotFound
	}
	if label != nil {
		o.Label = *label
	}
	if sortOrder != nil {
		o.SortOrder = *sortOrder
	}
	s.options[optionID] = o
	return &o, nil
}

// DeleteOption removes an option.
func (s *Store) DeleteOption(_ context.Context, questionID, optionID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.options[optionID]
	if !ok || o.QuestionID != questionID {
		return store.ErrNotFound
	}
	delete(s.options, optionID)
	return nil
}

// ---- responses ----

// CreateResponse runs count, admit and insert under the write lock.
func (s *Store) CreateResponse(_ context.Context, in store.NewResponse, admit store.AdmitFunc) (*models.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[in.EventID]
	if !ok {
		return nil, store.ErrNotFound
	}
	count := 0
	for _, r := range s.responses {
		if r.EventID == in.EventID {
			count++
		}
	}
	if admit != nil {
		if err := admit(&ev, count); err != nil {
			return nil, err
		}
	}
	if err := s.checkAnswersLocked(in.EventID, in.Answers); err != nil {
		return nil, err
	}

	participantID := s.resolveParticipantLocked(in.Participant)
	now := s.now()
	r := models.Response{
		ID:            s.nextID(),
		EventID:       in.EventID,
		ParticipantID: participantID,
		EditToken:     in.EditToken,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.responses[r.ID] = r
	s.answers[r.ID] = s.copyAnswers(r.ID, in.Answers)
	return &r, nil
}

func (s *Store) resolveParticipantLocked(p models.Participant) int64 {
	if s.policy == store.ParticipantByEmail && p.Email != "" {
		var found int64
		for id, existing := range s.participants {
			if strings.EqualFold(existing.Email, p.Email) && (found == 0 || id < found) {
				found = id
			}
		}
		if found != 0 {
			return found
		}
	}
	p.ID = s.nextID()
	s.participants[p.ID] = p
	return p.ID
}

func (s *Store) checkAnswersLocked(eventID int64, answers []models.Answer) error {
	var invalid []int64
	for _, a := range answers {
		q, ok := s.questions[a.QuestionID]
		if !ok || q.EventID != eventID {
			invalid = append(invalid, a.QuestionID)
		}
	}
	if len(invalid) > 0 {
		return &store.InvalidAnswersError{QuestionIDs: invalid}
	}
	return nil
}

func (s *Store) copyAnswers(responseID int64, answers []models.Answer) []models.Answer {
	out := make([]models.Answer, 0, len(answers))
	for _, a := range answers {
		out = append(out, models.Answer{ResponseID: responseID, QuestionID: a.QuestionID, AnswerText: a.AnswerText})
	}
	return out
}

// GetResponse returns the response with participant and answers.
func (s *Store) GetResponse(_ context.Context, eventID, responseID int64) (*models.ResponseDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.responses[responseID]
	if !ok || r.EventID != eventID {
		return nil, store.ErrNotFound
	}
	d := s.detailLocked(r)
	return &d, nil
}

func (s *Store) detailLocked(r models.Response) models.ResponseDetail {
	answers := make([]models.Answer, 0, len(s.answers[r.ID]))
	for _, a := range s.answers[r.ID] {
		a.QuestionText = s.questions[a.QuestionID].QuestionText
		answers = append(answers, a)
	}
	return models.ResponseDetail{Response: r, Participant: s.participants[r.ParticipantID], Answers: answers}
}

// ListResponses returns the event's responses, newest first.
func (s *Store) ListResponses(_ context.Context, eventID int64) ([]models.ResponseDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := []models.ResponseDetail{}
	for _, r := range s.responses {
		if r.EventID == eventID {
			list = append(list, s.detailLocked(r))
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].ID > list[j].ID
	})
	return list, nil
}

// CountResponses returns the number of responses for the event.
func (s *Store) CountResponses(_ context.Context, eventID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, r := range s.responses {
		if r.EventID == eventID {
			n++
		}
	}
	return n, nil
}

// editableLocked finds the response and runs guard against its event.
func (s *Store) editableLocked(eventID, responseID int64, guard store.EditGuard) (models.Response, error) {
	r, ok := s.responses[responseID]
	if !ok || r.EventID != eventID {
		return models.Response{}, store.ErrNotFound
	}
	ev, ok := s.events[eventID]
	if !ok {
		return models.Response{}, store.ErrNotFound
	}
	if guard != nil {
		if err := guard(&ev); err != nil {
			return models.Response{}, err
		}
	}
	return r, nil
}

// UpdateResponse replaces the answers and, when given, the participant fields. A
// contact record shared with other responses is left alone; the response gets its own.
func (s *Store) UpdateResponse(_ context.Context, eventID, responseID int64, participant *models.Participant, answers []models.Answer, guard store.EditGuard) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.editableLocked(eventID, responseID, guard)
	if err != nil {
		return err
	}
	if err := s.checkAnswersLocked(eventID, answers); err != nil {
		return err
	}
	if participant != nil {
		p := *participant
		if s.sharedParticipantLocked(r) {
			p.ID = s.nextID()
			r.ParticipantID = p.ID
		} else {
			p.ID = r.ParticipantID
		}
		s.participants[p.ID] = p
	}
	s.answers[responseID] = s.copyAnswers(responseID, answers)
	r.UpdatedAt = s.now()
	s.responses[responseID] = r
	return nil
}

// sharedParticipantLocked reports whether r's contact record may be referenced by
// another response. Under email dedup any record can be picked up by a later submission.
func (s *Store) sharedParticipantLocked(r models.Response) bool {
	if s.policy == store.ParticipantByEmail {
		return true
	}
	for id, other := range s.responses {
		if id != r.ID && other.ParticipantID == r.ParticipantID {
			return true
		}
	}
	return false
}

// DeleteResponse removes a response of the event and its answers.
func (s *Store) DeleteResponse(_ context.Context, eventID, responseID int64, guard store.EditGuard) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.editableLocked(eventID, responseID, guard); err != nil {
		return err
	}
	delete(s.responses, responseID)
	delete(s.answers, responseID)
	return nil
}

// ParticipantCount returns the number of stored participants.
func (s *Store) ParticipantCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.participants)
}
