package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/eventforms/backend/internal/models"
	"github.com/eventforms/backend/internal/store"
)

const detailQuery = `SELECT r.id, r.event_id, r.participant_id, r.edit_token, r.created_at, r.updated_at,
	p.first_name, p.last_name, p.email, p.phone, p.home_number, p.street, p.apartment, p.city, p.state, p.zipcode
	FROM responses r JOIN participants p ON p.id = r.participant_id`

func scanDetail(row pgx.Row) (*models.ResponseDetail, error) {
	var d models.ResponseDetail
	p := &d.Participant
	err := row.Scan(&d.ID, &d.EventID, &d.ParticipantID, &d.EditToken, &d.CreatedAt, &d.UpdatedAt,
		&p.FirstName, &p.LastName, &p.Email, &p.Phone, &p.HomeNumber, &p.Street, &p.Apartment, &p.City, &p.State, &p.Zipcode)
	if err != nil {
		return nil, err
	}
	p.ID = d.ParticipantID
	d.Answers = []models.Answer{}
	return &d, nil
}

// CreateResponse locks the event row, counts its responses, consults admit, then inserts
// the participant, the response and its answers. Concurrent submissions to the same
// event serialise on the row lock, so the count admit sees is exact.
func (s *Store) CreateResponse(ctx context.Context, in store.NewResponse, admit store.AdmitFunc) (*models.Response, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ev, err := scanEvent(tx.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1 FOR UPDATE`, in.EventID))
	if err != nil {
		return nil, notFound(err)
	}
	var count int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM responses WHERE event_id = $1`, in.EventID).Scan(&count); err != nil {
		return nil, err
	}
	if admit != nil {
		if err := admit(ev, count); err != nil {
			return nil, err
		}
	}
	if err := checkAnswers(ctx, tx, in.EventID, in.Answers); err != nil {
		return nil, err
	}

	participantID, err := s.resolveParticipant(ctx, tx, in.Participant)
	if err != nil {
		return nil, err
	}
	r := models.Response{EventID: in.EventID, ParticipantID: participantID, EditToken: in.EditToken}
	if err := tx.QueryRow(ctx, `INSERT INTO responses (event_id, participant_id, edit_token) VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`, in.EventID, participantID, in.EditToken).
		Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	if err := insertAnswers(ctx, tx, r.ID, in.Answers); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	s.logger.Debug("response recorded", zap.Int64("event_id", in.EventID), zap.Int64("response_id", r.ID), zap.Int("count", count+1))
	return &r, nil
}

func (s *Store) resolveParticipant(ctx context.Context, tx pgx.Tx, p models.Participant) (int64, error) {
	var id int64
	if s.policy == store.ParticipantByEmail && p.Email != "" {
		err := tx.QueryRow(ctx, `SELECT id FROM participants WHERE LOWER(email) = LOWER($1) ORDER BY id LIMIT 1`, p.Email).Scan(&id)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return 0, err
		}
	}
	err := tx.QueryRow(ctx, `INSERT INTO participants
		(first_name, last_name, email, phone, home_number, street, apartment, city, state, zipcode)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`,
		p.FirstName, p.LastName, p.Email, p.Phone, p.HomeNumber, p.Street, p.Apartment, p.City, p.State, p.Zipcode).Scan(&id)
	return id, err
}

// checkAnswers fails with *store.InvalidAnswersError when an answer names a question
// outside eventID.
func checkAnswers(ctx context.Context, q querier, eventID int64, answers []models.Answer) error {
	if len(answers) == 0 {
		return nil
	}
	rows, err := q.Query(ctx, `SELECT id FROM questions WHERE event_id = $1`, eventID)
	if err != nil {
		return err
	}
	defer rows.Close()
	own := map[int64]bool{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return err
		}
		own[id] = true
	}
	if err := rows.Err(); err != nil {
		return err
	}
	var invalid []int64
	for _, a := range answers {
		if !own[a.QuestionID] {
			invalid = append(invalid, a.QuestionID)
		}
	}
	if len(invalid) > 0 {
		return &store.InvalidAnswersError{QuestionIDs: invalid}
	}
	return nil
}

func insertAnswers(ctx context.Context, tx pgx.Tx, responseID int64, answers []models.Answer) error {
	if len(answers) == 0 {
		return nil
	}
	rows := make([][]any, len(answers))
	for i, a := range answers {
		rows[i] = []any{responseID, a.QuestionID, a.AnswerText}
	}
	_, err := tx.CopyFrom(ctx, pgx.Identifier{"answers"}, []string{"response_id", "question_id", "answer_text"}, pgx.CopyFromRows(rows))
	return err
}

func loadAnswers(ctx context.Context, q querier, details []*models.ResponseDetail) error {
	if len(details) == 0 {
		return nil
	}
	ids := make([]int64, len(details))
	byID := make(map[int64]*models.ResponseDetail, len(details))
	for i, d := range details {
		ids[i] = d.ID
		byID[d.ID] = d
	}
	rows, err := q.Query(ctx, `SELECT a.response_id, a.question_id, q.question_text, a.answer_text
		FROM answers a JOIN questions q ON q.id = a.question_id
		WHERE a.response_id = ANY($1) ORDER BY a.response_id, q.sort_order, a.id`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var a models.Answer
		if err := rows.Scan(&a.ResponseID, &a.QuestionID, &a.QuestionText, &a.AnswerText); err != nil {
			return err
		}
		d := byID[a.ResponseID]
		d.Answers = append(d.Answers, a)
	}
	return rows.Err()
}

// GetResponse returns a response of the event with participant and answers.
func (s *Store) GetResponse(ctx context.Context, eventID, responseID int64) (*models.ResponseDetail, error) {
	d, err := scanDetail(s.pool.QueryRow(ctx, detailQuery+` WHERE r.id = $1 AND r.event_id = $2`, responseID, eventID))
	if err != nil {
		return nil, notFound(err)
	}
	if err := loadAnswers(ctx, s.pool, []*models.ResponseDetail{d}); err != nil {
		return nil, err
	}
	return d, nil
}

// ListResponses returns the event's responses, newest first.
func (s *Store) ListResponses(ctx context.Context, eventID int64) ([]models.ResponseDetail, error) {
	rows, err := s.pool.Query(ctx, detailQuery+` WHERE r.event_id = $1 ORDER BY r.created_at DESC, r.id DESC`, eventID)
	if err != nil {
		return nil, err
	}
	var ptrs []*models.ResponseDetail
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		ptrs = append(ptrs, d)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := loadAnswers(ctx, s.pool, ptrs); err != nil {
		return nil, err
	}
	list := make([]models.ResponseDetail, len(ptrs))
	for i, d := range ptrs {
		list[i] = *d
	}
	return list, nil
}

// CountResponses returns the event's response count.
func (s *Store) CountResponses(ctx context.Context, eventID int64) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM responses WHERE event_id = $1`, eventID).Scan(&n)
	return n, err
}

// lockForEdit share-locks the event row, runs guard against it and locks the response.
// An admin changing the event's edit flag waits for the edit to finish, and the other
// way round.
func lockForEdit(ctx context.Context, tx pgx.Tx, eventID, responseID int64, guard store.EditGuard) (int64, error) {
	ev, err := scanEvent(tx.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1 FOR SHARE`, eventID))
	if err != nil {
		return 0, notFound(err)
	}
	var participantID int64
	if err := tx.QueryRow(ctx, `SELECT participant_id FROM responses WHERE id = $1 AND event_id = $2 FOR UPDATE`,
		responseID, eventID).Scan(&participantID); err != nil {
		return 0, notFound(err)
	}
	if guard != nil {
		if err := guard(ev); err != nil {
			return 0, err
		}
	}
	return participantID, nil
}

// UpdateResponse locks the response, replaces its answers and, when participant is
// non-nil, rewrites the contact fields. A contact record that other responses can
// reference is never rewritten; the response is pointed at a fresh record instead.
func (s *Store) UpdateResponse(ctx context.Context, eventID, responseID int64, participant *models.Participant, answers []models.Answer, guard store.EditGuard) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	participantID, err := lockForEdit(ctx, tx, eventID, responseID, guard)
	if err != nil {
		return err
	}
	if err := checkAnswers(ctx, tx, eventID, answers); err != nil {
		return err
	}
	if p := participant; p != nil {
		shared := s.policy == store.ParticipantByEmail
		if !shared {
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM responses WHERE participant_id = $1 AND id <> $2)`,
				participantID, responseID).Scan(&shared); err != nil {
				return err
			}
		}
		if shared {
			if err := tx.QueryRow(ctx, `INSERT INTO participants
				(first_name, last_name, email, phone, home_number, street, apartment, city, state, zipcode)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`,
				p.FirstName, p.LastName, p.Email, p.Phone, p.HomeNumber, p.Street, p.Apartment, p.City, p.State, p.Zipcode).
				Scan(&participantID); err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, `UPDATE responses SET participant_id = $1 WHERE id = $2`, participantID, responseID); err != nil {
				return err
			}
		} else if _, err := tx.Exec(ctx, `UPDATE participants SET first_name = $1, last_name = $2, email = $3, phone = $4,
			home_number = $5, street = $6, apartment = $7, city = $8, state = $9, zipcode = $10 WHERE id = $11`,
			p.FirstName, p.LastName, p.Email, p.Phone, p.HomeNumber, p.Street, p.Apartment, p.City, p.State, p.Zipcode,
			participantID); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(ctx, `DELETE FROM answers WHERE response_id = $1`, responseID); err != nil {
		return err
	}
	if err := insertAnswers(ctx, tx, responseID, answers); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `UPDATE responses SET updated_at = NOW() WHERE id = $1`, responseID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// DeleteResponse removes a response of the event; answers cascade.
func (s *Store) DeleteResponse(ctx context.Context, eventID, responseID int64, guard store.EditGuard) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := lockForEdit(ctx, tx, eventID, responseID, guard); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM responses WHERE id = $1`, responseID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
