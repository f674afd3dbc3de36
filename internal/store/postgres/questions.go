package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/eventforms/backend/internal/models"
	"github.com/eventforms/backend/internal/store"
)

const questionColumns = `id, event_id, question_text, question_type, is_required, sort_order, created_at`

func scanQuestion(row pgx.Row) (*models.Question, error) {
	var (
		q     models.Question
		qtype string
	)
	if err := row.Scan(&q.ID, &q.EventID, &q.QuestionText, &qtype, &q.IsRequired, &q.SortOrder, &q.CreatedAt); err != nil {
		return nil, err
	}
	q.QuestionType = models.QuestionType(qtype)
	return &q, nil
}

// ListQuestions returns the event's questions in display order.
func (s *Store) ListQuestions(ctx context.Context, eventID int64) ([]models.Question, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+questionColumns+` FROM questions WHERE event_id = $1 ORDER BY sort_order, id`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Question{}
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *q)
	}
	return list, rows.Err()
}

// GetQuestion returns a question scoped to its event.
func (s *Store) GetQuestion(ctx context.Context, eventID, questionID int64) (*models.Question, error) {
	q, err := scanQuestion(s.pool.QueryRow(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE id = $1 AND event_id = $2`, questionID, eventID))
	if err != nil {
		return nil, notFound(err)
	}
	return q, nil
}

// CreateQuestion inserts a question and its options in one transaction; a zero
// sortOrder appends after the event's last question.
func (s *Store) CreateQuestion(ctx context.Context, q *models.Question, options ...*models.Option) error {
	if len(options) > 0 && !q.QuestionType.SupportsOptions() {
		return store.ErrOptionsNotSupported
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const stmt = `INSERT INTO questions (event_id, question_text, question_type, is_required, sort_order)
		SELECT $1::bigint, $2::text, $3::text, $4::boolean,
			COALESCE(NULLIF($5::int, 0), (SELECT COALESCE(MAX(sort_order), 0) + 1 FROM questions WHERE event_id = $1::bigint))
		WHERE EXISTS (SELECT 1 FROM events WHERE id = $1::bigint)
		RETURNING id, sort_order, created_at`
	if err := tx.QueryRow(ctx, stmt, q.EventID, q.QuestionText, string(q.QuestionType), q.IsRequired, q.SortOrder).
		Scan(&q.ID, &q.SortOrder, &q.CreatedAt); err != nil {
		return notFound(err)
	}
	for _, opt := range options {
		opt.QuestionID = q.ID
		if err := tx.QueryRow(ctx,
			`INSERT INTO question_options (question_id, label, sort_order) VALUES ($1, $2, $3) RETURNING id`,
			opt.QuestionID, opt.Label, opt.SortOrder).Scan(&opt.ID); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// UpdateQuestion writes the set fields of patch.
func (s *Store) UpdateQuestion(ctx context.Context, eventID, questionID int64, patch models.QuestionPatch) (*models.Question, error) {
	var set setList
	if patch.QuestionText.Set {
		set.add("question_text", patch.QuestionText.Value)
	}
	if patch.QuestionType.Set && !patch.QuestionType.Null {
		set.add("question_type", string(patch.QuestionType.Value))
	}
	if patch.IsRequired.Set {
		set.add("is_required", patch.IsRequired.Value)
	}
	if patch.SortOrder.Set {
		set.add("sort_order", patch.SortOrder.Value)
	}
	if set.empty() {
		return s.GetQuestion(ctx, eventID, questionID)
	}
	stmt := fmt.Sprintf(`UPDATE questions SET %s WHERE id = %s AND event_id = %s RETURNING %s`,
		set.String(), set.where(questionID), set.where(eventID), questionColumns)
	q, err := scanQuestion(s.pool.QueryRow(ctx, stmt, set.args...))
	if err != nil {
		return nil, notFound(err)
	}
	return q, nil
}

// DeleteQuestion removes a question; its options and answers cascade.
func (s *Store) DeleteQuestion(ctx context.Context, eventID, questionID int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM questions WHERE id = $1 AND event_id = $2`, questionID, eventID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ListOptions returns a question's options in display order.
func (s *Store) ListOptions(ctx context.Context, questionID int64) ([]models.Option, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, question_id, label, sort_order FROM question_options WHERE question_id = $1 ORDER BY sort_order, id`, questionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Option{}
	for rows.Next() {
		var o models.Option
		if err := rows.Scan(&o.ID, &o.QuestionID, &o.Label, &o.SortOrder); err != nil {
			return nil, err
		}
		list = append(list, o)
	}
	return list, rows.Err()
}

// CreateOption inserts an option after checking the question takes options.
func (s *Store) CreateOption(ctx context.Context, opt *models.Option) error {
	var qtype string
	if err := s.pool.QueryRow(ctx, `SELECT question_type FROM questions WHERE id = $1`, opt.QuestionID).Scan(&qtype); err != nil {
		return notFound(err)
	}
	if !models.QuestionType(qtype).SupportsOptions() {
		return store.ErrOptionsNotSupported
	}
	return s.pool.QueryRow(ctx,
		`INSERT INTO question_options (question_id, label, sort_order) VALUES ($1, $2, $3) RETURNING id`,
		opt.QuestionID, opt.Label, opt.SortOrder).Scan(&opt.ID)
}

// UpdateOption changes label and/or sortOrder; nil leaves the column as is.
func (s *Store) UpdateOption(ctx context.Context, questionID, optionID int64, label *string, sortOrder *int) (*models.Option, error) {
	var o models.Option
	err := s.pool.QueryRow(ctx, `UPDATE question_options
		SET label = COALESCE($1, label), sort_order = COALESCE($2, sort_order)
		WHERE id = $3 AND question_id = $4
		RETURNING id, question_id, label, sort_order`, label, sortOrder, optionID, questionID).
		Scan(&o.ID, &o.QuestionID, &o.Label, &o.SortOrder)
	if err != nil {
		return nil, notFound(err)
	}
	return &o, nil
}

// DeleteOption removes an option.
func (s *Store) DeleteOption(ctx context.Context, questionID, optionID int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM question_options WHERE id = $1 AND question_id = $2`, optionID, questionID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
