package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/eventforms/backend/internal/models"
	"github.com/eventforms/backend/internal/store"
)

const eventColumns = `id, name, event_date, start_time, end_time, location, description, flyer_path, status,
	allow_response_edit, capacity_limit, close_on, email_confirmation, sort_order, created_at, updated_at`

func scanEvent(row pgx.Row, extra ...any) (*models.Event, error) {
	var (
		ev         models.Event
		date       pgtype.Date
		start, end pgtype.Time
		status     string
	)
	dest := append([]any{&ev.ID, &ev.Name, &date, &start, &end, &ev.Location, &ev.Description, &ev.FlyerPath, &status,
		&ev.AllowResponseEdit, &ev.CapacityLimit, &ev.CloseOn, &ev.EmailConfirmation, &ev.SortOrder, &ev.CreatedAt, &ev.UpdatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	ev.Date = models.DateOf(date.Time)
	ev.Time = fromPgTime(start)
	ev.EndTime = fromPgTime(end)
	ev.Status = models.Status(status)
	return &ev, nil
}

// GetEvent returns an event by id.
func (s *Store) GetEvent(ctx context.Context, id int64) (*models.Event, error) {
	ev, err := scanEvent(s.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return ev, nil
}

// CreateEvent inserts an event at the end of the manual order.
func (s *Store) CreateEvent(ctx context.Context, ev *models.Event) error {
	if ev.Status == "" {
		ev.Status = models.StatusPrivate
	}
	const q = `INSERT INTO events (name, event_date, start_time, end_time, location, description, flyer_path, status,
		allow_response_edit, capacity_limit, close_on, email_confirmation, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, (SELECT COALESCE(MAX(sort_order), 0) + 1 FROM events))
		RETURNING id, sort_order, created_at, updated_at`
	return s.pool.QueryRow(ctx, q, ev.Name, pgDate(ev.Date), pgTime(ev.Time), pgTime(ev.EndTime), ev.Location,
		ev.Description, ev.FlyerPath, string(ev.Status), ev.AllowResponseEdit, ev.CapacityLimit, ev.CloseOn, ev.EmailConfirmation).
		Scan(&ev.ID, &ev.SortOrder, &ev.CreatedAt, &ev.UpdatedAt)
}

// UpdateEvent writes the set fields of patch.
func (s *Store) UpdateEvent(ctx context.Context, id int64, patch models.EventPatch) (*models.Event, error) {
	var set setList
	if patch.Name.Set {
		set.add("name", patch.Name.Value)
	}
	if patch.Date.Set {
		set.add("event_date", pgDate(patch.Date.Value))
	}
	if patch.Time.Set {
		set.add("start_time", pgTime(patch.Time.Ptr()))
	}
	if patch.EndTime.Set {
		set.add("end_time", pgTime(patch.EndTime.Ptr()))
	}
	if patch.Location.Set {
		set.add("location", patch.Location.Value)
	}
	if patch.Description.Set {
		set.add("description", patch.Description.Value)
	}
	if patch.FlyerPath.Set {
		set.add("flyer_path", patch.FlyerPath.Value)
	}
	if patch.Status.Set && !patch.Status.Null {
		set.add("status", string(patch.Status.Value))
	}
	if patch.AllowResponseEdit.Set {
		set.add("allow_response_edit", patch.AllowResponseEdit.Value)
	}
	if patch.CapacityLimit.Set {
		set.add("capacity_limit", patch.CapacityLimit.Ptr())
	}
	if patch.CloseOn.Set {
		set.add("close_on", patch.CloseOn.Ptr())
	}
	if patch.EmailConfirmation.Set {
		set.add("email_confirmation", patch.EmailConfirmation.Value)
	}
	if patch.SortOrder.Set {
		set.add("sort_order", patch.SortOrder.Value)
	}
	if set.empty() {
		return s.GetEvent(ctx, id)
	}
	q := fmt.Sprintf(`UPDATE events SET %s, updated_at = NOW() WHERE id = %s RETURNING %s`, set.String(), set.where(id), eventColumns)
	ev, err := scanEvent(s.pool.QueryRow(ctx, q, set.args...))
	if err != nil {
		return nil, notFound(err)
	}
	return ev, nil
}

// DeleteEvent removes the event; questions, options, responses and answers cascade.
func (s *Store) DeleteEvent(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ListEvents returns events in the given statuses with their response counts, by id.
func (s *Store) ListEvents(ctx context.Context, statuses []models.Status) ([]models.EventSummary, error) {
	names := make([]string, len(statuses))
	for i, st := range statuses {
		names[i] = string(st)
	}
	rows, err := s.pool.Query(ctx, `SELECT `+eventColumns+`,
		(SELECT COUNT(*) FROM responses r WHERE r.event_id = events.id)
		FROM events WHERE status = ANY($1) ORDER BY id`, names)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.EventSummary{}
	for rows.Next() {
		var count int
		ev, err := scanEvent(rows, &count)
		if err != nil {
			return nil, err
		}
		list = append(list, models.EventSummary{Event: *ev, ResponsesCount: count})
	}
	return list, rows.Err()
}

// ReorderEvents locks the listed events and assigns sortOrder 1..N in one transaction.
func (s *Store) ReorderEvents(ctx context.Context, ids []int64) error {
	if err := store.CheckOrder(ids); err != nil {
		return err
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `SELECT id FROM events WHERE id = ANY($1) FOR UPDATE`, ids)
	if err != nil {
		return err
	}
	found := make(map[int64]bool, len(ids))
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		found[id] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	var unknown []int64
	for _, id := range ids {
		if !found[id] {
			unknown = append(unknown, id)
		}
	}
	if len(unknown) > 0 {
		return &store.InvalidOrderError{Unknown: unknown}
	}

	batch := &pgx.Batch{}
	for i, id := range ids {
		batch.Queue(`UPDATE events SET sort_order = $1, updated_at = NOW() WHERE id = $2`, i+1, id)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
