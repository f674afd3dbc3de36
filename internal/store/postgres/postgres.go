// Package postgres implements store.Store on PostgreSQL via pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/eventforms/backend/internal/models"
	"github.com/eventforms/backend/internal/store"
)

var _ store.Store = (*Store)(nil)

// Store is the PostgreSQL-backed persistence layer.
type Store struct {
	pool   *pgxpool.Pool
	policy store.ParticipantPolicy
	logger *zap.Logger
}

// New creates a store on an existing pool. The store owns the pool after this call.
func New(pool *pgxpool.Pool, policy store.ParticipantPolicy, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy == "" {
		policy = store.ParticipantPerSubmission
	}
	return &Store{pool: pool, policy: policy, logger: logger}
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

// setList builds the SET clause of a partial UPDATE.
type setList struct {
	cols []string
	args []any
}

func (s *setList) add(col string, v any) {
	s.args = append(s.args, v)
	s.cols = append(s.cols, fmt.Sprintf("%s = $%d", col, len(s.args)))
}

func (s *setList) empty() bool { return len(s.cols) == 0 }

// where appends v as the next placeholder and returns it.
func (s *setList) where(v any) string {
	s.args = append(s.args, v)
	return fmt.Sprintf("$%d", len(s.args))
}

func (s *setList) String() string { return strings.Join(s.cols, ", ") }

func pgDate(d models.Date) pgtype.Date {
	return pgtype.Date{Time: d.Time(time.UTC), Valid: true}
}

func pgTime(t *models.TimeOfDay) pgtype.Time {
	if t == nil {
		return pgtype.Time{}
	}
	return pgtype.Time{Microseconds: int64(*t) * int64(time.Second/time.Microsecond), Valid: true}
}

func fromPgTime(t pgtype.Time) *models.TimeOfDay {
	if !t.Valid {
		return nil
	}
	v := models.TimeOfDay(t.Microseconds / int64(time.Second/time.Microsecond))
	return &v
}
