package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/finsec-io/finsec-api/internal/database"
	"github.com/google/uuid"
)

var ErrNotFound = errors.New("record not found")

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store handles all database operations. A Store returned by WithTx is bound
// to one transaction and is the unit of work passed to callers.
type Store struct {
	db  *database.DB
	q   querier
	tx  *sql.Tx
	now func() time.Time
}

// New creates a new store instance
func New(db *database.DB) *Store {
	return &Store{
		db:  db,
		q:   db.DB,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// WithTx runs fn inside a single database transaction. All writes made through
// the tx-bound store commit together or are rolled back when fn returns an
// error or panics. Calling WithTx on a tx-bound store joins the outer unit.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Store) error) error {
	if s.tx != nil {
		return fn(s)
	}

	var opts *sql.TxOptions
	if s.db.Dialect == database.DialectPostgres {
		opts = &sql.TxOptions{Isolation: sql.LevelReadCommitted}
	}

	tx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	bound := &Store{db: s.db, q: tx, tx: tx, now: s.now}

	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	if err := fn(bound); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	committed = true
	return nil
}

func (s *Store) rebind(query string) string {
	return s.db.Rebind(query)
}

func (s *Store) forUpdate() string {
	if s.tx == nil {
		return ""
	}
	return s.db.ForUpdate()
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.q.ExecContext(ctx, s.rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.q.QueryRowContext(ctx, s.rebind(query), args...)
}

func (s *Store) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.q.QueryContext(ctx, s.rebind(query), args...)
}

// execAffected runs a write and returns the number of rows it touched.
func (s *Store) execAffected(ctx context.Context, query string, args ...any) (int64, error) {
	result, err := s.exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// generateID generates a unique ID
func generateID() string {
	return uuid.NewString()
}
