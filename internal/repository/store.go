package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iliyamo/karaoke-booking/internal/service"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the MySQL implementation of service.Store.
type Store struct {
	db *sql.DB
}

var _ service.Store = (*Store)(nil)

// NewStore returns a Store bound to db.
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// Run executes fn against the connection pool. Every statement commits on
// its own and FOR UPDATE clauses have no lasting effect.
func (s *Store) Run(ctx context.Context, fn func(q service.Queries) error) error {
	return fn(&Queries{db: s.db})
}

// WithinTx executes fn inside a transaction. The transaction is committed
// when fn returns nil and rolled back otherwise.
func (s *Store) WithinTx(ctx context.Context, fn func(q service.Queries) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(&Queries{db: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// Queries implements service.Queries on top of a pool or a transaction.
type Queries struct {
	db querier
}

var _ service.Queries = (*Queries)(nil)

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
