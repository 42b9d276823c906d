package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
)

// Store runs settlement queries against Postgres through an ent driver.
// Every write is a single statement; nothing here opens a transaction.
type Store struct {
	drv dialect.Driver
	now func() time.Time
}

func New(drv dialect.Driver) *Store {
	return &Store{drv: drv, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Store) Close() error {
	return s.drv.Close()
}

// Ping checks the connection with a trivial query.
func (s *Store) Ping(ctx context.Context) error {
	return s.query(ctx, "SELECT 1", nil, func(rows *entsql.Rows) error { return nil })
}

func builder() *entsql.DialectBuilder {
	return entsql.Dialect(dialect.Postgres)
}

type querier interface {
	Query() (string, []any)
}

func (s *Store) query(ctx context.Context, q string, args []any, scan func(*entsql.Rows) error) error {
	if args == nil {
		args = []any{}
	}
	rows := &entsql.Rows{}
	if err := s.drv.Query(ctx, q, args, rows); err != nil {
		return err
	}
	defer rows.Close()

	if err := scan(rows); err != nil {
		return err
	}
	return rows.Err()
}

func (s *Store) queryBuilder(ctx context.Context, b querier, scan func(*entsql.Rows) error) error {
	q, args := b.Query()
	return s.query(ctx, q, args, scan)
}

// exec runs a statement and returns the number of affected rows.
func (s *Store) exec(ctx context.Context, q string, args []any) (int64, error) {
	var res sql.Result
	if err := s.drv.Exec(ctx, q, args, &res); err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

func (s *Store) execBuilder(ctx context.Context, b querier) (int64, error) {
	q, args := b.Query()
	return s.exec(ctx, q, args)
}
