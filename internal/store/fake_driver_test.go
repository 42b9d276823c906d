package store

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"sync"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
)

type recordedCall struct {
	query string
	args  []any
}

// fakeDriver records statements and answers them from canned responses.
type fakeDriver struct {
	mu      sync.Mutex
	execs   []recordedCall
	queries []recordedCall

	execFn  func(query string, args []any) (int64, error)
	queryFn func(query string, args []any) ([][]any, error)
}

var _ dialect.Driver = (*fakeDriver)(nil)

func (d *fakeDriver) Exec(_ context.Context, query string, args, v any) error {
	argv, _ := args.([]any)
	d.mu.Lock()
	d.execs = append(d.execs, recordedCall{query: query, args: argv})
	d.mu.Unlock()

	var n int64 = 1
	if d.execFn != nil {
		var err error
		if n, err = d.execFn(query, argv); err != nil {
			return err
		}
	}
	if res, ok := v.(*sql.Result); ok {
		*res = fakeResult(n)
	}
	return nil
}

func (d *fakeDriver) Query(_ context.Context, query string, args, v any) error {
	argv, _ := args.([]any)
	d.mu.Lock()
	d.queries = append(d.queries, recordedCall{query: query, args: argv})
	d.mu.Unlock()

	var data [][]any
	if d.queryFn != nil {
		var err error
		if data, err = d.queryFn(query, argv); err != nil {
			return err
		}
	}
	rows, ok := v.(*entsql.Rows)
	if !ok {
		return fmt.Errorf("unexpected query target %T", v)
	}
	*rows = entsql.Rows{ColumnScanner: &fakeRows{data: data, pos: -1}}
	return nil
}

func (d *fakeDriver) Tx(context.Context) (dialect.Tx, error) {
	return nil, fmt.Errorf("transactions are not used")
}

func (d *fakeDriver) Close() error    { return nil }
func (d *fakeDriver) Dialect() string { return dialect.Postgres }

type fakeResult int64

func (r fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r fakeResult) RowsAffected() (int64, error) { return int64(r), nil }

type fakeRows struct {
	data [][]any
	pos  int
}

func (r *fakeRows) Close() error                            { return nil }
func (r *fakeRows) ColumnTypes() ([]*sql.ColumnType, error) { return nil, nil }
func (r *fakeRows) Columns() ([]string, error)              { return nil, nil }
func (r *fakeRows) Err() error                              { return nil }
func (r *fakeRows) NextResultSet() bool                     { return false }

func (r *fakeRows) Next() bool {
	r.pos++
	return r.pos < len(r.data)
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.data[r.pos]
	if len(row) != len(dest) {
		return fmt.Errorf("scan: %d values for %d destinations", len(row), len(dest))
	}
	for i, d := range dest {
		if sc, ok := d.(sql.Scanner); ok {
			if err := sc.Scan(row[i]); err != nil {
				return fmt.Errorf("scan column %d: %w", i, err)
			}
			continue
		}
		if row[i] == nil {
			continue
		}
		dv := reflect.ValueOf(d).Elem()
		sv := reflect.ValueOf(row[i])
		if !sv.Type().ConvertibleTo(dv.Type()) {
			return fmt.Errorf("scan column %d: cannot convert %T to %s", i, row[i], dv.Type())
		}
		dv.Set(sv.Convert(dv.Type()))
	}
	return nil
}
