package relational

import (
	"context"
	"database/sql"
	"errors"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Scanner is the subset of *sql.Rows handed to row callbacks.
type Scanner interface {
	Scan(dest ...any) error
}

// Executor issues statements against a querier, rebinding placeholders and
// classifying errors.
type Executor struct {
	q       querier
	dialect Dialect
}

// Dialect returns the SQL dialect of the executor.
func (e Executor) Dialect() Dialect { return e.dialect }

// Exec runs a statement and returns the number of affected rows.
func (e Executor) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := e.q.ExecContext(ctx, e.dialect.Rebind(query), args...)
	if err != nil {
		return 0, classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, classify(err)
	}
	return n, nil
}

// Insert runs an INSERT ... RETURNING <id> statement and returns the id.
func (e Executor) Insert(ctx context.Context, query string, args ...any) (int64, error) {
	var id int64
	if err := e.q.QueryRowContext(ctx, e.dialect.Rebind(query), args...).Scan(&id); err != nil {
		return 0, classify(err)
	}
	return id, nil
}

// Get scans a single row into dest. It reports false when no row matched.
func (e Executor) Get(ctx context.Context, query string, args []any, dest ...any) (bool, error) {
	err := e.q.QueryRowContext(ctx, e.dialect.Rebind(query), args...).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, classify(err)
	}
	return true, nil
}

// Exists reports whether query yields at least one row.
func (e Executor) Exists(ctx context.Context, query string, args ...any) (bool, error) {
	var one int
	return e.Get(ctx, query, args, &one)
}

// Select runs a query and invokes scan once per row.
func (e Executor) Select(ctx context.Context, query string, args []any, scan func(Scanner) error) error {
	rows, err := e.q.QueryContext(ctx, e.dialect.Rebind(query), args...)
	if err != nil {
		return classify(err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return classify(err)
		}
	}
	return classify(rows.Err())
}

// Exec runs a statement on a borrowed connection.
func (d *DB) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	var n int64
	err := d.With(ctx, func(c *Conn) error {
		var err error
		n, err = c.Exec(ctx, query, args...)
		return err
	})
	return n, err
}

// Insert runs an INSERT ... RETURNING statement on a borrowed connection.
func (d *DB) Insert(ctx context.Context, query string, args ...any) (int64, error) {
	var id int64
	err := d.With(ctx, func(c *Conn) error {
		var err error
		id, err = c.Insert(ctx, query, args...)
		return err
	})
	return id, err
}

// Get scans a single row on a borrowed connection.
func (d *DB) Get(ctx context.Context, query string, args []any, dest ...any) (bool, error) {
	var found bool
	err := d.With(ctx, func(c *Conn) error {
		var err error
		found, err = c.Get(ctx, query, args, dest...)
		return err
	})
	return found, err
}

// Exists reports whether query matches a row, on a borrowed connection.
func (d *DB) Exists(ctx context.Context, query string, args ...any) (bool, error) {
	var found bool
	err := d.With(ctx, func(c *Conn) error {
		var err error
		found, err = c.Exists(ctx, query, args...)
		return err
	})
	return found, err
}

// Select runs a query on a borrowed connection.
func (d *DB) Select(ctx context.Context, query string, args []any, scan func(Scanner) error) error {
	return d.With(ctx, func(c *Conn) error {
		return c.Select(ctx, query, args, scan)
	})
}
