// Package testutil provides store fixtures for tests: a schema-initialised
// SQLite file per test and a recording stub driver for exercising the
// PostgreSQL code path without a server.
package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"organcore/internal/infra/persistence/relational"
)

// OpenSQLite opens a fresh SQLite store under t.TempDir with the schema applied.
func OpenSQLite(t testing.TB, opts relational.Options) *relational.DB {
	t.Helper()
	ctx := context.Background()
	db, err := relational.Open(ctx, relational.DriverSQLite, filepath.Join(t.TempDir(), "organcore.db"), opts)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.ApplySchema(ctx); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return db
}

// Statement is one recorded driver call.
type Statement struct {
	Query string
	Args  []any
}

// StubConn records statements and replays canned results.
type StubConn struct {
	mu         sync.Mutex
	Statements []Statement
	// Err, when set, is returned by every Exec and Query.
	Err error
	// NextID is returned as the single column of every query result.
	NextID int64
	// FailPing makes Ping fail.
	FailPing bool
}

var stubSeq atomic.Int64

// NewStubDB registers a fresh driver backed by conn and returns an opener
// suitable for relational.OverrideSQLOpen.
func NewStubDB(conn *StubConn) func(driverName, dsn string) (*sql.DB, error) {
	name := fmt.Sprintf("organcore-stub-%d", stubSeq.Add(1))
	sql.Register(name, &stubDriver{conn: conn})
	return func(string, string) (*sql.DB, error) { return sql.Open(name, "stub") }
}

// Recorded returns a copy of the recorded statements.
func (c *StubConn) Recorded() []Statement {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Statement(nil), c.Statements...)
}

type stubDriver struct{ conn *StubConn }

func (d *stubDriver) Open(string) (driver.Conn, error) { return d.conn, nil }

func (c *StubConn) Prepare(string) (driver.Stmt, error) { return nil, fmt.Errorf("not implemented") }
func (c *StubConn) Close() error                        { return nil }
func (c *StubConn) Begin() (driver.Tx, error)           { return nil, fmt.Errorf("not implemented") }

// Ping implements driver.Pinger.
func (c *StubConn) Ping(context.Context) error {
	if c.FailPing {
		return fmt.Errorf("ping fail")
	}
	return nil
}

func (c *StubConn) record(query string, args []driver.NamedValue) {
	vals := make([]any, len(args))
	for i, a := range args {
		vals[i] = a.Value
	}
	c.mu.Lock()
	c.Statements = append(c.Statements, Statement{Query: query, Args: vals})
	c.mu.Unlock()
}

// ExecContext implements driver.ExecerContext.
func (c *StubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.record(query, args)
	if c.Err != nil {
		return nil, c.Err
	}
	return driver.RowsAffected(1), nil
}

// QueryContext implements driver.QueryerContext.
func (c *StubConn) QueryContext(_ context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	c.record(query, args)
	if c.Err != nil {
		return nil, c.Err
	}
	return &stubRows{id: c.NextID}, nil
}

type stubRows struct {
	id   int64
	done bool
}

func (r *stubRows) Columns() []string { return []string{"id"} }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.done {
		return io.EOF
	}
	r.done = true
	dest[0] = r.id
	return nil
}
