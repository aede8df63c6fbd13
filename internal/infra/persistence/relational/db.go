// Package relational provides pooled database/sql access to the persistent
// store for both SQLite (modernc) and PostgreSQL (pgx). Query helpers
// translate driver errors into the store error taxonomy.
package relational

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // register the pure-Go sqlite driver

	"organcore/internal/entitymodel/sqlbundle"
	"organcore/pkg/domain"
)

// Driver identifies a supported database engine.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"   // embedded sqlite file
	DriverPostgres Driver = "postgres" // PostgreSQL server
)

const (
	defaultSQLitePath  = "./organcore.db"
	defaultPostgresDSN = "postgres://localhost/organcore?sslmode=disable"
)

// Pool defaults.
const (
	DefaultMaxOpenConns   = 20
	DefaultIdleTimeout    = 30 * time.Second
	DefaultAcquireTimeout = 2 * time.Second
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// OverrideSQLOpen swaps the sql.Open implementation and returns a restore func.
func OverrideSQLOpen(fn func(driverName, dsn string) (*sql.DB, error)) func() {
	openMu.Lock()
	prev := sqlOpen
	sqlOpen = fn
	openMu.Unlock()
	return func() {
		openMu.Lock()
		sqlOpen = prev
		openMu.Unlock()
	}
}

// Options configures the connection pool.
type Options struct {
	MaxOpenConns   int
	IdleTimeout    time.Duration
	AcquireTimeout time.Duration
	Logger         *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.MaxOpenConns <= 0 {
		o.MaxOpenConns = DefaultMaxOpenConns
	}
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = DefaultIdleTimeout
	}
	if o.AcquireTimeout <= 0 {
		o.AcquireTimeout = DefaultAcquireTimeout
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// DB is a bounded connection pool. Operations borrow a connection for their
// duration and release it before returning.
type DB struct {
	db      *sql.DB
	dialect Dialect
	opts    Options
	logger  *zap.Logger
}

// Open connects to the store and verifies connectivity. For SQLite, dsn is a
// file path; foreign keys are always enabled.
func Open(ctx context.Context, driver Driver, dsn string, opts Options) (*DB, error) {
	opts = opts.withDefaults()
	var driverName string
	switch driver {
	case DriverSQLite:
		driverName = "sqlite"
		dsn = sqliteDSN(dsn)
	case DriverPostgres:
		driverName = "pgx"
		if dsn == "" {
			dsn = defaultPostgresDSN
		}
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}

	openMu.Lock()
	db, err := sqlOpen(driverName, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxOpenConns)
	db.SetConnMaxIdleTime(opts.IdleTimeout)

	pingCtx, cancel := context.WithTimeout(ctx, opts.AcquireTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: ping %s: %w", domain.ErrStoreUnavailable, driver, err)
	}
	logger := opts.Logger.Named("relational")
	logger.Info("store opened", zap.String("driver", string(driver)), zap.Int("max_conns", opts.MaxOpenConns))
	return &DB{db: db, dialect: dialectFor(driver), opts: opts, logger: logger}, nil
}

func sqliteDSN(path string) string {
	if path == "" {
		path = defaultSQLitePath
	}
	if strings.Contains(path, "_pragma=") {
		return path
	}
	params := url.Values{}
	params.Add("_pragma", "foreign_keys(1)")
	params.Add("_pragma", "busy_timeout(5000)")
	params.Add("_pragma", "journal_mode(WAL)")
	params.Set("_time_format", "sqlite")
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return "file:" + strings.TrimPrefix(path, "file:") + sep + params.Encode()
}

// Close releases the pool.
func (d *DB) Close() error { return d.db.Close() }

// Driver reports the engine behind the pool.
func (d *DB) Driver() Driver { return d.dialect.Driver }

// SQL exposes the underlying pool for tooling and tests.
func (d *DB) SQL() *sql.DB { return d.db }

// Stats returns pool statistics.
func (d *DB) Stats() sql.DBStats { return d.db.Stats() }

// ApplySchema executes the embedded DDL bundle for the pool's dialect. Every
// statement is idempotent.
func (d *DB) ApplySchema(ctx context.Context) error {
	ddl, err := sqlbundle.ForDialect(string(d.dialect.Driver))
	if err != nil {
		return err
	}
	stmts := sqlbundle.SplitStatements(ddl)
	for _, stmt := range stmts {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute ddl: %w", err)
		}
	}
	d.logger.Info("schema applied", zap.Int("statements", len(stmts)))
	return nil
}

// Conn borrows a connection from the pool. Checkout is bounded by the
// configured acquire timeout; exhaustion surfaces as ErrStoreUnavailable.
// The caller must Close the returned Conn.
func (d *DB) Conn(ctx context.Context) (*Conn, error) {
	acquireCtx, cancel := context.WithTimeout(ctx, d.opts.AcquireTimeout)
	defer cancel()
	c, err := d.db.Conn(acquireCtx)
	if err != nil {
		d.logger.Warn("connection checkout failed", zap.Error(err))
		return nil, fmt.Errorf("%w: acquire connection: %w", domain.ErrStoreUnavailable, err)
	}
	return &Conn{Executor: Executor{q: c, dialect: d.dialect}, conn: c}, nil
}

// With borrows a connection, runs fn and releases the connection.
func (d *DB) With(ctx context.Context, fn func(*Conn) error) error {
	c, err := d.Conn(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()
	return fn(c)
}

// Conn is a borrowed connection. Statements issued on one Conn run in order
// on the same session.
type Conn struct {
	Executor
	conn *sql.Conn
}

// Close returns the connection to the pool.
func (c *Conn) Close() error { return c.conn.Close() }
