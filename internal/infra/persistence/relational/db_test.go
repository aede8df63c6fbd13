package relational_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"organcore/internal/infra/persistence/relational"
	"organcore/internal/infra/persistence/relational/testutil"
	"organcore/pkg/domain"
)

func TestOpenUnknownDriver(t *testing.T) {
	_, err := relational.Open(context.Background(), "oracle", "", relational.Options{})
	assert.Error(t, err)
}

func TestSQLiteInsertGetSelect(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenSQLite(t, relational.Options{})
	assert.Equal(t, relational.DriverSQLite, db.Driver())
	require.NoError(t, db.ApplySchema(ctx), "schema is idempotent")

	id, err := db.Insert(ctx, `INSERT INTO organ DEFAULT VALUES RETURNING oid`)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	since := time.Date(1835, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err = db.Exec(ctx, `INSERT INTO person (pid, firstname, lastname, birthdate) VALUES (?, ?, ?, ?)`,
		id, "Ada", "Lovelace", domain.At(since))
	require.NoError(t, err)

	var first string
	var birth, death domain.Date
	found, err := db.Get(ctx, `SELECT firstname, birthdate, deathdate FROM person WHERE pid = ?`, []any{id}, &first, &birth, &death)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Ada", first)
	assert.True(t, birth.Equal(domain.At(since)))
	assert.True(t, death.IsZero())

	found, err = db.Get(ctx, `SELECT firstname FROM person WHERE pid = ?`, []any{int64(42)}, &first)
	require.NoError(t, err)
	assert.False(t, found)

	exists, err := db.Exists(ctx, `SELECT 1 FROM person WHERE birthdate = ?`, since)
	require.NoError(t, err)
	assert.True(t, exists, "timestamps compare equal after a round trip")

	var names []string
	err = db.Select(ctx, `SELECT firstname FROM person WHERE LOWER(firstname) LIKE ? ESCAPE '\'`, []any{relational.Like("AD")},
		func(r relational.Scanner) error {
			var n string
			if err := r.Scan(&n); err != nil {
				return err
			}
			names = append(names, n)
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, []string{"Ada"}, names)

	n, err := db.Exec(ctx, `DELETE FROM organ WHERE oid = ?`, id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	exists, err = db.Exists(ctx, `SELECT 1 FROM person WHERE pid = ?`, id)
	require.NoError(t, err)
	assert.False(t, exists, "person row cascades with its organ")
}

func TestConnSharesSession(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenSQLite(t, relational.Options{})
	err := db.With(ctx, func(c *relational.Conn) error {
		rid, err := c.Insert(ctx, `INSERT INTO role (name) VALUES (?) RETURNING rid`, "Fellow")
		if err != nil {
			return err
		}
		_, err = c.Exec(ctx, `UPDATE role SET name = ? WHERE rid = ?`, "Fellow of the Royal Society", rid)
		return err
	})
	require.NoError(t, err)
	var name string
	found, err := db.Get(ctx, `SELECT name FROM role`, nil, &name)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Fellow of the Royal Society", name)
}

func TestConnAcquireTimeout(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenSQLite(t, relational.Options{MaxOpenConns: 1, AcquireTimeout: 50 * time.Millisecond})

	held, err := db.Conn(ctx)
	require.NoError(t, err)
	defer func() { _ = held.Close() }()

	_, err = db.Conn(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.True(t, relational.IsTimeout(err))
}

func TestPostgresPathRebindsPlaceholders(t *testing.T) {
	ctx := context.Background()
	stub := &testutil.StubConn{NextID: 7}
	restore := relational.OverrideSQLOpen(testutil.NewStubDB(stub))
	defer restore()

	db, err := relational.Open(ctx, relational.DriverPostgres, "", relational.Options{})
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	assert.Equal(t, relational.DriverPostgres, db.Driver())

	require.NoError(t, db.ApplySchema(ctx))
	recorded := stub.Recorded()
	require.NotEmpty(t, recorded)
	assert.Contains(t, recorded[0].Query, "BIGSERIAL")

	id, err := db.Insert(ctx, `INSERT INTO role (name) VALUES (?) RETURNING rid`, "Fellow")
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	last := stub.Recorded()[len(stub.Recorded())-1]
	assert.Equal(t, "INSERT INTO role (name) VALUES ($1) RETURNING rid", last.Query)
	assert.Equal(t, []any{"Fellow"}, last.Args)
}

func TestPostgresPingFailure(t *testing.T) {
	stub := &testutil.StubConn{FailPing: true}
	restore := relational.OverrideSQLOpen(testutil.NewStubDB(stub))
	defer restore()

	_, err := relational.Open(context.Background(), relational.DriverPostgres, "postgres://nowhere", relational.Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestStubErrorsAreClassified(t *testing.T) {
	ctx := context.Background()
	stub := &testutil.StubConn{}
	restore := relational.OverrideSQLOpen(testutil.NewStubDB(stub))
	defer restore()
	db, err := relational.Open(ctx, relational.DriverPostgres, "", relational.Options{})
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	stub.Err = errors.New("network unreachable")
	_, err = db.Exec(ctx, `DELETE FROM role WHERE rid = ?`, 1)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.True(t, strings.Contains(err.Error(), "network unreachable"))
}
