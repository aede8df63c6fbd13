package relational

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"organcore/pkg/domain"
)

func TestClassifyPostgresErrors(t *testing.T) {
	cases := map[string]error{
		pgUniqueViolation:     ErrUniqueViolation,
		pgForeignKeyViolation: ErrReferenceViolation,
		pgCheckViolation:      ErrCheckViolation,
	}
	for code, want := range cases {
		err := classify(fmt.Errorf("exec: %w", &pgconn.PgError{Code: code, Message: "violation"}))
		assert.ErrorIs(t, err, want, code)
		assert.NotErrorIs(t, err, domain.ErrStoreUnavailable, code)
	}

	err := classify(&pgconn.PgError{Code: "57P01", Message: "terminating connection"})
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestClassifyPassThrough(t *testing.T) {
	assert.NoError(t, classify(nil))
	assert.Equal(t, sql.ErrNoRows, classify(sql.ErrNoRows))

	wrapped := fmt.Errorf("%w: pool", domain.ErrStoreUnavailable)
	assert.Equal(t, wrapped, classify(wrapped))

	err := classify(errors.New("connection reset"))
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.False(t, IsUniqueViolation(err))
}

func TestClassifySQLiteConstraints(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, DriverSQLite, filepath.Join(t.TempDir(), "c.db"), Options{})
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	require.NoError(t, db.ApplySchema(ctx))

	_, err = db.Exec(ctx, `INSERT INTO role (rid, name) VALUES (?, ?)`, 1, "Fellow")
	require.NoError(t, err)
	_, err = db.Exec(ctx, `INSERT INTO role (rid, name) VALUES (?, ?)`, 1, "Fellow")
	assert.True(t, IsUniqueViolation(err), "duplicate primary key: %v", err)

	_, err = db.Exec(ctx, `INSERT INTO person (pid, firstname, lastname) VALUES (?, ?, ?)`, 99, "No", "Organ")
	assert.True(t, IsReferenceViolation(err), "missing organ row: %v", err)

	_, err = db.Exec(ctx, `INSERT INTO socials (organ, platform, url) VALUES (?, ?, ?)`, 1, 99, "x")
	require.Error(t, err)
	assert.False(t, IsUniqueViolation(err))

	_, err = db.Exec(ctx, `SELECT * FROM nowhere`)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}
