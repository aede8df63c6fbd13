package relational

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"organcore/pkg/domain"
)

// Constraint classes reported by the store.
var (
	ErrUniqueViolation    = errors.New("unique constraint violation")
	ErrReferenceViolation = errors.New("foreign key constraint violation")
	ErrCheckViolation     = errors.New("check constraint violation")
)

// PostgreSQL SQLSTATE codes for integrity constraint violations.
const (
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
	pgCheckViolation      = "23514"
)

// classify maps a driver error onto the store taxonomy. Constraint
// violations keep their class; everything else is ErrStoreUnavailable.
func classify(err error) error {
	if err == nil || errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if errors.Is(err, domain.ErrStoreUnavailable) {
		return err
	}
	if class := constraintClass(err); class != nil {
		return fmt.Errorf("%w: %w", class, err)
	}
	return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
}

func constraintClass(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return ErrUniqueViolation
		case pgForeignKeyViolation:
			return ErrReferenceViolation
		case pgCheckViolation:
			return ErrCheckViolation
		}
		return nil
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return ErrUniqueViolation
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return ErrReferenceViolation
		case sqlite3.SQLITE_CONSTRAINT_CHECK:
			return ErrCheckViolation
		}
		if liteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
			msg := liteErr.Error()
			switch {
			case strings.Contains(msg, "UNIQUE"):
				return ErrUniqueViolation
			case strings.Contains(msg, "FOREIGN KEY"):
				return ErrReferenceViolation
			case strings.Contains(msg, "CHECK"):
				return ErrCheckViolation
			}
		}
	}
	return nil
}

// IsUniqueViolation reports whether err is a rejected duplicate key.
func IsUniqueViolation(err error) bool { return errors.Is(err, ErrUniqueViolation) }

// IsReferenceViolation reports whether err references a missing row.
func IsReferenceViolation(err error) bool { return errors.Is(err, ErrReferenceViolation) }

// IsCheckViolation reports whether err failed a CHECK constraint.
func IsCheckViolation(err error) bool { return errors.Is(err, ErrCheckViolation) }

// IsTimeout reports whether err came from an expired or cancelled context.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
