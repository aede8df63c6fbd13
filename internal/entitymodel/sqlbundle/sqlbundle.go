// Package sqlbundle selects and splits the embedded DDL bundles.
package sqlbundle

import (
	"bufio"
	"fmt"
	"strings"

	sqldocs "organcore/docs/schema/sql"
)

// SQLite returns the SQLite DDL.
func SQLite() string {
	return sqldocs.SQLite
}

// Postgres returns the PostgreSQL DDL.
func Postgres() string {
	return sqldocs.Postgres
}

// ForDialect returns the bundle for a dialect name ("sqlite" or "postgres").
func ForDialect(name string) (string, error) {
	switch name {
	case "sqlite":
		return SQLite(), nil
	case "postgres":
		return Postgres(), nil
	}
	return "", fmt.Errorf("no schema bundle for dialect %q", name)
}

// SplitStatements splits a semicolon-terminated DDL script into executable statements.
// It drops blank lines and single-line comments that start with "--".
func SplitStatements(ddl string) []string {
	scanner := bufio.NewScanner(strings.NewReader(ddl))
	var stmts []string
	var current strings.Builder

	flush := func() {
		stmt := strings.TrimSpace(current.String())
		if stmt != "" {
			stmts = append(stmts, stmt)
		}
		current.Reset()
	}

	for scanner.Scan() {
		trimmed := strings.TrimSpace(scanner.Text())
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		current.WriteString(trimmed)
		current.WriteByte('\n')
		if strings.HasSuffix(trimmed, ";") {
			flush()
		}
	}
	flush()

	return stmts
}
