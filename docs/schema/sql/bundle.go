// Package sqldocs embeds the relational schema for each supported dialect.
package sqldocs

import _ "embed"

// SQLite contains the SQLite DDL bundle.
//
//go:embed sqlite.sql
var SQLite string

// Postgres contains the PostgreSQL DDL bundle.
//
//go:embed postgres.sql
var Postgres string
