package relational

import (
	"strconv"
	"strings"
)

// Dialect captures the SQL differences between engines. Queries are written
// with ? placeholders and rebound per dialect.
type Dialect struct {
	Driver Driver
}

func dialectFor(d Driver) Dialect { return Dialect{Driver: d} }

// Rebind rewrites ? placeholders to $n for PostgreSQL. Placeholders inside
// single-quoted literals are left alone.
func (d Dialect) Rebind(query string) string {
	if d.Driver != DriverPostgres || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	quoted := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			quoted = !quoted
			b.WriteByte(c)
		case c == '?' && !quoted:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Placeholders returns n comma-separated ? placeholders.
func Placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// Like builds a case-insensitive substring pattern for use with LOWER(col) LIKE ?.
// LIKE wildcards in the query are escaped with backslash; pair it with ESCAPE '\'.
func Like(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(strings.TrimSpace(q))) + "%"
}
