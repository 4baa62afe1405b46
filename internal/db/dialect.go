package db

import (
	"strconv"
	"strings"
)

// dialect papers over the SQL differences between the supported drivers. Queries are
// written with "?" placeholders and rebound for PostgreSQL.
type dialect struct {
	driver string
}

func (d dialect) postgres() bool {
	return d.driver == "postgres"
}

// rebind rewrites "?" placeholders to "$1", "$2", ... for PostgreSQL.
func (d dialect) rebind(query string) string {
	if !d.postgres() {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// ilike renders a case-insensitive LIKE of col against the next placeholder.
func (d dialect) ilike(col string) string {
	if d.postgres() {
		return col + " ILIKE ?"
	}
	return "lower(" + col + ") LIKE lower(?)"
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
