package querysql

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect selects placeholder syntax, identifier quoting and pagination.
type Dialect string

const (
	SQLite    Dialect = "sqlite"
	Postgres  Dialect = "postgres"
	SQLServer Dialect = "sqlserver"
)

// Dialects lists every supported dialect.
var Dialects = []Dialect{SQLite, Postgres, SQLServer}

// ParseDialect resolves a dialect name, accepting common aliases.
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "postgresql", "pg", "pgx":
		return Postgres, nil
	case "sqlserver", "mssql":
		return SQLServer, nil
	}
	return "", fmt.Errorf("unknown SQL dialect %q", name)
}

// Placeholder returns the n-th (1-based) bind parameter marker.
func (d Dialect) Placeholder(n int) string {
	switch d {
	case Postgres:
		return "$" + strconv.Itoa(n)
	case SQLServer:
		return "@p" + strconv.Itoa(n)
	}
	return "?"
}

// Quote quotes an identifier. Dots are kept inside the identifier, so a
// relation path like "posts.comments" is a single alias.
func (d Dialect) Quote(ident string) string {
	if d == SQLServer {
		return "[" + strings.ReplaceAll(ident, "]", "]]") + "]"
	}
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}
