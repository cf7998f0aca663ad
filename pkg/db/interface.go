package db

import (
	"database/sql"
	"strconv"
)

// DBProvider is an interface for database clients that provide access to a sql.DB handle.
// This allows PostgresClient, SupabaseClient and SQLiteClient to be used interchangeably.
type DBProvider interface {
	DB() *sql.DB
	Dialect() Dialect
}

// Dialect identifies the SQL flavour behind a DBProvider.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// Placeholder returns the bind parameter marker for position n (1-based).
func (d Dialect) Placeholder(n int) string {
	if d == DialectSQLite {
		return "?"
	}
	return "$" + strconv.Itoa(n)
}
