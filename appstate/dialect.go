package appstate

import (
	"fmt"
	"strings"
)

// Schema is the namespace dashboard tables live in on PostgreSQL backends.
// SQLite has no schemas, so its tables are unqualified.
const Schema = "app_sensoriqua"

// Dialect abstracts the SQL differences between the embedded SQLite backend
// and a tenant's PostgreSQL database. Queries are written once with ?
// placeholders and rewritten per backend, so both backends run the same
// statements and keep identical semantics.
type Dialect interface {
	// Name returns the dialect name ("sqlite" or "postgres")
	Name() string

	// Table returns the qualified table name for this backend.
	Table(name string) string

	// Rewrite converts a ?-placeholder query into backend syntax.
	Rewrite(query string) string

	// AutoIncrement returns the column type for auto-incrementing primary keys.
	AutoIncrement() string

	// TimestampType returns the column type for timestamps.
	TimestampType() string

	// BoolType returns the column type for boolean flags.
	BoolType() string

	// CurrentTimestamp returns the SQL expression for the current time.
	CurrentTimestamp() string

	// UpsertConflict returns the upsert clause for the backend.
	UpsertConflict(conflictColumns []string) string
}

// SQLiteDialect implements Dialect for the embedded SQLite backend.
type SQLiteDialect struct{}

var _ Dialect = (*SQLiteDialect)(nil)

func (d *SQLiteDialect) Name() string { return "sqlite" }

func (d *SQLiteDialect) Table(name string) string { return name }

func (d *SQLiteDialect) Rewrite(query string) string { return query }

func (d *SQLiteDialect) AutoIncrement() string {
	return "INTEGER PRIMARY KEY AUTOINCREMENT"
}

func (d *SQLiteDialect) TimestampType() string {
	return "DATETIME"
}

func (d *SQLiteDialect) BoolType() string {
	return "INTEGER"
}

func (d *SQLiteDialect) CurrentTimestamp() string {
	return "CURRENT_TIMESTAMP"
}

func (d *SQLiteDialect) UpsertConflict(conflictColumns []string) string {
	return fmt.Sprintf("ON CONFLICT(%s) DO UPDATE SET", strings.Join(conflictColumns, ", "))
}

// PostgresDialect implements Dialect for tenant PostgreSQL backends.
type PostgresDialect struct{}

var _ Dialect = (*PostgresDialect)(nil)

func (d *PostgresDialect) Name() string { return "postgres" }

func (d *PostgresDialect) Table(name string) string {
	return Schema + "." + name
}

func (d *PostgresDialect) Rewrite(query string) string {
	return ConvertPlaceholders(query)
}

func (d *PostgresDialect) AutoIncrement() string {
	return "SERIAL PRIMARY KEY"
}

func (d *PostgresDialect) TimestampType() string {
	return "TIMESTAMPTZ"
}

func (d *PostgresDialect) BoolType() string {
	return "BOOLEAN"
}

func (d *PostgresDialect) CurrentTimestamp() string {
	return "NOW()"
}

func (d *PostgresDialect) UpsertConflict(conflictColumns []string) string {
	return fmt.Sprintf("ON CONFLICT (%s) DO UPDATE SET", strings.Join(conflictColumns, ", "))
}

// ConvertPlaceholders converts SQLite-style ? placeholders to PostgreSQL-style
// $n placeholders so queries can be written once.
func ConvertPlaceholders(query string) string {
	var result strings.Builder
	result.Grow(len(query) + 10)
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result.WriteString(fmt.Sprintf("$%d", n))
			n++
		} else {
			result.WriteByte(query[i])
		}
	}
	return result.String()
}
