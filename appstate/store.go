// Package appstate persists dashboard configuration (configured sensors and
// dashboard planes). It runs against either an embedded SQLite file or a
// tenant-supplied PostgreSQL database; both backends execute the same
// statements through the Dialect so their semantics stay identical.
package appstate

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver
	_ "modernc.org/sqlite"             // Pure Go SQLite driver (no CGO required)
)

// DefaultSQLitePath is the embedded store used when no backend is configured.
const DefaultSQLitePath = "sensoriqua_app.db"

const (
	pingTimeout     = 5 * time.Second
	maxOpenConns    = 10
	maxIdleConns    = 5
	connMaxLifetime = 30 * time.Minute
)

// Options select the backing store for one tenant.
type Options struct {
	// PostgresDSN, when set, stores state in the tenant's own database
	// under the app_sensoriqua schema.
	PostgresDSN string

	// SQLitePath is the embedded database file used when PostgresDSN is
	// empty. Defaults to DefaultSQLitePath.
	SQLitePath string
}

// Store is a dashboard-state store bound to one backend.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// Open connects to the selected backend and ensures the schema exists.
// Opening is idempotent; tables are created with IF NOT EXISTS.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if opts.PostgresDSN != "" {
		return openPostgres(ctx, opts.PostgresDSN)
	}
	path := opts.SQLitePath
	if path == "" {
		path = DefaultSQLitePath
	}
	return openSQLite(path)
}

func openSQLite(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create db directory: %w", err)
		}
	}

	connStr := dbPath
	if dbPath != ":memory:" {
		connStr += "?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=ON"
	} else {
		connStr += "?_foreign_keys=ON"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db, dialect: &SQLiteDialect{}}
	if err := s.initSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}
	logDebug("app state store ready", "backend", "sqlite", "path", dbPath)
	return s, nil
}

func openPostgres(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db, dialect: &PostgresDialect{}}
	if _, err := db.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+Schema); err != nil {
		// The tenant role may lack CREATE privilege; reads still degrade
		// gracefully and writes report the missing schema.
		logWarn("could not ensure app state schema", "error", err)
	}
	if err := s.initSchema(ctx); err != nil {
		logWarn("could not ensure app state tables", "error", err)
	}
	logDebug("app state store ready", "backend", "postgres")
	return s, nil
}

// initSchema creates tables if they don't exist
func (s *Store) initSchema(ctx context.Context) error {
	d := s.dialect

	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			configured_sensor_id %s,
			user_id INTEGER NOT NULL,
			object_id INTEGER NOT NULL,
			device_id INTEGER NOT NULL,
			sensor_input_label TEXT NOT NULL,
			sensor_source TEXT NOT NULL DEFAULT 'input',
			sensor_id INTEGER NULL,
			sensor_label_custom VARCHAR(100) NOT NULL,
			min_threshold REAL NULL,
			max_threshold REAL NULL,
			multiplier REAL NULL,
			is_active %s NOT NULL DEFAULT %s,
			created_at %s NOT NULL DEFAULT %s,
			updated_at %s NOT NULL DEFAULT %s
		)`,
			d.Table("configured_sensors"), d.AutoIncrement(),
			d.BoolType(), boolLiteral(d, true),
			d.TimestampType(), d.CurrentTimestamp(),
			d.TimestampType(), d.CurrentTimestamp()),

		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_cfg_user
			ON %s(user_id, is_active)`, d.Table("configured_sensors")),

		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_cfg_object
			ON %s(object_id)`, d.Table("configured_sensors")),

		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_cfg_device_sensor
			ON %s(device_id, sensor_input_label)`, d.Table("configured_sensors")),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			dashboard_plane_id %s,
			user_id INTEGER NOT NULL,
			configured_sensor_id INTEGER NOT NULL
				REFERENCES %s(configured_sensor_id) ON DELETE CASCADE,
			position_index INTEGER NOT NULL DEFAULT 0,
			created_at %s NOT NULL DEFAULT %s,
			UNIQUE(user_id, configured_sensor_id)
		)`,
			d.Table("dashboard_planes"), d.AutoIncrement(),
			d.Table("configured_sensors"),
			d.TimestampType(), d.CurrentTimestamp()),

		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_dash_user
			ON %s(user_id)`, d.Table("dashboard_planes")),
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func boolLiteral(d Dialect, v bool) string {
	if d.Name() == "postgres" {
		if v {
			return "TRUE"
		}
		return "FALSE"
	}
	if v {
		return "1"
	}
	return "0"
}

// Dialect exposes the active dialect, mainly for tests.
func (s *Store) Dialect() Dialect { return s.dialect }

// Close releases the backing connection pool.
func (s *Store) Close() error { return s.db.Close() }

// execContext rewrites placeholders for the backend and runs the statement.
func (s *Store) execContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.dialect.Rewrite(query), args...)
}

// queryContext rewrites placeholders for the backend and runs the query.
func (s *Store) queryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.dialect.Rewrite(query), args...)
}

func (s *Store) queryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return s.db.QueryRowContext(ctx, s.dialect.Rewrite(query), args...)
}

// ResolveOptions picks the backend for a tenant. Priority order: the DSN the
// tenant supplied at login, then the server-wide override, then the default
// embedded file.
func ResolveOptions(sessionDSN, serverOverride string) Options {
	if sessionDSN != "" {
		return Options{PostgresDSN: sessionDSN}
	}
	if serverOverride != "" {
		if strings.HasPrefix(serverOverride, "postgres://") || strings.HasPrefix(serverOverride, "postgresql://") {
			return Options{PostgresDSN: serverOverride}
		}
		return Options{SQLitePath: serverOverride}
	}
	return Options{SQLitePath: DefaultSQLitePath}
}
