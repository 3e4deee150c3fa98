// Package warehouse reads a tenant's telematics warehouse: the business
// catalog (objects, groups, tags) and the raw telemetry tables that series
// queries aggregate over. All access is read-only.
package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver

	"github.com/AndyMelnik/sensoriqua/apperr"
)

// Warehouse schema names are fixed by the ingestion pipeline.
const (
	telemetrySchema = "raw_telematics_data"
	businessSchema  = "raw_business_data"
)

const (
	pingTimeout     = 5 * time.Second
	maxOpenConns    = 10
	maxIdleConns    = 5
	connMaxLifetime = 30 * time.Minute
)

// Conn is a handle onto one tenant's warehouse. It remembers whether the
// server offers TimescaleDB's time_bucket so series queries can pick their
// bucketing expression once instead of per request.
type Conn struct {
	db            *sql.DB
	hasTimeBucket bool
}

// Open connects to a tenant warehouse and probes its capabilities.
func Open(ctx context.Context, dsn string) (*Conn, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, apperr.Wrap(apperr.UpstreamQueryFailed, "cannot open warehouse connection", err)
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, apperr.Wrap(apperr.StoreUnavailable, "warehouse is unreachable", err)
	}

	c := &Conn{db: db}
	c.hasTimeBucket = detectTimeBucket(ctx, db)
	if c.hasTimeBucket {
		logInfo("warehouse supports time_bucket, using TimescaleDB bucketing")
	} else {
		logDebug("time_bucket not available, falling back to date_trunc")
	}
	return c, nil
}

// detectTimeBucket checks for TimescaleDB's time_bucket function. Detection
// failures degrade to the date_trunc fallback rather than failing the open.
func detectTimeBucket(ctx context.Context, db *sql.DB) bool {
	const probe = `SELECT EXISTS (
		SELECT 1 FROM pg_proc p
		JOIN pg_namespace n ON p.pronamespace = n.oid
		WHERE n.nspname = 'timescale' AND p.proname = 'time_bucket')`

	var has bool
	if err := db.QueryRowContext(ctx, probe).Scan(&has); err != nil {
		logWarn("time_bucket detection failed, using date_trunc", "error", err)
		return false
	}
	return has
}

// HasTimeBucket reports whether series queries use TimescaleDB bucketing.
func (c *Conn) HasTimeBucket() bool { return c.hasTimeBucket }

// bucketExpr returns the one-minute bucketing expression for a time column.
func (c *Conn) bucketExpr(column string) string {
	if c.hasTimeBucket {
		return fmt.Sprintf("time_bucket('1 minute', %s)", column)
	}
	return fmt.Sprintf("date_trunc('minute', %s)", column)
}

// Close releases the connection pool.
func (c *Conn) Close() error { return c.db.Close() }

func queryFailed(err error) error {
	return apperr.Wrap(apperr.UpstreamQueryFailed, "telemetry query failed", err)
}
