package appstate

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/AndyMelnik/sensoriqua/apperr"
)

// pgUndefinedTable is the PostgreSQL error code for a missing relation.
const pgUndefinedTable = "42P01"

// isMissingTable reports whether a query failed because the dashboard tables
// were never provisioned in the tenant database.
func isMissingTable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUndefinedTable
	}
	// the sqlite driver reports this as a plain error string
	return strings.Contains(err.Error(), "no such table")
}

// readErr classifies a read failure. Missing tables are not an error on the
// read path: a fresh tenant database simply has no dashboard state yet.
// Callers should return an empty result when ok is true.
func readErr(err error) (empty bool, mapped error) {
	if isMissingTable(err) {
		logDebug("dashboard tables not provisioned, returning empty result")
		return true, nil
	}
	return false, apperr.Wrap(apperr.UpstreamQueryFailed, "dashboard state query failed", err)
}

// writeErr classifies a write failure. Missing tables on the write path get
// an actionable message instead of a silent no-op.
func writeErr(err error) error {
	if isMissingTable(err) {
		return apperr.Wrap(apperr.StoreUnavailable,
			"dashboard tables are not provisioned in this database; grant the login CREATE privilege or provision the "+Schema+" schema", err)
	}
	return apperr.Wrap(apperr.UpstreamQueryFailed, "dashboard state update failed", err)
}
