package appstate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/AndyMelnik/sensoriqua/apperr"
)

// ListPlanes returns the tenant's dashboard planes in display order, each
// with its configured sensor embedded. Planes whose sensor was soft-deleted
// are filtered out by the join.
func (s *Store) ListPlanes(ctx context.Context, userID int) ([]*DashboardPlane, error) {
	query := fmt.Sprintf(`SELECT p.dashboard_plane_id, p.user_id, p.configured_sensor_id, p.position_index, p.created_at,
			%s
		FROM %s p
		JOIN %s cs ON cs.configured_sensor_id = p.configured_sensor_id
		WHERE p.user_id = ? AND cs.is_active = %s
		ORDER BY p.position_index, p.dashboard_plane_id`,
		prefixColumns("cs", sensorColumns),
		s.dialect.Table("dashboard_planes"), s.dialect.Table("configured_sensors"),
		boolLiteral(s.dialect, true))

	rows, err := s.queryContext(ctx, query, userID)
	if err != nil {
		empty, mapped := readErr(err)
		if empty {
			return []*DashboardPlane{}, nil
		}
		return nil, mapped
	}
	defer rows.Close()

	planes := []*DashboardPlane{}
	for rows.Next() {
		var p DashboardPlane
		var sensor ConfiguredSensor
		var active dbBool
		err := rows.Scan(&p.ID, &p.UserID, &p.ConfiguredSensorID, &p.PositionIndex, &p.CreatedAt,
			&sensor.ID, &sensor.UserID, &sensor.ObjectID, &sensor.DeviceID, &sensor.InputLabel,
			&sensor.Source, &sensor.SensorID, &sensor.CustomLabel,
			&sensor.MinThreshold, &sensor.MaxThreshold, &sensor.Multiplier,
			&active, &sensor.CreatedAt, &sensor.UpdatedAt)
		if err != nil {
			return nil, apperr.Wrap(apperr.UpstreamQueryFailed, "dashboard state query failed", err)
		}
		sensor.IsActive = bool(active)
		p.Sensor = &sensor
		planes = append(planes, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.UpstreamQueryFailed, "dashboard state query failed", err)
	}
	return planes, nil
}

// AddPlane pins a sensor onto the tenant's dashboard at the requested
// position, or after the current last plane when none is given. Re-adding an
// already pinned sensor moves it instead of failing, so the operation is safe
// to retry. Pinning a sensor owned by another tenant is forbidden.
func (s *Store) AddPlane(ctx context.Context, userID int, sensorID int64, position *int) (*DashboardPlane, error) {
	ownerQuery := fmt.Sprintf(`SELECT user_id FROM %s WHERE configured_sensor_id = ? AND is_active = %s`,
		s.dialect.Table("configured_sensors"), boolLiteral(s.dialect, true))

	var owner int
	err := s.queryRowContext(ctx, ownerQuery, sensorID).Scan(&owner)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isMissingTable(err) {
			return nil, apperr.New(apperr.NotFound, "sensor not found")
		}
		return nil, apperr.Wrap(apperr.UpstreamQueryFailed, "dashboard state query failed", err)
	}
	if owner != userID {
		return nil, apperr.New(apperr.Forbidden, "sensor belongs to a different account")
	}

	var next int
	if position != nil {
		next = *position
	} else {
		posQuery := fmt.Sprintf(`SELECT COALESCE(MAX(position_index) + 1, 0) FROM %s WHERE user_id = ?`,
			s.dialect.Table("dashboard_planes"))
		if err := s.queryRowContext(ctx, posQuery, userID).Scan(&next); err != nil {
			return nil, writeErr(err)
		}
	}

	query := fmt.Sprintf(`INSERT INTO %s (user_id, configured_sensor_id, position_index)
		VALUES (?, ?, ?)
		%s position_index = excluded.position_index
		RETURNING dashboard_plane_id`,
		s.dialect.Table("dashboard_planes"),
		s.dialect.UpsertConflict([]string{"user_id", "configured_sensor_id"}))

	var id int64
	if err := s.queryRowContext(ctx, query, userID, sensorID, next).Scan(&id); err != nil {
		return nil, writeErr(err)
	}
	logDebug("dashboard plane pinned", "user_id", userID, "sensor_id", sensorID, "position", next)
	return s.getPlane(ctx, userID, id)
}

func (s *Store) getPlane(ctx context.Context, userID int, id int64) (*DashboardPlane, error) {
	planes, err := s.ListPlanes(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, p := range planes {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, apperr.New(apperr.NotFound, "plane not found")
}

// RemovePlane unpins a plane from the tenant's dashboard.
func (s *Store) RemovePlane(ctx context.Context, userID int, planeID int64) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE dashboard_plane_id = ? AND user_id = ?`,
		s.dialect.Table("dashboard_planes"))

	res, err := s.execContext(ctx, query, planeID, userID)
	if err != nil {
		return writeErr(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return writeErr(err)
	}
	if affected == 0 {
		return apperr.New(apperr.NotFound, "plane not found")
	}
	return nil
}

// ReorderPlanes rewrites the display order from an ordered list of plane ids.
// Every id must belong to the tenant or the whole reorder is rejected.
func (s *Store) ReorderPlanes(ctx context.Context, userID int, orderedIDs []int64) error {
	if len(orderedIDs) == 0 {
		return apperr.New(apperr.InvalidInput, "plane order must not be empty")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return writeErr(err)
	}
	defer tx.Rollback()

	query := s.dialect.Rewrite(fmt.Sprintf(`UPDATE %s SET position_index = ? WHERE dashboard_plane_id = ? AND user_id = ?`,
		s.dialect.Table("dashboard_planes")))

	for pos, id := range orderedIDs {
		res, err := tx.ExecContext(ctx, query, pos, id, userID)
		if err != nil {
			return writeErr(err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return writeErr(err)
		}
		if affected == 0 {
			return apperr.Newf(apperr.NotFound, "plane %d not found", id)
		}
	}

	if err := tx.Commit(); err != nil {
		return writeErr(err)
	}
	logDebug("dashboard planes reordered", "user_id", userID, "count", len(orderedIDs))
	return nil
}

// prefixColumns qualifies a comma-separated column list with a table alias.
func prefixColumns(alias, columns string) string {
	parts := []string{}
	for _, col := range strings.Split(columns, ",") {
		parts = append(parts, alias+"."+strings.TrimSpace(col))
	}
	return strings.Join(parts, ", ")
}
