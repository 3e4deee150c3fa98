package appstate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/AndyMelnik/sensoriqua/apperr"
)

const sensorColumns = `configured_sensor_id, user_id, object_id, device_id, sensor_input_label,
	sensor_source, sensor_id, sensor_label_custom, min_threshold, max_threshold, multiplier,
	is_active, created_at, updated_at`

// sourceKinds are the recognized sensor source kinds. Anything else silently
// normalizes to input, preserving long-standing permissive behavior.
var sourceKinds = map[string]bool{"input": true, "state": true, "tracking": true}

func normalizeSourceKind(source string) string {
	source = strings.ToLower(strings.TrimSpace(source))
	if !sourceKinds[source] {
		return "input"
	}
	return source
}

// ListSensors returns the tenant's active configured sensors, newest first.
// A tenant database without dashboard tables yields an empty list.
func (s *Store) ListSensors(ctx context.Context, userID int) ([]*ConfiguredSensor, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE user_id = ? AND is_active = %s ORDER BY created_at DESC, configured_sensor_id DESC`,
		sensorColumns, s.dialect.Table("configured_sensors"), boolLiteral(s.dialect, true))

	rows, err := s.queryContext(ctx, query, userID)
	if err != nil {
		empty, mapped := readErr(err)
		if empty {
			return []*ConfiguredSensor{}, nil
		}
		return nil, mapped
	}
	defer rows.Close()

	sensors := []*ConfiguredSensor{}
	for rows.Next() {
		sensor, err := scanSensor(rows)
		if err != nil {
			return nil, apperr.Wrap(apperr.UpstreamQueryFailed, "dashboard state query failed", err)
		}
		sensors = append(sensors, sensor)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.UpstreamQueryFailed, "dashboard state query failed", err)
	}
	return sensors, nil
}

// GetSensor returns one sensor owned by the tenant, including soft-deleted
// ones so configuration history stays inspectable. A sensor owned by another
// tenant is indistinguishable from a missing one.
func (s *Store) GetSensor(ctx context.Context, userID int, id int64) (*ConfiguredSensor, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE configured_sensor_id = ? AND user_id = ?`,
		sensorColumns, s.dialect.Table("configured_sensors"))

	sensor, err := scanSensor(s.queryRowContext(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isMissingTable(err) {
			return nil, apperr.New(apperr.NotFound, "configured sensor not found")
		}
		return nil, apperr.Wrap(apperr.UpstreamQueryFailed, "dashboard state query failed", err)
	}
	return sensor, nil
}

// CreateSensor validates and stores a new configured sensor for the tenant.
func (s *Store) CreateSensor(ctx context.Context, userID int, in SensorInput) (*ConfiguredSensor, error) {
	in.InputLabel = strings.TrimSpace(in.InputLabel)
	in.CustomLabel = strings.TrimSpace(in.CustomLabel)
	if in.ObjectID == 0 || in.DeviceID == 0 || in.InputLabel == "" || in.CustomLabel == "" {
		return nil, apperr.New(apperr.InvalidInput,
			"object_id, device_id, sensor_input_label and sensor_label_custom are required")
	}
	if err := validateThresholds(in.MinThreshold, in.MaxThreshold); err != nil {
		return nil, err
	}
	source := normalizeSourceKind(in.Source)

	query := fmt.Sprintf(`INSERT INTO %s
		(user_id, object_id, device_id, sensor_input_label, sensor_source, sensor_id,
		 sensor_label_custom, min_threshold, max_threshold, multiplier)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING configured_sensor_id`, s.dialect.Table("configured_sensors"))

	var id int64
	err := s.queryRowContext(ctx, query,
		userID, in.ObjectID, in.DeviceID, in.InputLabel, source, in.SensorID,
		in.CustomLabel, in.MinThreshold, in.MaxThreshold, in.Multiplier).Scan(&id)
	if err != nil {
		return nil, writeErr(err)
	}
	logDebug("configured sensor created", "user_id", userID, "configured_sensor_id", id)
	return s.GetSensor(ctx, userID, id)
}

// UpdateSensor applies a partial update to a sensor the tenant owns.
// Thresholds are validated against the merged result, so setting only
// min_threshold can still be rejected when it crosses the stored maximum.
func (s *Store) UpdateSensor(ctx context.Context, userID int, id int64, patch SensorPatch) (*ConfiguredSensor, error) {
	current, err := s.GetSensor(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	min, max := current.MinThreshold, current.MaxThreshold
	if patch.MinThreshold != nil {
		min = patch.MinThreshold
	}
	if patch.MaxThreshold != nil {
		max = patch.MaxThreshold
	}
	if err := validateThresholds(min, max); err != nil {
		return nil, err
	}

	sets := []string{}
	args := []interface{}{}
	if patch.CustomLabel != nil {
		sets = append(sets, "sensor_label_custom = ?")
		args = append(args, *patch.CustomLabel)
	}
	if patch.MinThreshold != nil {
		sets = append(sets, "min_threshold = ?")
		args = append(args, *patch.MinThreshold)
	}
	if patch.MaxThreshold != nil {
		sets = append(sets, "max_threshold = ?")
		args = append(args, *patch.MaxThreshold)
	}
	if patch.Multiplier != nil {
		sets = append(sets, "multiplier = ?")
		args = append(args, *patch.Multiplier)
	}
	if len(sets) == 0 {
		return nil, apperr.New(apperr.InvalidInput, "no fields to update")
	}
	sets = append(sets, "updated_at = "+s.dialect.CurrentTimestamp())

	query := fmt.Sprintf(`UPDATE %s SET %s WHERE configured_sensor_id = ? AND user_id = ?`,
		s.dialect.Table("configured_sensors"), strings.Join(sets, ", "))
	args = append(args, id, userID)

	if _, err := s.execContext(ctx, query, args...); err != nil {
		return nil, writeErr(err)
	}
	return s.GetSensor(ctx, userID, id)
}

// DeleteSensor soft-deletes a sensor: the row stays with is_active cleared so
// history remains attributable, and the plane join simply stops showing
// planes that reference it. Deleting twice reports not-found.
func (s *Store) DeleteSensor(ctx context.Context, userID int, id int64) error {
	query := fmt.Sprintf(`UPDATE %s SET is_active = %s, updated_at = %s WHERE configured_sensor_id = ? AND user_id = ? AND is_active = %s`,
		s.dialect.Table("configured_sensors"),
		boolLiteral(s.dialect, false), s.dialect.CurrentTimestamp(), boolLiteral(s.dialect, true))

	res, err := s.execContext(ctx, query, id, userID)
	if err != nil {
		return writeErr(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return writeErr(err)
	}
	if affected == 0 {
		return apperr.New(apperr.NotFound, "configured sensor not found")
	}
	logDebug("configured sensor deleted", "user_id", userID, "configured_sensor_id", id)
	return nil
}

func validateThresholds(min, max *float64) error {
	if min != nil && max != nil && *min >= *max {
		return apperr.New(apperr.InvalidInput, "min_threshold must be less than max_threshold")
	}
	return nil
}

// scanner covers both sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSensor(row scanner) (*ConfiguredSensor, error) {
	var sensor ConfiguredSensor
	var active dbBool
	err := row.Scan(&sensor.ID, &sensor.UserID, &sensor.ObjectID, &sensor.DeviceID, &sensor.InputLabel,
		&sensor.Source, &sensor.SensorID, &sensor.CustomLabel,
		&sensor.MinThreshold, &sensor.MaxThreshold, &sensor.Multiplier,
		&active, &sensor.CreatedAt, &sensor.UpdatedAt)
	if err != nil {
		return nil, err
	}
	sensor.IsActive = bool(active)
	return &sensor, nil
}

// dbBool scans a boolean from either backend: SQLite stores 0/1 integers,
// PostgreSQL returns native booleans.
type dbBool bool

func (b *dbBool) Scan(src interface{}) error {
	switch v := src.(type) {
	case bool:
		*b = dbBool(v)
	case int64:
		*b = v != 0
	case nil:
		*b = false
	default:
		return fmt.Errorf("cannot scan %T into bool", src)
	}
	return nil
}
