package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/AndyMelnik/sensoriqua/apperr"
)

// Pair names one telemetry series: a device plus a signal label within a
// source kind.
type Pair struct {
	DeviceID int64  `json:"device_id"`
	Label    string `json:"sensor_input_label"`
	Source   string `json:"sensor_source"`
}

// Point is one bucketed sample. Value is nil when every raw sample in the
// bucket was empty.
type Point struct {
	TS    time.Time `json:"ts"`
	Value *float64  `json:"value"`
}

// LatestValue is the most recent sample of a series.
type LatestValue struct {
	Value *float64  `json:"value"`
	TS    time.Time `json:"ts"`
}

// SeriesKey builds the composite key batched responses are indexed by.
func SeriesKey(deviceID int64, label, source string) string {
	return fmt.Sprintf("%d:%s:%s", deviceID, source, label)
}

// recentWindow is the lookback for batched sparkline series.
const recentWindow = "1 hour"

// allowedHistoryHours are the selectable history windows.
var allowedHistoryHours = map[int]bool{1: true, 4: true, 12: true, 24: true}

// splitPairs normalizes sources and groups pairs by kind. Tracking pairs
// with a non-whitelisted label are dropped, matching the batched contract of
// answering what it can instead of failing the whole request.
func splitPairs(pairs []Pair) (inputs, states []Pair, trackingByCol map[string][]int64, colOrder []string) {
	trackingByCol = make(map[string][]int64)
	seen := make(map[string]map[int64]bool)
	for _, p := range pairs {
		p.Source = NormalizeSource(p.Source)
		switch p.Source {
		case SourceState:
			states = append(states, p)
		case SourceTracking:
			if !IsTrackingSignal(p.Label) {
				continue
			}
			if seen[p.Label] == nil {
				seen[p.Label] = make(map[int64]bool)
				colOrder = append(colOrder, p.Label)
			}
			if !seen[p.Label][p.DeviceID] {
				seen[p.Label][p.DeviceID] = true
				trackingByCol[p.Label] = append(trackingByCol[p.Label], p.DeviceID)
			}
		default:
			inputs = append(inputs, p)
		}
	}
	return inputs, states, trackingByCol, colOrder
}

// pairValues builds the VALUES clause and flattened args for a (device,label)
// join table. Casts are explicit so parameter types never depend on
// inference inside the CTE.
func pairValues(pairs []Pair) (string, []interface{}) {
	rows := make([]string, len(pairs))
	args := make([]interface{}, 0, len(pairs)*2)
	for i, p := range pairs {
		rows[i] = fmt.Sprintf("($%d::bigint, $%d::text)", i*2+1, i*2+2)
		args = append(args, p.DeviceID, p.Label)
	}
	return strings.Join(rows, ", "), args
}

// BatchRecent returns the last hour of one-minute buckets for every pair,
// keyed by SeriesKey. One query runs per source kind regardless of how many
// pairs the dashboard asks for; tracking pairs additionally collapse to one
// query per whitelisted column.
func (c *Conn) BatchRecent(ctx context.Context, pairs []Pair) (map[string][]Point, error) {
	series := make(map[string][]Point)
	if len(pairs) == 0 {
		return series, nil
	}

	inputs, states, trackingByCol, colOrder := splitPairs(pairs)

	if len(inputs) > 0 {
		values, args := pairValues(inputs)
		bucket := c.bucketExpr("i.device_time")
		query := fmt.Sprintf(`
			WITH cfg(device_id, sensor_name) AS (VALUES %s),
			series AS (
				SELECT i.device_id, i.sensor_name, %s AS bucket_ts,
				       avg(NULLIF(i.value,'')::numeric) AS value
				FROM %s.inputs i
				JOIN cfg ON cfg.device_id = i.device_id AND cfg.sensor_name = i.sensor_name
				WHERE i.device_time >= now() - interval '%s'
				GROUP BY i.device_id, i.sensor_name, %s
			)
			SELECT device_id, sensor_name, bucket_ts AS ts, value FROM series
			ORDER BY device_id, sensor_name, ts`,
			values, bucket, telemetrySchema, recentWindow, bucket)
		if err := c.collectSeries(ctx, series, SourceInput, query, args...); err != nil {
			return nil, err
		}
	}

	if len(states) > 0 {
		values, args := pairValues(states)
		bucket := c.bucketExpr("s.device_time")
		query := fmt.Sprintf(`
			WITH cfg(device_id, state_name) AS (VALUES %s),
			series AS (
				SELECT s.device_id, s.state_name AS sensor_name, %s AS bucket_ts,
				       avg(NULLIF(s.value,'')::numeric) AS value
				FROM %s.states s
				JOIN cfg ON cfg.device_id = s.device_id AND cfg.state_name = s.state_name
				WHERE s.device_time >= now() - interval '%s'
				GROUP BY s.device_id, s.state_name, %s
			)
			SELECT device_id, sensor_name, bucket_ts AS ts, value FROM series
			ORDER BY device_id, sensor_name, ts`,
			values, bucket, telemetrySchema, recentWindow, bucket)
		if err := c.collectSeries(ctx, series, SourceState, query, args...); err != nil {
			return nil, err
		}
	}

	for _, col := range colOrder {
		deviceIDs := trackingByCol[col]
		bucket := c.bucketExpr("t.device_time")
		// col comes from the tracking whitelist
		query := fmt.Sprintf(`
			SELECT t.device_id, %s AS bucket_ts, avg((t.%s)::numeric) AS value
			FROM %s.tracking_data_core t
			WHERE t.device_id = ANY($1) AND t.device_time >= now() - interval '%s'
			GROUP BY t.device_id, %s
			ORDER BY t.device_id, bucket_ts`,
			bucket, col, telemetrySchema, recentWindow, bucket)

		rows, err := c.db.QueryContext(ctx, query, deviceIDs)
		if err != nil {
			return nil, queryFailed(err)
		}
		if err := scanTrackingSeries(rows, series, col); err != nil {
			return nil, err
		}
	}

	logDebug("batched recent series", "pairs", len(pairs), "keys", len(series))
	return series, nil
}

// collectSeries runs a (device_id, sensor_name, ts, value) query and appends
// its rows into the keyed series map.
func (c *Conn) collectSeries(ctx context.Context, series map[string][]Point, source, query string, args ...interface{}) error {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return queryFailed(err)
	}
	defer rows.Close()

	for rows.Next() {
		var deviceID int64
		var name string
		var ts time.Time
		var value sql.NullFloat64
		if err := rows.Scan(&deviceID, &name, &ts, &value); err != nil {
			return queryFailed(err)
		}
		key := SeriesKey(deviceID, name, source)
		series[key] = append(series[key], Point{TS: ts, Value: nullableFloat(value)})
	}
	if err := rows.Err(); err != nil {
		return queryFailed(err)
	}
	return nil
}

func scanTrackingSeries(rows *sql.Rows, series map[string][]Point, col string) error {
	defer rows.Close()
	for rows.Next() {
		var deviceID int64
		var ts time.Time
		var value sql.NullFloat64
		if err := rows.Scan(&deviceID, &ts, &value); err != nil {
			return queryFailed(err)
		}
		key := SeriesKey(deviceID, col, SourceTracking)
		series[key] = append(series[key], Point{TS: ts, Value: nullableFloat(value)})
	}
	if err := rows.Err(); err != nil {
		return queryFailed(err)
	}
	return nil
}

func scanTrackingLatest(rows *sql.Rows, values map[string]LatestValue, col string) error {
	defer rows.Close()
	for rows.Next() {
		var deviceID int64
		var ts time.Time
		var value sql.NullFloat64
		if err := rows.Scan(&deviceID, &ts, &value); err != nil {
			return queryFailed(err)
		}
		values[SeriesKey(deviceID, col, SourceTracking)] = LatestValue{TS: ts, Value: nullableFloat(value)}
	}
	if err := rows.Err(); err != nil {
		return queryFailed(err)
	}
	return nil
}

// History returns one-minute buckets for a single series over a selectable
// window. Only 1, 4, 12, and 24 hour windows are offered.
func (c *Conn) History(ctx context.Context, deviceID int64, label, source string, hours int) ([]Point, error) {
	if !allowedHistoryHours[hours] {
		return nil, apperr.New(apperr.InvalidInput, "hours must be 1, 4, 12, or 24")
	}
	source = NormalizeSource(source)
	if source == SourceTracking && !IsTrackingSignal(label) {
		return nil, apperr.New(apperr.InvalidInput, "sensor_input_label not allowed for tracking source")
	}

	var query string
	var args []interface{}
	switch source {
	case SourceState:
		bucket := c.bucketExpr("s.device_time")
		query = fmt.Sprintf(`
			SELECT %s AS bucket_ts, avg(NULLIF(s.value,'')::numeric) AS value
			FROM %s.states s
			WHERE s.device_id = $1 AND s.state_name = $2
			  AND s.device_time >= now() - make_interval(hours => $3)
			GROUP BY %s
			ORDER BY bucket_ts`, bucket, telemetrySchema, bucket)
		args = []interface{}{deviceID, label, hours}
	case SourceTracking:
		bucket := c.bucketExpr("t.device_time")
		query = fmt.Sprintf(`
			SELECT %s AS bucket_ts, avg((t.%s)::numeric) AS value
			FROM %s.tracking_data_core t
			WHERE t.device_id = $1 AND t.device_time >= now() - make_interval(hours => $2)
			GROUP BY %s
			ORDER BY bucket_ts`, bucket, label, telemetrySchema, bucket)
		args = []interface{}{deviceID, hours}
	default:
		bucket := c.bucketExpr("i.device_time")
		query = fmt.Sprintf(`
			SELECT %s AS bucket_ts, avg(NULLIF(i.value,'')::numeric) AS value
			FROM %s.inputs i
			WHERE i.device_id = $1 AND i.sensor_name = $2
			  AND i.device_time >= now() - make_interval(hours => $3)
			GROUP BY %s
			ORDER BY bucket_ts`, bucket, telemetrySchema, bucket)
		args = []interface{}{deviceID, label, hours}
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, queryFailed(err)
	}
	defer rows.Close()

	points := []Point{}
	for rows.Next() {
		var ts time.Time
		var value sql.NullFloat64
		if err := rows.Scan(&ts, &value); err != nil {
			return nil, queryFailed(err)
		}
		points = append(points, Point{TS: ts, Value: nullableFloat(value)})
	}
	if err := rows.Err(); err != nil {
		return nil, queryFailed(err)
	}
	return points, nil
}

// BatchLatest returns the most recent sample for every pair, keyed by
// SeriesKey. Pairs with no samples are simply absent from the result.
func (c *Conn) BatchLatest(ctx context.Context, pairs []Pair) (map[string]LatestValue, error) {
	values := make(map[string]LatestValue)
	if len(pairs) == 0 {
		return values, nil
	}

	inputs, states, trackingByCol, colOrder := splitPairs(pairs)

	if len(inputs) > 0 {
		clause, args := pairValues(inputs)
		query := fmt.Sprintf(`
			WITH cfg(device_id, sensor_name) AS (VALUES %s),
			latest AS (
				SELECT DISTINCT ON (i.device_id, i.sensor_name)
					i.device_id, i.sensor_name, i.device_time AS ts, NULLIF(i.value,'')::numeric AS value
				FROM %s.inputs i
				JOIN cfg ON cfg.device_id = i.device_id AND cfg.sensor_name = i.sensor_name
				ORDER BY i.device_id, i.sensor_name, i.device_time DESC
			)
			SELECT device_id, sensor_name, ts, value FROM latest`,
			clause, telemetrySchema)
		if err := c.collectLatest(ctx, values, SourceInput, query, args...); err != nil {
			return nil, err
		}
	}

	if len(states) > 0 {
		clause, args := pairValues(states)
		query := fmt.Sprintf(`
			WITH cfg(device_id, state_name) AS (VALUES %s),
			latest AS (
				SELECT DISTINCT ON (s.device_id, s.state_name)
					s.device_id, s.state_name AS sensor_name, s.device_time AS ts, NULLIF(s.value,'')::numeric AS value
				FROM %s.states s
				JOIN cfg ON cfg.device_id = s.device_id AND cfg.state_name = s.state_name
				ORDER BY s.device_id, s.state_name, s.device_time DESC
			)
			SELECT device_id, sensor_name, ts, value FROM latest`,
			clause, telemetrySchema)
		if err := c.collectLatest(ctx, values, SourceState, query, args...); err != nil {
			return nil, err
		}
	}

	// One query per tracking column covers all of that column's devices.
	for _, col := range colOrder {
		deviceIDs := trackingByCol[col]
		query := fmt.Sprintf(`
			SELECT DISTINCT ON (t.device_id)
				t.device_id, t.device_time AS ts, (t.%s)::numeric AS value
			FROM %s.tracking_data_core t
			WHERE t.device_id = ANY($1)
			ORDER BY t.device_id, t.device_time DESC`,
			col, telemetrySchema)

		rows, err := c.db.QueryContext(ctx, query, deviceIDs)
		if err != nil {
			return nil, queryFailed(err)
		}
		if err := scanTrackingLatest(rows, values, col); err != nil {
			return nil, err
		}
	}

	return values, nil
}

func (c *Conn) collectLatest(ctx context.Context, values map[string]LatestValue, source, query string, args ...interface{}) error {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return queryFailed(err)
	}
	defer rows.Close()

	for rows.Next() {
		var deviceID int64
		var name string
		var ts time.Time
		var value sql.NullFloat64
		if err := rows.Scan(&deviceID, &name, &ts, &value); err != nil {
			return queryFailed(err)
		}
		values[SeriesKey(deviceID, name, source)] = LatestValue{TS: ts, Value: nullableFloat(value)}
	}
	if err := rows.Err(); err != nil {
		return queryFailed(err)
	}
	return nil
}

func nullableFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
