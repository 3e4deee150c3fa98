package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/AndyMelnik/sensoriqua/apperr"
)

// defaultTagEntityType is the tag_links entity_type value used for objects.
const defaultTagEntityType = 1

// Grouping is one entry of a grouping dimension. IDs are numeric for catalog
// tables and symbolic for sensor types, so the field is left untyped.
type Grouping struct {
	ID    interface{} `json:"id"`
	Label string      `json:"label"`
}

// ObjectSummary is a monitored object (vehicle, asset) with its device and
// optional grouping context.
type ObjectSummary struct {
	ID              int64    `json:"id"`
	Label           string   `json:"label"`
	DeviceID        *int64   `json:"device_id"`
	GroupID         *int64   `json:"group_id,omitempty"`
	GroupLabel      *string  `json:"group_label,omitempty"`
	TagLabels       []string `json:"tag_labels,omitempty"`
	DepartmentLabel *string  `json:"department_label,omitempty"`
}

// ObjectFilter narrows the object list. All id lists are OR within a
// dimension and AND across dimensions.
type ObjectFilter struct {
	GroupIDs            []int64  `json:"group_ids"`
	TagIDs              []int64  `json:"tag_ids"`
	DepartmentIDs       []int64  `json:"department_ids"`
	GarageIDs           []int64  `json:"garage_ids"`
	SensorTypeIDs       []string `json:"sensor_type_ids"`
	ClientID            *int64   `json:"client_id"`
	IncludeGroupingInfo bool     `json:"include_grouping_info"`
}

// DescriptionParameter is an extra key/value attached to a sensor description.
type DescriptionParameter struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// SensorInfo describes one selectable signal on a device.
type SensorInfo struct {
	Source                string                 `json:"source"`
	SensorID              *int64                 `json:"sensor_id"`
	InputLabel            string                 `json:"input_label"`
	Label                 string                 `json:"label"`
	SensorType            *string                `json:"sensor_type"`
	SensorUnits           *string                `json:"sensor_units"`
	DescriptionParameters []DescriptionParameter `json:"description_parameters"`
}

// Groupings lists one grouping dimension of the business catalog. The
// sensor_types dimension is synthesized from sensor descriptions plus the
// fixed state and tracking kinds.
func (c *Conn) Groupings(ctx context.Context, typ, search string) ([]Grouping, error) {
	switch typ {
	case "sensor_types":
		return c.sensorTypeGroupings(ctx, search)
	case "groups":
		return c.labelGroupings(ctx, "groups", "group_id", "group_label", search)
	case "tags":
		return c.labelGroupings(ctx, "tags", "tag_id", "tag_label", search)
	case "departments":
		return c.labelGroupings(ctx, "departments", "department_id", "department_label", search)
	case "garages":
		return c.garageGroupings(ctx, search)
	default:
		return nil, apperr.New(apperr.InvalidInput, "type must be groups|tags|departments|garages|sensor_types")
	}
}

func (c *Conn) labelGroupings(ctx context.Context, table, idCol, labelCol, search string) ([]Grouping, error) {
	query := fmt.Sprintf(`SELECT %s AS id, %s AS label FROM %s.%s`,
		idCol, labelCol, businessSchema, table)
	args := []interface{}{}
	if search != "" {
		query += fmt.Sprintf(" WHERE %s ILIKE $1", labelCol)
		args = append(args, "%"+search+"%")
	}
	query += fmt.Sprintf(" ORDER BY %s", labelCol)

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, queryFailed(err)
	}
	defer rows.Close()

	out := []Grouping{}
	for rows.Next() {
		var id int64
		var label string
		if err := rows.Scan(&id, &label); err != nil {
			return nil, queryFailed(err)
		}
		out = append(out, Grouping{ID: id, Label: label})
	}
	if err := rows.Err(); err != nil {
		return nil, queryFailed(err)
	}
	return out, nil
}

// garageGroupings labels garages by organization; garages carry no label
// column of their own.
func (c *Conn) garageGroupings(ctx context.Context, search string) ([]Grouping, error) {
	query := fmt.Sprintf(`SELECT garage_id AS id,
			COALESCE(organization_label, 'Garage ' || garage_id::text) AS label
		FROM %s.garages`, businessSchema)
	args := []interface{}{}
	if search != "" {
		query += " WHERE organization_label ILIKE $1"
		args = append(args, "%"+search+"%")
	}
	query += " ORDER BY label"

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, queryFailed(err)
	}
	defer rows.Close()

	out := []Grouping{}
	for rows.Next() {
		var id int64
		var label string
		if err := rows.Scan(&id, &label); err != nil {
			return nil, queryFailed(err)
		}
		out = append(out, Grouping{ID: id, Label: label})
	}
	if err := rows.Err(); err != nil {
		return nil, queryFailed(err)
	}
	return out, nil
}

func (c *Conn) sensorTypeGroupings(ctx context.Context, search string) ([]Grouping, error) {
	out := []Grouping{}

	query := fmt.Sprintf(`SELECT DISTINCT sensor_type AS id
		FROM %s.sensor_description
		WHERE sensor_type IS NOT NULL AND sensor_type != ''
		ORDER BY sensor_type`, businessSchema)
	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		// A warehouse without sensor descriptions still offers the fixed kinds.
		logDebug("sensor_description not readable, listing fixed sensor types only", "error", err)
	} else {
		defer rows.Close()
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return nil, queryFailed(err)
			}
			out = append(out, Grouping{ID: id, Label: id})
		}
		if err := rows.Err(); err != nil {
			return nil, queryFailed(err)
		}
	}

	lower := strings.ToLower(search)
	for _, fixed := range []Grouping{{ID: "state", Label: "State"}, {ID: "tracking", Label: "Tracking"}} {
		if search == "" ||
			strings.Contains(strings.ToLower(fixed.Label), lower) ||
			strings.Contains(fixed.ID.(string), lower) {
			out = append(out, fixed)
		}
	}
	return out, nil
}

// Objects lists non-deleted objects matching the filter, ordered by label.
func (c *Conn) Objects(ctx context.Context, filter ObjectFilter) ([]ObjectSummary, error) {
	conditions := []string{"o.is_deleted = false"}
	args := []interface{}{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(filter.GroupIDs) > 0 {
		conditions = append(conditions, fmt.Sprintf("o.group_id = ANY(%s)", arg(filter.GroupIDs)))
	}
	if len(filter.TagIDs) > 0 {
		conditions = append(conditions, fmt.Sprintf(`EXISTS (
			SELECT 1 FROM %s.tag_links tl
			WHERE tl.entity_id = o.object_id
			  AND tl.entity_type = %s
			  AND tl.tag_id = ANY(%s))`,
			businessSchema, arg(defaultTagEntityType), arg(filter.TagIDs)))
	}
	if len(filter.DepartmentIDs) > 0 {
		conditions = append(conditions, fmt.Sprintf(`EXISTS (
			SELECT 1 FROM %s.employees e
			WHERE e.object_id = o.object_id
			  AND e.department_id = ANY(%s))`,
			businessSchema, arg(filter.DepartmentIDs)))
	}
	if len(filter.GarageIDs) > 0 {
		conditions = append(conditions, fmt.Sprintf(`EXISTS (
			SELECT 1 FROM %s.vehicles v
			WHERE v.object_id = o.object_id
			  AND v.garage_id = ANY(%s))`,
			businessSchema, arg(filter.GarageIDs)))
	}
	if cond := c.sensorTypeCondition(filter.SensorTypeIDs, arg); cond != "" {
		conditions = append(conditions, cond)
	}
	if filter.ClientID != nil {
		conditions = append(conditions, fmt.Sprintf("o.client_id = %s", arg(*filter.ClientID)))
	}

	query := fmt.Sprintf(`SELECT DISTINCT o.object_id AS id, o.object_label AS label, o.device_id
		FROM %s.objects o
		WHERE %s
		ORDER BY o.object_label`,
		businessSchema, strings.Join(conditions, " AND "))

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, queryFailed(err)
	}
	defer rows.Close()

	out := []ObjectSummary{}
	for rows.Next() {
		var o ObjectSummary
		var deviceID sql.NullInt64
		if err := rows.Scan(&o.ID, &o.Label, &deviceID); err != nil {
			return nil, queryFailed(err)
		}
		if deviceID.Valid {
			id := deviceID.Int64
			o.DeviceID = &id
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, queryFailed(err)
	}

	if filter.IncludeGroupingInfo && len(out) > 0 {
		// Enrichment is best-effort: a warehouse without these catalog
		// tables still serves the plain object list.
		if err := c.attachGroupingInfo(ctx, out); err != nil {
			logWarn("grouping info enrichment failed", "error", err)
		}
	}
	return out, nil
}

// sensorTypeCondition filters objects to those whose device reports at least
// one sensor of any selected type. The fixed "state" and "tracking" kinds
// check table presence; other ids match described sensor types.
func (c *Conn) sensorTypeCondition(typeIDs []string, arg func(interface{}) string) string {
	if len(typeIDs) == 0 {
		return ""
	}
	conds := []string{}
	other := []string{}
	for _, id := range typeIDs {
		switch id {
		case SourceState:
			conds = append(conds, fmt.Sprintf(
				"o.device_id IN (SELECT DISTINCT device_id FROM %s.states)", telemetrySchema))
		case SourceTracking:
			conds = append(conds, fmt.Sprintf(
				"o.device_id IN (SELECT DISTINCT device_id FROM %s.tracking_data_core)", telemetrySchema))
		default:
			other = append(other, id)
		}
	}
	if len(other) > 0 {
		conds = append(conds, fmt.Sprintf(
			"o.device_id IN (SELECT DISTINCT device_id FROM %s.sensor_description WHERE sensor_type = ANY(%s))",
			businessSchema, arg(other)))
	}
	return "(" + strings.Join(conds, " OR ") + ")"
}

func (c *Conn) attachGroupingInfo(ctx context.Context, objects []ObjectSummary) error {
	ids := make([]int64, len(objects))
	index := make(map[int64]*ObjectSummary, len(objects))
	for i := range objects {
		ids[i] = objects[i].ID
		index[objects[i].ID] = &objects[i]
	}

	groupQuery := fmt.Sprintf(`SELECT o.object_id, o.group_id, g.group_label
		FROM %s.objects o
		JOIN %s.groups g ON g.group_id = o.group_id
		WHERE o.object_id = ANY($1)`, businessSchema, businessSchema)
	rows, err := c.db.QueryContext(ctx, groupQuery, ids)
	if err != nil {
		return err
	}
	for rows.Next() {
		var objectID, groupID int64
		var label string
		if err := rows.Scan(&objectID, &groupID, &label); err != nil {
			rows.Close()
			return err
		}
		if o := index[objectID]; o != nil {
			o.GroupID = &groupID
			o.GroupLabel = &label
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	tagQuery := fmt.Sprintf(`SELECT tl.entity_id, t.tag_label
		FROM %s.tag_links tl
		JOIN %s.tags t ON t.tag_id = tl.tag_id
		WHERE tl.entity_id = ANY($1) AND tl.entity_type = $2 AND t.tag_label IS NOT NULL`,
		businessSchema, businessSchema)
	rows, err = c.db.QueryContext(ctx, tagQuery, ids, defaultTagEntityType)
	if err != nil {
		return err
	}
	for rows.Next() {
		var objectID int64
		var label string
		if err := rows.Scan(&objectID, &label); err != nil {
			rows.Close()
			return err
		}
		if o := index[objectID]; o != nil {
			o.TagLabels = append(o.TagLabels, label)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	deptQuery := fmt.Sprintf(`SELECT DISTINCT ON (e.object_id) e.object_id, d.department_label
		FROM %s.employees e
		JOIN %s.departments d ON d.department_id = e.department_id
		WHERE e.object_id = ANY($1)
		ORDER BY e.object_id`, businessSchema, businessSchema)
	rows, err = c.db.QueryContext(ctx, deptQuery, ids)
	if err != nil {
		return err
	}
	for rows.Next() {
		var objectID int64
		var label string
		if err := rows.Scan(&objectID, &label); err != nil {
			rows.Close()
			return err
		}
		if o := index[objectID]; o != nil {
			o.DepartmentLabel = &label
		}
	}
	rows.Close()
	return rows.Err()
}

// ObjectLabels resolves object ids to their labels, for annotating dashboard
// configuration with human-readable names.
func (c *Conn) ObjectLabels(ctx context.Context, objectIDs []int64) (map[int64]string, error) {
	labels := make(map[int64]string)
	if len(objectIDs) == 0 {
		return labels, nil
	}
	query := fmt.Sprintf(`SELECT object_id, object_label FROM %s.objects
		WHERE object_id = ANY($1)`,
		businessSchema)
	rows, err := c.db.QueryContext(ctx, query, objectIDs)
	if err != nil {
		return nil, queryFailed(err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var label string
		if err := rows.Scan(&id, &label); err != nil {
			return nil, queryFailed(err)
		}
		labels[id] = label
	}
	if err := rows.Err(); err != nil {
		return nil, queryFailed(err)
	}
	return labels, nil
}

// SensorsForObject lists every selectable signal on an object's device:
// distinct input names enriched from sensor descriptions, distinct state
// names, and the fixed tracking columns.
func (c *Conn) SensorsForObject(ctx context.Context, objectID int64, search string) ([]SensorInfo, error) {
	var deviceID sql.NullInt64
	lookup := fmt.Sprintf(`SELECT device_id FROM %s.objects WHERE object_id = $1`, businessSchema)
	err := c.db.QueryRowContext(ctx, lookup, objectID).Scan(&deviceID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.New(apperr.NotFound, "object not found")
		}
		return nil, queryFailed(err)
	}
	if !deviceID.Valid {
		return []SensorInfo{}, nil
	}

	out := []SensorInfo{}
	out = append(out, c.inputSensors(ctx, deviceID.Int64)...)
	out = append(out, c.stateSensors(ctx, deviceID.Int64)...)

	trackingType := "tracking_data_core"
	for _, name := range TrackingSignals() {
		t := trackingType
		out = append(out, SensorInfo{
			Source:                SourceTracking,
			InputLabel:            name,
			Label:                 name,
			SensorType:            &t,
			DescriptionParameters: []DescriptionParameter{},
		})
	}

	if search != "" {
		out = filterSensors(out, search)
	}
	return out, nil
}

func (c *Conn) inputSensors(ctx context.Context, deviceID int64) []SensorInfo {
	query := fmt.Sprintf(`SELECT DISTINCT i.sensor_name
		FROM %s.inputs i WHERE i.device_id = $1 ORDER BY i.sensor_name`, telemetrySchema)
	rows, err := c.db.QueryContext(ctx, query, deviceID)
	if err != nil {
		logDebug("input sensor listing failed", "device_id", deviceID, "error", err)
		return nil
	}
	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil
		}
		names = append(names, name)
	}
	rows.Close()
	if len(names) == 0 {
		return nil
	}

	type description struct {
		sensorID    sql.NullInt64
		sensorLabel sql.NullString
		sensorType  sql.NullString
		sensorUnits sql.NullString
		unitsType   sql.NullInt64
	}
	described := map[string]description{}
	descQuery := fmt.Sprintf(`SELECT sensor_id, sensor_label, input_label, sensor_type, sensor_units, units_type
		FROM %s.sensor_description WHERE device_id = $1 AND input_label = ANY($2)`, businessSchema)
	if rows, err := c.db.QueryContext(ctx, descQuery, deviceID, names); err == nil {
		for rows.Next() {
			var d description
			var inputLabel string
			if err := rows.Scan(&d.sensorID, &d.sensorLabel, &inputLabel, &d.sensorType, &d.sensorUnits, &d.unitsType); err != nil {
				break
			}
			described[inputLabel] = d
		}
		rows.Close()
	}

	unitsLookup := c.unitsTypeLookup(ctx)

	out := make([]SensorInfo, 0, len(names))
	for _, name := range names {
		info := SensorInfo{
			Source:                SourceInput,
			InputLabel:            name,
			Label:                 name,
			DescriptionParameters: []DescriptionParameter{},
		}
		if d, ok := described[name]; ok {
			if d.sensorID.Valid {
				id := d.sensorID.Int64
				info.SensorID = &id
			}
			if d.sensorLabel.Valid && d.sensorLabel.String != "" {
				info.Label = d.sensorLabel.String
			}
			if d.sensorType.Valid {
				t := d.sensorType.String
				info.SensorType = &t
			}
			if d.sensorUnits.Valid {
				u := d.sensorUnits.String
				info.SensorUnits = &u
			}
			if d.unitsType.Valid {
				if desc, ok := unitsLookup[d.unitsType.Int64]; ok {
					info.DescriptionParameters = []DescriptionParameter{{Name: "units_type", Value: desc}}
				}
			}
		}
		out = append(out, info)
	}
	return out
}

// unitsTypeLookup maps units_type keys to their human descriptions. Missing
// lookup tables just mean no extra parameters.
func (c *Conn) unitsTypeLookup(ctx context.Context) map[int64]string {
	lookup := map[int64]string{}
	query := fmt.Sprintf(`SELECT key, description FROM %s.description_parametrs
		WHERE type = 'sensor_description_units_type'`, businessSchema)
	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return lookup
	}
	defer rows.Close()
	for rows.Next() {
		var key int64
		var desc string
		if err := rows.Scan(&key, &desc); err != nil {
			return lookup
		}
		lookup[key] = desc
	}
	return lookup
}

func (c *Conn) stateSensors(ctx context.Context, deviceID int64) []SensorInfo {
	query := fmt.Sprintf(`SELECT DISTINCT state_name
		FROM %s.states WHERE device_id = $1 ORDER BY state_name`, telemetrySchema)
	rows, err := c.db.QueryContext(ctx, query, deviceID)
	if err != nil {
		logDebug("state sensor listing failed", "device_id", deviceID, "error", err)
		return nil
	}
	defer rows.Close()

	stateType := "state"
	out := []SensorInfo{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return out
		}
		t := stateType
		out = append(out, SensorInfo{
			Source:                SourceState,
			InputLabel:            name,
			Label:                 name,
			SensorType:            &t,
			DescriptionParameters: []DescriptionParameter{},
		})
	}
	return out
}

func filterSensors(sensors []SensorInfo, search string) []SensorInfo {
	lower := strings.ToLower(search)
	match := func(s *string) bool {
		return s != nil && strings.Contains(strings.ToLower(*s), lower)
	}
	out := []SensorInfo{}
	for _, s := range sensors {
		if strings.Contains(strings.ToLower(s.Label), lower) ||
			strings.Contains(strings.ToLower(s.InputLabel), lower) ||
			match(s.SensorType) {
			out = append(out, s)
		}
	}
	return out
}
