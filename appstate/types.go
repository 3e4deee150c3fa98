package appstate

import "time"

// ConfiguredSensor is a dashboard sensor definition owned by one tenant. The
// thresholds bound the gauge display and the multiplier rescales raw values;
// all three may be absent.
type ConfiguredSensor struct {
	ID           int64     `json:"configured_sensor_id"`
	UserID       int       `json:"-"`
	ObjectID     int64     `json:"object_id"`
	DeviceID     int64     `json:"device_id"`
	InputLabel   string    `json:"sensor_input_label"`
	Source       string    `json:"sensor_source"`
	SensorID     *int64    `json:"sensor_id"`
	CustomLabel  string    `json:"sensor_label_custom"`
	MinThreshold *float64  `json:"min_threshold"`
	MaxThreshold *float64  `json:"max_threshold"`
	Multiplier   *float64  `json:"multiplier"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// SensorInput is the payload for creating a configured sensor.
type SensorInput struct {
	ObjectID     int64    `json:"object_id"`
	DeviceID     int64    `json:"device_id"`
	InputLabel   string   `json:"sensor_input_label"`
	Source       string   `json:"sensor_source"`
	SensorID     *int64   `json:"sensor_id"`
	CustomLabel  string   `json:"sensor_label_custom"`
	MinThreshold *float64 `json:"min_threshold"`
	MaxThreshold *float64 `json:"max_threshold"`
	Multiplier   *float64 `json:"multiplier"`
}

// SensorPatch is a partial update; nil fields are left untouched.
type SensorPatch struct {
	CustomLabel  *string  `json:"sensor_label_custom"`
	MinThreshold *float64 `json:"min_threshold"`
	MaxThreshold *float64 `json:"max_threshold"`
	Multiplier   *float64 `json:"multiplier"`
}

// DashboardPlane pins a configured sensor onto the dashboard at a position.
type DashboardPlane struct {
	ID                 int64             `json:"dashboard_plane_id"`
	UserID             int               `json:"-"`
	ConfiguredSensorID int64             `json:"configured_sensor_id"`
	PositionIndex      int               `json:"position_index"`
	Sensor             *ConfiguredSensor `json:"sensor,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
}
