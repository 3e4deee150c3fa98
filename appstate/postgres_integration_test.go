//go:build integration

package appstate

import (
	"context"
	"testing"

	"github.com/AndyMelnik/sensoriqua/apperr"
)

// TestPostgresBackendParity runs the same dashboard-state behavior against a
// real Postgres so both backends stay semantically identical.
func TestPostgresBackendParity(t *testing.T) {
	WithPostgresStore(t, func(t *testing.T, s *Store) {
		ctx := context.Background()

		if s.Dialect().Name() != "postgres" {
			t.Fatalf("dialect = %s, want postgres", s.Dialect().Name())
		}

		created, err := s.CreateSensor(ctx, 1, SensorInput{
			ObjectID:     10,
			DeviceID:     77,
			InputLabel:   "coolant_temp",
			CustomLabel:  "Coolant",
			MinThreshold: f64(0),
			MaxThreshold: f64(120),
		})
		if err != nil {
			t.Fatalf("create: %v", err)
		}

		// Tables live in the app schema, not the tenant's default search path.
		var count int
		err = s.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM app_sensoriqua.configured_sensors WHERE configured_sensor_id = $1", created.ID).Scan(&count)
		if err != nil {
			t.Fatalf("schema-qualified read: %v", err)
		}
		if count != 1 {
			t.Errorf("row not in %s schema", Schema)
		}

		if _, err := s.CreateSensor(ctx, 1, SensorInput{
			ObjectID: 10, DeviceID: 77, InputLabel: "x", CustomLabel: "X",
			MinThreshold: f64(9), MaxThreshold: f64(9),
		}); apperr.KindOf(err) != apperr.InvalidInput {
			t.Errorf("threshold validation differs from sqlite backend: %v", err)
		}

		if _, err := s.AddPlane(ctx, 1, created.ID, nil); err != nil {
			t.Fatalf("add plane: %v", err)
		}
		if _, err := s.AddPlane(ctx, 1, created.ID, nil); err != nil {
			t.Fatalf("re-add plane (upsert): %v", err)
		}
		planes, err := s.ListPlanes(ctx, 1)
		if err != nil {
			t.Fatalf("list planes: %v", err)
		}
		if len(planes) != 1 {
			t.Errorf("upsert parity broken: %d planes", len(planes))
		}

		if err := s.DeleteSensor(ctx, 1, created.ID); err != nil {
			t.Fatalf("delete: %v", err)
		}
		sensors, err := s.ListSensors(ctx, 1)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(sensors) != 0 {
			t.Errorf("soft delete parity broken: %d sensors", len(sensors))
		}
	})
}

// TestPostgresMissingTablesDegrade checks the read/write split when the
// dashboard tables were never provisioned.
func TestPostgresMissingTablesDegrade(t *testing.T) {
	WithPostgresStore(t, func(t *testing.T, s *Store) {
		ctx := context.Background()

		if _, err := s.db.ExecContext(ctx, "DROP TABLE app_sensoriqua.dashboard_planes"); err != nil {
			t.Fatalf("drop planes: %v", err)
		}
		if _, err := s.db.ExecContext(ctx, "DROP TABLE app_sensoriqua.configured_sensors"); err != nil {
			t.Fatalf("drop sensors: %v", err)
		}

		sensors, err := s.ListSensors(ctx, 1)
		if err != nil {
			t.Fatalf("read should degrade to empty, got: %v", err)
		}
		if len(sensors) != 0 {
			t.Errorf("expected empty list, got %d", len(sensors))
		}

		_, err = s.CreateSensor(ctx, 1, SensorInput{ObjectID: 10, DeviceID: 77, InputLabel: "x", CustomLabel: "X"})
		if apperr.KindOf(err) != apperr.StoreUnavailable {
			t.Errorf("write kind = %v, want StoreUnavailable", apperr.KindOf(err))
		}
	})
}
