package appstate

import "testing"

func TestConvertPlaceholders(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"SELECT 1", "SELECT 1"},
		{"SELECT * FROM t WHERE a = ?", "SELECT * FROM t WHERE a = $1"},
		{"INSERT INTO t VALUES (?, ?, ?)", "INSERT INTO t VALUES ($1, $2, $3)"},
		{"UPDATE t SET a = ? WHERE b = ? AND c = ?", "UPDATE t SET a = $1 WHERE b = $2 AND c = $3"},
	}

	for _, tt := range tests {
		if got := ConvertPlaceholders(tt.in); got != tt.want {
			t.Errorf("ConvertPlaceholders(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTableQualification(t *testing.T) {
	t.Parallel()

	lite := &SQLiteDialect{}
	pg := &PostgresDialect{}

	if got := lite.Table("configured_sensors"); got != "configured_sensors" {
		t.Errorf("sqlite table = %q, want unqualified", got)
	}
	if got := pg.Table("configured_sensors"); got != "app_sensoriqua.configured_sensors" {
		t.Errorf("postgres table = %q, want schema-qualified", got)
	}
}

func TestDialectRewrite(t *testing.T) {
	t.Parallel()

	q := "SELECT id FROM t WHERE user_id = ? AND id = ?"
	if got := (&SQLiteDialect{}).Rewrite(q); got != q {
		t.Errorf("sqlite rewrite changed query: %q", got)
	}
	if got := (&PostgresDialect{}).Rewrite(q); got != "SELECT id FROM t WHERE user_id = $1 AND id = $2" {
		t.Errorf("postgres rewrite = %q", got)
	}
}

func TestUpsertConflict(t *testing.T) {
	t.Parallel()

	lite := (&SQLiteDialect{}).UpsertConflict([]string{"user_id", "configured_sensor_id"})
	if lite != "ON CONFLICT(user_id, configured_sensor_id) DO UPDATE SET" {
		t.Errorf("sqlite upsert clause = %q", lite)
	}
	pg := (&PostgresDialect{}).UpsertConflict([]string{"user_id", "configured_sensor_id"})
	if pg != "ON CONFLICT (user_id, configured_sensor_id) DO UPDATE SET" {
		t.Errorf("postgres upsert clause = %q", pg)
	}
}

func TestResolveOptions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		sessionDSN string
		override   string
		wantPG     string
		wantLite   string
	}{
		{"session dsn wins", "postgres://tenant/db", "other.db", "postgres://tenant/db", ""},
		{"override postgres", "", "postgres://shared/db", "postgres://shared/db", ""},
		{"override postgresql scheme", "", "postgresql://shared/db", "postgresql://shared/db", ""},
		{"override sqlite path", "", "/var/lib/app/state.db", "", "/var/lib/app/state.db"},
		{"default", "", "", "", DefaultSQLitePath},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			opts := ResolveOptions(tt.sessionDSN, tt.override)
			if opts.PostgresDSN != tt.wantPG || opts.SQLitePath != tt.wantLite {
				t.Errorf("ResolveOptions = %+v, want pg=%q lite=%q", opts, tt.wantPG, tt.wantLite)
			}
		})
	}
}
