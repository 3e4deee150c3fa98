package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Server.HTTPPort != 8000 {
		t.Errorf("HTTPPort = %d, want 8000", cfg.Server.HTTPPort)
	}
	if cfg.Server.BindAddress != "0.0.0.0" {
		t.Errorf("BindAddress = %q", cfg.Server.BindAddress)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q", cfg.Logging.Level)
	}
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.HTTPPort != 8000 {
		t.Errorf("HTTPPort = %d, want default 8000", cfg.Server.HTTPPort)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.toml")
	content := `
[server]
http_port = 9100
bind_address = "127.0.0.1"

[logging]
level = "debug"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.HTTPPort != 9100 {
		t.Errorf("HTTPPort = %d, want 9100", cfg.Server.HTTPPort)
	}
	if cfg.Server.BindAddress != "127.0.0.1" {
		t.Errorf("BindAddress = %q", cfg.Server.BindAddress)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q", cfg.Logging.Level)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SENSORIQUA_HTTP_PORT", "9200")
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("ALLOW_PRIVATE_DSN", "true")
	t.Setenv("SENSORIQUA_DEFAULT_DSN", "postgres://u:p@wh.example.com/iot")
	t.Setenv("SENSORIQUA_LOG_LEVEL", "trace")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.HTTPPort != 9200 {
		t.Errorf("HTTPPort = %d, want 9200", cfg.Server.HTTPPort)
	}
	if len(cfg.Auth.JWTSecret) != 32 {
		t.Errorf("JWTSecret length = %d, want 32", len(cfg.Auth.JWTSecret))
	}
	if !cfg.Auth.AllowPrivateDSN {
		t.Error("AllowPrivateDSN not applied")
	}
	if cfg.Storage.DefaultWarehouseDSN == "" {
		t.Error("DefaultWarehouseDSN not applied")
	}
	if cfg.Logging.Level != "trace" {
		t.Errorf("Logging.Level = %q, want trace", cfg.Logging.Level)
	}
}

func TestIsTruthy(t *testing.T) {
	cases := map[string]bool{
		"1": true, "true": true, "TRUE": true, "yes": true,
		"0": false, "false": false, "no": false, "": false, "maybe": false,
	}
	for in, want := range cases {
		if got := isTruthy(in); got != want {
			t.Errorf("isTruthy(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestWriteDefaultConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.toml")
	if err := WriteDefaultConfig(path); err != nil {
		t.Fatalf("WriteDefaultConfig: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.HTTPPort != DefaultConfig().Server.HTTPPort {
		t.Errorf("round-trip HTTPPort = %d", cfg.Server.HTTPPort)
	}
}
