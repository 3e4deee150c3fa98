package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config represents the server configuration
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Auth    AuthConfig    `toml:"auth"`
	Storage StorageConfig `toml:"storage"`
	Logging LoggingConfig `toml:"logging"`
}

// ServerConfig holds server-specific settings
type ServerConfig struct {
	HTTPPort    int    `toml:"http_port"`
	BindAddress string `toml:"bind_address"` // Address to bind to (default: 0.0.0.0 for all interfaces)

	// CORSOrigins lists the origins allowed to send credentialed requests.
	// Empty means wildcard CORS without credentials.
	CORSOrigins []string `toml:"cors_origins"`

	// FrameOrigins controls iframe embedding: empty allows any origin,
	// "deny" blocks embedding, anything else is a comma-separated
	// frame-ancestors list.
	FrameOrigins string `toml:"frame_origins"`
}

// AuthConfig holds session token settings
type AuthConfig struct {
	// JWTSecret signs session tokens. Secrets of at least 32 characters
	// enable strict mode; shorter values fall back to a per-process secret.
	JWTSecret string `toml:"jwt_secret"`

	// AllowPrivateDSN permits login connection strings that point at
	// localhost or private address space. Enable only when the server runs
	// inside the same trusted network as the warehouses.
	AllowPrivateDSN bool `toml:"allow_private_dsn"`

	// DefaultTenantID scopes unauthenticated requests when strict mode is
	// off and the request carries no user_id query parameter.
	DefaultTenantID int `toml:"default_tenant_id"`
}

// StorageConfig holds database settings
type StorageConfig struct {
	// DefaultWarehouseDSN serves unauthenticated requests when strict mode
	// is off, e.g. a local development warehouse.
	DefaultWarehouseDSN string `toml:"default_warehouse_dsn"`

	// AppStateDSN overrides the dashboard-state backend for sessions that
	// carry no DSN of their own: a postgres URL or a sqlite file path.
	AppStateDSN string `toml:"app_state_dsn"`
}

// LoggingConfig holds log level and destination settings
type LoggingConfig struct {
	Level string `toml:"level"`
	Dir   string `toml:"dir"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:    8000,
			BindAddress: "0.0.0.0", // Bind to all interfaces by default
		},
		Auth: AuthConfig{
			AllowPrivateDSN: false,
			DefaultTenantID: 1,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfig loads configuration from a TOML file with environment variable
// overrides. Environment variables win over file values.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Load from file if it exists
	if _, err := os.Stat(configPath); err == nil {
		if _, err := toml.DecodeFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", configPath, err)
		}
	}

	if val := os.Getenv("SENSORIQUA_HTTP_PORT"); val != "" {
		var port int
		if _, err := fmt.Sscanf(val, "%d", &port); err == nil {
			cfg.Server.HTTPPort = port
		}
	}
	if val := os.Getenv("SENSORIQUA_BIND_ADDRESS"); val != "" {
		cfg.Server.BindAddress = val
	}
	if val := os.Getenv("CORS_ORIGINS"); val != "" {
		var origins []string
		for _, o := range strings.Split(val, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		cfg.Server.CORSOrigins = origins
	}
	if val := os.Getenv("ALLOW_FRAME_ORIGINS"); val != "" {
		cfg.Server.FrameOrigins = val
	}
	if val := os.Getenv("JWT_SECRET"); val != "" {
		cfg.Auth.JWTSecret = val
	}
	if val := os.Getenv("SENSORIQUA_USER_ID"); val != "" {
		var id int
		if _, err := fmt.Sscanf(val, "%d", &id); err == nil {
			cfg.Auth.DefaultTenantID = id
		}
	}
	if val := os.Getenv("ALLOW_PRIVATE_DSN"); val != "" {
		cfg.Auth.AllowPrivateDSN = isTruthy(val)
	}
	if val := os.Getenv("SENSORIQUA_DEFAULT_DSN"); val != "" {
		cfg.Storage.DefaultWarehouseDSN = val
	}
	if val := os.Getenv("SENSORIQUA_APP_STATE_DSN"); val != "" {
		cfg.Storage.AppStateDSN = val
	}
	if val := os.Getenv("SENSORIQUA_LOG_LEVEL"); val != "" {
		cfg.Logging.Level = strings.ToLower(val)
	} else if val := os.Getenv("LOG_LEVEL"); val != "" {
		cfg.Logging.Level = strings.ToLower(val)
	}
	if val := os.Getenv("SENSORIQUA_LOG_DIR"); val != "" {
		cfg.Logging.Dir = val
	}

	return cfg, nil
}

func isTruthy(val string) bool {
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// WriteDefaultConfig writes a default configuration file
func WriteDefaultConfig(configPath string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config file already exists: %s", configPath)
	}
	f, err := os.Create(configPath)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(DefaultConfig())
}
