package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/veloxpos/audit-engine/internal/service/detection"
)

// envPrefix namespaces every environment override, e.g.
// POSAUDIT_DATABASE_URL maps to database.url.
const envPrefix = "POSAUDIT_"

type Config struct {
	Version     string `koanf:"version"`
	Environment string `koanf:"environment" validate:"oneof=development staging production"`
	LogLevel    string `koanf:"log_level" validate:"oneof=debug info warn error"`

	Server      ServerConfig         `koanf:"server"`
	Database    DatabaseConfig       `koanf:"database"`
	Redis       RedisConfig          `koanf:"redis"`
	Security    SecurityConfig       `koanf:"security"`
	Detection   detection.Thresholds `koanf:"detection"`
	Maintenance MaintenanceConfig    `koanf:"maintenance"`
}

// ServerConfig covers the engine's single HTTP surface, the metrics
// and health endpoint.
type ServerConfig struct {
	MetricsPort     int           `koanf:"metrics_port" validate:"min=1,max=65535"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url" validate:"required"`
	MaxOpenConns    int           `koanf:"max_open_conns" validate:"min=1"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

type RedisConfig struct {
	URL      string `koanf:"url"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
	// Enabled gates the report cache; the engine runs without Redis.
	Enabled bool `koanf:"enabled"`
}

type SecurityConfig struct {
	// HashSalt feeds the record integrity hash. Changing it invalidates
	// every stored hash, so it must stay stable per deployment.
	HashSalt       string        `koanf:"hash_salt" validate:"required,min=16"`
	ReportCacheTTL time.Duration `koanf:"report_cache_ttl"`
}

type MaintenanceConfig struct {
	TickInterval        time.Duration `koanf:"tick_interval" validate:"min=1s"`
	StoreTimeout        time.Duration `koanf:"store_timeout" validate:"min=1s"`
	ReportWindow        time.Duration `koanf:"report_window"`
	StoreCallsPerSecond int           `koanf:"store_calls_per_second" validate:"min=1"`
	StoreBurst          int           `koanf:"store_burst" validate:"min=1"`
}

// Load builds the configuration from three layers: compiled defaults,
// an optional YAML file, then POSAUDIT_ environment overrides. The
// result is validated before it is returned.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaults(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path == "" {
		path = "configs/config.yaml"
	}
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, envPrefix)), "_", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func defaults() *Config {
	return &Config{
		Version:     "dev",
		Environment: "development",
		LogLevel:    "info",
		Server: ServerConfig{
			MetricsPort:     9090,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			URL:             "postgres://localhost:5432/audit_engine?sslmode=disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			URL:     "localhost:6379",
			DB:      0,
			Enabled: false,
		},
		Security: SecurityConfig{
			HashSalt:       "change-me-before-production",
			ReportCacheTTL: 15 * time.Minute,
		},
		Detection: detection.DefaultThresholds(),
		Maintenance: MaintenanceConfig{
			TickInterval:        time.Minute,
			StoreTimeout:        30 * time.Second,
			ReportWindow:        7 * 24 * time.Hour,
			StoreCallsPerSecond: 5,
			StoreBurst:          10,
		},
	}
}
