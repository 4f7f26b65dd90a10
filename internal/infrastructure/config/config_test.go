package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, int32(10), cfg.Storage.MaxConns)
	assert.Equal(t, "products:", cfg.Storage.RedisKeyPrefix)
	assert.False(t, cfg.OTLP.Enabled)
	assert.Equal(t, "localhost:4317", cfg.OTLP.Endpoint)
	assert.Equal(t, "products-service", cfg.OTLP.ServiceName)
	assert.Empty(t, cfg.Metrics.PushgatewayURL)
}

func TestLoadConfig_Environment(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("STORAGE_DRIVER", "POSTGRES")
	t.Setenv("DATABASE_URL", "postgres://localhost/products")
	t.Setenv("DATABASE_MAX_CONNS", "4")
	t.Setenv("DATABASE_MIN_CONNS", "1")
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("PUSHGATEWAY_URL", "http://localhost:9091")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, DriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, "postgres://localhost/products", cfg.Storage.DatabaseURL)
	assert.Equal(t, int32(4), cfg.Storage.MaxConns)
	assert.Equal(t, int32(1), cfg.Storage.MinConns)
	assert.True(t, cfg.OTLP.Enabled)
	assert.Equal(t, "http://localhost:9091", cfg.Metrics.PushgatewayURL)
}

func TestLoadConfig_FileThenEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.yaml")
	content := "storage_driver: redis\nredis_addr: cache:6379\nredis_db: 2\nlog_level: warn\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("LOG_LEVEL", "error")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, DriverRedis, cfg.Storage.Driver)
	assert.Equal(t, "cache:6379", cfg.Storage.RedisAddr)
	assert.Equal(t, 2, cfg.Storage.RedisDB)
	assert.Equal(t, "error", cfg.App.LogLevel, "environment overrides the file")
}

func TestLoadConfig_PathFromEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.yaml")
	require.NoError(t, os.WriteFile(path, []byte("otel_service_name: catalog\n"), 0o600))
	t.Setenv(ConfigPathEnv, path)

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "catalog", cfg.OTLP.ServiceName)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))

	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			App:     AppConfig{LogLevel: "info"},
			Storage: StorageConfig{Driver: DriverMemory, MaxConns: 10, MinConns: 2},
			OTLP:    OTLPConfig{ServiceName: "products-service", Endpoint: "localhost:4317"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "bad log level", mutate: func(c *Config) { c.App.LogLevel = "verbose" }, wantErr: "LOG_LEVEL"},
		{name: "unknown driver", mutate: func(c *Config) { c.Storage.Driver = "mongo" }, wantErr: "STORAGE_DRIVER"},
		{name: "postgres without url", mutate: func(c *Config) { c.Storage.Driver = DriverPostgres }, wantErr: "DATABASE_URL"},
		{
			name: "postgres min above max",
			mutate: func(c *Config) {
				c.Storage.Driver = DriverPostgres
				c.Storage.DatabaseURL = "postgres://x"
				c.Storage.MinConns = 20
			},
			wantErr: "DATABASE_MIN_CONNS",
		},
		{name: "redis without addr", mutate: func(c *Config) { c.Storage.Driver = DriverRedis }, wantErr: "REDIS_ADDR"},
		{name: "empty service name", mutate: func(c *Config) { c.OTLP.ServiceName = "" }, wantErr: "OTEL_SERVICE_NAME"},
		{
			name: "otel enabled without endpoint",
			mutate: func(c *Config) {
				c.OTLP.Enabled = true
				c.OTLP.Endpoint = ""
			},
			wantErr: "OTEL_EXPORTER_OTLP_ENDPOINT",
		},
		{
			name: "pushgateway without job",
			mutate: func(c *Config) {
				c.Metrics.PushgatewayURL = "http://localhost:9091"
			},
			wantErr: "PUSHGATEWAY_JOB",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}
