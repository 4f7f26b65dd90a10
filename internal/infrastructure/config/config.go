package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"
)

// ConfigPathEnv names the environment variable that points at an optional config file.
const ConfigPathEnv = "PRODUCTS_CONFIG"

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

type Config struct {
	App     AppConfig
	Storage StorageConfig
	OTLP    OTLPConfig
	Metrics MetricsConfig
}

type AppConfig struct {
	LogLevel string
}

type StorageConfig struct {
	Driver string

	DatabaseURL string
	MaxConns    int32
	MinConns    int32

	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RedisKeyPrefix string
}

type OTLPConfig struct {
	Enabled        bool
	Endpoint       string
	ServiceName    string
	ServiceVersion string
	Environment    string
}

// MetricsConfig controls the Prometheus push at the end of each invocation.
// An empty PushgatewayURL disables the push.
type MetricsConfig struct {
	PushgatewayURL string
	PushgatewayJob string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")

	v.SetDefault("storage_driver", DriverMemory)
	v.SetDefault("database_url", "")
	v.SetDefault("database_max_conns", 10)
	v.SetDefault("database_min_conns", 2)
	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("redis_key_prefix", "products:")

	v.SetDefault("otel_enabled", false)
	v.SetDefault("otel_exporter_otlp_endpoint", "localhost:4317")
	v.SetDefault("otel_service_name", "products-service")
	v.SetDefault("otel_service_version", "1.0.0")
	v.SetDefault("otel_environment", "development")

	v.SetDefault("pushgateway_url", "")
	v.SetDefault("pushgateway_job", "products-service")
}

// LoadConfig loads configuration from defaults, an optional config file and
// environment variables, in increasing order of precedence. When path is
// empty the file named by PRODUCTS_CONFIG is used, if any.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = v.GetString(strings.ToLower(ConfigPathEnv))
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{
		App: AppConfig{
			LogLevel: v.GetString("log_level"),
		},
		Storage: StorageConfig{
			Driver:         strings.ToLower(v.GetString("storage_driver")),
			DatabaseURL:    v.GetString("database_url"),
			MaxConns:       v.GetInt32("database_max_conns"),
			MinConns:       v.GetInt32("database_min_conns"),
			RedisAddr:      v.GetString("redis_addr"),
			RedisPassword:  v.GetString("redis_password"),
			RedisDB:        v.GetInt("redis_db"),
			RedisKeyPrefix: v.GetString("redis_key_prefix"),
		},
		OTLP: OTLPConfig{
			Enabled:        v.GetBool("otel_enabled"),
			Endpoint:       v.GetString("otel_exporter_otlp_endpoint"),
			ServiceName:    v.GetString("otel_service_name"),
			ServiceVersion: v.GetString("otel_service_version"),
			Environment:    v.GetString("otel_environment"),
		},
		Metrics: MetricsConfig{
			PushgatewayURL: v.GetString("pushgateway_url"),
			PushgatewayJob: v.GetString("pushgateway_job"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if _, err := ParseLevel(c.App.LogLevel); err != nil {
		errs = append(errs, err)
	}

	switch c.Storage.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Storage.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres driver"))
		}
		if c.Storage.MaxConns < 1 {
			errs = append(errs, errors.New("DATABASE_MAX_CONNS must be at least 1"))
		}
		if c.Storage.MinConns < 0 || c.Storage.MinConns > c.Storage.MaxConns {
			errs = append(errs, errors.New("DATABASE_MIN_CONNS must be between 0 and DATABASE_MAX_CONNS"))
		}
	case DriverRedis:
		if c.Storage.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required for the redis driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_DRIVER %q", c.Storage.Driver))
	}

	if c.OTLP.ServiceName == "" {
		errs = append(errs, errors.New("OTEL_SERVICE_NAME must not be empty"))
	}
	if c.OTLP.Enabled && c.OTLP.Endpoint == "" {
		errs = append(errs, errors.New("OTEL_EXPORTER_OTLP_ENDPOINT is required when OTEL_ENABLED is set"))
	}
	if c.Metrics.PushgatewayURL != "" && c.Metrics.PushgatewayJob == "" {
		errs = append(errs, errors.New("PUSHGATEWAY_JOB must not be empty"))
	}

	return errors.Join(errs...)
}

// ParseLevel maps a LOG_LEVEL value to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL %q", s)
	}
	return level, nil
}
