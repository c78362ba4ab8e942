package config

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator"
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
)

type Config struct {
	Primary       Primary             `koanf:"primary"`
	Server        ServerConfig        `koanf:"server"`
	Database      DatabaseConfig      `koanf:"database"`
	Logger        LoggerConfig        `koanf:"logger"`
	Gateway       GatewayConfig       `koanf:"gateway"`
	Capture       CaptureConfig       `koanf:"capture"`
	Expiry        ExpiryConfig        `koanf:"expiry"`
	Reconcile     ReconcileConfig     `koanf:"reconcile"`
	Queue         QueueConfig         `koanf:"queue"`
	Idempotency   IdempotencyConfig   `koanf:"idempotency"`
	Notifications NotificationsConfig `koanf:"notifications"`
	Metrics       MetricsConfig       `koanf:"metrics"`
	Tracing       TracingConfig       `koanf:"tracing"`
}

type Primary struct {
	Env string `koanf:"env" validate:"required"`
}

type ServerConfig struct {
	Port           string        `koanf:"port" validate:"required"`
	ReadTimeout    time.Duration `koanf:"read_timeout" validate:"required"`
	WriteTimeout   time.Duration `koanf:"write_timeout" validate:"required"`
	IdleTimeout    time.Duration `koanf:"idle_timeout" validate:"required"`
	RequestTimeout time.Duration `koanf:"request_timeout" validate:"required"`
}

type DatabaseConfig struct {
	Host            string        `koanf:"host" validate:"required"`
	Port            int           `koanf:"port" validate:"required"`
	User            string        `koanf:"user" validate:"required"`
	Password        string        `koanf:"password" validate:"required"`
	Name            string        `koanf:"name" validate:"required"`
	SSLMode         string        `koanf:"ssl_mode" validate:"required"`
	MaxOpenConns    int           `koanf:"max_open_conns" validate:"required"`
	MaxIdleConns    int           `koanf:"max_idle_conns" validate:"required"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime" validate:"required"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time" validate:"required"`
}

type LoggerConfig struct {
	Level   string `koanf:"level"`
	LokiURL string `koanf:"loki_url"`
	Service string `koanf:"service"`
}

// GatewayConfig holds the base URL of each provider. Providers without one are not registered.
type GatewayConfig struct {
	ConnectTimeout time.Duration `koanf:"connect_timeout" validate:"required"`
	WorldpayURL    string        `koanf:"worldpay_url"`
	EPDQURL        string        `koanf:"epdq_url"`
	StripeURL      string        `koanf:"stripe_url"`
	SandboxEnabled bool          `koanf:"sandbox_enabled"`
}

type CaptureConfig struct {
	PoolSize     int           `koanf:"pool_size" validate:"required,min=1"`
	MaxRetries   int           `koanf:"max_retries" validate:"required,min=1"`
	BaseBackoff  time.Duration `koanf:"base_backoff" validate:"required"`
	MaxBackoff   time.Duration `koanf:"max_backoff" validate:"required"`
	ClaimTimeout time.Duration `koanf:"claim_timeout" validate:"required"`
	GracePeriod  time.Duration `koanf:"grace_period" validate:"required"`
	PollInterval time.Duration `koanf:"poll_interval" validate:"required"`
	BatchSize    int           `koanf:"batch_size" validate:"required"`
	RetryRule    string        `koanf:"retry_rule"`
}

type ExpiryConfig struct {
	Window    time.Duration `koanf:"window" validate:"required"`
	Interval  time.Duration `koanf:"interval" validate:"required"`
	BatchSize int           `koanf:"batch_size" validate:"required"`
}

type ReconcileConfig struct {
	Interval   time.Duration `koanf:"interval" validate:"required"`
	StalledAge time.Duration `koanf:"stalled_age" validate:"required"`
	BatchSize  int           `koanf:"batch_size" validate:"required"`
}

type QueueConfig struct {
	Backend string   `koanf:"backend" validate:"required,oneof=kafka memory"`
	Brokers []string `koanf:"brokers"`
	Topic   string   `koanf:"topic"`
	GroupID string   `koanf:"group_id"`
}

type IdempotencyConfig struct {
	Backend  string `koanf:"backend" validate:"required,oneof=postgres bolt"`
	BoltPath string `koanf:"bolt_path"`
}

type NotificationsConfig struct {
	WorldpayCIDRs []string `koanf:"worldpay_cidrs"`
}

type MetricsConfig struct {
	PushURL      string        `koanf:"push_url"`
	PushInterval time.Duration `koanf:"push_interval"`
	PushLabels   string        `koanf:"push_labels"`
}

type TracingConfig struct {
	Enabled bool `koanf:"enabled"`
}

var defaults = map[string]any{
	"database.port":                5432,
	"database.ssl_mode":            "disable",
	"database.max_open_conns":      20,
	"database.max_idle_conns":      2,
	"database.conn_max_lifetime":   "1h",
	"database.conn_max_idle_time":  "30m",
	"server.port":                  "8080",
	"server.read_timeout":          "15s",
	"server.write_timeout":         "60s",
	"server.idle_timeout":          "120s",
	"logger.level":                 "info",
	"logger.service":               "chargecore",
	"server.request_timeout":       "30s",
	"gateway.connect_timeout":      "10s",
	"capture.pool_size":            4,
	"capture.max_retries":          3,
	"capture.base_backoff":         "30s",
	"capture.max_backoff":          "10m",
	"capture.claim_timeout":        "2m",
	"capture.grace_period":         "5m",
	"capture.poll_interval":        "1m",
	"capture.batch_size":           100,
	"expiry.window":                "90m",
	"expiry.interval":              "5m",
	"expiry.batch_size":            100,
	"reconcile.interval":           "10m",
	"reconcile.stalled_age":        "15m",
	"reconcile.batch_size":         50,
	"queue.backend":                "memory",
	"queue.topic":                  "capture-jobs",
	"queue.group_id":               "chargecore-capture",
	"idempotency.backend":          "postgres",
	"idempotency.bolt_path":        "idempotency.db",
	"notifications.worldpay_cidrs": "195.35.90.0/23,195.35.91.0/24",
	"metrics.push_interval":        "10s",
}

func LoadConfig() (*Config, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		logger.Error("failed to load config defaults", "error", err)
		return nil, err
	}

	err := k.Load(env.Provider("GATEWAY_", ".", func(s string) string {
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(s, "GATEWAY_")),
			"__",
			".",
		)
	}), nil)
	if err != nil {
		logger.Error("failed to load environment variables", "error", err)
		return nil, err
	}

	mainConfig := &Config{}

	err = k.Unmarshal("", mainConfig)
	if err != nil {
		logger.Error("could not unmarshal main config", "error", err)
		return nil, err
	}

	validate := validator.New()

	err = validate.Struct(mainConfig)
	if err != nil {
		logger.Error("config validation failed", "error", err)
		return nil, err
	}

	return mainConfig, nil
}
