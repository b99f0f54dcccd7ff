package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Auth      AuthConfig
	Mail      MailConfig
	Checkout  CheckoutConfig
	Telemetry TelemetryConfig
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	// envconfig only checks that required variables are present
	if strings.TrimSpace(cfg.DB.URL) == "" {
		return nil, fmt.Errorf("POSTGRES_URL must not be empty")
	}
	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		return nil, fmt.Errorf("JWT_SECRET must not be empty")
	}
	if err := cfg.Checkout.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Telemetry.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Port     string `envconfig:"PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

func (a AppConfig) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(a.LogLevel))); err != nil {
		return slog.LevelInfo
	}
	return level
}

type DBConfig struct {
	URL             string        `envconfig:"POSTGRES_URL" required:"true"`
	Schema          string        `envconfig:"POSTGRES_SCHEMA" default:"storefront"`
	MaxOpenConns    int           `envconfig:"POSTGRES_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"POSTGRES_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"POSTGRES_CONN_MAX_LIFETIME" default:"1h"`
}

type RedisConfig struct {
	URL            string        `envconfig:"REDIS_URL"`
	IdempotencyTTL time.Duration `envconfig:"IDEMPOTENCY_TTL" default:"168h"`
}

func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != ""
}

type KafkaConfig struct {
	Brokers []string `envconfig:"KAFKA_BROKERS"`
	Topic   string   `envconfig:"KAFKA_ORDER_TOPIC" default:"order.placed"`
	GroupID string   `envconfig:"KAFKA_GROUP_ID" default:"order-notification-worker"`
}

func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

type AuthConfig struct {
	JWTSecret string        `envconfig:"JWT_SECRET" required:"true"`
	Issuer    string        `envconfig:"JWT_ISSUER" default:"storefront"`
	TokenTTL  time.Duration `envconfig:"JWT_TTL" default:"2h"`
}

type MailConfig struct {
	Host     string `envconfig:"EMAIL_HOST"`
	Port     int    `envconfig:"EMAIL_PORT" default:"587"`
	SSL      bool   `envconfig:"EMAIL_SSL" default:"false"`
	Username string `envconfig:"EMAIL_USER"`
	Password string `envconfig:"EMAIL_PASS"`
	From     string `envconfig:"EMAIL_FROM"`
	// AdminRecipient receives every new-order notification.
	AdminRecipient string `envconfig:"ADMIN_EMAIL"`
	AttachPDF      bool   `envconfig:"EMAIL_ATTACH_PDF" default:"true"`
}

func (m MailConfig) Enabled() bool {
	return m.Host != "" && m.AdminRecipient != ""
}

// Sender returns the envelope sender, falling back to the SMTP user.
func (m MailConfig) Sender() string {
	if m.From != "" {
		return m.From
	}
	return m.Username
}

const (
	NumberStrategyMax      = "max"
	NumberStrategySequence = "sequence"
)

type CheckoutConfig struct {
	NumberStrategy        string        `envconfig:"ORDER_NUMBER_STRATEGY" default:"sequence"`
	MaxAllocationAttempts int           `envconfig:"ORDER_ALLOCATION_ATTEMPTS" default:"5"`
	NotifyTimeout         time.Duration `envconfig:"NOTIFY_TIMEOUT" default:"30s"`
}

func (c CheckoutConfig) validate() error {
	switch c.NumberStrategy {
	case NumberStrategyMax, NumberStrategySequence:
	default:
		return fmt.Errorf("invalid ORDER_NUMBER_STRATEGY %q", c.NumberStrategy)
	}
	if c.MaxAllocationAttempts < 1 {
		return fmt.Errorf("ORDER_ALLOCATION_ATTEMPTS must be at least 1")
	}
	return nil
}

type TelemetryConfig struct {
	Enabled        bool   `envconfig:"OTEL_ENABLED" default:"false"`
	OTLPEndpoint   string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT" default:"localhost:4317"`
	ServiceVersion string `envconfig:"SERVICE_VERSION" default:"0.1.0"`
	Environment    string `envconfig:"DEPLOY_ENV" default:"development"`
	// SampleRatio applies to root spans only; children follow their parent.
	SampleRatio float64 `envconfig:"OTEL_TRACES_SAMPLE_RATIO" default:"1"`
	// MetricsNamespace prefixes every exported prometheus metric name.
	MetricsNamespace string `envconfig:"METRICS_NAMESPACE" default:"storefront"`
}

func (t TelemetryConfig) validate() error {
	if t.SampleRatio < 0 || t.SampleRatio > 1 {
		return fmt.Errorf("OTEL_TRACES_SAMPLE_RATIO must be between 0 and 1, got %v", t.SampleRatio)
	}
	return nil
}
