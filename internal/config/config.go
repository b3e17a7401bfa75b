// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the ingress HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN for the idempotency/state/audit stores.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`

	// KafkaBrokers is a comma-separated list of Kafka broker addresses (e.g. "localhost:9092").
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// EventsTopic is the ordered events topic; messages are keyed by group id (default sup-mw-events).
	EventsTopic string `mapstructure:"EVENTS_TOPIC"`
	// EventsDLQTopic is the dead-letter topic for events that exhausted their retry budget (default sup-mw-events-dlq).
	EventsDLQTopic string `mapstructure:"EVENTS_DLQ_TOPIC"`
	// KafkaGroupID is the consumer group ID for the event worker (default sup-mw-worker).
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`

	// DefaultMessageGroupID is the ordering group used when a payload carries no conversation (default sup-mw-default).
	DefaultMessageGroupID string `mapstructure:"DEFAULT_MESSAGE_GROUP_ID"`
	// EventSource is the source tag stamped on envelopes built at ingress (default support_http_target).
	EventSource string `mapstructure:"EVENT_SOURCE"`

	// WebhookTokenSecret is the logical secret name holding the shared webhook token. Required for ingress.
	WebhookTokenSecret string `mapstructure:"WEBHOOK_TOKEN_SECRET"`
	// WebhookTokenCacheTTL is how long ingress caches the resolved webhook token (e.g. "5m").
	WebhookTokenCacheTTL string `mapstructure:"WEBHOOK_TOKEN_CACHE_TTL"`

	// MaxDeliveryCount is how many delivery attempts a message gets before dead-lettering (default 5).
	MaxDeliveryCount int `mapstructure:"MAX_DELIVERY_COUNT"`
	// RetryInitialBackoff is the first retry delay (e.g. "1s").
	RetryInitialBackoff string `mapstructure:"RETRY_INITIAL_BACKOFF"`
	// RetryMaxBackoff caps the retry delay (e.g. "30s").
	RetryMaxBackoff string `mapstructure:"RETRY_MAX_BACKOFF"`

	// IdempotencyTTL is the retention for idempotency records (e.g. "720h" = 30d).
	IdempotencyTTL string `mapstructure:"IDEMPOTENCY_TTL"`
	// ConversationStateTTL is the retention for conversation snapshots (e.g. "2160h" = 90d).
	ConversationStateTTL string `mapstructure:"CONVERSATION_STATE_TTL"`
	// AuditTrailTTL is the retention for audit records (e.g. "1440h" = 60d).
	AuditTrailTTL string `mapstructure:"AUDIT_TRAIL_TTL"`

	// OutboundEnabled allows the worker to hand the handler a live outbound client.
	// Even when true, per-event runtime flags still gate every effect. Default false.
	OutboundEnabled bool `mapstructure:"OUTBOUND_ENABLED"`
	// SupportAPIBaseURL is the support platform API base URL for outbound actions.
	SupportAPIBaseURL string `mapstructure:"SUPPORT_API_BASE_URL"`
	// SupportAPIKeySecret is the logical secret name holding the support platform API key.
	SupportAPIKeySecret string `mapstructure:"SUPPORT_API_KEY_SECRET"`

	// TokenRefreshInterval is how often the commerce access credential is refreshed (e.g. "4h"). Empty disables the task.
	TokenRefreshInterval string `mapstructure:"TOKEN_REFRESH_INTERVAL"`
	// CommerceTokenURL is the commerce platform OAuth token endpoint used by the refresher.
	CommerceTokenURL string `mapstructure:"COMMERCE_TOKEN_URL"`
	// CommerceClientIDSecret is the logical secret name for the commerce OAuth client id.
	CommerceClientIDSecret string `mapstructure:"COMMERCE_CLIENT_ID_SECRET"`
	// CommerceClientSecretSecret is the logical secret name for the commerce OAuth client secret.
	CommerceClientSecretSecret string `mapstructure:"COMMERCE_CLIENT_SECRET_SECRET"`
	// CommerceRefreshTokenSecret is the logical secret name for the stored refresh credential.
	CommerceRefreshTokenSecret string `mapstructure:"COMMERCE_REFRESH_TOKEN_SECRET"`
	// CommerceAccessTokenSecret is the logical secret name the refresher writes the new access credential to.
	CommerceAccessTokenSecret string `mapstructure:"COMMERCE_ACCESS_TOKEN_SECRET"`

	// OTLPEndpoint is the OTLP gRPC endpoint for telemetry export (empty disables export).
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext OTLP export even for https endpoints.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	// LokiURL is an optional Grafana Loki base URL for pipeline event push (empty disables it).
	LokiURL string `mapstructure:"LOKI_URL"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("EVENTS_TOPIC", "sup-mw-events")
	v.SetDefault("EVENTS_DLQ_TOPIC", "sup-mw-events-dlq")
	v.SetDefault("KAFKA_GROUP_ID", "sup-mw-worker")
	v.SetDefault("DEFAULT_MESSAGE_GROUP_ID", "sup-mw-default")
	v.SetDefault("EVENT_SOURCE", "support_http_target")
	v.SetDefault("WEBHOOK_TOKEN_SECRET", "webhook_token")
	v.SetDefault("WEBHOOK_TOKEN_CACHE_TTL", "5m")
	v.SetDefault("MAX_DELIVERY_COUNT", 5)
	v.SetDefault("RETRY_INITIAL_BACKOFF", "1s")
	v.SetDefault("RETRY_MAX_BACKOFF", "30s")
	v.SetDefault("IDEMPOTENCY_TTL", "720h")
	v.SetDefault("CONVERSATION_STATE_TTL", "2160h")
	v.SetDefault("AUDIT_TRAIL_TTL", "1440h")
	v.SetDefault("OUTBOUND_ENABLED", false)
	v.SetDefault("SUPPORT_API_BASE_URL", "")
	v.SetDefault("SUPPORT_API_KEY_SECRET", "support_api_key")
	v.SetDefault("TOKEN_REFRESH_INTERVAL", "4h")
	v.SetDefault("COMMERCE_TOKEN_URL", "")
	v.SetDefault("COMMERCE_CLIENT_ID_SECRET", "commerce_client_id")
	v.SetDefault("COMMERCE_CLIENT_SECRET_SECRET", "commerce_client_secret")
	v.SetDefault("COMMERCE_REFRESH_TOKEN_SECRET", "commerce_refresh_token")
	v.SetDefault("COMMERCE_ACCESS_TOKEN_SECRET", "commerce_access_token")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("LOKI_URL", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.EventsTopic == "" {
		return nil, errors.New("config: EVENTS_TOPIC must be set")
	}
	if cfg.EventsDLQTopic == cfg.EventsTopic {
		return nil, errors.New("config: EVENTS_DLQ_TOPIC must differ from EVENTS_TOPIC")
	}
	if cfg.MaxDeliveryCount < 1 {
		return nil, errors.New("config: MAX_DELIVERY_COUNT must be at least 1")
	}

	return &cfg, nil
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
func (c *Config) KafkaBrokersList() []string {
	if c == nil || c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// RetryInitial parses RetryInitialBackoff. Returns 1s if unset or invalid.
func (c *Config) RetryInitial() time.Duration {
	return durationOr(c.RetryInitialBackoff, time.Second)
}

// RetryMax parses RetryMaxBackoff. Returns 30s if unset or invalid.
func (c *Config) RetryMax() time.Duration {
	return durationOr(c.RetryMaxBackoff, 30*time.Second)
}

// TokenCacheTTL parses WebhookTokenCacheTTL. Returns 5m if unset or invalid.
func (c *Config) TokenCacheTTL() time.Duration {
	return durationOr(c.WebhookTokenCacheTTL, 5*time.Minute)
}

// IdempotencyRetention parses IdempotencyTTL. Returns 30 days if unset or invalid.
func (c *Config) IdempotencyRetention() time.Duration {
	return durationOr(c.IdempotencyTTL, 720*time.Hour)
}

// ConversationRetention parses ConversationStateTTL. Returns 90 days if unset or invalid.
func (c *Config) ConversationRetention() time.Duration {
	return durationOr(c.ConversationStateTTL, 2160*time.Hour)
}

// AuditRetention parses AuditTrailTTL. Returns 60 days if unset or invalid.
func (c *Config) AuditRetention() time.Duration {
	return durationOr(c.AuditTrailTTL, 1440*time.Hour)
}

// RefreshInterval parses TokenRefreshInterval. Returns 0 when unset or invalid,
// which disables the refresh task.
func (c *Config) RefreshInterval() time.Duration {
	d, err := time.ParseDuration(c.TokenRefreshInterval)
	if err != nil || d <= 0 {
		return 0
	}
	return d
}

func durationOr(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
