package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Compile time variables are set by -ldflags.
var (
	ServiceVersion string
	CommitSHA      string
)

type (
	ServiceConfig struct {
		AppConfig AppConfig           `json:"app_config"`
		Logging   LoggingConfig       `json:"logging"`
		Telemetry Telemetry           `json:"telemetry"`
		Storage   StorageConfig       `json:"storage"`
		Cache     CacheConfig         `json:"cache"`
		Queue     QueueConfig         `json:"queue"`
		Outbox    OutboxConfig        `json:"outbox"`
		Timeout   TimeoutWorkerConfig `json:"timeout_worker"`
		Breaker   BreakerConfig       `json:"breaker"`
		Backoff   BackoffConfig       `json:"backoff"`
		Gateway   GatewayConfig       `json:"gateway"`
	}

	// GatewayConfig points at the synchronous payment provider endpoint.
	GatewayConfig struct {
		PaymentBaseURL string `envconfig:"PAYMENT_GATEWAY_URL" default:"http://payment-provider:8080" json:"payment_base_url"`
	}

	AppConfig struct {
		ServiceName    string `envconfig:"APP_SERVICE_NAME" default:"svc-commerce-saga" json:"service_name"`
		ServiceVersion string `envconfig:"APP_SERVICE_VERSION" default:"0.0.0" json:"service_version"`
		CommitSHA      string `envconfig:"APP_COMMIT_SHA" default:"unknown" json:"commit_sha"`
		Env            string `envconfig:"APP_ENVIRONMENT" default:"unknown" json:"env"`
	}

	LoggingConfig struct {
		Level  string `envconfig:"LOGGING_LEVEL" default:"info" json:"level"`
		Format string `envconfig:"LOGGING_FORMAT" default:"json" json:"format"`
	}

	Telemetry struct {
		ExporterType string `envconfig:"OTEL_EXPORTER" default:"grpc" json:"exporter_type"`

		OtelGRPCHost string `envconfig:"OTEL_HOST" json:"otel_grpc_host"`
		OtelGRPCPort string `envconfig:"OTEL_PORT" default:"4317" json:"otel_grpc_port"`

		Metrics Metrics `json:"metrics"`
		Traces  Traces  `json:"traces"`
	}

	Metrics struct {
		Enabled bool   `envconfig:"METRICS_ENABLED" default:"false" json:"enabled"`
		Addr    string `envconfig:"METRICS_ADDR" default:":9090" json:"addr"`
	}

	Traces struct {
		Enabled      bool    `envconfig:"TRACES_ENABLED" default:"false" json:"enabled"`
		SamplerRatio float64 `envconfig:"TRACES_SAMPLER_RATIO" default:"1" json:"sampler_ratio"`
	}

	StorageConfig struct {
		Host            string        `envconfig:"POSTGRES_HOST" default:"postgres" json:"host"`
		Port            int           `envconfig:"POSTGRES_PORT" default:"5432" json:"port"`
		Database        string        `envconfig:"POSTGRES_DATABASE" default:"commerce" json:"database"`
		Username        string        `envconfig:"POSTGRES_USERNAME" default:"postgres" json:"username"`
		Password        string        `envconfig:"POSTGRES_PASSWORD" default:"" json:"password,omitempty"`
		SSLMode         string        `envconfig:"POSTGRES_SSL_MODE" default:"disable" json:"ssl_mode"`
		MaxOpenConns    int           `envconfig:"POSTGRES_MAX_OPEN_CONNS" default:"25" json:"max_open_conns"`
		MaxIdleConns    int           `envconfig:"POSTGRES_MAX_IDLE_CONNS" default:"5" json:"max_idle_conns"`
		ConnMaxLifetime time.Duration `envconfig:"POSTGRES_CONN_MAX_LIFETIME" default:"5m" json:"conn_max_lifetime"`
		ConnectTimeout  time.Duration `envconfig:"POSTGRES_CONNECT_TIMEOUT" default:"10s" json:"connect_timeout"`
		QueryTimeout    time.Duration `envconfig:"POSTGRES_QUERY_TIMEOUT" default:"30s" json:"query_timeout"`
	}

	// CacheConfig points at the KeyDB/Redis instance backing the
	// idempotency store.
	CacheConfig struct {
		Addr           string        `envconfig:"KEYDB_ADDR" default:"keydb:6379" json:"addr"`
		Password       string        `envconfig:"KEYDB_PASSWORD" default:"" json:"password,omitempty"`
		DB             int           `envconfig:"KEYDB_DB" default:"0" json:"db"`
		DialTimeout    time.Duration `envconfig:"KEYDB_DIAL_TIMEOUT" default:"5s" json:"dial_timeout"`
		ReadTimeout    time.Duration `envconfig:"KEYDB_READ_TIMEOUT" default:"3s" json:"read_timeout"`
		WriteTimeout   time.Duration `envconfig:"KEYDB_WRITE_TIMEOUT" default:"3s" json:"write_timeout"`
		IdempotencyTTL time.Duration `envconfig:"IDEMPOTENCY_TTL" default:"24h" json:"idempotency_ttl"`
	}

	QueueConfig struct {
		Scheme            string        `envconfig:"RABBITMQ_SCHEME" default:"amqp" json:"scheme"`
		Host              string        `envconfig:"RABBITMQ_HOST" default:"rabbitmq" json:"host"`
		Port              int           `envconfig:"RABBITMQ_PORT" default:"5672" json:"port"`
		Username          string        `envconfig:"RABBITMQ_USERNAME" default:"admin" json:"username"`
		Password          string        `envconfig:"RABBITMQ_PASSWORD" default:"" json:"password,omitempty"`
		VirtualHost       string        `envconfig:"RABBITMQ_VIRTUAL_HOST" default:"/" json:"virtual_host"`
		ExchangeName      string        `envconfig:"RABBITMQ_EXCHANGE_NAME" default:"commerce.events" json:"exchange_name"`
		ConnectTimeout    time.Duration `envconfig:"RABBITMQ_CONNECT_TIMEOUT" default:"10s" json:"connect_timeout"`
		Heartbeat         time.Duration `envconfig:"RABBITMQ_HEARTBEAT" default:"10s" json:"heartbeat"`
		PrefetchCount     int           `envconfig:"RABBITMQ_PREFETCH_COUNT" default:"10" json:"prefetch_count"`
		MaxRetries        int           `envconfig:"RABBITMQ_CONSUMER_MAX_RETRIES" default:"3" json:"max_retries"`
		ReconnectDelay    time.Duration `envconfig:"RABBITMQ_RECONNECT_DELAY" default:"5s" json:"reconnect_delay"`
		ReconnectMaxDelay time.Duration `envconfig:"RABBITMQ_RECONNECT_MAX_DELAY" default:"60s" json:"reconnect_max_delay"`
		ReconnectAttempts int           `envconfig:"RABBITMQ_RECONNECT_ATTEMPTS" default:"5" json:"reconnect_attempts"`
	}

	OutboxConfig struct {
		PollInterval  time.Duration `envconfig:"OUTBOX_POLL_INTERVAL" default:"1s" json:"poll_interval"`
		BatchSize     int           `envconfig:"OUTBOX_BATCH_SIZE" default:"100" json:"batch_size"`
		MaxAttempts   int           `envconfig:"OUTBOX_MAX_ATTEMPTS" default:"5" json:"max_attempts"`
		RetentionDays int           `envconfig:"OUTBOX_RETENTION_DAYS" default:"7" json:"retention_days"`
		CleanupEvery  time.Duration `envconfig:"OUTBOX_CLEANUP_INTERVAL" default:"1h" json:"cleanup_interval"`
	}

	TimeoutWorkerConfig struct {
		ScanInterval time.Duration `envconfig:"TIMEOUT_SCAN_INTERVAL" default:"30s" json:"scan_interval"`
		BatchSize    int           `envconfig:"TIMEOUT_BATCH_SIZE" default:"50" json:"batch_size"`

		// SagaTTL is how long a staged saga step may wait for its answer
		// before the timeout worker compensates it.
		SagaTTL time.Duration `envconfig:"SAGA_TTL" default:"15m" json:"saga_ttl"`
	}

	BreakerConfig struct {
		ErrorThresholdPercentage float64       `envconfig:"BREAKER_ERROR_THRESHOLD_PERCENTAGE" default:"50" json:"error_threshold_percentage"`
		VolumeThreshold          uint32        `envconfig:"BREAKER_VOLUME_THRESHOLD" default:"10" json:"volume_threshold"`
		RollingCountTimeout      time.Duration `envconfig:"BREAKER_ROLLING_COUNT_TIMEOUT" default:"10s" json:"rolling_count_timeout"`
		ResetTimeout             time.Duration `envconfig:"BREAKER_RESET_TIMEOUT" default:"30s" json:"reset_timeout"`
		HalfOpenMaxRequests      uint32        `envconfig:"BREAKER_HALF_OPEN_MAX_REQUESTS" default:"1" json:"half_open_max_requests"`
	}

	BackoffConfig struct {
		BaseDelay  time.Duration `envconfig:"BACKOFF_BASE_DELAY" default:"1s" json:"base_delay"`
		Multiplier float64       `envconfig:"BACKOFF_MULTIPLIER" default:"2.0" json:"multiplier"`
		Jitter     float64       `envconfig:"BACKOFF_JITTER" default:"0.2" json:"jitter"`
		MaxDelay   time.Duration `envconfig:"BACKOFF_MAX_DELAY" default:"60s" json:"max_delay"`
	}
)

// Init config from environment variables.
func Init() (*ServiceConfig, error) {
	cfg := &ServiceConfig{}

	err := envconfig.Process("", cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to parse service configuration: %w", err)
	}

	if len(ServiceVersion) != 0 {
		cfg.AppConfig.ServiceVersion = ServiceVersion
	}

	if len(CommitSHA) != 0 {
		cfg.AppConfig.CommitSHA = CommitSHA
	}

	return cfg, nil
}

// Retention returns the cutoff age for published outbox rows.
func (c OutboxConfig) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}
