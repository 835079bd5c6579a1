package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	Realtime     RealtimeConfig
	SLA          SLAConfig
	Telemetry    TelemetryConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	BaseURL               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
	// ConnectAttempts bounds startup retries while the database comes up.
	ConnectAttempts int
	ApplicationName string
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	// URL, when set, takes precedence over the discrete fields.
	URL        string
	Addr       string
	Password   string
	DB         int
	ClientName string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
	// Format is "json" or "console".
	Format string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
}

// NotificationConfig selects and configures the outbound mail provider.
type NotificationConfig struct {
	Provider       string
	EmailFrom      string
	SMTPHost       string
	SMTPPort       int
	SMTPUsername   string
	SMTPPassword   string
	WebhookURL     string
	WebhookToken   string
	Workers        int
	QueueSize      int
	TimeoutSeconds int
}

// RealtimeConfig tunes the event bus and the push stream gateway.
type RealtimeConfig struct {
	MaxConnectionsPerUser int
	HeartbeatSeconds      int
	SubscriberBuffer      int
	DeliveryTimeoutMillis int
	RedisRelay            bool
	RedisChannel          string
}

// SLAConfig holds reminder sweep settings.
type SLAConfig struct {
	SweepSecret       string
	ReminderTTLHours  int
	SweepBatchLimit   int
	SweepIntervalMins int
}

// TelemetryConfig configures trace export.
type TelemetryConfig struct {
	OTLPEndpoint string
	Insecure     bool
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "support-desk"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			BaseURL:               getEnv("APP_BASE_URL", "http://localhost:3000"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:             os.Getenv("POSTGRES_DSN"),
			MaxConns:        maxConns,
			MinConns:        minConns,
			RunMigrations:   runMigrations,
			ConnMaxIdleSec:  connMaxIdle,
			ConnMaxLifeSec:  connMaxLife,
			ConnectAttempts: getEnvAsInt("POSTGRES_CONNECT_ATTEMPTS", 5),
			ApplicationName: getEnv("APP_NAME", "support-desk"),
		},
		Redis: RedisConfig{
			Addr:       getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:   os.Getenv("REDIS_PASSWORD"),
			DB:         redisDB,
			URL:        os.Getenv("REDIS_URL"),
			ClientName: getEnv("APP_NAME", "support-desk"),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Notification: NotificationConfig{
			Provider:       getEnv("NOTIFY_PROVIDER", "log"),
			EmailFrom:      getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			SMTPHost:       os.Getenv("NOTIFY_SMTP_HOST"),
			SMTPPort:       getEnvAsInt("NOTIFY_SMTP_PORT", 587),
			SMTPUsername:   os.Getenv("NOTIFY_SMTP_USERNAME"),
			SMTPPassword:   os.Getenv("NOTIFY_SMTP_PASSWORD"),
			WebhookURL:     getEnv("NOTIFY_WEBHOOK_URL", ""),
			WebhookToken:   os.Getenv("NOTIFY_WEBHOOK_TOKEN"),
			Workers:        getEnvAsInt("NOTIFY_WORKERS", 4),
			QueueSize:      getEnvAsInt("NOTIFY_QUEUE_SIZE", 256),
			TimeoutSeconds: getEnvAsInt("NOTIFY_TIMEOUT_SECONDS", 10),
		},
		Realtime: RealtimeConfig{
			MaxConnectionsPerUser: getEnvAsInt("REALTIME_MAX_CONNECTIONS_PER_USER", 3),
			HeartbeatSeconds:      getEnvAsInt("REALTIME_HEARTBEAT_SECONDS", 25),
			SubscriberBuffer:      getEnvAsInt("REALTIME_SUBSCRIBER_BUFFER", 64),
			DeliveryTimeoutMillis: getEnvAsInt("REALTIME_DELIVERY_TIMEOUT_MS", 100),
			RedisRelay:            getEnvAsBool("REALTIME_REDIS_RELAY", false),
			RedisChannel:          getEnv("REALTIME_REDIS_CHANNEL", "support-desk:events"),
		},
		SLA: SLAConfig{
			SweepSecret:       os.Getenv("SLA_SWEEP_SECRET"),
			ReminderTTLHours:  getEnvAsInt("SLA_REMINDER_TTL_HOURS", 72),
			SweepBatchLimit:   getEnvAsInt("SLA_SWEEP_BATCH_LIMIT", 500),
			SweepIntervalMins: getEnvAsInt("SLA_SWEEP_INTERVAL_MINUTES", 0),
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
			Insecure:     getEnvAsBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Heartbeat returns the interval between keep-alive pings on push streams.
func (r RealtimeConfig) Heartbeat() time.Duration {
	if r.HeartbeatSeconds <= 0 {
		return 25 * time.Second
	}
	return time.Duration(r.HeartbeatSeconds) * time.Second
}

// DeliveryTimeout bounds how long a publish may wait on slow subscribers.
func (r RealtimeConfig) DeliveryTimeout() time.Duration {
	if r.DeliveryTimeoutMillis <= 0 {
		return 100 * time.Millisecond
	}
	return time.Duration(r.DeliveryTimeoutMillis) * time.Millisecond
}

// Timeout returns the per-notification send deadline.
func (n NotificationConfig) Timeout() time.Duration {
	if n.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(n.TimeoutSeconds) * time.Second
}

// ReminderTTL is how long a sent-reminder marker is kept.
func (s SLAConfig) ReminderTTL() time.Duration {
	if s.ReminderTTLHours <= 0 {
		return 72 * time.Hour
	}
	return time.Duration(s.ReminderTTLHours) * time.Hour
}

// SweepInterval returns the in-process sweep period; zero disables it and
// leaves scheduling to an external trigger.
func (s SLAConfig) SweepInterval() time.Duration {
	if s.SweepIntervalMins <= 0 {
		return 0
	}
	return time.Duration(s.SweepIntervalMins) * time.Minute
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
