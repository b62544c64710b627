package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"slotguard/pkg/client"
	"slotguard/pkg/logger"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	LogLevel    string
	LogFormat   string
	StoreDriver string

	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	PostgresDSN      string
	PostgresMaxConns int

	RedisURL string

	KafkaEnabled               bool
	BookingEventsTopic         string
	ProviderRegistrationsTopic string

	RateLimitRequests int
	RateLimitWindow   time.Duration

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	AlternativesLimit       int
	AlternativesPerDay      int
	SlotStepMinutes         int
	CancelReasonMinLength   int
	CompletionSweepInterval time.Duration

	OtelEnabled     bool
	OtelEndpoint    string
	OtelSampleRatio float64

	ServiceName string

	Log    *logger.Logger
	Client *client.Client
}

// Load reads the environment (and a .env file when present), validates the
// result and exits the process on invalid settings.
func Load(serviceName string) *Config {
	_ = godotenv.Load()

	cfg := FromEnv(serviceName)
	cfg.Log = logger.New(logger.Config{
		Level:     cfg.LogLevel,
		Format:    cfg.LogFormat,
		AddSource: true,
		Service:   serviceName,
	})
	cfg.Client = client.NewClient()

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

// FromEnv builds a Config from the environment without side effects.
func FromEnv(serviceName string) *Config {
	return &Config{
		Port:        getEnvStr(EnvPort, DefaultPort),
		LogLevel:    getEnvStr(EnvLogLevel, DefaultLogLevel),
		LogFormat:   getEnvStr(EnvLogFormat, DefaultLogFormat),
		StoreDriver: strings.ToLower(getEnvStr(EnvStoreDriver, DefaultStoreDriver)),

		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		PostgresDSN:      getEnvStr(EnvPostgresDSN, ""),
		PostgresMaxConns: getEnvNum(EnvPostgresMaxConns, DefaultPostgresMaxConns),

		RedisURL: getEnvStr(EnvRedisURL, ""),

		KafkaEnabled:               getEnvBool(EnvKafkaEnabled, false),
		BookingEventsTopic:         getEnvStr(EnvBookingEventsTopic, DefaultBookingEventsTopic),
		ProviderRegistrationsTopic: getEnvStr(EnvProviderRegistrationsTopic, DefaultProviderRegistrationsTopic),

		RateLimitRequests: getEnvNum(EnvRateLimitRequests, DefaultRateLimitRequests),
		RateLimitWindow:   getEnvDuration(EnvRateLimitWindow, DefaultRateLimitWindow),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		AlternativesLimit:       getEnvNum(EnvAlternativesLimit, DefaultAlternativesLimit),
		AlternativesPerDay:      getEnvNum(EnvAlternativesPerDay, DefaultAlternativesPerDay),
		SlotStepMinutes:         getEnvNum(EnvSlotStepMinutes, DefaultSlotStepMinutes),
		CancelReasonMinLength:   getEnvNum(EnvCancelReasonMinLength, DefaultCancelReasonMinLength),
		CompletionSweepInterval: getEnvDuration(EnvCompletionSweepInterval, DefaultCompletionSweepInterval),

		OtelEnabled:     getEnvBool(EnvOtelEnabled, false),
		OtelEndpoint:    getEnvStr(EnvOtelEndpoint, DefaultOtelEndpoint),
		OtelSampleRatio: getEnvFloat(EnvOtelSampleRatio, DefaultOtelSampleRatio),

		ServiceName: serviceName,
	}
}

// SetStore connects the client the configured driver needs.
func (cfg *Config) SetStore() {
	switch cfg.StoreDriver {
	case DriverMongo:
		cfg.SetMongo()
	case DriverPostgres:
		cfg.SetPostgres()
	}
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

func (cfg *Config) SetPostgres() {
	cfg.Client.SetPostgres(cfg.Log, cfg.PostgresDSN, cfg.PostgresMaxConns, cfg.MongoConnTimeout)
}

func (cfg *Config) SetRedis() {
	cfg.Client.SetRedis(cfg.Log, cfg.RedisURL, cfg.MongoConnTimeout)
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	switch cfg.LogFormat {
	case logger.JSON, logger.CONSOLE:
	default:
		errors = append(errors, fmt.Sprintf("LogFormat must be 'json' or 'console', got: %s", cfg.LogFormat))
	}

	switch cfg.StoreDriver {
	case DriverMongo:
		if cfg.MongoURI == "" {
			errors = append(errors, "MongoURI cannot be empty")
		} else if !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
			errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", redactURI(cfg.MongoURI)))
		}
		if cfg.MongoDatabaseName == "" {
			errors = append(errors, "MongoDatabaseName cannot be empty")
		}
	case DriverPostgres:
		if cfg.PostgresDSN == "" {
			errors = append(errors, "PostgresDSN cannot be empty when STORE_DRIVER=postgres")
		}
		if cfg.PostgresMaxConns <= 0 {
			errors = append(errors, fmt.Sprintf("PostgresMaxConns must be positive, got: %d", cfg.PostgresMaxConns))
		}
	case DriverMemory:
	default:
		errors = append(errors, fmt.Sprintf("StoreDriver must be one of mongo, postgres, memory, got: %s", cfg.StoreDriver))
	}

	if cfg.RedisURL != "" && !regexp.MustCompile(`^rediss?://`).MatchString(cfg.RedisURL) {
		errors = append(errors, "RedisURL must start with 'redis://' or 'rediss://'")
	}
	if cfg.KafkaEnabled && cfg.BookingEventsTopic == "" {
		errors = append(errors, "BookingEventsTopic cannot be empty when Kafka is enabled")
	}

	positive := []struct {
		name  string
		value time.Duration
	}{
		{"MongoConnTimeout", cfg.MongoConnTimeout},
		{"RateLimitWindow", cfg.RateLimitWindow},
		{"RequestTimeout", cfg.RequestTimeout},
		{"IdempotencyTTL", cfg.IdempotencyTTL},
		{"ReadTimeout", cfg.ReadTimeout},
		{"WriteTimeout", cfg.WriteTimeout},
		{"IdleTimeout", cfg.IdleTimeout},
		{"ShutdownTimeout", cfg.ShutdownTimeout},
		{"CompletionSweepInterval", cfg.CompletionSweepInterval},
	}
	for _, p := range positive {
		if p.value <= 0 {
			errors = append(errors, fmt.Sprintf("%s must be positive, got: %s", p.name, p.value))
		}
	}

	if cfg.RateLimitRequests <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitRequests must be positive, got: %d", cfg.RateLimitRequests))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}
	if cfg.AlternativesLimit <= 0 {
		errors = append(errors, fmt.Sprintf("AlternativesLimit must be positive, got: %d", cfg.AlternativesLimit))
	}
	if cfg.AlternativesPerDay < 0 {
		errors = append(errors, fmt.Sprintf("AlternativesPerDay cannot be negative, got: %d", cfg.AlternativesPerDay))
	}
	if cfg.SlotStepMinutes <= 0 || cfg.SlotStepMinutes > 60 {
		errors = append(errors, fmt.Sprintf("SlotStepMinutes must be between 1 and 60, got: %d", cfg.SlotStepMinutes))
	}
	if cfg.CancelReasonMinLength < 0 {
		errors = append(errors, fmt.Sprintf("CancelReasonMinLength cannot be negative, got: %d", cfg.CancelReasonMinLength))
	}
	if cfg.OtelSampleRatio < 0 || cfg.OtelSampleRatio > 1 {
		errors = append(errors, fmt.Sprintf("OtelSampleRatio must be between 0 and 1, got: %v", cfg.OtelSampleRatio))
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"store_driver", cfg.StoreDriver,
		"mongo_uri", redactURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"postgres_dsn", redactURI(cfg.PostgresDSN),
		"postgres_max_conns", cfg.PostgresMaxConns,
		"redis_url", redactURI(cfg.RedisURL),
		"kafka_enabled", cfg.KafkaEnabled,
		"booking_events_topic", cfg.BookingEventsTopic,
		"port", cfg.Port,
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
		"alternatives_limit", cfg.AlternativesLimit,
		"alternatives_per_day", cfg.AlternativesPerDay,
		"slot_step_minutes", cfg.SlotStepMinutes,
		"cancel_reason_min_length", cfg.CancelReasonMinLength,
		"completion_sweep_interval", cfg.CompletionSweepInterval,
		"otel_enabled", cfg.OtelEnabled,
		"otel_endpoint", cfg.OtelEndpoint,
	)
}

var credentialRegex = regexp.MustCompile(`^([a-z][a-z0-9+.-]*://)[^@/]+@`)

func redactURI(uri string) string {
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown(cfg.Log)
	_ = cfg.Log.Sync()
}

func NormalizePaginationLimit(limit int) int {
	if limit <= 0 {
		limit = 10
	} else if limit > DefaultPaginationLimit {
		limit = DefaultPaginationLimit
	}
	return limit
}

func NormalizeOffset(offset int64) int64 {
	return max(0, offset)
}
