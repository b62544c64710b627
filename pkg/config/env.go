package config

const (
	EnvPort      = "PORT"
	EnvLogLevel  = "LOG_LEVEL"
	EnvLogFormat = "LOG_FORMAT"

	EnvStoreDriver = "STORE_DRIVER"

	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvPostgresDSN      = "POSTGRES_DSN"
	EnvPostgresMaxConns = "POSTGRES_MAX_CONNS"

	EnvRedisURL = "REDIS_URL"

	EnvKafkaEnabled               = "KAFKA_ENABLED"
	EnvBookingEventsTopic         = "BOOKING_EVENTS_TOPIC"
	EnvProviderRegistrationsTopic = "PROVIDER_REGISTRATIONS_TOPIC"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvAlternativesLimit       = "ALTERNATIVES_LIMIT"
	EnvAlternativesPerDay      = "ALTERNATIVES_PER_DAY"
	EnvSlotStepMinutes         = "SLOT_STEP_MINUTES"
	EnvCancelReasonMinLength   = "CANCEL_REASON_MIN_LENGTH"
	EnvCompletionSweepInterval = "COMPLETION_SWEEP_INTERVAL"

	EnvOtelEnabled     = "OTEL_ENABLED"
	EnvOtelEndpoint    = "OTEL_EXPORTER_OTLP_ENDPOINT"
	EnvOtelSampleRatio = "OTEL_SAMPLING_RATIO"
)
