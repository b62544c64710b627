package config

import "time"

const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

const (
	DefaultPort      = "8080"
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultStoreDriver = DriverMongo

	DefaultMongoURI          = "mongodb://localhost:27017/?replicaSet=rs0"
	DefaultMongoDatabaseName = "slotguard"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPostgresMaxConns = 10

	DefaultBookingEventsTopic         = "slotguard.bookings.v1"
	DefaultProviderRegistrationsTopic = "identity.providers.registered.v1"

	DefaultRateLimitRequests = 60
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultAlternativesLimit       = 10
	DefaultAlternativesPerDay      = 3
	DefaultSlotStepMinutes         = 15
	DefaultCancelReasonMinLength   = 10
	DefaultCompletionSweepInterval = 1 * time.Minute

	DefaultOtelEndpoint    = "localhost:4317"
	DefaultOtelSampleRatio = 1.0

	DefaultPaginationLimit = 100
)
