// Package storetest connects tests to live Mongo and Postgres servers.
// Each call gets its own migrated database (Mongo) or schema (Postgres)
// that is dropped when the test ends. Tests skip when MONGO_URI or
// POSTGRES_DSN is unset.
package storetest

import (
	"context"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	mongomigrations "slotguard/internal/migrations/mongo"
	pgmigrations "slotguard/internal/migrations/postgres"
	"slotguard/pkg/client"
	"slotguard/pkg/config"
	"slotguard/pkg/db/postgres"
	"slotguard/pkg/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	EnvMongoURI    = "MONGO_URI"
	EnvPostgresDSN = "POSTGRES_DSN"

	ConnectionTimeout = 10 * time.Second
)

// Driver opens a live store for one test.
type Driver struct {
	Name string
	Open func(t *testing.T) *config.Config
}

// Drivers lists the networked store drivers.
func Drivers() []Driver {
	return []Driver{
		{Name: config.DriverMongo, Open: Mongo},
		{Name: config.DriverPostgres, Open: Postgres},
	}
}

func newConfig(driver string) *config.Config {
	return &config.Config{
		StoreDriver:           driver,
		ReadTimeout:           5 * time.Second,
		WriteTimeout:          5 * time.Second,
		SlotStepMinutes:       15,
		AlternativesLimit:     10,
		AlternativesPerDay:    3,
		CancelReasonMinLength: 10,
		ServiceName:           "storetest",
		Log:                   logger.New(logger.Config{Level: "error", Output: io.Discard, Service: "test"}),
		Client:                client.NewClient(),
	}
}

func suffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// Mongo connects to MONGO_URI, which must be a replica set since
// bookings rely on multi-document transactions.
func Mongo(t *testing.T) *config.Config {
	t.Helper()
	uri := getenv(t, EnvMongoURI)

	ctx, cancel := context.WithTimeout(context.Background(), ConnectionTimeout)
	defer cancel()

	mc, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		t.Fatalf("failed to connect to MongoDB: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mc.Disconnect(ctx); err != nil {
			t.Logf("warning: failed to disconnect from MongoDB: %v", err)
		}
	})
	if err := mc.Ping(ctx, nil); err != nil {
		t.Fatalf("failed to ping MongoDB: %v", err)
	}

	var hello bson.M
	if err := mc.Database("admin").RunCommand(ctx, bson.D{{Key: "hello", Value: 1}}).Decode(&hello); err != nil {
		t.Fatalf("hello: %v", err)
	}
	if _, ok := hello["setName"]; !ok {
		t.Skip("MONGO_URI is not a replica set; transactions unavailable")
	}

	cfg := newConfig(config.DriverMongo)
	cfg.MongoURI = uri
	cfg.MongoDatabaseName = "slotguard_test_" + suffix()
	cfg.Client.Mongo = mc

	if err := mongomigrations.RunMigration(ctx, mc, cfg.MongoDatabaseName, cfg.Log); err != nil {
		t.Fatalf("mongo migrations: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := mc.Database(cfg.MongoDatabaseName).Drop(ctx); err != nil {
			t.Logf("warning: failed to drop %s: %v", cfg.MongoDatabaseName, err)
		}
	})
	return cfg
}

// Postgres connects to POSTGRES_DSN with a private schema first on the
// search path. btree_gist is installed once into public, which stays on
// the path for its operator classes.
func Postgres(t *testing.T) *config.Config {
	t.Helper()
	dsn := getenv(t, EnvPostgresDSN)

	ctx, cancel := context.WithTimeout(context.Background(), ConnectionTimeout)
	defer cancel()

	admin, err := postgres.Open(ctx, postgres.PoolConfig{DSN: dsn, MaxConns: 2})
	if err != nil {
		t.Fatalf("failed to connect to PostgreSQL: %v", err)
	}
	t.Cleanup(admin.Close)

	if _, err := admin.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS btree_gist WITH SCHEMA public`); err != nil &&
		!postgres.HasCode(err, postgres.CodeUniqueViolation, "42710") {
		t.Fatalf("install btree_gist: %v", err)
	}

	schema := "slotguard_test_" + suffix()
	if _, err := admin.Exec(ctx, `CREATE SCHEMA `+schema); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := admin.Exec(ctx, `DROP SCHEMA `+schema+` CASCADE`); err != nil {
			t.Logf("warning: failed to drop schema %s: %v", schema, err)
		}
	})

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		t.Fatalf("parse dsn: %v", err)
	}
	poolCfg.MaxConns = 16
	poolCfg.ConnConfig.RuntimeParams["search_path"] = schema + ",public"

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		t.Fatalf("open pool: %v", err)
	}
	// Registered after the schema drop so the pool closes first.
	t.Cleanup(pool.Close)

	cfg := newConfig(config.DriverPostgres)
	cfg.PostgresDSN = dsn
	cfg.Client.Postgres = pool

	if err := pgmigrations.RunMigration(ctx, pool, cfg.Log); err != nil {
		t.Fatalf("postgres migrations: %v", err)
	}
	return cfg
}

func getenv(t *testing.T, key string) string {
	t.Helper()
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		t.Skipf("%s not set; skipping live store test", key)
	}
	return v
}
