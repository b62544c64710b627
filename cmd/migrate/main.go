package main

import (
	"context"
	"time"

	mongomigration "slotguard/internal/migrations/mongo"
	postgresmigration "slotguard/internal/migrations/postgres"
	"slotguard/pkg/config"
)

const JobName = "migrate"

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	cfg := config.Load(JobName)
	defer cfg.GracefulShutdown()

	switch cfg.StoreDriver {
	case config.DriverMongo:
		cfg.SetMongo()
		cfg.Log.Info("Starting Mongo migration job")
		if err := mongomigration.RunMigration(ctx, cfg.Client.Mongo, cfg.MongoDatabaseName, cfg.Log); err != nil {
			cfg.Log.Fatal("Migration failed", "error", err)
		}
	case config.DriverPostgres:
		cfg.SetPostgres()
		cfg.Log.Info("Starting Postgres migration job")
		if err := postgresmigration.RunMigration(ctx, cfg.Client.Postgres, cfg.Log); err != nil {
			cfg.Log.Fatal("Migration failed", "error", err)
		}
	default:
		cfg.Log.Info("Nothing to migrate", "store_driver", cfg.StoreDriver)
		return
	}

	cfg.Log.Info("Migration completed successfully")
}
