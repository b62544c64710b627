package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"slotguard/internal/migrations/mongo/validators"
	"slotguard/pkg/logger"
)

const (
	ProvidersCollection = "providers"
	BookingsCollection  = "bookings"
	SchedulesCollection = "provider_schedules"
)

var (
	ProvidersIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}}},
	}

	BookingsIndexes = []mongo.IndexModel{
		{
			// Storage backstop: one scheduled booking per provider start instant.
			Keys: bson.D{
				{Key: "provider_id", Value: 1},
				{Key: "appointment_instant", Value: 1},
			},
			Options: options.Index().
				SetName("uniq_scheduled_provider_instant").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": "scheduled"}),
		},
		{Keys: bson.D{
			{Key: "user_id", Value: 1},
			{Key: "appointment_instant", Value: 1},
		}},
		{Keys: bson.D{
			{Key: "status", Value: 1},
			{Key: "end_instant", Value: 1},
		}},
	}

	SchedulesIndexes = []mongo.IndexModel{}
)

type collectionDef struct {
	Indexes   []mongo.IndexModel
	Validator bson.M
}

func Collections() map[string]collectionDef {
	return map[string]collectionDef{
		ProvidersCollection: {Indexes: ProvidersIndexes, Validator: validators.ProviderValidator},
		BookingsCollection:  {Indexes: BookingsIndexes, Validator: validators.BookingValidator},
		SchedulesCollection: {Indexes: SchedulesIndexes, Validator: validators.ScheduleValidator},
	}
}

func RunMigration(ctx context.Context, client *mongo.Client, dbName string, log *logger.Logger) error {
	db := client.Database(dbName)
	log.Info("Running Mongo migrations", "database", dbName)

	for name, def := range Collections() {
		if err := ensureCollection(ctx, db, name, def.Validator, log); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", name, err)
		}
		if err := ensureIndexes(ctx, db, name, def.Indexes, log); err != nil {
			return fmt.Errorf("failed to ensure indexes for %s: %w", name, err)
		}
	}

	log.Info("Mongo migrations applied", "database", dbName)
	return nil
}

func ensureCollection(ctx context.Context, db *mongo.Database, name string, validator bson.M, log *logger.Logger) error {
	existing, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		log.Info("Creating collection", "collection", name)
		opts := options.CreateCollection().SetValidator(validator)
		if err := db.CreateCollection(ctx, name, opts); err != nil {
			return fmt.Errorf("failed creating %s: %w", name, err)
		}
		return nil
	}

	command := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
	}
	if err := db.RunCommand(ctx, command).Err(); err != nil {
		log.Warn("Failed updating collection validator", "collection", name, "error", err)
	}
	return nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database, name string, models []mongo.IndexModel, log *logger.Logger) error {
	if len(models) == 0 {
		return nil
	}
	if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
		return err
	}
	log.Info("Ensured indexes", "collection", name, "count", len(models))
	return nil
}
