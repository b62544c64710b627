package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingserrors "slotguard/internal/bookings/errors"
	"slotguard/pkg/config"
	"slotguard/pkg/db"
	mongotx "slotguard/pkg/db/mongo"
	"slotguard/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type mongoProjection struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoProjection(cfg *config.Config) Projection {
	return &mongoProjection{
		cfg:        cfg,
		collection: cfg.Client.Mongo.Database(cfg.MongoDatabaseName).Collection(SchedulesCollection),
	}
}

func (r *mongoProjection) Get(ctx context.Context, providerID string) (*model.ProviderSchedule, error) {
	ctx, cancel := db.WithTimeout(ctx, r.cfg.ReadTimeout, mongotx.InTransaction(ctx))
	defer cancel()

	var s model.ProviderSchedule
	if err := r.collection.FindOne(ctx, bson.M{"_id": providerID}).Decode(&s); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return model.NewProviderSchedule(providerID), nil
		}
		return nil, fmt.Errorf("failed to load provider schedule: %w", err)
	}
	if s.Entries == nil {
		s.Entries = []model.ScheduleEntry{}
	}
	return &s, nil
}

// Save inserts the first version of a schedule and otherwise updates with
// a version filter. Inside a transaction the write also conflicts with any
// concurrent writer of the same document.
func (r *mongoProjection) Save(ctx context.Context, s *model.ProviderSchedule) error {
	ctx, cancel := db.WithTimeout(ctx, r.cfg.WriteTimeout, mongotx.InTransaction(ctx))
	defer cancel()

	now := time.Now().UTC()
	if s.Version == 0 {
		doc := s.Clone()
		doc.Version = 1
		doc.UpdatedAt = now
		if _, err := r.collection.InsertOne(ctx, doc); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return fmt.Errorf("%w: %s", bookingserrors.ErrStaleSchedule, s.ProviderID)
			}
			return fmt.Errorf("failed to create provider schedule: %w", err)
		}
		s.Version, s.UpdatedAt = 1, now
		return nil
	}

	filter := bson.M{"_id": s.ProviderID, "version": s.Version}
	update := bson.M{
		"$set": bson.M{"entries": s.Entries, "updated_at": now},
		"$inc": bson.M{"version": 1},
	}
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to save provider schedule: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: %s (version %d)", bookingserrors.ErrStaleSchedule, s.ProviderID, s.Version)
	}
	s.Version++
	s.UpdatedAt = now
	return nil
}
