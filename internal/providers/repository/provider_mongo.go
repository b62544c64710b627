package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	providerserrors "slotguard/internal/providers/errors"
	"slotguard/pkg/config"
	"slotguard/pkg/db"
	mongotx "slotguard/pkg/db/mongo"
	"slotguard/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoProviderRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoProviderRepository(cfg *config.Config) ProviderRepository {
	return &mongoProviderRepository{
		cfg:        cfg,
		collection: cfg.Client.Mongo.Database(cfg.MongoDatabaseName).Collection(CollectionName),
	}
}

func (r *mongoProviderRepository) Create(ctx context.Context, p *model.Provider) error {
	ctx, cancel := db.WithTimeout(ctx, r.cfg.WriteTimeout, mongotx.InTransaction(ctx))
	defer cancel()

	if _, err := r.collection.InsertOne(ctx, p); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", providerserrors.ErrAlreadyExists, p.ID)
		}
		return fmt.Errorf("failed to create provider: %w", err)
	}
	return nil
}

func (r *mongoProviderRepository) FindByID(ctx context.Context, id string) (*model.Provider, error) {
	ctx, cancel := db.WithTimeout(ctx, r.cfg.ReadTimeout, mongotx.InTransaction(ctx))
	defer cancel()

	var p model.Provider
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", providerserrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to find provider: %w", err)
	}
	return &p, nil
}

func (r *mongoProviderRepository) SaveAvailability(ctx context.Context, id string, wa model.WeeklyAvailability, at time.Time) (*model.Provider, error) {
	ctx, cancel := db.WithTimeout(ctx, r.cfg.WriteTimeout, mongotx.InTransaction(ctx))
	defer cancel()

	update := bson.M{"$set": bson.M{
		"weekly_availability": wa,
		"status":              model.ProviderReady,
		"updated_at":          at,
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var p model.Provider
	if err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", providerserrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to save availability: %w", err)
	}
	return &p, nil
}
