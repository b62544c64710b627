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
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoLedger struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoLedger(cfg *config.Config) Ledger {
	return &mongoLedger{
		cfg:        cfg,
		collection: cfg.Client.Mongo.Database(cfg.MongoDatabaseName).Collection(BookingsCollection),
	}
}

func (r *mongoLedger) Create(ctx context.Context, b *model.Booking) error {
	ctx, cancel := db.WithTimeout(ctx, r.cfg.WriteTimeout, mongotx.InTransaction(ctx))
	defer cancel()

	if _, err := r.collection.InsertOne(ctx, b); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s at %s", bookingserrors.ErrSlotTaken, b.ProviderID, b.AppointmentInstant.Format(time.RFC3339))
		}
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

func (r *mongoLedger) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	ctx, cancel := db.WithTimeout(ctx, r.cfg.ReadTimeout, mongotx.InTransaction(ctx))
	defer cancel()

	var b model.Booking
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&b); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", bookingserrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}
	return &b, nil
}

func (r *mongoLedger) FindByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Booking, error) {
	ctx, cancel := db.WithTimeout(ctx, r.cfg.ReadTimeout, mongotx.InTransaction(ctx))
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "appointment_instant", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find bookings: %w", err)
	}
	defer cursor.Close(ctx)

	bookings := []*model.Booking{}
	if err := cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}
	return bookings, nil
}

func (r *mongoLedger) CountByUser(ctx context.Context, userID string) (int64, error) {
	ctx, cancel := db.WithTimeout(ctx, r.cfg.ReadTimeout, mongotx.InTransaction(ctx))
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{"user_id": userID})
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return count, nil
}

func (r *mongoLedger) Update(ctx context.Context, b *model.Booking, expectedVersion int64) error {
	ctx, cancel := db.WithTimeout(ctx, r.cfg.WriteTimeout, mongotx.InTransaction(ctx))
	defer cancel()

	next := b.Clone()
	next.Version = expectedVersion + 1

	result, err := r.collection.ReplaceOne(ctx, bson.M{"_id": b.ID, "version": expectedVersion}, next)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s at %s", bookingserrors.ErrSlotTaken, b.ProviderID, b.AppointmentInstant.Format(time.RFC3339))
		}
		return fmt.Errorf("failed to update booking: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: %s (expected version %d)", bookingserrors.ErrVersionConflict, b.ID, expectedVersion)
	}
	b.Version = next.Version
	return nil
}

func (r *mongoLedger) FindDue(ctx context.Context, before time.Time, limit int) ([]*model.Booking, error) {
	ctx, cancel := db.WithTimeout(ctx, r.cfg.ReadTimeout, mongotx.InTransaction(ctx))
	defer cancel()

	filter := bson.M{
		"status":      model.BookingScheduled,
		"end_instant": bson.M{"$lte": before},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "end_instant", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find due bookings: %w", err)
	}
	defer cursor.Close(ctx)

	bookings := []*model.Booking{}
	if err := cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode due bookings: %w", err)
	}
	return bookings, nil
}
