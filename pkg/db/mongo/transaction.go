package mongo

import (
	"context"
	"fmt"

	"slotguard/pkg/db"
	apperrors "slotguard/pkg/errors"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

type mongoTransactionManager struct {
	client *mongo.Client
}

func NewTransactionManager(client *mongo.Client) db.TransactionManager {
	return &mongoTransactionManager{
		client: client,
	}
}

// ExecuteTransaction runs fn with snapshot reads and majority writes.
// WithTransaction retries fn on transient errors such as write conflicts,
// so fn must be safe to run more than once.
func (m *mongoTransactionManager) ExecuteTransaction(ctx context.Context, fn db.TransactionFunc) error {
	session, err := m.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	txOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (any, error) {
		return nil, fn(sessCtx)
	}, txOpts)

	if err != nil {
		if apperrors.IsAppError(err) {
			return err
		}
		return fmt.Errorf("transaction failed: %w", err)
	}

	return nil
}

// InTransaction reports whether ctx is bound to a session.
func InTransaction(ctx context.Context) bool {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return true
	}
	return mongo.SessionFromContext(ctx) != nil
}
