package db

import "context"

// TransactionFunc runs inside a store transaction. ctx carries the
// transaction handle; repositories must use it for every call.
type TransactionFunc func(ctx context.Context) error

type TransactionManager interface {
	ExecuteTransaction(ctx context.Context, fn TransactionFunc) error
}
