package db

import (
	"context"
	"time"
)

// WithTimeout bounds ctx by timeout, keeping an earlier caller deadline.
// Inside a transaction ctx is returned unchanged so the transaction's own
// deadline applies and a Mongo SessionContext is not wrapped away.
func WithTimeout(ctx context.Context, timeout time.Duration, inTransaction bool) (context.Context, context.CancelFunc) {
	if inTransaction || timeout <= 0 {
		return ctx, func() {}
	}
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < timeout {
		return context.WithDeadline(ctx, deadline)
	}
	return context.WithTimeout(ctx, timeout)
}
