package interfaces

import (
	"context"

	"shg-finance/internal/pkg/lock"
)

// LockerInterface hands out exclusive, expiring locks keyed by resource.
type LockerInterface interface {
	Acquire(ctx context.Context, key string) (lock.Unlock, error)
}

type TransactionRunnerInterface interface {
	Enabled() bool
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
