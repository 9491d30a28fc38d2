package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a lock taken by DistributedLocker.Lock.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker serializes apply cycles on one session across replicas
// sharing a state store.
type DistributedLocker interface {
	// Lock blocks until key is held or ctx is done. The lock expires after ttl
	// even if the holder never calls the returned UnlockFunc.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
