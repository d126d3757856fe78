package shared

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// ErrLockBusy indicates the critical section is held by another process.
var ErrLockBusy = errors.New("shared: lock held elsewhere")

// StockSweepLockKey guards the scheduled consistency sweep.
func StockSweepLockKey() string {
	return "labstock:stock:sweep:lock"
}

// WarehouseLockKey serialises stock-decreasing postings of one warehouse.
func WarehouseLockKey(warehouseID int64) string {
	return fmt.Sprintf("labstock:warehouse:%d:lock", warehouseID)
}

// Locker runs critical sections under Redis locks. A nil Locker runs them
// unguarded, which is correct for single-process deployments.
type Locker struct {
	client *redislock.Client
	ttl    time.Duration
	wait   time.Duration
}

// NewLocker constructs a Locker. ttl bounds how long a crashed holder blocks
// others; wait bounds how long WithLock retries.
func NewLocker(client *redis.Client, ttl, wait time.Duration) *Locker {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if wait <= 0 {
		wait = 5 * time.Second
	}
	return &Locker{client: redislock.New(client), ttl: ttl, wait: wait}
}

// TryWithLock runs fn only if key is free right now, otherwise it returns
// ErrLockBusy.
func (l *Locker) TryWithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	if l == nil {
		return fn(ctx)
	}
	return l.run(ctx, ctx, key, nil, fn)
}

// WithLock waits up to the configured wait for key, then runs fn.
func (l *Locker) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	if l == nil {
		return fn(ctx)
	}
	obtainCtx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()
	opts := &redislock.Options{RetryStrategy: redislock.LinearBackoff(50 * time.Millisecond)}
	return l.run(ctx, obtainCtx, key, opts, fn)
}

func (l *Locker) run(ctx, obtainCtx context.Context, key string, opts *redislock.Options, fn func(context.Context) error) error {
	lock, err := l.client.Obtain(obtainCtx, key, l.ttl, opts)
	if errors.Is(err, redislock.ErrNotObtained) || (err != nil && ctx.Err() == nil && obtainCtx.Err() != nil) {
		return fmt.Errorf("%w: %s", ErrLockBusy, key)
	}
	if err != nil {
		return fmt.Errorf("shared: obtain lock %s: %w", key, err)
	}
	defer func() {
		_ = lock.Release(context.WithoutCancel(ctx))
	}()
	return fn(ctx)
}
