package shared

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T, wait time.Duration) *Locker {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewLocker(client, time.Second, wait)
}

func TestNilLockerRunsUnguarded(t *testing.T) {
	var l *Locker
	require.Nil(t, NewLocker(nil, 0, 0))

	calls := 0
	fn := func(context.Context) error { calls++; return nil }
	require.NoError(t, l.TryWithLock(context.Background(), "k", fn))
	require.NoError(t, l.WithLock(context.Background(), "k", fn))
	require.Equal(t, 2, calls)
}

func TestTryWithLockBusy(t *testing.T) {
	l := newTestLocker(t, 50*time.Millisecond)
	ctx := context.Background()
	key := WarehouseLockKey(3)

	err := l.TryWithLock(ctx, key, func(ctx context.Context) error {
		inner := l.TryWithLock(ctx, key, func(context.Context) error { return nil })
		require.ErrorIs(t, inner, ErrLockBusy)

		inner = l.WithLock(ctx, key, func(context.Context) error { return nil })
		require.ErrorIs(t, inner, ErrLockBusy)
		return nil
	})
	require.NoError(t, err)

	// released after the critical section
	require.NoError(t, l.TryWithLock(ctx, key, func(context.Context) error { return nil }))
}

func TestLockerPropagatesError(t *testing.T) {
	l := newTestLocker(t, 0)
	boom := errors.New("boom")
	err := l.WithLock(context.Background(), StockSweepLockKey(), func(context.Context) error { return boom })
	require.ErrorIs(t, err, boom)
}

func TestLockKeys(t *testing.T) {
	require.Equal(t, "labstock:warehouse:12:lock", WarehouseLockKey(12))
	require.NotEqual(t, WarehouseLockKey(1), StockSweepLockKey())
}

func TestAuditLoggerWithoutPool(t *testing.T) {
	l := NewAuditLogger(nil, nil)
	require.NoError(t, l.Record(context.Background(), AuditLog{Action: "inventory.post_invoice", Entity: "invoice", EntityID: "1"}))
	require.Error(t, l.Record(context.Background(), AuditLog{Action: "inventory.post_invoice"}))

	var nilLogger *AuditLogger
	require.Error(t, nilLogger.Record(context.Background(), AuditLog{}))
}

func TestIdempotencyStoreGuards(t *testing.T) {
	var nilStore *IdempotencyStore
	require.Error(t, nilStore.CheckAndInsert(context.Background(), "k", "inventory"))
	require.NoError(t, nilStore.Delete(context.Background(), "k"))

	s := NewIdempotencyStore(nil)
	require.Error(t, s.CheckAndInsert(context.Background(), "", "inventory"))
	require.Error(t, s.CheckAndInsert(context.Background(), "k", ""))
	require.Error(t, s.Delete(context.Background(), ""))
}
