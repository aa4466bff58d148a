package notifier

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuseats/meal-gateway/pkg/redis"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	// Unique connection name per test to avoid the global adapter cache
	connName := t.Name() + "-" + mr.Addr()
	adapter, err := redis.NewRedisAdapter(connName, "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)

	return mr, adapter
}

func TestIdempotency_AcquireThenMarkSuccess(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	defer mr.Close()

	svc := NewIdempotencyService(adapter, DefaultIdempotencyConfig())
	ctx := context.Background()

	dc, err := svc.AcquireDispatchLock(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "b1", dc.BookingID)
	assert.False(t, dc.IsRetry)

	require.NoError(t, svc.MarkSuccess(ctx, dc))

	dispatched, err := svc.IsDispatched(ctx, "b1")
	require.NoError(t, err)
	assert.True(t, dispatched)

	// Redelivery of the same receipt short-circuits.
	_, err = svc.AcquireDispatchLock(ctx, "b1")
	assert.ErrorIs(t, err, ErrAlreadyDispatched)
}

func TestIdempotency_LockBlocksConcurrentDispatch(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	defer mr.Close()

	svc := NewIdempotencyService(adapter, DefaultIdempotencyConfig())
	ctx := context.Background()

	dc, err := svc.AcquireDispatchLock(ctx, "b2")
	require.NoError(t, err)

	_, err = svc.AcquireDispatchLock(ctx, "b2")
	assert.ErrorIs(t, err, ErrLockAcquireFailed)

	require.NoError(t, svc.ReleaseLock(ctx, dc))

	_, err = svc.AcquireDispatchLock(ctx, "b2")
	assert.NoError(t, err)
}

func TestIdempotency_MaxRetriesExceeded(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	defer mr.Close()

	config := DefaultIdempotencyConfig()
	config.MaxRetries = 2
	svc := NewIdempotencyService(adapter, config)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		dc, err := svc.AcquireDispatchLock(ctx, "b3")
		require.NoError(t, err)
		require.NoError(t, svc.MarkFailure(ctx, dc, assert.AnError))
	}

	count, err := svc.GetRetryCount(ctx, "b3")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	_, err = svc.AcquireDispatchLock(ctx, "b3")
	assert.ErrorIs(t, err, ErrMaxRetriesExceeded)
}

func TestIdempotency_MarkFailureFreesLock(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	defer mr.Close()

	svc := NewIdempotencyService(adapter, DefaultIdempotencyConfig())
	ctx := context.Background()

	dc, err := svc.AcquireDispatchLock(ctx, "b4")
	require.NoError(t, err)
	require.NoError(t, svc.MarkFailure(ctx, dc, assert.AnError))

	dc, err = svc.AcquireDispatchLock(ctx, "b4")
	require.NoError(t, err)
	assert.True(t, dc.IsRetry)
	assert.Equal(t, 1, dc.RetryCount)
}

func TestIdempotency_SuccessClearsRetryCounter(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	defer mr.Close()

	svc := NewIdempotencyService(adapter, DefaultIdempotencyConfig())
	ctx := context.Background()

	dc, err := svc.AcquireDispatchLock(ctx, "b5")
	require.NoError(t, err)
	require.NoError(t, svc.MarkFailure(ctx, dc, assert.AnError))

	dc, err = svc.AcquireDispatchLock(ctx, "b5")
	require.NoError(t, err)
	require.NoError(t, svc.MarkSuccess(ctx, dc))

	count, err := svc.GetRetryCount(ctx, "b5")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestDispatchMetrics(t *testing.T) {
	m := NewDispatchMetrics()

	m.RecordSuccess(10 * time.Millisecond)
	m.RecordSuccess(20 * time.Millisecond)
	m.RecordFailure()
	m.RecordSkip()

	stats := m.GetStats()
	assert.Equal(t, int64(2), stats["total_dispatched"])
	assert.Equal(t, int64(1), stats["total_failed"])
	assert.Equal(t, int64(1), stats["total_skipped"])
	assert.Equal(t, int64(15), stats["avg_duration_ms"])

	m.Reset()
	stats = m.GetStats()
	assert.Equal(t, int64(0), stats["total_dispatched"])
}
