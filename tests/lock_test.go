package tests

import (
	"context"
	"testing"
	"time"

	"github.com/lithammer/shortuuid/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travels/entity"
	"travels/locks"
	"travels/pkg"
)

func TestRedisLocker_holds_lease_past_ttl(t *testing.T) {
	redisClient := pkg.NewRedisClient(redisURL)
	defer redisClient.Close()

	ctx := context.Background()
	key := "booking-" + shortuuid.New()

	holder := locks.NewRedisLocker(redisClient, locks.RedisLockerConfig{
		TTL:           200 * time.Millisecond,
		RenewInterval: 50 * time.Millisecond,
	})
	contender := locks.NewRedisLocker(redisClient, locks.RedisLockerConfig{
		TTL:  200 * time.Millisecond,
		Wait: 300 * time.Millisecond,
	})

	err := holder.WithLock(ctx, key, func(ctx context.Context) error {
		// past the first lease
		time.Sleep(250 * time.Millisecond)

		err := contender.WithLock(ctx, key, func(context.Context) error {
			return nil
		})
		assert.ErrorIs(t, err, entity.ErrLockNotAcquired)

		return ctx.Err()
	})
	require.NoError(t, err)

	err = contender.WithLock(ctx, key, func(context.Context) error {
		return nil
	})
	assert.NoError(t, err)
}

func TestRedisLocker_lease_taken_over(t *testing.T) {
	redisClient := pkg.NewRedisClient(redisURL)
	defer redisClient.Close()

	ctx := context.Background()
	key := "booking-" + shortuuid.New()

	locker := locks.NewRedisLocker(redisClient, locks.RedisLockerConfig{
		TTL:           time.Second,
		RenewInterval: 20 * time.Millisecond,
	})

	err := locker.WithLock(ctx, key, func(ctx context.Context) error {
		require.NoError(t, redisClient.Set(ctx, "travels:lock:"+key, "someone-else", time.Second).Err())

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
			return nil
		}
	})
	assert.ErrorIs(t, err, entity.ErrLockLost)

	owner, err := redisClient.Get(ctx, "travels:lock:"+key).Result()
	require.NoError(t, err)
	assert.Equal(t, "someone-else", owner, "release must not delete a lease it no longer holds")
}
