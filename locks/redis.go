package locks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/cenkalti/backoff/v4"
	"github.com/lithammer/shortuuid/v3"
	"github.com/redis/go-redis/v9"

	"travels/entity"
)

// releaseScript deletes the lock only if it still holds our token.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`

// renewScript extends the lease only if it still holds our token.
const renewScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
else
	return 0
end`

var errLockHeld = errors.New("lock held by another owner")

type RedisLockerConfig struct {
	// TTL bounds how long a crashed owner can block a booking. A live owner
	// renews the lease every RenewInterval for as long as fn runs.
	TTL           time.Duration
	RenewInterval time.Duration
	Wait          time.Duration
	RetryInterval time.Duration
	KeyPrefix     string
	NewToken      func() string
}

func (c *RedisLockerConfig) setDefaults() {
	if c.TTL == 0 {
		c.TTL = 30 * time.Second
	}
	if c.RenewInterval == 0 {
		c.RenewInterval = c.TTL / 3
	}
	if c.Wait == 0 {
		c.Wait = 10 * time.Second
	}
	if c.RetryInterval == 0 {
		c.RetryInterval = 50 * time.Millisecond
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "travels:lock:"
	}
	if c.NewToken == nil {
		c.NewToken = shortuuid.New
	}
}

// RedisLocker is a lease lock shared by every instance of the service.
type RedisLocker struct {
	client redis.Cmdable
	config RedisLockerConfig
}

func NewRedisLocker(client redis.Cmdable, config RedisLockerConfig) RedisLocker {
	if client == nil {
		panic("redis client is nil")
	}
	config.setDefaults()

	return RedisLocker{client: client, config: config}
}

// WithLock cancels the context passed to fn with entity.ErrLockLost as its cause
// when the lease is taken over before fn returns.
func (l RedisLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	lockKey := l.config.KeyPrefix + key
	token := l.config.NewToken()

	if err := l.acquire(ctx, lockKey, token); err != nil {
		return err
	}
	defer l.release(ctx, lockKey, token)

	fnCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		l.keepAlive(fnCtx, lockKey, token, done, cancel)
	}()

	err := fn(fnCtx)
	close(done)
	<-stopped

	if cause := context.Cause(fnCtx); err != nil && errors.Is(cause, entity.ErrLockLost) {
		return fmt.Errorf("%w: %w", cause, err)
	}
	return err
}

func (l RedisLocker) keepAlive(ctx context.Context, lockKey, token string, done <-chan struct{}, lost context.CancelCauseFunc) {
	ticker := time.NewTicker(l.config.RenewInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		renewed, err := l.client.Eval(ctx, renewScript, []string{lockKey}, token, l.config.TTL.Milliseconds()).Int64()
		if err != nil {
			// the lease still has time left, try again on the next tick
			log.FromContext(ctx).WithError(err).WithField("lock", lockKey).Warn("Could not renew lock")
			continue
		}
		if renewed == 0 {
			log.FromContext(ctx).WithField("lock", lockKey).Error("Lock lost while held")
			lost(fmt.Errorf("lock %s: %w", lockKey, entity.ErrLockLost))
			return
		}
	}
}

func (l RedisLocker) acquire(ctx context.Context, lockKey, token string) error {
	acquireCtx, cancel := context.WithTimeout(ctx, l.config.Wait)
	defer cancel()

	err := backoff.Retry(func() error {
		ok, err := l.client.SetNX(acquireCtx, lockKey, token, l.config.TTL).Result()
		if err != nil {
			return err
		}
		if !ok {
			return errLockHeld
		}
		return nil
	}, backoff.WithContext(backoff.NewConstantBackOff(l.config.RetryInterval), acquireCtx))
	if err != nil {
		return fmt.Errorf("lock %s: %w: %w", lockKey, entity.ErrLockNotAcquired, err)
	}

	return nil
}

func (l RedisLocker) release(ctx context.Context, lockKey, token string) {
	released, err := l.client.Eval(context.WithoutCancel(ctx), releaseScript, []string{lockKey}, token).Int64()
	if err != nil {
		log.FromContext(ctx).WithError(err).WithField("lock", lockKey).Error("Could not release lock")
		return
	}
	if released == 0 {
		log.FromContext(ctx).WithField("lock", lockKey).Warn("Lock expired before it was released")
	}
}
