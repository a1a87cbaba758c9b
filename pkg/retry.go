package pkg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     5,
		InitialInterval: 20 * time.Millisecond,
		MaxInterval:     500 * time.Millisecond,
	}
}

// Retry runs op until it succeeds, returns an error for which isPermanent is true,
// or MaxAttempts is used up. The last error is returned as is.
func Retry(ctx context.Context, policy RetryPolicy, isPermanent func(error) bool, op func(ctx context.Context) error) error {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = policy.InitialInterval
	expBackoff.MaxInterval = policy.MaxInterval
	expBackoff.MaxElapsedTime = 0

	b := backoff.WithContext(
		backoff.WithMaxRetries(expBackoff, uint64(policy.MaxAttempts-1)),
		ctx,
	)

	attempts := 0
	err := backoff.Retry(func() error {
		attempts++

		err := op(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || isPermanent(err) {
			return backoff.Permanent(err)
		}

		return err
	}, b)
	if err != nil && attempts >= policy.MaxAttempts && !isPermanent(err) {
		return fmt.Errorf("gave up after %d attempts: %w", attempts, err)
	}

	return err
}
