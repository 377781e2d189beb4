// Package retry wraps single-statement persistence calls with bounded
// attempts, a per-attempt timeout, and exponential backoff. Multi-step atomic
// units must not go through it: replaying a partially applied unit without
// idempotency keys is unsafe, so those rely on the store's transaction
// primitive instead.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/renolink/renolink-backend/internal/domain"
)

type Config struct {
	MaxAttempts    int
	AttemptTimeout time.Duration
	BaseDelay      time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		AttemptTimeout: 5 * time.Second,
		BaseDelay:      100 * time.Millisecond,
	}
}

func (c Config) normalized() Config {
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 1
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = 5 * time.Second
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 100 * time.Millisecond
	}
	return c
}

// Do runs op under cfg, re-raising the last error after the attempt budget is
// spent. Domain errors are permanent: a transaction that does not exist will
// not start existing on attempt three.
func Do[T any](ctx context.Context, cfg Config, op func(ctx context.Context) (T, error)) (T, error) {
	cfg = cfg.normalized()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.BaseDelay
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxInterval = cfg.BaseDelay << uint(cfg.MaxAttempts)
	b.MaxElapsedTime = 0
	b.Reset()

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(cfg.MaxAttempts-1)), ctx)

	return backoff.RetryWithData(func() (T, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, cfg.AttemptTimeout)
		defer cancel()

		v, err := op(attemptCtx)
		if err != nil && isPermanent(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, policy)
}

// Run is Do for operations with no result.
func Run(ctx context.Context, cfg Config, op func(ctx context.Context) error) error {
	_, err := Do(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

func isPermanent(err error) bool {
	return errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrInvalidTransactionType) ||
		errors.Is(err, domain.ErrAlreadyTerminal) ||
		errors.Is(err, domain.ErrUnauthorized) ||
		errors.Is(err, domain.ErrInvalidAmount) ||
		errors.Is(err, domain.ErrInvalidRequest)
}
