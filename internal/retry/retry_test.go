package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renolink/renolink-backend/internal/domain"
)

var errFlaky = errors.New("connection reset by peer")

func testConfig() Config {
	return Config{
		MaxAttempts:    3,
		AttemptTimeout: time.Second,
		BaseDelay:      10 * time.Millisecond,
	}
}

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	attempts := 0
	got, err := Do(context.Background(), testConfig(), func(ctx context.Context) (int, error) {
		attempts++
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 1, attempts)
}

func TestDo_RecoversWithinBudget(t *testing.T) {
	attempts := 0
	got, err := Do(context.Background(), testConfig(), func(ctx context.Context) (string, error) {
		attempts++
		if attempts < 3 {
			return "", errFlaky
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, attempts)
}

func TestDo_ExhaustsAttemptBudget(t *testing.T) {
	attempts := 0
	start := time.Now()
	_, err := Do(context.Background(), testConfig(), func(ctx context.Context) (int, error) {
		attempts++
		return 0, errFlaky
	})
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.ErrorIs(t, err, errFlaky, "the last attempt's error surfaces")
	assert.Equal(t, 3, attempts)
	// Delays double from the base: 10ms then 20ms between the three attempts.
	assert.GreaterOrEqual(t, elapsed, 30*time.Millisecond)
}

func TestDo_DomainErrorsAreNotRetried(t *testing.T) {
	for _, sentinel := range []error{
		domain.ErrNotFound,
		domain.ErrInvalidTransactionType,
		domain.ErrAlreadyTerminal,
		domain.ErrUnauthorized,
		domain.ErrInvalidAmount,
	} {
		t.Run(sentinel.Error(), func(t *testing.T) {
			attempts := 0
			_, err := Do(context.Background(), testConfig(), func(ctx context.Context) (int, error) {
				attempts++
				return 0, fmt.Errorf("GetByID: %w", sentinel)
			})
			require.Error(t, err)
			assert.ErrorIs(t, err, sentinel)
			assert.Equal(t, 1, attempts)
		})
	}
}

func TestDo_AttemptTimeout(t *testing.T) {
	cfg := Config{
		MaxAttempts:    2,
		AttemptTimeout: 20 * time.Millisecond,
		BaseDelay:      time.Millisecond,
	}

	attempts := 0
	_, err := Do(context.Background(), cfg, func(ctx context.Context) (int, error) {
		attempts++
		<-ctx.Done()
		return 0, ctx.Err()
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 2, attempts, "a timed-out attempt still consumes the budget")
}

func TestDo_CancelledContextStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	_, err := Do(ctx, testConfig(), func(ctx context.Context) (int, error) {
		attempts++
		cancel()
		return 0, errFlaky
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestDo_NormalizesZeroConfig(t *testing.T) {
	attempts := 0
	got, err := Do(context.Background(), Config{}, func(ctx context.Context) (int, error) {
		attempts++
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, got)
	assert.Equal(t, 1, attempts)
}

func TestRun(t *testing.T) {
	attempts := 0
	err := Run(context.Background(), testConfig(), func(ctx context.Context) error {
		attempts++
		if attempts < 2 {
			return errFlaky
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}
