package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var errFlaky = errors.New("flaky")

func TestDoSucceedsOnAttemptK(t *testing.T) {
	for k := 1; k <= 5; k++ {
		calls := 0
		got, err := Do(context.Background(), Policy{MaxAttempts: 5, Interval: time.Millisecond}, zaptest.NewLogger(t),
			func(attempt int) (int, error) {
				calls++
				assert.Equal(t, calls, attempt)
				if attempt < k {
					return 0, errFlaky
				}
				return attempt * 10, nil
			})
		require.NoError(t, err)
		assert.Equal(t, k*10, got)
		assert.Equal(t, k, calls)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Policy{MaxAttempts: 4, Interval: time.Millisecond}, nil,
		func(int) (struct{}, error) {
			calls++
			return struct{}{}, errFlaky
		})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAttemptsExhausted)
	assert.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 4, calls)
}

func TestDoPermanentStopsImmediately(t *testing.T) {
	fatal := errors.New("fatal")
	calls := 0
	_, err := Do(context.Background(), Policy{MaxAttempts: 10, Interval: time.Millisecond}, nil,
		func(int) (int, error) {
			calls++
			return 0, Permanent(fatal)
		})
	assert.ErrorIs(t, err, fatal)
	assert.NotErrorIs(t, err, ErrAttemptsExhausted)
	assert.Equal(t, 1, calls)
}

func TestDoRetryablePredicate(t *testing.T) {
	other := errors.New("not retryable")
	calls := 0
	_, err := Do(context.Background(), Policy{
		MaxAttempts: 10,
		Interval:    time.Millisecond,
		Retryable:   func(err error) bool { return errors.Is(err, errFlaky) },
	}, nil, func(attempt int) (int, error) {
		calls++
		if attempt < 3 {
			return 0, errFlaky
		}
		return 0, other
	})
	assert.ErrorIs(t, err, other)
	assert.Equal(t, 3, calls)
}

func TestDoContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := Do(ctx, Policy{MaxAttempts: 100, Interval: 5 * time.Millisecond}, nil,
		func(int) (int, error) {
			calls++
			if calls == 2 {
				cancel()
			}
			return 0, errFlaky
		})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, calls, 100)
}

func TestDoZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Policy{}, nil, func(int) (int, error) {
		calls++
		return 0, errFlaky
	})
	assert.ErrorIs(t, err, ErrAttemptsExhausted)
	assert.Equal(t, 1, calls)
}
