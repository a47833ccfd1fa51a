// =====================================
// File: internal/retry/retry.go
// =====================================

// Package retry is the bounded polling loop shared by the funding gate and
// the pool resolver: a fixed number of attempts with a fixed interval.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

// ErrAttemptsExhausted wraps the last error once MaxAttempts is reached.
var ErrAttemptsExhausted = errors.New("retry attempts exhausted")

// Policy bounds a polling loop.
type Policy struct {
	MaxAttempts int
	Interval    time.Duration
	// Retryable reports whether an error should be retried. Nil retries everything
	// not marked with Permanent.
	Retryable func(error) bool
}

// Permanent stops the loop immediately with err.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do calls op until it succeeds, returns a permanent or non-retryable error,
// or MaxAttempts calls have been made. The attempt number (1-based) is passed to op.
func Do[T any](ctx context.Context, p Policy, logger *zap.Logger, op func(attempt int) (T, error)) (T, error) {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	attempt := 0
	wrapped := func() (T, error) {
		attempt++
		res, err := op(attempt)
		if err == nil {
			return res, nil
		}
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return res, err
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return res, backoff.Permanent(err)
		}
		return res, err
	}

	res, err := backoff.Retry(ctx, wrapped,
		backoff.WithBackOff(backoff.NewConstantBackOff(p.Interval)),
		backoff.WithMaxTries(uint(p.MaxAttempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Debug("Attempt failed, retrying",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", p.MaxAttempts),
				zap.Duration("next", next),
				zap.Error(err))
		}),
	)
	if err == nil {
		return res, nil
	}

	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return res, perm.Unwrap()
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return res, ctxErr
	}
	if attempt >= p.MaxAttempts {
		return res, fmt.Errorf("%w after %d attempts: %w", ErrAttemptsExhausted, attempt, err)
	}
	return res, err
}
