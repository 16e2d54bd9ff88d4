package errors

import (
	"context"
	"errors"
	"math"
	"time"
)

const (
	MaxRetries        = 3
	InitialBackoff    = 100 * time.Millisecond
	MaxBackoff        = 5 * time.Second
	BackoffMultiplier = 2.0
)

// RetryPolicy bounds WithRetryPolicy. Zero values fall back to the package defaults.
type RetryPolicy struct {
	Attempts int
	Initial  time.Duration
	Max      time.Duration
}

// WithRetry runs fn with the default policy.
func WithRetry(ctx context.Context, fn func() error) error {
	return WithRetryPolicy(ctx, RetryPolicy{}, fn)
}

// WithRetryPolicy runs fn until it succeeds, returns a non-retryable error,
// the attempts are exhausted or ctx is done.
func WithRetryPolicy(ctx context.Context, policy RetryPolicy, fn func() error) error {
	if fn == nil {
		return nil
	}

	if ctx == nil {
		ctx = context.Background()
	}

	retries := policy.Attempts
	if retries <= 0 {
		retries = MaxRetries
	}

	var err error
	for attempt := 0; attempt <= retries; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if err != nil {
				return err
			}
			return ctxErr
		}

		err = fn()
		if err == nil {
			return nil
		}

		if !IsRetryable(err) || attempt == retries {
			return err
		}

		timer := time.NewTimer(policy.backoff(attempt + 1))
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}

	return err
}

func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var appErr *AppError
	if errors.As(err, &appErr) && appErr != nil {
		return appErr.Retryable
	}

	return false
}

func (p RetryPolicy) backoff(attempt int) time.Duration {
	initial := p.Initial
	if initial <= 0 {
		initial = InitialBackoff
	}
	ceiling := p.Max
	if ceiling <= 0 {
		ceiling = MaxBackoff
	}

	delay := float64(initial) * math.Pow(BackoffMultiplier, float64(attempt-1))
	backoff := time.Duration(delay)
	if backoff > ceiling {
		return ceiling
	}

	return backoff
}
