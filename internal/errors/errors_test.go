package errors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPredicates(t *testing.T) {
	cause := errors.New("boom")

	testCases := []struct {
		name string
		err  error
		code string
		pred func(error) bool
	}{
		{name: "validation", err: NewValidationError("empty name"), code: CodeValidation, pred: IsValidation},
		{name: "gateway", err: NewGatewayError("homebox", true, cause), code: CodeGateway, pred: IsGateway},
		{name: "configuration", err: NewConfigurationError("model", "gpt-9"), code: CodeConfiguration, pred: IsConfiguration},
		{name: "partial", err: NewPartialSubmissionError("item-1", cause), code: CodePartialSubmission, pred: IsPartialSubmission},
		{name: "wrapped gateway", err: fmt.Errorf("analyze: %w", NewGatewayError("vision", false, cause)), code: CodeGateway, pred: IsGateway},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.code, CodeOf(tc.err))
			assert.True(t, tc.pred(tc.err))
		})
	}

	assert.Empty(t, CodeOf(cause))
	assert.False(t, IsGateway(nil))
}

func TestAppError_Unwrap(t *testing.T) {
	cause := context.DeadlineExceeded
	err := NewGatewayError("vision", true, cause)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "vision gateway error")
}

func TestWithRetry(t *testing.T) {
	policy := RetryPolicy{Attempts: 2, Initial: time.Millisecond, Max: 2 * time.Millisecond}

	t.Run("retries retryable errors", func(t *testing.T) {
		var calls int32
		err := WithRetryPolicy(context.Background(), policy, func() error {
			if atomic.AddInt32(&calls, 1) < 3 {
				return NewGatewayError("homebox", true, errors.New("503"))
			}
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, int32(3), calls)
	})

	t.Run("stops on non-retryable", func(t *testing.T) {
		var calls int32
		err := WithRetryPolicy(context.Background(), policy, func() error {
			atomic.AddInt32(&calls, 1)
			return NewValidationError("bad")
		})

		assert.True(t, IsValidation(err))
		assert.Equal(t, int32(1), calls)
	})

	t.Run("gives up after attempts", func(t *testing.T) {
		var calls int32
		err := WithRetryPolicy(context.Background(), policy, func() error {
			atomic.AddInt32(&calls, 1)
			return NewGatewayError("homebox", true, errors.New("503"))
		})

		assert.True(t, IsGateway(err))
		assert.Equal(t, int32(3), calls)
	})

	t.Run("honors cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := WithRetry(ctx, func() error { return nil })
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestCircuitBreaker(t *testing.T) {
	cb := NewCircuitBreaker("homebox", IsGateway)
	now := time.Now()
	cb.now = func() time.Time { return now }

	failure := NewGatewayError("homebox", true, errors.New("down"))
	for i := 0; i < MinRequests; i++ {
		_ = cb.Call(func() error { return failure })
	}
	assert.Equal(t, StateOpen, cb.State())
	assert.ErrorIs(t, cb.Call(func() error { return nil }), ErrCircuitOpen)

	now = now.Add(TimeoutDuration)
	for i := 0; i < HalfOpenMaxRequests; i++ {
		require.NoError(t, cb.Call(func() error { return nil }))
	}
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_IgnoresUncountedErrors(t *testing.T) {
	cb := NewCircuitBreaker("vision", IsGateway)

	for i := 0; i < MinRequests*2; i++ {
		err := cb.Call(func() error { return NewValidationError("bad image") })
		assert.True(t, IsValidation(err))
	}

	assert.Equal(t, StateClosed, cb.State())
}

func TestHandler_Handle(t *testing.T) {
	h := NewHandler(testLogger(), false)

	msg, retry := h.Handle(context.Background(), NewGatewayError("homebox", true, errors.New("x")))
	assert.Equal(t, "The service is temporarily unavailable. Please try again.", msg)
	assert.True(t, retry)

	msg, retry = h.Handle(context.Background(), errors.New("plain"))
	assert.Equal(t, defaultUserMessage, msg)
	assert.False(t, retry)

	msg, _ = h.Handle(context.Background(), nil)
	assert.Empty(t, msg)
}
