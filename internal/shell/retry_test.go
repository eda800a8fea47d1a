package shell_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libris-io/libris/internal/shell"
	"github.com/libris-io/libris/libstore"
)

func Test_RetryWithExponentialBackoff_SucceedsFirstTry(t *testing.T) {
	// arrange
	calls := 0

	// act
	err := shell.RetryWithExponentialBackoff(context.Background(), func(context.Context) error {
		calls++
		return nil
	})

	// assert
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func Test_RetryWithExponentialBackoff_RetriesTransientStoreErrors(t *testing.T) {
	// arrange
	calls := 0

	// act
	err := shell.RetryWithExponentialBackoff(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return libstore.ErrQueryFailed
		}
		return nil
	}, shell.WithBaseDelay(time.Millisecond))

	// assert
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func Test_RetryWithExponentialBackoff_FailsFastOnPermanentErrors(t *testing.T) {
	// arrange
	permanent := errors.New("no such book")
	calls := 0

	// act
	err := shell.RetryWithExponentialBackoff(context.Background(), func(context.Context) error {
		calls++
		return permanent
	}, shell.WithBaseDelay(time.Millisecond))

	// assert
	require.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls, "permanent errors must not be retried")
}

func Test_RetryWithExponentialBackoff_GivesUpAfterMaxAttempts(t *testing.T) {
	// arrange
	calls := 0

	// act
	err := shell.RetryWithExponentialBackoff(context.Background(), func(context.Context) error {
		calls++
		return libstore.ErrExecFailed
	}, shell.WithMaxAttempts(3), shell.WithBaseDelay(time.Millisecond), shell.WithJitterFactor(0))

	// assert
	require.ErrorIs(t, err, libstore.ErrExecFailed)
	assert.Equal(t, 3, calls)
}

func Test_RetryWithExponentialBackoff_FailsFastOnContextCancellation(t *testing.T) {
	// arrange
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0

	// act
	err := shell.RetryWithExponentialBackoff(ctx, func(ctx context.Context) error {
		calls++
		return ctx.Err()
	}, shell.WithBaseDelay(time.Millisecond))

	// assert
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func Test_RetryWithExponentialBackoff_CustomPredicate(t *testing.T) {
	// arrange
	flaky := errors.New("connection reset")
	calls := 0

	// act
	err := shell.RetryWithExponentialBackoff(context.Background(), func(context.Context) error {
		calls++
		if calls < 2 {
			return flaky
		}
		return nil
	},
		shell.WithBaseDelay(time.Millisecond),
		shell.WithRetryOn(func(err error) bool { return errors.Is(err, flaky) }),
	)

	// assert
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func Test_RetryWithExponentialBackoff_RejectsInvalidOptions(t *testing.T) {
	noop := func(context.Context) error { return nil }

	assert.ErrorIs(t,
		shell.RetryWithExponentialBackoff(context.Background(), noop, shell.WithMaxAttempts(0)),
		shell.ErrInvalidMaxAttempts)
	assert.ErrorIs(t,
		shell.RetryWithExponentialBackoff(context.Background(), noop, shell.WithBaseDelay(-time.Second)),
		shell.ErrNegativeBaseDelay)
	assert.ErrorIs(t,
		shell.RetryWithExponentialBackoff(context.Background(), noop, shell.WithJitterFactor(1.5)),
		shell.ErrInvalidJitterFactor)
	assert.ErrorIs(t,
		shell.RetryWithExponentialBackoff(context.Background(), noop, shell.WithMetrics(nil, "x")),
		shell.ErrNilMetricsCollector)
}
