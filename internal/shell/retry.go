// Package shell holds the imperative glue shared by the feature handlers:
// retry with exponential backoff and the clock abstraction. Business rules
// live in the feature packages and internal/core, not here.
package shell

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/libris-io/libris/libstore"
)

const (
	defaultMaxAttempts  = 6
	defaultBaseDelay    = 10 * time.Millisecond
	defaultJitterFactor = 0.3

	retriesMetric           = "handler_retries"
	retryDelayMetric        = "handler_retry_delay"
	maxRetriesReachedMetric = "handler_max_retries_reached"

	labelOperation  = "operation"
	labelAttempt    = "attempt_number"
	labelErrorType  = "error_type"
	labelFinalError = "final_error_type"
)

var (
	// ErrNilMetricsCollector is returned when a nil metrics collector is provided to WithMetrics.
	ErrNilMetricsCollector = errors.New("metrics collector must not be nil")

	// ErrEmptyOperation is returned when an empty operation name is provided to WithMetrics.
	ErrEmptyOperation = errors.New("operation must not be empty")

	// ErrInvalidMaxAttempts is returned when max attempts are not positive.
	ErrInvalidMaxAttempts = errors.New("max attempts must be positive")

	// ErrNegativeBaseDelay is returned when the base delay is negative.
	ErrNegativeBaseDelay = errors.New("base delay must not be negative")

	// ErrInvalidJitterFactor is returned when the jitter factor is not between 0.0 and 1.0.
	ErrInvalidJitterFactor = errors.New("jitter factor must be between 0.0 and 1.0")
)

// RetryableFunc represents a function that can be retried.
type RetryableFunc func(ctx context.Context) error

type retryConfig struct {
	maxAttempts      int
	baseDelay        time.Duration
	jitterFactor     float64
	retryOn          func(error) bool
	metricsCollector libstore.MetricsCollector
	operation        string
}

// RetryWithExponentialBackoff executes fn, retrying transient failures with
// exponential backoff and jitter.
//
// Retry schedule (default): 0 ms, 10 ms, 20 ms, 40 ms, 80 ms, 160 ms with
// 30% jitter, roughly 300 ms worst case.
//
// By default only transient store errors are retried; domain rejections and
// context cancellation fail fast. Timeouts are deliberately not retried:
// retrying during overload turns slowness into cascade failures.
func RetryWithExponentialBackoff(
	ctx context.Context,
	fn RetryableFunc,
	options ...RetryOption,
) error {
	config := &retryConfig{
		maxAttempts:  defaultMaxAttempts,
		baseDelay:    defaultBaseDelay,
		jitterFactor: defaultJitterFactor,
		retryOn:      isTransientStoreError,
	}

	for _, option := range options {
		if err := option(config); err != nil {
			return err
		}
	}

	var lastErr error

	for attempt := 0; attempt < config.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := config.baseDelay * time.Duration(1<<(attempt-1))

			jitter := rand.Float64() * float64(delay) * config.jitterFactor //nolint:gosec //math/rand is sufficient for jitter
			backoffDelay := delay + time.Duration(jitter)

			recordRetryDelayMetric(ctx, config, attempt, backoffDelay)

			select {
			case <-time.After(backoffDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			return lastErr
		}

		if !config.retryOn(lastErr) {
			return lastErr
		}

		recordRetryAttemptMetric(ctx, attempt, config, lastErr)
	}

	recordMaxRetriesReachedMetric(ctx, config, lastErr)

	return lastErr
}

// isTransientStoreError is the default retry predicate: only failed database
// round trips are worth another attempt.
func isTransientStoreError(err error) bool {
	return errors.Is(err, libstore.ErrQueryFailed) || errors.Is(err, libstore.ErrExecFailed)
}

func errorType(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, libstore.ErrQueryFailed):
		return "query_failed"
	case errors.Is(err, libstore.ErrExecFailed):
		return "exec_failed"
	case errors.Is(err, context.Canceled):
		return "context_canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "context_deadline_exceeded"
	default:
		return "other"
	}
}

func recordRetryDelayMetric(ctx context.Context, config *retryConfig, attempt int, backoffDelay time.Duration) {
	if config.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		labelOperation: config.operation,
		labelAttempt:   fmt.Sprintf("%d", attempt),
	}

	if contextual, ok := config.metricsCollector.(libstore.ContextualMetricsCollector); ok {
		contextual.RecordDurationContext(ctx, retryDelayMetric, backoffDelay, labels)
		return
	}

	config.metricsCollector.RecordDuration(retryDelayMetric, backoffDelay, labels)
}

func recordRetryAttemptMetric(ctx context.Context, attempt int, config *retryConfig, lastErr error) {
	if attempt >= config.maxAttempts-1 || config.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		labelOperation: config.operation,
		labelAttempt:   fmt.Sprintf("%d", attempt+1),
		labelErrorType: errorType(lastErr),
	}

	if contextual, ok := config.metricsCollector.(libstore.ContextualMetricsCollector); ok {
		contextual.IncrementCounterContext(ctx, retriesMetric, labels)
		return
	}

	config.metricsCollector.IncrementCounter(retriesMetric, labels)
}

func recordMaxRetriesReachedMetric(ctx context.Context, config *retryConfig, lastErr error) {
	if config.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		labelOperation:  config.operation,
		labelFinalError: errorType(lastErr),
	}

	if contextual, ok := config.metricsCollector.(libstore.ContextualMetricsCollector); ok {
		contextual.IncrementCounterContext(ctx, maxRetriesReachedMetric, labels)
		return
	}

	config.metricsCollector.IncrementCounter(maxRetriesReachedMetric, labels)
}

// RetryOption configures retry behavior using the functional options pattern.
type RetryOption func(*retryConfig) error

// WithMaxAttempts sets the maximum number of attempts, first try included.
func WithMaxAttempts(attempts int) RetryOption {
	return func(config *retryConfig) error {
		if attempts <= 0 {
			return ErrInvalidMaxAttempts
		}

		config.maxAttempts = attempts

		return nil
	}
}

// WithBaseDelay sets the base delay for exponential backoff.
// Actual delays: baseDelay, baseDelay*2, baseDelay*4, and so on.
func WithBaseDelay(delay time.Duration) RetryOption {
	return func(config *retryConfig) error {
		if delay < 0 {
			return ErrNegativeBaseDelay
		}

		config.baseDelay = delay

		return nil
	}
}

// WithJitterFactor sets the jitter factor to prevent thundering herd problems.
// Valid range: 0.0 (no jitter) to 1.0 (100% jitter).
func WithJitterFactor(factor float64) RetryOption {
	return func(config *retryConfig) error {
		if factor < 0.0 || factor > 1.0 {
			return ErrInvalidJitterFactor
		}

		config.jitterFactor = factor

		return nil
	}
}

// WithRetryOn replaces the default retry predicate. Context cancellation
// still fails fast regardless of the predicate.
func WithRetryOn(predicate func(error) bool) RetryOption {
	return func(config *retryConfig) error {
		if predicate != nil {
			config.retryOn = predicate
		}

		return nil
	}
}

// WithMetrics sets the metrics collector for retry instrumentation.
// Requires an operation name to label the metrics.
func WithMetrics(collector libstore.MetricsCollector, operation string) RetryOption {
	return func(config *retryConfig) error {
		if collector == nil {
			return ErrNilMetricsCollector
		}

		if operation == "" {
			return ErrEmptyOperation
		}

		config.metricsCollector = collector
		config.operation = operation

		return nil
	}
}
