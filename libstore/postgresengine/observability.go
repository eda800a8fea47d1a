package postgresengine

import (
	"context"
	"math"
	"time"

	"github.com/libris-io/libris/libstore"
)

const (
	metricOperationDuration = "libstore_operation_duration"
	metricOperationErrors   = "libstore_operation_errors"
	metricGuardConflicts    = "libstore_guard_conflicts"

	spanNamePrefix    = "libstore."
	spanAttrOperation = "operation"
	spanAttrErrorType = "error_type"

	statusSuccess = "success"
	statusError   = "error"

	errorTypeBuild = "build_query"
	errorTypeQuery = "query"
	errorTypeExec  = "exec"
	errorTypeScan  = "scan"
)

// logSQLWithDuration logs executed SQL with timing at debug level.
// The contextual logger wins when both loggers are configured.
func (s *Store) logSQLWithDuration(ctx context.Context, sqlQuery, operation string, duration time.Duration) {
	if s.contextualLogger != nil {
		s.contextualLogger.DebugContext(ctx, logMsgSQLExecuted+operation,
			logAttrDurationMS, toMilliseconds(duration), logAttrQuery, sqlQuery)
		return
	}

	if s.logger != nil {
		s.logger.Debug(logMsgSQLExecuted+operation,
			logAttrDurationMS, toMilliseconds(duration), logAttrQuery, sqlQuery)
	}
}

func (s *Store) logWarn(ctx context.Context, msg string, args ...any) {
	if s.contextualLogger != nil {
		s.contextualLogger.WarnContext(ctx, msg, args...)
		return
	}

	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}

func (s *Store) logError(ctx context.Context, msg string, err error, args ...any) {
	allArgs := append([]any{logAttrError, err.Error()}, args...)

	if s.contextualLogger != nil {
		s.contextualLogger.ErrorContext(ctx, msg, allArgs...)
		return
	}

	if s.logger != nil {
		s.logger.Error(msg, allArgs...)
	}
}

// recordDuration records the duration of a store operation, preferring the
// context-aware collector methods when available.
func (s *Store) recordDuration(ctx context.Context, operation string, duration time.Duration, success bool) {
	if s.metricsCollector == nil {
		return
	}

	status := statusSuccess
	if !success {
		status = statusError
	}

	labels := map[string]string{spanAttrOperation: operation, "status": status}

	if contextual, ok := s.metricsCollector.(libstore.ContextualMetricsCollector); ok {
		contextual.RecordDurationContext(ctx, metricOperationDuration, duration, labels)
		return
	}

	s.metricsCollector.RecordDuration(metricOperationDuration, duration, labels)
}

func (s *Store) recordError(ctx context.Context, operation, errorType string) {
	if s.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		spanAttrOperation: operation,
		"status":          statusError,
		spanAttrErrorType: errorType,
	}

	if contextual, ok := s.metricsCollector.(libstore.ContextualMetricsCollector); ok {
		contextual.IncrementCounterContext(ctx, metricOperationErrors, labels)
		return
	}

	s.metricsCollector.IncrementCounter(metricOperationErrors, labels)
}

// recordGuardConflict counts failed conditional updates, i.e. lost races on
// books.copies_available.
func (s *Store) recordGuardConflict(ctx context.Context, operation string) {
	if s.metricsCollector == nil {
		return
	}

	labels := map[string]string{spanAttrOperation: operation, "conflict_type": "guard"}

	if contextual, ok := s.metricsCollector.(libstore.ContextualMetricsCollector); ok {
		contextual.IncrementCounterContext(ctx, metricGuardConflicts, labels)
		return
	}

	s.metricsCollector.IncrementCounter(metricGuardConflicts, labels)
}

func (s *Store) startSpan(ctx context.Context, operation string) (context.Context, libstore.SpanContext) {
	if s.tracingCollector == nil {
		return ctx, nil
	}

	return s.tracingCollector.StartSpan(ctx, spanNamePrefix+operation,
		map[string]string{spanAttrOperation: operation})
}

func (s *Store) finishSpan(span libstore.SpanContext, status string) {
	if s.tracingCollector == nil || span == nil {
		return
	}

	s.tracingCollector.FinishSpan(span, status, nil)
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}
