// Package postgresengine implements the libstore persistence contract on
// PostgreSQL. All SQL is built with goqu; database access goes through a
// small adapter interface so pgxpool.Pool, database/sql and sqlx can be
// used interchangeably.
package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect import
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/libris-io/libris/libstore"
	"github.com/libris-io/libris/libstore/postgresengine/internal/adapters"
)

const (
	dialectPostgres = "postgres"

	tableUsers        = "users"
	tableBooks        = "books"
	tableBorrows      = "borrows"
	tableReservations = "reservations"
	tableCategories   = "categories"
	tableGenres       = "genres"
	tableReviews      = "reviews"

	colID        = "id"
	colCreatedAt = "created_at"
	colUpdatedAt = "updated_at"

	logMsgBuildQueryFailed   = "failed to build sql query"
	logMsgQueryFailed        = "database query execution failed"
	logMsgExecFailed         = "database statement execution failed"
	logMsgCloseRowsFailed    = "failed to close database rows"
	logMsgScanRowFailed      = "failed to scan database row"
	logMsgRowsAffectedFailed = "failed to get rows affected count"
	logMsgSQLExecuted        = "executed sql for: "
	logAttrError             = "error"
	logAttrQuery             = "query"
	logAttrOperation         = "operation"
	logAttrDurationMS        = "duration_ms"
)

// Store is the PostgreSQL implementation of the library persistence layer.
// It is safe for concurrent use; the only coordinated mutation is the
// conditional decrement of books.copies_available, which is pushed down to
// the database as a guarded single-statement update.
type Store struct {
	db               adapters.DBAdapter
	tablePrefix      string
	logger           libstore.Logger
	metricsCollector libstore.MetricsCollector
	tracingCollector libstore.TracingCollector
	contextualLogger libstore.ContextualLogger
}

// Option defines a functional option for configuring a Store.
type Option func(*Store) error

// WithTablePrefix prefixes every table name, e.g. "libris_".
func WithTablePrefix(prefix string) Option {
	return func(s *Store) error {
		if prefix == "" {
			return libstore.ErrEmptyTablePrefix
		}

		s.tablePrefix = prefix

		return nil
	}
}

// WithLogger sets the logger for the Store.
//
// Debug level: SQL statements with execution timing (development use)
// Warn level: non-critical issues like cleanup failures
// Error level: failures that cause operation errors.
func WithLogger(logger libstore.Logger) Option {
	return func(s *Store) error {
		s.logger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the Store. The collector
// receives operation durations, error counts and guard conflicts.
func WithMetrics(collector libstore.MetricsCollector) Option {
	return func(s *Store) error {
		s.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the Store. Every store
// operation runs inside its own span.
func WithTracing(collector libstore.TracingCollector) Option {
	return func(s *Store) error {
		s.tracingCollector = collector
		return nil
	}
}

// WithContextualLogger sets a context-aware logger with automatic
// trace correlation.
func WithContextualLogger(logger libstore.ContextualLogger) Option {
	return func(s *Store) error {
		s.contextualLogger = logger
		return nil
	}
}

// NewStoreFromPGXPool creates a Store using a pgx pool with optional configuration.
func NewStoreFromPGXPool(pool *pgxpool.Pool, options ...Option) (*Store, error) {
	if pool == nil {
		return nil, libstore.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewPGXAdapter(pool), options...)
}

// NewStoreFromSQLDB creates a Store using a database/sql handle with optional configuration.
func NewStoreFromSQLDB(db *sql.DB, options ...Option) (*Store, error) {
	if db == nil {
		return nil, libstore.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewSQLAdapter(db), options...)
}

// NewStoreFromSQLX creates a Store using a sqlx handle with optional configuration.
func NewStoreFromSQLX(db *sqlx.DB, options ...Option) (*Store, error) {
	if db == nil {
		return nil, libstore.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewSQLXAdapter(db), options...)
}

func newStore(db adapters.DBAdapter, options ...Option) (*Store, error) {
	s := &Store{db: db}

	for _, option := range options {
		if err := option(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

func (s *Store) table(name string) string {
	return s.tablePrefix + name
}

func (s *Store) builder() goqu.DialectWrapper {
	return goqu.Dialect(dialectPostgres)
}

// sqlBuilder is satisfied by the goqu select, insert, update and delete datasets.
type sqlBuilder interface {
	ToSQL() (string, []interface{}, error)
}

// runQuery builds and executes a row query with logging, metrics and tracing.
func (s *Store) runQuery(ctx context.Context, operation string, stmt sqlBuilder) (adapters.DBRows, error) {
	sqlQuery, buildErr := s.toSQL(ctx, operation, stmt)
	if buildErr != nil {
		return nil, buildErr
	}

	ctx, span := s.startSpan(ctx, operation)

	start := time.Now()
	rows, queryErr := s.db.Query(ctx, sqlQuery)
	duration := time.Since(start)

	s.logSQLWithDuration(ctx, sqlQuery, operation, duration)
	s.recordDuration(ctx, operation, duration, queryErr == nil)

	if queryErr != nil {
		s.finishSpan(span, statusError)
		s.recordError(ctx, operation, errorTypeQuery)
		s.logError(ctx, logMsgQueryFailed, queryErr, logAttrOperation, operation, logAttrQuery, sqlQuery)

		return nil, errors.Join(libstore.ErrQueryFailed, queryErr)
	}

	s.finishSpan(span, statusSuccess)

	return rows, nil
}

// runExec builds and executes a statement and returns the affected row count.
func (s *Store) runExec(ctx context.Context, operation string, stmt sqlBuilder) (int64, error) {
	sqlQuery, buildErr := s.toSQL(ctx, operation, stmt)
	if buildErr != nil {
		return 0, buildErr
	}

	ctx, span := s.startSpan(ctx, operation)

	start := time.Now()
	result, execErr := s.db.Exec(ctx, sqlQuery)
	duration := time.Since(start)

	s.logSQLWithDuration(ctx, sqlQuery, operation, duration)
	s.recordDuration(ctx, operation, duration, execErr == nil)

	if execErr != nil {
		s.finishSpan(span, statusError)
		s.recordError(ctx, operation, errorTypeExec)
		s.logError(ctx, logMsgExecFailed, execErr, logAttrOperation, operation, logAttrQuery, sqlQuery)

		return 0, errors.Join(libstore.ErrExecFailed, execErr)
	}

	rowsAffected, rowsAffectedErr := result.RowsAffected()
	if rowsAffectedErr != nil {
		s.finishSpan(span, statusError)
		s.logError(ctx, logMsgRowsAffectedFailed, rowsAffectedErr, logAttrOperation, operation)

		return 0, errors.Join(libstore.ErrGettingRowsAffectedFailed, rowsAffectedErr)
	}

	s.finishSpan(span, statusSuccess)

	return rowsAffected, nil
}

func (s *Store) toSQL(ctx context.Context, operation string, stmt sqlBuilder) (string, error) {
	sqlQuery, _, toSQLErr := stmt.ToSQL()
	if toSQLErr != nil {
		s.recordError(ctx, operation, errorTypeBuild)
		s.logError(ctx, logMsgBuildQueryFailed, toSQLErr, logAttrOperation, operation)

		return "", errors.Join(libstore.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

// closeRows safely closes database rows and logs any errors.
func (s *Store) closeRows(ctx context.Context, rows adapters.DBRows) {
	if closeErr := rows.Close(); closeErr != nil {
		s.logWarn(ctx, logMsgCloseRowsFailed, logAttrError, closeErr.Error())
	}
}

func (s *Store) scanError(ctx context.Context, operation string, scanErr error) error {
	s.recordError(ctx, operation, errorTypeScan)
	s.logError(ctx, logMsgScanRowFailed, scanErr, logAttrOperation, operation)

	return errors.Join(libstore.ErrScanningRowFailed, scanErr)
}
