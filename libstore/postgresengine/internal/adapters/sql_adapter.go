package adapters

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
)

// SQLAdapter implements DBAdapter for database/sql.
type SQLAdapter struct {
	db *sql.DB
}

// NewSQLAdapter wraps a sql.DB.
func NewSQLAdapter(db *sql.DB) *SQLAdapter {
	return &SQLAdapter{db: db}
}

// Query executes a row query.
func (a *SQLAdapter) Query(ctx context.Context, query string) (DBRows, error) {
	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}

	return &sqlRows{rows: rows}, nil
}

// Exec executes a statement.
func (a *SQLAdapter) Exec(ctx context.Context, query string) (DBResult, error) {
	result, err := a.db.ExecContext(ctx, query)
	if err != nil {
		return nil, err
	}

	return &sqlResult{result: result}, nil
}

// SQLXAdapter implements DBAdapter for sqlx.DB. sqlx rows embed *sql.Rows,
// so both adapters share the row and result wrappers.
type SQLXAdapter struct {
	db *sqlx.DB
}

// NewSQLXAdapter wraps a sqlx.DB.
func NewSQLXAdapter(db *sqlx.DB) *SQLXAdapter {
	return &SQLXAdapter{db: db}
}

// Query executes a row query.
func (a *SQLXAdapter) Query(ctx context.Context, query string) (DBRows, error) {
	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}

	return &sqlRows{rows: rows}, nil
}

// Exec executes a statement.
func (a *SQLXAdapter) Exec(ctx context.Context, query string) (DBResult, error) {
	result, err := a.db.ExecContext(ctx, query)
	if err != nil {
		return nil, err
	}

	return &sqlResult{result: result}, nil
}

type sqlRows struct {
	rows *sql.Rows
}

func (s *sqlRows) Next() bool {
	return s.rows.Next()
}

func (s *sqlRows) Scan(dest ...any) error {
	return s.rows.Scan(dest...)
}

func (s *sqlRows) Close() error {
	return s.rows.Close()
}

type sqlResult struct {
	result sql.Result
}

func (s *sqlResult) RowsAffected() (int64, error) {
	return s.result.RowsAffected()
}
