// Package adapters decouples the Postgres engine from concrete database
// clients. The engine only needs Query and Exec over finished SQL strings,
// so pgxpool.Pool, sql.DB and sqlx.DB are wrapped behind one small interface.
package adapters

import "context"

// DBAdapter is the database access contract of the store engine.
type DBAdapter interface {
	Query(ctx context.Context, query string) (DBRows, error)
	Exec(ctx context.Context, query string) (DBResult, error)
}

// DBRows iterates over the result rows of a query.
type DBRows interface {
	Next() bool
	Scan(dest ...any) error
	Close() error
}

// DBResult reports the outcome of a statement execution.
type DBResult interface {
	RowsAffected() (int64, error)
}
