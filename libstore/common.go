package libstore

import (
	"errors"
	"time"
)

var (
	// ErrNilDatabaseConnection is returned by the engine constructors when no connection is supplied.
	ErrNilDatabaseConnection = errors.New("nil database connection supplied")

	// ErrEmptyTablePrefix is returned by WithTablePrefix when an empty prefix is supplied.
	ErrEmptyTablePrefix = errors.New("empty table prefix supplied")

	// ErrBuildingQueryFailed wraps SQL builder failures.
	ErrBuildingQueryFailed = errors.New("building sql query failed")

	// ErrQueryFailed wraps driver failures during row queries.
	ErrQueryFailed = errors.New("database query failed")

	// ErrExecFailed wraps driver failures during statement execution.
	ErrExecFailed = errors.New("database execution failed")

	// ErrScanningRowFailed wraps row scan failures.
	ErrScanningRowFailed = errors.New("scanning database row failed")

	// ErrGettingRowsAffectedFailed wraps failures to read the affected row count.
	ErrGettingRowsAffectedFailed = errors.New("getting rows affected count failed")

	// ErrNoAvailableCopies is returned by ConditionalDecrementCopies when the
	// guard (copies_available > 0) did not hold at apply time. It is the
	// store-level signal that a concurrent borrow won the race.
	ErrNoAvailableCopies = errors.New("no available copies, conditional decrement guard failed")
)

// Page describes limit/offset pagination for list operations.
type Page struct {
	Limit  int
	Offset int
}

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// Normalize clamps a Page to sane bounds. A zero Page yields the default limit.
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = defaultPageLimit
	}

	if p.Limit > maxPageLimit {
		p.Limit = maxPageLimit
	}

	if p.Offset < 0 {
		p.Offset = 0
	}

	return p
}

// ToStoredTime normalizes a timestamp to UTC with microsecond precision,
// matching the resolution of the timestamptz columns.
func ToStoredTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
