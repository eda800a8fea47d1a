package postgresengine

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libris-io/libris/libstore"
	"github.com/libris-io/libris/libstore/postgresengine/internal/adapters"
)

// recordingAdapter captures every SQL string the store hands to the database
// and yields no rows, so the statement text itself can be asserted.
type recordingAdapter struct {
	queries      []string
	execs        []string
	rowsAffected int64
}

func (r *recordingAdapter) Query(_ context.Context, query string) (adapters.DBRows, error) {
	r.queries = append(r.queries, query)
	return emptyRows{}, nil
}

func (r *recordingAdapter) Exec(_ context.Context, query string) (adapters.DBResult, error) {
	r.execs = append(r.execs, query)
	return staticResult{rowsAffected: r.rowsAffected}, nil
}

type emptyRows struct{}

func (emptyRows) Next() bool        { return false }
func (emptyRows) Scan(...any) error { return nil }
func (emptyRows) Close() error      { return nil }

type staticResult struct {
	rowsAffected int64
}

func (s staticResult) RowsAffected() (int64, error) { return s.rowsAffected, nil }

func newRecordingStore(t *testing.T, adapter *recordingAdapter, options ...Option) *Store {
	t.Helper()

	store, err := newStore(adapter, options...)
	require.NoError(t, err)

	return store
}

func Test_ConditionalDecrementCopies_GuardsAndDecrementsInOneStatement(t *testing.T) {
	// arrange
	adapter := &recordingAdapter{}
	store := newRecordingStore(t, adapter)
	bookID := uuid.New()

	// act
	book, err := store.ConditionalDecrementCopies(context.Background(), bookID)

	// assert
	require.ErrorIs(t, err, libstore.ErrNoAvailableCopies)
	assert.Nil(t, book)
	require.Len(t, adapter.queries, 1)

	sql := adapter.queries[0]
	assert.Contains(t, sql, `"copies_available"=copies_available - 1`)
	assert.Contains(t, sql, `"copies_available" > 0`)
	assert.Contains(t, sql, bookID.String())
	assert.Contains(t, sql, "RETURNING")
}

func Test_IncrementCopies_ClampsAtTotalCopies(t *testing.T) {
	// arrange
	adapter := &recordingAdapter{}
	store := newRecordingStore(t, adapter)
	bookID := uuid.New()

	// act
	book, err := store.IncrementCopies(context.Background(), bookID)

	// assert
	require.NoError(t, err)
	assert.Nil(t, book, "a missing book yields nil, not an error")
	require.Len(t, adapter.queries, 1)

	sql := adapter.queries[0]
	assert.Contains(t, sql, "LEAST(copies_available + 1, total_copies)")
	assert.Contains(t, sql, "RETURNING")
}

func Test_MarkBorrowReturned_RefusesAlreadyReturnedBorrows(t *testing.T) {
	// arrange
	adapter := &recordingAdapter{}
	store := newRecordingStore(t, adapter)
	borrowID := uuid.New()
	returnedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// act
	borrow, err := store.MarkBorrowReturned(context.Background(), borrowID, returnedAt, 3)

	// assert
	require.NoError(t, err)
	assert.Nil(t, borrow, "already returned or missing yields nil")
	require.Len(t, adapter.queries, 1)

	sql := adapter.queries[0]
	assert.Contains(t, sql, `"is_returned" IS FALSE`)
	assert.Contains(t, sql, borrowID.String())
	assert.Contains(t, sql, "RETURNING")
}

func Test_CancelReservation_OnlyTouchesPendingReservations(t *testing.T) {
	// arrange
	adapter := &recordingAdapter{}
	store := newRecordingStore(t, adapter)
	reservationID := uuid.New()

	// act
	reservation, err := store.CancelReservation(context.Background(), reservationID)

	// assert
	require.NoError(t, err)
	assert.Nil(t, reservation)
	require.Len(t, adapter.queries, 1)

	sql := adapter.queries[0]
	assert.Contains(t, sql, `"status"='canceled'`)
	assert.Contains(t, sql, `"status" = 'pending'`)
}

func Test_ExpirePendingReservations_ReturnsAffectedCount(t *testing.T) {
	// arrange
	adapter := &recordingAdapter{rowsAffected: 4}
	store := newRecordingStore(t, adapter)
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	// act
	expired, err := store.ExpirePendingReservations(context.Background(), now)

	// assert
	require.NoError(t, err)
	assert.Equal(t, int64(4), expired)
	require.Len(t, adapter.execs, 1)

	sql := adapter.execs[0]
	assert.Contains(t, sql, `"status" = 'pending'`)
	assert.Contains(t, sql, `"expiration_date"`)
}

func Test_Migrate_BooksTableEnforcesCopyBounds(t *testing.T) {
	// arrange
	adapter := &recordingAdapter{}
	store := newRecordingStore(t, adapter)

	// act
	err := store.Migrate(context.Background())

	// assert
	require.NoError(t, err)

	var booksDDL string
	for _, ddl := range adapter.execs {
		if strings.Contains(ddl, "total_copies INTEGER") {
			booksDDL = ddl
			break
		}
	}
	require.NotEmpty(t, booksDDL)

	assert.Contains(t, booksDDL, "CHECK (total_copies >= 1)",
		"a catalog entry always holds at least one copy")
	assert.Contains(t, booksDDL, "copies_available >= 0 AND copies_available <= total_copies")
}

func Test_WithTablePrefix_AppliesToEveryStatement(t *testing.T) {
	// arrange
	adapter := &recordingAdapter{}
	store := newRecordingStore(t, adapter, WithTablePrefix("libris_"))

	// act
	_, err := store.FindBookByID(context.Background(), uuid.New())

	// assert
	require.NoError(t, err)
	require.Len(t, adapter.queries, 1)
	assert.Contains(t, adapter.queries[0], `"libris_books"`)
}

func Test_WithTablePrefix_RejectsEmptyPrefix(t *testing.T) {
	// act
	_, err := newStore(&recordingAdapter{}, WithTablePrefix(""))

	// assert
	require.ErrorIs(t, err, libstore.ErrEmptyTablePrefix)
}

func Test_NewStoreFromPGXPool_RejectsNilPool(t *testing.T) {
	// act
	store, err := NewStoreFromPGXPool(nil)

	// assert
	require.ErrorIs(t, err, libstore.ErrNilDatabaseConnection)
	assert.Nil(t, store)
}
