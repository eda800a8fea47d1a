package export_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libris-io/libris/internal/export"
	"github.com/libris-io/libris/internal/memstore"
	"github.com/libris-io/libris/libstore"
)

func Test_WriteLedger_RoundTripsAllBorrowings(t *testing.T) {
	// arrange
	store := memstore.NewStore()

	user := libstore.User{ID: uuid.New(), UserName: "reader", Email: "reader@example.com"}
	require.NoError(t, store.InsertUser(context.Background(), user))

	book := libstore.Book{ID: uuid.New(), Title: "Dune", Author: "Frank Herbert", TotalCopies: 1}
	require.NoError(t, store.InsertBook(context.Background(), book))

	returnDate := time.Date(2025, 5, 20, 12, 0, 0, 0, time.UTC)
	returned := libstore.Borrow{
		ID:         uuid.New(),
		UserID:     user.ID,
		BookID:     book.ID,
		BorrowDate: returnDate.AddDate(0, 0, -20),
		DueDate:    returnDate.AddDate(0, 0, -6),
		ReturnDate: &returnDate,
		IsReturned: true,
		LateFee:    6.0,
	}
	active := libstore.Borrow{
		ID:         uuid.New(),
		UserID:     user.ID,
		BookID:     book.ID,
		BorrowDate: returnDate,
		DueDate:    returnDate.AddDate(0, 0, 14),
	}
	require.NoError(t, store.InsertBorrow(context.Background(), returned))
	require.NoError(t, store.InsertBorrow(context.Background(), active))

	exporter := export.NewExporter(store, export.WithPageSize(1))

	// act
	var buf bytes.Buffer
	written, err := exporter.WriteLedger(context.Background(), &buf)

	// assert
	require.NoError(t, err)
	assert.Equal(t, int64(2), written)

	rows, err := parquet.Read[export.LedgerRow](
		bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	byID := map[string]export.LedgerRow{}
	for _, row := range rows {
		byID[row.BorrowID] = row
	}

	returnedRow := byID[returned.ID.String()]
	assert.Equal(t, "reader", returnedRow.UserName)
	assert.Equal(t, "Dune", returnedRow.BookTitle)
	assert.True(t, returnedRow.IsReturned)
	assert.InDelta(t, 6.0, returnedRow.LateFee, 0.0001)
	require.NotNil(t, returnedRow.ReturnDate)
	assert.True(t, returnedRow.ReturnDate.Equal(returnDate))

	activeRow := byID[active.ID.String()]
	assert.False(t, activeRow.IsReturned)
	assert.Nil(t, activeRow.ReturnDate)
}

func Test_WriteLedger_ToleratesDeletedUsersAndBooks(t *testing.T) {
	// arrange
	store := memstore.NewStore()
	require.NoError(t, store.InsertBorrow(context.Background(), libstore.Borrow{
		ID:     uuid.New(),
		UserID: uuid.New(),
		BookID: uuid.New(),
	}))

	exporter := export.NewExporter(store)

	// act
	var buf bytes.Buffer
	written, err := exporter.WriteLedger(context.Background(), &buf)

	// assert
	require.NoError(t, err)
	assert.Equal(t, int64(1), written)

	rows, err := parquet.Read[export.LedgerRow](
		bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Empty(t, rows[0].UserName)
	assert.Empty(t, rows[0].BookTitle)
}

func Test_WriteLedger_EmptyLedgerProducesValidFile(t *testing.T) {
	// arrange
	exporter := export.NewExporter(memstore.NewStore())

	// act
	var buf bytes.Buffer
	written, err := exporter.WriteLedger(context.Background(), &buf)

	// assert
	require.NoError(t, err)
	assert.Zero(t, written)

	rows, err := parquet.Read[export.LedgerRow](
		bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	assert.Empty(t, rows)
}
