package reservationsbyuser_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libris-io/libris/internal/core"
	"github.com/libris-io/libris/internal/features/query/reservationsbyuser"
	"github.com/libris-io/libris/internal/memstore"
	"github.com/libris-io/libris/libstore"
)

func Test_Handle_ReturnsReservationsWithPendingCount(t *testing.T) {
	// arrange
	store := memstore.NewStore()
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	user := libstore.User{ID: uuid.New(), UserName: "ada", Email: "ada@example.com"}
	require.NoError(t, store.InsertUser(ctx, user))

	require.NoError(t, store.InsertReservation(ctx, libstore.Reservation{
		ID: uuid.New(), UserID: user.ID, BookID: uuid.New(),
		Status: libstore.ReservationPending, ExpirationDate: now.AddDate(0, 0, 3),
		CreatedAt: now,
	}))
	require.NoError(t, store.InsertReservation(ctx, libstore.Reservation{
		ID: uuid.New(), UserID: user.ID, BookID: uuid.New(),
		Status: libstore.ReservationCanceled, CreatedAt: now.AddDate(0, 0, -1),
	}))

	handler := reservationsbyuser.NewQueryHandler(store)

	// act
	result, err := handler.Handle(ctx, reservationsbyuser.BuildQuery(user.ID, libstore.Page{}))

	// assert
	require.NoError(t, err)
	require.Len(t, result.Reservations, 2)
	assert.Equal(t, 1, result.PendingCount)
}

func Test_Handle_RejectsUnknownUser(t *testing.T) {
	store := memstore.NewStore()
	handler := reservationsbyuser.NewQueryHandler(store)

	_, err := handler.Handle(context.Background(),
		reservationsbyuser.BuildQuery(uuid.New(), libstore.Page{}))

	assert.ErrorIs(t, err, core.ErrUserNotFound)
}
