package reservebook_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libris-io/libris/internal/core"
	"github.com/libris-io/libris/internal/features/command/reservebook"
	"github.com/libris-io/libris/internal/memstore"
	"github.com/libris-io/libris/libstore"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func seed(t *testing.T, store *memstore.Store) (libstore.User, libstore.Book) {
	t.Helper()
	ctx := context.Background()

	user := libstore.User{ID: uuid.New(), UserName: "ada", Email: "ada@example.com", Role: libstore.RoleUser}
	require.NoError(t, store.InsertUser(ctx, user))

	book := libstore.Book{ID: uuid.New(), Title: "PLFA", TotalCopies: 1, CopiesAvailable: 1}
	require.NoError(t, store.InsertBook(ctx, book))

	return user, book
}

func Test_Handle_CreatesPendingReservationWithExpiry(t *testing.T) {
	// arrange
	store := memstore.NewStore()
	user, book := seed(t, store)
	handler := reservebook.NewCommandHandler(store, reservebook.WithClock(fixedClock))

	// act
	reservation, err := handler.Handle(context.Background(),
		reservebook.BuildCommand(user.ID, book.ID, fixedNow))

	// assert
	require.NoError(t, err)
	require.NotNil(t, reservation)
	assert.Equal(t, libstore.ReservationPending, reservation.Status)
	assert.Equal(t, fixedNow, reservation.ReservationDate)
	assert.Equal(t, fixedNow.AddDate(0, 0, 3), reservation.ExpirationDate)

	flagged, _ := store.FindBookByID(context.Background(), book.ID)
	assert.True(t, flagged.IsReserved)
}

func Test_Handle_RejectsUnknownUser(t *testing.T) {
	store := memstore.NewStore()
	_, book := seed(t, store)
	handler := reservebook.NewCommandHandler(store)

	_, err := handler.Handle(context.Background(),
		reservebook.BuildCommand(uuid.New(), book.ID, fixedNow))

	assert.ErrorIs(t, err, core.ErrUserNotFound)
}

func Test_Handle_RejectsUnknownBook(t *testing.T) {
	store := memstore.NewStore()
	user, _ := seed(t, store)
	handler := reservebook.NewCommandHandler(store)

	_, err := handler.Handle(context.Background(),
		reservebook.BuildCommand(user.ID, uuid.New(), fixedNow))

	assert.ErrorIs(t, err, core.ErrBookNotFound)
}

func Test_Handle_RejectsWhenNoCopiesAvailable(t *testing.T) {
	// arrange
	store := memstore.NewStore()
	user := libstore.User{ID: uuid.New(), UserName: "ada", Email: "ada@example.com", Role: libstore.RoleUser}
	require.NoError(t, store.InsertUser(context.Background(), user))

	book := libstore.Book{ID: uuid.New(), Title: "PLFA", TotalCopies: 1, CopiesAvailable: 0}
	require.NoError(t, store.InsertBook(context.Background(), book))

	handler := reservebook.NewCommandHandler(store)

	// act
	_, err := handler.Handle(context.Background(),
		reservebook.BuildCommand(user.ID, book.ID, fixedNow))

	// assert
	assert.ErrorIs(t, err, core.ErrBookUnavailable)
}

func Test_Handle_RejectsInvalidRequestedStatus(t *testing.T) {
	// arrange
	store := memstore.NewStore()
	user, book := seed(t, store)
	handler := reservebook.NewCommandHandler(store)

	command := reservebook.BuildCommand(user.ID, book.ID, fixedNow)
	command.RequestedStatus = "lost"

	// act
	_, err := handler.Handle(context.Background(), command)

	// assert
	assert.ErrorIs(t, err, core.ErrInvalidReservationStatus)
}

func Test_Handle_HonorsRequestedStatus(t *testing.T) {
	// arrange
	store := memstore.NewStore()
	user, book := seed(t, store)
	handler := reservebook.NewCommandHandler(store, reservebook.WithClock(fixedClock))

	command := reservebook.BuildCommand(user.ID, book.ID, fixedNow)
	command.RequestedStatus = libstore.ReservationFulfilled

	// act
	reservation, err := handler.Handle(context.Background(), command)

	// assert
	require.NoError(t, err)
	assert.Equal(t, libstore.ReservationFulfilled, reservation.Status)
}

func Test_Handle_RejectsSecondPendingReservation(t *testing.T) {
	// arrange
	store := memstore.NewStore()
	user, book := seed(t, store)
	handler := reservebook.NewCommandHandler(store, reservebook.WithClock(fixedClock))

	_, err := handler.Handle(context.Background(), reservebook.BuildCommand(user.ID, book.ID, fixedNow))
	require.NoError(t, err)

	// act
	_, err = handler.Handle(context.Background(), reservebook.BuildCommand(user.ID, book.ID, fixedNow))

	// assert
	assert.ErrorIs(t, err, core.ErrDuplicateReservation)
}

func Test_Handle_AllowsNewReservationAfterCancellation(t *testing.T) {
	// arrange
	store := memstore.NewStore()
	user, book := seed(t, store)
	handler := reservebook.NewCommandHandler(store, reservebook.WithClock(fixedClock))

	first, err := handler.Handle(context.Background(), reservebook.BuildCommand(user.ID, book.ID, fixedNow))
	require.NoError(t, err)

	_, err = store.CancelReservation(context.Background(), first.ID)
	require.NoError(t, err)

	// act
	second, err := handler.Handle(context.Background(), reservebook.BuildCommand(user.ID, book.ID, fixedNow))

	// assert
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, libstore.ReservationPending, second.Status)
}
