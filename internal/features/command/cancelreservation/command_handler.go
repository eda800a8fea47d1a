package cancelreservation

import (
	"context"

	"github.com/google/uuid"

	"github.com/libris-io/libris/internal/core"
	"github.com/libris-io/libris/libstore"
)

// Store defines the persistence operations the CommandHandler needs.
type Store interface {
	FindReservationByID(ctx context.Context, id uuid.UUID) (*libstore.Reservation, error)
	CancelReservation(ctx context.Context, id uuid.UUID) (*libstore.Reservation, error)
	CountPendingReservations(ctx context.Context, bookID uuid.UUID) (int64, error)
	SetBookReserved(ctx context.Context, bookID uuid.UUID, reserved bool) (*libstore.Book, error)
}

// CommandHandler orchestrates the cancel workflow:
// load reservation -> Decide -> guarded transition to canceled.
type CommandHandler struct {
	store Store
}

// NewCommandHandler creates a new CommandHandler.
func NewCommandHandler(store Store) CommandHandler {
	return CommandHandler{store: store}
}

// Handle executes the cancel workflow and returns the canceled reservation.
func (h CommandHandler) Handle(ctx context.Context, command Command) (*libstore.Reservation, error) {
	reservation, err := h.store.FindReservationByID(ctx, command.ReservationID)
	if err != nil {
		return nil, err
	}

	if decideErr := Decide(state{reservation: reservation}, command.UserID); decideErr != nil {
		return nil, decideErr
	}

	canceled, cancelErr := h.store.CancelReservation(ctx, command.ReservationID)
	if cancelErr != nil {
		return nil, cancelErr
	}

	if canceled == nil {
		// A concurrent transition won between the read and the guarded update.
		return nil, core.ErrReservationAlreadyEnded
	}

	h.clearReservedFlag(ctx, canceled)

	return canceled, nil
}

// clearReservedFlag drops the coarse catalog flag when no other user still
// holds this book. Best effort, the reservation records are the truth.
func (h CommandHandler) clearReservedFlag(ctx context.Context, canceled *libstore.Reservation) {
	remaining, err := h.store.CountPendingReservations(ctx, canceled.BookID)
	if err != nil || remaining > 0 {
		return
	}

	_, _ = h.store.SetBookReserved(ctx, canceled.BookID, false)
}
