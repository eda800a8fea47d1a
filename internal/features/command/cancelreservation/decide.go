package cancelreservation

import (
	"github.com/google/uuid"

	"github.com/libris-io/libris/internal/core"
	"github.com/libris-io/libris/libstore"
)

// state is the snapshot the decision is made against.
type state struct {
	reservation *libstore.Reservation
}

// Decide applies the cancellation rules to the snapshot. Pure function, the
// authoritative state check is the guarded update in the store.
//
// Business rules, in order:
//
//	ERROR: reservation not found
//	ERROR: reservation belongs to a different user
//	ERROR: reservation was already fulfilled or canceled
func Decide(s state, userID uuid.UUID) error {
	if s.reservation == nil {
		return core.ErrReservationNotFound
	}

	if s.reservation.UserID != userID {
		return core.ErrReservationNotFound
	}

	if s.reservation.Status.IsTerminal() {
		return core.ErrReservationAlreadyEnded
	}

	return nil
}
