package reservebook

import (
	"github.com/libris-io/libris/internal/core"
	"github.com/libris-io/libris/libstore"
)

// state is the snapshot the decision is made against.
type state struct {
	user               *libstore.User
	book               *libstore.Book
	pendingReservation *libstore.Reservation
}

// Decide applies the reservation rules to the snapshot. Pure function.
//
// Business rules, in order:
//
//	ERROR: user not found
//	ERROR: book not found
//	ERROR: no copies available
//	ERROR: user already has a pending reservation for this book
//	ERROR: requested status is not a known reservation status
func Decide(s state, command Command) error {
	if s.user == nil {
		return core.ErrUserNotFound
	}

	if s.book == nil {
		return core.ErrBookNotFound
	}

	if s.book.CopiesAvailable <= 0 {
		return core.ErrBookUnavailable
	}

	if s.pendingReservation != nil {
		return core.ErrDuplicateReservation
	}

	if command.RequestedStatus != "" && !command.RequestedStatus.IsValid() {
		return core.ErrInvalidReservationStatus
	}

	return nil
}
