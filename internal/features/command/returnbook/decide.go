package returnbook

import (
	"github.com/google/uuid"

	"github.com/libris-io/libris/internal/core"
	"github.com/libris-io/libris/libstore"
)

// state is the snapshot the decision is made against.
type state struct {
	borrow *libstore.Borrow
}

// Decide applies the return rules to the snapshot. Pure function, the
// authoritative double-return check is the guarded update in the store.
//
// Business rules, in order:
//
//	ERROR: borrowing not found
//	ERROR: borrowing belongs to a different user
//	ERROR: borrowing was already returned
func Decide(s state, userID uuid.UUID) error {
	if s.borrow == nil {
		return core.ErrBorrowNotFound
	}

	if s.borrow.UserID != userID {
		return core.ErrBorrowDoesNotBelongToUser
	}

	if s.borrow.IsReturned {
		return core.ErrAlreadyReturned
	}

	return nil
}
