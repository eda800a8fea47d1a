package borrowbook

import (
	"github.com/libris-io/libris/internal/core"
	"github.com/libris-io/libris/libstore"
)

// state is the snapshot the decision is made against. The handler loads it
// with plain reads; the copies check here is only an early rejection, the
// authoritative check is the guarded decrement in the store.
type state struct {
	user              *libstore.User
	book              *libstore.Book
	activeBorrow      *libstore.Borrow
	activeBorrowCount int
}

// Decide applies the borrow rules to the snapshot. It is a pure function;
// nothing is persisted here.
//
// Business rules, in order:
//
//	ERROR: user not found
//	ERROR: user has reached the active borrowing limit
//	ERROR: book not found
//	ERROR: no copies available (optimistic check, re-verified atomically)
//	ERROR: user already has an active borrowing of this book
//
// The limit check precedes everything about the book: a user at the limit
// is rejected with the limit error even for an unavailable or unknown book.
func Decide(s state, policy core.LendingPolicy) error {
	if s.user == nil {
		return core.ErrUserNotFound
	}

	if s.activeBorrowCount >= policy.BorrowLimit {
		return core.ErrBorrowLimitReached
	}

	if s.book == nil {
		return core.ErrBookNotFound
	}

	if s.book.CopiesAvailable <= 0 {
		return core.ErrBookUnavailable
	}

	if s.activeBorrow != nil {
		return core.ErrDuplicateBorrow
	}

	return nil
}
