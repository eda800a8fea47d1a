package borrowbook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libris-io/libris/internal/core"
	"github.com/libris-io/libris/libstore"
)

func Test_Decide_AllowsBorrowWhenAllRulesPass(t *testing.T) {
	// arrange
	s := state{
		user:              &libstore.User{},
		book:              &libstore.Book{TotalCopies: 3, CopiesAvailable: 1},
		activeBorrow:      nil,
		activeBorrowCount: 2,
	}

	// act + assert
	require.NoError(t, Decide(s, core.DefaultLendingPolicy()))
}

func Test_Decide_RejectsUnknownUser(t *testing.T) {
	s := state{book: &libstore.Book{CopiesAvailable: 1}}

	assert.ErrorIs(t, Decide(s, core.DefaultLendingPolicy()), core.ErrUserNotFound)
}

func Test_Decide_RejectsUnknownBook(t *testing.T) {
	s := state{user: &libstore.User{}}

	assert.ErrorIs(t, Decide(s, core.DefaultLendingPolicy()), core.ErrBookNotFound)
}

func Test_Decide_RejectsDuplicateActiveBorrow(t *testing.T) {
	s := state{
		user:         &libstore.User{},
		book:         &libstore.Book{CopiesAvailable: 1},
		activeBorrow: &libstore.Borrow{},
	}

	assert.ErrorIs(t, Decide(s, core.DefaultLendingPolicy()), core.ErrDuplicateBorrow)
}

func Test_Decide_RejectsWhenBorrowLimitReached(t *testing.T) {
	s := state{
		user:              &libstore.User{},
		book:              &libstore.Book{CopiesAvailable: 1},
		activeBorrowCount: core.DefaultBorrowLimit,
	}

	assert.ErrorIs(t, Decide(s, core.DefaultLendingPolicy()), core.ErrBorrowLimitReached)
}

func Test_Decide_RejectsWhenNoCopiesAvailable(t *testing.T) {
	s := state{
		user: &libstore.User{},
		book: &libstore.Book{TotalCopies: 2, CopiesAvailable: 0},
	}

	assert.ErrorIs(t, Decide(s, core.DefaultLendingPolicy()), core.ErrBookUnavailable)
}

func Test_Decide_ChecksRulesInOrder(t *testing.T) {
	// A user at the limit asking for an unavailable book is rejected for the
	// limit, not for availability.
	s := state{
		user:              &libstore.User{},
		book:              &libstore.Book{CopiesAvailable: 0},
		activeBorrowCount: core.DefaultBorrowLimit,
	}
	assert.ErrorIs(t, Decide(s, core.DefaultLendingPolicy()), core.ErrBorrowLimitReached)

	// The limit even precedes the book lookup.
	s = state{
		user:              &libstore.User{},
		activeBorrowCount: core.DefaultBorrowLimit,
	}
	assert.ErrorIs(t, Decide(s, core.DefaultLendingPolicy()), core.ErrBorrowLimitReached)

	// Availability precedes the duplicate check.
	s = state{
		user:         &libstore.User{},
		book:         &libstore.Book{CopiesAvailable: 0},
		activeBorrow: &libstore.Borrow{},
	}
	assert.ErrorIs(t, Decide(s, core.DefaultLendingPolicy()), core.ErrBookUnavailable)
}
