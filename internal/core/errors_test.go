package core_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/libris-io/libris/internal/core"
)

func Test_KindOf_ClassifiesDomainErrors(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected core.Kind
	}{
		{"book not found", core.ErrBookNotFound, core.KindNotFound},
		{"invalid id", core.ErrInvalidID, core.KindInvalidArgument},
		{"book unavailable", core.ErrBookUnavailable, core.KindUnavailable},
		{"double return", core.ErrAlreadyReturned, core.KindConflict},
		{"duplicate borrow", core.ErrDuplicateBorrow, core.KindConflict},
		{"reservation not pending", core.ErrReservationNotPending, core.KindConflict},
		{"borrow limit", core.ErrBorrowLimitReached, core.KindLimitExceeded},
		{"unknown error", errors.New("disk on fire"), core.KindInternal},
		{"nil", nil, core.KindInternal},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, core.KindOf(tc.err))
		})
	}
}

func Test_KindOf_SeesThroughWrappedErrors(t *testing.T) {
	wrapped := errors.Join(core.ErrBookUnavailable, errors.New("guard rejected update"))

	assert.Equal(t, core.KindUnavailable, core.KindOf(wrapped))
}
