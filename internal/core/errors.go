// Package core holds the domain vocabulary of the lending system: error
// kinds, the lending policy, and the rules shared by the command and query
// features.
package core

import "errors"

// Sentinel errors of the domain. Handlers wrap them with errors.Join where
// extra cause information is available; callers match with errors.Is.
var (
	ErrUserNotFound        = errors.New("user not found")
	ErrBookNotFound        = errors.New("book not found")
	ErrBorrowNotFound      = errors.New("borrowing not found")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrCategoryNotFound    = errors.New("category not found")
	ErrGenreNotFound       = errors.New("genre not found")
	ErrReviewNotFound      = errors.New("review not found")

	ErrInvalidID                = errors.New("invalid id")
	ErrInvalidInput             = errors.New("invalid input")
	ErrInvalidReservationStatus = errors.New("invalid reservation status")
	ErrEmailAlreadyRegistered   = errors.New("email already registered")

	ErrBookUnavailable           = errors.New("no copies of this book are available")
	ErrDuplicateBorrow           = errors.New("user already has an active borrowing of this book")
	ErrAlreadyReturned           = errors.New("borrowing was already returned")
	ErrBorrowLimitReached        = errors.New("user has reached the active borrowing limit")
	ErrDuplicateReservation      = errors.New("user already has a pending reservation for this book")
	ErrReservationNotPending     = errors.New("reservation is not pending")
	ErrReservationAlreadyEnded   = errors.New("reservation was already fulfilled or canceled")
	ErrBorrowDoesNotBelongToUser = errors.New("borrowing belongs to a different user")
)

// Kind classifies domain errors for the transport layer without the
// transport having to enumerate every sentinel.
type Kind int

// The error kinds, ordered roughly by how a client should react.
const (
	KindInternal Kind = iota
	KindNotFound
	KindInvalidArgument
	KindUnavailable
	KindConflict
	KindLimitExceeded
)

// KindOf maps a domain error to its kind. Unknown errors are internal.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindInternal

	case errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrBookNotFound),
		errors.Is(err, ErrBorrowNotFound),
		errors.Is(err, ErrReservationNotFound),
		errors.Is(err, ErrCategoryNotFound),
		errors.Is(err, ErrGenreNotFound),
		errors.Is(err, ErrReviewNotFound):
		return KindNotFound

	case errors.Is(err, ErrInvalidID),
		errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrInvalidReservationStatus):
		return KindInvalidArgument

	case errors.Is(err, ErrBookUnavailable):
		return KindUnavailable

	case errors.Is(err, ErrDuplicateBorrow),
		errors.Is(err, ErrAlreadyReturned),
		errors.Is(err, ErrDuplicateReservation),
		errors.Is(err, ErrReservationNotPending),
		errors.Is(err, ErrReservationAlreadyEnded),
		errors.Is(err, ErrEmailAlreadyRegistered),
		errors.Is(err, ErrBorrowDoesNotBelongToUser):
		return KindConflict

	case errors.Is(err, ErrBorrowLimitReached):
		return KindLimitExceeded

	default:
		return KindInternal
	}
}
