package core

import (
	"math"
	"time"
)

// Default lending rules. They apply unless overridden through configuration.
const (
	DefaultBorrowLimit    = 5
	DefaultLoanPeriod     = 14 * 24 * time.Hour
	DefaultReservationTTL = 3 * 24 * time.Hour
	DefaultLateFeePerDay  = 1.0
)

// LendingPolicy bundles the tunable lending rules. The zero value is not
// usable; construct with DefaultLendingPolicy and override fields as needed.
type LendingPolicy struct {
	BorrowLimit    int
	LoanPeriod     time.Duration
	ReservationTTL time.Duration
	LateFeePerDay  float64
}

// DefaultLendingPolicy returns the standard rules: at most 5 active
// borrowings per user, 14 day loans, 3 day reservation holds, and a late fee
// of 1 per started day.
func DefaultLendingPolicy() LendingPolicy {
	return LendingPolicy{
		BorrowLimit:    DefaultBorrowLimit,
		LoanPeriod:     DefaultLoanPeriod,
		ReservationTTL: DefaultReservationTTL,
		LateFeePerDay:  DefaultLateFeePerDay,
	}
}

// DueDateFor returns the due date of a loan taken out at the given time.
func (p LendingPolicy) DueDateFor(borrowedAt time.Time) time.Time {
	return borrowedAt.Add(p.LoanPeriod)
}

// ExpirationFor returns the expiration date of a reservation made at the
// given time.
func (p LendingPolicy) ExpirationFor(reservedAt time.Time) time.Time {
	return reservedAt.Add(p.ReservationTTL)
}

// DaysLate returns the number of started days between the due date and the
// return date, never negative. A return one hour late counts as one day.
func DaysLate(dueDate, returnedAt time.Time) int {
	if !returnedAt.After(dueDate) {
		return 0
	}

	return int(math.Ceil(returnedAt.Sub(dueDate).Hours() / 24))
}

// LateFeeFor returns the fee owed for a loan returned at the given time.
func (p LendingPolicy) LateFeeFor(dueDate, returnedAt time.Time) float64 {
	return float64(DaysLate(dueDate, returnedAt)) * p.LateFeePerDay
}
