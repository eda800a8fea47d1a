package core_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/libris-io/libris/internal/core"
)

func Test_DaysLate_ReturnsZeroOnOrBeforeDueDate(t *testing.T) {
	due := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, 0, core.DaysLate(due, due))
	assert.Equal(t, 0, core.DaysLate(due, due.Add(-48*time.Hour)))
}

func Test_DaysLate_CountsStartedDays(t *testing.T) {
	due := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, 1, core.DaysLate(due, due.Add(time.Hour)), "one hour late is one started day")
	assert.Equal(t, 1, core.DaysLate(due, due.Add(24*time.Hour)))
	assert.Equal(t, 2, core.DaysLate(due, due.Add(24*time.Hour+time.Minute)))
	assert.Equal(t, 3, core.DaysLate(due, due.Add(3*24*time.Hour)))
}

func Test_LateFeeFor_MultipliesDaysByRate(t *testing.T) {
	policy := core.DefaultLendingPolicy()
	due := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, 0.0, policy.LateFeeFor(due, due))
	assert.Equal(t, 3.0, policy.LateFeeFor(due, due.Add(3*24*time.Hour)))

	policy.LateFeePerDay = 0.5
	assert.Equal(t, 1.5, policy.LateFeeFor(due, due.Add(3*24*time.Hour)))
}

func Test_DueDateFor_AddsLoanPeriod(t *testing.T) {
	policy := core.DefaultLendingPolicy()
	borrowedAt := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

	assert.Equal(t, borrowedAt.AddDate(0, 0, 14), policy.DueDateFor(borrowedAt))
}

func Test_ExpirationFor_AddsReservationTTL(t *testing.T) {
	policy := core.DefaultLendingPolicy()
	reservedAt := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

	assert.Equal(t, reservedAt.AddDate(0, 0, 3), policy.ExpirationFor(reservedAt))
}
