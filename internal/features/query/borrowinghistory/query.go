// Package borrowinghistory implements the read side of the lending ledger:
// the full borrowing history of one user, active loans first-class.
package borrowinghistory

import (
	"github.com/google/uuid"

	"github.com/libris-io/libris/libstore"
)

const queryType = "BorrowingHistory"

// Query represents the intent to read a user's borrowing history.
type Query struct {
	UserID uuid.UUID
	Page   libstore.Page
}

// BuildQuery creates a new Query with the provided parameters.
func BuildQuery(userID uuid.UUID, page libstore.Page) Query {
	return Query{
		UserID: userID,
		Page:   page,
	}
}

// QueryType returns the query type.
func (q Query) QueryType() string {
	return queryType
}

// History is the query result: one user's borrowings, newest first, with the
// number of still-active loans.
type History struct {
	UserID      uuid.UUID         `json:"userId"`
	Borrows     []libstore.Borrow `json:"borrows"`
	ActiveCount int               `json:"activeCount"`
	TotalFees   float64           `json:"totalFees"`
}
