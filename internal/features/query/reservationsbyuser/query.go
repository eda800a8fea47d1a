// Package reservationsbyuser implements the read side of reservations: the
// holds one user has placed, pending ones counted separately.
package reservationsbyuser

import (
	"github.com/google/uuid"

	"github.com/libris-io/libris/libstore"
)

const queryType = "ReservationsByUser"

// Query represents the intent to read a user's reservations.
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

// Reservations is the query result: one user's reservations, newest first.
type Reservations struct {
	UserID       uuid.UUID              `json:"userId"`
	Reservations []libstore.Reservation `json:"reservations"`
	PendingCount int                    `json:"pendingCount"`
}
