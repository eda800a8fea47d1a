// Package cancelreservation implements the cancel use case: a user drops a
// pending hold. The status transition is a guarded update, so a reservation
// that was concurrently fulfilled or canceled is never touched twice.
package cancelreservation

import (
	"time"

	"github.com/google/uuid"
)

const commandType = "CancelReservation"

// Command represents the intent of a user to cancel a pending reservation.
type Command struct {
	ReservationID uuid.UUID
	UserID        uuid.UUID
	RequestedAt   time.Time
}

// CommandType returns the type identifier for this command, used for
// observability and routing.
func (c Command) CommandType() string {
	return commandType
}

// BuildCommand creates a new Command with the provided parameters.
func BuildCommand(reservationID, userID uuid.UUID, requestedAt time.Time) Command {
	return Command{
		ReservationID: reservationID,
		UserID:        userID,
		RequestedAt:   requestedAt,
	}
}
