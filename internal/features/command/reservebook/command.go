// Package reservebook implements the reserve use case: a user places a hold
// on a book. A hold does not claim a copy; it expires automatically after
// the policy's reservation TTL unless the user borrows or cancels first.
package reservebook

import (
	"time"

	"github.com/google/uuid"

	"github.com/libris-io/libris/libstore"
)

const commandType = "ReserveBook"

// Command represents the intent of a user to reserve a book. An empty
// RequestedStatus means pending; anything else must be a valid status, used
// e.g. when importing holds from a legacy system.
type Command struct {
	UserID          uuid.UUID
	BookID          uuid.UUID
	RequestedStatus libstore.ReservationStatus
	RequestedAt     time.Time
}

// CommandType returns the type identifier for this command, used for
// observability and routing.
func (c Command) CommandType() string {
	return commandType
}

// BuildCommand creates a new Command with the provided parameters.
func BuildCommand(userID, bookID uuid.UUID, requestedAt time.Time) Command {
	return Command{
		UserID:      userID,
		BookID:      bookID,
		RequestedAt: requestedAt,
	}
}
