// Package returnbook implements the return use case: a user gives back a
// borrowed copy. Closing the borrowing is a guarded update, so a double
// return can never release the same copy twice.
package returnbook

import (
	"time"

	"github.com/google/uuid"
)

const commandType = "ReturnBook"

// Command represents the intent of a user to return a borrowed book.
type Command struct {
	BorrowID   uuid.UUID
	UserID     uuid.UUID
	ReturnedAt time.Time
}

// CommandType returns the type identifier for this command, used for
// observability and routing.
func (c Command) CommandType() string {
	return commandType
}

// BuildCommand creates a new Command with the provided parameters.
func BuildCommand(borrowID, userID uuid.UUID, returnedAt time.Time) Command {
	return Command{
		BorrowID:   borrowID,
		UserID:     userID,
		ReturnedAt: returnedAt,
	}
}
