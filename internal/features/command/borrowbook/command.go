// Package borrowbook implements the borrow use case: a user takes out one
// copy of a book. The availability check and the copy counter decrement are
// pushed into the store as one guarded update, so two concurrent borrows of
// the last copy can never both succeed.
package borrowbook

import (
	"time"

	"github.com/google/uuid"
)

const commandType = "BorrowBook"

// Command represents the intent of a user to borrow a book. BorrowDate and
// DueDate are optional overrides for back-dated entries; left nil, the
// borrow date is the current time and the due date follows the policy's
// loan period.
type Command struct {
	UserID      uuid.UUID
	BookID      uuid.UUID
	BorrowDate  *time.Time
	DueDate     *time.Time
	RequestedAt time.Time
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
