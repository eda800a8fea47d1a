package borrowinghistory

import (
	"context"

	"github.com/google/uuid"

	"github.com/libris-io/libris/internal/core"
	"github.com/libris-io/libris/libstore"
)

// Store defines the persistence operations the QueryHandler needs.
type Store interface {
	FindUserByID(ctx context.Context, id uuid.UUID) (*libstore.User, error)
	ListBorrowsByUser(ctx context.Context, userID uuid.UUID, page libstore.Page) ([]libstore.Borrow, error)
}

// QueryHandler answers borrowing history queries from the ledger.
type QueryHandler struct {
	store Store
}

// NewQueryHandler creates a new QueryHandler.
func NewQueryHandler(store Store) QueryHandler {
	return QueryHandler{store: store}
}

// Handle returns the user's borrowing history page with the active-loan
// count and accumulated late fees of that page.
func (h QueryHandler) Handle(ctx context.Context, query Query) (History, error) {
	user, err := h.store.FindUserByID(ctx, query.UserID)
	if err != nil {
		return History{}, err
	}

	if user == nil {
		return History{}, core.ErrUserNotFound
	}

	borrows, err := h.store.ListBorrowsByUser(ctx, query.UserID, query.Page)
	if err != nil {
		return History{}, err
	}

	history := History{
		UserID:  query.UserID,
		Borrows: borrows,
	}

	for _, borrow := range borrows {
		if borrow.IsActive() {
			history.ActiveCount++
		}

		history.TotalFees += borrow.LateFee
	}

	return history, nil
}
