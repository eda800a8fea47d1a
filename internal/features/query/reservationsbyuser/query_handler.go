package reservationsbyuser

import (
	"context"

	"github.com/google/uuid"

	"github.com/libris-io/libris/internal/core"
	"github.com/libris-io/libris/libstore"
)

// Store defines the persistence operations the QueryHandler needs.
type Store interface {
	FindUserByID(ctx context.Context, id uuid.UUID) (*libstore.User, error)
	ListReservationsByUser(ctx context.Context, userID uuid.UUID, page libstore.Page) ([]libstore.Reservation, error)
}

// QueryHandler answers reservation queries.
type QueryHandler struct {
	store Store
}

// NewQueryHandler creates a new QueryHandler.
func NewQueryHandler(store Store) QueryHandler {
	return QueryHandler{store: store}
}

// Handle returns the user's reservations page with the pending count.
func (h QueryHandler) Handle(ctx context.Context, query Query) (Reservations, error) {
	user, err := h.store.FindUserByID(ctx, query.UserID)
	if err != nil {
		return Reservations{}, err
	}

	if user == nil {
		return Reservations{}, core.ErrUserNotFound
	}

	reservations, err := h.store.ListReservationsByUser(ctx, query.UserID, query.Page)
	if err != nil {
		return Reservations{}, err
	}

	result := Reservations{
		UserID:       query.UserID,
		Reservations: reservations,
	}

	for _, reservation := range reservations {
		if reservation.Status == libstore.ReservationPending {
			result.PendingCount++
		}
	}

	return result, nil
}
