package reservebook

import (
	"context"

	"github.com/google/uuid"

	"github.com/libris-io/libris/internal/core"
	"github.com/libris-io/libris/internal/shell"
	"github.com/libris-io/libris/libstore"
)

// Store defines the persistence operations the CommandHandler needs.
type Store interface {
	FindUserByID(ctx context.Context, id uuid.UUID) (*libstore.User, error)
	FindBookByID(ctx context.Context, id uuid.UUID) (*libstore.Book, error)
	FindPendingReservation(ctx context.Context, userID, bookID uuid.UUID) (*libstore.Reservation, error)
	InsertReservation(ctx context.Context, reservation libstore.Reservation) error
	SetBookReserved(ctx context.Context, bookID uuid.UUID, reserved bool) (*libstore.Book, error)
}

// CommandHandler orchestrates the reserve workflow:
// load snapshot -> Decide -> insert pending reservation.
//
// The unique partial index on pending (user, book) pairs backstops the
// duplicate check under concurrency.
type CommandHandler struct {
	store  Store
	policy core.LendingPolicy
	clock  shell.Clock
}

// Option configures a CommandHandler.
type Option func(*CommandHandler)

// WithPolicy overrides the default lending policy.
func WithPolicy(policy core.LendingPolicy) Option {
	return func(h *CommandHandler) {
		h.policy = policy
	}
}

// WithClock overrides the clock, for tests.
func WithClock(clock shell.Clock) Option {
	return func(h *CommandHandler) {
		h.clock = clock
	}
}

// NewCommandHandler creates a new CommandHandler with optional configuration.
func NewCommandHandler(store Store, opts ...Option) CommandHandler {
	handler := CommandHandler{
		store:  store,
		policy: core.DefaultLendingPolicy(),
		clock:  shell.SystemClock,
	}

	for _, opt := range opts {
		opt(&handler)
	}

	return handler
}

// Handle executes the reserve workflow and returns the created reservation.
func (h CommandHandler) Handle(ctx context.Context, command Command) (*libstore.Reservation, error) {
	s, err := h.loadState(ctx, command)
	if err != nil {
		return nil, err
	}

	if decideErr := Decide(s, command); decideErr != nil {
		return nil, decideErr
	}

	status := command.RequestedStatus
	if status == "" {
		status = libstore.ReservationPending
	}

	now := h.clock()
	reservation := libstore.Reservation{
		ID:              uuid.New(),
		UserID:          command.UserID,
		BookID:          command.BookID,
		ReservationDate: now,
		ExpirationDate:  h.policy.ExpirationFor(now),
		Status:          status,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if insertErr := h.store.InsertReservation(ctx, reservation); insertErr != nil {
		return nil, insertErr
	}

	// Coarse catalog flag, best effort. The reservation record is the truth.
	_, _ = h.store.SetBookReserved(ctx, command.BookID, true)

	return &reservation, nil
}

func (h CommandHandler) loadState(ctx context.Context, command Command) (state, error) {
	var s state
	var err error

	if s.user, err = h.store.FindUserByID(ctx, command.UserID); err != nil {
		return state{}, err
	}

	if s.book, err = h.store.FindBookByID(ctx, command.BookID); err != nil {
		return state{}, err
	}

	if s.pendingReservation, err = h.store.FindPendingReservation(ctx, command.UserID, command.BookID); err != nil {
		return state{}, err
	}

	return s, nil
}
