package borrowbook

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/libris-io/libris/internal/core"
	"github.com/libris-io/libris/internal/shell"
	"github.com/libris-io/libris/libstore"
)

// Store defines the persistence operations the CommandHandler needs.
type Store interface {
	FindUserByID(ctx context.Context, id uuid.UUID) (*libstore.User, error)
	FindBookByID(ctx context.Context, id uuid.UUID) (*libstore.Book, error)
	FindActiveBorrow(ctx context.Context, userID, bookID uuid.UUID) (*libstore.Borrow, error)
	CountActiveBorrows(ctx context.Context, userID uuid.UUID) (int, error)
	ConditionalDecrementCopies(ctx context.Context, bookID uuid.UUID) (*libstore.Book, error)
	IncrementCopies(ctx context.Context, bookID uuid.UUID) (*libstore.Book, error)
	InsertBorrow(ctx context.Context, borrow libstore.Borrow) error
	FindPendingReservation(ctx context.Context, userID, bookID uuid.UUID) (*libstore.Reservation, error)
	FulfillReservation(ctx context.Context, id uuid.UUID) (*libstore.Reservation, error)
}

// CommandHandler orchestrates the borrow workflow:
// load snapshot -> Decide -> guarded decrement -> insert borrowing.
//
// The snapshot checks are optimistic. The guarded decrement is the only
// availability check that gates the mutation: when it loses the race it
// rejects with no copies left, and nothing has been written. A failure after
// the decrement is compensated by re-incrementing the counter, with retries.
type CommandHandler struct {
	store        Store
	policy       core.LendingPolicy
	clock        shell.Clock
	retryOptions []shell.RetryOption
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

// WithRetryOptions sets a custom retry configuration for the compensation path.
func WithRetryOptions(opts ...shell.RetryOption) Option {
	return func(h *CommandHandler) {
		h.retryOptions = opts
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

// Handle executes the borrow workflow and returns the created borrowing.
func (h CommandHandler) Handle(ctx context.Context, command Command) (*libstore.Borrow, error) {
	s, err := h.loadState(ctx, command)
	if err != nil {
		return nil, err
	}

	if decideErr := Decide(s, h.policy); decideErr != nil {
		return nil, decideErr
	}

	// The authoritative availability check. From here on a copy is claimed.
	if _, decrementErr := h.store.ConditionalDecrementCopies(ctx, command.BookID); decrementErr != nil {
		if errors.Is(decrementErr, libstore.ErrNoAvailableCopies) {
			return nil, core.ErrBookUnavailable
		}

		return nil, decrementErr
	}

	now := h.clock()

	borrowDate := now
	if command.BorrowDate != nil {
		borrowDate = *command.BorrowDate
	}

	dueDate := h.policy.DueDateFor(borrowDate)
	if command.DueDate != nil {
		dueDate = *command.DueDate
	}

	borrow := libstore.Borrow{
		ID:         uuid.New(),
		UserID:     command.UserID,
		BookID:     command.BookID,
		BorrowDate: borrowDate,
		DueDate:    dueDate,
		IsReturned: false,
		LateFee:    0,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if insertErr := h.store.InsertBorrow(ctx, borrow); insertErr != nil {
		h.compensateDecrement(ctx, command.BookID)
		return nil, insertErr
	}

	h.fulfillPendingReservation(ctx, command)

	return &borrow, nil
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

	if s.activeBorrow, err = h.store.FindActiveBorrow(ctx, command.UserID, command.BookID); err != nil {
		return state{}, err
	}

	if s.activeBorrowCount, err = h.store.CountActiveBorrows(ctx, command.UserID); err != nil {
		return state{}, err
	}

	return s, nil
}

// compensateDecrement gives the claimed copy back after a failed insert.
// The increment is clamped in the store, so compensation can never push the
// counter past total copies. Retried because leaving the counter low would
// silently shrink the stock.
func (h CommandHandler) compensateDecrement(ctx context.Context, bookID uuid.UUID) {
	// Detach from a possibly canceled request context, the compensation
	// must run regardless.
	compensationCtx := context.WithoutCancel(ctx)

	_ = shell.RetryWithExponentialBackoff(compensationCtx, func(retryCtx context.Context) error {
		_, err := h.store.IncrementCopies(retryCtx, bookID)
		return err
	}, h.retryOptions...)
}

// fulfillPendingReservation closes the user's pending reservation for the
// book, if any. Borrowing is the natural fulfillment of a hold. Best effort:
// a failure here never fails the borrow.
func (h CommandHandler) fulfillPendingReservation(ctx context.Context, command Command) {
	reservation, err := h.store.FindPendingReservation(ctx, command.UserID, command.BookID)
	if err != nil || reservation == nil {
		return
	}

	_, _ = h.store.FulfillReservation(ctx, reservation.ID)
}
