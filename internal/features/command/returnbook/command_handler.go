package returnbook

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/libris-io/libris/internal/core"
	"github.com/libris-io/libris/internal/shell"
	"github.com/libris-io/libris/libstore"
)

// Store defines the persistence operations the CommandHandler needs.
type Store interface {
	FindBorrowByID(ctx context.Context, id uuid.UUID) (*libstore.Borrow, error)
	MarkBorrowReturned(ctx context.Context, id uuid.UUID, returnDate time.Time, lateFee float64) (*libstore.Borrow, error)
	IncrementCopies(ctx context.Context, bookID uuid.UUID) (*libstore.Book, error)
}

// CommandHandler orchestrates the return workflow:
// load borrowing -> Decide -> guarded close -> increment copies.
//
// The guarded close is the gate: only the request that flips is_returned
// from false to true goes on to increment the copy counter, so concurrent
// returns of the same borrowing release exactly one copy. The increment is
// clamped at total copies in the store.
type CommandHandler struct {
	store        Store
	policy       core.LendingPolicy
	clock        shell.Clock
	logger       libstore.ContextualLogger
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

// WithLogger sets the logger used to report failures on the release path.
func WithLogger(logger libstore.ContextualLogger) Option {
	return func(h *CommandHandler) {
		h.logger = logger
	}
}

// WithRetryOptions sets a custom retry configuration for the increment step.
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

// Handle executes the return workflow and returns the closed borrowing,
// including any late fee.
func (h CommandHandler) Handle(ctx context.Context, command Command) (*libstore.Borrow, error) {
	borrow, err := h.store.FindBorrowByID(ctx, command.BorrowID)
	if err != nil {
		return nil, err
	}

	if decideErr := Decide(state{borrow: borrow}, command.UserID); decideErr != nil {
		return nil, decideErr
	}

	returnedAt := command.ReturnedAt
	if returnedAt.IsZero() {
		returnedAt = h.clock()
	}

	lateFee := h.policy.LateFeeFor(borrow.DueDate, returnedAt)

	closed, closeErr := h.store.MarkBorrowReturned(ctx, command.BorrowID, returnedAt, lateFee)
	if closeErr != nil {
		return nil, closeErr
	}

	if closed == nil {
		// A concurrent return won between the read and the guarded update.
		return nil, core.ErrAlreadyReturned
	}

	if releaseErr := h.releaseCopy(ctx, borrow.BookID); releaseErr != nil {
		// The borrowing stays closed; the caller learns the copy never made
		// it back into availability.
		return closed, releaseErr
	}

	return closed, nil
}

// releaseCopy puts the returned copy back into availability. Retried on
// transient store errors; the clamp in the store keeps repeated increments
// from exceeding total copies.
//
// When the book row no longer exists the increment has nothing to release,
// so the caller gets a not-found error alongside the closed borrowing.
// Exhausted retries are logged and swallowed: the return itself succeeded,
// only the counter is low until reconciled.
func (h CommandHandler) releaseCopy(ctx context.Context, bookID uuid.UUID) error {
	releaseCtx := context.WithoutCancel(ctx)

	var book *libstore.Book

	retryErr := shell.RetryWithExponentialBackoff(releaseCtx, func(retryCtx context.Context) error {
		var incrementErr error
		book, incrementErr = h.store.IncrementCopies(retryCtx, bookID)

		return incrementErr
	}, h.retryOptions...)
	if retryErr != nil {
		if h.logger != nil {
			h.logger.ErrorContext(releaseCtx, "releasing returned copy failed, availability counter is low",
				"book_id", bookID.String(), "error", retryErr.Error())
		}

		return nil
	}

	if book == nil {
		if h.logger != nil {
			h.logger.ErrorContext(releaseCtx, "returned borrowing references a book that no longer exists",
				"book_id", bookID.String())
		}

		return core.ErrBookNotFound
	}

	return nil
}
