// Package export writes the borrow ledger as a parquet file for offline
// reporting. Rows are denormalized: user and book attributes are joined in
// so the file is useful without access to the live database.
package export

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"

	"github.com/libris-io/libris/libstore"
)

const defaultPageSize = 500

// LedgerRow is one borrowing in the exported file.
type LedgerRow struct {
	BorrowID   string     `parquet:"borrow_id"`
	UserID     string     `parquet:"user_id"`
	UserName   string     `parquet:"user_name"`
	BookID     string     `parquet:"book_id"`
	BookTitle  string     `parquet:"book_title"`
	BookAuthor string     `parquet:"book_author"`
	BorrowDate time.Time  `parquet:"borrow_date,timestamp"`
	DueDate    time.Time  `parquet:"due_date,timestamp"`
	ReturnDate *time.Time `parquet:"return_date,optional,timestamp"`
	IsReturned bool       `parquet:"is_returned"`
	LateFee    float64    `parquet:"late_fee"`
}

// Store defines the persistence operations the exporter needs.
type Store interface {
	ListBorrows(ctx context.Context, page libstore.Page) ([]libstore.Borrow, error)
	FindUserByID(ctx context.Context, id uuid.UUID) (*libstore.User, error)
	FindBookByID(ctx context.Context, id uuid.UUID) (*libstore.Book, error)
}

// Exporter streams the borrow ledger from the store into a parquet writer.
type Exporter struct {
	store    Store
	logger   libstore.ContextualLogger
	pageSize int
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithPageSize sets how many borrowings are fetched per store round trip.
func WithPageSize(size int) Option {
	return func(e *Exporter) {
		if size > 0 {
			e.pageSize = size
		}
	}
}

// WithLogger sets the export progress logger.
func WithLogger(logger libstore.ContextualLogger) Option {
	return func(e *Exporter) {
		e.logger = logger
	}
}

// NewExporter creates an exporter over the given store.
func NewExporter(store Store, opts ...Option) *Exporter {
	exporter := &Exporter{
		store:    store,
		pageSize: defaultPageSize,
	}

	for _, opt := range opts {
		opt(exporter)
	}

	return exporter
}

// WriteLedger pages through all borrowings, joins in user and book
// attributes, and writes the parquet file to w. It returns the number of
// rows written.
func (e *Exporter) WriteLedger(ctx context.Context, w io.Writer) (int64, error) {
	writer := parquet.NewGenericWriter[LedgerRow](w)

	users := map[uuid.UUID]*libstore.User{}
	books := map[uuid.UUID]*libstore.Book{}

	var written int64
	for offset := 0; ; offset += e.pageSize {
		borrows, err := e.store.ListBorrows(ctx, libstore.Page{Limit: e.pageSize, Offset: offset})
		if err != nil {
			return written, fmt.Errorf("listing borrowings at offset %d: %w", offset, err)
		}
		if len(borrows) == 0 {
			break
		}

		rows := make([]LedgerRow, 0, len(borrows))
		for _, borrow := range borrows {
			row, err := e.buildRow(ctx, borrow, users, books)
			if err != nil {
				return written, err
			}
			rows = append(rows, row)
		}

		n, err := writer.Write(rows)
		if err != nil {
			return written, fmt.Errorf("writing ledger rows: %w", err)
		}
		written += int64(n)
	}

	if err := writer.Close(); err != nil {
		return written, fmt.Errorf("closing ledger writer: %w", err)
	}

	if e.logger != nil {
		e.logger.InfoContext(ctx, "borrow ledger exported", "rows", written)
	}

	return written, nil
}

// buildRow joins user and book attributes into the row. Deleted users or
// books leave their columns empty rather than failing the export.
func (e *Exporter) buildRow(
	ctx context.Context,
	borrow libstore.Borrow,
	users map[uuid.UUID]*libstore.User,
	books map[uuid.UUID]*libstore.Book,
) (LedgerRow, error) {

	row := LedgerRow{
		BorrowID:   borrow.ID.String(),
		UserID:     borrow.UserID.String(),
		BookID:     borrow.BookID.String(),
		BorrowDate: borrow.BorrowDate,
		DueDate:    borrow.DueDate,
		ReturnDate: borrow.ReturnDate,
		IsReturned: borrow.IsReturned,
		LateFee:    borrow.LateFee,
	}

	user, ok := users[borrow.UserID]
	if !ok {
		var err error
		user, err = e.store.FindUserByID(ctx, borrow.UserID)
		if err != nil {
			return row, fmt.Errorf("resolving user %s: %w", borrow.UserID, err)
		}
		users[borrow.UserID] = user
	}
	if user != nil {
		row.UserName = user.UserName
	}

	book, ok := books[borrow.BookID]
	if !ok {
		var err error
		book, err = e.store.FindBookByID(ctx, borrow.BookID)
		if err != nil {
			return row, fmt.Errorf("resolving book %s: %w", borrow.BookID, err)
		}
		books[borrow.BookID] = book
	}
	if book != nil {
		row.BookTitle = book.Title
		row.BookAuthor = book.Author
	}

	return row, nil
}
