package postgresengine

import (
	"context"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"github.com/libris-io/libris/libstore"
	"github.com/libris-io/libris/libstore/postgresengine/internal/adapters"
)

const (
	colBorrowUserID     = "user_id"
	colBorrowBookID     = "book_id"
	colBorrowBorrowDate = "borrow_date"
	colBorrowDueDate    = "due_date"
	colBorrowReturnDate = "return_date"
	colBorrowIsReturned = "is_returned"
	colBorrowLateFee    = "late_fee"

	opInsertBorrow       = "insert_borrow"
	opFindBorrow         = "find_borrow"
	opFindActiveBorrow   = "find_active_borrow"
	opCountActiveBorrows = "count_active_borrows"
	opListBorrows        = "list_borrows"
	opListBorrowsByUser  = "list_borrows_by_user"
	opMarkBorrowReturned = "mark_borrow_returned"
	opDeleteBorrow       = "delete_borrow"
)

var borrowColumns = []any{
	colID, colBorrowUserID, colBorrowBookID, colBorrowBorrowDate,
	colBorrowDueDate, colBorrowReturnDate, colBorrowIsReturned,
	colBorrowLateFee, colCreatedAt, colUpdatedAt,
}

func scanBorrow(rows adapters.DBRows) (libstore.Borrow, error) {
	var borrow libstore.Borrow
	var idStr, userStr, bookStr string

	scanErr := rows.Scan(
		&idStr, &userStr, &bookStr, &borrow.BorrowDate, &borrow.DueDate,
		&borrow.ReturnDate, &borrow.IsReturned, &borrow.LateFee,
		&borrow.CreatedAt, &borrow.UpdatedAt,
	)
	if scanErr != nil {
		return libstore.Borrow{}, scanErr
	}

	var parseErr error
	if borrow.ID, parseErr = uuid.Parse(idStr); parseErr != nil {
		return libstore.Borrow{}, parseErr
	}
	if borrow.UserID, parseErr = uuid.Parse(userStr); parseErr != nil {
		return libstore.Borrow{}, parseErr
	}
	if borrow.BookID, parseErr = uuid.Parse(bookStr); parseErr != nil {
		return libstore.Borrow{}, parseErr
	}

	return borrow, nil
}

// InsertBorrow persists a new borrowing record as provided.
func (s *Store) InsertBorrow(ctx context.Context, borrow libstore.Borrow) error {
	record := goqu.Record{
		colID:               borrow.ID.String(),
		colBorrowUserID:     borrow.UserID.String(),
		colBorrowBookID:     borrow.BookID.String(),
		colBorrowBorrowDate: libstore.ToStoredTime(borrow.BorrowDate),
		colBorrowDueDate:    libstore.ToStoredTime(borrow.DueDate),
		colBorrowIsReturned: borrow.IsReturned,
		colBorrowLateFee:    borrow.LateFee,
		colCreatedAt:        libstore.ToStoredTime(borrow.CreatedAt),
		colUpdatedAt:        libstore.ToStoredTime(borrow.UpdatedAt),
	}

	if borrow.ReturnDate != nil {
		record[colBorrowReturnDate] = libstore.ToStoredTime(*borrow.ReturnDate)
	}

	stmt := s.builder().
		Insert(s.table(tableBorrows)).
		Rows(record)

	_, err := s.runExec(ctx, opInsertBorrow, stmt)

	return err
}

// FindBorrowByID returns the borrowing record with the given ID, or nil.
func (s *Store) FindBorrowByID(ctx context.Context, id uuid.UUID) (*libstore.Borrow, error) {
	stmt := s.builder().
		From(s.table(tableBorrows)).
		Select(borrowColumns...).
		Where(goqu.C(colID).Eq(id.String()))

	return s.queryOneBorrow(ctx, opFindBorrow, stmt)
}

// FindActiveBorrow returns the unreturned borrowing of the given book by the
// given user, or nil. At most one such record exists.
func (s *Store) FindActiveBorrow(ctx context.Context, userID, bookID uuid.UUID) (*libstore.Borrow, error) {
	stmt := s.builder().
		From(s.table(tableBorrows)).
		Select(borrowColumns...).
		Where(
			goqu.C(colBorrowUserID).Eq(userID.String()),
			goqu.C(colBorrowBookID).Eq(bookID.String()),
			goqu.C(colBorrowIsReturned).IsFalse(),
		)

	return s.queryOneBorrow(ctx, opFindActiveBorrow, stmt)
}

// CountActiveBorrows counts the user's unreturned borrowings.
func (s *Store) CountActiveBorrows(ctx context.Context, userID uuid.UUID) (int, error) {
	stmt := s.builder().
		From(s.table(tableBorrows)).
		Select(goqu.COUNT(goqu.Star())).
		Where(
			goqu.C(colBorrowUserID).Eq(userID.String()),
			goqu.C(colBorrowIsReturned).IsFalse(),
		)

	rows, err := s.runQuery(ctx, opCountActiveBorrows, stmt)
	if err != nil {
		return 0, err
	}
	defer s.closeRows(ctx, rows)

	var count int64

	if rows.Next() {
		if scanErr := rows.Scan(&count); scanErr != nil {
			return 0, s.scanError(ctx, opCountActiveBorrows, scanErr)
		}
	}

	return int(count), nil
}

// ListBorrows returns a page of the full borrowing ledger, newest first.
func (s *Store) ListBorrows(ctx context.Context, page libstore.Page) ([]libstore.Borrow, error) {
	page = page.Normalize()

	stmt := s.builder().
		From(s.table(tableBorrows)).
		Select(borrowColumns...).
		Order(goqu.I(colCreatedAt).Desc()).
		Limit(uint(page.Limit)).
		Offset(uint(page.Offset))

	return s.queryBorrows(ctx, opListBorrows, stmt)
}

// ListBorrowsByUser returns a page of one user's borrowing history, newest first.
func (s *Store) ListBorrowsByUser(ctx context.Context, userID uuid.UUID, page libstore.Page) ([]libstore.Borrow, error) {
	page = page.Normalize()

	stmt := s.builder().
		From(s.table(tableBorrows)).
		Select(borrowColumns...).
		Where(goqu.C(colBorrowUserID).Eq(userID.String())).
		Order(goqu.I(colCreatedAt).Desc()).
		Limit(uint(page.Limit)).
		Offset(uint(page.Offset))

	return s.queryBorrows(ctx, opListBorrowsByUser, stmt)
}

// MarkBorrowReturned closes a borrowing in a single guarded update: the
// is_returned = false condition in the WHERE clause makes a double return
// impossible even under concurrent requests. Returns the updated record, or
// nil when the borrowing does not exist or is already returned.
func (s *Store) MarkBorrowReturned(
	ctx context.Context,
	id uuid.UUID,
	returnDate time.Time,
	lateFee float64,
) (*libstore.Borrow, error) {

	stmt := s.builder().
		Update(s.table(tableBorrows)).
		Set(goqu.Record{
			colBorrowIsReturned: true,
			colBorrowReturnDate: libstore.ToStoredTime(returnDate),
			colBorrowLateFee:    lateFee,
			colUpdatedAt:        goqu.L("now()"),
		}).
		Where(
			goqu.C(colID).Eq(id.String()),
			goqu.C(colBorrowIsReturned).IsFalse(),
		).
		Returning(borrowColumns...)

	return s.queryOneBorrow(ctx, opMarkBorrowReturned, stmt)
}

// DeleteBorrow removes a ledger record (administrative CRUD, never called by
// the lending core) and reports whether it existed.
func (s *Store) DeleteBorrow(ctx context.Context, id uuid.UUID) (bool, error) {
	stmt := s.builder().
		Delete(s.table(tableBorrows)).
		Where(goqu.C(colID).Eq(id.String()))

	rowsAffected, err := s.runExec(ctx, opDeleteBorrow, stmt)
	if err != nil {
		return false, err
	}

	return rowsAffected > 0, nil
}

func (s *Store) queryOneBorrow(ctx context.Context, operation string, stmt sqlBuilder) (*libstore.Borrow, error) {
	rows, err := s.runQuery(ctx, operation, stmt)
	if err != nil {
		return nil, err
	}
	defer s.closeRows(ctx, rows)

	if !rows.Next() {
		return nil, nil
	}

	borrow, scanErr := scanBorrow(rows)
	if scanErr != nil {
		return nil, s.scanError(ctx, operation, scanErr)
	}

	return &borrow, nil
}

func (s *Store) queryBorrows(ctx context.Context, operation string, stmt sqlBuilder) ([]libstore.Borrow, error) {
	rows, err := s.runQuery(ctx, operation, stmt)
	if err != nil {
		return nil, err
	}
	defer s.closeRows(ctx, rows)

	borrows := make([]libstore.Borrow, 0)

	for rows.Next() {
		borrow, scanErr := scanBorrow(rows)
		if scanErr != nil {
			return nil, s.scanError(ctx, operation, scanErr)
		}

		borrows = append(borrows, borrow)
	}

	return borrows, nil
}
