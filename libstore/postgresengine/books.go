package postgresengine

import (
	"context"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"github.com/libris-io/libris/libstore"
	"github.com/libris-io/libris/libstore/postgresengine/internal/adapters"
)

const (
	colBookTitle           = "title"
	colBookAuthor          = "author"
	colBookCategoryID      = "category_id"
	colBookGenreID         = "genre_id"
	colBookPublicationYear = "publication_year"
	colBookTotalCopies     = "total_copies"
	colBookCopiesAvailable = "copies_available"
	colBookIsReserved      = "is_reserved"

	opInsertBook        = "insert_book"
	opFindBook          = "find_book"
	opListBooks         = "list_books"
	opUpdateBook        = "update_book"
	opDeleteBook        = "delete_book"
	opDecrementCopies   = "conditional_decrement_copies"
	opIncrementCopies   = "increment_copies"
	opSetBookReserved   = "set_book_reserved"
	exprDecrementCopies = "copies_available - 1"
	exprIncrementCopies = "LEAST(copies_available + 1, total_copies)"
)

var bookColumns = []any{
	colID, colBookTitle, colBookAuthor, colBookCategoryID, colBookGenreID,
	colBookPublicationYear, colBookTotalCopies, colBookCopiesAvailable,
	colBookIsReserved, colCreatedAt, colUpdatedAt,
}

func scanBook(rows adapters.DBRows) (libstore.Book, error) {
	var book libstore.Book
	var idStr, categoryStr, genreStr string

	scanErr := rows.Scan(
		&idStr, &book.Title, &book.Author, &categoryStr, &genreStr,
		&book.PublicationYear, &book.TotalCopies, &book.CopiesAvailable,
		&book.IsReserved, &book.CreatedAt, &book.UpdatedAt,
	)
	if scanErr != nil {
		return libstore.Book{}, scanErr
	}

	var parseErr error
	if book.ID, parseErr = uuid.Parse(idStr); parseErr != nil {
		return libstore.Book{}, parseErr
	}
	if book.CategoryID, parseErr = uuid.Parse(categoryStr); parseErr != nil {
		return libstore.Book{}, parseErr
	}
	if book.GenreID, parseErr = uuid.Parse(genreStr); parseErr != nil {
		return libstore.Book{}, parseErr
	}

	return book, nil
}

func bookRecord(book libstore.Book) goqu.Record {
	return goqu.Record{
		colID:                  book.ID.String(),
		colBookTitle:           book.Title,
		colBookAuthor:          book.Author,
		colBookCategoryID:      book.CategoryID.String(),
		colBookGenreID:         book.GenreID.String(),
		colBookPublicationYear: book.PublicationYear,
		colBookTotalCopies:     book.TotalCopies,
		colBookCopiesAvailable: book.CopiesAvailable,
		colBookIsReserved:      book.IsReserved,
		colCreatedAt:           libstore.ToStoredTime(book.CreatedAt),
		colUpdatedAt:           libstore.ToStoredTime(book.UpdatedAt),
	}
}

// InsertBook persists a new catalog entry as provided.
func (s *Store) InsertBook(ctx context.Context, book libstore.Book) error {
	stmt := s.builder().
		Insert(s.table(tableBooks)).
		Rows(bookRecord(book))

	_, err := s.runExec(ctx, opInsertBook, stmt)

	return err
}

// FindBookByID returns the book with the given ID, or nil when it does not exist.
func (s *Store) FindBookByID(ctx context.Context, id uuid.UUID) (*libstore.Book, error) {
	stmt := s.builder().
		From(s.table(tableBooks)).
		Select(bookColumns...).
		Where(goqu.C(colID).Eq(id.String()))

	return s.queryOneBook(ctx, opFindBook, stmt)
}

// ListBooks returns a page of the catalog, newest first.
func (s *Store) ListBooks(ctx context.Context, page libstore.Page) ([]libstore.Book, error) {
	page = page.Normalize()

	stmt := s.builder().
		From(s.table(tableBooks)).
		Select(bookColumns...).
		Order(goqu.I(colCreatedAt).Desc()).
		Limit(uint(page.Limit)).
		Offset(uint(page.Offset))

	rows, err := s.runQuery(ctx, opListBooks, stmt)
	if err != nil {
		return nil, err
	}
	defer s.closeRows(ctx, rows)

	books := make([]libstore.Book, 0)

	for rows.Next() {
		book, scanErr := scanBook(rows)
		if scanErr != nil {
			return nil, s.scanError(ctx, opListBooks, scanErr)
		}

		books = append(books, book)
	}

	return books, nil
}

// UpdateBook overwrites the mutable catalog fields of a book and returns the
// updated record, or nil when the book does not exist. The lending core never
// calls this; copy counters are mutated through the dedicated operations below.
func (s *Store) UpdateBook(ctx context.Context, book libstore.Book) (*libstore.Book, error) {
	stmt := s.builder().
		Update(s.table(tableBooks)).
		Set(goqu.Record{
			colBookTitle:           book.Title,
			colBookAuthor:          book.Author,
			colBookCategoryID:      book.CategoryID.String(),
			colBookGenreID:         book.GenreID.String(),
			colBookPublicationYear: book.PublicationYear,
			colBookTotalCopies:     book.TotalCopies,
			colBookCopiesAvailable: book.CopiesAvailable,
			colBookIsReserved:      book.IsReserved,
			colUpdatedAt:           goqu.L("now()"),
		}).
		Where(goqu.C(colID).Eq(book.ID.String())).
		Returning(bookColumns...)

	return s.queryOneBook(ctx, opUpdateBook, stmt)
}

// DeleteBook removes a book and reports whether it existed.
func (s *Store) DeleteBook(ctx context.Context, id uuid.UUID) (bool, error) {
	stmt := s.builder().
		Delete(s.table(tableBooks)).
		Where(goqu.C(colID).Eq(id.String()))

	rowsAffected, err := s.runExec(ctx, opDeleteBook, stmt)
	if err != nil {
		return false, err
	}

	return rowsAffected > 0, nil
}

// ConditionalDecrementCopies decrements copies_available by one if and only
// if copies_available > 0 at the moment of the update. The guard is part of
// the UPDATE statement itself, so the check and the mutation are one atomic
// operation on the database side. When the guard fails (a concurrent borrow
// won the race, or the book is gone) it returns ErrNoAvailableCopies.
func (s *Store) ConditionalDecrementCopies(ctx context.Context, bookID uuid.UUID) (*libstore.Book, error) {
	stmt := s.builder().
		Update(s.table(tableBooks)).
		Set(goqu.Record{
			colBookCopiesAvailable: goqu.L(exprDecrementCopies),
			colUpdatedAt:           goqu.L("now()"),
		}).
		Where(
			goqu.C(colID).Eq(bookID.String()),
			goqu.C(colBookCopiesAvailable).Gt(0),
		).
		Returning(bookColumns...)

	book, err := s.queryOneBook(ctx, opDecrementCopies, stmt)
	if err != nil {
		return nil, err
	}

	if book == nil {
		s.recordGuardConflict(ctx, opDecrementCopies)
		return nil, libstore.ErrNoAvailableCopies
	}

	return book, nil
}

// IncrementCopies increments copies_available by one, clamped at
// total_copies so the availability invariant cannot be violated by repeated
// returns. Returns nil when the book does not exist.
func (s *Store) IncrementCopies(ctx context.Context, bookID uuid.UUID) (*libstore.Book, error) {
	stmt := s.builder().
		Update(s.table(tableBooks)).
		Set(goqu.Record{
			colBookCopiesAvailable: goqu.L(exprIncrementCopies),
			colUpdatedAt:           goqu.L("now()"),
		}).
		Where(goqu.C(colID).Eq(bookID.String())).
		Returning(bookColumns...)

	return s.queryOneBook(ctx, opIncrementCopies, stmt)
}

// SetBookReserved flips the coarse reservation flag on a book. Returns nil
// when the book does not exist.
func (s *Store) SetBookReserved(ctx context.Context, bookID uuid.UUID, reserved bool) (*libstore.Book, error) {
	stmt := s.builder().
		Update(s.table(tableBooks)).
		Set(goqu.Record{
			colBookIsReserved: reserved,
			colUpdatedAt:      goqu.L("now()"),
		}).
		Where(goqu.C(colID).Eq(bookID.String())).
		Returning(bookColumns...)

	return s.queryOneBook(ctx, opSetBookReserved, stmt)
}

// queryOneBook runs a statement expected to yield at most one book row.
func (s *Store) queryOneBook(ctx context.Context, operation string, stmt sqlBuilder) (*libstore.Book, error) {
	rows, err := s.runQuery(ctx, operation, stmt)
	if err != nil {
		return nil, err
	}
	defer s.closeRows(ctx, rows)

	if !rows.Next() {
		return nil, nil
	}

	book, scanErr := scanBook(rows)
	if scanErr != nil {
		return nil, s.scanError(ctx, operation, scanErr)
	}

	return &book, nil
}
