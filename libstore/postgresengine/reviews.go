package postgresengine

import (
	"context"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"github.com/libris-io/libris/libstore"
	"github.com/libris-io/libris/libstore/postgresengine/internal/adapters"
)

const (
	colReviewUserID = "user_id"
	colReviewBookID = "book_id"
	colReviewText   = "review"
	colReviewRating = "rating"

	opInsertReview      = "insert_review"
	opFindReview        = "find_review"
	opListReviewsByBook = "list_reviews_by_book"
	opUpdateReview      = "update_review"
	opDeleteReview      = "delete_review"
)

var reviewColumns = []any{
	colID, colReviewUserID, colReviewBookID, colReviewText, colReviewRating,
	colCreatedAt, colUpdatedAt,
}

func scanReview(rows adapters.DBRows) (libstore.Review, error) {
	var review libstore.Review
	var idStr, userStr, bookStr string

	scanErr := rows.Scan(
		&idStr, &userStr, &bookStr, &review.Review, &review.Rating,
		&review.CreatedAt, &review.UpdatedAt,
	)
	if scanErr != nil {
		return libstore.Review{}, scanErr
	}

	var parseErr error
	if review.ID, parseErr = uuid.Parse(idStr); parseErr != nil {
		return libstore.Review{}, parseErr
	}
	if review.UserID, parseErr = uuid.Parse(userStr); parseErr != nil {
		return libstore.Review{}, parseErr
	}
	if review.BookID, parseErr = uuid.Parse(bookStr); parseErr != nil {
		return libstore.Review{}, parseErr
	}

	return review, nil
}

// InsertReview persists a new review as provided.
func (s *Store) InsertReview(ctx context.Context, review libstore.Review) error {
	stmt := s.builder().
		Insert(s.table(tableReviews)).
		Rows(goqu.Record{
			colID:           review.ID.String(),
			colReviewUserID: review.UserID.String(),
			colReviewBookID: review.BookID.String(),
			colReviewText:   review.Review,
			colReviewRating: review.Rating,
			colCreatedAt:    libstore.ToStoredTime(review.CreatedAt),
			colUpdatedAt:    libstore.ToStoredTime(review.UpdatedAt),
		})

	_, err := s.runExec(ctx, opInsertReview, stmt)

	return err
}

// FindReviewByID returns the review with the given ID, or nil.
func (s *Store) FindReviewByID(ctx context.Context, id uuid.UUID) (*libstore.Review, error) {
	stmt := s.builder().
		From(s.table(tableReviews)).
		Select(reviewColumns...).
		Where(goqu.C(colID).Eq(id.String()))

	return s.queryOneReview(ctx, opFindReview, stmt)
}

// ListReviewsByBook returns a page of one book's reviews, newest first.
func (s *Store) ListReviewsByBook(ctx context.Context, bookID uuid.UUID, page libstore.Page) ([]libstore.Review, error) {
	page = page.Normalize()

	stmt := s.builder().
		From(s.table(tableReviews)).
		Select(reviewColumns...).
		Where(goqu.C(colReviewBookID).Eq(bookID.String())).
		Order(goqu.I(colCreatedAt).Desc()).
		Limit(uint(page.Limit)).
		Offset(uint(page.Offset))

	rows, err := s.runQuery(ctx, opListReviewsByBook, stmt)
	if err != nil {
		return nil, err
	}
	defer s.closeRows(ctx, rows)

	reviews := make([]libstore.Review, 0)

	for rows.Next() {
		review, scanErr := scanReview(rows)
		if scanErr != nil {
			return nil, s.scanError(ctx, opListReviewsByBook, scanErr)
		}

		reviews = append(reviews, review)
	}

	return reviews, nil
}

// UpdateReview overwrites a review's text and rating and returns the updated
// record, or nil when the review does not exist.
func (s *Store) UpdateReview(ctx context.Context, review libstore.Review) (*libstore.Review, error) {
	stmt := s.builder().
		Update(s.table(tableReviews)).
		Set(goqu.Record{
			colReviewText:   review.Review,
			colReviewRating: review.Rating,
			colUpdatedAt:    goqu.L("now()"),
		}).
		Where(goqu.C(colID).Eq(review.ID.String())).
		Returning(reviewColumns...)

	return s.queryOneReview(ctx, opUpdateReview, stmt)
}

// DeleteReview removes a review and reports whether it existed.
func (s *Store) DeleteReview(ctx context.Context, id uuid.UUID) (bool, error) {
	stmt := s.builder().
		Delete(s.table(tableReviews)).
		Where(goqu.C(colID).Eq(id.String()))

	rowsAffected, err := s.runExec(ctx, opDeleteReview, stmt)
	if err != nil {
		return false, err
	}

	return rowsAffected > 0, nil
}

func (s *Store) queryOneReview(ctx context.Context, operation string, stmt sqlBuilder) (*libstore.Review, error) {
	rows, err := s.runQuery(ctx, operation, stmt)
	if err != nil {
		return nil, err
	}
	defer s.closeRows(ctx, rows)

	if !rows.Next() {
		return nil, nil
	}

	review, scanErr := scanReview(rows)
	if scanErr != nil {
		return nil, s.scanError(ctx, operation, scanErr)
	}

	return &review, nil
}
