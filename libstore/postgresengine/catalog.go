package postgresengine

import (
	"context"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"github.com/libris-io/libris/libstore"
	"github.com/libris-io/libris/libstore/postgresengine/internal/adapters"
)

const (
	colTaxonomyName        = "name"
	colTaxonomyDescription = "description"

	opInsertCategory = "insert_category"
	opFindCategory   = "find_category"
	opListCategories = "list_categories"
	opUpdateCategory = "update_category"
	opDeleteCategory = "delete_category"

	opInsertGenre = "insert_genre"
	opFindGenre   = "find_genre"
	opListGenres  = "list_genres"
	opUpdateGenre = "update_genre"
	opDeleteGenre = "delete_genre"
)

// Categories and genres share one table shape.
var taxonomyColumns = []any{
	colID, colTaxonomyName, colTaxonomyDescription, colCreatedAt, colUpdatedAt,
}

func scanCategory(rows adapters.DBRows) (libstore.Category, error) {
	var category libstore.Category
	var idStr string

	scanErr := rows.Scan(
		&idStr, &category.Name, &category.Description,
		&category.CreatedAt, &category.UpdatedAt,
	)
	if scanErr != nil {
		return libstore.Category{}, scanErr
	}

	var parseErr error
	if category.ID, parseErr = uuid.Parse(idStr); parseErr != nil {
		return libstore.Category{}, parseErr
	}

	return category, nil
}

func scanGenre(rows adapters.DBRows) (libstore.Genre, error) {
	var genre libstore.Genre
	var idStr string

	scanErr := rows.Scan(
		&idStr, &genre.Name, &genre.Description,
		&genre.CreatedAt, &genre.UpdatedAt,
	)
	if scanErr != nil {
		return libstore.Genre{}, scanErr
	}

	var parseErr error
	if genre.ID, parseErr = uuid.Parse(idStr); parseErr != nil {
		return libstore.Genre{}, parseErr
	}

	return genre, nil
}

// InsertCategory persists a new category as provided.
func (s *Store) InsertCategory(ctx context.Context, category libstore.Category) error {
	stmt := s.builder().
		Insert(s.table(tableCategories)).
		Rows(goqu.Record{
			colID:                  category.ID.String(),
			colTaxonomyName:        category.Name,
			colTaxonomyDescription: category.Description,
			colCreatedAt:           libstore.ToStoredTime(category.CreatedAt),
			colUpdatedAt:           libstore.ToStoredTime(category.UpdatedAt),
		})

	_, err := s.runExec(ctx, opInsertCategory, stmt)

	return err
}

// FindCategoryByID returns the category with the given ID, or nil.
func (s *Store) FindCategoryByID(ctx context.Context, id uuid.UUID) (*libstore.Category, error) {
	stmt := s.builder().
		From(s.table(tableCategories)).
		Select(taxonomyColumns...).
		Where(goqu.C(colID).Eq(id.String()))

	rows, err := s.runQuery(ctx, opFindCategory, stmt)
	if err != nil {
		return nil, err
	}
	defer s.closeRows(ctx, rows)

	if !rows.Next() {
		return nil, nil
	}

	category, scanErr := scanCategory(rows)
	if scanErr != nil {
		return nil, s.scanError(ctx, opFindCategory, scanErr)
	}

	return &category, nil
}

// ListCategories returns all categories ordered by name.
func (s *Store) ListCategories(ctx context.Context) ([]libstore.Category, error) {
	stmt := s.builder().
		From(s.table(tableCategories)).
		Select(taxonomyColumns...).
		Order(goqu.I(colTaxonomyName).Asc())

	rows, err := s.runQuery(ctx, opListCategories, stmt)
	if err != nil {
		return nil, err
	}
	defer s.closeRows(ctx, rows)

	categories := make([]libstore.Category, 0)

	for rows.Next() {
		category, scanErr := scanCategory(rows)
		if scanErr != nil {
			return nil, s.scanError(ctx, opListCategories, scanErr)
		}

		categories = append(categories, category)
	}

	return categories, nil
}

// UpdateCategory overwrites a category's name and description and returns the
// updated record, or nil when the category does not exist.
func (s *Store) UpdateCategory(ctx context.Context, category libstore.Category) (*libstore.Category, error) {
	stmt := s.builder().
		Update(s.table(tableCategories)).
		Set(goqu.Record{
			colTaxonomyName:        category.Name,
			colTaxonomyDescription: category.Description,
			colUpdatedAt:           goqu.L("now()"),
		}).
		Where(goqu.C(colID).Eq(category.ID.String())).
		Returning(taxonomyColumns...)

	rows, err := s.runQuery(ctx, opUpdateCategory, stmt)
	if err != nil {
		return nil, err
	}
	defer s.closeRows(ctx, rows)

	if !rows.Next() {
		return nil, nil
	}

	updated, scanErr := scanCategory(rows)
	if scanErr != nil {
		return nil, s.scanError(ctx, opUpdateCategory, scanErr)
	}

	return &updated, nil
}

// DeleteCategory removes a category and reports whether it existed.
func (s *Store) DeleteCategory(ctx context.Context, id uuid.UUID) (bool, error) {
	stmt := s.builder().
		Delete(s.table(tableCategories)).
		Where(goqu.C(colID).Eq(id.String()))

	rowsAffected, err := s.runExec(ctx, opDeleteCategory, stmt)
	if err != nil {
		return false, err
	}

	return rowsAffected > 0, nil
}

// InsertGenre persists a new genre as provided.
func (s *Store) InsertGenre(ctx context.Context, genre libstore.Genre) error {
	stmt := s.builder().
		Insert(s.table(tableGenres)).
		Rows(goqu.Record{
			colID:                  genre.ID.String(),
			colTaxonomyName:        genre.Name,
			colTaxonomyDescription: genre.Description,
			colCreatedAt:           libstore.ToStoredTime(genre.CreatedAt),
			colUpdatedAt:           libstore.ToStoredTime(genre.UpdatedAt),
		})

	_, err := s.runExec(ctx, opInsertGenre, stmt)

	return err
}

// FindGenreByID returns the genre with the given ID, or nil.
func (s *Store) FindGenreByID(ctx context.Context, id uuid.UUID) (*libstore.Genre, error) {
	stmt := s.builder().
		From(s.table(tableGenres)).
		Select(taxonomyColumns...).
		Where(goqu.C(colID).Eq(id.String()))

	rows, err := s.runQuery(ctx, opFindGenre, stmt)
	if err != nil {
		return nil, err
	}
	defer s.closeRows(ctx, rows)

	if !rows.Next() {
		return nil, nil
	}

	genre, scanErr := scanGenre(rows)
	if scanErr != nil {
		return nil, s.scanError(ctx, opFindGenre, scanErr)
	}

	return &genre, nil
}

// ListGenres returns all genres ordered by name.
func (s *Store) ListGenres(ctx context.Context) ([]libstore.Genre, error) {
	stmt := s.builder().
		From(s.table(tableGenres)).
		Select(taxonomyColumns...).
		Order(goqu.I(colTaxonomyName).Asc())

	rows, err := s.runQuery(ctx, opListGenres, stmt)
	if err != nil {
		return nil, err
	}
	defer s.closeRows(ctx, rows)

	genres := make([]libstore.Genre, 0)

	for rows.Next() {
		genre, scanErr := scanGenre(rows)
		if scanErr != nil {
			return nil, s.scanError(ctx, opListGenres, scanErr)
		}

		genres = append(genres, genre)
	}

	return genres, nil
}

// UpdateGenre overwrites a genre's name and description and returns the
// updated record, or nil when the genre does not exist.
func (s *Store) UpdateGenre(ctx context.Context, genre libstore.Genre) (*libstore.Genre, error) {
	stmt := s.builder().
		Update(s.table(tableGenres)).
		Set(goqu.Record{
			colTaxonomyName:        genre.Name,
			colTaxonomyDescription: genre.Description,
			colUpdatedAt:           goqu.L("now()"),
		}).
		Where(goqu.C(colID).Eq(genre.ID.String())).
		Returning(taxonomyColumns...)

	rows, err := s.runQuery(ctx, opUpdateGenre, stmt)
	if err != nil {
		return nil, err
	}
	defer s.closeRows(ctx, rows)

	if !rows.Next() {
		return nil, nil
	}

	updated, scanErr := scanGenre(rows)
	if scanErr != nil {
		return nil, s.scanError(ctx, opUpdateGenre, scanErr)
	}

	return &updated, nil
}

// DeleteGenre removes a genre and reports whether it existed.
func (s *Store) DeleteGenre(ctx context.Context, id uuid.UUID) (bool, error) {
	stmt := s.builder().
		Delete(s.table(tableGenres)).
		Where(goqu.C(colID).Eq(id.String()))

	rowsAffected, err := s.runExec(ctx, opDeleteGenre, stmt)
	if err != nil {
		return false, err
	}

	return rowsAffected > 0, nil
}
