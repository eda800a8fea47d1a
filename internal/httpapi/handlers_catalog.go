package httpapi

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/libris-io/libris/internal/core"
	"github.com/libris-io/libris/libstore"
)

type bookRequest struct {
	Title           string    `json:"title"`
	Author          string    `json:"author"`
	CategoryID      uuid.UUID `json:"categoryId"`
	GenreID         uuid.UUID `json:"genreId"`
	PublicationYear int       `json:"publicationYear"`
	TotalCopies     int       `json:"totalCopies"`
}

func (s *Server) handleCreateBook(w http.ResponseWriter, r *http.Request) {
	var req bookRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if req.Title == "" || req.Author == "" || req.TotalCopies < 1 {
		writeError(w, core.ErrInvalidInput)
		return
	}

	if err := s.checkTaxonomy(r, req.CategoryID, req.GenreID); err != nil {
		writeError(w, err)
		return
	}

	now := time.Now().UTC()
	book := libstore.Book{
		ID:              uuid.New(),
		Title:           req.Title,
		Author:          req.Author,
		CategoryID:      req.CategoryID,
		GenreID:         req.GenreID,
		PublicationYear: req.PublicationYear,
		TotalCopies:     req.TotalCopies,
		CopiesAvailable: req.TotalCopies,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.store.InsertBook(r.Context(), book); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, book)
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	book, err := s.store.FindBookByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if book == nil {
		writeError(w, core.ErrBookNotFound)
		return
	}

	writeJSON(w, http.StatusOK, book)
}

func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := s.store.ListBooks(r.Context(), pageFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, books)
}

type updateBookRequest struct {
	Title           *string    `json:"title"`
	Author          *string    `json:"author"`
	CategoryID      *uuid.UUID `json:"categoryId"`
	GenreID         *uuid.UUID `json:"genreId"`
	PublicationYear *int       `json:"publicationYear"`
	TotalCopies     *int       `json:"totalCopies"`
}

func (s *Server) handleUpdateBook(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req updateBookRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	book, err := s.store.FindBookByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if book == nil {
		writeError(w, core.ErrBookNotFound)
		return
	}

	if req.Title != nil {
		book.Title = *req.Title
	}
	if req.Author != nil {
		book.Author = *req.Author
	}
	if req.CategoryID != nil {
		book.CategoryID = *req.CategoryID
	}
	if req.GenreID != nil {
		book.GenreID = *req.GenreID
	}
	if req.PublicationYear != nil {
		book.PublicationYear = *req.PublicationYear
	}
	if req.TotalCopies != nil {
		if *req.TotalCopies < 1 {
			writeError(w, core.ErrInvalidInput)
			return
		}

		// Growing or shrinking the holdings shifts the free copies by the
		// same amount; copies already on loan stay on loan.
		delta := *req.TotalCopies - book.TotalCopies
		book.TotalCopies = *req.TotalCopies
		book.CopiesAvailable = clamp(book.CopiesAvailable+delta, 0, book.TotalCopies)
	}
	if book.Title == "" || book.Author == "" {
		writeError(w, core.ErrInvalidInput)
		return
	}

	if err := s.checkTaxonomy(r, book.CategoryID, book.GenreID); err != nil {
		writeError(w, err)
		return
	}

	updated, err := s.store.UpdateBook(r.Context(), *book)
	if err != nil {
		writeError(w, err)
		return
	}
	if updated == nil {
		writeError(w, core.ErrBookNotFound)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteBook(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	deleted, err := s.store.DeleteBook(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !deleted {
		writeError(w, core.ErrBookNotFound)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// checkTaxonomy verifies the referenced category and genre exist.
func (s *Server) checkTaxonomy(r *http.Request, categoryID, genreID uuid.UUID) error {
	if categoryID != uuid.Nil {
		category, err := s.store.FindCategoryByID(r.Context(), categoryID)
		if err != nil {
			return err
		}
		if category == nil {
			return core.ErrCategoryNotFound
		}
	}

	if genreID != uuid.Nil {
		genre, err := s.store.FindGenreByID(r.Context(), genreID)
		if err != nil {
			return err
		}
		if genre == nil {
			return core.ErrGenreNotFound
		}
	}

	return nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}

	return v
}

type taxonomyRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req taxonomyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Name == "" {
		writeError(w, core.ErrInvalidInput)
		return
	}

	now := time.Now().UTC()
	category := libstore.Category{
		ID:          uuid.New(),
		Name:        req.Name,
		Description: req.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.store.InsertCategory(r.Context(), category); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, category)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.store.ListCategories(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, categories)
}

func (s *Server) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	category, err := s.store.FindCategoryByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if category == nil {
		writeError(w, core.ErrCategoryNotFound)
		return
	}

	writeJSON(w, http.StatusOK, category)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req taxonomyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Name == "" {
		writeError(w, core.ErrInvalidInput)
		return
	}

	updated, err := s.store.UpdateCategory(r.Context(), libstore.Category{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if updated == nil {
		writeError(w, core.ErrCategoryNotFound)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	deleted, err := s.store.DeleteCategory(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !deleted {
		writeError(w, core.ErrCategoryNotFound)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateGenre(w http.ResponseWriter, r *http.Request) {
	var req taxonomyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Name == "" {
		writeError(w, core.ErrInvalidInput)
		return
	}

	now := time.Now().UTC()
	genre := libstore.Genre{
		ID:          uuid.New(),
		Name:        req.Name,
		Description: req.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.store.InsertGenre(r.Context(), genre); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, genre)
}

func (s *Server) handleListGenres(w http.ResponseWriter, r *http.Request) {
	genres, err := s.store.ListGenres(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, genres)
}

func (s *Server) handleGetGenre(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	genre, err := s.store.FindGenreByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if genre == nil {
		writeError(w, core.ErrGenreNotFound)
		return
	}

	writeJSON(w, http.StatusOK, genre)
}

func (s *Server) handleUpdateGenre(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req taxonomyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Name == "" {
		writeError(w, core.ErrInvalidInput)
		return
	}

	updated, err := s.store.UpdateGenre(r.Context(), libstore.Genre{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if updated == nil {
		writeError(w, core.ErrGenreNotFound)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteGenre(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	deleted, err := s.store.DeleteGenre(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !deleted {
		writeError(w, core.ErrGenreNotFound)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
