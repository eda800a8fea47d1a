package httpapi

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/libris-io/libris/internal/core"
	"github.com/libris-io/libris/libstore"
)

type createReviewRequest struct {
	UserID uuid.UUID `json:"userId"`
	Review string    `json:"review"`
	Rating int       `json:"rating"`
}

func (s *Server) handleCreateReview(w http.ResponseWriter, r *http.Request) {
	bookID, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req createReviewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.UserID == uuid.Nil || req.Rating < 1 || req.Rating > 5 {
		writeError(w, core.ErrInvalidInput)
		return
	}

	user, err := s.store.FindUserByID(r.Context(), req.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	if user == nil {
		writeError(w, core.ErrUserNotFound)
		return
	}

	book, err := s.store.FindBookByID(r.Context(), bookID)
	if err != nil {
		writeError(w, err)
		return
	}
	if book == nil {
		writeError(w, core.ErrBookNotFound)
		return
	}

	now := time.Now().UTC()
	review := libstore.Review{
		ID:        uuid.New(),
		UserID:    req.UserID,
		BookID:    bookID,
		Review:    req.Review,
		Rating:    req.Rating,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.InsertReview(r.Context(), review); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, review)
}

func (s *Server) handleListReviews(w http.ResponseWriter, r *http.Request) {
	bookID, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	reviews, err := s.store.ListReviewsByBook(r.Context(), bookID, pageFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, reviews)
}

type updateReviewRequest struct {
	Review *string `json:"review"`
	Rating *int    `json:"rating"`
}

func (s *Server) handleUpdateReview(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req updateReviewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	review, err := s.store.FindReviewByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if review == nil {
		writeError(w, core.ErrReviewNotFound)
		return
	}

	if req.Review != nil {
		review.Review = *req.Review
	}
	if req.Rating != nil {
		if *req.Rating < 1 || *req.Rating > 5 {
			writeError(w, core.ErrInvalidInput)
			return
		}
		review.Rating = *req.Rating
	}

	updated, err := s.store.UpdateReview(r.Context(), *review)
	if err != nil {
		writeError(w, err)
		return
	}
	if updated == nil {
		writeError(w, core.ErrReviewNotFound)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteReview(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	deleted, err := s.store.DeleteReview(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !deleted {
		writeError(w, core.ErrReviewNotFound)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
